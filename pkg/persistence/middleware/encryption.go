package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/flowstate/pkg/domain"
	"github.com/aretw0/flowstate/pkg/ports"
)

// EnvelopeKey is the metadata key holding the encrypted payload.
const EnvelopeKey = "__encrypted__"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

// sealed is the encrypted part of an instance.
type sealed struct {
	History  []domain.HistoryEntry `json:"history"`
	Metadata map[string]any        `json:"metadata"`
}

type encryptionMiddleware struct {
	next   ports.InstanceStore
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that encrypts instance history and
// metadata using AES-GCM. Identity, current state and timestamps stay in clear
// so the backend can still list instances and compute stats.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.InstanceStore) ports.InstanceStore {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}
}

func (m *encryptionMiddleware) Save(ctx context.Context, inst *domain.WorkflowInstance) error {
	plainText, err := json.Marshal(sealed{History: inst.History, Metadata: inst.Metadata})
	if err != nil {
		return fmt.Errorf("failed to marshal instance: %w", err)
	}

	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt instance: %w", err)
	}

	envelope := *inst
	envelope.History = nil
	envelope.Metadata = map[string]any{
		EnvelopeKey: base64.StdEncoding.EncodeToString(ciphertext),
	}
	return m.next.Save(ctx, &envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context, workflowName, entityID string) (*domain.WorkflowInstance, error) {
	envelope, err := m.next.Load(ctx, workflowName, entityID)
	if err != nil {
		return nil, err
	}
	return m.open(envelope)
}

func (m *encryptionMiddleware) Delete(ctx context.Context, workflowName, entityID string) error {
	return m.next.Delete(ctx, workflowName, entityID)
}

func (m *encryptionMiddleware) List(ctx context.Context, workflowName string) ([]*domain.WorkflowInstance, error) {
	envelopes, err := m.next.List(ctx, workflowName)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.WorkflowInstance, 0, len(envelopes))
	for _, envelope := range envelopes {
		inst, err := m.open(envelope)
		if err != nil {
			return nil, fmt.Errorf("instance %s: %w", envelope.ID, err)
		}
		out = append(out, inst)
	}
	return out, nil
}

func (m *encryptionMiddleware) open(envelope *domain.WorkflowInstance) (*domain.WorkflowInstance, error) {
	encryptedStr, ok := envelope.Metadata[EnvelopeKey].(string)
	if !ok {
		// Fail secure: plaintext instances are not accepted once encryption is on.
		return nil, errors.New("instance is missing encrypted data envelope")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encryptedStr)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt instance: %w", err)
	}

	var payload sealed
	if err := json.Unmarshal(plainText, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted instance: %w", err)
	}

	inst := *envelope
	inst.History = payload.History
	inst.Metadata = payload.Metadata
	if inst.Metadata == nil {
		inst.Metadata = make(map[string]any)
	}
	return &inst, nil
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}

	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}

	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	ciphertextBytes := ciphertext[gcm.NonceSize():]

	return gcm.Open(nil, nonce, ciphertextBytes, nil)
}

// DecodeKey parses a base64 AES-256 key, as read from configuration.
func DecodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("encryption key is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}
