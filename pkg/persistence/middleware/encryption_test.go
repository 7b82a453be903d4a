package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"io"
	"testing"
	"time"

	"github.com/aretw0/flowstate/pkg/adapters/memory"
	"github.com/aretw0/flowstate/pkg/domain"
	"github.com/aretw0/flowstate/pkg/persistence/middleware"
	"github.com/aretw0/flowstate/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func testInstance(entityID string, metadata map[string]any) *domain.WorkflowInstance {
	def := &domain.WorkflowDefinition{
		Name:         "kyc",
		EntityType:   "customer",
		InitialState: "SUBMITTED",
		States:       []string{"SUBMITTED", "VERIFIED"},
	}
	inst := domain.NewInstance(def, entityID, metadata, "agent-7", time.Now().UTC())
	inst.Record("VERIFIED", "verify", "agent-7", map[string]any{"ssn": "999-99-9999"}, time.Now().UTC())
	return inst
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ports.RunInstanceStoreContract(t, mw(memory.NewStore()))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	secureStore := mw(underlying)
	ctx := context.Background()

	original := testInstance("c-1", map[string]any{"secret": "my-secret-sauce"})
	require.NoError(t, secureStore.Save(ctx, original))

	stored, err := underlying.Load(ctx, "kyc", "c-1")
	require.NoError(t, err)
	assert.NotContains(t, stored.Metadata, "secret")
	assert.Contains(t, stored.Metadata, middleware.EnvelopeKey)
	assert.Empty(t, stored.History)
	assert.Equal(t, "VERIFIED", stored.CurrentState, "state stays readable for stats")

	loaded, err := secureStore.Load(ctx, "kyc", "c-1")
	require.NoError(t, err)
	assert.Equal(t, "my-secret-sauce", loaded.Metadata["secret"])
	require.Len(t, loaded.History, 2)
	assert.Equal(t, "999-99-9999", loaded.History[1].Data["ssn"])

	list, err := secureStore.List(ctx, "kyc")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "my-secret-sauce", list[0].Metadata["secret"])
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)
	ctx := context.Background()

	secureStoreOld := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlying)
	require.NoError(t, secureStoreOld.Save(ctx, testInstance("c-2", map[string]any{"data": "encrypted-with-old-key"})))

	secureStoreNew := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlying)

	loaded, err := secureStoreNew.Load(ctx, "kyc", "c-2")
	require.NoError(t, err)
	assert.Equal(t, "encrypted-with-old-key", loaded.Metadata["data"])

	loaded.Metadata["data"] = "encrypted-with-new-key"
	require.NoError(t, secureStoreNew.Save(ctx, loaded))

	_, err = secureStoreOld.Load(ctx, "kyc", "c-2")
	assert.Error(t, err, "old key alone cannot read data sealed with the new key")
}

func TestEncryptionMiddleware_RejectsPlaintext(t *testing.T) {
	underlying := memory.NewStore()
	require.NoError(t, underlying.Save(context.Background(), testInstance("plain", nil)))

	secureStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	_, err := secureStore.Load(context.Background(), "kyc", "plain")
	assert.ErrorContains(t, err, "missing encrypted data envelope")
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
	})
}

func TestDecodeKey(t *testing.T) {
	key := generateKey(t)
	decoded, err := middleware.DecodeKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, decoded)

	_, err = middleware.DecodeKey(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorContains(t, err, "32 bytes")

	_, err = middleware.DecodeKey("%%%")
	assert.Error(t, err)
}
