package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/flowstate/pkg/adapters/memory"
	"github.com/aretw0/flowstate/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlying := memory.NewStore()
	// Mask keys containing "password" or "ssn"
	secureStore := middleware.NewPIIMiddleware([]string{"password", "ssn"})(underlying)
	ctx := context.Background()

	inst := testInstance("c-1", map[string]any{
		"username":      "jdoe",
		"user_password": "secret123",
		"details": map[string]any{
			"address":    "123 St",
			"ssn_number": "999-99-9999",
		},
	})
	require.NoError(t, secureStore.Save(ctx, inst))

	assert.Equal(t, "secret123", inst.Metadata["user_password"], "caller's instance must not be modified")
	assert.Equal(t, "999-99-9999", inst.History[1].Data["ssn"])

	stored, err := underlying.Load(ctx, "kyc", "c-1")
	require.NoError(t, err)
	assert.Equal(t, "jdoe", stored.Metadata["username"])
	assert.Equal(t, middleware.Mask, stored.Metadata["user_password"])
	details := stored.Metadata["details"].(map[string]any)
	assert.Equal(t, "123 St", details["address"])
	assert.Equal(t, middleware.Mask, details["ssn_number"])
	assert.Equal(t, middleware.Mask, stored.History[1].Data["ssn"])
}

func TestChain_EncryptsMaskedData(t *testing.T) {
	underlying := memory.NewStore()
	store := middleware.Chain(underlying,
		middleware.NewPIIMiddleware([]string{"ssn"}),
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)}),
	)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testInstance("c-9", nil)))

	loaded, err := store.Load(ctx, "kyc", "c-9")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, loaded.History[1].Data["ssn"])
}

func TestCompilePIIMiddleware_InvalidPattern(t *testing.T) {
	_, err := middleware.CompilePIIMiddleware([]string{"email", "(card"})
	assert.ErrorContains(t, err, "(card")

	assert.Panics(t, func() {
		middleware.NewPIIMiddleware([]string{"(card"})
	})
}
