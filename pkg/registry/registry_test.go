package registry

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/aretw0/flowstate/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ResolveAndOverwrite(t *testing.T) {
	r := NewRegistry()
	r.RegisterGuard("always", func(context.Context, *domain.TransitionContext) (bool, error) { return false, nil })
	r.RegisterGuard("always", func(context.Context, *domain.TransitionContext) (bool, error) { return true, nil })

	g, err := r.Guard("always")
	require.NoError(t, err)
	assert.Equal(t, "always", g.Name)
	ok, err := g.Fn(context.Background(), &domain.TransitionContext{})
	require.NoError(t, err)
	assert.True(t, ok, "the last registration wins")

	_, err = r.Guard("missing")
	assert.ErrorContains(t, err, "guard not found: missing")
	_, err = r.Hook("missing")
	assert.ErrorContains(t, err, "hook not found: missing")
}

func TestBuiltins(t *testing.T) {
	var buf bytes.Buffer
	r := Builtins(slog.New(slog.NewTextHandler(&buf, nil)))
	ctx := context.Background()

	assert.Equal(t, []string{GuardRequireData, GuardRequireUser}, r.GuardNames())
	assert.Equal(t, []string{HookLog}, r.HookNames())

	requireUser, err := r.Guard(GuardRequireUser)
	require.NoError(t, err)
	ok, _ := requireUser.Fn(ctx, &domain.TransitionContext{})
	assert.False(t, ok)
	ok, _ = requireUser.Fn(ctx, &domain.TransitionContext{UserID: "alice"})
	assert.True(t, ok)

	requireData, err := r.Guard(GuardRequireData)
	require.NoError(t, err)
	ok, _ = requireData.Fn(ctx, &domain.TransitionContext{Data: map[string]any{"k": 1}})
	assert.True(t, ok)

	logHook, err := r.Hook(HookLog)
	require.NoError(t, err)
	require.NoError(t, logHook.Fn(ctx, &domain.TransitionContext{EntityID: "order-1", Event: "ship"}))
	assert.Contains(t, buf.String(), "entity_id=order-1")
}
