package dsl

import (
	"context"
	"testing"

	"github.com/aretw0/flowstate/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_OrderFlow(t *testing.T) {
	inStock := func(context.Context, *domain.TransitionContext) (bool, error) { return true, nil }
	notify := func(context.Context, *domain.TransitionContext) error { return nil }

	def, err := New("order-processing", "order").
		Initial("PENDING").
		States("PENDING", "PROCESSING", "SHIPPED", "CANCELLED", "PENDING").
		Meta("owner", "fulfilment").
		On("process").From("PENDING").To("PROCESSING").Guard("in_stock", inStock).
		On("ship").From("PROCESSING").To("SHIPPED").After("notify", notify).Meta("sla", "24h").
		On("cancel").From("PENDING", "PROCESSING").To("CANCELLED").
		Build()
	require.NoError(t, err)

	assert.Equal(t, []string{"PENDING", "PROCESSING", "SHIPPED", "CANCELLED"}, def.States)
	assert.Equal(t, "fulfilment", def.Metadata["owner"])
	require.Len(t, def.Transitions, 3)

	process := def.Transitions[0]
	assert.Equal(t, "process", process.Event)
	require.Len(t, process.Guards, 1)
	assert.Equal(t, "in_stock", process.Guards[0].Name)

	ship := def.Transitions[1]
	require.Len(t, ship.Hooks.After, 1)
	assert.Empty(t, ship.Hooks.Before)
	assert.Equal(t, "24h", ship.Metadata["sla"])

	assert.Equal(t, []string{"PENDING", "PROCESSING"}, def.Transitions[2].From)
}

func TestBuilder_Validates(t *testing.T) {
	_, err := New("broken", "thing").
		Initial("A").
		States("A").
		On("go").From("A").To("B").
		Build()

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, domain.RuleToStateUndeclared, verr.Rule)

	assert.Panics(t, func() {
		New("", "thing").MustBuild()
	})
}

func TestBuilder_BuildIsRepeatable(t *testing.T) {
	b := New("flip", "switch").Initial("OFF").States("OFF", "ON")
	b.On("on").From("OFF").To("ON")

	first, err := b.Build()
	require.NoError(t, err)
	first.Transitions[0].From[0] = "MUTATED"

	second, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, "OFF", second.Transitions[0].From[0])
}
