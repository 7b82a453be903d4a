package dsl

import "github.com/aretw0/flowstate/pkg/domain"

// TransitionBuilder provides a fluent API for configuring a transition.
type TransitionBuilder struct {
	t       domain.StateTransition
	builder *Builder
}

// From appends source states.
func (tb *TransitionBuilder) From(states ...string) *TransitionBuilder {
	tb.t.From = append(tb.t.From, states...)
	return tb
}

// To sets the target state.
func (tb *TransitionBuilder) To(state string) *TransitionBuilder {
	tb.t.To = state
	return tb
}

// Guard appends a named guard. Guards run in the order they are added.
func (tb *TransitionBuilder) Guard(name string, fn domain.GuardFunc) *TransitionBuilder {
	tb.t.Guards = append(tb.t.Guards, domain.Guard{Name: name, Fn: fn})
	return tb
}

// Before appends a hook run before the state change.
func (tb *TransitionBuilder) Before(name string, fn domain.HookFunc) *TransitionBuilder {
	tb.t.Hooks.Before = append(tb.t.Hooks.Before, domain.Hook{Name: name, Fn: fn})
	return tb
}

// After appends a hook run after the state change is saved.
func (tb *TransitionBuilder) After(name string, fn domain.HookFunc) *TransitionBuilder {
	tb.t.Hooks.After = append(tb.t.Hooks.After, domain.Hook{Name: name, Fn: fn})
	return tb
}

// Meta attaches an opaque metadata value to the transition.
func (tb *TransitionBuilder) Meta(key string, value any) *TransitionBuilder {
	if tb.t.Metadata == nil {
		tb.t.Metadata = make(map[string]any)
	}
	tb.t.Metadata[key] = value
	return tb
}

// On finishes this transition and starts the next one.
func (tb *TransitionBuilder) On(event string) *TransitionBuilder {
	return tb.builder.On(event)
}

// Build finishes this transition and builds the whole definition.
func (tb *TransitionBuilder) Build() (*domain.WorkflowDefinition, error) {
	return tb.builder.Build()
}

// MustBuild finishes this transition and builds the whole definition, panicking on error.
func (tb *TransitionBuilder) MustBuild() *domain.WorkflowDefinition {
	return tb.builder.MustBuild()
}
