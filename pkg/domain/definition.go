package domain

import (
	"context"
	"maps"
	"slices"
)

// GuardFunc decides whether a transition may proceed.
// Returning false, an error or panicking all reject the transition.
type GuardFunc func(ctx context.Context, tc *TransitionContext) (bool, error)

// HookFunc performs a side-effect before or after a transition is applied.
type HookFunc func(ctx context.Context, tc *TransitionContext) error

// Guard is a named guard strategy.
// Name is the tag used by serialized definitions; Fn is the resolved implementation.
type Guard struct {
	Name string
	Fn   GuardFunc
}

// Hook is a named hook strategy.
type Hook struct {
	Name string
	Fn   HookFunc
}

// Hooks groups the callbacks executed around a transition.
type Hooks struct {
	Before []Hook
	After  []Hook
}

// StateTransition declares that Event moves an instance from any state in From to To.
type StateTransition struct {
	From     []string
	To       string
	Event    string
	Guards   []Guard
	Hooks    Hooks
	Metadata map[string]any
}

// AllowsFrom reports whether state belongs to the transition's from-set.
func (t *StateTransition) AllowsFrom(state string) bool {
	return slices.Contains(t.From, state)
}

// Clone returns a copy that shares callables but not slices or maps.
func (t StateTransition) Clone() StateTransition {
	t.From = slices.Clone(t.From)
	t.Guards = slices.Clone(t.Guards)
	t.Hooks = Hooks{
		Before: slices.Clone(t.Hooks.Before),
		After:  slices.Clone(t.Hooks.After),
	}
	t.Metadata = maps.Clone(t.Metadata)
	return t
}

// WorkflowDefinition is the named template an instance is driven through.
// Transitions are evaluated in declaration order.
type WorkflowDefinition struct {
	Name         string
	EntityType   string
	InitialState string
	States       []string
	Transitions  []StateTransition
	Metadata     map[string]any
}

// HasState reports whether state is declared by the definition.
func (d *WorkflowDefinition) HasState(state string) bool {
	return slices.Contains(d.States, state)
}

// Match returns the first transition, in declaration order, that leaves state on event.
func (d *WorkflowDefinition) Match(state, event string) (*StateTransition, bool) {
	for i := range d.Transitions {
		t := &d.Transitions[i]
		if t.Event == event && t.AllowsFrom(state) {
			return t, true
		}
	}
	return nil, false
}

// Outgoing returns every transition whose from-set contains state, ignoring events.
func (d *WorkflowDefinition) Outgoing(state string) []StateTransition {
	out := make([]StateTransition, 0)
	for _, t := range d.Transitions {
		if t.AllowsFrom(state) {
			out = append(out, t.Clone())
		}
	}
	return out
}

// TerminalStates returns the declared states that have no outgoing transition.
// They are never declared explicitly; they are derived from the transitions.
func (d *WorkflowDefinition) TerminalStates() []string {
	terminal := make([]string, 0)
	for _, s := range d.States {
		if len(d.Outgoing(s)) == 0 {
			terminal = append(terminal, s)
		}
	}
	return terminal
}

// Clone returns a deep copy of the definition structure.
func (d *WorkflowDefinition) Clone() *WorkflowDefinition {
	if d == nil {
		return nil
	}
	c := *d
	c.States = slices.Clone(d.States)
	c.Metadata = maps.Clone(d.Metadata)
	c.Transitions = make([]StateTransition, len(d.Transitions))
	for i, t := range d.Transitions {
		c.Transitions[i] = t.Clone()
	}
	return &c
}
