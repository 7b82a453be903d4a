package dsl

import (
	"github.com/aretw0/flowstate/pkg/domain"
)

// Builder manages the definition construction.
type Builder struct {
	def         domain.WorkflowDefinition
	transitions []*TransitionBuilder
}

// New creates a builder for the named workflow over entityType.
func New(name, entityType string) *Builder {
	return &Builder{
		def: domain.WorkflowDefinition{
			Name:       name,
			EntityType: entityType,
		},
	}
}

// Initial sets the state new instances start in.
func (b *Builder) Initial(state string) *Builder {
	b.def.InitialState = state
	return b
}

// States appends declared states. Duplicates are ignored.
func (b *Builder) States(states ...string) *Builder {
	for _, s := range states {
		if !b.def.HasState(s) {
			b.def.States = append(b.def.States, s)
		}
	}
	return b
}

// Meta attaches an opaque metadata value to the workflow.
func (b *Builder) Meta(key string, value any) *Builder {
	if b.def.Metadata == nil {
		b.def.Metadata = make(map[string]any)
	}
	b.def.Metadata[key] = value
	return b
}

// On starts a new transition triggered by event.
// Transitions are matched in the order they are added.
func (b *Builder) On(event string) *TransitionBuilder {
	tb := &TransitionBuilder{
		t:       domain.StateTransition{Event: event},
		builder: b,
	}
	b.transitions = append(b.transitions, tb)
	return tb
}

// Build assembles and validates the definition.
func (b *Builder) Build() (*domain.WorkflowDefinition, error) {
	def := b.def.Clone()
	def.Transitions = make([]domain.StateTransition, 0, len(b.transitions))
	for _, tb := range b.transitions {
		def.Transitions = append(def.Transitions, tb.t.Clone())
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

// MustBuild is like Build but panics on an invalid definition.
// Intended for package-level definitions and tests.
func (b *Builder) MustBuild() *domain.WorkflowDefinition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}
