package runtime

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/flowstate/pkg/domain"
)

// definitionStore holds validated definitions keyed by name.
type definitionStore struct {
	mu   sync.RWMutex
	defs map[string]*domain.WorkflowDefinition
}

func newDefinitionStore() *definitionStore {
	return &definitionStore{defs: make(map[string]*domain.WorkflowDefinition)}
}

// put stores def and reports whether it replaced an existing definition.
func (s *definitionStore) put(def *domain.WorkflowDefinition) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, replaced := s.defs[def.Name]
	s.defs[def.Name] = def
	return replaced
}

// get returns the stored definition. Callers must treat it as read-only.
func (s *definitionStore) get(name string) (*domain.WorkflowDefinition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.defs[name]
	return def, ok
}

func (s *definitionStore) all() []*domain.WorkflowDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.WorkflowDefinition, 0, len(s.defs))
	for _, def := range s.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// DefineWorkflow validates and registers a definition, replacing any definition
// with the same name. It returns a copy of what was stored.
func (e *Engine) DefineWorkflow(ctx context.Context, def *domain.WorkflowDefinition) (*domain.WorkflowDefinition, error) {
	if def == nil {
		return nil, &domain.ValidationError{Rule: domain.RuleNameRequired, Detail: "definition is nil"}
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	stored := def.Clone()
	replaced := e.defs.put(stored)
	if replaced {
		e.logger.Warn("Workflow definition replaced", "workflow", stored.Name)
	} else {
		e.logger.Info("Workflow defined",
			"workflow", stored.Name,
			"entity_type", stored.EntityType,
			"states", len(stored.States),
			"transitions", len(stored.Transitions),
		)
	}

	e.publish(ctx, domain.Event{
		Type:         domain.EventWorkflowDefined,
		WorkflowName: stored.Name,
		Replaced:     replaced,
	})
	return stored.Clone(), nil
}

// GetWorkflow returns a copy of the named definition.
func (e *Engine) GetWorkflow(name string) (*domain.WorkflowDefinition, bool) {
	def, ok := e.defs.get(name)
	if !ok {
		return nil, false
	}
	return def.Clone(), true
}

// GetAllWorkflows returns copies of every definition, sorted by name.
func (e *Engine) GetAllWorkflows() []*domain.WorkflowDefinition {
	all := e.defs.all()
	out := make([]*domain.WorkflowDefinition, len(all))
	for i, def := range all {
		out[i] = def.Clone()
	}
	return out
}

func (e *Engine) requireWorkflow(name string) (*domain.WorkflowDefinition, error) {
	def, ok := e.defs.get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrWorkflowNotFound, name)
	}
	return def, nil
}
