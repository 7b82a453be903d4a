// Package memory provides the in-process InstanceStore used by default.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/flowstate/pkg/domain"
	"github.com/aretw0/flowstate/pkg/ports"
)

// Store implements ports.InstanceStore in memory.
// Safe for concurrent use. Instances are lost when the process exits.
type Store struct {
	data map[string]map[string]*domain.WorkflowInstance // workflow -> entity -> instance
	mu   sync.RWMutex
}

var _ ports.InstanceStore = (*Store)(nil)

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]map[string]*domain.WorkflowInstance),
	}
}

// Save persists a copy of the instance, so later caller mutations are not visible.
func (s *Store) Save(ctx context.Context, instance *domain.WorkflowInstance) error {
	copied := instance.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	byEntity, ok := s.data[instance.WorkflowName]
	if !ok {
		byEntity = make(map[string]*domain.WorkflowInstance)
		s.data[instance.WorkflowName] = byEntity
	}
	byEntity[instance.EntityID] = copied
	return nil
}

// Load retrieves a copy of the instance so the caller can't mutate store state by pointer.
func (s *Store) Load(ctx context.Context, workflowName, entityID string) (*domain.WorkflowInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.data[workflowName][entityID]
	if !ok {
		return nil, domain.ErrInstanceNotFound
	}
	return inst.Clone(), nil
}

// Delete removes the instance.
func (s *Store) Delete(ctx context.Context, workflowName, entityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byEntity, ok := s.data[workflowName]
	if !ok {
		return nil
	}
	delete(byEntity, entityID)
	if len(byEntity) == 0 {
		delete(s.data, workflowName)
	}
	return nil
}

// List returns copies of the workflow's instances ordered by entity ID.
func (s *Store) List(ctx context.Context, workflowName string) ([]*domain.WorkflowInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byEntity := s.data[workflowName]
	out := make([]*domain.WorkflowInstance, 0, len(byEntity))
	for _, inst := range byEntity {
		out = append(out, inst.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out, nil
}
