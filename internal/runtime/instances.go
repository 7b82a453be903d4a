package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/flowstate/pkg/domain"
)

// CreateInstance starts tracking entityID under the named workflow.
// Creating an instance that already exists returns it unchanged.
func (e *Engine) CreateInstance(ctx context.Context, workflowName, entityID string, initialData map[string]any, userID string) (*domain.WorkflowInstance, error) {
	def, err := e.requireWorkflow(workflowName)
	if err != nil {
		return nil, err
	}
	if err := requireEntity(workflowName, entityID); err != nil {
		return nil, err
	}

	var inst *domain.WorkflowInstance
	err = e.locks.WithLock(ctx, domain.InstanceKey(workflowName, entityID), func(ctx context.Context) error {
		var err error
		inst, _, err = e.loadOrCreate(ctx, def, entityID, initialData, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// loadOrCreate must be called while holding the instance lock.
func (e *Engine) loadOrCreate(ctx context.Context, def *domain.WorkflowDefinition, entityID string, data map[string]any, userID string) (*domain.WorkflowInstance, bool, error) {
	existing, err := e.store.Load(ctx, def.Name, entityID)
	if err == nil {
		e.logger.Warn("Instance already exists, returning it unchanged",
			"workflow", def.Name,
			"entity_id", entityID,
		)
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrInstanceNotFound) {
		return nil, false, fmt.Errorf("failed to check instance existence: %w", err)
	}

	inst := domain.NewInstance(def, entityID, data, userID, e.now())
	if err := e.store.Save(ctx, inst); err != nil {
		return nil, false, fmt.Errorf("failed to save instance: %w", err)
	}

	e.logger.Debug("Instance created", "workflow", def.Name, "entity_id", entityID, "state", inst.CurrentState)
	e.publish(ctx, domain.Event{
		Type:         domain.EventInstanceCreated,
		WorkflowName: def.Name,
		EntityID:     entityID,
		Instance:     inst.Clone(),
	})
	return inst, true, nil
}

// GetInstance returns the instance, or nil when it does not exist.
func (e *Engine) GetInstance(ctx context.Context, workflowName, entityID string) (*domain.WorkflowInstance, error) {
	inst, err := e.store.Load(ctx, workflowName, entityID)
	if errors.Is(err, domain.ErrInstanceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load instance: %w", err)
	}
	return inst, nil
}

// ListInstances returns every stored instance of the workflow.
func (e *Engine) ListInstances(ctx context.Context, workflowName string) ([]*domain.WorkflowInstance, error) {
	list, err := e.store.List(ctx, workflowName)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	return list, nil
}

// GetHistory returns the instance history, or an empty slice when it does not exist.
func (e *Engine) GetHistory(ctx context.Context, workflowName, entityID string) ([]domain.HistoryEntry, error) {
	inst, err := e.GetInstance(ctx, workflowName, entityID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return []domain.HistoryEntry{}, nil
	}
	return inst.History, nil
}

// ResetInstance moves the instance back to the initial state without running
// guards or hooks, and records a "reset" history entry.
func (e *Engine) ResetInstance(ctx context.Context, workflowName, entityID, userID string) (*domain.WorkflowInstance, error) {
	def, err := e.requireWorkflow(workflowName)
	if err != nil {
		return nil, err
	}

	var inst *domain.WorkflowInstance
	var from string
	err = e.locks.WithLock(ctx, domain.InstanceKey(workflowName, entityID), func(ctx context.Context) error {
		var err error
		inst, err = e.store.Load(ctx, workflowName, entityID)
		if errors.Is(err, domain.ErrInstanceNotFound) {
			return fmt.Errorf("%w: %s", domain.ErrInstanceNotFound, domain.InstanceKey(workflowName, entityID))
		}
		if err != nil {
			return fmt.Errorf("failed to load instance: %w", err)
		}

		from = inst.CurrentState
		inst.Record(def.InitialState, domain.EventReset, userID, nil, e.now())
		if err := e.store.Save(ctx, inst); err != nil {
			return fmt.Errorf("failed to save instance: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Instance reset", "workflow", workflowName, "entity_id", entityID, "from", from)
	e.publish(ctx, domain.Event{
		Type:         domain.EventInstanceReset,
		WorkflowName: workflowName,
		EntityID:     entityID,
		Instance:     inst.Clone(),
		Transition:   &domain.TransitionRecord{From: from, To: def.InitialState, Event: domain.EventReset},
	})
	return inst, nil
}

// DeleteInstance removes the instance. It reports whether an instance existed;
// deleting a missing instance is not an error.
func (e *Engine) DeleteInstance(ctx context.Context, workflowName, entityID string) (bool, error) {
	var deleted *domain.WorkflowInstance
	err := e.locks.WithLock(ctx, domain.InstanceKey(workflowName, entityID), func(ctx context.Context) error {
		inst, err := e.store.Load(ctx, workflowName, entityID)
		if errors.Is(err, domain.ErrInstanceNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load instance: %w", err)
		}
		if err := e.store.Delete(ctx, workflowName, entityID); err != nil {
			return fmt.Errorf("failed to delete instance: %w", err)
		}
		deleted = inst
		return nil
	})
	if err != nil {
		return false, err
	}
	if deleted == nil {
		return false, nil
	}

	e.logger.Info("Instance deleted", "workflow", workflowName, "entity_id", entityID)
	e.publish(ctx, domain.Event{
		Type:         domain.EventInstanceDeleted,
		WorkflowName: workflowName,
		EntityID:     entityID,
		Instance:     deleted,
	})
	return true, nil
}

func requireEntity(workflowName, entityID string) error {
	if entityID == "" {
		return &domain.ValidationError{Workflow: workflowName, Rule: domain.RuleEntityIDRequired, Detail: "entity id is required"}
	}
	return nil
}
