package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/flowstate/pkg/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Transition applies event to the entity's instance, creating the instance first
// if the entity has never been seen.
//
// The first transition, in declaration order, that leaves the current state on
// event is selected. Guards run unless opts.Force is set; any rejection returns a
// *domain.GuardFailedError and leaves the instance untouched. Before hooks run
// next, and their errors are returned unmodified, also before any mutation.
// The state change is then recorded and saved, "transition.executed" is
// published and the after hooks run. An after-hook error is returned together
// with the already mutated instance: the state change is not rolled back.
func (e *Engine) Transition(ctx context.Context, workflowName, entityID, event string, opts domain.TransitionOptions) (*domain.WorkflowInstance, error) {
	ctx, span := e.tracer.Start(ctx, "flowstate.Transition", trace.WithAttributes(
		attribute.String("flowstate.workflow", workflowName),
		attribute.String("flowstate.entity_id", entityID),
		attribute.String("flowstate.event", event),
		attribute.Bool("flowstate.force", opts.Force),
	))
	defer span.End()

	inst, record, reason, err := e.transition(ctx, workflowName, entityID, event, opts)
	if record != nil {
		span.SetAttributes(
			attribute.String("flowstate.from", record.From),
			attribute.String("flowstate.to", record.To),
		)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(reason))
		if e.hooks.OnTransitionFailed != nil {
			e.hooks.OnTransitionFailed(ctx, &domain.TransitionFailure{
				WorkflowName: workflowName,
				EntityID:     entityID,
				Event:        event,
				Reason:       reason,
				Err:          err,
			})
		}
		return inst, err
	}

	e.publish(ctx, domain.Event{
		Topic:        domain.StateTopic(workflowName, record.To),
		Type:         domain.EventStateEntered,
		WorkflowName: workflowName,
		EntityID:     entityID,
		Instance:     inst.Clone(),
		Transition:   record,
	})
	return inst, nil
}

// transition runs the locked part of Transition. It returns the instance only
// once the state change has been applied.
func (e *Engine) transition(ctx context.Context, workflowName, entityID, event string, opts domain.TransitionOptions) (*domain.WorkflowInstance, *domain.TransitionRecord, domain.FailureReason, error) {
	def, err := e.requireWorkflow(workflowName)
	if err != nil {
		return nil, nil, domain.FailureNotFound, err
	}
	if err := requireEntity(workflowName, entityID); err != nil {
		return nil, nil, domain.FailureValidation, err
	}

	var (
		applied *domain.WorkflowInstance
		record  *domain.TransitionRecord
		reason  domain.FailureReason
	)
	err = e.locks.WithLock(ctx, domain.InstanceKey(workflowName, entityID), func(ctx context.Context) error {
		inst, _, err := e.loadOrCreate(ctx, def, entityID, opts.Data, opts.UserID)
		if err != nil {
			reason = domain.FailureStore
			return err
		}

		t, ok := def.Match(inst.CurrentState, event)
		if !ok {
			reason = domain.FailureInvalidTransition
			return &domain.InvalidTransitionError{Workflow: workflowName, State: inst.CurrentState, Event: event}
		}

		tc := &domain.TransitionContext{
			EntityID:     entityID,
			EntityType:   def.EntityType,
			CurrentState: inst.CurrentState,
			TargetState:  t.To,
			Event:        event,
			Data:         opts.Data,
			UserID:       opts.UserID,
			Timestamp:    e.now(),
		}

		if opts.Force {
			e.logger.Debug("Guards skipped by force", "workflow", workflowName, "entity_id", entityID, "event", event)
		} else if err := e.runGuards(ctx, workflowName, t, tc); err != nil {
			reason = domain.FailureGuard
			return err
		}

		if err := e.runHooks(ctx, workflowName, domain.PhaseBefore, t.Hooks.Before, tc); err != nil {
			reason = domain.FailureBeforeHook
			return err
		}

		from := inst.CurrentState
		inst.Record(t.To, event, opts.UserID, opts.Data, e.now())
		inst.MergeMetadata(opts.Data)
		if err := e.store.Save(ctx, inst); err != nil {
			reason = domain.FailureStore
			return fmt.Errorf("failed to save instance: %w", err)
		}
		applied = inst
		record = &domain.TransitionRecord{From: from, To: t.To, Event: event}

		e.logger.Info("Transition executed",
			"workflow", workflowName,
			"entity_id", entityID,
			"event", event,
			"from", from,
			"to", t.To,
		)
		e.publish(ctx, domain.Event{
			Type:         domain.EventTransitionExecuted,
			WorkflowName: workflowName,
			EntityID:     entityID,
			Instance:     inst.Clone(),
			Transition:   record,
		})

		if err := e.runHooks(ctx, workflowName, domain.PhaseAfter, t.Hooks.After, tc); err != nil {
			reason = domain.FailureAfterHook
			return err
		}
		return nil
	})
	if err != nil && reason == "" {
		// The lock itself failed (canceled context or distributed locker error).
		reason = domain.FailureStore
	}
	return applied, record, reason, err
}

// CanTransition reports whether event would currently be accepted for the entity.
// It never mutates the instance, but it does execute the guards, with whatever
// side-effects they have. Missing workflows or instances yield false.
func (e *Engine) CanTransition(ctx context.Context, workflowName, entityID, event string) bool {
	def, ok := e.defs.get(workflowName)
	if !ok {
		return false
	}

	allowed := false
	err := e.locks.WithLock(ctx, domain.InstanceKey(workflowName, entityID), func(ctx context.Context) error {
		inst, err := e.store.Load(ctx, workflowName, entityID)
		if err != nil {
			return err
		}
		t, ok := def.Match(inst.CurrentState, event)
		if !ok {
			return nil
		}
		tc := &domain.TransitionContext{
			EntityID:     entityID,
			EntityType:   def.EntityType,
			CurrentState: inst.CurrentState,
			TargetState:  t.To,
			Event:        event,
			Timestamp:    e.now(),
		}
		allowed = e.runGuards(ctx, workflowName, t, tc) == nil
		return nil
	})
	if err != nil && !errors.Is(err, domain.ErrInstanceNotFound) {
		e.logger.Warn("CanTransition could not evaluate", "workflow", workflowName, "entity_id", entityID, "err", err)
	}
	return err == nil && allowed
}

// GetAvailableTransitions returns every transition leaving the instance's
// current state, regardless of event and without evaluating guards.
// Missing workflows or instances yield an empty slice.
func (e *Engine) GetAvailableTransitions(ctx context.Context, workflowName, entityID string) ([]domain.StateTransition, error) {
	def, ok := e.defs.get(workflowName)
	if !ok {
		return []domain.StateTransition{}, nil
	}
	inst, err := e.GetInstance(ctx, workflowName, entityID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return []domain.StateTransition{}, nil
	}
	return def.Outgoing(inst.CurrentState), nil
}
