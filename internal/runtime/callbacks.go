package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/flowstate/pkg/domain"
)

// invoke runs fn with the engine's callback budget.
// A panic becomes an error; when the budget expires, invoke returns the
// context error without waiting for fn, which keeps running in the background.
func invoke[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return protect(ctx, fn)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := protect(ctx, fn)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func protect[T any](ctx context.Context, fn func(context.Context) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

// runGuards evaluates the guards in order and stops at the first rejection.
// Errors, panics and timeouts are rejections; they never reach the caller raw.
func (e *Engine) runGuards(ctx context.Context, workflowName string, t *domain.StateTransition, tc *domain.TransitionContext) error {
	for i, g := range t.Guards {
		name := g.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i)
		}

		start := time.Now()
		allowed, err := invoke(ctx, e.callbackTimeout, func(ctx context.Context) (bool, error) {
			return g.Fn(ctx, tc)
		})
		if err != nil {
			allowed = false
			e.logger.Warn("Guard errored, treating as rejection",
				"workflow", workflowName,
				"entity_id", tc.EntityID,
				"event", tc.Event,
				"guard", name,
				"err", err,
			)
		}
		if e.hooks.OnGuardEvaluated != nil {
			e.hooks.OnGuardEvaluated(ctx, &domain.GuardResult{
				WorkflowName: workflowName,
				EntityID:     tc.EntityID,
				Event:        tc.Event,
				Guard:        name,
				Allowed:      allowed,
				Err:          err,
				Duration:     time.Since(start),
			})
		}
		if !allowed {
			return &domain.GuardFailedError{
				Workflow: workflowName,
				From:     tc.CurrentState,
				To:       tc.TargetState,
				Event:    tc.Event,
				Guard:    name,
				Cause:    err,
			}
		}
	}
	return nil
}

// runHooks executes the hooks of one phase in order.
// A hook error is returned unmodified; panics and timeouts are wrapped with the hook name.
func (e *Engine) runHooks(ctx context.Context, workflowName string, phase domain.HookPhase, hooks []domain.Hook, tc *domain.TransitionContext) error {
	for i, h := range hooks {
		name := h.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i)
		}

		start := time.Now()
		hookErr, err := invoke(ctx, e.callbackTimeout, func(ctx context.Context) (error, error) {
			return h.Fn(ctx, tc), nil
		})
		if err != nil {
			err = fmt.Errorf("%s hook %q: %w", phase, name, err)
		} else {
			err = hookErr
		}

		if e.hooks.OnHookExecuted != nil {
			e.hooks.OnHookExecuted(ctx, &domain.HookResult{
				WorkflowName: workflowName,
				EntityID:     tc.EntityID,
				Event:        tc.Event,
				Hook:         name,
				Phase:        phase,
				Err:          err,
				Duration:     time.Since(start),
			})
		}
		if err != nil {
			e.logger.Error("Hook failed",
				"workflow", workflowName,
				"entity_id", tc.EntityID,
				"event", tc.Event,
				"phase", string(phase),
				"hook", name,
				"err", err,
			)
			return err
		}
	}
	return nil
}
