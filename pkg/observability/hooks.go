package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/flowstate/pkg/domain"
)

// LoggingHooks logs guard rejections, hook failures and failed transitions.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnGuardEvaluated: func(ctx context.Context, r *domain.GuardResult) {
			if r.Allowed {
				return
			}
			logger.InfoContext(ctx, "guard rejected transition",
				"workflow", r.WorkflowName,
				"entity_id", r.EntityID,
				"event", r.Event,
				"guard", r.Guard,
				"duration", r.Duration,
				"err", r.Err,
			)
		},
		OnHookExecuted: func(ctx context.Context, r *domain.HookResult) {
			if r.Err == nil {
				return
			}
			logger.WarnContext(ctx, "hook failed",
				"workflow", r.WorkflowName,
				"entity_id", r.EntityID,
				"event", r.Event,
				"hook", r.Hook,
				"phase", string(r.Phase),
				"err", r.Err,
			)
		},
		OnTransitionFailed: func(ctx context.Context, f *domain.TransitionFailure) {
			logger.InfoContext(ctx, "transition failed",
				"workflow", f.WorkflowName,
				"entity_id", f.EntityID,
				"event", f.Event,
				"reason", string(f.Reason),
				"err", f.Err,
			)
		},
	}
}

// Combine merges hooks so that each callback invokes every non-nil callback
// of the same kind, in argument order.
func Combine(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	var (
		guards   []func(context.Context, *domain.GuardResult)
		execs    []func(context.Context, *domain.HookResult)
		failures []func(context.Context, *domain.TransitionFailure)
	)
	for _, h := range hooks {
		if h.OnGuardEvaluated != nil {
			guards = append(guards, h.OnGuardEvaluated)
		}
		if h.OnHookExecuted != nil {
			execs = append(execs, h.OnHookExecuted)
		}
		if h.OnTransitionFailed != nil {
			failures = append(failures, h.OnTransitionFailed)
		}
	}

	var out domain.LifecycleHooks
	if len(guards) > 0 {
		out.OnGuardEvaluated = func(ctx context.Context, r *domain.GuardResult) {
			for _, fn := range guards {
				fn(ctx, r)
			}
		}
	}
	if len(execs) > 0 {
		out.OnHookExecuted = func(ctx context.Context, r *domain.HookResult) {
			for _, fn := range execs {
				fn(ctx, r)
			}
		}
	}
	if len(failures) > 0 {
		out.OnTransitionFailed = func(ctx context.Context, f *domain.TransitionFailure) {
			for _, fn := range failures {
				fn(ctx, f)
			}
		}
	}
	return out
}
