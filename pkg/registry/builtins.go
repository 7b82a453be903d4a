package registry

import (
	"context"
	"log/slog"

	"github.com/aretw0/flowstate/pkg/domain"
)

// Builtin strategy names.
const (
	GuardRequireUser = "require_user"
	GuardRequireData = "require_data"
	HookLog          = "log"
)

// Builtins returns a registry preloaded with the generic strategies:
//
//   - require_user: rejects transitions requested without a user ID.
//   - require_data: rejects transitions requested without data.
//   - log: records the transition on logger at info level.
func Builtins(logger *slog.Logger) *Registry {
	r := NewRegistry()
	r.RegisterGuard(GuardRequireUser, func(_ context.Context, tc *domain.TransitionContext) (bool, error) {
		return tc.UserID != "", nil
	})
	r.RegisterGuard(GuardRequireData, func(_ context.Context, tc *domain.TransitionContext) (bool, error) {
		return len(tc.Data) > 0, nil
	})
	r.RegisterHook(HookLog, func(ctx context.Context, tc *domain.TransitionContext) error {
		logger.InfoContext(ctx, "workflow transition",
			"entity_type", tc.EntityType,
			"entity_id", tc.EntityID,
			"event", tc.Event,
			"from", tc.CurrentState,
			"to", tc.TargetState,
			"user_id", tc.UserID,
		)
		return nil
	})
	return r
}
