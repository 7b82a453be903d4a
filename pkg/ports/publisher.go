package ports

import (
	"context"

	"github.com/aretw0/flowstate/pkg/domain"
)

// Publisher receives the events emitted by the engine.
// Delivery is fire-and-forget: the engine logs returned errors and carries on.
type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, event domain.Event) error

// Publish calls f(ctx, event).
func (f PublisherFunc) Publish(ctx context.Context, event domain.Event) error {
	return f(ctx, event)
}
