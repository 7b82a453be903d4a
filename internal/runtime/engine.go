package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/flowstate/internal/logging"
	"github.com/aretw0/flowstate/pkg/adapters/memory"
	"github.com/aretw0/flowstate/pkg/domain"
	"github.com/aretw0/flowstate/pkg/keylock"
	"github.com/aretw0/flowstate/pkg/ports"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultCallbackTimeout bounds each guard and hook call.
const DefaultCallbackTimeout = 30 * time.Second

const tracerName = "github.com/aretw0/flowstate"

// Engine is the workflow state machine runtime.
//
// Every read-check-write cycle on an instance runs under the instance's key lock.
// Guards, hooks and event listeners run while that lock is held, so they must
// not synchronously call back into the engine for the same instance.
type Engine struct {
	defs      *definitionStore
	store     ports.InstanceStore
	locks     *keylock.Manager
	publisher ports.Publisher
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
	newID     func() string

	callbackTimeout time.Duration
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithInstanceStore sets the instance persistence backend (default: in-memory).
func WithInstanceStore(store ports.InstanceStore) EngineOption {
	return func(e *Engine) {
		if store != nil {
			e.store = store
		}
	}
}

// WithLockManager sets the per-instance lock manager.
func WithLockManager(locks *keylock.Manager) EngineOption {
	return func(e *Engine) {
		if locks != nil {
			e.locks = locks
		}
	}
}

// WithPublisher sets the destination of lifecycle and transition events.
func WithPublisher(p ports.Publisher) EngineOption {
	return func(e *Engine) {
		e.publisher = p
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithCallbackTimeout bounds every guard and hook call. Zero disables the bound.
func WithCallbackTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.callbackTimeout = d
	}
}

// WithTracerProvider sets the OpenTelemetry provider used for transition spans.
func WithTracerProvider(tp trace.TracerProvider) EngineOption {
	return func(e *Engine) {
		if tp != nil {
			e.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewEngine creates a new engine with dependencies.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		defs:            newDefinitionStore(),
		store:           memory.NewStore(),
		locks:           keylock.NewManager(),
		logger:          logging.NewNop(),
		tracer:          otel.GetTracerProvider().Tracer(tracerName),
		now:             time.Now,
		newID:           uuid.NewString,
		callbackTimeout: DefaultCallbackTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// publish hands an event to the publisher. Failures are logged, never returned.
func (e *Engine) publish(ctx context.Context, event domain.Event) {
	if e.publisher == nil {
		return
	}
	if event.ID == "" {
		event.ID = e.newID()
	}
	if event.Topic == "" {
		event.Topic = string(event.Type)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now()
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.Warn("Failed to publish event",
			"topic", event.Topic,
			"workflow", event.WorkflowName,
			"entity_id", event.EntityID,
			"err", err,
		)
	}
}
