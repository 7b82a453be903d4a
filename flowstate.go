package flowstate

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/flowstate/internal/logging"
	"github.com/aretw0/flowstate/internal/runtime"
	"github.com/aretw0/flowstate/pkg/domain"
	"github.com/aretw0/flowstate/pkg/events"
	"github.com/aretw0/flowstate/pkg/keylock"
	"github.com/aretw0/flowstate/pkg/ports"
	"go.opentelemetry.io/otel/trace"
)

// Version is the library version reported by the CLI and the HTTP API.
const Version = "0.4.0"

// Engine is the high-level entry point for the flowstate library.
// It wraps the internal runtime and owns the in-process event bus.
type Engine struct {
	runtime    *runtime.Engine
	bus        *events.Bus
	store      ports.InstanceStore
	publishers []ports.Publisher
	locker     ports.DistributedLocker
	lockTTL    time.Duration
	hooks      domain.LifecycleHooks
	logger     *slog.Logger

	runtimeOpts []runtime.EngineOption
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithInstanceStore sets where instances are persisted (default: in-memory).
func WithInstanceStore(store ports.InstanceStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithPublisher forwards every event to p in addition to the in-process bus,
// e.g. a Redis publisher. It may be given several times.
func WithPublisher(p ports.Publisher) Option {
	return func(e *Engine) {
		if p != nil {
			e.publishers = append(e.publishers, p)
		}
	}
}

// WithLocker extends per-instance locking across processes.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithLockTTL sets the TTL requested from the distributed locker.
func WithLockTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.lockTTL = ttl
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithCallbackTimeout bounds every guard and hook call. Zero disables the bound.
func WithCallbackTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithCallbackTimeout(d))
	}
}

// WithTracerProvider sets the OpenTelemetry provider used for transition spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithTracerProvider(tp))
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.runtimeOpts = append(e.runtimeOpts, runtime.WithClock(now))
	}
}

// New initializes an engine. Without options it keeps everything in memory.
func New(opts ...Option) *Engine {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	// Ensure logger is initialized (so we don't pass nil to runtime, which would overwrite its default)
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}

	eng.bus = events.NewBus(events.WithLogger(eng.logger))
	var publisher ports.Publisher = eng.bus
	if len(eng.publishers) > 0 {
		publisher = events.Fanout(append([]ports.Publisher{eng.bus}, eng.publishers...)...)
	}

	locks := keylock.NewManager(
		keylock.WithLocker(eng.locker),
		keylock.WithTTL(eng.lockTTL),
		keylock.WithLogger(eng.logger),
	)

	runtimeOpts := []runtime.EngineOption{
		runtime.WithInstanceStore(eng.store),
		runtime.WithLockManager(locks),
		runtime.WithPublisher(publisher),
		runtime.WithLifecycleHooks(eng.hooks),
		runtime.WithLogger(eng.logger),
	}
	runtimeOpts = append(runtimeOpts, eng.runtimeOpts...)
	eng.runtime = runtime.NewEngine(runtimeOpts...)

	return eng
}

// Events returns the in-process bus every engine event is published to.
func (e *Engine) Events() *events.Bus {
	return e.bus
}

// DefineWorkflow validates and registers a definition, replacing any previous
// definition with the same name.
func (e *Engine) DefineWorkflow(ctx context.Context, def *domain.WorkflowDefinition) (*domain.WorkflowDefinition, error) {
	return e.runtime.DefineWorkflow(ctx, def)
}

// GetWorkflow returns a copy of the named definition.
func (e *Engine) GetWorkflow(name string) (*domain.WorkflowDefinition, bool) {
	return e.runtime.GetWorkflow(name)
}

// GetAllWorkflows returns every registered definition, sorted by name.
func (e *Engine) GetAllWorkflows() []*domain.WorkflowDefinition {
	return e.runtime.GetAllWorkflows()
}

// CreateInstance starts tracking an entity. Existing instances are returned unchanged.
func (e *Engine) CreateInstance(ctx context.Context, workflowName, entityID string, initialData map[string]any, userID string) (*domain.WorkflowInstance, error) {
	return e.runtime.CreateInstance(ctx, workflowName, entityID, initialData, userID)
}

// GetInstance returns the instance, or nil when the entity is not tracked.
func (e *Engine) GetInstance(ctx context.Context, workflowName, entityID string) (*domain.WorkflowInstance, error) {
	return e.runtime.GetInstance(ctx, workflowName, entityID)
}

// ListInstances returns every instance of a workflow.
func (e *Engine) ListInstances(ctx context.Context, workflowName string) ([]*domain.WorkflowInstance, error) {
	return e.runtime.ListInstances(ctx, workflowName)
}

// Transition applies event to the entity, creating its instance on first use.
func (e *Engine) Transition(ctx context.Context, workflowName, entityID, event string, opts domain.TransitionOptions) (*domain.WorkflowInstance, error) {
	return e.runtime.Transition(ctx, workflowName, entityID, event, opts)
}

// CanTransition reports whether event would be accepted right now. Guards are executed.
func (e *Engine) CanTransition(ctx context.Context, workflowName, entityID, event string) bool {
	return e.runtime.CanTransition(ctx, workflowName, entityID, event)
}

// GetAvailableTransitions lists the transitions leaving the entity's current state.
func (e *Engine) GetAvailableTransitions(ctx context.Context, workflowName, entityID string) ([]domain.StateTransition, error) {
	return e.runtime.GetAvailableTransitions(ctx, workflowName, entityID)
}

// GetHistory returns the entity's audit trail, oldest first.
func (e *Engine) GetHistory(ctx context.Context, workflowName, entityID string) ([]domain.HistoryEntry, error) {
	return e.runtime.GetHistory(ctx, workflowName, entityID)
}

// ResetInstance moves the entity back to the initial state.
func (e *Engine) ResetInstance(ctx context.Context, workflowName, entityID, userID string) (*domain.WorkflowInstance, error) {
	return e.runtime.ResetInstance(ctx, workflowName, entityID, userID)
}

// DeleteInstance stops tracking the entity and reports whether it was tracked.
func (e *Engine) DeleteInstance(ctx context.Context, workflowName, entityID string) (bool, error) {
	return e.runtime.DeleteInstance(ctx, workflowName, entityID)
}

// GetWorkflowStats counts the workflow's instances per state.
func (e *Engine) GetWorkflowStats(ctx context.Context, workflowName string) (*domain.WorkflowStats, error) {
	return e.runtime.GetWorkflowStats(ctx, workflowName)
}

// ExportWorkflow returns the serializable projection of a definition.
func (e *Engine) ExportWorkflow(workflowName string) (*domain.ExportedWorkflow, error) {
	return e.runtime.ExportWorkflow(workflowName)
}

// Watch streams engine events whose topic starts with prefix until ctx is done.
func (e *Engine) Watch(ctx context.Context, prefix string) <-chan domain.Event {
	return e.bus.Watch(ctx, prefix)
}
