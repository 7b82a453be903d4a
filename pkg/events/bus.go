// Package events provides the in-process publish/subscribe bus the engine
// publishes lifecycle and transition events to.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/aretw0/flowstate/internal/logging"
	"github.com/aretw0/flowstate/pkg/domain"
	"github.com/aretw0/flowstate/pkg/ports"
)

// Listener handles a published event.
type Listener func(ctx context.Context, event domain.Event)

// Bus dispatches events synchronously to the listeners of their topic.
// Listener panics are recovered and logged; they never reach the publisher.
type Bus struct {
	mu              sync.RWMutex
	listeners       map[string][]Listener
	prefixListeners []prefixListener
	globalListeners []Listener
	watchers        map[*watcher]struct{}
	logger          *slog.Logger
}

var _ ports.Publisher = (*Bus)(nil)

type prefixListener struct {
	prefix   string
	listener Listener
}

// Option configures the Bus.
type Option func(*Bus)

// WithLogger sets the logger used to report listener panics.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

// NewBus creates an empty bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		listeners:       make(map[string][]Listener),
		watchers:        make(map[*watcher]struct{}),
		logger:          logging.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a listener for an exact topic, e.g. "transition.executed"
// or domain.StateTopic("order-processing", "SHIPPED").
func (b *Bus) Subscribe(topic string, listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[topic] = append(b.listeners[topic], listener)
}

// SubscribePrefix registers a listener for every topic starting with prefix,
// e.g. "instance." or "workflow.order-processing.state.".
func (b *Bus) SubscribePrefix(prefix string, listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prefixListeners = append(b.prefixListeners, prefixListener{prefix: prefix, listener: listener})
}

// SubscribeAll registers a listener for every event.
func (b *Bus) SubscribeAll(listener Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.globalListeners = append(b.globalListeners, listener)
}

// Publish delivers the event to the matching listeners in registration order:
// exact topic listeners first, then prefix listeners, then global listeners.
func (b *Bus) Publish(ctx context.Context, event domain.Event) error {
	b.mu.RLock()
	targets := make([]Listener, 0, len(b.listeners[event.Topic])+len(b.globalListeners))
	targets = append(targets, b.listeners[event.Topic]...)
	for _, pl := range b.prefixListeners {
		if strings.HasPrefix(event.Topic, pl.prefix) {
			targets = append(targets, pl.listener)
		}
	}
	targets = append(targets, b.globalListeners...)
	for w := range b.watchers {
		w.offer(event)
	}
	b.mu.RUnlock()

	for _, listener := range targets {
		b.safeInvoke(ctx, listener, event)
	}
	return nil
}

// Clear removes all listeners (primarily for tests).
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = make(map[string][]Listener)
	b.prefixListeners = nil
	b.globalListeners = nil
}

func (b *Bus) safeInvoke(ctx context.Context, listener Listener, event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event listener panicked", "topic", event.Topic, "panic", r)
		}
	}()
	listener(ctx, event)
}

// Fanout publishes every event to all the given publishers.
// Every publisher is attempted; their errors are joined.
func Fanout(publishers ...ports.Publisher) ports.Publisher {
	return ports.PublisherFunc(func(ctx context.Context, event domain.Event) error {
		var errs []error
		for i, p := range publishers {
			if err := p.Publish(ctx, event); err != nil {
				errs = append(errs, fmt.Errorf("publisher %d: %w", i, err))
			}
		}
		return errors.Join(errs...)
	})
}
