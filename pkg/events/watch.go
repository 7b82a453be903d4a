package events

import (
	"context"
	"strings"

	"github.com/aretw0/flowstate/pkg/domain"
)

// DefaultWatchBuffer is the channel capacity of a watcher.
const DefaultWatchBuffer = 64

type watcher struct {
	prefix string
	ch     chan domain.Event
	bus    *Bus
}

// offer delivers without blocking; a slow watcher misses events.
func (w *watcher) offer(event domain.Event) {
	if !strings.HasPrefix(event.Topic, w.prefix) {
		return
	}
	select {
	case w.ch <- event:
	default:
		w.bus.logger.Warn("event watcher is full, dropping event", "topic", event.Topic, "prefix", w.prefix)
	}
}

// Watch streams events whose topic starts with prefix ("" for all) until ctx is
// done, then closes the channel. Unlike listeners, watchers never block Publish:
// when the buffer is full the event is dropped for that watcher.
func (b *Bus) Watch(ctx context.Context, prefix string) <-chan domain.Event {
	w := &watcher{
		prefix: prefix,
		ch:     make(chan domain.Event, DefaultWatchBuffer),
		bus:    b,
	}

	b.mu.Lock()
	b.watchers[w] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.watchers, w)
		b.mu.Unlock()
		close(w.ch)
	}()
	return w.ch
}
