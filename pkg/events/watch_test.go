package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/flowstate/pkg/domain"
	"github.com/aretw0/flowstate/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_Watch(t *testing.T) {
	bus := events.NewBus()
	ctx, cancel := context.WithCancel(context.Background())

	ch := bus.Watch(ctx, "instance.")
	require.NoError(t, bus.Publish(context.Background(), domain.Event{Topic: "transition.executed"}))
	require.NoError(t, bus.Publish(context.Background(), domain.Event{Topic: "instance.created", EntityID: "e-1"}))

	select {
	case ev := <-ch:
		assert.Equal(t, "e-1", ev.EntityID)
	case <-time.After(time.Second):
		t.Fatal("expected instance.created")
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, open := <-ch
		return !open
	}, time.Second, 10*time.Millisecond, "channel closes after cancel")

	assert.NotPanics(t, func() {
		_ = bus.Publish(context.Background(), domain.Event{Topic: "instance.deleted"})
	})
}

func TestBus_WatchDropsWhenFull(t *testing.T) {
	bus := events.NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := bus.Watch(ctx, "")
	for i := 0; i < events.DefaultWatchBuffer+10; i++ {
		require.NoError(t, bus.Publish(context.Background(), domain.Event{Topic: "x"}))
	}
	assert.Len(t, ch, events.DefaultWatchBuffer)
}
