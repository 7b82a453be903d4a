package events_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/flowstate/pkg/domain"
	"github.com/aretw0/flowstate/pkg/events"
	"github.com/aretw0/flowstate/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_TopicRouting(t *testing.T) {
	bus := events.NewBus()
	ctx := context.Background()

	var got []string
	bus.Subscribe(string(domain.EventTransitionExecuted), func(ctx context.Context, e domain.Event) {
		got = append(got, "exact:"+e.Topic)
	})
	bus.SubscribePrefix("workflow.orders.state.", func(ctx context.Context, e domain.Event) {
		got = append(got, "prefix:"+e.Topic)
	})
	bus.SubscribeAll(func(ctx context.Context, e domain.Event) {
		got = append(got, "all:"+e.Topic)
	})

	require.NoError(t, bus.Publish(ctx, domain.Event{Topic: string(domain.EventTransitionExecuted), Type: domain.EventTransitionExecuted}))
	require.NoError(t, bus.Publish(ctx, domain.Event{Topic: domain.StateTopic("orders", "SHIPPED"), Type: domain.EventStateEntered}))
	require.NoError(t, bus.Publish(ctx, domain.Event{Topic: string(domain.EventInstanceCreated), Type: domain.EventInstanceCreated}))

	assert.Equal(t, []string{
		"exact:transition.executed",
		"all:transition.executed",
		"prefix:workflow.orders.state.SHIPPED",
		"all:workflow.orders.state.SHIPPED",
		"all:instance.created",
	}, got)
}

func TestBus_PrefixListenersKeepRegistrationOrder(t *testing.T) {
	bus := events.NewBus()
	prefixes := []string{"workflow.", "workflow.orders.", "w", "workflow.orders.state.", "workflow.o"}

	var got []string
	for _, p := range prefixes {
		bus.SubscribePrefix(p, func(ctx context.Context, e domain.Event) {
			got = append(got, p)
		})
	}

	for range 10 {
		got = nil
		require.NoError(t, bus.Publish(context.Background(), domain.Event{Topic: domain.StateTopic("orders", "SHIPPED")}))
		assert.Equal(t, prefixes, got)
	}
}

func TestBus_IsSynchronous(t *testing.T) {
	bus := events.NewBus()
	delivered := false
	bus.SubscribeAll(func(ctx context.Context, e domain.Event) { delivered = true })

	_ = bus.Publish(context.Background(), domain.Event{Topic: "x"})
	assert.True(t, delivered, "delivery must complete before Publish returns")
}

func TestBus_RecoversListenerPanic(t *testing.T) {
	bus := events.NewBus()
	second := false
	bus.Subscribe("x", func(ctx context.Context, e domain.Event) { panic("listener bug") })
	bus.Subscribe("x", func(ctx context.Context, e domain.Event) { second = true })

	assert.NotPanics(t, func() {
		_ = bus.Publish(context.Background(), domain.Event{Topic: "x"})
	})
	assert.True(t, second)
}

func TestBus_Clear(t *testing.T) {
	bus := events.NewBus()
	calls := 0
	bus.SubscribeAll(func(ctx context.Context, e domain.Event) { calls++ })
	bus.Clear()

	_ = bus.Publish(context.Background(), domain.Event{Topic: "x"})
	assert.Zero(t, calls)
}

func TestFanout(t *testing.T) {
	var seen []string
	ok := ports.PublisherFunc(func(ctx context.Context, e domain.Event) error {
		seen = append(seen, "ok")
		return nil
	})
	failing := ports.PublisherFunc(func(ctx context.Context, e domain.Event) error {
		seen = append(seen, "failing")
		return errors.New("broker down")
	})

	err := events.Fanout(failing, ok).Publish(context.Background(), domain.Event{Topic: "x"})

	assert.ErrorContains(t, err, "broker down")
	assert.Equal(t, []string{"failing", "ok"}, seen, "a failing publisher must not stop the others")
}
