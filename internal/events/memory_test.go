package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub Subscription) Event {
	t.Helper()
	select {
	case evt, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestMemoryBusDeliversMatchingTopics(t *testing.T) {
	bus := NewMemoryBus()
	ctx := context.Background()

	orders, err := bus.Subscribe(ctx, TopicOrders)
	require.NoError(t, err)
	defer orders.Close()
	all, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	defer all.Close()

	require.NoError(t, Emit(ctx, bus, TopicInventory, "item.updated", "item-1", map[string]int{"quantity": 3}))
	require.NoError(t, Emit(ctx, bus, TopicOrders, "order.created", "order-1", nil))

	evt := receive(t, orders)
	require.Equal(t, "order.created", evt.Type)
	require.Equal(t, "order-1", evt.EntityID)

	first := receive(t, all)
	require.Equal(t, TopicInventory, first.Topic)
	require.JSONEq(t, `{"quantity":3}`, string(first.Payload))
	require.Equal(t, TopicOrders, receive(t, all).Topic)
}

func TestMemoryBusCloseIsDeterministic(t *testing.T) {
	bus := NewMemoryBus()
	sub, err := bus.Subscribe(context.Background(), TopicInventory)
	require.NoError(t, err)
	require.Equal(t, 1, bus.Subscribers())

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	require.Equal(t, 0, bus.Subscribers())

	_, ok := <-sub.Events()
	require.False(t, ok)
	require.NoError(t, Emit(context.Background(), bus, TopicInventory, "item.updated", "x", nil))
}

func TestMemoryBusUnsubscribesOnContextCancel(t *testing.T) {
	bus := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	cancel()

	require.Eventually(t, func() bool { return bus.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
	_, ok := <-sub.Events()
	require.False(t, ok)
}

func TestMemoryBusDropsForSlowSubscriber(t *testing.T) {
	bus := NewMemoryBus()
	bus.buffer = 1
	sub, err := bus.Subscribe(context.Background())
	require.NoError(t, err)
	defer sub.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, Emit(context.Background(), bus, TopicOrders, "order.updated", "o", nil))
	}
	require.Equal(t, int64(2), bus.Dropped())
}
