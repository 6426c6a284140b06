package events

import (
	"context"
	"log/slog"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisBusRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	bus := NewRedisBus(client, slog.Default())
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, TopicRequests)
	require.NoError(t, err)

	require.NoError(t, Emit(ctx, bus, TopicRequests, "quantity_request.merged", "qr-1", map[string]int{"requestedQuantity": 8}))
	evt := receive(t, sub)
	require.Equal(t, "quantity_request.merged", evt.Type)
	require.Equal(t, "qr-1", evt.EntityID)
	require.JSONEq(t, `{"requestedQuantity":8}`, string(evt.Payload))

	require.NoError(t, sub.Close())
	_ = sub.Close()
	_, ok := <-sub.Events()
	require.False(t, ok)
}
