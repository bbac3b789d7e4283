package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/wayfarer/pkg/world"
)

func setupBroadcaster(t *testing.T) *Broadcaster {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewBroadcaster(client, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func receive(t *testing.T, ps *redis.PubSub) Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := ps.ReceiveMessage(ctx)
	require.NoError(t, err)
	var event Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
	return event
}

func TestPublishTraversal(t *testing.T) {
	b := setupBroadcaster(t)
	ctx := context.Background()

	worldSub := b.Subscribe(ctx, WorldChannel)
	defer worldSub.Close()
	locSub := b.Subscribe(ctx, LocationChannel(7))
	defer locSub.Close()
	_, err := worldSub.Receive(ctx)
	require.NoError(t, err)
	_, err = locSub.Receive(ctx)
	require.NoError(t, err)

	loc := &world.Location{ID: 7, Name: "Crypt"}
	require.NoError(t, b.PublishTraversal(ctx, world.Materialized(3, "down", loc)))

	for _, ps := range []*redis.PubSub{worldSub, locSub} {
		event := receive(t, ps)
		assert.Equal(t, EventTypeLocationMaterialized, event.Type)
		assert.Equal(t, int64(7), event.LocationID)
		assert.Equal(t, "down", event.Data["connection"])
		assert.Equal(t, "Crypt", event.Data["name"])
	}
}

func TestPublishTraversal_IgnoresNonArrivals(t *testing.T) {
	b := setupBroadcaster(t)
	ctx := context.Background()

	assert.NoError(t, b.PublishTraversal(ctx, world.Blocked(1, "north")))
	assert.NoError(t, b.PublishTraversal(ctx, world.Failed(1, "north", world.ReasonTimeout, world.ErrTimeout)))
}

func TestPublishCommand(t *testing.T) {
	b := setupBroadcaster(t)
	ctx := context.Background()
	sessionID := uuid.New()

	sub := b.Subscribe(ctx, SessionChannel(sessionID))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, b.PublishCommand(ctx, sessionID, 2, "take lamp", "take"))

	event := receive(t, sub)
	assert.Equal(t, EventTypeSessionCommand, event.Type)
	assert.Equal(t, sessionID.String(), event.SessionID)
	assert.Equal(t, "take", event.Data["verb"])
}

func TestPublish_ClosedClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := NewBroadcaster(client, slog.New(slog.NewTextHandler(io.Discard, nil)))
	mr.Close()

	err := b.PublishTraversal(context.Background(), world.Visit(1, "north", &world.Location{ID: 2}))
	assert.Error(t, err)
}
