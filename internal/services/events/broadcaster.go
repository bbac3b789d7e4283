package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/wayfarer/pkg/graph"
	"github.com/jwebster45206/wayfarer/pkg/world"
)

// WorldChannel carries every traversal outcome.
const WorldChannel = "world-events"

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeLocationVisited      EventType = "location.visited"
	EventTypeLocationMaterialized EventType = "location.materialized"
	EventTypeSessionCommand       EventType = "session.command"
)

// Event represents a generic event structure
type Event struct {
	Type       EventType      `json:"type"`
	SessionID  string         `json:"session_id,omitempty"`
	LocationID int64          `json:"location_id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

var _ graph.Publisher = (*Broadcaster)(nil)

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// LocationChannel is the channel for events about a single location.
func LocationChannel(locationID int64) string {
	return fmt.Sprintf("location-events:%d", locationID)
}

// SessionChannel is the channel for events about a single play session.
func SessionChannel(sessionID uuid.UUID) string {
	return fmt.Sprintf("session-events:%s", sessionID.String())
}

// PublishTraversal publishes an arrival to the world channel and to the
// destination's location channel. Outcomes that did not arrive anywhere are ignored.
func (b *Broadcaster) PublishTraversal(ctx context.Context, outcome world.TraversalOutcome) error {
	var eventType EventType
	switch outcome.Kind {
	case world.OutcomeVisit:
		eventType = EventTypeLocationVisited
	case world.OutcomeMaterialized:
		eventType = EventTypeLocationMaterialized
	default:
		return nil
	}

	data := map[string]any{
		"origin_id":  outcome.OriginID,
		"connection": outcome.Connection,
	}
	if outcome.Location != nil {
		data["name"] = outcome.Location.Name
	}
	event := Event{
		Type:       eventType,
		LocationID: outcome.LocationID,
		Data:       data,
	}

	if err := b.publish(ctx, WorldChannel, event); err != nil {
		return err
	}
	return b.publish(ctx, LocationChannel(outcome.LocationID), event)
}

// PublishCommand publishes a session.command event after a player command is handled.
func (b *Broadcaster) PublishCommand(ctx context.Context, sessionID uuid.UUID, locationID int64, input, verb string) error {
	event := Event{
		Type:       EventTypeSessionCommand,
		SessionID:  sessionID.String(),
		LocationID: locationID,
		Data: map[string]any{
			"input": input,
			"verb":  verb,
		},
	}
	return b.publish(ctx, SessionChannel(sessionID), event)
}

// Subscribe opens a subscription to the given channels. The caller closes it.
func (b *Broadcaster) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return b.redisClient.Subscribe(ctx, channels...)
}

func (b *Broadcaster) publish(ctx context.Context, channel string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event",
			"error", err,
			"channel", channel,
			"event_type", event.Type)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Published event",
		"channel", channel,
		"event_type", event.Type,
		"location_id", event.LocationID)

	return nil
}
