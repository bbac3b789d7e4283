package retrieval

import (
	"fmt"
	"time"

	"github.com/jwebster45206/wayfarer/pkg/storage"
)

// Action is one line of the player action log, persisted as an "action" entity.
type Action struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id,omitempty"`
	Input      string    `json:"player_input"`
	Type       string    `json:"action_type"`
	Result     string    `json:"result"`
	LocationID int64     `json:"location_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ToEntity converts the action for storage. The entity name is the action type.
func (a *Action) ToEntity() *storage.Entity {
	return &storage.Entity{
		Kind:        storage.KindAction,
		Name:        a.Type,
		Description: a.Result,
		Properties: map[string]any{
			"session_id":   a.SessionID,
			"player_input": a.Input,
			"location_id":  a.LocationID,
			"timestamp":    a.Timestamp.UTC().Format(time.RFC3339Nano),
		},
	}
}

func ActionFromEntity(e *storage.Entity) (*Action, error) {
	if e == nil || e.Kind != storage.KindAction {
		return nil, fmt.Errorf("entity is not an action")
	}
	a := &Action{
		ID:        e.ID,
		Type:      e.Name,
		Result:    e.Description,
		Timestamp: e.CreatedAt,
	}
	if _, err := storage.DecodeProperty(e.Properties, "session_id", &a.SessionID); err != nil {
		return nil, err
	}
	if _, err := storage.DecodeProperty(e.Properties, "player_input", &a.Input); err != nil {
		return nil, err
	}
	if _, err := storage.DecodeProperty(e.Properties, "location_id", &a.LocationID); err != nil {
		return nil, err
	}
	var ts string
	if ok, err := storage.DecodeProperty(e.Properties, "timestamp", &ts); err != nil {
		return nil, err
	} else if ok {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			a.Timestamp = parsed
		}
	}
	return a, nil
}
