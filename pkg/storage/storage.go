package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Entity kinds persisted by the engine.
const (
	KindLocation  = "location"
	KindItem      = "item"
	KindCharacter = "character"
	KindKnowledge = "knowledge"
	KindAction    = "action"
	KindSave      = "save"
)

var (
	// ErrUnavailable wraps connectivity and driver failures. It never means "absent".
	ErrUnavailable = errors.New("storage unavailable")
	// ErrExists is returned by Create when the requested id is already taken.
	ErrExists = errors.New("entity already exists")
)

// Unavailable wraps a backend failure so callers can test it with errors.Is(err, ErrUnavailable).
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// Entity is a keyed record: a location, item, character, lore snippet, action log line or save.
// Properties is an opaque JSON property bag.
type Entity struct {
	ID          int64          `json:"id"`
	Kind        string         `json:"kind"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// StateVersion is one immutable snapshot in an entity's append-only state history.
type StateVersion struct {
	EntityID  int64           `json:"entity_id"`
	Seq       int64           `json:"seq"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

// EntityStore defines durable keyed storage for world entities and their versioned state.
// Get and LatestStateVersion return (nil, nil) when nothing is stored; every other
// failure wraps ErrUnavailable.
type EntityStore interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// NextID reserves an entity id. Reserved ids are never handed out again.
	NextID(ctx context.Context) (int64, error)

	// Create persists e. A zero e.ID is assigned from the id sequence; a non-zero id is
	// honored and fails with ErrExists if taken.
	Create(ctx context.Context, e *Entity) (int64, error)
	Get(ctx context.Context, id int64) (*Entity, error)
	// Update replaces name, description and properties. It reports false if the entity does not exist.
	Update(ctx context.Context, e *Entity) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	// List returns all entities of a kind ordered by id.
	List(ctx context.Context, kind string) ([]*Entity, error)

	// State history operations
	AppendStateVersion(ctx context.Context, entityID int64, data json.RawMessage) (*StateVersion, error)
	LatestStateVersion(ctx context.Context, entityID int64) (*StateVersion, error)
	StateVersions(ctx context.Context, entityID int64) ([]*StateVersion, error)
}

// DecodeProperty decodes properties[key] into out by way of JSON, so values read back
// from any backend (map[string]any) land in typed structs.
func DecodeProperty(properties map[string]any, key string, out any) (bool, error) {
	raw, ok := properties[key]
	if !ok || raw == nil {
		return false, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return false, fmt.Errorf("failed to marshal property %q: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to decode property %q: %w", key, err)
	}
	return true, nil
}

// EncodeProperty converts v into its generic JSON form before storing it under key.
func EncodeProperty(properties map[string]any, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal property %q: %w", key, err)
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("failed to encode property %q: %w", key, err)
	}
	properties[key] = generic
	return nil
}

// Clone returns a deep copy of e.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	c := *e
	c.Properties = cloneProperties(e.Properties)
	return &c
}

func cloneProperties(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	data, err := json.Marshal(props)
	if err != nil {
		// Property bags hold only JSON values; fall back to a shallow copy.
		out := make(map[string]any, len(props))
		for k, v := range props {
			out[k] = v
		}
		return out
	}
	var out map[string]any
	_ = json.Unmarshal(data, &out)
	return out
}
