package world

import (
	"fmt"
	"sort"
	"time"

	"github.com/jwebster45206/wayfarer/pkg/storage"
)

// Property keys used in a location's persisted property bag.
const (
	PropConnections = "connections"
	PropItems       = "items"
)

// Location represents a place in the game world.
type Location struct {
	ID          int64                     `json:"id"`
	Name        string                    `json:"name"`
	Description string                    `json:"description,omitempty"`
	Items       []string                  `json:"items,omitempty"`
	Connections map[string]ConnectionEdge `json:"connections,omitempty"` // connection name -> edge
	Properties  map[string]any            `json:"properties,omitempty"`  // anything else in the bag
	CreatedAt   time.Time                 `json:"created_at"`
	UpdatedAt   time.Time                 `json:"updated_at"`
}

// ConnectionNames returns the location's connection names in sorted order.
func (l *Location) ConnectionNames() []string {
	names := make([]string, 0, len(l.Connections))
	for name := range l.Connections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy of the location.
func (l *Location) Clone() *Location {
	if l == nil {
		return nil
	}
	c := *l
	c.Items = append([]string(nil), l.Items...)
	c.Connections = CopyConnections(l.Connections)
	if l.Properties != nil {
		c.Properties = make(map[string]any, len(l.Properties))
		for k, v := range l.Properties {
			c.Properties[k] = v
		}
	}
	return &c
}

// CopyConnections returns a copy of a connection map.
func CopyConnections(in map[string]ConnectionEdge) map[string]ConnectionEdge {
	out := make(map[string]ConnectionEdge, len(in))
	for name, edge := range in {
		out[name] = edge
	}
	return out
}

// ToEntity converts the location into its persisted form. Connections and
// items are folded into the property bag.
func (l *Location) ToEntity() (*storage.Entity, error) {
	props := make(map[string]any, len(l.Properties)+2)
	for k, v := range l.Properties {
		props[k] = v
	}
	if len(l.Items) > 0 {
		if err := storage.EncodeProperty(props, PropItems, l.Items); err != nil {
			return nil, err
		}
	}
	conns := l.Connections
	if conns == nil {
		conns = map[string]ConnectionEdge{}
	}
	if err := storage.EncodeProperty(props, PropConnections, conns); err != nil {
		return nil, err
	}

	return &storage.Entity{
		ID:          l.ID,
		Kind:        storage.KindLocation,
		Name:        l.Name,
		Description: l.Description,
		Properties:  props,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}, nil
}

// LocationFromEntity decodes a persisted location entity.
func LocationFromEntity(e *storage.Entity) (*Location, error) {
	if e == nil {
		return nil, fmt.Errorf("entity is nil")
	}
	if e.Kind != storage.KindLocation {
		return nil, fmt.Errorf("entity %d is a %s, not a location", e.ID, e.Kind)
	}

	loc := &Location{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		Connections: make(map[string]ConnectionEdge),
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}

	if _, err := storage.DecodeProperty(e.Properties, PropItems, &loc.Items); err != nil {
		return nil, fmt.Errorf("location %d: %w", e.ID, err)
	}
	if _, err := storage.DecodeProperty(e.Properties, PropConnections, &loc.Connections); err != nil {
		return nil, fmt.Errorf("location %d: %w", e.ID, err)
	}
	// Keys are authoritative for edge names.
	for name, edge := range loc.Connections {
		edge.Name = name
		loc.Connections[name] = edge
	}

	for k, v := range e.Properties {
		if k == PropItems || k == PropConnections {
			continue
		}
		if loc.Properties == nil {
			loc.Properties = make(map[string]any)
		}
		loc.Properties[k] = v
	}
	return loc, nil
}
