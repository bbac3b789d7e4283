package world

import (
	"sort"
	"time"
)

// WorldStateRecord is one immutable snapshot of a location's mutable state.
type WorldStateRecord struct {
	LocationID           int64          `json:"location_id"`
	Visited              bool           `json:"visited"`
	VisitCount           int            `json:"visit_count"`
	LastVisited          *time.Time     `json:"last_visited,omitempty"`
	DiscoveredItems      []string       `json:"discovered_items,omitempty"` // sorted, no duplicates
	EnvironmentalChanges map[string]any `json:"environmental_changes,omitempty"`
	Interactions         map[string]any `json:"interactions,omitempty"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// StateDelta is a partial update merged into a record.
type StateDelta struct {
	DiscoveredItems      []string       `json:"discovered_items,omitempty"`
	EnvironmentalChanges map[string]any `json:"environmental_changes,omitempty"`
	Interactions         map[string]any `json:"interactions,omitempty"`
}

// IsEmpty reports whether the delta changes nothing.
func (d StateDelta) IsEmpty() bool {
	return len(d.DiscoveredItems) == 0 && len(d.EnvironmentalChanges) == 0 && len(d.Interactions) == 0
}

// Clone returns a copy of the record that shares no maps or slices with r.
func (r *WorldStateRecord) Clone() *WorldStateRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.LastVisited != nil {
		t := *r.LastVisited
		c.LastVisited = &t
	}
	c.DiscoveredItems = append([]string(nil), r.DiscoveredItems...)
	c.EnvironmentalChanges = copyMap(r.EnvironmentalChanges)
	c.Interactions = copyMap(r.Interactions)
	return &c
}

// Merge applies d shallowly: new keys are added, existing keys overwritten,
// discovered items are unioned.
func (r *WorldStateRecord) Merge(d StateDelta) {
	if len(d.DiscoveredItems) > 0 {
		set := make(map[string]struct{}, len(r.DiscoveredItems)+len(d.DiscoveredItems))
		for _, item := range r.DiscoveredItems {
			set[item] = struct{}{}
		}
		for _, item := range d.DiscoveredItems {
			if item != "" {
				set[item] = struct{}{}
			}
		}
		items := make([]string, 0, len(set))
		for item := range set {
			items = append(items, item)
		}
		sort.Strings(items)
		r.DiscoveredItems = items
	}
	if len(d.EnvironmentalChanges) > 0 {
		if r.EnvironmentalChanges == nil {
			r.EnvironmentalChanges = make(map[string]any, len(d.EnvironmentalChanges))
		}
		for k, v := range d.EnvironmentalChanges {
			r.EnvironmentalChanges[k] = v
		}
	}
	if len(d.Interactions) > 0 {
		if r.Interactions == nil {
			r.Interactions = make(map[string]any, len(d.Interactions))
		}
		for k, v := range d.Interactions {
			r.Interactions[k] = v
		}
	}
}

func copyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
