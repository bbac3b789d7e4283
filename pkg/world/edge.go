package world

import "fmt"

// ConnectionEdge is a named, directed link from its owning location.
// TargetID zero means no target has been assigned; location ids start at 1.
type ConnectionEdge struct {
	Name          string `json:"name"`
	TargetID      int64  `json:"target_id,omitempty"`
	Description   string `json:"description,omitempty"`
	IsPlaceholder bool   `json:"is_placeholder"`
}

// Confirmed reports whether the edge points at a real, reciprocated location.
func (e ConnectionEdge) Confirmed() bool {
	return !e.IsPlaceholder && e.TargetID != 0
}

func (e ConnectionEdge) String() string {
	kind := "confirmed"
	if e.IsPlaceholder {
		kind = "placeholder"
	}
	return fmt.Sprintf("%s -> %d (%s)", e.Name, e.TargetID, kind)
}

// EdgeState is the in-memory lifecycle of a connection.
// Placeholder -> Materializing -> Confirmed; a failed materialization
// drops back to Placeholder.
type EdgeState int

const (
	EdgeStatePlaceholder EdgeState = iota
	EdgeStateMaterializing
	EdgeStateConfirmed
)

func (s EdgeState) String() string {
	switch s {
	case EdgeStatePlaceholder:
		return "placeholder"
	case EdgeStateMaterializing:
		return "materializing"
	case EdgeStateConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// EdgeTarget describes a connection to add to a location.
// For confirmed targets, ReverseName names the reciprocal edge on the target;
// when empty it is derived with ReverseDirection.
type EdgeTarget struct {
	TargetID           int64  `json:"target_id,omitempty"`
	Placeholder        bool   `json:"placeholder"`
	Description        string `json:"description,omitempty"`
	ReverseName        string `json:"reverse_name,omitempty"`
	ReverseDescription string `json:"reverse_description,omitempty"`
}

// Placeholder returns an EdgeTarget that reserves a new location id on demand.
func Placeholder(description string) EdgeTarget {
	return EdgeTarget{Placeholder: true, Description: description}
}

// ConfirmedTo returns an EdgeTarget pointing at an existing location.
func ConfirmedTo(targetID int64, description string) EdgeTarget {
	return EdgeTarget{TargetID: targetID, Description: description}
}
