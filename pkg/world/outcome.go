package world

import (
	"encoding/json"
	"fmt"
)

// OutcomeKind classifies the result of a traversal.
type OutcomeKind string

const (
	OutcomeBlocked      OutcomeKind = "blocked"
	OutcomeVisit        OutcomeKind = "visit"
	OutcomeMaterialized OutcomeKind = "materialized"
	OutcomeFailed       OutcomeKind = "failed"
)

// FailureReason explains a Failed outcome.
type FailureReason string

const (
	ReasonNone             FailureReason = ""
	ReasonSynthesisFailed  FailureReason = "synthesis_failed"
	ReasonTimeout          FailureReason = "timeout"
	ReasonStoreUnavailable FailureReason = "store_unavailable"
)

// TraversalOutcome is what a traversal request resolves to. Expected conditions
// (a blocked connection, a failed synthesis) are values here, not errors.
type TraversalOutcome struct {
	Kind       OutcomeKind   `json:"kind"`
	OriginID   int64         `json:"origin_id"`
	Connection string        `json:"connection"`
	LocationID int64         `json:"location_id,omitempty"`
	Location   *Location     `json:"location,omitempty"`
	Reason     FailureReason `json:"reason,omitempty"`
	Err        error         `json:"-"`
}

// Blocked builds a Blocked outcome.
func Blocked(originID int64, connection string) TraversalOutcome {
	return TraversalOutcome{Kind: OutcomeBlocked, OriginID: originID, Connection: connection}
}

// Visit builds a Visit outcome.
func Visit(originID int64, connection string, loc *Location) TraversalOutcome {
	return TraversalOutcome{Kind: OutcomeVisit, OriginID: originID, Connection: connection, LocationID: loc.ID, Location: loc}
}

// Materialized builds a Materialized outcome.
func Materialized(originID int64, connection string, loc *Location) TraversalOutcome {
	return TraversalOutcome{Kind: OutcomeMaterialized, OriginID: originID, Connection: connection, LocationID: loc.ID, Location: loc}
}

// Failed builds a Failed outcome.
func Failed(originID int64, connection string, reason FailureReason, err error) TraversalOutcome {
	return TraversalOutcome{Kind: OutcomeFailed, OriginID: originID, Connection: connection, Reason: reason, Err: err}
}

// Arrived reports whether the traveller ended up somewhere new.
func (o TraversalOutcome) Arrived() bool {
	return o.Kind == OutcomeVisit || o.Kind == OutcomeMaterialized
}

func (o TraversalOutcome) String() string {
	switch o.Kind {
	case OutcomeVisit, OutcomeMaterialized:
		return fmt.Sprintf("%s(%d)", o.Kind, o.LocationID)
	case OutcomeFailed:
		return fmt.Sprintf("%s(%s)", o.Kind, o.Reason)
	default:
		return string(o.Kind)
	}
}

// MarshalJSON adds the error text, which the struct tags omit.
func (o TraversalOutcome) MarshalJSON() ([]byte, error) {
	type alias TraversalOutcome
	out := struct {
		alias
		Error string `json:"error,omitempty"`
	}{alias: alias(o)}
	if o.Err != nil {
		out.Error = o.Err.Error()
	}
	return json.Marshal(out)
}
