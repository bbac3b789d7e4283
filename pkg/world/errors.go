package world

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for unknown location ids or connection names.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateConnection is returned when a location already has a connection with the given name.
	ErrDuplicateConnection = errors.New("duplicate connection")
	// ErrInvalidConnection is returned for malformed add_connection requests.
	ErrInvalidConnection = errors.New("invalid connection")
	// ErrStoreUnavailable marks persistence failures.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrSynthesisFailed marks content synthesizer failures.
	ErrSynthesisFailed = errors.New("synthesis failed")
	// ErrTimeout marks synthesizer calls that ran past their deadline.
	ErrTimeout = errors.New("timeout")
)

// ConsistencyError reports a confirmed edge without its reciprocal.
type ConsistencyError struct {
	LocationID int64
	Connection string
	TargetID   int64
	Reason     string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency error: location %d connection %q -> %d: %s",
		e.LocationID, e.Connection, e.TargetID, e.Reason)
}
