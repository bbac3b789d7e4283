// Package worldstate tracks per-location visit metadata and state deltas as an
// append-only series of versions in the entity store.
package worldstate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jwebster45206/wayfarer/pkg/storage"
	"github.com/jwebster45206/wayfarer/pkg/world"
)

// Tracker reads and writes WorldStateRecords. Every mutation appends a new version.
type Tracker struct {
	store  storage.EntityStore
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewTracker creates a tracker over store.
func NewTracker(store storage.EntityStore, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		store:  store,
		logger: logger,
		now:    time.Now,
		locks:  make(map[int64]*sync.Mutex),
	}
}

// WithClock replaces the tracker's time source.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// lock serializes read-modify-write cycles per location.
func (t *Tracker) lock(locationID int64) func() {
	t.mu.Lock()
	l, ok := t.locks[locationID]
	if !ok {
		l = &sync.Mutex{}
		t.locks[locationID] = l
	}
	t.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Current returns the latest record, or nil if the location has no state yet.
func (t *Tracker) Current(ctx context.Context, locationID int64) (*world.WorldStateRecord, error) {
	v, err := t.store.LatestStateVersion(ctx, locationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load world state for location %d: %w", locationID, err)
	}
	if v == nil {
		return nil, nil
	}
	return decode(v)
}

// Initialize writes a fresh, unvisited record.
func (t *Tracker) Initialize(ctx context.Context, locationID int64) (*world.WorldStateRecord, error) {
	unlock := t.lock(locationID)
	defer unlock()

	rec := &world.WorldStateRecord{LocationID: locationID}
	return t.write(ctx, rec)
}

// RecordVisit increments the visit counter, marks the location visited and stamps the time.
func (t *Tracker) RecordVisit(ctx context.Context, locationID int64) (*world.WorldStateRecord, error) {
	unlock := t.lock(locationID)
	defer unlock()

	rec, err := t.Current(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = &world.WorldStateRecord{LocationID: locationID}
	}

	now := t.now().UTC()
	rec.Visited = true
	rec.VisitCount++
	rec.LastVisited = &now

	saved, err := t.write(ctx, rec)
	if err != nil {
		return nil, err
	}
	t.logger.Debug("Recorded visit", "location_id", locationID, "visit_count", saved.VisitCount)
	return saved, nil
}

// ApplyDelta shallow-merges d into the current record and writes a new version.
func (t *Tracker) ApplyDelta(ctx context.Context, locationID int64, d world.StateDelta) (*world.WorldStateRecord, error) {
	unlock := t.lock(locationID)
	defer unlock()

	rec, err := t.Current(ctx, locationID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = &world.WorldStateRecord{LocationID: locationID}
	}
	if d.IsEmpty() {
		return rec, nil
	}
	rec.Merge(d)
	return t.write(ctx, rec)
}

// History returns every version for the location, oldest first.
func (t *Tracker) History(ctx context.Context, locationID int64) ([]*world.WorldStateRecord, error) {
	versions, err := t.store.StateVersions(ctx, locationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load world state history for location %d: %w", locationID, err)
	}
	out := make([]*world.WorldStateRecord, 0, len(versions))
	for _, v := range versions {
		rec, err := decode(v)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (t *Tracker) write(ctx context.Context, rec *world.WorldStateRecord) (*world.WorldStateRecord, error) {
	rec.UpdatedAt = t.now().UTC()
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal world state: %w", err)
	}
	if _, err := t.store.AppendStateVersion(ctx, rec.LocationID, data); err != nil {
		t.logger.Error("Failed to append world state", "location_id", rec.LocationID, "error", err)
		return nil, fmt.Errorf("failed to save world state for location %d: %w", rec.LocationID, err)
	}
	return rec.Clone(), nil
}

func decode(v *storage.StateVersion) (*world.WorldStateRecord, error) {
	var rec world.WorldStateRecord
	if err := json.Unmarshal(v.Data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal world state for entity %d: %w", v.EntityID, err)
	}
	rec.LocationID = v.EntityID
	return &rec, nil
}
