// Package graph owns the Connection Table: the authoritative map of every
// location's named connections. It resolves traversals, materializes
// placeholder locations through a ContentSynthesizer and keeps every confirmed
// edge reciprocated.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jwebster45206/wayfarer/pkg/storage"
	"github.com/jwebster45206/wayfarer/pkg/world"
	"github.com/jwebster45206/wayfarer/pkg/worldstate"
)

// LocationSummary is a light entry for listings.
type LocationSummary struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Connections int    `json:"connections"`
}

// Manager is the sole mutator of the Connection Table.
//
// Lock order is writeMu, then mu. writeMu serializes every persisted mutation;
// mu guards the in-memory table and is never held across a synthesizer call.
type Manager struct {
	store     storage.EntityStore
	synth     ContentSynthesizer
	tracker   *worldstate.Tracker
	logger    *slog.Logger
	timeout   time.Duration
	now       func() time.Time
	publisher Publisher
	recorder  Recorder

	writeMu sync.Mutex

	mu            sync.RWMutex
	table         map[int64]map[string]world.ConnectionEdge
	names         map[int64]string
	materializing map[string]struct{}

	flights singleflight.Group
}

// New creates a manager. Call Load before serving traversals.
func New(store storage.EntityStore, synth ContentSynthesizer, tracker *worldstate.Tracker, opts ...Option) *Manager {
	m := &Manager{
		store:         store,
		synth:         synth,
		tracker:       tracker,
		logger:        slog.Default(),
		timeout:       DefaultSynthesisTimeout,
		now:           time.Now,
		table:         make(map[int64]map[string]world.ConnectionEdge),
		names:         make(map[int64]string),
		materializing: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func edgeKey(locationID int64, name string) string {
	return fmt.Sprintf("%d/%s", locationID, name)
}

// flightKey groups traversals that would materialize the same location. Edges
// with a target share the target's flight, so every edge into a lost location
// joins one synthesis.
func flightKey(locationID int64, name string, edge world.ConnectionEdge) string {
	if edge.TargetID != 0 {
		return fmt.Sprintf("location:%d", edge.TargetID)
	}
	return "edge:" + edgeKey(locationID, name)
}

func storeErr(action string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", action, world.ErrStoreUnavailable, err)
}

// Load rebuilds the Connection Table from the persisted locations and validates
// bidirectional closure. Any previously loaded table is replaced. A confirmed
// edge to a location missing from the store fails the load like a missing
// reciprocal does.
func (m *Manager) Load(ctx context.Context) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	entities, err := m.store.List(ctx, storage.KindLocation)
	if err != nil {
		return storeErr("list locations", err)
	}

	table := make(map[int64]map[string]world.ConnectionEdge, len(entities))
	names := make(map[int64]string, len(entities))
	for _, e := range entities {
		loc, err := world.LocationFromEntity(e)
		if err != nil {
			return fmt.Errorf("failed to decode location %d: %w", e.ID, err)
		}
		table[loc.ID] = loc.Connections
		names[loc.ID] = loc.Name
	}

	m.mu.Lock()
	m.table = table
	m.names = names
	m.mu.Unlock()

	if err := m.ValidateBidirectionalClosure(); err != nil {
		m.logger.Error("Connection table failed closure validation", "error", err)
		return err
	}

	m.logger.Info("Connection table loaded", "locations", len(table))
	return nil
}

// ValidateBidirectionalClosure checks that every confirmed edge points at a
// loaded location holding a confirmed reciprocal. The first violation is
// returned as a *world.ConsistencyError.
func (m *Manager) ValidateBidirectionalClosure() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, id := range sortedIDs(m.table) {
		conns := m.table[id]
		for _, name := range sortedNames(conns) {
			edge := conns[name]
			if !edge.Confirmed() {
				continue
			}
			targetConns, ok := m.table[edge.TargetID]
			if !ok {
				return &world.ConsistencyError{
					LocationID: id,
					Connection: name,
					TargetID:   edge.TargetID,
					Reason:     "target location missing",
				}
			}
			if _, ok := findReciprocal(targetConns, id); !ok {
				return &world.ConsistencyError{
					LocationID: id,
					Connection: name,
					TargetID:   edge.TargetID,
					Reason:     "missing reciprocal edge",
				}
			}
		}
	}
	return nil
}

// GetEdge looks up a connection. Names match exactly first, then after
// normalization ("N" finds "north"). Unknown locations and connections both
// return an error wrapping world.ErrNotFound.
func (m *Manager) GetEdge(locationID int64, name string) (world.ConnectionEdge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conns, ok := m.table[locationID]
	if !ok {
		return world.ConnectionEdge{}, fmt.Errorf("location %d: %w", locationID, world.ErrNotFound)
	}
	key, ok := resolveName(conns, name)
	if !ok {
		return world.ConnectionEdge{}, fmt.Errorf("connection %q at location %d: %w", name, locationID, world.ErrNotFound)
	}
	return conns[key], nil
}

// CurrentConnections returns a copy of a location's connections.
func (m *Manager) CurrentConnections(locationID int64) (map[string]world.ConnectionEdge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conns, ok := m.table[locationID]
	if !ok {
		return nil, fmt.Errorf("location %d: %w", locationID, world.ErrNotFound)
	}
	return world.CopyConnections(conns), nil
}

// EdgeState reports where a connection is in its lifecycle.
func (m *Manager) EdgeState(locationID int64, name string) (world.EdgeState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conns, ok := m.table[locationID]
	if !ok {
		return world.EdgeStatePlaceholder, fmt.Errorf("location %d: %w", locationID, world.ErrNotFound)
	}
	key, ok := resolveName(conns, name)
	if !ok {
		return world.EdgeStatePlaceholder, fmt.Errorf("connection %q at location %d: %w", name, locationID, world.ErrNotFound)
	}
	if _, busy := m.materializing[edgeKey(locationID, key)]; busy {
		return world.EdgeStateMaterializing, nil
	}
	if conns[key].Confirmed() {
		return world.EdgeStateConfirmed, nil
	}
	return world.EdgeStatePlaceholder, nil
}

// Locations lists every loaded location ordered by id.
func (m *Manager) Locations() []LocationSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]LocationSummary, 0, len(m.table))
	for _, id := range sortedIDs(m.table) {
		out = append(out, LocationSummary{ID: id, Name: m.names[id], Connections: len(m.table[id])})
	}
	return out
}

// Location returns a snapshot of a location: the stored record with the
// in-memory connections laid over it.
func (m *Manager) Location(ctx context.Context, id int64) (*world.Location, error) {
	m.mu.RLock()
	conns, ok := m.table[id]
	if ok {
		conns = world.CopyConnections(conns)
	}
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("location %d: %w", id, world.ErrNotFound)
	}

	e, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, storeErr(fmt.Sprintf("get location %d", id), err)
	}
	if e == nil {
		return nil, fmt.Errorf("location %d is not in the store: %w", id, world.ErrNotFound)
	}
	loc, err := world.LocationFromEntity(e)
	if err != nil {
		return nil, err
	}
	loc.Connections = conns
	return loc, nil
}

// CreateLocation persists a new location with no connections, registers it in
// the table and initializes its world state. Seeding uses it before wiring
// connections with AddConnection.
func (m *Manager) CreateLocation(ctx context.Context, loc *world.Location) (*world.Location, error) {
	if loc == nil || strings.TrimSpace(loc.Name) == "" {
		return nil, fmt.Errorf("location name is required: %w", world.ErrInvalidConnection)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	created := loc.Clone()
	created.Connections = map[string]world.ConnectionEdge{}
	e, err := created.ToEntity()
	if err != nil {
		return nil, err
	}
	id, err := m.store.Create(ctx, e)
	if err != nil {
		if errors.Is(err, storage.ErrExists) {
			return nil, fmt.Errorf("location %d already exists: %w", created.ID, world.ErrInvalidConnection)
		}
		return nil, storeErr("create location", err)
	}
	created.ID = id
	created.CreatedAt = e.CreatedAt
	created.UpdatedAt = e.UpdatedAt

	m.mu.Lock()
	m.table[id] = map[string]world.ConnectionEdge{}
	m.names[id] = created.Name
	m.mu.Unlock()

	if m.tracker != nil {
		if _, err := m.tracker.Initialize(ctx, id); err != nil {
			return nil, storeErr("initialize world state", err)
		}
	}

	m.logger.Info("Location created", "location_id", id, "name", created.Name)
	return created, nil
}

// persistConnections writes conns as the location's connection map. Callers hold writeMu.
func (m *Manager) persistConnections(ctx context.Context, locationID int64, conns map[string]world.ConnectionEdge) error {
	e, err := m.store.Get(ctx, locationID)
	if err != nil {
		return storeErr(fmt.Sprintf("get location %d", locationID), err)
	}
	if e == nil {
		return fmt.Errorf("location %d is not in the store: %w", locationID, world.ErrNotFound)
	}
	loc, err := world.LocationFromEntity(e)
	if err != nil {
		return err
	}
	loc.Connections = conns
	updated, err := loc.ToEntity()
	if err != nil {
		return err
	}
	found, err := m.store.Update(ctx, updated)
	if err != nil {
		return storeErr(fmt.Sprintf("update location %d", locationID), err)
	}
	if !found {
		return fmt.Errorf("location %d vanished during update: %w", locationID, world.ErrNotFound)
	}
	return nil
}

// resolveName finds the table key for name: exact match, then normalized match.
func resolveName(conns map[string]world.ConnectionEdge, name string) (string, bool) {
	if _, ok := conns[name]; ok {
		return name, true
	}
	want := world.NormalizeConnectionName(name)
	if want == "" {
		return "", false
	}
	for _, key := range sortedNames(conns) {
		if world.NormalizeConnectionName(key) == want {
			return key, true
		}
	}
	return "", false
}

// findReciprocal returns the name of a confirmed edge in conns that points at target.
func findReciprocal(conns map[string]world.ConnectionEdge, target int64) (string, bool) {
	for _, name := range sortedNames(conns) {
		edge := conns[name]
		if edge.Confirmed() && edge.TargetID == target {
			return name, true
		}
	}
	return "", false
}

func sortedIDs(table map[int64]map[string]world.ConnectionEdge) []int64 {
	ids := make([]int64, 0, len(table))
	for id := range table {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortedNames(conns map[string]world.ConnectionEdge) []string {
	names := make([]string, 0, len(conns))
	for name := range conns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
