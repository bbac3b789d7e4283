package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"
)

// Operation names accepted by MemoryStore.FailOn.
const (
	OpPing        = "ping"
	OpNextID      = "next_id"
	OpCreate      = "create"
	OpGet         = "get"
	OpUpdate      = "update"
	OpDelete      = "delete"
	OpList        = "list"
	OpAppendState = "append_state"
	OpLatestState = "latest_state"
	OpStateList   = "state_versions"
)

// MemoryStore is an in-process EntityStore. It backs STORE_BACKEND=memory and the tests,
// and can be told to fail specific operations.
type MemoryStore struct {
	mu       sync.RWMutex
	seq      int64
	entities map[int64]*Entity
	states   map[int64][]*StateVersion
	stateSeq int64
	failures map[string]error
	calls    map[string]int
	now      func() time.Time
}

// Ensure MemoryStore implements EntityStore interface
var _ EntityStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities: make(map[int64]*Entity),
		states:   make(map[int64][]*StateVersion),
		failures: make(map[string]error),
		calls:    make(map[string]int),
		now:      time.Now,
	}
}

// FailOn makes every subsequent call of op fail with err wrapped as ErrUnavailable.
// A nil err clears the failure.
func (m *MemoryStore) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// Calls returns how many times op has been invoked.
func (m *MemoryStore) Calls(op string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[op]
}

// track counts the call and returns the configured failure, if any. Callers hold m.mu.
func (m *MemoryStore) track(op string) error {
	m.calls[op]++
	if err, ok := m.failures[op]; ok {
		return Unavailable("memory "+op, err)
	}
	return nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.track(OpPing)
}

func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) NextID(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.track(OpNextID); err != nil {
		return 0, err
	}
	m.seq++
	return m.seq, nil
}

func (m *MemoryStore) Create(ctx context.Context, e *Entity) (int64, error) {
	if e == nil {
		return 0, errors.New("entity cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.track(OpCreate); err != nil {
		return 0, err
	}

	stored := e.Clone()
	if stored.ID == 0 {
		m.seq++
		stored.ID = m.seq
	} else {
		if _, exists := m.entities[stored.ID]; exists {
			return 0, ErrExists
		}
		if stored.ID > m.seq {
			m.seq = stored.ID
		}
	}

	now := m.now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	m.entities[stored.ID] = stored

	e.ID = stored.ID
	e.CreatedAt = stored.CreatedAt
	e.UpdatedAt = stored.UpdatedAt
	return stored.ID, nil
}

func (m *MemoryStore) Get(ctx context.Context, id int64) (*Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.track(OpGet); err != nil {
		return nil, err
	}
	return m.entities[id].Clone(), nil
}

func (m *MemoryStore) Update(ctx context.Context, e *Entity) (bool, error) {
	if e == nil {
		return false, errors.New("entity cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.track(OpUpdate); err != nil {
		return false, err
	}
	existing, ok := m.entities[e.ID]
	if !ok {
		return false, nil
	}
	updated := existing.Clone()
	updated.Name = e.Name
	updated.Description = e.Description
	updated.Properties = cloneProperties(e.Properties)
	updated.UpdatedAt = m.now().UTC()
	m.entities[e.ID] = updated
	e.UpdatedAt = updated.UpdatedAt
	return true, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.track(OpDelete); err != nil {
		return false, err
	}
	if _, ok := m.entities[id]; !ok {
		return false, nil
	}
	delete(m.entities, id)
	return true, nil
}

func (m *MemoryStore) List(ctx context.Context, kind string) ([]*Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.track(OpList); err != nil {
		return nil, err
	}
	out := make([]*Entity, 0)
	for _, e := range m.entities {
		if e.Kind == kind {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) AppendStateVersion(ctx context.Context, entityID int64, data json.RawMessage) (*StateVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.track(OpAppendState); err != nil {
		return nil, err
	}
	m.stateSeq++
	v := &StateVersion{
		EntityID:  entityID,
		Seq:       m.stateSeq,
		Data:      append(json.RawMessage(nil), data...),
		CreatedAt: m.now().UTC(),
	}
	m.states[entityID] = append(m.states[entityID], v)
	return copyVersion(v), nil
}

func (m *MemoryStore) LatestStateVersion(ctx context.Context, entityID int64) (*StateVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.track(OpLatestState); err != nil {
		return nil, err
	}
	versions := m.states[entityID]
	if len(versions) == 0 {
		return nil, nil
	}
	return copyVersion(versions[len(versions)-1]), nil
}

func (m *MemoryStore) StateVersions(ctx context.Context, entityID int64) ([]*StateVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.track(OpStateList); err != nil {
		return nil, err
	}
	out := make([]*StateVersion, 0, len(m.states[entityID]))
	for _, v := range m.states[entityID] {
		out = append(out, copyVersion(v))
	}
	return out, nil
}

func copyVersion(v *StateVersion) *StateVersion {
	c := *v
	c.Data = append(json.RawMessage(nil), v.Data...)
	return &c
}
