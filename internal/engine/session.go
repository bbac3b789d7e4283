package engine

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// Session is one player's position in the world.
type Session struct {
	ID                  uuid.UUID `json:"id"`
	CurrentLocation     int64     `json:"current_location"`
	Inventory           []string  `json:"inventory"`
	DiscoveredLocations []int64   `json:"discovered_locations"`
	StartedAt           time.Time `json:"started_at"`
}

// NewSession starts a session at the given location.
func NewSession(startID int64, now time.Time) *Session {
	return &Session{
		ID:                  uuid.New(),
		CurrentLocation:     startID,
		Inventory:           []string{},
		DiscoveredLocations: []int64{},
		StartedAt:           now.UTC(),
	}
}

func (s *Session) Clone() *Session {
	c := *s
	c.Inventory = append([]string{}, s.Inventory...)
	c.DiscoveredLocations = append([]int64{}, s.DiscoveredLocations...)
	return &c
}

func (s *Session) discover(locationID int64) {
	for _, id := range s.DiscoveredLocations {
		if id == locationID {
			return
		}
	}
	s.DiscoveredLocations = append(s.DiscoveredLocations, locationID)
}

func (s *Session) carries(item string) bool {
	for _, held := range s.Inventory {
		if held == item {
			return true
		}
	}
	return false
}

type sessionEntry struct {
	mu      sync.Mutex
	session *Session
}

// Sessions keeps play sessions in memory. Commands on one session run one at a time.
type Sessions struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*sessionEntry
}

func NewSessions() *Sessions {
	return &Sessions{entries: make(map[uuid.UUID]*sessionEntry)}
}

// Add registers s and returns a copy of it.
func (ss *Sessions) Add(s *Session) *Session {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.entries[s.ID] = &sessionEntry{session: s.Clone()}
	return s.Clone()
}

// Get returns a copy of the session.
func (ss *Sessions) Get(id uuid.UUID) (*Session, error) {
	entry, err := ss.entry(id)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.session.Clone(), nil
}

// With runs fn with exclusive access to the session.
func (ss *Sessions) With(id uuid.UUID, fn func(*Session) error) error {
	entry, err := ss.entry(id)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return fn(entry.session)
}

func (ss *Sessions) Len() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.entries)
}

func (ss *Sessions) entry(id uuid.UUID) (*sessionEntry, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	entry, ok := ss.entries[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return entry, nil
}
