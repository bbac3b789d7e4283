package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jwebster45206/wayfarer/pkg/graph"
	"github.com/jwebster45206/wayfarer/pkg/storage"
	"github.com/jwebster45206/wayfarer/pkg/world"
	"github.com/jwebster45206/wayfarer/pkg/worldstate"
)

// Property keys written on seeded entities.
const (
	PropKey   = "key"
	PropStart = "start"
)

// seededKinds are wiped by a forced reseed. Actions and saves are left alone.
var seededKinds = []string{storage.KindLocation, storage.KindItem, storage.KindCharacter, storage.KindKnowledge}

// SeedResult describes the world now in the store.
type SeedResult struct {
	StartID   int64            `json:"start_id"`
	Created   bool             `json:"created"`             // false when an existing world was reused
	Locations map[string]int64 `json:"locations,omitempty"` // location key -> id
}

type Seeder struct {
	store   storage.EntityStore
	graph   *graph.Manager
	tracker *worldstate.Tracker
	logger  *slog.Logger
}

func NewSeeder(store storage.EntityStore, g *graph.Manager, tracker *worldstate.Tracker, logger *slog.Logger) *Seeder {
	return &Seeder{
		store:   store,
		graph:   g,
		tracker: tracker,
		logger:  logger,
	}
}

// Seed writes w into the store. A store that already holds locations is
// reused as-is unless force is set, in which case the seeded kinds are deleted
// and the world is written again. The graph must be loaded.
func (s *Seeder) Seed(ctx context.Context, w *World, force bool) (*SeedResult, error) {
	existing, err := s.store.List(ctx, storage.KindLocation)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	if len(existing) > 0 {
		if !force {
			s.logger.Info("Found existing locations, using existing world", "locations", len(existing))
			return existingResult(existing), nil
		}
		if err := s.wipe(ctx); err != nil {
			return nil, err
		}
	}

	s.logger.Info("Creating new world", "world", w.Name, "locations", len(w.Locations))
	ids, err := s.createLocations(ctx, w)
	if err != nil {
		return nil, err
	}
	if err := s.connect(ctx, w, ids); err != nil {
		return nil, err
	}
	entityIDs, err := s.createEntities(ctx, w, ids)
	if err != nil {
		return nil, err
	}
	if err := s.createKnowledge(ctx, w, ids, entityIDs); err != nil {
		return nil, err
	}
	if err := s.graph.ValidateBidirectionalClosure(); err != nil {
		return nil, fmt.Errorf("seeded world is inconsistent: %w", err)
	}

	s.logger.Info("World seeded", "world", w.Name, "start_id", ids[w.Start])
	return &SeedResult{StartID: ids[w.Start], Created: true, Locations: ids}, nil
}

// Existing describes the world already in the store, or returns nil if there is none.
func (s *Seeder) Existing(ctx context.Context) (*SeedResult, error) {
	existing, err := s.store.List(ctx, storage.KindLocation)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	if len(existing) == 0 {
		return nil, nil
	}
	return existingResult(existing), nil
}

// existingResult finds the start among stored locations: the one marked as
// start, else the lowest id.
func existingResult(locations []*storage.Entity) *SeedResult {
	res := &SeedResult{Locations: make(map[string]int64)}
	for _, e := range locations {
		var key string
		if ok, _ := storage.DecodeProperty(e.Properties, PropKey, &key); ok && key != "" {
			res.Locations[key] = e.ID
		}
		var start bool
		if ok, _ := storage.DecodeProperty(e.Properties, PropStart, &start); ok && start && res.StartID == 0 {
			res.StartID = e.ID
		}
	}
	if res.StartID == 0 {
		res.StartID = locations[0].ID
		for _, e := range locations[1:] {
			if e.ID < res.StartID {
				res.StartID = e.ID
			}
		}
	}
	return res
}

func (s *Seeder) wipe(ctx context.Context) error {
	for _, kind := range seededKinds {
		entities, err := s.store.List(ctx, kind)
		if err != nil {
			return fmt.Errorf("failed to list %s entities: %w", kind, err)
		}
		for _, e := range entities {
			if _, err := s.store.Delete(ctx, e.ID); err != nil {
				return fmt.Errorf("failed to delete %s %d: %w", kind, e.ID, err)
			}
		}
		s.logger.Info("Deleted seeded entities", "kind", kind, "count", len(entities))
	}
	return s.graph.Load(ctx)
}

func (s *Seeder) createLocations(ctx context.Context, w *World) (map[string]int64, error) {
	ids := make(map[string]int64, len(w.Locations))
	for _, key := range w.LocationKeys() {
		def := w.Locations[key]
		props := map[string]any{PropKey: key}
		if key == w.Start {
			props[PropStart] = true
		}
		loc, err := s.graph.CreateLocation(ctx, &world.Location{
			Name:        def.Name,
			Description: def.Description,
			Items:       append([]string(nil), def.Items...),
			Properties:  props,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create location %s: %w", key, err)
		}
		ids[key] = loc.ID

		if len(def.State) > 0 {
			delta := world.StateDelta{EnvironmentalChanges: def.State}
			if _, err := s.tracker.ApplyDelta(ctx, loc.ID, delta); err != nil {
				return nil, fmt.Errorf("failed to set initial state of %s: %w", key, err)
			}
		}
	}
	return ids, nil
}

// connect adds every declared connection. A link declared on both sides is
// written once; the second declaration only names the reciprocal.
func (s *Seeder) connect(ctx context.Context, w *World, ids map[string]int64) error {
	for _, key := range w.LocationKeys() {
		def := w.Locations[key]
		id := ids[key]

		names := make([]string, 0, len(def.Connections))
		for name := range def.Connections {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			conn := def.Connections[name]
			if conn.Placeholder {
				if _, err := s.graph.AddConnection(ctx, id, name, world.Placeholder(conn.Description)); err != nil {
					return fmt.Errorf("failed to add placeholder %q to %s: %w", name, key, err)
				}
				continue
			}

			targetID := ids[conn.To]
			if edge, err := s.graph.GetEdge(id, name); err == nil {
				if edge.TargetID == targetID && edge.Confirmed() {
					continue
				}
				return fmt.Errorf("connection %q of %s conflicts with an existing edge to %d: %w",
					name, key, edge.TargetID, world.ErrDuplicateConnection)
			} else if !errors.Is(err, world.ErrNotFound) {
				return err
			}

			target := world.ConfirmedTo(targetID, conn.Description)
			target.ReverseName = conn.Reverse
			if backName, back, ok := declaredBack(w.Locations[conn.To], key); ok {
				target.ReverseName = backName
				target.ReverseDescription = back.Description
			}
			if _, err := s.graph.AddConnection(ctx, id, name, target); err != nil {
				return fmt.Errorf("failed to connect %s %q to %s: %w", key, name, conn.To, err)
			}
		}
	}
	return nil
}

// declaredBack finds the connection the target location declares back to key.
func declaredBack(target LocationDef, key string) (string, ConnectionDef, bool) {
	names := make([]string, 0, len(target.Connections))
	for name := range target.Connections {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if conn := target.Connections[name]; conn.To == key {
			return name, conn, true
		}
	}
	return "", ConnectionDef{}, false
}

func (s *Seeder) createEntities(ctx context.Context, w *World, ids map[string]int64) (map[string]int64, error) {
	out := make(map[string]int64, len(w.Items)+len(w.Characters))
	for _, group := range []struct {
		kind string
		defs []EntityDef
	}{{storage.KindItem, w.Items}, {storage.KindCharacter, w.Characters}} {
		for _, def := range group.defs {
			props := map[string]any{
				PropKey:    def.Key,
				"location": ids[def.Location],
			}
			if len(def.Properties) > 0 {
				props["properties"] = append([]string(nil), def.Properties...)
			}
			if def.State != "" {
				props["state"] = def.State
			}
			id, err := s.store.Create(ctx, &storage.Entity{
				Kind:        group.kind,
				Name:        def.Name,
				Description: def.Description,
				Properties:  props,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to create %s %s: %w", group.kind, def.Key, err)
			}
			out[def.Key] = id
		}
	}
	return out, nil
}

func (s *Seeder) createKnowledge(ctx context.Context, w *World, ids, entityIDs map[string]int64) error {
	for i, k := range w.Knowledge {
		kind := k.Type
		if kind == "" {
			kind = "background"
		}
		meta := map[string]any{"type": kind}
		if k.Location != "" {
			meta["location_id"] = ids[k.Location]
		}
		if k.Item != "" {
			meta["item_id"] = entityIDs[k.Item]
		}
		if k.Character != "" {
			meta["character_id"] = entityIDs[k.Character]
		}
		if _, err := s.store.Create(ctx, &storage.Entity{
			Kind:        storage.KindKnowledge,
			Name:        "Knowledge_" + kind,
			Description: k.Text,
			Properties:  meta,
		}); err != nil {
			return fmt.Errorf("failed to create knowledge #%d: %w", i+1, err)
		}
	}
	return nil
}
