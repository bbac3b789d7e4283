package retrieval

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/wayfarer/pkg/graph"
	"github.com/jwebster45206/wayfarer/pkg/storage"
	"github.com/jwebster45206/wayfarer/pkg/world"
	"github.com/jwebster45206/wayfarer/pkg/worldstate"
)

type fixture struct {
	store   *storage.MemoryStore
	graph   *graph.Manager
	tracker *worldstate.Tracker
	r       *Retriever
	hall    *world.Location
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := storage.NewMemoryStore()
	tracker := worldstate.NewTracker(store, log)
	g := graph.New(store, nil, tracker, graph.WithLogger(log))
	require.NoError(t, g.Load(ctx))

	hall, err := g.CreateLocation(ctx, &world.Location{
		Name:        "Temple Hall",
		Description: "Pillars rise into darkness.",
		Items:       []string{"candle", "Old Book"},
	})
	require.NoError(t, err)
	_, err = g.AddConnection(ctx, hall.ID, "north", world.Placeholder(""))
	require.NoError(t, err)

	return &fixture{store: store, graph: g, tracker: tracker, r: New(store, g, tracker, log), hall: hall}
}

func (f *fixture) addKnowledge(t *testing.T, text string, meta map[string]any) int64 {
	t.Helper()
	id, err := f.store.Create(context.Background(), &storage.Entity{
		Kind: storage.KindKnowledge, Name: "lore", Description: text, Properties: meta,
	})
	require.NoError(t, err)
	return id
}

func TestRelevantContext_Location(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.tracker.ApplyDelta(ctx, f.hall.ID, world.StateDelta{DiscoveredItems: []string{"old book"}})
	require.NoError(t, err)

	rc, err := f.r.RelevantContext(ctx, "look around", f.hall.ID)
	require.NoError(t, err)

	require.NotNil(t, rc.Location)
	assert.Equal(t, "Temple Hall", rc.Location.Name)
	assert.Equal(t, []string{"candle"}, rc.Location.Items)
	assert.Equal(t, []string{"north"}, rc.Exits)
	require.NotNil(t, rc.State)
	assert.Equal(t, []string{"old book"}, rc.State.DiscoveredItems)
	assert.Empty(t, rc.RecentActions)
	assert.Empty(t, rc.Lore)
}

func TestRelevantContext_UnknownLocation(t *testing.T) {
	f := setup(t)
	_, err := f.r.RelevantContext(context.Background(), "look", 999)
	assert.ErrorIs(t, err, world.ErrNotFound)
}

func TestRelevantContext_RecentActions(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 1; i <= 7; i++ {
		a := &Action{
			SessionID:  "s1",
			Input:      fmt.Sprintf("input %d", i),
			Type:       "look",
			Result:     "You look.",
			LocationID: f.hall.ID,
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
		}
		_, err := f.store.Create(ctx, a.ToEntity())
		require.NoError(t, err)
	}

	rc, err := f.r.RelevantContext(ctx, "look", 0)
	require.NoError(t, err)
	assert.Nil(t, rc.Location)
	require.Len(t, rc.RecentActions, DefaultRecentActions)
	assert.Equal(t, "input 7", rc.RecentActions[0].Input)
	assert.Equal(t, "input 3", rc.RecentActions[4].Input)
	assert.Equal(t, "s1", rc.RecentActions[0].SessionID)
	assert.Equal(t, f.hall.ID, rc.RecentActions[0].LocationID)
	assert.True(t, rc.RecentActions[0].Timestamp.Equal(base.Add(7*time.Minute)))
}

func TestRelevantContext_LoreRanking(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	guardian := f.addKnowledge(t, "The Temple Guardian is a spiritual entity that protects the temple.", map[string]any{"type": "character_background"})
	book := f.addKnowledge(t, "The Book of Ancient Magic contains powerful spells.", nil)
	temple := f.addKnowledge(t, "The temple is an ancient place of worship.", nil)
	f.addKnowledge(t, "Bread is baked at dawn.", nil)
	f.addKnowledge(t, "Spirits linger in old temples.", nil)

	rc, err := f.r.RelevantContext(ctx, "ask the guardian about the ancient temple", 0)
	require.NoError(t, err)
	require.Len(t, rc.Lore, DefaultLoreResults)

	// Query terms: ask, guardian, ancient, temple.
	assert.Equal(t, guardian, rc.Lore[0].ID)
	assert.InDelta(t, 0.5, rc.Lore[0].Score, 1e-9)
	assert.Equal(t, temple, rc.Lore[1].ID)
	assert.Equal(t, book, rc.Lore[2].ID)
	assert.InDelta(t, 0.25, rc.Lore[2].Score, 1e-9)
	assert.Equal(t, "character_background", rc.Lore[0].Metadata["type"])
}

func TestRelevantContext_StoreFailure(t *testing.T) {
	f := setup(t)
	f.store.FailOn(storage.OpList, storage.ErrUnavailable)

	_, err := f.r.RelevantContext(context.Background(), "look", 0)
	assert.ErrorIs(t, err, storage.ErrUnavailable)
}

func TestTerms(t *testing.T) {
	got := Terms("Go NORTH, to the Guardian's hall!")
	assert.Equal(t, map[string]bool{"north": true, "guardian": true, "hall": true}, got)
	assert.Equal(t, 0.0, Overlap(map[string]bool{}, got))
}
