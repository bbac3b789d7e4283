package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/wayfarer/internal/retrieval"
	"github.com/jwebster45206/wayfarer/pkg/graph"
	"github.com/jwebster45206/wayfarer/pkg/prompts"
	"github.com/jwebster45206/wayfarer/pkg/storage"
	"github.com/jwebster45206/wayfarer/pkg/world"
	"github.com/jwebster45206/wayfarer/pkg/worldstate"
)

type stubNarrator struct {
	narration *prompts.Narration
	err       error
	inputs    []string
}

func (n *stubNarrator) Narrate(ctx context.Context, input string, rc *retrieval.Context) (*prompts.Narration, error) {
	n.inputs = append(n.inputs, input)
	return n.narration, n.err
}

type countingRecorder struct {
	mu    sync.Mutex
	verbs []string
}

func (r *countingRecorder) ObserveCommand(verb string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verbs = append(r.verbs, verb)
}

type capturePublisher struct {
	verbs []string
}

func (p *capturePublisher) PublishCommand(ctx context.Context, sessionID uuid.UUID, locationID int64, input, verb string) error {
	p.verbs = append(p.verbs, verb)
	return nil
}

type fixture struct {
	store   *storage.MemoryStore
	graph   *graph.Manager
	tracker *worldstate.Tracker
	engine  *Engine
	hall    *world.Location
	library *world.Location
	session *Session
}

func setup(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := storage.NewMemoryStore()
	tracker := worldstate.NewTracker(store, log)
	synth := graph.SynthesizerFunc(func(ctx context.Context, req graph.SynthesisRequest) (*graph.SynthesisResult, error) {
		return &graph.SynthesisResult{Name: "Sacred Garden", Description: "A fountain trickles."}, nil
	})
	g := graph.New(store, synth, tracker, graph.WithLogger(log))
	require.NoError(t, g.Load(ctx))

	hall, err := g.CreateLocation(ctx, &world.Location{
		Name:        "Ancient Temple Entrance",
		Description: "A grand entrance hall.",
		Items:       []string{"torch", "hieroglyphs"},
	})
	require.NoError(t, err)
	library, err := g.CreateLocation(ctx, &world.Location{
		Name:        "Ancient Library",
		Description: "Scrolls everywhere.",
		Items:       []string{"glowing_book"},
	})
	require.NoError(t, err)
	_, err = g.AddConnection(ctx, hall.ID, "east", world.ConfirmedTo(library.ID, "a dusty arch"))
	require.NoError(t, err)
	_, err = g.AddConnection(ctx, hall.ID, "north", world.Placeholder("a dark passage"))
	require.NoError(t, err)

	r := retrieval.New(store, g, tracker, log)
	e := New(store, g, tracker, r, append([]Option{WithLogger(log)}, opts...)...)

	s := NewSession(hall.ID, time.Now())
	_, err = e.Begin(ctx, s)
	require.NoError(t, err)

	return &fixture{store: store, graph: g, tracker: tracker, engine: e, hall: hall, library: library, session: s}
}

func (f *fixture) exec(t *testing.T, input string) *Response {
	t.Helper()
	resp, err := f.engine.Execute(context.Background(), f.session, input)
	require.NoError(t, err)
	return resp
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input string
		verb  string
		arg   string
	}{
		{"look", VerbLook, ""},
		{"  LOOK   around ", VerbLook, ""},
		{"look at the altar", VerbUnknown, ""},
		{"go north", VerbGo, "north"},
		{"walk to the garden", VerbGo, "the garden"},
		{"go", VerbUnknown, ""},
		{"take torch", VerbTake, "torch"},
		{"pick up the glowing book", VerbTake, "the glowing book"},
		{"i", VerbInventory, ""},
		{"history", VerbHistory, ""},
		{"save", VerbSave, ""},
		{"save before the boss", VerbSave, "before the boss"},
		{"load 12", VerbLoad, "12"},
		{"load", VerbUnknown, ""},
		{"dance wildly", VerbUnknown, ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cmd := parseCommand(tt.input)
			assert.Equal(t, tt.verb, cmd.verb)
			if tt.verb != VerbUnknown {
				assert.Equal(t, tt.arg, cmd.arg)
			}
		})
	}
}

func TestBegin(t *testing.T) {
	f := setup(t)

	state, err := f.tracker.Current(context.Background(), f.hall.ID)
	require.NoError(t, err)
	assert.True(t, state.Visited)
	assert.Equal(t, []int64{f.hall.ID}, f.session.DiscoveredLocations)
}

func TestExecute_Look(t *testing.T) {
	f := setup(t)

	resp := f.exec(t, "look")
	assert.Equal(t, VerbLook, resp.Verb)
	assert.Contains(t, resp.Message, "Ancient Temple Entrance")
	assert.Contains(t, resp.Message, "You see: torch, hieroglyphs.")
	assert.Equal(t, []string{"east", "north"}, resp.Exits)
	require.NotNil(t, resp.Location)
	assert.Equal(t, f.hall.ID, resp.Location.ID)
}

func TestExecute_Exits(t *testing.T) {
	f := setup(t)

	resp := f.exec(t, "exits")
	assert.Contains(t, resp.Message, "east: a dusty arch")
	assert.Contains(t, resp.Message, "north: a dark passage")
}

func TestExecute_Go(t *testing.T) {
	t.Run("confirmed edge is a visit", func(t *testing.T) {
		f := setup(t)
		resp := f.exec(t, "go east")
		require.NotNil(t, resp.Outcome)
		assert.Equal(t, world.OutcomeVisit, resp.Outcome.Kind)
		assert.Equal(t, f.library.ID, f.session.CurrentLocation)
		assert.Contains(t, resp.Message, "Ancient Library")
		assert.Equal(t, []string{"west"}, resp.Exits)
		assert.ElementsMatch(t, []int64{f.hall.ID, f.library.ID}, f.session.DiscoveredLocations)
	})

	t.Run("bare exit name and abbreviation", func(t *testing.T) {
		f := setup(t)
		resp := f.exec(t, "e")
		assert.Equal(t, VerbGo, resp.Verb)
		assert.Equal(t, f.library.ID, f.session.CurrentLocation)

		f.exec(t, "west")
		assert.Equal(t, f.hall.ID, f.session.CurrentLocation)
	})

	t.Run("placeholder materializes", func(t *testing.T) {
		f := setup(t)
		resp := f.exec(t, "go north")
		require.NotNil(t, resp.Outcome)
		assert.Equal(t, world.OutcomeMaterialized, resp.Outcome.Kind)
		assert.Contains(t, resp.Message, "Sacred Garden")
		assert.Contains(t, resp.Exits, "south")
	})

	t.Run("unknown exit is blocked", func(t *testing.T) {
		f := setup(t)
		resp := f.exec(t, "go up")
		assert.Equal(t, msgBlocked, resp.Message)
		assert.Equal(t, f.hall.ID, f.session.CurrentLocation)
	})
}

func TestExecute_GoSynthesisFailure(t *testing.T) {
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.NewMemoryStore()
	tracker := worldstate.NewTracker(store, log)
	synth := graph.SynthesizerFunc(func(ctx context.Context, req graph.SynthesisRequest) (*graph.SynthesisResult, error) {
		return nil, errors.New("model offline")
	})
	g := graph.New(store, synth, tracker, graph.WithLogger(log))
	require.NoError(t, g.Load(ctx))
	hall, err := g.CreateLocation(ctx, &world.Location{Name: "Hall"})
	require.NoError(t, err)
	_, err = g.AddConnection(ctx, hall.ID, "north", world.Placeholder(""))
	require.NoError(t, err)

	e := New(store, g, tracker, retrieval.New(store, g, tracker, log), WithLogger(log))
	s := NewSession(hall.ID, time.Now())

	resp, err := e.Execute(ctx, s, "north")
	require.NoError(t, err)
	assert.Equal(t, msgSynthesis, resp.Message)
	assert.Equal(t, world.ReasonSynthesisFailed, resp.Outcome.Reason)
	assert.Equal(t, hall.ID, s.CurrentLocation)
}

func TestExecute_Take(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	resp := f.exec(t, "take the torch")
	assert.Equal(t, "You take the torch.", resp.Message)
	assert.Equal(t, []string{"torch"}, f.session.Inventory)

	state, err := f.tracker.Current(ctx, f.hall.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"torch"}, state.DiscoveredItems)

	resp = f.exec(t, "take torch")
	assert.Equal(t, "You don't see any torch here.", resp.Message)

	look := f.exec(t, "look")
	assert.Equal(t, []string{"hieroglyphs"}, look.Location.Items)

	f.exec(t, "east")
	resp = f.exec(t, "pick up glowing book")
	assert.Equal(t, "You take the glowing book.", resp.Message)

	inv := f.exec(t, "inventory")
	assert.Equal(t, "You are carrying: torch, glowing book.", inv.Message)
}

func TestExecute_History(t *testing.T) {
	f := setup(t)

	resp := f.exec(t, "history")
	assert.Equal(t, "You haven't done anything yet.", resp.Message)

	f.exec(t, "look")
	f.exec(t, "go east")
	resp = f.exec(t, "history")
	assert.Equal(t, "> history\n> look\n> go east", resp.Message)

	other := NewSession(f.hall.ID, time.Now())
	resp, err := f.engine.Execute(context.Background(), other, "history")
	require.NoError(t, err)
	assert.Equal(t, "You haven't done anything yet.", resp.Message)
}

func TestExecute_RecordsActions(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.exec(t, "go east")

	entities, err := f.store.List(ctx, storage.KindAction)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	a, err := retrieval.ActionFromEntity(entities[0])
	require.NoError(t, err)
	assert.Equal(t, "go east", a.Input)
	assert.Equal(t, VerbGo, a.Type)
	assert.Equal(t, f.library.ID, a.LocationID)
	assert.Equal(t, f.session.ID.String(), a.SessionID)
}

func TestExecute_RecordFailureDoesNotFailCommand(t *testing.T) {
	f := setup(t)
	f.store.FailOn(storage.OpCreate, errors.New("disk full"))

	resp := f.exec(t, "go east")
	assert.Equal(t, f.library.ID, f.session.CurrentLocation)
	assert.Equal(t, world.OutcomeVisit, resp.Outcome.Kind)
}

func TestExecute_SaveAndLoad(t *testing.T) {
	f := setup(t)

	f.exec(t, "take torch")
	f.exec(t, "go east")
	saved := f.exec(t, "save library")
	require.NotZero(t, saved.SaveID)
	assert.Contains(t, saved.Message, "Game saved successfully!")

	f.exec(t, "west")
	f.session.Inventory = nil

	loaded := f.exec(t, "load "+itoa(saved.SaveID))
	assert.True(t, strings.HasPrefix(loaded.Message, "Game loaded successfully!"))
	assert.Equal(t, f.library.ID, f.session.CurrentLocation)
	assert.Equal(t, []string{"torch"}, f.session.Inventory)

	t.Run("bad ids", func(t *testing.T) {
		assert.Equal(t, msgBadSave, f.exec(t, "load 9999").Message)
		assert.Equal(t, msgBadSave, f.exec(t, "load "+itoa(f.hall.ID)).Message)
		assert.Contains(t, f.exec(t, "load abc").Message, "valid save ID")
	})
}

func TestExecute_Narration(t *testing.T) {
	t.Run("without narrator", func(t *testing.T) {
		f := setup(t)
		resp := f.exec(t, "dance wildly")
		assert.Equal(t, VerbUnknown, resp.Verb)
		assert.Equal(t, msgNotUnderstood, resp.Message)
	})

	t.Run("with narrator", func(t *testing.T) {
		n := &stubNarrator{narration: &prompts.Narration{
			Action:       "examine",
			Response:     "The glyphs tell of a flood.",
			StateChanges: map[string]any{"glyphs": "read"},
		}}
		f := setup(t, WithNarrator(n))

		resp := f.exec(t, "read the hieroglyphs")
		assert.Equal(t, VerbNarrate, resp.Verb)
		assert.Equal(t, "examine", resp.Action)
		assert.Equal(t, "The glyphs tell of a flood.", resp.Message)
		assert.Equal(t, []string{"read the hieroglyphs"}, n.inputs)

		state, err := f.tracker.Current(context.Background(), f.hall.ID)
		require.NoError(t, err)
		assert.Equal(t, "read", state.EnvironmentalChanges["glyphs"])
	})

	t.Run("narrator error", func(t *testing.T) {
		f := setup(t, WithNarrator(&stubNarrator{err: context.Canceled}))
		_, err := f.engine.Execute(context.Background(), f.session, "sing")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestExecute_Hooks(t *testing.T) {
	rec := &countingRecorder{}
	pub := &capturePublisher{}
	f := setup(t, WithRecorder(rec), WithPublisher(pub))

	f.exec(t, "look")
	f.exec(t, "e")
	assert.Equal(t, []string{VerbLook, VerbGo}, rec.verbs)
	assert.Equal(t, []string{VerbLook, VerbGo}, pub.verbs)
}

func TestExecute_EmptyInput(t *testing.T) {
	f := setup(t)
	_, err := f.engine.Execute(context.Background(), f.session, "   ")
	assert.ErrorIs(t, err, ErrEmptyCommand)
}

func TestExecute_StoreUnavailable(t *testing.T) {
	f := setup(t)
	f.store.FailOn(storage.OpGet, errors.New("connection refused"))

	_, err := f.engine.Execute(context.Background(), f.session, "look")
	assert.ErrorIs(t, err, world.ErrStoreUnavailable)
}

func TestSessions(t *testing.T) {
	ss := NewSessions()
	s := ss.Add(NewSession(1, time.Now()))

	got, err := ss.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.CurrentLocation)

	got.CurrentLocation = 99
	again, _ := ss.Get(s.ID)
	assert.Equal(t, int64(1), again.CurrentLocation, "Get returns a copy")

	require.NoError(t, ss.With(s.ID, func(s *Session) error {
		s.CurrentLocation = 2
		return nil
	}))
	again, _ = ss.Get(s.ID)
	assert.Equal(t, int64(2), again.CurrentLocation)

	_, err = ss.Get(uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, ss.With(uuid.New(), func(*Session) error { return nil }), ErrSessionNotFound)
	assert.Equal(t, 1, ss.Len())
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
