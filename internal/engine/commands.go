package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jwebster45206/wayfarer/internal/retrieval"
	"github.com/jwebster45206/wayfarer/pkg/storage"
	"github.com/jwebster45206/wayfarer/pkg/world"
)

const (
	VerbLook      = "look"
	VerbExits     = "exits"
	VerbGo        = "go"
	VerbTake      = "take"
	VerbInventory = "inventory"
	VerbHistory   = "history"
	VerbSave      = "save"
	VerbLoad      = "load"
	VerbHelp      = "help"
	VerbNarrate   = "narrate"
	VerbUnknown   = "unknown"
)

const (
	historyLength   = 10
	defaultSaveName = "quicksave"
)

const (
	msgNotUnderstood = "I don't understand that."
	msgBlocked       = "You can't go that way."
	msgTimeout       = "The way ahead is shrouded in mist. Try again in a moment."
	msgSynthesis     = "Something bars the way for now. Try again."
	msgBadSave       = "Error: Invalid save ID or save file corrupted."
)

const helpText = `Commands:
  look              describe where you are
  exits             list the ways out
  go <exit>         travel (or just type the exit name)
  take <item>       pick something up
  inventory         list what you carry
  history           show your recent commands
  save [name]       save your progress
  load <id>         load a saved game
Anything else is up to your imagination.`

type command struct {
	verb string
	arg  string
	raw  string
}

var verbAliases = map[string]string{
	"look":      VerbLook,
	"l":         VerbLook,
	"exits":     VerbExits,
	"go":        VerbGo,
	"walk":      VerbGo,
	"move":      VerbGo,
	"travel":    VerbGo,
	"take":      VerbTake,
	"get":       VerbTake,
	"grab":      VerbTake,
	"inventory": VerbInventory,
	"inv":       VerbInventory,
	"i":         VerbInventory,
	"history":   VerbHistory,
	"save":      VerbSave,
	"load":      VerbLoad,
	"help":      VerbHelp,
}

// parseCommand recognizes the literal command forms. Everything else is VerbUnknown.
func parseCommand(input string) command {
	raw := strings.ToLower(strings.Join(strings.Fields(input), " "))
	cmd := command{verb: VerbUnknown, raw: raw}
	if raw == "" {
		return cmd
	}
	if raw == "look around" {
		cmd.verb = VerbLook
		return cmd
	}
	if rest, ok := strings.CutPrefix(raw, "pick up "); ok {
		cmd.verb, cmd.arg = VerbTake, rest
		return cmd
	}

	head, rest, _ := strings.Cut(raw, " ")
	verb, ok := verbAliases[head]
	if !ok {
		return cmd
	}
	switch verb {
	case VerbGo:
		rest = strings.TrimPrefix(rest, "to ")
		if rest == "" {
			return cmd
		}
	case VerbTake, VerbLoad:
		if rest == "" {
			return cmd
		}
	case VerbLook, VerbExits, VerbInventory, VerbHistory, VerbHelp:
		// "look at the altar" is for the narrator.
		if rest != "" {
			return cmd
		}
	}
	cmd.verb, cmd.arg = verb, rest
	return cmd
}

func (e *Engine) look(ctx context.Context, s *Session) (*Response, error) {
	loc, state, err := e.here(ctx, s)
	if err != nil {
		return nil, err
	}
	view := &retrieval.LocationView{
		ID:          loc.ID,
		Name:        loc.Name,
		Description: loc.Description,
		Items:       retrieval.RemainingItems(loc, state),
	}
	exits := loc.ConnectionNames()
	return &Response{
		Message:  describe(view, exits),
		Location: view,
		Exits:    exits,
	}, nil
}

func (e *Engine) exits(s *Session) (*Response, error) {
	conns, err := e.graph.CurrentConnections(s.CurrentLocation)
	if err != nil {
		return nil, err
	}
	exits := (&world.Location{Connections: conns}).ConnectionNames()
	if len(exits) == 0 {
		return &Response{Message: "There is no way out.", Exits: exits}, nil
	}
	lines := make([]string, 0, len(exits))
	for _, name := range exits {
		line := "  " + name
		if d := conns[name].Description; d != "" {
			line += ": " + d
		}
		lines = append(lines, line)
	}
	return &Response{Message: "Exits:\n" + strings.Join(lines, "\n"), Exits: exits}, nil
}

func (e *Engine) move(ctx context.Context, s *Session, name string) (*Response, error) {
	outcome := e.graph.Traverse(ctx, s.CurrentLocation, name)
	resp := &Response{Outcome: &outcome}

	switch outcome.Kind {
	case world.OutcomeBlocked:
		resp.Message = msgBlocked
		return resp, nil
	case world.OutcomeFailed:
		switch outcome.Reason {
		case world.ReasonTimeout:
			resp.Message = msgTimeout
			return resp, nil
		case world.ReasonSynthesisFailed:
			resp.Message = msgSynthesis
			return resp, nil
		default:
			return nil, fmt.Errorf("failed to traverse %q: %w", name, outcome.Err)
		}
	}

	s.CurrentLocation = outcome.LocationID
	s.discover(outcome.LocationID)

	arrived, err := e.look(ctx, s)
	if err != nil {
		return nil, err
	}
	arrived.Outcome = &outcome
	return arrived, nil
}

func (e *Engine) take(ctx context.Context, s *Session, what string) (*Response, error) {
	loc, state, err := e.here(ctx, s)
	if err != nil {
		return nil, err
	}
	item, ok := matchItem(retrieval.RemainingItems(loc, state), what)
	if !ok {
		return &Response{Message: fmt.Sprintf("You don't see %s here.", withArticle(what))}, nil
	}

	if _, err := e.tracker.ApplyDelta(ctx, loc.ID, world.StateDelta{DiscoveredItems: []string{item}}); err != nil {
		return nil, fmt.Errorf("failed to take %q: %w", item, err)
	}
	if !s.carries(item) {
		s.Inventory = append(s.Inventory, item)
	}
	return &Response{Message: fmt.Sprintf("You take the %s.", displayItem(item))}, nil
}

func (e *Engine) inventory(s *Session) *Response {
	if len(s.Inventory) == 0 {
		return &Response{Message: "You are not carrying anything."}
	}
	names := make([]string, len(s.Inventory))
	for i, item := range s.Inventory {
		names[i] = displayItem(item)
	}
	return &Response{Message: "You are carrying: " + strings.Join(names, ", ") + "."}
}

func (e *Engine) history(ctx context.Context, s *Session) (*Response, error) {
	entities, err := e.store.List(ctx, storage.KindAction)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	sessionID := s.ID.String()
	var lines []string
	for _, ent := range entities {
		a, err := retrieval.ActionFromEntity(ent)
		if err != nil || a.SessionID != sessionID {
			continue
		}
		lines = append(lines, "> "+a.Input)
	}
	if len(lines) == 0 {
		return &Response{Message: "You haven't done anything yet."}, nil
	}
	if len(lines) > historyLength {
		lines = lines[len(lines)-historyLength:]
	}
	return &Response{Message: strings.Join(lines, "\n")}, nil
}

func (e *Engine) save(ctx context.Context, s *Session, name string) (*Response, error) {
	if name == "" {
		name = defaultSaveName
	}
	props := map[string]any{}
	for key, v := range map[string]any{
		"session_id":           s.ID.String(),
		"current_location":     s.CurrentLocation,
		"inventory":            s.Inventory,
		"discovered_locations": s.DiscoveredLocations,
		"timestamp":            e.now().UTC().Format(time.RFC3339),
	} {
		if err := storage.EncodeProperty(props, key, v); err != nil {
			return nil, err
		}
	}

	id, err := e.store.Create(ctx, &storage.Entity{
		Kind:        storage.KindSave,
		Name:        "Save_" + name,
		Description: "Game save state",
		Properties:  props,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save game: %w", err)
	}
	e.logger.Info("Game saved", "session_id", s.ID, "save_id", id, "name", name)
	return &Response{
		Message: fmt.Sprintf("Game saved successfully! (Save ID: %d)", id),
		SaveID:  id,
	}, nil
}

func (e *Engine) load(ctx context.Context, s *Session, arg string) (*Response, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return &Response{Message: "Error: Please enter a valid save ID (number)."}, nil
	}
	ent, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load save %d: %w", id, err)
	}
	if ent == nil || ent.Kind != storage.KindSave {
		return &Response{Message: msgBadSave}, nil
	}

	var (
		locationID int64
		inventory  []string
		discovered []int64
	)
	if ok, err := storage.DecodeProperty(ent.Properties, "current_location", &locationID); err != nil || !ok {
		return &Response{Message: msgBadSave}, nil
	}
	if _, err := storage.DecodeProperty(ent.Properties, "inventory", &inventory); err != nil {
		return &Response{Message: msgBadSave}, nil
	}
	if _, err := storage.DecodeProperty(ent.Properties, "discovered_locations", &discovered); err != nil {
		return &Response{Message: msgBadSave}, nil
	}
	if _, err := e.graph.CurrentConnections(locationID); err != nil {
		return &Response{Message: msgBadSave}, nil
	}

	s.CurrentLocation = locationID
	s.Inventory = append([]string{}, inventory...)
	s.DiscoveredLocations = append([]int64{}, discovered...)
	s.discover(locationID)

	resp, err := e.look(ctx, s)
	if err != nil {
		return nil, err
	}
	resp.Message = "Game loaded successfully!\n\n" + resp.Message
	e.logger.Info("Game loaded", "session_id", s.ID, "save_id", id)
	return resp, nil
}

func (e *Engine) narrate(ctx context.Context, s *Session, input string) (*Response, error) {
	if e.narrator == nil {
		return &Response{Message: msgNotUnderstood}, nil
	}

	rc, err := e.retriever.RelevantContext(ctx, input, s.CurrentLocation)
	if err != nil {
		return nil, err
	}
	narration, err := e.narrator.Narrate(ctx, input, rc)
	if err != nil {
		return nil, err
	}

	if len(narration.StateChanges) > 0 {
		delta := world.StateDelta{EnvironmentalChanges: narration.StateChanges}
		if _, err := e.tracker.ApplyDelta(ctx, s.CurrentLocation, delta); err != nil {
			e.logger.Warn("Failed to apply narrated changes", "location_id", s.CurrentLocation, "error", err)
		}
	}
	return &Response{Action: narration.Action, Message: narration.Response}, nil
}

func (e *Engine) here(ctx context.Context, s *Session) (*world.Location, *world.WorldStateRecord, error) {
	loc, err := e.graph.Location(ctx, s.CurrentLocation)
	if err != nil {
		if errors.Is(err, world.ErrNotFound) {
			return nil, nil, fmt.Errorf("session %s is at an unknown location: %w", s.ID, err)
		}
		return nil, nil, err
	}
	state, err := e.tracker.Current(ctx, loc.ID)
	if err != nil {
		return nil, nil, err
	}
	return loc, state, nil
}

func describe(view *retrieval.LocationView, exits []string) string {
	var b strings.Builder
	b.WriteString(view.Name)
	if view.Description != "" {
		b.WriteString("\n")
		b.WriteString(view.Description)
	}
	if len(view.Items) > 0 {
		names := make([]string, len(view.Items))
		for i, item := range view.Items {
			names[i] = displayItem(item)
		}
		b.WriteString("\n\nYou see: ")
		b.WriteString(strings.Join(names, ", "))
		b.WriteString(".")
	}
	if len(exits) > 0 {
		b.WriteString("\nExits: ")
		b.WriteString(strings.Join(exits, ", "))
		b.WriteString(".")
	} else {
		b.WriteString("\nThere is no way out.")
	}
	return b.String()
}

func itemKey(s string) string {
	s = strings.ToLower(strings.ReplaceAll(s, "_", " "))
	s = strings.Join(strings.Fields(s), " ")
	for _, article := range []string{"the ", "a ", "an ", "some "} {
		s = strings.TrimPrefix(s, article)
	}
	return s
}

// matchItem finds the item named by what, ignoring case, articles and underscores.
func matchItem(items []string, what string) (string, bool) {
	want := itemKey(what)
	if want == "" {
		return "", false
	}
	for _, item := range items {
		if itemKey(item) == want {
			return item, true
		}
	}
	return "", false
}

func displayItem(item string) string {
	return strings.ReplaceAll(item, "_", " ")
}

func withArticle(what string) string {
	what = strings.TrimSpace(what)
	if strings.HasPrefix(what, "the ") || strings.HasPrefix(what, "a ") || strings.HasPrefix(what, "an ") {
		return what
	}
	return "any " + what
}
