// Package engine turns player commands into graph traversals, world state
// changes and narration.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/wayfarer/internal/retrieval"
	"github.com/jwebster45206/wayfarer/pkg/graph"
	"github.com/jwebster45206/wayfarer/pkg/prompts"
	"github.com/jwebster45206/wayfarer/pkg/storage"
	"github.com/jwebster45206/wayfarer/pkg/world"
	"github.com/jwebster45206/wayfarer/pkg/worldstate"
)

// ErrEmptyCommand is returned for blank input.
var ErrEmptyCommand = errors.New("empty command")

// Narrator resolves input the command parser does not recognize.
type Narrator interface {
	Narrate(ctx context.Context, input string, rc *retrieval.Context) (*prompts.Narration, error)
}

// CommandRecorder counts handled commands.
type CommandRecorder interface {
	ObserveCommand(verb string)
}

// CommandPublisher announces handled commands.
type CommandPublisher interface {
	PublishCommand(ctx context.Context, sessionID uuid.UUID, locationID int64, input, verb string) error
}

// Response is the result of one command.
type Response struct {
	Verb     string                  `json:"verb"`
	Action   string                  `json:"action"`
	Message  string                  `json:"message"`
	Location *retrieval.LocationView `json:"location,omitempty"`
	Exits    []string                `json:"exits,omitempty"`
	Outcome  *world.TraversalOutcome `json:"outcome,omitempty"`
	SaveID   int64                   `json:"save_id,omitempty"`
}

type Engine struct {
	store     storage.EntityStore
	graph     *graph.Manager
	tracker   *worldstate.Tracker
	retriever *retrieval.Retriever
	narrator  Narrator
	recorder  CommandRecorder
	publisher CommandPublisher
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithNarrator sets the fallback for unrecognized input. Without one the
// engine answers that it does not understand.
func WithNarrator(n Narrator) Option {
	return func(e *Engine) { e.narrator = n }
}

func WithRecorder(r CommandRecorder) Option {
	return func(e *Engine) { e.recorder = r }
}

func WithPublisher(p CommandPublisher) Option {
	return func(e *Engine) { e.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func New(store storage.EntityStore, g *graph.Manager, tracker *worldstate.Tracker, retriever *retrieval.Retriever, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		graph:     g,
		tracker:   tracker,
		retriever: retriever,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Begin records the arrival at the session's starting location and describes it.
func (e *Engine) Begin(ctx context.Context, s *Session) (*Response, error) {
	if _, err := e.tracker.RecordVisit(ctx, s.CurrentLocation); err != nil {
		return nil, fmt.Errorf("failed to record arrival: %w", err)
	}
	s.discover(s.CurrentLocation)
	resp, err := e.look(ctx, s)
	if err != nil {
		return nil, err
	}
	e.logger.Info("Session started", "session_id", s.ID, "location_id", s.CurrentLocation)
	return resp, nil
}

// Execute runs one player command against the session. Expected game
// conditions are answered in the response; errors mean the world could not be
// read or written.
func (e *Engine) Execute(ctx context.Context, s *Session, input string) (*Response, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyCommand
	}

	cmd := parseCommand(input)
	if cmd.verb == VerbUnknown {
		// A bare exit name is a move.
		if _, err := e.graph.GetEdge(s.CurrentLocation, cmd.raw); err == nil {
			cmd = command{verb: VerbGo, arg: cmd.raw, raw: cmd.raw}
		} else if e.narrator != nil {
			cmd.verb = VerbNarrate
		}
	}

	resp, err := e.dispatch(ctx, s, cmd)
	if err != nil {
		e.logger.Error("Command failed", "session_id", s.ID, "verb", cmd.verb, "error", err)
		return nil, err
	}
	resp.Verb = cmd.verb
	if resp.Action == "" {
		resp.Action = cmd.verb
	}

	e.record(ctx, s, input, resp)
	if e.recorder != nil {
		e.recorder.ObserveCommand(resp.Verb)
	}
	if e.publisher != nil {
		if err := e.publisher.PublishCommand(ctx, s.ID, s.CurrentLocation, input, resp.Verb); err != nil {
			e.logger.Warn("Failed to publish command", "session_id", s.ID, "error", err)
		}
	}

	e.logger.Debug("Command handled", "session_id", s.ID, "verb", resp.Verb, "location_id", s.CurrentLocation)
	return resp, nil
}

func (e *Engine) dispatch(ctx context.Context, s *Session, cmd command) (*Response, error) {
	switch cmd.verb {
	case VerbLook:
		return e.look(ctx, s)
	case VerbExits:
		return e.exits(s)
	case VerbGo:
		return e.move(ctx, s, cmd.arg)
	case VerbTake:
		return e.take(ctx, s, cmd.arg)
	case VerbInventory:
		return e.inventory(s), nil
	case VerbHistory:
		return e.history(ctx, s)
	case VerbSave:
		return e.save(ctx, s, cmd.arg)
	case VerbLoad:
		return e.load(ctx, s, cmd.arg)
	case VerbHelp:
		return &Response{Message: helpText}, nil
	default:
		return e.narrate(ctx, s, cmd.raw)
	}
}

// record appends the command to the action log. The command has already
// taken effect, so failures are only logged.
func (e *Engine) record(ctx context.Context, s *Session, input string, resp *Response) {
	action := &retrieval.Action{
		SessionID:  s.ID.String(),
		Input:      input,
		Type:       resp.Action,
		Result:     resp.Message,
		LocationID: s.CurrentLocation,
		Timestamp:  e.now().UTC(),
	}
	if _, err := e.store.Create(ctx, action.ToEntity()); err != nil {
		e.logger.Warn("Failed to record action", "session_id", s.ID, "error", err)
	}
}
