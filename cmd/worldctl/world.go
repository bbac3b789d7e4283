package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jwebster45206/wayfarer/internal/config"
	"github.com/jwebster45206/wayfarer/internal/logger"
	"github.com/jwebster45206/wayfarer/internal/services"
	"github.com/jwebster45206/wayfarer/internal/storage"
	"github.com/jwebster45206/wayfarer/pkg/graph"
	entitystore "github.com/jwebster45206/wayfarer/pkg/storage"
	"github.com/jwebster45206/wayfarer/pkg/worldstate"
)

// worldDeps is an opened store with a loaded connection table.
type worldDeps struct {
	cfg     *config.Config
	log     *slog.Logger
	store   entitystore.EntityStore
	tracker *worldstate.Tracker
	graph   *graph.Manager
}

func (d *worldDeps) Close() {
	if err := d.store.Close(); err != nil {
		d.log.Error("Error closing storage connection", "error", err)
	}
}

// openWorld loads config from the environment, connects the store and loads
// the connection table. Logs go to stderr so stdout stays usable for output
// and for the MCP transport. With synth set, traversals can materialize
// placeholders through the configured LLM provider.
func openWorld(ctx context.Context, synth bool) (*worldDeps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.SetupWriter(cfg, os.Stderr)

	store, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	tracker := worldstate.NewTracker(store, log)

	var synthesizer graph.ContentSynthesizer
	if synth {
		llm, model, err := services.NewLLMService(cfg, log)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		if err := llm.InitModel(ctx, model); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to initialize model %s: %w", model, err)
		}
		synthesizer = services.NewLLMSynthesizer(llm, cfg.ContentRating, log)
	}

	g := graph.New(store, synthesizer, tracker,
		graph.WithLogger(log),
		graph.WithSynthesisTimeout(cfg.SynthesisTimeout))
	if err := g.Load(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return &worldDeps{cfg: cfg, log: log, store: store, tracker: tracker, graph: g}, nil
}
