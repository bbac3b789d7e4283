package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/wayfarer/internal/config"
	"github.com/jwebster45206/wayfarer/internal/engine"
	"github.com/jwebster45206/wayfarer/internal/handlers"
	"github.com/jwebster45206/wayfarer/internal/logger"
	"github.com/jwebster45206/wayfarer/internal/metrics"
	"github.com/jwebster45206/wayfarer/internal/middleware"
	"github.com/jwebster45206/wayfarer/internal/retrieval"
	"github.com/jwebster45206/wayfarer/internal/services"
	"github.com/jwebster45206/wayfarer/internal/services/events"
	"github.com/jwebster45206/wayfarer/internal/storage"
	"github.com/jwebster45206/wayfarer/pkg/graph"
	"github.com/jwebster45206/wayfarer/pkg/scenario"
	"github.com/jwebster45206/wayfarer/pkg/worldstate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Wayfarer API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"store_backend", cfg.StoreBackend,
		"llm_provider", cfg.LLMProvider)

	storeCtx, storeCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storeCancel()
	store, err := storage.Open(storeCtx, cfg, log)
	if err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	llm, model, err := services.NewLLMService(cfg, log)
	if err != nil {
		log.Error("Failed to create LLM service", "error", err)
		os.Exit(1)
	}

	// Initialize the model on startup
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	if err := llm.InitModel(ctx, model); err != nil {
		log.Error("Failed to initialize LLM model", "error", err, "model", model)
		os.Exit(1)
	}

	m := metrics.New()
	tracker := worldstate.NewTracker(store, log)

	graphOpts := []graph.Option{
		graph.WithLogger(log),
		graph.WithSynthesisTimeout(cfg.SynthesisTimeout),
		graph.WithRecorder(m),
	}
	engineOpts := []engine.Option{
		engine.WithLogger(log),
		engine.WithNarrator(services.NewLLMNarrator(llm, cfg.ContentRating, log)),
		engine.WithRecorder(m),
	}

	// Live events ride on Redis Pub/Sub, so they are only offered with the redis backend.
	var broadcaster *events.Broadcaster
	if rs, ok := store.(*storage.RedisStore); ok {
		broadcaster = events.NewBroadcaster(rs.Client(), log)
		graphOpts = append(graphOpts, graph.WithPublisher(broadcaster))
		engineOpts = append(engineOpts, engine.WithPublisher(broadcaster))
	}

	synth := services.NewLLMSynthesizer(llm, cfg.ContentRating, log)
	g := graph.New(store, synth, tracker, graphOpts...)
	if err := g.Load(ctx); err != nil {
		log.Error("Failed to load connection table", "error", err)
		os.Exit(1)
	}

	w, err := scenario.LoadFile(cfg.WorldFile)
	if err != nil {
		log.Error("Failed to load world file", "error", err, "path", cfg.WorldFile)
		os.Exit(1)
	}
	seeded, err := scenario.NewSeeder(store, g, tracker, log).Seed(ctx, w, false)
	if err != nil {
		log.Error("Failed to seed world", "error", err)
		os.Exit(1)
	}

	retriever := retrieval.New(store, g, tracker, log)
	eng := engine.New(store, g, tracker, retriever, engineOpts...)
	sessions := engine.NewSessions()

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(store, func() int { return len(g.Locations()) }, log)
	mux.Handle("/health", healthHandler)
	mux.Handle("/metrics", m.Handler())

	locationsHandler := handlers.NewLocationsHandler(g, tracker, log)
	mux.Handle("/v1/locations", locationsHandler)
	mux.Handle("/v1/locations/", locationsHandler)

	mux.Handle("/v1/traverse", handlers.NewTraverseHandler(g, log))

	worldStateHandler := handlers.NewWorldStateHandler(g, tracker, log)
	mux.Handle("/v1/worldstate/", worldStateHandler)

	sessionsHandler := handlers.NewSessionsHandler(eng, sessions, seeded.StartID, log)
	mux.Handle("/v1/sessions", sessionsHandler)
	mux.Handle("/v1/sessions/", sessionsHandler)

	if broadcaster != nil {
		eventsHandler := handlers.NewEventsHandler(broadcaster, log)
		mux.Handle("/v1/events", eventsHandler)
		mux.Handle("/v1/events/", eventsHandler)
	}

	handler := middleware.Logger(log, mux)
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: traversals wait on synthesis and /v1/events streams.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr, "start_id", seeded.StartID)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}
