package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

type ConsoleConfig struct {
	APIBaseURL string
	Timeout    time.Duration
	ResumeID   uuid.UUID // zero starts a new session
}

func main() {
	resume := flag.String("session", os.Getenv("SESSION_ID"), "resume an existing session id")
	flag.Parse()

	cfg := &ConsoleConfig{
		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8080"),
		// Moving into an unexplored place waits on content synthesis.
		Timeout: 90 * time.Second,
	}
	if *resume != "" {
		id, err := uuid.Parse(*resume)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid session id %q: %v\n", *resume, err)
			os.Exit(1)
		}
		cfg.ResumeID = id
	}

	api := newAPIClient(&http.Client{Timeout: cfg.Timeout}, cfg.APIBaseURL)
	if !api.testConnection() {
		fmt.Fprintf(os.Stderr, "Could not connect to API. Please ensure the API is running.\nTry: docker-compose up -d\n")
		os.Exit(1)
	}

	p := tea.NewProgram(NewConsoleUI(cfg, api),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
