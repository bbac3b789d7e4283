package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/wayfarer/internal/engine"
	"github.com/jwebster45206/wayfarer/internal/logger"
)

type CommandRequest struct {
	Input string `json:"input"`
}

type SessionResponse struct {
	Session  *engine.Session  `json:"session"`
	Response *engine.Response `json:"response,omitempty"`
}

type SessionsHandler struct {
	engine   *engine.Engine
	sessions *engine.Sessions
	startID  int64
	logger   *slog.Logger
}

// NewSessionsHandler creates the session handler. New sessions begin at startID.
func NewSessionsHandler(e *engine.Engine, sessions *engine.Sessions, startID int64, logger *slog.Logger) *SessionsHandler {
	return &SessionsHandler{
		engine:   e,
		sessions: sessions,
		startID:  startID,
		logger:   logger,
	}
}

// ServeHTTP routes:
// POST /v1/sessions               - start a session at the world's start location
// GET  /v1/sessions/{id}          - read a session
// POST /v1/sessions/{id}/commands - run a player command
func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/v1/sessions")

	if len(parts) == 0 {
		if r.Method != http.MethodPost {
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
			return
		}
		h.handleCreate(w, r)
		return
	}

	sessionID, err := uuid.Parse(parts[0])
	if err != nil {
		h.logger.Warn("Invalid session ID", "id", parts[0], "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid session ID format")
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		s, err := h.sessions.Get(sessionID)
		if err != nil {
			writeError(w, h.logger, http.StatusNotFound, "Session not found")
			return
		}
		writeJSON(w, h.logger, http.StatusOK, SessionResponse{Session: s})

	case len(parts) == 2 && parts[1] == "commands" && r.Method == http.MethodPost:
		h.handleCommand(w, r, sessionID)

	case len(parts) <= 2:
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed")

	default:
		writeError(w, h.logger, http.StatusNotFound, "Not found")
	}
}

func (h *SessionsHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	s := engine.NewSession(h.startID, time.Now())
	resp, err := h.engine.Begin(r.Context(), s)
	if err != nil {
		h.logger.Error("Failed to start session", "error", err)
		writeError(w, h.logger, statusFor(err), "Failed to start session")
		return
	}
	s = h.sessions.Add(s)

	logger.WithSession(h.logger, s.ID.String()).Info("Session created", "location_id", s.CurrentLocation)
	writeJSON(w, h.logger, http.StatusCreated, SessionResponse{Session: s, Response: resp})
}

func (h *SessionsHandler) handleCommand(w http.ResponseWriter, r *http.Request, sessionID uuid.UUID) {
	var req CommandRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	var (
		resp     *engine.Response
		snapshot *engine.Session
	)
	err := h.sessions.With(sessionID, func(s *engine.Session) error {
		var err error
		resp, err = h.engine.Execute(r.Context(), s, req.Input)
		snapshot = s.Clone()
		return err
	})
	switch {
	case errors.Is(err, engine.ErrSessionNotFound):
		writeError(w, h.logger, http.StatusNotFound, "Session not found")
	case errors.Is(err, engine.ErrEmptyCommand):
		writeError(w, h.logger, http.StatusBadRequest, "input is required")
	case err != nil:
		logger.WithError(logger.WithSession(h.logger, sessionID.String()), err).Error("Command failed")
		writeError(w, h.logger, statusFor(err), "Failed to process command")
	default:
		writeJSON(w, h.logger, http.StatusOK, SessionResponse{Session: snapshot, Response: resp})
	}
}
