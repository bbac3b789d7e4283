package handlers

import (
	"log/slog"
	"net/http"

	"github.com/jwebster45206/wayfarer/pkg/graph"
	"github.com/jwebster45206/wayfarer/pkg/world"
	"github.com/jwebster45206/wayfarer/pkg/worldstate"
)

type WorldStateHandler struct {
	graph   *graph.Manager
	tracker *worldstate.Tracker
	logger  *slog.Logger
}

func NewWorldStateHandler(g *graph.Manager, tracker *worldstate.Tracker, logger *slog.Logger) *WorldStateHandler {
	return &WorldStateHandler{
		graph:   g,
		tracker: tracker,
		logger:  logger,
	}
}

// ServeHTTP routes:
// GET   /v1/worldstate/{id}         - current record
// GET   /v1/worldstate/{id}/history - every version, oldest first
// PATCH /v1/worldstate/{id}         - apply a delta
func (h *WorldStateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/v1/worldstate")
	if len(parts) == 0 || len(parts) > 2 || (len(parts) == 2 && parts[1] != "history") {
		writeError(w, h.logger, http.StatusNotFound, "Expected /v1/worldstate/{id}")
		return
	}
	id, ok := parseID(parts[0])
	if !ok {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid location ID")
		return
	}
	// World state only exists for locations in the graph.
	if _, err := h.graph.CurrentConnections(id); err != nil {
		writeError(w, h.logger, statusFor(err), err.Error())
		return
	}

	switch {
	case r.Method == http.MethodGet && len(parts) == 2:
		history, err := h.tracker.History(r.Context(), id)
		if err != nil {
			h.logger.Error("Failed to load world state history", "location_id", id, "error", err)
			writeError(w, h.logger, statusFor(err), "Failed to load world state history")
			return
		}
		writeJSON(w, h.logger, http.StatusOK, history)

	case r.Method == http.MethodGet:
		state, err := h.tracker.Current(r.Context(), id)
		if err != nil {
			h.logger.Error("Failed to load world state", "location_id", id, "error", err)
			writeError(w, h.logger, statusFor(err), "Failed to load world state")
			return
		}
		if state == nil {
			writeError(w, h.logger, http.StatusNotFound, "No world state recorded for this location")
			return
		}
		writeJSON(w, h.logger, http.StatusOK, state)

	case r.Method == http.MethodPatch && len(parts) == 1:
		var delta world.StateDelta
		if err := decodeBody(w, r, &delta); err != nil {
			writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
			return
		}
		state, err := h.tracker.ApplyDelta(r.Context(), id, delta)
		if err != nil {
			h.logger.Error("Failed to apply world state delta", "location_id", id, "error", err)
			writeError(w, h.logger, statusFor(err), "Failed to apply world state delta")
			return
		}
		h.logger.Info("World state updated", "location_id", id)
		writeJSON(w, h.logger, http.StatusOK, state)

	default:
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET, PATCH")
	}
}
