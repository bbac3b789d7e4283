package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/wayfarer/pkg/graph"
)

type TraverseRequest struct {
	LocationID int64  `json:"location_id"`
	Connection string `json:"connection"`
}

type TraverseHandler struct {
	graph  *graph.Manager
	logger *slog.Logger
}

func NewTraverseHandler(g *graph.Manager, logger *slog.Logger) *TraverseHandler {
	return &TraverseHandler{graph: g, logger: logger}
}

// ServeHTTP handles POST /v1/traverse. Every outcome, including Blocked and
// Failed, is a 200 with the outcome as the body.
func (h *TraverseHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.logger.Warn("Method not allowed for traverse endpoint", "method", r.Method)
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
		return
	}

	var req TraverseRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.LocationID <= 0 || strings.TrimSpace(req.Connection) == "" {
		writeError(w, h.logger, http.StatusBadRequest, "location_id and connection are required")
		return
	}

	outcome := h.graph.Traverse(r.Context(), req.LocationID, req.Connection)
	writeJSON(w, h.logger, http.StatusOK, outcome)
}
