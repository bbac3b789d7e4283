package handlers

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/jwebster45206/wayfarer/pkg/graph"
	"github.com/jwebster45206/wayfarer/pkg/world"
	"github.com/jwebster45206/wayfarer/pkg/worldstate"
)

// ConnectionView is an edge as the API reports it.
type ConnectionView struct {
	Name          string `json:"name"`
	TargetID      int64  `json:"target_id"`
	Description   string `json:"description,omitempty"`
	IsPlaceholder bool   `json:"is_placeholder"`
	State         string `json:"state"`
}

type LocationResponse struct {
	Location    *world.Location         `json:"location"`
	Connections []ConnectionView        `json:"connections"`
	State       *world.WorldStateRecord `json:"state,omitempty"`
}

// AddConnectionRequest is the body of POST /v1/locations/{id}/connections.
// A zero TargetID adds a placeholder.
type AddConnectionRequest struct {
	Name               string `json:"name"`
	TargetID           int64  `json:"target_id,omitempty"`
	Description        string `json:"description,omitempty"`
	ReverseName        string `json:"reverse_name,omitempty"`
	ReverseDescription string `json:"reverse_description,omitempty"`
}

type LocationsHandler struct {
	graph   *graph.Manager
	tracker *worldstate.Tracker
	logger  *slog.Logger
}

func NewLocationsHandler(g *graph.Manager, tracker *worldstate.Tracker, logger *slog.Logger) *LocationsHandler {
	return &LocationsHandler{
		graph:   g,
		tracker: tracker,
		logger:  logger,
	}
}

// ServeHTTP routes:
// GET  /v1/locations                  - list loaded locations
// GET  /v1/locations/{id}             - location, connections and current state
// POST /v1/locations/{id}/connections - add a connection
func (h *LocationsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/v1/locations")

	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		writeJSON(w, h.logger, http.StatusOK, h.graph.Locations())

	case len(parts) == 1 && r.Method == http.MethodGet:
		id, ok := parseID(parts[0])
		if !ok {
			writeError(w, h.logger, http.StatusBadRequest, "Invalid location ID")
			return
		}
		h.handleGet(w, r, id)

	case len(parts) == 2 && parts[1] == "connections" && r.Method == http.MethodPost:
		id, ok := parseID(parts[0])
		if !ok {
			writeError(w, h.logger, http.StatusBadRequest, "Invalid location ID")
			return
		}
		h.handleAddConnection(w, r, id)

	case len(parts) <= 2:
		h.logger.Warn("Method not allowed for locations endpoint", "method", r.Method, "path", r.URL.Path)
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed")

	default:
		writeError(w, h.logger, http.StatusNotFound, "Not found")
	}
}

func (h *LocationsHandler) handleGet(w http.ResponseWriter, r *http.Request, id int64) {
	loc, err := h.graph.Location(r.Context(), id)
	if err != nil {
		h.logger.Warn("Failed to get location", "location_id", id, "error", err)
		writeError(w, h.logger, statusFor(err), err.Error())
		return
	}
	state, err := h.tracker.Current(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get world state", "location_id", id, "error", err)
		writeError(w, h.logger, statusFor(err), "Failed to load world state")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, LocationResponse{
		Location:    loc,
		Connections: h.connectionViews(id, loc.Connections),
		State:       state,
	})
}

func (h *LocationsHandler) connectionViews(id int64, conns map[string]world.ConnectionEdge) []ConnectionView {
	names := make([]string, 0, len(conns))
	for name := range conns {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]ConnectionView, 0, len(names))
	for _, name := range names {
		edge := conns[name]
		view := ConnectionView{
			Name:          name,
			TargetID:      edge.TargetID,
			Description:   edge.Description,
			IsPlaceholder: edge.IsPlaceholder,
		}
		if state, err := h.graph.EdgeState(id, name); err == nil {
			view.State = state.String()
		}
		out = append(out, view)
	}
	return out
}

func (h *LocationsHandler) handleAddConnection(w http.ResponseWriter, r *http.Request, id int64) {
	var req AddConnectionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	target := world.Placeholder(req.Description)
	if req.TargetID != 0 {
		target = world.ConfirmedTo(req.TargetID, req.Description)
		target.ReverseName = req.ReverseName
		target.ReverseDescription = req.ReverseDescription
	}

	edge, err := h.graph.AddConnection(r.Context(), id, req.Name, target)
	if err != nil {
		writeError(w, h.logger, statusFor(err), err.Error())
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, ConnectionView{
		Name:          edge.Name,
		TargetID:      edge.TargetID,
		Description:   edge.Description,
		IsPlaceholder: edge.IsPlaceholder,
		State:         stateOf(edge).String(),
	})
}

func stateOf(edge world.ConnectionEdge) world.EdgeState {
	if edge.Confirmed() {
		return world.EdgeStateConfirmed
	}
	return world.EdgeStatePlaceholder
}
