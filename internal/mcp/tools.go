package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jwebster45206/wayfarer/pkg/world"
)

type ListLocationsInput struct{}

type GetLocationInput struct {
	ID int64 `json:"id" jsonschema:"location id"`
}

type TraverseInput struct {
	LocationID int64  `json:"location_id" jsonschema:"id of the location to leave"`
	Connection string `json:"connection" jsonschema:"connection name, e.g. north or n"`
}

type AddConnectionInput struct {
	LocationID         int64  `json:"location_id" jsonschema:"id of the location that gets the connection"`
	Name               string `json:"name" jsonschema:"connection name"`
	TargetID           int64  `json:"target_id,omitempty" jsonschema:"existing target location; omit for a placeholder"`
	Description        string `json:"description,omitempty" jsonschema:"what the traveller sees"`
	ReverseName        string `json:"reverse_name,omitempty" jsonschema:"name of the edge back, derived when empty"`
	ReverseDescription string `json:"reverse_description,omitempty" jsonschema:"description of the edge back"`
}

type WorldStateInput struct {
	LocationID int64 `json:"location_id" jsonschema:"location id"`
	History    bool  `json:"history,omitempty" jsonschema:"return every version, oldest first"`
}

type ApplyDeltaInput struct {
	LocationID           int64          `json:"location_id" jsonschema:"location id"`
	DiscoveredItems      []string       `json:"discovered_items,omitempty" jsonschema:"items to mark as discovered"`
	EnvironmentalChanges map[string]any `json:"environmental_changes,omitempty" jsonschema:"keys to merge, overwriting existing values"`
	Interactions         map[string]any `json:"interactions,omitempty" jsonschema:"keys to merge, overwriting existing values"`
}

type LocationSummaryOutput struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Connections int    `json:"connections"`
}

type ListLocationsOutput struct {
	Locations []LocationSummaryOutput `json:"locations"`
}

type ConnectionOutput struct {
	Name        string `json:"name"`
	TargetID    int64  `json:"target_id,omitempty"`
	Description string `json:"description,omitempty"`
	Placeholder bool   `json:"placeholder"`
}

type LocationOutput struct {
	ID          int64              `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Items       []string           `json:"items,omitempty"`
	Connections []ConnectionOutput `json:"connections"`
}

type StateOutput struct {
	LocationID           int64          `json:"location_id"`
	Visited              bool           `json:"visited"`
	VisitCount           int            `json:"visit_count"`
	LastVisited          string         `json:"last_visited,omitempty"`
	DiscoveredItems      []string       `json:"discovered_items,omitempty"`
	EnvironmentalChanges map[string]any `json:"environmental_changes,omitempty"`
	Interactions         map[string]any `json:"interactions,omitempty"`
	UpdatedAt            string         `json:"updated_at"`
}

type GetLocationOutput struct {
	Location LocationOutput `json:"location"`
	State    *StateOutput   `json:"state,omitempty"`
}

type TraverseOutput struct {
	Kind       string          `json:"kind"`
	OriginID   int64           `json:"origin_id"`
	Connection string          `json:"connection"`
	Location   *LocationOutput `json:"location,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Error      string          `json:"error,omitempty"`
}

type AddConnectionOutput struct {
	Connection ConnectionOutput `json:"connection"`
}

type WorldStateOutput struct {
	Current *StateOutput  `json:"current,omitempty"`
	History []StateOutput `json:"history,omitempty"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_locations",
		Description: "List every known location with its connection count",
	}, s.handleListLocations)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_location",
		Description: "Retrieve a location, its connections and its current state",
	}, s.handleGetLocation)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "traverse",
		Description: "Follow a connection, generating the destination if it has never been visited",
	}, s.handleTraverse)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "add_connection",
		Description: "Add a connection to a location, as a placeholder or to an existing location",
	}, s.handleAddConnection)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "world_state",
		Description: "Return the current state of a location, optionally with its history",
	}, s.handleWorldState)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "apply_delta",
		Description: "Merge a partial state change into a location and return the new version",
	}, s.handleApplyDelta)
}

func (s *Server) handleListLocations(ctx context.Context, req *sdk.CallToolRequest, input ListLocationsInput) (*sdk.CallToolResult, ListLocationsOutput, error) {
	summaries := s.graph.Locations()
	out := make([]LocationSummaryOutput, 0, len(summaries))
	for _, l := range summaries {
		out = append(out, LocationSummaryOutput{ID: l.ID, Name: l.Name, Connections: l.Connections})
	}
	return nil, ListLocationsOutput{Locations: out}, nil
}

func (s *Server) handleGetLocation(ctx context.Context, req *sdk.CallToolRequest, input GetLocationInput) (*sdk.CallToolResult, GetLocationOutput, error) {
	if input.ID <= 0 {
		return nil, GetLocationOutput{}, fmt.Errorf("id is required")
	}
	loc, err := s.graph.Location(ctx, input.ID)
	if err != nil {
		return nil, GetLocationOutput{}, toolError(err)
	}
	state, err := s.tracker.Current(ctx, input.ID)
	if err != nil {
		return nil, GetLocationOutput{}, toolError(err)
	}
	return nil, GetLocationOutput{Location: locationOutput(loc), State: stateOutput(state)}, nil
}

func (s *Server) handleTraverse(ctx context.Context, req *sdk.CallToolRequest, input TraverseInput) (*sdk.CallToolResult, TraverseOutput, error) {
	if strings.TrimSpace(input.Connection) == "" {
		return nil, TraverseOutput{}, fmt.Errorf("connection is required")
	}
	outcome := s.graph.Traverse(ctx, input.LocationID, input.Connection)
	s.logger.Debug("MCP traverse", "location_id", input.LocationID, "connection", input.Connection, "outcome", outcome.String())

	out := TraverseOutput{
		Kind:       string(outcome.Kind),
		OriginID:   outcome.OriginID,
		Connection: outcome.Connection,
		Reason:     string(outcome.Reason),
	}
	if outcome.Location != nil {
		loc := locationOutput(outcome.Location)
		out.Location = &loc
	}
	if outcome.Err != nil {
		out.Error = outcome.Err.Error()
	}
	return nil, out, nil
}

func (s *Server) handleAddConnection(ctx context.Context, req *sdk.CallToolRequest, input AddConnectionInput) (*sdk.CallToolResult, AddConnectionOutput, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, AddConnectionOutput{}, fmt.Errorf("name is required")
	}
	target := world.Placeholder(input.Description)
	if input.TargetID != 0 {
		target = world.ConfirmedTo(input.TargetID, input.Description)
		target.ReverseName = input.ReverseName
		target.ReverseDescription = input.ReverseDescription
	}
	edge, err := s.graph.AddConnection(ctx, input.LocationID, input.Name, target)
	if err != nil {
		return nil, AddConnectionOutput{}, toolError(err)
	}
	return nil, AddConnectionOutput{Connection: connectionOutput(edge)}, nil
}

func (s *Server) handleWorldState(ctx context.Context, req *sdk.CallToolRequest, input WorldStateInput) (*sdk.CallToolResult, WorldStateOutput, error) {
	if _, err := s.graph.Location(ctx, input.LocationID); err != nil {
		return nil, WorldStateOutput{}, toolError(err)
	}
	current, err := s.tracker.Current(ctx, input.LocationID)
	if err != nil {
		return nil, WorldStateOutput{}, toolError(err)
	}
	out := WorldStateOutput{Current: stateOutput(current)}
	if input.History {
		versions, err := s.tracker.History(ctx, input.LocationID)
		if err != nil {
			return nil, WorldStateOutput{}, toolError(err)
		}
		out.History = make([]StateOutput, 0, len(versions))
		for _, v := range versions {
			out.History = append(out.History, *stateOutput(v))
		}
	}
	return nil, out, nil
}

func (s *Server) handleApplyDelta(ctx context.Context, req *sdk.CallToolRequest, input ApplyDeltaInput) (*sdk.CallToolResult, StateOutput, error) {
	delta := world.StateDelta{
		DiscoveredItems:      input.DiscoveredItems,
		EnvironmentalChanges: input.EnvironmentalChanges,
		Interactions:         input.Interactions,
	}
	if delta.IsEmpty() {
		return nil, StateOutput{}, fmt.Errorf("delta is empty")
	}
	if _, err := s.graph.Location(ctx, input.LocationID); err != nil {
		return nil, StateOutput{}, toolError(err)
	}
	rec, err := s.tracker.ApplyDelta(ctx, input.LocationID, delta)
	if err != nil {
		return nil, StateOutput{}, toolError(err)
	}
	return nil, *stateOutput(rec), nil
}

// toolError keeps the sentinel in the chain but gives the model a short message.
func toolError(err error) error {
	switch {
	case errors.Is(err, world.ErrNotFound):
		return fmt.Errorf("not found: %w", err)
	case errors.Is(err, world.ErrDuplicateConnection):
		return fmt.Errorf("connection already exists: %w", err)
	case errors.Is(err, world.ErrInvalidConnection):
		return fmt.Errorf("invalid connection: %w", err)
	default:
		return err
	}
}

func connectionOutput(e world.ConnectionEdge) ConnectionOutput {
	return ConnectionOutput{
		Name:        e.Name,
		TargetID:    e.TargetID,
		Description: e.Description,
		Placeholder: e.IsPlaceholder,
	}
}

func locationOutput(loc *world.Location) LocationOutput {
	out := LocationOutput{
		ID:          loc.ID,
		Name:        loc.Name,
		Description: loc.Description,
		Items:       loc.Items,
		Connections: make([]ConnectionOutput, 0, len(loc.Connections)),
	}
	for _, name := range loc.ConnectionNames() {
		edge := loc.Connections[name]
		edge.Name = name
		out.Connections = append(out.Connections, connectionOutput(edge))
	}
	return out
}

func stateOutput(rec *world.WorldStateRecord) *StateOutput {
	if rec == nil {
		return nil
	}
	out := &StateOutput{
		LocationID:           rec.LocationID,
		Visited:              rec.Visited,
		VisitCount:           rec.VisitCount,
		DiscoveredItems:      rec.DiscoveredItems,
		EnvironmentalChanges: rec.EnvironmentalChanges,
		Interactions:         rec.Interactions,
		UpdatedAt:            rec.UpdatedAt.Format(time.RFC3339),
	}
	if rec.LastVisited != nil {
		out.LastVisited = rec.LastVisited.Format(time.RFC3339)
	}
	return out
}
