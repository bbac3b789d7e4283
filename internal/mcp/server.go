// Package mcp exposes the world graph to model-driven tools over the Model
// Context Protocol.
package mcp

import (
	"context"
	"log/slog"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jwebster45206/wayfarer/pkg/graph"
	"github.com/jwebster45206/wayfarer/pkg/world"
)

// WorldGraph is the part of the connection manager the tools use.
type WorldGraph interface {
	Locations() []graph.LocationSummary
	Location(ctx context.Context, id int64) (*world.Location, error)
	Traverse(ctx context.Context, originID int64, name string) world.TraversalOutcome
	AddConnection(ctx context.Context, locationID int64, name string, target world.EdgeTarget) (world.ConnectionEdge, error)
}

// StateTracker reads and writes versioned location state.
type StateTracker interface {
	Current(ctx context.Context, locationID int64) (*world.WorldStateRecord, error)
	History(ctx context.Context, locationID int64) ([]*world.WorldStateRecord, error)
	ApplyDelta(ctx context.Context, locationID int64, d world.StateDelta) (*world.WorldStateRecord, error)
}

type Server struct {
	graph   WorldGraph
	tracker StateTracker
	logger  *slog.Logger
	mcp     *sdk.Server
}

func NewServer(g WorldGraph, tracker StateTracker, version string, logger *slog.Logger) *Server {
	s := &Server{
		graph:   g,
		tracker: tracker,
		logger:  logger,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "wayfarer",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

// Run serves until the transport closes or ctx is done.
func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	s.logger.Info("MCP server starting")
	return s.mcp.Run(ctx, transport)
}
