package main

import (
	"context"
	"os/signal"
	"syscall"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/jwebster45206/wayfarer/internal/mcp"
)

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the world over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE:  runMCP,
	}
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := openWorld(ctx, true)
	if err != nil {
		return err
	}
	defer deps.Close()

	server := mcp.NewServer(deps.graph, deps.tracker, version, deps.log)
	return server.Run(ctx, &sdk.StdioTransport{})
}
