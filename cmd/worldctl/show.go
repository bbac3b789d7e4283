package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func showCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show [location-id]",
		Short: "Print a location with its connections and state, or list all locations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, args, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func runShow(cmd *cobra.Command, args []string, asJSON bool) error {
	ctx := context.Background()

	deps, err := openWorld(ctx, false)
	if err != nil {
		return err
	}
	defer deps.Close()

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		summaries := deps.graph.Locations()
		if asJSON {
			return printJSON(cmd, summaries)
		}
		for _, s := range summaries {
			fmt.Fprintf(out, "%6d  %-32s %d exits\n", s.ID, s.Name, s.Connections)
		}
		return nil
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid location id %q", args[0])
	}
	loc, err := deps.graph.Location(ctx, id)
	if err != nil {
		return err
	}
	state, err := deps.tracker.Current(ctx, id)
	if err != nil {
		return err
	}

	if asJSON {
		return printJSON(cmd, map[string]any{"location": loc, "state": state})
	}

	fmt.Fprintf(out, "%s (#%d)\n%s\n\n", loc.Name, loc.ID, loc.Description)
	if len(loc.Items) > 0 {
		fmt.Fprintf(out, "Items: %v\n", loc.Items)
	}
	fmt.Fprintln(out, "Connections:")
	for _, name := range loc.ConnectionNames() {
		edge := loc.Connections[name]
		edgeState, _ := deps.graph.EdgeState(id, name)
		fmt.Fprintf(out, "  %-12s -> %-6d %s\n", name, edge.TargetID, edgeState)
	}
	if state != nil {
		fmt.Fprintf(out, "Visited: %v (%d times)\n", state.Visited, state.VisitCount)
		if len(state.EnvironmentalChanges) > 0 {
			fmt.Fprintf(out, "Environment: %v\n", state.EnvironmentalChanges)
		}
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
