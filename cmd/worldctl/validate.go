package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/wayfarer/pkg/scenario"
)

func validateCmd() *cobra.Command {
	var store bool
	cmd := &cobra.Command{
		Use:   "validate [world-file...]",
		Short: "Check world files, and optionally the stored connection table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args, store)
		},
	}
	cmd.Flags().BoolVar(&store, "store", false, "also check bidirectional closure of the stored world")
	return cmd
}

func runValidate(cmd *cobra.Command, files []string, store bool) error {
	out := cmd.OutOrStdout()
	if len(files) == 0 && !store {
		return fmt.Errorf("nothing to validate: pass world files or --store")
	}

	failed := 0
	for _, path := range files {
		w, err := scenario.LoadFile(path)
		if err != nil {
			failed++
			fmt.Fprintf(out, "✗ %s\n  %v\n", path, err)
			continue
		}
		fmt.Fprintf(out, "✓ %s (%s, %d locations)\n", path, w.Name, len(w.Locations))
	}

	if store {
		// Load already checks closure; a failure surfaces as the open error.
		deps, err := openWorld(context.Background(), false)
		if err != nil {
			failed++
			fmt.Fprintf(out, "✗ store\n  %v\n", err)
		} else {
			defer deps.Close()
			fmt.Fprintf(out, "✓ store (%d locations)\n", len(deps.graph.Locations()))
		}
	}

	if failed > 0 {
		return fmt.Errorf("validation failed: %d problem(s)", failed)
	}
	fmt.Fprintln(out, "No issues found.")
	return nil
}
