package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/wayfarer/pkg/scenario"
)

func seedCmd() *cobra.Command {
	var (
		worldFile string
		force     bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write a world file into the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, worldFile, force)
		},
	}
	cmd.Flags().StringVar(&worldFile, "world", "", "world file (default: WORLD_FILE)")
	cmd.Flags().BoolVar(&force, "force", false, "delete the existing world and seed again")
	return cmd
}

func runSeed(cmd *cobra.Command, worldFile string, force bool) error {
	ctx := context.Background()

	deps, err := openWorld(ctx, false)
	if err != nil {
		return err
	}
	defer deps.Close()

	if worldFile == "" {
		worldFile = deps.cfg.WorldFile
	}
	w, err := scenario.LoadFile(worldFile)
	if err != nil {
		return err
	}

	res, err := scenario.NewSeeder(deps.store, deps.graph, deps.tracker, deps.log).Seed(ctx, w, force)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !res.Created {
		fmt.Fprintf(out, "Existing world kept (start %d). Use --force to reseed.\n", res.StartID)
		return nil
	}
	fmt.Fprintf(out, "Seeded %q: %d locations, start %d\n", w.Name, len(res.Locations), res.StartID)
	keys := make([]string, 0, len(res.Locations))
	for k := range res.Locations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "  %-20s %d\n", k, res.Locations[k])
	}
	return nil
}
