package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:          "worldctl",
		Short:        "Seed, inspect and serve a Wayfarer world",
		SilenceUsage: true,
	}
	root.Version = version
	root.SetVersionTemplate("{{.Version}}\n")
	root.AddCommand(seedCmd())
	root.AddCommand(validateCmd())
	root.AddCommand(showCmd())
	root.AddCommand(mcpCmd())
	root.AddCommand(versionCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
