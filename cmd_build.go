package main

import (
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build [flags] <module-dir>",
	Short: "Build the dependency graph of a Go module into the store",
	Args:  cobra.ExactArgs(1),
	RunE:  runBuild,
}

func init() {
	addBuildFlags(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, prog, err := loadCommandConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	store, err := OpenStore(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer store.Close()

	counts, err := BuildGraph(ctx, cfg, args[0], store, prog)
	if err != nil {
		return err
	}
	prog.Log("Done. %d locations, %d dependencies in %s", counts.Locations, counts.Edges, cfg.DB)
	return nil
}
