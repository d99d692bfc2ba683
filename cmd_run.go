package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/viant/afs"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] <module-dir>",
	Short: "Build, localize and patch in one pass",
	Args:  cobra.ExactArgs(1),
	RunE:  runPipeline,
}

func init() {
	addBuildFlags(runCmd)
	addLocalizeFlags(runCmd)
	addPatchFlags(runCmd)
	addCandidatesFlag(runCmd)
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, prog, err := loadCommandConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Trace == "" {
		return ErrNoTrace
	}
	if cfg.Output == "" {
		return ErrNoOutput
	}
	ctx := cmd.Context()
	fs := afs.New()

	store, err := OpenStore(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer store.Close()

	if _, err := BuildGraph(ctx, cfg, args[0], store, prog); err != nil {
		return err
	}
	locs, err := LocalizeTrace(ctx, cfg, store, prog)
	if err != nil {
		return err
	}
	PrintCandidates(os.Stdout, locs)
	if cfg.Candidates != "" {
		if err := WriteCandidates(ctx, fs, cfg.Candidates, GitRevision(args[0], prog), locs); err != nil {
			return err
		}
	}
	report, err := GeneratePatches(ctx, cfg, fs, locs, prog)
	if err != nil {
		return err
	}
	prog.Log("Done. %d candidates, %d patch variants in %s", len(locs), len(report.Variants), cfg.Output)
	return nil
}
