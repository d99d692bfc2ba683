package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/viant/afs"
)

var localizeCmd = &cobra.Command{
	Use:   "localize [flags]",
	Short: "Rank the source locations implicated by a failure trace",
	Long:  "Parse a failure trace, expand each frame through the stored dependency graph, rank the candidates and write them to the candidates file.",
	Args:  cobra.NoArgs,
	RunE:  runLocalize,
}

func init() {
	addLocalizeFlags(localizeCmd)
	addCandidatesFlag(localizeCmd)
	localizeCmd.Flags().Bool("print", true, "print the ranked candidates")
}

func runLocalize(cmd *cobra.Command, args []string) error {
	cfg, prog, err := loadCommandConfig(cmd)
	if err != nil {
		return err
	}
	show, err := cmd.Flags().GetBool("print")
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	store, err := OpenStore(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer store.Close()

	locs, err := LocalizeTrace(ctx, cfg, store, prog)
	if err != nil {
		return err
	}
	if show {
		PrintCandidates(os.Stdout, locs)
	}
	if err := WriteCandidates(ctx, afs.New(), cfg.Candidates, "", locs); err != nil {
		return err
	}
	prog.Log("Wrote %d candidates to %s", len(locs), cfg.Candidates)
	return nil
}
