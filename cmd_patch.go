package main

import (
	"github.com/spf13/cobra"
	"github.com/viant/afs"
)

var patchCmd = &cobra.Command{
	Use:   "patch [flags]",
	Short: "Write candidate repairs for ranked fault locations",
	Args:  cobra.NoArgs,
	RunE:  runPatch,
}

func init() {
	addPatchFlags(patchCmd)
	addCandidatesFlag(patchCmd)
	patchCmd.Flags().Int("top", 0, "only patch the N best-ranked candidates (0 means all)")
}

func runPatch(cmd *cobra.Command, args []string) error {
	cfg, prog, err := loadCommandConfig(cmd)
	if err != nil {
		return err
	}
	top, err := cmd.Flags().GetInt("top")
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	fs := afs.New()

	locs, err := ReadCandidates(ctx, fs, cfg.Candidates)
	if err != nil {
		return err
	}
	if top > 0 && top < len(locs) {
		locs = locs[:top]
	}
	_, err = GeneratePatches(ctx, cfg, fs, locs, prog)
	return err
}
