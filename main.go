package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "faultfix",
	Short:         "Trace-driven fault localization and repair for Go modules",
	Long:          "faultfix builds a value-dependency graph of a Go module, ranks the locations implicated by a failure trace, and writes candidate repairs.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. Using a separate function ensures all defers
// (including temp file cleanup) execute even on error paths, unlike os.Exit
// which skips deferred calls.
func run() error {
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(localizeCmd)
	rootCmd.AddCommand(patchCmd)
	rootCmd.AddCommand(runCmd)

	rootCmd.PersistentFlags().String("config", "", "path to a TOML config file (default ./"+DefaultConfigFile+" if present)")
	rootCmd.PersistentFlags().String("db", "", "SQLite file or postgres:// URL of the graph store")
	rootCmd.PersistentFlags().Bool("verbose", false, "print detailed progress")

	return rootCmd.Execute()
}
