package main

import (
	"github.com/spf13/cobra"
)

// loadCommandConfig loads the layered config and applies every flag the user
// set on cmd, which take precedence over files and environment.
func loadCommandConfig(cmd *cobra.Command) (Config, *Progress, error) {
	flags := cmd.Flags()
	path, err := flags.GetString("config")
	if err != nil {
		return Config{}, nil, err
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return cfg, nil, err
	}

	strs := map[string]*string{
		"db":           &cfg.DB,
		"trace":        &cfg.Trace,
		"trace-format": &cfg.TraceFormat,
		"output":       &cfg.Output,
		"candidates":   &cfg.Candidates,
		"ident":        &cfg.Ident,
	}
	for name, dst := range strs {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			continue
		}
		if *dst, err = flags.GetString(name); err != nil {
			return cfg, nil, err
		}
	}

	lists := map[string]*[]string{
		"exclude":  &cfg.Exclude,
		"patterns": &cfg.Patterns,
		"modules":  &cfg.Modules,
	}
	for name, dst := range lists {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			continue
		}
		if *dst, err = flags.GetStringSlice(name); err != nil {
			return cfg, nil, err
		}
	}

	bools := map[string]*bool{
		"skip-tests":     &cfg.SkipTests,
		"skip-generated": &cfg.SkipGenerated,
		"verbose":        &cfg.Verbose,
	}
	for name, dst := range bools {
		if flags.Lookup(name) == nil || !flags.Changed(name) {
			continue
		}
		if *dst, err = flags.GetBool(name); err != nil {
			return cfg, nil, err
		}
	}

	if flags.Lookup("depth") != nil && flags.Changed("depth") {
		if cfg.ExpandDepth, err = flags.GetInt("depth"); err != nil {
			return cfg, nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}
	return cfg, NewProgress(cfg.Verbose), nil
}

func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("modules", nil, "additional modules as dir:modpath:name (modpath may be empty to read go.mod)")
	cmd.Flags().Bool("skip-tests", true, "skip _test.go files")
	cmd.Flags().Bool("skip-generated", true, "skip .pb.go and _generated.go files")
}

func addLocalizeFlags(cmd *cobra.Command) {
	cmd.Flags().String("trace", "", "failure trace file or URL")
	cmd.Flags().String("trace-format", TraceFormatAuto, "trace format (auto|backtrace|goroutine)")
	cmd.Flags().String("ident", IdentLast, "segment of qualified frame names used as ident (first|last)")
	cmd.Flags().StringSlice("exclude", nil, "path markers of frames to drop (replaces the defaults)")
	cmd.Flags().Int("depth", 1, "dependency expansion depth (0 disables expansion)")
}

func addPatchFlags(cmd *cobra.Command) {
	cmd.Flags().String("output", "", "directory receiving patched files")
	cmd.Flags().StringSlice("patterns", nil, "patterns to apply (default: the whole catalog)")
}

func addCandidatesFlag(cmd *cobra.Command) {
	cmd.Flags().String("candidates", "", "ranked candidates file (YAML)")
}
