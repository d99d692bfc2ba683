package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/viant/afs"
)

// ErrNoTrace is returned by the localize stage when no trace is configured.
var ErrNoTrace = errors.New("trace path is not set")

// BuildGraph analyses the module rooted at dir (plus cfg.Modules) and
// replaces the store's contents with the resulting dependency graph.
func BuildGraph(ctx context.Context, cfg Config, dir string, store Store, prog *Progress) (GraphCounts, error) {
	// SSA for large workspaces is memory hungry; let the GC work harder
	// before the process grows past this.
	debug.SetMemoryLimit(8 << 30)

	primary, err := PrimaryModule(dir)
	if err != nil {
		return GraphCounts{}, err
	}
	ms := NewModuleSet(primary, ParseModuleSpecs(cfg.Modules, prog))
	prog.Log("Analyzing %d modules: %s", len(ms.Dirs()), ms.Names())

	// One workspace so extra modules share a single type universe.
	goworkPath, err := CreateTempGoWork(ms)
	if err != nil {
		return GraphCounts{}, err
	}
	defer os.Remove(goworkPath)
	prog.Verbose("Created workspace: %s", goworkPath)

	opts := LoadOptions{SkipTests: cfg.SkipTests, SkipGenerated: cfg.SkipGenerated}

	loaded, err := LoadPackages(ms, goworkPath, opts, prog)
	if err != nil {
		return GraphCounts{}, err
	}

	dispatch := BuildDispatch(loaded.Packages, ms, prog)
	built := BuildDepGraph(loaded, ms, dispatch, opts, prog)

	// A build replaces whatever graph the store held.
	if err := store.Reset(ctx); err != nil {
		return GraphCounts{}, fmt.Errorf("reset store: %w", err)
	}
	revision := GitRevision(ms.PrimaryDir(), prog)
	return WriteGraph(ctx, store, built, revision, prog)
}

// LocalizeTrace parses the configured trace, localizes its frames against the
// store and returns the ranked candidates.
func LocalizeTrace(ctx context.Context, cfg Config, store Store, prog *Progress) ([]FaultLoc, error) {
	if cfg.Trace == "" {
		return nil, ErrNoTrace
	}
	frames, err := LoadTrace(ctx, cfg.Trace, cfg.TraceOptions())
	if err != nil {
		return nil, err
	}
	prog.Log("Parsed %d frames from %s", len(frames), cfg.Trace)

	locs, err := NewLocalizer(store, cfg.ExpandDepth, prog).Localize(ctx, frames)
	if err != nil {
		return nil, err
	}
	return Rank(locs), nil
}

// GeneratePatches writes one variant per candidate and applicable pattern
// under cfg.Output.
func GeneratePatches(ctx context.Context, cfg Config, fs afs.Service, locs []FaultLoc, prog *Progress) (*PatchReport, error) {
	return NewGenerator(fs, cfg.Output, SelectPatterns(cfg.Patterns), prog).Generate(ctx, locs)
}
