package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"path/filepath"

	"github.com/viant/afs"
	"github.com/viant/afs/url"
	"golang.org/x/tools/go/ast/astutil"
	"gopkg.in/yaml.v3"
)

// ErrNoOutput is returned when patch generation has nowhere to write.
var ErrNoOutput = errors.New("patch output path is not set")

// ParseError reports a candidate file that could not be parsed. It aborts
// that candidate only.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// PatchVariant is one rewritten file.
type PatchVariant struct {
	Rank    int      `yaml:"rank"`
	Pattern string   `yaml:"pattern"`
	Source  string   `yaml:"source"`
	Output  string   `yaml:"output"`
	Fault   FaultLoc `yaml:"fault"`
}

// PatchFailure records a candidate that was skipped.
type PatchFailure struct {
	Rank   int    `yaml:"rank"`
	Source string `yaml:"source"`
	Error  string `yaml:"error"`
}

// PatchReport summarises a Generate run.
type PatchReport struct {
	Variants []PatchVariant `yaml:"variants"`
	Failures []PatchFailure `yaml:"failures,omitempty"`
}

// Generator applies the pattern catalog to candidate files.
type Generator struct {
	Output   string
	Patterns []Pattern
	fs       afs.Service
	prog     *Progress
}

// NewGenerator creates a generator writing under output.
func NewGenerator(fs afs.Service, output string, patterns []Pattern, prog *Progress) *Generator {
	return &Generator{Output: output, Patterns: patterns, fs: fs, prog: prog}
}

// Generate tries every pattern against every candidate. Each pattern gets a
// fresh tree of the candidate's file, so alternative repairs never mask each
// other; every tree a pattern changed is formatted and written to
// <Output>/<rank>_<pattern>/<file name>. A file that cannot be read, or a
// variant that cannot be written, aborts the run.
func (g *Generator) Generate(ctx context.Context, locs []FaultLoc) (*PatchReport, error) {
	if g.Output == "" {
		return nil, ErrNoOutput
	}
	g.prog.Log("Generating patches for %d candidates with %d patterns...", len(locs), len(g.Patterns))

	report := &PatchReport{}
	for i, loc := range locs {
		rank := i + 1
		src, err := g.fs.DownloadWithURL(ctx, loc.File)
		if err != nil {
			return report, fmt.Errorf("read %s: %w", loc.File, err)
		}

		variants, err := RewriteSource(loc.File, src, loc.Line, g.Patterns)
		var perr *ParseError
		if errors.As(err, &perr) {
			g.prog.Warn("candidate %d: %v", rank, perr)
			report.Failures = append(report.Failures, PatchFailure{Rank: rank, Source: loc.File, Error: perr.Error()})
			continue
		}
		if err != nil {
			return report, err
		}

		for _, v := range variants {
			out := url.Join(g.Output, fmt.Sprintf("%03d_%s/%s", rank, v.Pattern, filepath.Base(loc.File)))
			if err := g.fs.Upload(ctx, out, 0o644, bytes.NewReader(v.Source)); err != nil {
				return report, fmt.Errorf("write %s: %w", out, err)
			}
			report.Variants = append(report.Variants, PatchVariant{
				Rank:    rank,
				Pattern: v.Pattern,
				Source:  loc.File,
				Output:  out,
				Fault:   loc,
			})
			g.prog.Verbose("  %s", out)
		}
	}

	data, err := yaml.Marshal(report)
	if err != nil {
		return report, fmt.Errorf("encode patch report: %w", err)
	}
	manifest := url.Join(g.Output, "patches.yaml")
	if err := g.fs.Upload(ctx, manifest, 0o644, bytes.NewReader(data)); err != nil {
		return report, fmt.Errorf("write %s: %w", manifest, err)
	}

	g.prog.Log("Wrote %d patch variants (%d candidates skipped)", len(report.Variants), len(report.Failures))
	return report, nil
}

// Rewritten is the formatted output of one pattern applied to one file.
type Rewritten struct {
	Pattern string
	Source  []byte
}

// RewriteSource applies each pattern to its own parse of src, restricted to
// nodes whose line span covers line, and returns the formatted source of
// every tree that changed.
func RewriteSource(filename string, src []byte, line int, patterns []Pattern) ([]Rewritten, error) {
	var out []Rewritten
	for _, p := range patterns {
		fset := token.NewFileSet()
		file, err := parser.ParseFile(fset, filename, src, parser.ParseComments|parser.SkipObjectResolution)
		if err != nil {
			return nil, &ParseError{File: filename, Err: err}
		}
		if !applyPattern(fset, file, line, p) {
			continue
		}
		var buf bytes.Buffer
		if err := format.Node(&buf, fset, file); err != nil {
			return nil, fmt.Errorf("format %s (%s): %w", filename, p.Name, err)
		}
		out = append(out, Rewritten{Pattern: p.Name, Source: buf.Bytes()})
	}
	return out, nil
}

// applyPattern walks file in pre-order. Nodes whose span does not cover line
// are never rewritten but are still traversed.
func applyPattern(fset *token.FileSet, file *ast.File, line int, p Pattern) bool {
	var changed bool
	astutil.Apply(file, func(c *astutil.Cursor) bool {
		n := c.Node()
		if n == nil {
			return true
		}
		if _, ok := n.(*ast.File); ok {
			return true
		}
		start, end := fset.Position(n.Pos()).Line, fset.Position(n.End()).Line
		if line < start || line > end {
			return true
		}
		if p.Skip != nil && p.Skip(c) {
			return false
		}
		if p.Rewrite(c) {
			changed = true
			return p.Descend
		}
		return true
	}, nil)
	if changed && p.Import != "" {
		astutil.AddImport(fset, file, p.Import)
	}
	return changed
}
