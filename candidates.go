package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

// candidatesFile is the hand-off document between localization and patching.
type candidatesFile struct {
	Revision   string     `yaml:"revision,omitempty"`
	Candidates []FaultLoc `yaml:"candidates"`
}

// WriteCandidates stores ranked candidates at url as YAML.
func WriteCandidates(ctx context.Context, fs afs.Service, url, revision string, locs []FaultLoc) error {
	data, err := yaml.Marshal(candidatesFile{Revision: revision, Candidates: locs})
	if err != nil {
		return fmt.Errorf("encode candidates: %w", err)
	}
	if err := fs.Upload(ctx, url, 0o644, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write candidates %s: %w", url, err)
	}
	return nil
}

// ReadCandidates loads candidates written by WriteCandidates, in file order.
func ReadCandidates(ctx context.Context, fs afs.Service, url string) ([]FaultLoc, error) {
	data, err := fs.DownloadWithURL(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("read candidates %s: %w", url, err)
	}
	var doc candidatesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode candidates %s: %w", url, err)
	}
	return doc.Candidates, nil
}

var (
	directColor = color.New(color.FgRed, color.Bold)
	depColor    = color.New(color.FgCyan)
	scoreColor  = color.New(color.FgYellow)
)

// PrintCandidates writes a ranked table of candidates to w.
func PrintCandidates(w io.Writer, locs []FaultLoc) {
	for _, loc := range locs {
		kind := directColor.Sprint("frame")
		if loc.IsDep {
			kind = depColor.Sprint("dep  ")
		}
		fmt.Fprintf(w, "%3d  %s  %s  %-24s %s:%d:%d\n",
			loc.Depth, scoreColor.Sprintf("%6.3f", loc.Score), kind, loc.Ident,
			filepath.Base(loc.File), loc.Line, loc.Col)
	}
}
