package main

import (
	"context"
	"errors"
	"os"
)

// Localizer turns trace frames into fault candidates by looking up each
// frame in the store and following its dependency edges.
type Localizer struct {
	store Store
	// depth is how many dependency levels to follow; 1 follows direct
	// edges only, 0 disables expansion.
	depth int
	prog  *Progress
}

// NewLocalizer creates a localizer reading from store.
func NewLocalizer(store Store, expandDepth int, prog *Progress) *Localizer {
	return &Localizer{store: store, depth: expandDepth, prog: prog}
}

// Localize emits a direct candidate per frame, each followed by the
// candidates reached through dependency edges. A location is emitted and
// expanded at most once. Store misses are skipped.
func (l *Localizer) Localize(ctx context.Context, frames []Frame) ([]FaultLoc, error) {
	l.prog.Log("Localizing %d frames (expansion depth %d)...", len(frames), l.depth)

	var (
		out       []FaultLoc
		seen      = make(map[LocKey]bool)
		checked   = make(map[string]bool)
		direct    int
		dependent int
	)

	for _, frame := range frames {
		if !checked[frame.File] {
			checked[frame.File] = true
			l.checkStale(ctx, frame.File)
		}

		loc := frame.Location()
		if seen[loc.Key()] {
			continue
		}
		seen[loc.Key()] = true
		out = append(out, FaultLoc{
			Ident: frame.Ident,
			Line:  frame.Line,
			Col:   frame.Col,
			File:  frame.File,
			Depth: frame.Depth,
		})
		direct++

		roots, err := l.roots(ctx, frame)
		if err != nil {
			return nil, err
		}
		deps, err := l.expand(ctx, roots, seen)
		if err != nil {
			return nil, err
		}
		for _, dep := range deps {
			out = append(out, FaultLoc{
				Ident: dep.Ident,
				Line:  dep.Line,
				Col:   dep.Col,
				File:  dep.File,
				IsDep: true,
				Depth: frame.Depth,
			})
		}
		dependent += len(deps)
	}

	l.prog.Log("Localized %d direct and %d dependency candidates", direct, dependent)
	return out, nil
}

// roots returns the stored locations a frame expands from. Column-less frames
// expand from every location stored on their line.
func (l *Localizer) roots(ctx context.Context, frame Frame) ([]StoredLocation, error) {
	if frame.Col == 0 {
		return l.store.FindLocationsOnLine(ctx, frame.File, frame.Line)
	}
	loc, err := l.store.FindLocation(ctx, frame.File, frame.Line, frame.Col)
	if errors.Is(err, ErrNotFound) {
		l.prog.Verbose("  no stored location for %s:%d:%d", frame.File, frame.Line, frame.Col)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []StoredLocation{loc}, nil
}

// expand walks dependency edges breadth-first up to l.depth levels. Visited
// ids stop the walk on cycles; seen suppresses locations already emitted.
func (l *Localizer) expand(ctx context.Context, roots []StoredLocation, seen map[LocKey]bool) ([]StoredLocation, error) {
	var out []StoredLocation
	visited := make(map[int64]bool, len(roots))
	level := roots
	for _, r := range roots {
		visited[r.ID] = true
	}

	for d := 0; d < l.depth && len(level) > 0; d++ {
		var next []StoredLocation
		for _, from := range level {
			edges, err := l.store.EdgesFrom(ctx, from)
			if err != nil {
				return nil, err
			}
			for _, e := range edges {
				if visited[e.RHS] {
					continue
				}
				visited[e.RHS] = true
				rhs, err := l.store.FindLocationByID(ctx, e.RHS)
				if errors.Is(err, ErrNotFound) {
					continue
				}
				if err != nil {
					return nil, err
				}
				next = append(next, rhs)
				if seen[rhs.Key()] {
					continue
				}
				seen[rhs.Key()] = true
				out = append(out, rhs)
			}
		}
		level = next
	}
	return out, nil
}

// checkStale warns when file has changed since the graph was built.
func (l *Localizer) checkStale(ctx context.Context, file string) {
	recorded, err := l.store.SourceHash(ctx, file)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			l.prog.Verbose("  source hash lookup for %s: %v", file, err)
		}
		return
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return
	}
	current, err := Fingerprint(data)
	if err != nil {
		return
	}
	if current != recorded.Hash {
		l.prog.Warn("%s changed since the graph was built (revision %s); locations may be stale", file, recorded.Revision)
	}
}
