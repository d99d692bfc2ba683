package main

import (
	"context"
	"fmt"
)

// GraphCounts reports what WriteGraph persisted.
type GraphCounts struct {
	Locations int
	Edges     int
	Sources   int
}

// WriteGraph persists a built graph: one location row per distinct location,
// one dependency row per pair, and the fingerprint of every analysed file.
// Stores that support it receive the whole graph in a single transaction.
func WriteGraph(ctx context.Context, store Store, res *BuildResult, revision string, prog *Progress) (GraphCounts, error) {
	sources, err := FingerprintFiles(res.Files, revision)
	if err != nil {
		return GraphCounts{}, err
	}

	if w, ok := store.(graphWriter); ok {
		counts, err := w.WriteGraph(ctx, res, sources)
		if err != nil {
			return counts, fmt.Errorf("write graph: %w", err)
		}
		prog.Log("Inserted %d locations, %d dependencies, %d source fingerprints", counts.Locations, counts.Edges, counts.Sources)
		return counts, nil
	}

	var counts GraphCounts
	ids := make(map[LocKey]int64)
	locs := res.Graph.Locations()
	for i, loc := range locs {
		id, err := store.InsertLocation(ctx, loc)
		if err != nil {
			return counts, err
		}
		ids[loc.Key()] = id
		counts.Locations++
		if (i+1)%10000 == 0 {
			prog.Verbose("  inserted %d/%d locations", i+1, len(locs))
		}
	}
	for _, target := range res.Graph.Targets() {
		for _, dep := range res.Graph.Deps(target) {
			if err := store.InsertEdge(ctx, ids[target.Key()], ids[dep.Key()]); err != nil {
				return counts, err
			}
			counts.Edges++
		}
	}
	for _, src := range sources {
		if err := store.RecordSource(ctx, src); err != nil {
			return counts, err
		}
		counts.Sources++
	}
	prog.Log("Inserted %d locations, %d dependencies, %d source fingerprints", counts.Locations, counts.Edges, counts.Sources)
	return counts, nil
}
