package main

import "fmt"

// Location is a point in source code. Identity is (File, Line, Col); Ident is
// descriptive only and never takes part in equality.
type Location struct {
	Ident string `yaml:"ident" json:"ident"`
	File  string `yaml:"file" json:"file"`
	Line  int    `yaml:"line" json:"line"`
	Col   int    `yaml:"col" json:"col"`
}

// LocKey is the identity of a Location.
type LocKey struct {
	File      string
	Line, Col int
}

// Key returns the identity triple of l.
func (l Location) Key() LocKey {
	return LocKey{File: l.File, Line: l.Line, Col: l.Col}
}

func (l Location) String() string {
	return fmt.Sprintf("%s@%s:%d:%d", l.Ident, l.File, l.Line, l.Col)
}

// StoredLocation is a Location persisted in the graph store.
type StoredLocation struct {
	ID int64 `json:"id"`
	Location
}

// Edge is a persisted dependency: the value at LHS is computed from the value at RHS.
type Edge struct {
	ID  int64 `json:"id"`
	LHS int64 `json:"lhs_id"`
	RHS int64 `json:"rhs_id"`
}

// FaultLoc is a candidate fault location produced by the localizer.
// Depth and Score are only rewritten by Rank.
type FaultLoc struct {
	Ident string  `yaml:"ident" json:"ident"`
	Line  int     `yaml:"line" json:"line"`
	Col   int     `yaml:"col" json:"col"`
	File  string  `yaml:"file" json:"file"`
	IsDep bool    `yaml:"is_dep" json:"is_dep"`
	Depth int     `yaml:"depth" json:"depth"`
	Score float64 `yaml:"score" json:"score"`
}

// Location returns the source location of the candidate.
func (f FaultLoc) Location() Location {
	return Location{Ident: f.Ident, File: f.File, Line: f.Line, Col: f.Col}
}

// edgeKey is the deduplication key for dependency pairs.
type edgeKey struct {
	LHS, RHS LocKey
}

// DepGraph accumulates dependency pairs in memory before they are persisted.
// Iteration order is discovery order so persisted ids are deterministic.
type DepGraph struct {
	targets  []Location
	deps     map[LocKey][]Location
	locs     map[LocKey]Location
	edgeSeen map[edgeKey]struct{}
	pairs    int
}

// NewDepGraph creates an empty dependency graph.
func NewDepGraph() *DepGraph {
	return &DepGraph{
		deps:     make(map[LocKey][]Location),
		locs:     make(map[LocKey]Location),
		edgeSeen: make(map[edgeKey]struct{}),
	}
}

// Add records that lhs is computed from rhs. Duplicate pairs are dropped
// (first wins), and the first ident seen for a position is kept.
func (g *DepGraph) Add(lhs, rhs Location) {
	k := edgeKey{lhs.Key(), rhs.Key()}
	if _, dup := g.edgeSeen[k]; dup {
		return
	}
	g.edgeSeen[k] = struct{}{}

	lk := lhs.Key()
	if _, ok := g.locs[lk]; !ok {
		g.locs[lk] = lhs
	}
	if _, ok := g.deps[lk]; !ok {
		g.targets = append(g.targets, g.locs[lk])
	}
	if _, ok := g.locs[rhs.Key()]; !ok {
		g.locs[rhs.Key()] = rhs
	}
	g.deps[lk] = append(g.deps[lk], g.locs[rhs.Key()])
	g.pairs++
}

// Targets returns every assignment target in discovery order.
func (g *DepGraph) Targets() []Location {
	return g.targets
}

// Deps returns the contributing locations of target.
func (g *DepGraph) Deps(target Location) []Location {
	return g.deps[target.Key()]
}

// Len returns the number of distinct dependency pairs.
func (g *DepGraph) Len() int {
	return g.pairs
}

// Locations returns every distinct location (targets and contributors) in
// discovery order.
func (g *DepGraph) Locations() []Location {
	seen := make(map[LocKey]bool, len(g.locs))
	out := make([]Location, 0, len(g.locs))
	add := func(l Location) {
		if seen[l.Key()] {
			return
		}
		seen[l.Key()] = true
		out = append(out, l)
	}
	for _, t := range g.targets {
		add(t)
		for _, d := range g.deps[t.Key()] {
			add(d)
		}
	}
	return out
}
