package main

import "sort"

// Rank orders candidates by suspiciousness, lowest score first. Depths are
// first normalised to 1..N in ascending order of the original depth (ties
// keep trace order); each score is that depth divided by the number of
// candidates in the same file, halved for dependency-derived candidates.
// The input slice is not modified.
func Rank(locs []FaultLoc) []FaultLoc {
	ranked := make([]FaultLoc, len(locs))
	copy(ranked, locs)

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Depth < ranked[j].Depth
	})
	perFile := make(map[string]int)
	for i := range ranked {
		ranked[i].Depth = i + 1
		perFile[ranked[i].File]++
	}

	for i := range ranked {
		ranked[i].Score = float64(ranked[i].Depth) / float64(perFile[ranked[i].File])
		if ranked[i].IsDep {
			ranked[i].Score *= 0.5
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score < ranked[j].Score
	})
	return ranked
}
