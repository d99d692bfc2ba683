package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// at returns the location of the first occurrence of ident on the first line
// of file containing snippet.
func at(t *testing.T, file, snippet, ident string) Location {
	t.Helper()
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	for i, line := range strings.Split(string(data), "\n") {
		if !strings.Contains(line, snippet) {
			continue
		}
		col := strings.Index(line, ident)
		require.GreaterOrEqual(t, col, 0, "%q not on line %q", ident, line)
		return Location{Ident: ident, File: file, Line: i + 1, Col: col + 1}
	}
	t.Fatalf("%q not found in %s", snippet, file)
	return Location{}
}

func buildTestGraph(t *testing.T) *BuildResult {
	t.Helper()
	var buf bytes.Buffer
	prog := bufferedProgress(&buf)

	primary, err := PrimaryModule(filepath.Join("testdata", "depmod"))
	require.NoError(t, err)
	require.Equal(t, "example.com/depmod", primary.ModPath)
	ms := NewModuleSet(primary, nil)

	gowork, err := CreateTempGoWork(ms)
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Remove(gowork) })

	opts := LoadOptions{SkipTests: true, SkipGenerated: true}
	loaded, err := LoadPackages(ms, gowork, opts, prog)
	require.NoError(t, err)
	require.NotEmpty(t, loaded.Packages)

	return BuildDepGraph(loaded, ms, BuildDispatch(loaded.Packages, ms, prog), opts, prog)
}

func deps(g *DepGraph, target Location) []LocKey {
	var out []LocKey
	for _, d := range g.Deps(target) {
		out = append(out, d.Key())
	}
	return out
}

func TestBuildDepGraph(t *testing.T) {
	res := buildTestGraph(t)
	g := res.Graph
	file, err := filepath.Abs(filepath.Join("testdata", "depmod", "calc", "calc.go"))
	require.NoError(t, err)

	sumDecl := at(t, file, "sum := 0", "sum")
	xDecl := at(t, file, "for _, x := range", "x")
	sumAssign := at(t, file, "sum = sum + x", "sum")
	assert.ElementsMatch(t, []LocKey{sumDecl.Key(), xDecl.Key()}, deps(g, sumAssign))

	t.Run("call contributes callee", func(t *testing.T) {
		scaled := at(t, file, "scaled := double(sum)", "scaled")
		assert.Equal(t, []LocKey{at(t, file, "func double(", "double").Key()}, deps(g, scaled))
	})

	t.Run("var initializer with package var", func(t *testing.T) {
		capped := at(t, file, "var capped =", "capped")
		assert.ElementsMatch(t, []LocKey{
			at(t, file, "scaled := double(sum)", "scaled").Key(),
			at(t, file, "var Limit = 100", "Limit").Key(),
		}, deps(g, capped))
	})

	t.Run("multi-value assignment", func(t *testing.T) {
		split := at(t, file, "func split(", "split").Key()
		assert.Equal(t, []LocKey{split}, deps(g, at(t, file, "a, b := split", "a")))
		assert.Equal(t, []LocKey{split}, deps(g, at(t, file, "a, b := split", "b")))
	})

	t.Run("concrete method", func(t *testing.T) {
		next := at(t, file, "next := c.Next()", "next")
		assert.Equal(t, []LocKey{at(t, file, "func (c *Counter) Next()", "Next").Key()}, deps(g, next))
	})

	t.Run("interface method with one implementation", func(t *testing.T) {
		area := at(t, file, "area := sh.Area()", "area")
		assert.Equal(t, []LocKey{at(t, file, "func (s Square) Area()", "Area").Key()}, deps(g, area))
	})

	t.Run("field access resolves to root binding", func(t *testing.T) {
		line := at(t, file, "c.n = c.n + 1", "c.n")
		target := Location{Ident: "n", File: file, Line: line.Line, Col: line.Col + 2}
		assert.Equal(t, []LocKey{at(t, file, "func (c *Counter) Next()", "c *Counter").Key()}, deps(g, target))
	})

	t.Run("index target is skipped", func(t *testing.T) {
		line := at(t, file, "buf[0] = v", "buf").Line
		for _, target := range g.Targets() {
			assert.False(t, target.File == file && target.Line == line, "unexpected target %s", target)
		}
	})

	t.Run("outside module and literals contribute nothing", func(t *testing.T) {
		assert.Empty(t, deps(g, at(t, file, "name := strings.ToUpper", "name")))
		assert.Empty(t, deps(g, at(t, file, "c := Counter{}", "c")))
		assert.Empty(t, deps(g, at(t, file, "sum := 0", "sum")))
	})

	assert.Positive(t, res.Stats.Unresolved)
	assert.Positive(t, res.Stats.SkippedTargets, "the blank target is skipped")
	assert.Equal(t, g.Len(), res.Stats.Edges)
}

func TestBuildDepGraph_AmbiguousInterfaceCallHasNoEdge(t *testing.T) {
	res := buildTestGraph(t)
	file, err := filepath.Abs(filepath.Join("testdata", "depmod", "shapes", "shapes.go"))
	require.NoError(t, err)

	area := at(t, file, "area := sh.Area()", "area")
	assert.Empty(t, deps(res.Graph, area))

	// The file was analysed; the edge is missing because Rect and Circle both
	// reach the call.
	assert.Contains(t, res.Files, file)
}

func TestBuildDepGraph_NoAssignmentsNoEdges(t *testing.T) {
	res := buildTestGraph(t)
	file, err := filepath.Abs(filepath.Join("testdata", "depmod", "calc", "empty.go"))
	require.NoError(t, err)

	assert.Contains(t, res.Files, file)
	for _, target := range res.Graph.Targets() {
		assert.NotEqual(t, file, target.File, "unexpected target %s", target)
	}
}
