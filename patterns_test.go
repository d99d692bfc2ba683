package main

import (
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"go/types"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exprs parses src and returns the printed form of every expression in it.
func exprs(t *testing.T, src []byte) []string {
	t.Helper()
	file, err := parser.ParseFile(token.NewFileSet(), "out.go", src, 0)
	require.NoError(t, err, string(src))
	var out []string
	ast.Inspect(file, func(n ast.Node) bool {
		if e, ok := n.(ast.Expr); ok {
			out = append(out, types.ExprString(e))
		}
		return true
	})
	return out
}

func rewrite(t *testing.T, src string, line int, name string) ([]byte, bool) {
	t.Helper()
	p, ok := LookupPattern(name)
	require.True(t, ok, name)
	variants, err := RewriteSource("in.go", []byte(src), line, []Pattern{p})
	require.NoError(t, err)
	if len(variants) == 0 {
		return nil, false
	}
	require.Len(t, variants, 1)
	assert.Equal(t, name, variants[0].Pattern)
	return variants[0].Source, true
}

func assertGofmtStable(t *testing.T, src []byte) {
	t.Helper()
	again, err := format.Source(src)
	require.NoError(t, err)
	assert.Equal(t, string(src), string(again))
}

const indexSrc = `package p

func f(arr []int, m map[string]int, i, j, lo int) int {
	a := arr[i]
	b := arr[lo:]
	c := arr[:i]
	d := arr[j] + m["k"]
	return a + b[0] + c[0] + d
}
`

func TestIndexShift(t *testing.T) {
	out, ok := rewrite(t, indexSrc, 4, "index-shift")
	require.True(t, ok)
	got := exprs(t, out)
	assert.Contains(t, got, "arr[i - 1]")
	assert.Contains(t, got, "arr[j]", "other lines are untouched")
	assertGofmtStable(t, out)

	out, ok = rewrite(t, indexSrc, 5, "index-shift")
	require.True(t, ok)
	assert.Contains(t, exprs(t, out), "arr[(lo - 1):]")

	out, ok = rewrite(t, indexSrc, 6, "index-shift")
	require.True(t, ok)
	assert.Contains(t, exprs(t, out), "arr[0 - 0:i]")
}

func TestIndexShift_SkipsStringKeysAndInstantiations(t *testing.T) {
	out, ok := rewrite(t, indexSrc, 7, "index-shift")
	require.True(t, ok)
	got := exprs(t, out)
	assert.Contains(t, got, "arr[j - 1]")
	assert.Contains(t, got, `m["k"]`)

	src := "package p\n\nfunc id[T any](v T) T { return v }\n\nvar x = id[int](3)\n"
	_, ok = rewrite(t, src, 5, "index-shift")
	assert.False(t, ok)
}

func TestIndexShift_SkipsTypeExpressions(t *testing.T) {
	src := `package p

type List[T any] []T

func f(arr []int, i int) int {
	var l List[int] = List[int]{arr[i]}
	var m List[int]
	_ = m
	return l[0]
}
`
	out, ok := rewrite(t, src, 6, "index-shift")
	require.True(t, ok)
	got := exprs(t, out)
	assert.Contains(t, got, "arr[i - 1]")
	assert.Contains(t, got, "List[int]{…}")
	assert.NotContains(t, got, "List[int - 1]")
	assert.NotContains(t, string(out), "int-1")
	assertGofmtStable(t, out)

	_, ok = rewrite(t, src, 7, "index-shift")
	assert.False(t, ok, "a declared type is not an index")
}

func TestIndexShift_NoMatchOnLine(t *testing.T) {
	_, ok := rewrite(t, indexSrc, 1, "index-shift")
	assert.False(t, ok)
}

const arithSrc = `package p

func f(x, y, total int, s string) (int, string) {
	z := x + y
	w := x - y
	total += x
	total -= y
	s = "a" + s
	return z + w + total, s
}
`

func TestSaturatingArith(t *testing.T) {
	cases := map[int]string{
		4: "0 + sat.Add(x, y)",
		5: "0 + sat.Sub(x, y)",
		6: "0 + sat.Add(total, x)",
		7: "0 + sat.Sub(total, y)",
	}
	for line, want := range cases {
		out, ok := rewrite(t, arithSrc, line, "saturating-arith")
		require.True(t, ok, line)
		assert.Contains(t, exprs(t, out), want, line)
		assert.Contains(t, string(out), `"faultfix/sat"`)
		assertGofmtStable(t, out)
	}

	out, ok := rewrite(t, arithSrc, 6, "saturating-arith")
	require.True(t, ok)
	assert.Contains(t, string(out), "total = 0 + sat.Add(total, x)")
}

func TestSaturatingArith_OuterOperatorOnly(t *testing.T) {
	src := "package p\n\nfunc f(a, b, c int) int {\n\treturn a + b - c\n}\n"
	out, ok := rewrite(t, src, 4, "saturating-arith")
	require.True(t, ok)
	assert.Contains(t, exprs(t, out), "0 + sat.Sub(a + b, c)")
}

func TestSaturatingArith_SkipsStringConcatenation(t *testing.T) {
	_, ok := rewrite(t, arithSrc, 8, "saturating-arith")
	assert.False(t, ok)
}

func TestSaturatingAbs(t *testing.T) {
	src := `package p

func f(v interface{ Abs() int }, w int) int {
	d := v.Abs()
	e := abs(w)
	return d + e
}
`
	out, ok := rewrite(t, src, 4, "saturating-abs")
	require.True(t, ok)
	assert.Contains(t, exprs(t, out), "sat.Abs(v)")
	assert.Contains(t, string(out), `"faultfix/sat"`)

	out, ok = rewrite(t, src, 5, "saturating-abs")
	require.True(t, ok)
	assert.Contains(t, exprs(t, out), "sat.Abs(w)")
}

func TestAddRenames(t *testing.T) {
	src := "package p\n\nfunc f(s interface{ Add(int) int }) int {\n\treturn s.Add(1)\n}\n"

	out, ok := rewrite(t, src, 4, "add-as-bytes")
	require.True(t, ok)
	assert.Contains(t, exprs(t, out), "s.Bytes(1)")

	out, ok = rewrite(t, src, 4, "add-as-max")
	require.True(t, ok)
	assert.Contains(t, exprs(t, out), "s.Max(1)")
}

func TestMapToFilterMap(t *testing.T) {
	src := `package p

func f(r Iter) Iter {
	return r.Map(func(p Item) int { return p.Get().Unwrap().Len() })
}
`
	out, ok := rewrite(t, src, 4, "map-to-filter-map")
	require.True(t, ok)
	got := exprs(t, out)
	assert.Contains(t, got, "p.Get().Map((func(a any) any literal))")
	assert.Contains(t, got, "a.Len()")
	assert.NotContains(t, string(out), "Unwrap")
	assert.Contains(t, string(out), "r.FilterMap(")
	assertGofmtStable(t, out)
}

func TestMapToFilterMap_UnwrapLast(t *testing.T) {
	src := "package p\n\nfunc f(r Iter) Iter {\n\treturn r.Map(func(p Item) int { return p.Get().Unwrap() })\n}\n"
	out, ok := rewrite(t, src, 4, "map-to-filter-map")
	require.True(t, ok)
	assert.Contains(t, exprs(t, out), "p.Get()")
	assert.NotContains(t, string(out), "Unwrap")
}

func TestMapToFilterMap_RequiresUnwrap(t *testing.T) {
	src := "package p\n\nfunc f(r Iter) Iter {\n\treturn r.Map(func(p Item) int { return p.Len() })\n}\n"
	_, ok := rewrite(t, src, 4, "map-to-filter-map")
	assert.False(t, ok)
}

func TestExpectRewrites(t *testing.T) {
	src := "package p\n\nfunc f(opt Option) int {\n\treturn opt.Expect(\"boom\")\n}\n"

	out, ok := rewrite(t, src, 4, "expect-to-unwrap-or-else")
	require.True(t, ok)
	assert.Contains(t, exprs(t, out), "opt.UnwrapOrElse((func() any literal))")
	assert.Contains(t, string(out), "return 1")

	out, ok = rewrite(t, src, 4, "expect-to-unwrap-or-default")
	require.True(t, ok)
	assert.Contains(t, exprs(t, out), "opt.UnwrapOrDefault()")
	assert.NotContains(t, string(out), "boom")
}

func TestCopyToExtend(t *testing.T) {
	src := `package p

func f(dst, src []byte) []byte {
	copy(dst,
		src)
	n := copy(dst, src)
	_ = n
	return dst
}
`
	// The statement spans lines 4-5; either line selects it.
	out, ok := rewrite(t, src, 5, "copy-to-extend")
	require.True(t, ok)
	assert.Contains(t, exprs(t, out), "append(dst, src...)")
	assert.Contains(t, string(out), "n := copy(dst, src)")
	assertGofmtStable(t, out)

	// copy used as a value is not a statement and is left alone.
	_, ok = rewrite(t, src, 6, "copy-to-extend")
	assert.False(t, ok)
}

func TestRewriteSource_PatternsAreIndependent(t *testing.T) {
	src := "package p\n\nfunc f(opt Option) int {\n\treturn opt.Expect(\"boom\")\n}\n"
	variants, err := RewriteSource("in.go", []byte(src), 4, Catalog)
	require.NoError(t, err)

	var names []string
	for _, v := range variants {
		names = append(names, v.Pattern)
		assertGofmtStable(t, v.Source)
	}
	assert.Equal(t, []string{"expect-to-unwrap-or-else", "expect-to-unwrap-or-default"}, names)
	assert.True(t, strings.Contains(string(variants[1].Source), "UnwrapOrDefault()"))
}

func TestRewriteSource_ParseError(t *testing.T) {
	_, err := RewriteSource("bad.go", []byte("package p\n\nfunc {"), 3, Catalog)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "bad.go", perr.File)
}

func TestSelectPatterns(t *testing.T) {
	assert.Equal(t, Catalog, SelectPatterns(nil))
	selected := SelectPatterns([]string{"copy-to-extend", "index-shift"})
	require.Len(t, selected, 2)
	assert.Equal(t, "index-shift", selected[0].Name)
	assert.Equal(t, "copy-to-extend", selected[1].Name)

	_, ok := LookupPattern("nope")
	assert.False(t, ok)
}

// commentLine returns the trimmed output line carrying comment.
func commentLine(t *testing.T, out []byte, comment string) string {
	t.Helper()
	for _, line := range strings.Split(string(out), "\n") {
		if strings.Contains(line, comment) {
			return strings.TrimSpace(line)
		}
	}
	t.Fatalf("comment %q lost:\n%s", comment, out)
	return ""
}

func TestRewrites_KeepTrailingComments(t *testing.T) {
	cases := []struct {
		pattern string
		stmt    string
		comment string
		want    string
	}{
		{"saturating-arith", "x += y", "// bump", "x = 0 + sat.Add(x, y)"},
		{"saturating-arith", "z := x - y", "// diff", "z := 0 + sat.Sub(x, y)"},
		{"saturating-abs", "z := abs(x)", "// abs", "z := sat.Abs(x)"},
		{"index-shift", "z := arr[x]", "// idx", "z := arr["},
		{"index-shift", "s := arr[x:]", "// low", "s := arr[("},
		{"copy-to-extend", "copy(dst, arr)", "// c1", "dst = append(dst, arr...)"},
		{"map-to-filter-map", "r = r.Map(func(p Item) int { return p.Get().Unwrap().Len() })", "// m",
			"r = r.FilterMap(func(p Item) int { return p.Get().Map(func(a any) any { return a.Len() }) })"},
		{"expect-to-unwrap-or-else", "z = opt.Expect(\"boom\")", "// e", "z = opt.UnwrapOrElse(func() any { return 1 })"},
		{"expect-to-unwrap-or-default", "z = opt.Expect(\"boom\")", "// d", "z = opt.UnwrapOrDefault()"},
		{"add-as-max", "z = opt.Add(x)", "// a", "z = opt.Max(x)"},
	}
	for _, tc := range cases {
		t.Run(tc.pattern+" "+tc.comment, func(t *testing.T) {
			src := "package p\n\nfunc f(x, y int, arr, dst []int, r Iter, opt Option) {\n\t" +
				tc.stmt + " " + tc.comment + "\n\t_, _ = x, y\n}\n"
			out, ok := rewrite(t, src, 4, tc.pattern)
			require.True(t, ok)
			assertGofmtStable(t, out)

			line := commentLine(t, out, tc.comment)
			assert.True(t, strings.HasPrefix(line, tc.want), "got %q", line)
			assert.True(t, strings.HasSuffix(line, tc.comment), "got %q", line)
		})
	}
}
