package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, trace string, opts TraceOptions) []Frame {
	t.Helper()
	frames, err := ParseTrace(strings.NewReader(trace), opts)
	require.NoError(t, err)
	return frames
}

func TestParseTrace_SingleFrame(t *testing.T) {
	trace := "0: 0x1 - foo::bar\n   at /proj/src/a.rs:10:5\n"

	frames := parse(t, trace, TraceOptions{Ident: IdentFirst})
	require.Len(t, frames, 1)
	assert.Equal(t, Frame{Ident: "foo", File: "/proj/src/a.rs", Line: 10, Col: 5, Depth: 0}, frames[0])

	frames = parse(t, trace, TraceOptions{Ident: IdentLast})
	require.Len(t, frames, 1)
	assert.Equal(t, "bar", frames[0].Ident)
}

func TestParseTrace_DefaultIdentIsLast(t *testing.T) {
	frames := parse(t, "3: 0xdeadbeef - app::store::load\n at /p/s.go:1:2\n", TraceOptions{})
	require.Len(t, frames, 1)
	assert.Equal(t, "load", frames[0].Ident)
	assert.Equal(t, 3, frames[0].Depth)
}

func TestParseTrace_StripsSymbolHash(t *testing.T) {
	frames := parse(t, "1: 0xabc - app::run::h0123456789abcdef\n at /p/main.rs:4:9\n", TraceOptions{Ident: IdentLast})
	require.Len(t, frames, 1)
	assert.Equal(t, "run", frames[0].Ident)
}

func TestParseTrace_HeaderWithoutLocationIsDropped(t *testing.T) {
	trace := strings.Join([]string{
		"0: 0x10 - a::lost",
		"some unrelated output",
		"1: 0x20 - a::kept",
		"   at /p/x.go:7:3",
	}, "\n")
	frames := parse(t, trace, TraceOptions{})
	require.Len(t, frames, 1)
	assert.Equal(t, "kept", frames[0].Ident)
	assert.Equal(t, 1, frames[0].Depth)
}

func TestParseTrace_ConsecutiveHeadersKeepTheLatest(t *testing.T) {
	trace := strings.Join([]string{
		"0: 0x10 - a::first",
		"1: 0x20 - a::second",
		"   at /p/x.go:7:3",
	}, "\n")
	frames := parse(t, trace, TraceOptions{})
	require.Len(t, frames, 1)
	assert.Equal(t, "second", frames[0].Ident)
}

func TestParseTrace_ExcludedPaths(t *testing.T) {
	trace := strings.Join([]string{
		"0: 0x1 - core::panicking::panic",
		"   at /rustc/abc123/library/core/src/panicking.rs:64:14",
		"1: 0x2 - app::compute",
		"   at /proj/src/lib.rs:22:13",
	}, "\n")
	frames := parse(t, trace, TraceOptions{Exclude: []string{"/rustc/"}})
	require.Len(t, frames, 1)
	assert.Equal(t, "/proj/src/lib.rs", frames[0].File)
	assert.Equal(t, 1, frames[0].Depth)
}

func TestParseTrace_MalformedLinesIgnored(t *testing.T) {
	frames := parse(t, "garbage\n\n at relative/path.go:1:1\nx: 0x1 - nope\n", TraceOptions{})
	assert.Empty(t, frames)
}

const goroutineTrace = `panic: runtime error: index out of range [5] with length 3

goroutine 1 [running]:
example.com/app/internal/calc.(*Table).Lookup(0xc000010000, 0x5)
	/proj/internal/calc/table.go:42 +0x1d
example.com/app/internal/calc.Sum(...)
	/usr/local/go/src/sort/sort.go:10
main.main()
	/proj/main.go:12 +0x25

goroutine 7 [chan receive]:
main.worker()
	/proj/worker.go:5 +0x10
`

func TestParseTrace_GoroutineFormat(t *testing.T) {
	frames := parse(t, goroutineTrace, TraceOptions{Exclude: []string{"/usr/local/go/src/"}})
	require.Len(t, frames, 2)

	assert.Equal(t, Frame{Ident: "Lookup", File: "/proj/internal/calc/table.go", Line: 42, Col: 0, Depth: 0}, frames[0])
	// The excluded frame still counts towards depth.
	assert.Equal(t, Frame{Ident: "main", File: "/proj/main.go", Line: 12, Col: 0, Depth: 2}, frames[1])
}

func TestParseTrace_GoroutineIdentFirst(t *testing.T) {
	frames := parse(t, goroutineTrace, TraceOptions{Ident: IdentFirst, Format: TraceFormatGoroutine})
	require.NotEmpty(t, frames)
	assert.Equal(t, "calc", frames[0].Ident)
}

func TestIdentFromSymbol(t *testing.T) {
	tests := []struct {
		symbol, convention, want string
	}{
		{"foo::bar", IdentFirst, "foo"},
		{"foo::bar", IdentLast, "bar"},
		{"<app::Config as core::fmt::Debug>::fmt", IdentLast, "fmt"},
		{"example.com/app/pkg.(*Server).Serve", IdentLast, "Serve"},
		{"example.com/app/pkg.(*Server).Serve", IdentFirst, "pkg"},
		{"main.process[...]", IdentLast, "process"},
		{"main.main.func1", IdentLast, "func1"},
		{"plain", IdentLast, "plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, identFromSymbol(tt.symbol, tt.convention), tt.symbol)
	}
}

func TestLoadTrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.txt")
	require.NoError(t, os.WriteFile(path, []byte("0: 0x1 - foo::bar\n   at /proj/src/a.rs:10:5\n"), 0o644))

	frames, err := LoadTrace(context.Background(), path, TraceOptions{})
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "bar", frames[0].Ident)
}

func TestLoadTrace_Missing(t *testing.T) {
	_, err := LoadTrace(context.Background(), filepath.Join(t.TempDir(), "absent.txt"), TraceOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTraceIO))
}
