package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/viant/afs"
)

// Ident conventions: which segment of a qualified frame name becomes the
// candidate's ident.
const (
	IdentFirst = "first"
	IdentLast  = "last"
)

// Trace formats.
const (
	TraceFormatAuto      = "auto"
	TraceFormatBacktrace = "backtrace" // "<depth>: 0x<addr> - <ident>" / "at <path>:<line>:<col>"
	TraceFormatGoroutine = "goroutine" // Go panic traceback
)

// ErrTraceIO reports that the trace could not be read.
var ErrTraceIO = errors.New("read trace")

// Frame is one accepted entry of a failure trace. Col is 0 when the trace
// format carries no column.
type Frame struct {
	Ident string
	File  string
	Line  int
	Col   int
	Depth int
}

// Location returns the frame's source coordinate.
func (f Frame) Location() Location {
	return Location{Ident: f.Ident, File: f.File, Line: f.Line, Col: f.Col}
}

// TraceOptions configures ParseTrace.
type TraceOptions struct {
	Ident   string   // IdentFirst or IdentLast; "" means IdentLast
	Format  string   // one of the TraceFormat constants; "" means auto
	Exclude []string // frames whose path contains any marker are dropped
}

func (o TraceOptions) excluded(path string) bool {
	for _, marker := range o.Exclude {
		if marker != "" && strings.Contains(path, marker) {
			return true
		}
	}
	return false
}

var (
	reFrameHeader   = regexp.MustCompile(`^\s*(\d+):\s+0x[0-9a-fA-F]+ - (.+?)\s*$`)
	reFrameLocation = regexp.MustCompile(`^\s*at (/.+):(\d+):(\d+)\s*$`)
	reSymbolHash    = regexp.MustCompile(`::h[0-9a-f]{16}$`)

	reGoroutine  = regexp.MustCompile(`^goroutine \d+ \[.*\]:\s*$`)
	reGoFunc     = regexp.MustCompile(`^(?:created by )?(\S.*?)(?:\([^()]*\))?(?: in goroutine \d+)?\s*$`)
	reGoLocation = regexp.MustCompile(`^\s+(/.+):(\d+)(?: \+0x[0-9a-fA-F]+)?\s*$`)
)

// LoadTrace reads a trace from any afs-supported URL (plain paths included)
// and parses it.
func LoadTrace(ctx context.Context, url string, opts TraceOptions) ([]Frame, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrTraceIO, url, err)
	}
	return ParseTrace(bytes.NewReader(data), opts)
}

// ParseTrace extracts frames from r. Lines matching neither the header nor
// the location pattern are skipped; a header not followed by its location is
// discarded.
func ParseTrace(r io.Reader, opts TraceOptions) ([]Frame, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTraceIO, err)
	}

	format := opts.Format
	if format == "" || format == TraceFormatAuto {
		format = detectFormat(lines)
	}
	if format == TraceFormatGoroutine {
		return parseGoroutineTrace(lines, opts), nil
	}
	return parseBacktrace(lines, opts), nil
}

func readLines(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

func detectFormat(lines []string) string {
	for _, line := range lines {
		if reGoroutine.MatchString(line) {
			return TraceFormatGoroutine
		}
		if reFrameHeader.MatchString(line) {
			return TraceFormatBacktrace
		}
	}
	return TraceFormatBacktrace
}

type traceState int

const (
	expectFrameHeader traceState = iota
	expectFrameLocation
)

func parseBacktrace(lines []string, opts TraceOptions) []Frame {
	var (
		frames  []Frame
		pending Frame
		state   = expectFrameHeader
	)
	for _, line := range lines {
		if state == expectFrameLocation {
			if m := reFrameLocation.FindStringSubmatch(line); m != nil {
				state = expectFrameHeader
				lineNum, err1 := strconv.Atoi(m[2])
				colNum, err2 := strconv.Atoi(m[3])
				if err1 != nil || err2 != nil || opts.excluded(m[1]) {
					continue
				}
				pending.File, pending.Line, pending.Col = m[1], lineNum, colNum
				frames = append(frames, pending)
				continue
			}
			state = expectFrameHeader
		}
		// A header may also arrive while a previous header is still waiting
		// for its location; the earlier one is dropped.
		if m := reFrameHeader.FindStringSubmatch(line); m != nil {
			depth, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			pending = Frame{Ident: identFromSymbol(m[2], opts.Ident), Depth: depth}
			state = expectFrameLocation
		}
	}
	return frames
}

// parseGoroutineTrace reads the first goroutine's stack. Depth is the frame's
// index in that stack; columns are not reported by the runtime.
func parseGoroutineTrace(lines []string, opts TraceOptions) []Frame {
	var frames []Frame
	i := 0
	for i < len(lines) && !reGoroutine.MatchString(lines[i]) {
		i++
	}
	i++

	depth := 0
	for i+1 < len(lines) {
		fn, loc := lines[i], lines[i+1]
		if strings.TrimSpace(fn) == "" || reGoroutine.MatchString(fn) {
			break
		}
		fm := reGoFunc.FindStringSubmatch(fn)
		lm := reGoLocation.FindStringSubmatch(loc)
		if fm == nil || lm == nil {
			i++
			continue
		}
		i += 2
		lineNum, err := strconv.Atoi(lm[2])
		if err != nil {
			continue
		}
		if !opts.excluded(lm[1]) {
			frames = append(frames, Frame{
				Ident: identFromSymbol(fm[1], opts.Ident),
				File:  lm[1],
				Line:  lineNum,
				Depth: depth,
			})
		}
		depth++
	}
	return frames
}

// identFromSymbol picks one segment of a qualified symbol such as
// "crate::module::func::h0123456789abcdef" or "example.com/pkg.(*T).Method".
func identFromSymbol(symbol, convention string) string {
	symbol = reSymbolHash.ReplaceAllString(strings.TrimSpace(symbol), "")
	symbol = strings.ReplaceAll(symbol, "[...]", "")

	var parts []string
	if strings.Contains(symbol, "::") {
		parts = strings.Split(symbol, "::")
	} else {
		if i := strings.LastIndex(symbol, "/"); i >= 0 {
			symbol = symbol[i+1:]
		}
		parts = strings.Split(symbol, ".")
	}

	segments := parts[:0]
	for _, p := range parts {
		p = strings.Trim(p, "(*)<> ")
		if p != "" {
			segments = append(segments, p)
		}
	}
	if len(segments) == 0 {
		return symbol
	}
	if convention == IdentFirst {
		return segments[0]
	}
	return segments[len(segments)-1]
}
