package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
)

var warnColor = color.New(color.FgYellow, color.Bold)

// Progress reports pipeline progress to stderr with elapsed time.
type Progress struct {
	start   time.Time
	verbose bool
	out     io.Writer
}

// NewProgress creates a progress reporter.
func NewProgress(verbose bool) *Progress {
	return &Progress{start: time.Now(), verbose: verbose, out: os.Stderr}
}

// Log prints a progress message with elapsed time prefix.
func (p *Progress) Log(format string, args ...any) {
	elapsed := time.Since(p.start)
	mins := int(elapsed.Minutes())
	secs := int(elapsed.Seconds()) % 60
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(p.out, "[%02d:%02d] %s\n", mins, secs, msg)
}

// Verbose prints only when verbose mode is enabled.
func (p *Progress) Verbose(format string, args ...any) {
	if p.verbose {
		p.Log(format, args...)
	}
}

// Warn prints a highlighted warning line.
func (p *Progress) Warn(format string, args ...any) {
	p.Log("%s %s", warnColor.Sprint("warning:"), fmt.Sprintf(format, args...))
}
