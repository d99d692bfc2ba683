package main

import (
	"errors"
	"fmt"
	"go/build"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// DefaultConfigFile is looked up in the working directory when --config is not given.
const DefaultConfigFile = "faultfix.toml"

// Config holds every pipeline setting. Load order: defaults, .env,
// faultfix.toml, FAULTFIX_* environment, then explicitly set flags.
type Config struct {
	DB          string   `toml:"db"`
	Trace       string   `toml:"trace"`
	TraceFormat string   `toml:"trace_format"`
	Output      string   `toml:"output"`
	Candidates  string   `toml:"candidates"`
	Ident       string   `toml:"ident"`
	Exclude     []string `toml:"exclude"`
	ExpandDepth int      `toml:"expand_depth"`
	Patterns    []string `toml:"patterns"`
	Modules     []string `toml:"modules"`

	SkipTests     bool `toml:"skip_tests"`
	SkipGenerated bool `toml:"skip_generated"`
	Verbose       bool `toml:"verbose"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		DB:            "faultfix.db",
		TraceFormat:   TraceFormatAuto,
		Candidates:    "candidates.yaml",
		Ident:         IdentLast,
		Exclude:       DefaultExcludeMarkers(),
		ExpandDepth:   1,
		SkipTests:     true,
		SkipGenerated: true,
	}
}

// DefaultExcludeMarkers lists path fragments identifying runtime and
// standard-library frames.
func DefaultExcludeMarkers() []string {
	markers := []string{"/rustc/"}
	if root := build.Default.GOROOT; root != "" {
		markers = append(markers, filepath.ToSlash(filepath.Join(root, "src"))+"/")
	}
	return markers
}

// LoadConfig builds a Config from defaults, .env, the TOML file and the
// environment. path may be empty, in which case DefaultConfigFile is used when
// it exists.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"FAULTFIX_DB":           &c.DB,
		"FAULTFIX_TRACE":        &c.Trace,
		"FAULTFIX_TRACE_FORMAT": &c.TraceFormat,
		"FAULTFIX_OUTPUT":       &c.Output,
		"FAULTFIX_CANDIDATES":   &c.Candidates,
		"FAULTFIX_IDENT":        &c.Ident,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	if v, ok := lookup("FAULTFIX_EXPAND_DEPTH"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("FAULTFIX_EXPAND_DEPTH: %w", err)
		}
		c.ExpandDepth = n
	}
	if v, ok := lookup("FAULTFIX_EXCLUDE"); ok {
		c.Exclude = splitList(v)
	}
	if v, ok := lookup("FAULTFIX_PATTERNS"); ok {
		c.Patterns = splitList(v)
	}
	return nil
}

// Validate rejects settings no stage can work with.
func (c *Config) Validate() error {
	switch c.Ident {
	case IdentFirst, IdentLast:
	default:
		return fmt.Errorf("invalid ident convention %q (want %s or %s)", c.Ident, IdentFirst, IdentLast)
	}
	switch c.TraceFormat {
	case TraceFormatAuto, TraceFormatBacktrace, TraceFormatGoroutine:
	default:
		return fmt.Errorf("invalid trace format %q", c.TraceFormat)
	}
	if c.ExpandDepth < 0 {
		return fmt.Errorf("expand depth must not be negative, got %d", c.ExpandDepth)
	}
	for _, name := range c.Patterns {
		if _, ok := LookupPattern(name); !ok {
			return fmt.Errorf("unknown pattern %q", name)
		}
	}
	return nil
}

// TraceOptions derives trace parser options from the config.
func (c *Config) TraceOptions() TraceOptions {
	return TraceOptions{
		Ident:   c.Ident,
		Format:  c.TraceFormat,
		Exclude: c.Exclude,
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
