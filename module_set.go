package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
)

// ModuleInfo describes one Go module in the analysis set.
type ModuleInfo struct {
	ModPath string // e.g. "github.com/acme/service"
	Dir     string // absolute path to module root
	Name    string // short display name; "" for the primary module
}

// ModuleSet holds all modules under analysis. Declarations outside the set
// (standard library, third-party dependencies) never contribute edges.
type ModuleSet struct {
	modules []ModuleInfo
}

// NewModuleSet builds a ModuleSet from a primary module and optional extras.
func NewModuleSet(primary ModuleInfo, extras []ModuleInfo) *ModuleSet {
	ms := &ModuleSet{
		modules: make([]ModuleInfo, 0, 1+len(extras)),
	}
	ms.modules = append(ms.modules, primary)
	ms.modules = append(ms.modules, extras...)
	return ms
}

// PrimaryModule reads dir/go.mod and describes the module rooted there.
func PrimaryModule(dir string) (ModuleInfo, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return ModuleInfo{}, fmt.Errorf("invalid module dir: %w", err)
	}
	modPath := readModulePath(abs)
	if modPath == "" {
		return ModuleInfo{}, fmt.Errorf("no module path in %s", filepath.Join(abs, "go.mod"))
	}
	return ModuleInfo{ModPath: modPath, Dir: abs}, nil
}

// ParseModuleSpecs parses dir:modpath:name triples. An empty modpath is read
// from the module's go.mod.
func ParseModuleSpecs(specs []string, prog *Progress) []ModuleInfo {
	var extras []ModuleInfo
	for _, spec := range specs {
		parts := strings.SplitN(strings.TrimSpace(spec), ":", 3)
		if len(parts) != 3 {
			prog.Warn("invalid module spec %q (want dir:modpath:name)", spec)
			continue
		}
		dir, err := filepath.Abs(parts[0])
		if err != nil {
			prog.Warn("invalid module dir %q: %v", parts[0], err)
			continue
		}
		modPath := parts[1]
		if modPath == "" {
			modPath = readModulePath(dir)
		}
		if modPath == "" {
			prog.Warn("module %s has no module path, skipping", dir)
			continue
		}
		extras = append(extras, ModuleInfo{Dir: dir, ModPath: modPath, Name: parts[2]})
	}
	return extras
}

// readModulePath returns the module path from dir/go.mod, or "" if unreadable.
func readModulePath(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return ""
	}
	return modfile.ModulePath(data)
}

// IsKnownPkg returns true if pkgPath belongs to any module in the set.
func (ms *ModuleSet) IsKnownPkg(pkgPath string) bool {
	for _, m := range ms.modules {
		if pkgPath == m.ModPath || strings.HasPrefix(pkgPath, m.ModPath+"/") {
			return true
		}
	}
	return false
}

// ContainsFile reports whether absPath lies under any module directory.
func (ms *ModuleSet) ContainsFile(absPath string) bool {
	for _, m := range ms.modules {
		rel, err := filepath.Rel(m.Dir, absPath)
		if err != nil {
			continue
		}
		if !strings.HasPrefix(rel, "..") {
			return true
		}
	}
	return false
}

// PrimaryDir returns the first (primary) module's directory.
func (ms *ModuleSet) PrimaryDir() string {
	return ms.modules[0].Dir
}

// Dirs returns all module infos.
func (ms *ModuleSet) Dirs() []ModuleInfo {
	return ms.modules
}

// LoadPatterns returns the "modpath/..." patterns for packages.Load.
func (ms *ModuleSet) LoadPatterns() []string {
	patterns := make([]string, len(ms.modules))
	for i, m := range ms.modules {
		patterns[i] = m.ModPath + "/..."
	}
	return patterns
}

// Names returns a human-readable list of module names.
func (ms *ModuleSet) Names() string {
	names := make([]string, len(ms.modules))
	for i, m := range ms.modules {
		if m.Name == "" {
			names[i] = m.ModPath + " (primary)"
		} else {
			names[i] = m.Name
		}
	}
	return strings.Join(names, ", ")
}
