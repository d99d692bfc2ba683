package main

import (
	"fmt"
	"go/ast"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
	"golang.org/x/tools/go/packages"
)

// defaultGoVersion is written to the workspace file when the primary module
// declares no go directive.
const defaultGoVersion = "1.21"

// LoadResult holds the type-checked packages of the analysed modules.
type LoadResult struct {
	Packages []*packages.Package
	Fset     *token.FileSet
}

// LoadOptions controls which files take part in graph building.
type LoadOptions struct {
	SkipTests     bool
	SkipGenerated bool
}

// skipFile reports whether a parsed file is left out of the graph. Generated
// files are recognised by the standard "Code generated ... DO NOT EDIT."
// header as well as by the usual file name suffixes.
func (o LoadOptions) skipFile(path string, file *ast.File) bool {
	base := filepath.Base(path)
	if o.SkipTests && strings.HasSuffix(base, "_test.go") {
		return true
	}
	if !o.SkipGenerated {
		return false
	}
	if strings.HasSuffix(base, ".pb.go") || strings.HasSuffix(base, "_generated.go") {
		return true
	}
	return file != nil && ast.IsGenerated(file)
}

// goVersion returns the go directive of dir/go.mod, or "" if absent.
func goVersion(dir string) string {
	path := filepath.Join(dir, "go.mod")
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	f, err := modfile.ParseLax(path, data, nil)
	if err != nil || f.Go == nil {
		return ""
	}
	return f.Go.Version
}

// workspaceMembers lists the module directories a workspace must use: every
// module of ms followed by nested modules found below them. A directory or a
// module path is only listed once, since go.work rejects repeated modules.
func workspaceMembers(ms *ModuleSet) []string {
	var (
		dirs     []string
		seenDir  = make(map[string]bool)
		seenPath = make(map[string]bool)
	)
	add := func(dir, modPath string) {
		if seenDir[dir] {
			return
		}
		if modPath == "" {
			modPath = readModulePath(dir)
		}
		if modPath != "" && seenPath[modPath] {
			return
		}
		seenDir[dir] = true
		if modPath != "" {
			seenPath[modPath] = true
		}
		dirs = append(dirs, dir)
	}

	for _, m := range ms.Dirs() {
		add(m.Dir, m.ModPath)
	}
	for _, m := range ms.Dirs() {
		for _, sub := range nestedModules(m.Dir) {
			add(sub, "")
		}
	}
	return dirs
}

// nestedModules returns directories below root that hold their own go.mod.
// vendor, testdata and hidden directories are not searched.
func nestedModules(root string) []string {
	var dirs []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (name == "vendor" || name == "testdata" || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if name := d.Name(); name == "go.mod" {
			if dir := filepath.Dir(path); dir != root {
				dirs = append(dirs, dir)
			}
		}
		return nil
	})
	return dirs
}

// CreateTempGoWork writes a go.work that uses every workspace member of ms
// and returns its path. The caller removes the file.
func CreateTempGoWork(ms *ModuleSet) (string, error) {
	version := goVersion(ms.PrimaryDir())
	if version == "" {
		version = defaultGoVersion
	}

	work := &modfile.WorkFile{Syntax: new(modfile.FileSyntax)}
	if err := work.AddGoStmt(version); err != nil {
		return "", fmt.Errorf("go.work: %w", err)
	}
	for _, dir := range workspaceMembers(ms) {
		if err := work.AddUse(dir, ""); err != nil {
			return "", fmt.Errorf("go.work use %s: %w", dir, err)
		}
	}
	work.Cleanup()

	f, err := os.CreateTemp("", "faultfix-*.work")
	if err != nil {
		return "", fmt.Errorf("create go.work: %w", err)
	}
	_, werr := f.Write(modfile.Format(work.Syntax))
	cerr := f.Close()
	if werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write go.work: %w", werr)
	}
	return f.Name(), nil
}

// LoadPackages type-checks every package of ms through the workspace at
// goworkPath. Packages outside the module set are dropped; packages with
// type errors are kept, since partial type information still resolves most
// references.
func LoadPackages(ms *ModuleSet, goworkPath string, opts LoadOptions, prog *Progress) (*LoadResult, error) {
	prog.Log("Loading packages of %s...", ms.Names())

	fset := token.NewFileSet()
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
			packages.NeedImports | packages.NeedDeps | packages.NeedSyntax |
			packages.NeedTypes | packages.NeedTypesInfo | packages.NeedTypesSizes,
		Dir:   ms.PrimaryDir(),
		Fset:  fset,
		Tests: !opts.SkipTests,
		Env:   withEnv(os.Environ(), "GOWORK", goworkPath),
	}
	initial, err := packages.Load(cfg, ms.LoadPatterns()...)
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}

	res := &LoadResult{Fset: fset}
	var broken int
	for _, pkg := range initial {
		if !ms.IsKnownPkg(pkg.PkgPath) {
			continue
		}
		if len(pkg.Errors) > 0 {
			broken++
			prog.Verbose("  %s: %d errors, first: %v", pkg.PkgPath, len(pkg.Errors), pkg.Errors[0])
		}
		res.Packages = append(res.Packages, pkg)
	}

	files, lines := res.size(opts)
	prog.Log("Loaded %d packages (%d files, %d lines)", len(res.Packages), files, lines)
	if broken > 0 {
		prog.Warn("%d packages have type errors; their unresolved operands add no edges", broken)
	}
	return res, nil
}

// size counts the analysed files and their lines.
func (r *LoadResult) size(opts LoadOptions) (files, lines int) {
	for _, pkg := range r.Packages {
		for _, file := range pkg.Syntax {
			tf := r.Fset.File(file.Pos())
			if tf == nil || opts.skipFile(tf.Name(), file) {
				continue
			}
			files++
			lines += tf.LineCount()
		}
	}
	return files, lines
}

// withEnv returns environ with key bound to val exactly once.
func withEnv(environ []string, key, val string) []string {
	prefix := key + "="
	out := make([]string, 0, len(environ)+1)
	for _, kv := range environ {
		if !strings.HasPrefix(kv, prefix) {
			out = append(out, kv)
		}
	}
	return append(out, prefix+val)
}
