package main

import (
	"go/ast"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/packages"
)

// BuildStats counts what the builder saw.
type BuildStats struct {
	Assignments    int // assignment targets considered
	SkippedTargets int // targets that are not a nameable path, or blank
	Unresolved     int // rhs operands with no declaration in the module set
	Edges          int
}

// BuildResult is the output of BuildDepGraph.
type BuildResult struct {
	Graph *DepGraph
	Files []string // absolute paths of every analysed file
	Stats BuildStats
}

// BuildDepGraph walks every file of the loaded packages once and records, for
// each assignment or initialised binding, the declarations its value is
// computed from. dispatch may be nil, in which case interface method calls
// contribute nothing.
func BuildDepGraph(res *LoadResult, ms *ModuleSet, dispatch *Dispatch, opts LoadOptions, prog *Progress) *BuildResult {
	prog.Log("Building dependency graph...")

	out := &BuildResult{Graph: NewDepGraph()}
	seenFiles := make(map[string]bool)

	for _, pkg := range res.Packages {
		for _, file := range pkg.Syntax {
			tf := res.Fset.File(file.Pos())
			if tf == nil {
				continue
			}
			absFile := tf.Name()
			if !ms.ContainsFile(absFile) || opts.skipFile(absFile, file) {
				continue
			}
			// Test variants of a package repeat its files.
			if !seenFiles[absFile] {
				seenFiles[absFile] = true
				out.Files = append(out.Files, absFile)
			}
			b := &depBuilder{
				pkg:      pkg,
				fset:     res.Fset,
				ms:       ms,
				dispatch: dispatch,
				graph:    out.Graph,
				stats:    &out.Stats,
			}
			ast.Inspect(file, b.visit)
		}
	}

	out.Stats.Edges = out.Graph.Len()
	prog.Log("Dependency graph: %d targets, %d edges across %d files", len(out.Graph.Targets()), out.Stats.Edges, len(out.Files))
	prog.Verbose("  %d assignment targets, %d skipped, %d unresolved operands",
		out.Stats.Assignments, out.Stats.SkippedTargets, out.Stats.Unresolved)
	return out
}

type depBuilder struct {
	pkg      *packages.Package
	fset     *token.FileSet
	ms       *ModuleSet
	dispatch *Dispatch
	graph    *DepGraph
	stats    *BuildStats
}

func (b *depBuilder) visit(node ast.Node) bool {
	switch n := node.(type) {
	case *ast.AssignStmt:
		b.visitAssign(n)
	case *ast.GenDecl:
		if n.Tok == token.VAR {
			for _, spec := range n.Specs {
				if vs, ok := spec.(*ast.ValueSpec); ok {
					b.visitValueSpec(vs)
				}
			}
		}
	}
	return true
}

// visitAssign handles =, op= and := alike; for op= only the right operand
// contributes.
func (b *depBuilder) visitAssign(n *ast.AssignStmt) {
	b.assign(n.Lhs, n.Rhs)
}

func (b *depBuilder) visitValueSpec(vs *ast.ValueSpec) {
	if len(vs.Values) == 0 {
		return
	}
	targets := make([]ast.Expr, len(vs.Names))
	for i, name := range vs.Names {
		targets[i] = name
	}
	b.assign(targets, vs.Values)
}

// assign pairs targets with values by index, or feeds a single multi-value
// expression to every target.
func (b *depBuilder) assign(targets, values []ast.Expr) {
	for i, lhs := range targets {
		b.stats.Assignments++
		target, ok := b.target(lhs)
		if !ok {
			b.stats.SkippedTargets++
			continue
		}
		var rhs ast.Expr
		switch {
		case len(values) == len(targets):
			rhs = values[i]
		case len(values) == 1:
			rhs = values[0]
		default:
			continue
		}
		for _, dep := range b.contributions(rhs) {
			b.graph.Add(target, dep)
		}
	}
}

// target returns the location of the last segment of a nameable path
// (identifier or selector chain of identifiers).
func (b *depBuilder) target(expr ast.Expr) (Location, bool) {
	switch e := ast.Unparen(expr).(type) {
	case *ast.Ident:
		if e.Name == "_" {
			return Location{}, false
		}
		return b.identLoc(e), true
	case *ast.SelectorExpr:
		if !isPath(e.X) {
			return Location{}, false
		}
		return b.identLoc(e.Sel), true
	}
	return Location{}, false
}

func isPath(expr ast.Expr) bool {
	switch e := ast.Unparen(expr).(type) {
	case *ast.Ident:
		return true
	case *ast.SelectorExpr:
		return isPath(e.X)
	}
	return false
}

// contributions decomposes a value expression into the declarations it reads.
func (b *depBuilder) contributions(expr ast.Expr) []Location {
	switch e := expr.(type) {
	case *ast.ParenExpr:
		return b.contributions(e.X)
	case *ast.BinaryExpr:
		return append(b.contributions(e.X), b.contributions(e.Y)...)
	case *ast.CallExpr:
		return b.call(e)
	case *ast.SelectorExpr:
		return b.selector(e)
	case *ast.Ident:
		return b.ident(e)
	}
	b.stats.Unresolved++
	return nil
}

func (b *depBuilder) ident(id *ast.Ident) []Location {
	switch obj := b.pkg.TypesInfo.Uses[id].(type) {
	case *types.Var, *types.Const, *types.Func:
		return b.object(obj)
	}
	b.stats.Unresolved++
	return nil
}

// selector resolves x.f to the root binding of x, and pkg.V or a method
// value to its declaration.
func (b *depBuilder) selector(e *ast.SelectorExpr) []Location {
	if sel, ok := b.pkg.TypesInfo.Selections[e]; ok {
		if sel.Kind() == types.FieldVal {
			return b.root(e.X)
		}
		return b.object(sel.Obj())
	}
	if obj := b.pkg.TypesInfo.Uses[e.Sel]; obj != nil {
		return b.object(obj)
	}
	b.stats.Unresolved++
	return nil
}

func (b *depBuilder) root(expr ast.Expr) []Location {
	switch e := ast.Unparen(expr).(type) {
	case *ast.Ident:
		return b.ident(e)
	case *ast.SelectorExpr:
		return b.selector(e)
	case *ast.StarExpr:
		return b.root(e.X)
	}
	b.stats.Unresolved++
	return nil
}

// call resolves the callee of a call to its declaration. Interface method
// calls go through the VTA dispatch table and only count when exactly one
// implementation is reachable. Conversions and builtins contribute nothing.
func (b *depBuilder) call(call *ast.CallExpr) []Location {
	fun := ast.Unparen(call.Fun)
	if tv, ok := b.pkg.TypesInfo.Types[fun]; ok && tv.IsType() {
		return nil
	}
	switch f := fun.(type) {
	case *ast.IndexExpr:
		fun = f.X
	case *ast.IndexListExpr:
		fun = f.X
	}

	switch f := ast.Unparen(fun).(type) {
	case *ast.Ident:
		if fn, ok := b.pkg.TypesInfo.Uses[f].(*types.Func); ok {
			return b.object(fn)
		}
	case *ast.SelectorExpr:
		if sel, ok := b.pkg.TypesInfo.Selections[f]; ok {
			fn, ok := sel.Obj().(*types.Func)
			if !ok {
				break // call through a func-typed field
			}
			if isAbstract(fn) {
				if impl, ok := b.dispatch.Unique(call.Lparen); ok {
					return b.object(impl)
				}
				break
			}
			return b.object(fn)
		}
		if fn, ok := b.pkg.TypesInfo.Uses[f.Sel].(*types.Func); ok {
			return b.object(fn)
		}
	}
	b.stats.Unresolved++
	return nil
}

// isAbstract reports whether fn is an interface method.
func isAbstract(fn *types.Func) bool {
	sig, ok := fn.Type().(*types.Signature)
	if !ok || sig.Recv() == nil {
		return false
	}
	return types.IsInterface(sig.Recv().Type())
}

// object returns the declaration site of obj when it belongs to the module set.
func (b *depBuilder) object(obj types.Object) []Location {
	switch o := obj.(type) {
	case *types.Func:
		obj = o.Origin()
	case *types.Var:
		obj = o.Origin()
	}
	if obj == nil || obj.Pkg() == nil || !obj.Pos().IsValid() {
		b.stats.Unresolved++
		return nil
	}
	if !b.ms.IsKnownPkg(obj.Pkg().Path()) {
		return nil
	}
	pos := b.fset.Position(obj.Pos())
	if !b.ms.ContainsFile(pos.Filename) {
		return nil
	}
	return []Location{{Ident: obj.Name(), File: pos.Filename, Line: pos.Line, Col: pos.Column}}
}

func (b *depBuilder) identLoc(id *ast.Ident) Location {
	pos := b.fset.Position(id.Pos())
	return Location{Ident: id.Name, File: pos.Filename, Line: pos.Line, Col: pos.Column}
}
