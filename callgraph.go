package main

import (
	"go/token"
	"go/types"

	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/callgraph/vta"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// Dispatch resolves interface method calls to their implementations using a
// VTA call graph. Sites are keyed by the call's opening parenthesis.
type Dispatch struct {
	sites map[token.Pos][]*types.Func
}

// BuildDispatch builds SSA for pkgs and records, for every dynamic call site
// inside the module set, the distinct concrete methods VTA says it can reach.
func BuildDispatch(pkgs []*packages.Package, ms *ModuleSet, prog *Progress) *Dispatch {
	prog.Log("Building SSA...")

	ssaProg, ssaPkgs := ssautil.AllPackages(pkgs, ssa.InstantiateGenerics)
	var ssaFailed int
	for i, sp := range ssaPkgs {
		if sp == nil && i < len(pkgs) {
			prog.Verbose("SSA build skipped package: %s", pkgs[i].PkgPath)
			ssaFailed++
		}
	}
	if ssaFailed > 0 {
		prog.Warn("%d packages failed SSA construction", ssaFailed)
	}
	ssaProg.Build()

	allFuncs := ssautil.AllFunctions(ssaProg)

	prog.Log("Building VTA call graph over %d functions...", len(allFuncs))
	cg := vta.CallGraph(allFuncs, nil)
	cg.DeleteSyntheticNodes()

	d := &Dispatch{sites: make(map[token.Pos][]*types.Func)}
	var dynamic int

	_ = callgraph.GraphVisitEdges(cg, func(edge *callgraph.Edge) error {
		if edge.Site == nil || !edge.Site.Common().IsInvoke() {
			return nil
		}
		caller := edge.Caller.Func
		if caller.Pkg == nil || !ms.IsKnownPkg(caller.Pkg.Pkg.Path()) {
			return nil
		}
		callee := edge.Callee.Func
		if callee.Origin() != nil {
			callee = callee.Origin()
		}
		obj, ok := callee.Object().(*types.Func)
		if !ok || obj == nil {
			return nil
		}
		pos := edge.Site.Common().Pos()
		if !pos.IsValid() {
			return nil
		}
		for _, known := range d.sites[pos] {
			if known == obj {
				return nil
			}
		}
		d.sites[pos] = append(d.sites[pos], obj)
		dynamic++
		return nil
	})

	prog.Log("VTA: %d dynamic call sites, %d site/callee pairs", len(d.sites), dynamic)
	return d
}

// Unique returns the only implementation reachable from the call whose
// opening parenthesis is at lparen. Sites with zero or several candidates
// resolve to nothing.
func (d *Dispatch) Unique(lparen token.Pos) (*types.Func, bool) {
	if d == nil {
		return nil, false
	}
	callees := d.sites[lparen]
	if len(callees) != 1 {
		return nil, false
	}
	return callees[0], true
}
