package main

import (
	"go/ast"
	"go/token"

	"golang.org/x/tools/go/ast/astutil"
)

// SatImportPath is the package providing the saturating helpers that the
// saturating patterns call into.
const SatImportPath = "faultfix/sat"

// Pattern is one repair rewrite. Rewrite is called with the cursor on a node
// whose span covers the candidate line and reports whether it changed the
// tree. The children of a changed node are only visited when Descend is set.
// Subtrees for which Skip reports true are neither rewritten nor traversed.
//
// Nodes a rewrite synthesizes take their positions from the code they
// replace; go/printer places comments by position, so a node without one
// drags the line's trailing comment into the middle of the new expression.
type Pattern struct {
	Name    string
	Descend bool
	Import  string // added to the file when the pattern changed something
	Skip    func(c *astutil.Cursor) bool
	Rewrite func(c *astutil.Cursor) bool
}

// Catalog is the closed set of repair patterns, in application order.
var Catalog = []Pattern{
	{Name: "index-shift", Skip: isTypeExpr, Rewrite: rewriteIndexShift},
	{Name: "saturating-arith", Import: SatImportPath, Rewrite: rewriteSaturatingArith},
	{Name: "saturating-abs", Descend: true, Import: SatImportPath, Rewrite: rewriteSaturatingAbs},
	{Name: "add-as-bytes", Descend: true, Rewrite: renameMethod("Add", "Bytes")},
	{Name: "add-as-max", Descend: true, Rewrite: renameMethod("Add", "Max")},
	{Name: "map-to-filter-map", Descend: true, Rewrite: rewriteMapToFilterMap},
	{Name: "expect-to-unwrap-or-else", Descend: true, Rewrite: rewriteExpectToUnwrapOrElse},
	{Name: "expect-to-unwrap-or-default", Descend: true, Rewrite: rewriteExpectToUnwrapOrDefault},
	{Name: "copy-to-extend", Rewrite: rewriteCopyToExtend},
}

// LookupPattern finds a catalog entry by name.
func LookupPattern(name string) (Pattern, bool) {
	for _, p := range Catalog {
		if p.Name == name {
			return p, true
		}
	}
	return Pattern{}, false
}

// SelectPatterns returns the named catalog entries in catalog order, or the
// whole catalog when names is empty.
func SelectPatterns(names []string) []Pattern {
	if len(names) == 0 {
		return Catalog
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []Pattern
	for _, p := range Catalog {
		if want[p.Name] {
			out = append(out, p)
		}
	}
	return out
}

func intLit(v string, pos token.Pos) *ast.BasicLit {
	return &ast.BasicLit{ValuePos: pos, Kind: token.INT, Value: v}
}

func identAt(name string, pos token.Pos) *ast.Ident {
	return &ast.Ident{NamePos: pos, Name: name}
}

func isStringLit(e ast.Expr) bool {
	lit, ok := ast.Unparen(e).(*ast.BasicLit)
	return ok && lit.Kind == token.STRING
}

// satCall builds sat.fn(args...) opening at pos and closing at rparen.
func satCall(fn string, pos, rparen token.Pos, args ...ast.Expr) *ast.CallExpr {
	return &ast.CallExpr{
		Fun:    &ast.SelectorExpr{X: identAt("sat", pos), Sel: identAt(fn, pos)},
		Lparen: pos,
		Args:   args,
		Rparen: rparen,
	}
}

// satSum builds 0 + sat.fn(x, y) in place of the expression spanning
// [pos, end).
func satSum(fn string, pos, end token.Pos, x, y ast.Expr) *ast.BinaryExpr {
	return &ast.BinaryExpr{
		X:     intLit("0", pos),
		OpPos: pos,
		Op:    token.ADD,
		Y:     satCall(fn, pos, end-1, x, y),
	}
}

// isTypeExpr reports whether the cursor sits on a type expression. Only
// syntax is available, so it recognises type literals and the Type and
// TypeParams fields of declarations, fields, literals and assertions.
func isTypeExpr(c *astutil.Cursor) bool {
	switch c.Node().(type) {
	case *ast.ArrayType, *ast.MapType, *ast.ChanType, *ast.FuncType, *ast.StructType, *ast.InterfaceType:
		return true
	}
	switch c.Name() {
	case "Type", "TypeParams":
		return true
	}
	return false
}

// rename replaces the selected name, keeping its position.
func rename(sel *ast.SelectorExpr, name string) {
	sel.Sel = identAt(name, sel.Sel.Pos())
}

// methodCall matches recv.Name(args...) and returns its selector.
func methodCall(n ast.Node, name string) (*ast.CallExpr, *ast.SelectorExpr, bool) {
	call, ok := n.(*ast.CallExpr)
	if !ok {
		return nil, nil, false
	}
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != name {
		return nil, nil, false
	}
	return call, sel, true
}

// rewriteIndexShift turns a[i] into a[i - 1] and a[lo:hi] into a[(lo - 1):hi].
// A missing low bound becomes the placeholder 0 - 0.
func rewriteIndexShift(c *astutil.Cursor) bool {
	switch n := c.Node().(type) {
	case *ast.IndexExpr:
		// f[T](...) is an instantiation, m["k"] a map lookup.
		if c.Name() == "Fun" || isStringLit(n.Index) {
			return false
		}
		end := n.Index.End()
		n.Index = &ast.BinaryExpr{X: n.Index, OpPos: end, Op: token.SUB, Y: intLit("1", end)}
		return true
	case *ast.SliceExpr:
		if n.Low == nil {
			pos := n.Lbrack + 1
			n.Low = &ast.BinaryExpr{X: intLit("0", pos), OpPos: pos, Op: token.SUB, Y: intLit("0", pos)}
			return true
		}
		pos, end := n.Low.Pos(), n.Low.End()
		n.Low = &ast.ParenExpr{
			Lparen: pos,
			X:      &ast.BinaryExpr{X: n.Low, OpPos: end, Op: token.SUB, Y: intLit("1", end)},
			Rparen: end,
		}
		return true
	}
	return false
}

// rewriteSaturatingArith turns x + y into 0 + sat.Add(x, y), x - y into
// 0 + sat.Sub(x, y), and x += y into x = 0 + sat.Add(x, y).
func rewriteSaturatingArith(c *astutil.Cursor) bool {
	switch n := c.Node().(type) {
	case *ast.BinaryExpr:
		fn, ok := satFuncs[n.Op]
		if !ok || isStringLit(n.X) || isStringLit(n.Y) {
			return false
		}
		c.Replace(satSum(fn, n.Pos(), n.End(), n.X, n.Y))
		return true
	case *ast.AssignStmt:
		fn, ok := satFuncs[n.Tok]
		if !ok || len(n.Lhs) != 1 || len(n.Rhs) != 1 || isStringLit(n.Rhs[0]) {
			return false
		}
		rhs := n.Rhs[0]
		c.Replace(&ast.AssignStmt{
			Lhs:    n.Lhs,
			TokPos: n.TokPos,
			Tok:    token.ASSIGN,
			Rhs:    []ast.Expr{satSum(fn, rhs.Pos(), rhs.End(), n.Lhs[0], rhs)},
		})
		return true
	}
	return false
}

var satFuncs = map[token.Token]string{
	token.ADD:        "Add",
	token.SUB:        "Sub",
	token.ADD_ASSIGN: "Add",
	token.SUB_ASSIGN: "Sub",
}

// rewriteSaturatingAbs turns x.Abs() and abs(x) into sat.Abs(x).
func rewriteSaturatingAbs(c *astutil.Cursor) bool {
	call, ok := c.Node().(*ast.CallExpr)
	if !ok {
		return false
	}
	switch fun := call.Fun.(type) {
	case *ast.SelectorExpr:
		if fun.Sel.Name != "Abs" || len(call.Args) != 0 {
			return false
		}
		c.Replace(satCall("Abs", call.Pos(), call.Rparen, fun.X))
		return true
	case *ast.Ident:
		if fun.Name != "abs" || len(call.Args) != 1 {
			return false
		}
		c.Replace(satCall("Abs", call.Pos(), call.Rparen, call.Args[0]))
		return true
	}
	return false
}

func renameMethod(from, to string) func(*astutil.Cursor) bool {
	return func(c *astutil.Cursor) bool {
		_, sel, ok := methodCall(c.Node(), from)
		if !ok {
			return false
		}
		rename(sel, to)
		return true
	}
}

// rewriteMapToFilterMap turns
//
//	r.Map(func(p T) R { return p.Get().Unwrap().Len() })
//
// into
//
//	r.FilterMap(func(p T) R { return p.Get().Map(func(a any) any { return a.Len() }) })
//
// The calls after Unwrap move into a closure over the unwrapped value.
func rewriteMapToFilterMap(c *astutil.Cursor) bool {
	call, sel, ok := methodCall(c.Node(), "Map")
	if !ok || len(call.Args) == 0 {
		return false
	}
	lit, ok := call.Args[0].(*ast.FuncLit)
	if !ok || lit.Body == nil || len(lit.Body.List) != 1 {
		return false
	}
	ret, ok := lit.Body.List[0].(*ast.ReturnStmt)
	if !ok || len(ret.Results) != 1 {
		return false
	}

	// chain[0] is the outermost call.
	var chain []*ast.CallExpr
	for e := ret.Results[0]; ; {
		inner, isel, ok := methodCallAny(e)
		if !ok {
			break
		}
		chain = append(chain, inner)
		e = isel.X
	}
	unwrap := -1
	for i := len(chain) - 1; i >= 0; i-- {
		if chain[i].Fun.(*ast.SelectorExpr).Sel.Name == "Unwrap" {
			unwrap = i
			break
		}
	}
	if unwrap < 0 {
		return false
	}

	recv := chain[unwrap].Fun.(*ast.SelectorExpr).X
	if unwrap == 0 {
		ret.Results[0] = recv
	} else {
		// The new calls sit where the unwrapped chain was; reused
		// arguments keep their own positions.
		pos, end := recv.End(), ret.Results[0].End()
		var body ast.Expr = identAt("a", pos)
		for i := unwrap - 1; i >= 0; i-- {
			orig := chain[i]
			body = &ast.CallExpr{
				Fun:      &ast.SelectorExpr{X: body, Sel: identAt(orig.Fun.(*ast.SelectorExpr).Sel.Name, pos)},
				Lparen:   pos,
				Args:     orig.Args,
				Ellipsis: orig.Ellipsis,
				Rparen:   end - 1,
			}
		}
		param := []*ast.Field{{Names: []*ast.Ident{identAt("a", pos)}, Type: identAt("any", pos)}}
		ret.Results[0] = &ast.CallExpr{
			Fun:    &ast.SelectorExpr{X: recv, Sel: identAt("Map", pos)},
			Lparen: pos,
			Args:   []ast.Expr{anyFunc(param, body, pos)},
			Rparen: end - 1,
		}
	}
	rename(sel, "FilterMap")
	return true
}

func methodCallAny(e ast.Expr) (*ast.CallExpr, *ast.SelectorExpr, bool) {
	call, ok := e.(*ast.CallExpr)
	if !ok {
		return nil, nil, false
	}
	sel, ok := call.Fun.(*ast.SelectorExpr)
	return call, sel, ok
}

// anyFunc builds func(params) any { return result } with every token at pos,
// which also keeps the literal on one line.
func anyFunc(params []*ast.Field, result ast.Expr, pos token.Pos) *ast.FuncLit {
	return &ast.FuncLit{
		Type: &ast.FuncType{
			Func:    pos,
			Params:  &ast.FieldList{Opening: pos, List: params, Closing: pos},
			Results: &ast.FieldList{List: []*ast.Field{{Type: identAt("any", pos)}}},
		},
		Body: &ast.BlockStmt{
			Lbrace: pos,
			List:   []ast.Stmt{&ast.ReturnStmt{Return: pos, Results: []ast.Expr{result}}},
			Rbrace: pos,
		},
	}
}

// rewriteExpectToUnwrapOrElse turns x.Expect(msg) into
// x.UnwrapOrElse(func() any { return 1 }).
func rewriteExpectToUnwrapOrElse(c *astutil.Cursor) bool {
	call, sel, ok := methodCall(c.Node(), "Expect")
	if !ok {
		return false
	}
	rename(sel, "UnwrapOrElse")
	pos := call.Lparen + 1
	call.Args = []ast.Expr{anyFunc(nil, intLit("1", pos), pos)}
	call.Ellipsis = token.NoPos
	return true
}

// rewriteExpectToUnwrapOrDefault turns x.Expect(msg) into x.UnwrapOrDefault().
func rewriteExpectToUnwrapOrDefault(c *astutil.Cursor) bool {
	call, sel, ok := methodCall(c.Node(), "Expect")
	if !ok {
		return false
	}
	rename(sel, "UnwrapOrDefault")
	call.Args = nil
	call.Ellipsis = token.NoPos
	return true
}

// rewriteCopyToExtend turns the statement copy(dst, src) into
// dst = append(dst, src...).
func rewriteCopyToExtend(c *astutil.Cursor) bool {
	stmt, ok := c.Node().(*ast.ExprStmt)
	if !ok {
		return false
	}
	call, ok := stmt.X.(*ast.CallExpr)
	if !ok || len(call.Args) != 2 || call.Ellipsis.IsValid() {
		return false
	}
	if fn, ok := call.Fun.(*ast.Ident); !ok || fn.Name != "copy" {
		return false
	}
	dst, src := call.Args[0], call.Args[1]
	c.Replace(&ast.AssignStmt{
		Lhs:    []ast.Expr{dst},
		TokPos: call.Pos(),
		Tok:    token.ASSIGN,
		Rhs: []ast.Expr{&ast.CallExpr{
			Fun:      identAt("append", call.Pos()),
			Lparen:   call.Lparen,
			Args:     []ast.Expr{dst, src},
			Ellipsis: src.End(),
			Rparen:   call.Rparen,
		}},
	})
	return true
}
