package smartcast

import (
	"go/ast"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/gnolang/smartcast/internal/dfa"
)

// symbol adapts a types.Object to dfa.PropertySymbol. Locals that are never
// address-taken nor assigned from a closure are stable; fields are stable
// until a call or a field store drops them; everything else is unstable.
type symbol struct {
	obj     types.Object
	local   bool
	mutable bool
	this    bool
}

func (s *symbol) Name() string           { return s.obj.Name() }
func (s *symbol) IsLocal() bool          { return s.local }
func (s *symbol) IsMutable() bool        { return s.mutable }
func (s *symbol) Modality() dfa.Modality { return dfa.ModalityFinal }

// ref is the element handed to the storage for an identifier or a field
// selection rooted at one.
type ref struct {
	sym  *symbol
	recv dfa.Element
}

func (r *ref) ReferencedSymbol() dfa.Symbol  { return r.sym }
func (r *ref) ExplicitReceiver() dfa.Element { return r.recv }
func (r *ref) IsSafeCall() bool              { return false }
func (r *ref) IsThisReference() bool         { return r.recv == nil && r.sym.this }

// goType is a Go type as seen by the engine.
type goType struct {
	t types.Type
}

func (g goType) String() string { return types.TypeString(g.t, nil) }

// marker is a pseudo-type recorded for facts that are not Go types.
type marker string

func (m marker) String() string { return string(m) }

// nonNil is recorded in ExactType once `x != nil` is established and in
// ExactNotType once `x == nil` is.
const nonNil marker = "<non-nil>"

func (w *walker) symbolFor(obj types.Object) *symbol {
	if s, ok := w.symbols[obj]; ok {
		return s
	}
	s := &symbol{obj: obj, this: obj == w.recv}
	if v, ok := obj.(*types.Var); ok && !v.IsField() {
		if w.isLocal(v) && !w.unstable[v] {
			s.local = true
		} else {
			s.mutable = true
		}
	}
	w.symbols[obj] = s
	return s
}

// isLocal reports whether obj is declared inside the analyzed function,
// parameters and results included.
func (w *walker) isLocal(obj types.Object) bool {
	if obj.Pkg() != nil && obj.Parent() == obj.Pkg().Scope() {
		return false
	}
	return obj.Pos() >= w.fn.Pos() && obj.Pos() < w.fn.End()
}

// elementOf returns the element for x or x.f.g, or nil when e is not a
// variable reference the engine can follow.
func (w *walker) elementOf(e ast.Expr) *ref {
	switch e := astutil.Unparen(e).(type) {
	case *ast.Ident:
		obj, ok := w.pass.TypesInfo.ObjectOf(e).(*types.Var)
		if !ok || obj.IsField() {
			return nil
		}
		return &ref{sym: w.symbolFor(obj)}
	case *ast.SelectorExpr:
		sel, ok := w.pass.TypesInfo.Selections[e]
		if !ok || sel.Kind() != types.FieldVal {
			return nil
		}
		recv := w.elementOf(e.X)
		if recv == nil {
			return nil
		}
		return &ref{sym: w.symbolFor(sel.Obj()), recv: recv}
	}
	return nil
}

// variable resolves e to a stable real variable, or nil.
func (w *walker) variable(e ast.Expr) *dfa.RealVariable {
	r := w.elementOf(e)
	if r == nil {
		return nil
	}
	v, ok := w.storage.GetOrCreateVariable(r).(*dfa.RealVariable)
	if !ok {
		return nil
	}
	for cur := v; cur != nil; {
		if !cur.IsStable() {
			return nil
		}
		cur, _ = cur.Receiver.(*dfa.RealVariable)
	}
	return v
}

func (w *walker) identObj(e ast.Expr) *types.Var {
	id, ok := astutil.Unparen(e).(*ast.Ident)
	if !ok {
		return nil
	}
	v, _ := w.pass.TypesInfo.ObjectOf(id).(*types.Var)
	return v
}

// scan records address-taken variables, variables written by closures, how
// often each variable is assigned and how many of those assignments are
// `:=` definitions.
func (w *walker) scan(body *ast.BlockStmt) {
	ast.Inspect(body, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.UnaryExpr:
			if n.Op == token.AND {
				if v := w.identObj(n.X); v != nil {
					w.unstable[v] = true
				}
			}
		case *ast.FuncLit:
			w.scanClosure(n)
		case *ast.AssignStmt:
			for _, lhs := range n.Lhs {
				v := w.identObj(lhs)
				if v == nil {
					continue
				}
				w.assigns[v]++
				if id, ok := astutil.Unparen(lhs).(*ast.Ident); ok && n.Tok == token.DEFINE && w.pass.TypesInfo.Defs[id] != nil {
					w.defines[v]++
				}
			}
		case *ast.IncDecStmt:
			if v := w.identObj(n.X); v != nil {
				w.assigns[v]++
			}
		case *ast.RangeStmt:
			if n.Tok == token.ASSIGN {
				for _, e := range []ast.Expr{n.Key, n.Value} {
					if v := w.identObj(e); v != nil {
						w.assigns[v]++
					}
				}
			}
		}
		return true
	})
}

func (w *walker) scanClosure(lit *ast.FuncLit) {
	outside := func(v *types.Var) bool {
		return v.Pos() < lit.Pos() || v.Pos() >= lit.End()
	}
	mark := func(e ast.Expr) {
		if v := w.identObj(e); v != nil && outside(v) {
			w.unstable[v] = true
		}
	}
	ast.Inspect(lit.Body, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.AssignStmt:
			for _, lhs := range n.Lhs {
				mark(lhs)
			}
		case *ast.IncDecStmt:
			mark(n.X)
		case *ast.RangeStmt:
			mark(n.Key)
			mark(n.Value)
		}
		return true
	})
}

func hasGoto(body *ast.BlockStmt) bool {
	found := false
	ast.Inspect(body, func(n ast.Node) bool {
		if b, ok := n.(*ast.BranchStmt); ok && b.Tok == token.GOTO {
			found = true
		}
		return !found
	})
	return found
}

func isBool(t types.Type) bool {
	if t == nil {
		return false
	}
	b, ok := t.Underlying().(*types.Basic)
	return ok && b.Info()&types.IsBoolean != 0
}

func isNilable(t types.Type) bool {
	if t == nil {
		return false
	}
	switch t.Underlying().(type) {
	case *types.Pointer, *types.Slice, *types.Map, *types.Chan, *types.Signature, *types.Interface:
		return true
	}
	return false
}
