package smartcast

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/ast/astutil"

	"github.com/gnolang/smartcast/internal/analysis/lattice"
	"github.com/gnolang/smartcast/internal/dfa"
)

// cond evaluates a boolean expression in flow and returns the variable its
// outcome is recorded on. Statements conditioned on that variable say what
// each outcome implies.
func (w *walker) cond(flow *dfa.MapFlow, e ast.Expr) dfa.DataFlowVariable {
	switch x := e.(type) {
	case *ast.ParenExpr:
		return w.cond(flow, x.X)
	case *ast.UnaryExpr:
		if x.Op == token.NOT {
			operand := w.cond(flow, x.X)
			v := w.storage.CreateSyntheticVariable(x)
			w.logic.TranslateConditionalVariableInStatements(
				flow, operand, v, operand.IsSynthetic(), nil, dfa.LogicStatement.InvertCondition)
			w.storage.RemoveSyntheticVariable(operand)
			return v
		}
	case *ast.BinaryExpr:
		switch x.Op {
		case token.LAND:
			return w.boolean(flow, x, dfa.OpAnd)
		case token.LOR:
			return w.boolean(flow, x, dfa.OpOr)
		case token.EQL, token.NEQ:
			if v := w.nilCheck(flow, x); v != nil {
				return v
			}
		}
	case *ast.Ident:
		if v := w.variable(x); v != nil && isBool(w.pass.TypesInfo.TypeOf(x)) {
			return v
		}
	}
	w.expr(flow, e)
	return w.storage.CreateSyntheticVariable(e)
}

// boolean combines the operands of a short-circuit operator. The right
// operand is evaluated in a fork where the left one already had the
// outcome that lets evaluation reach it.
func (w *walker) boolean(flow *dfa.MapFlow, x *ast.BinaryExpr, op dfa.BooleanOperator) dfa.DataFlowVariable {
	left := w.cond(flow, x.X)
	reach := dfa.EqTrueOf(left)
	if op == dfa.OpOr {
		reach = dfa.EqFalseOf(left)
	}
	rightFlow := w.logic.ApproveStatementsInsideFlow(flow, reach, true, false)
	right := w.cond(rightFlow, x.Y)
	// The right operand may not run, but when it does its calls may have
	// written any field.
	if w.callsIn(x.Y) {
		w.dropFields(flow)
	}

	info := w.logic.CollectInfoForBooleanOperator(flow, left, rightFlow, right)
	onTrue, onFalse := w.logic.BooleanFacts(op, info, left, right)

	result := w.storage.CreateSyntheticVariable(x)
	w.logic.AddImplications(flow, dfa.EqTrueOf(result), onTrue)
	w.logic.AddImplications(flow, dfa.EqFalseOf(result), onFalse)
	if left.IsSynthetic() {
		flow.RemoveConditions(left)
	}
	w.storage.RemoveSyntheticVariable(left)
	w.storage.RemoveSyntheticVariable(right)
	return result
}

// nilCheck handles `x == nil` and `x != nil`. It returns nil when neither
// side is the nil literal.
func (w *walker) nilCheck(flow *dfa.MapFlow, x *ast.BinaryExpr) dfa.DataFlowVariable {
	var operand ast.Expr
	switch {
	case w.isNilExpr(x.Y):
		operand = x.X
	case w.isNilExpr(x.X):
		operand = x.Y
	default:
		return nil
	}
	w.expr(flow, operand)
	s := w.storage.CreateSyntheticVariable(x)
	v := w.variable(operand)
	if v == nil {
		return s
	}
	if w.opts.NilChecks {
		switch lattice.Of(flow.KnownInfo(v), nonNil) {
		case lattice.NonNil:
			w.report(x, RuleNilCheck, "redundant nil check: %s is never nil here", types.ExprString(operand))
		case lattice.Nil:
			w.report(x, RuleNilCheck, "redundant nil check: %s is always nil here", types.ExprString(operand))
		}
	}

	onTrue, onFalse := dfa.NotNullOf(v), dfa.EqNullOf(v)
	if x.Op == token.EQL {
		onTrue, onFalse = onFalse, onTrue
	}
	w.logic.AddLogicStatement(flow, dfa.Implies(dfa.EqTrueOf(s), onTrue))
	w.logic.AddLogicStatement(flow, dfa.Implies(dfa.EqFalseOf(s), onFalse))
	return s
}

// expr evaluates e for its effects on flow: type assertions, calls that may
// write fields, and nested conditions. Function literals are analyzed on
// their own.
func (w *walker) expr(flow *dfa.MapFlow, e ast.Expr) {
	if e == nil {
		return
	}
	ast.Inspect(e, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.FuncLit:
			return false
		case *ast.BinaryExpr:
			if !w.isCondition(n) {
				return true
			}
			v := w.cond(flow, n)
			flow.RemoveConditions(v)
			w.storage.RemoveSyntheticVariable(v)
			return false
		case *ast.UnaryExpr:
			if n.Op != token.NOT {
				return true
			}
			v := w.cond(flow, n)
			flow.RemoveConditions(v)
			w.storage.RemoveSyntheticVariable(v)
			return false
		case *ast.TypeAssertExpr:
			if n.Type == nil {
				return true
			}
			w.expr(flow, n.X)
			w.assertion(flow, n)
			return false
		case *ast.CallExpr:
			w.expr(flow, n.Fun)
			for _, arg := range n.Args {
				w.expr(flow, arg)
			}
			if w.isCall(n) {
				w.dropFields(flow)
			}
			return false
		}
		return true
	})
}

func (w *walker) isCondition(x *ast.BinaryExpr) bool {
	switch x.Op {
	case token.LAND, token.LOR:
		return true
	case token.EQL, token.NEQ:
		return w.isNilExpr(x.X) || w.isNilExpr(x.Y)
	}
	return false
}

// assertion handles `x.(T)` outside of a comma-ok assignment: evaluation
// continues only if x is a non-nil T.
func (w *walker) assertion(flow *dfa.MapFlow, ta *ast.TypeAssertExpr) {
	x := w.variable(ta.X)
	typ := w.pass.TypesInfo.TypeOf(ta.Type)
	if x == nil || typ == nil {
		return
	}
	w.checkAssertion(flow, ta, x, typ)
	w.logic.AddKnownInfo(flow, dfa.Has(x, goType{typ}, nonNil))
}

func (w *walker) checkAssertion(flow *dfa.MapFlow, ta *ast.TypeAssertExpr, x *dfa.RealVariable, typ types.Type) {
	if !w.opts.Assertions {
		return
	}
	if alwaysSucceeds(flow.KnownInfo(x), typ) {
		w.report(ta, RuleAssertion, "type assertion %s always succeeds here", types.ExprString(ta))
	}
}

// alwaysSucceeds reports whether info proves that the dynamic value is a
// non-nil typ. A concrete type in ExactType is the exact dynamic type.
func alwaysSucceeds(info *dfa.TypeInfo, typ types.Type) bool {
	if info.IsEmpty() || !info.ExactType.Contains(nonNil) {
		return false
	}
	for _, known := range info.ExactType {
		g, ok := known.(goType)
		if !ok {
			continue
		}
		if types.IsInterface(typ) {
			if types.AssignableTo(g.t, typ) {
				return true
			}
		} else if !types.IsInterface(g.t) && types.Identical(g.t, typ) {
			return true
		}
	}
	return false
}

// callsIn reports whether evaluating e may call a function. Function
// literals are not evaluated.
func (w *walker) callsIn(e ast.Expr) bool {
	found := false
	ast.Inspect(e, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.FuncLit:
			return false
		case *ast.CallExpr:
			if w.isCall(n) {
				found = true
			}
		}
		return !found
	})
	return found
}

// isCall reports whether c calls a function, as opposed to a conversion or
// a builtin.
func (w *walker) isCall(c *ast.CallExpr) bool {
	tv, ok := w.pass.TypesInfo.Types[c.Fun]
	if !ok {
		return true
	}
	return !tv.IsType() && !tv.IsBuiltin()
}

func (w *walker) report(n ast.Node, rule, format string, args ...interface{}) {
	w.pass.Report(analysis.Diagnostic{
		Pos:      n.Pos(),
		End:      n.End(),
		Category: rule,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (w *walker) isNilExpr(e ast.Expr) bool {
	tv, ok := w.pass.TypesInfo.Types[astutil.Unparen(e)]
	return ok && tv.IsNil()
}
