package smartcast

import (
	"go/ast"
	"go/token"
	"go/types"

	"go.uber.org/zap"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/ast/astutil"

	"github.com/gnolang/smartcast/internal/branch"
	"github.com/gnolang/smartcast/internal/dfa"
)

// walker maps each statement of one function body from an incoming flow to
// an outgoing one. A nil flow means the code is unreachable.
type walker struct {
	pass    *analysis.Pass
	logger  *zap.Logger
	opts    Options
	storage *dfa.VariableStorage
	logic   *dfa.MapLogicSystem

	fn   ast.Node
	recv types.Object

	symbols  map[types.Object]*symbol
	unstable map[*types.Var]bool
	assigns  map[*types.Var]int
	defines  map[*types.Var]int
	targets  []*target
}

// target collects the flows leaving a loop, switch or select through break.
type target struct {
	label  string
	breaks []*dfa.MapFlow
}

type receiverLog struct {
	logger *zap.Logger
}

func (r receiverLog) ReceiverUpdated(v *dfa.RealVariable, info *dfa.TypeInfo) {
	if info == nil {
		r.logger.Debug("receiver narrowing dropped", zap.Stringer("receiver", v))
		return
	}
	r.logger.Debug("receiver narrowed", zap.Stringer("receiver", v), zap.Stringer("info", info))
}

func newWalker(pass *analysis.Pass, logger *zap.Logger, opts Options, fn ast.Node) *walker {
	storage := dfa.NewVariableStorage(logger)
	w := &walker{
		pass:    pass,
		logger:  logger,
		opts:    opts,
		storage: storage,
		logic: dfa.NewMapLogicSystem(storage, dfa.Config{
			Logger:           logger,
			Oracle:           dfa.OracleFunc(commonInterface),
			NonNullType:      nonNil,
			MaxApprovalDepth: opts.MaxApprovalDepth,
			Receivers:        receiverLog{logger: logger},
		}),
		fn:       fn,
		symbols:  make(map[types.Object]*symbol),
		unstable: make(map[*types.Var]bool),
		assigns:  make(map[*types.Var]int),
		defines:  make(map[*types.Var]int),
	}
	if decl, ok := fn.(*ast.FuncDecl); ok && decl.Recv != nil {
		for _, field := range decl.Recv.List {
			for _, name := range field.Names {
				w.recv = pass.TypesInfo.Defs[name]
			}
		}
	}
	return w
}

// commonInterface widens divergent narrowings to one of them when it is an
// interface every other one implements.
func commonInterface(ts []dfa.Type) dfa.Type {
	for _, candidate := range ts {
		c, ok := candidate.(goType)
		if !ok || !types.IsInterface(c.t) {
			continue
		}
		all := true
		for _, t := range ts {
			g, ok := t.(goType)
			if !ok || !types.AssignableTo(g.t, c.t) {
				all = false
				break
			}
		}
		if all {
			return c
		}
	}
	return nil
}

func (w *walker) join(flows ...*dfa.MapFlow) *dfa.MapFlow {
	live := make([]*dfa.MapFlow, 0, len(flows))
	for _, f := range flows {
		if f != nil {
			live = append(live, f)
		}
	}
	switch len(live) {
	case 0:
		return nil
	case 1:
		return live[0]
	}
	return w.logic.JoinFlow(live)
}

func (w *walker) fork(flow *dfa.MapFlow) *dfa.MapFlow {
	return w.logic.ForkFlow(flow)
}

func (w *walker) push(label string) *target {
	t := &target{label: label}
	w.targets = append(w.targets, t)
	return t
}

func (w *walker) pop() {
	w.targets = w.targets[:len(w.targets)-1]
}

func (w *walker) target(label *ast.Ident) *target {
	for i := len(w.targets) - 1; i >= 0; i-- {
		if label == nil || w.targets[i].label == label.Name {
			return w.targets[i]
		}
	}
	return nil
}

func (w *walker) block(flow *dfa.MapFlow, list []ast.Stmt) *dfa.MapFlow {
	for _, s := range list {
		if flow == nil {
			return nil
		}
		flow = w.stmt(flow, s)
	}
	return flow
}

func (w *walker) stmt(flow *dfa.MapFlow, s ast.Stmt) *dfa.MapFlow {
	switch s := s.(type) {
	case *ast.BlockStmt:
		return w.block(flow, s.List)
	case *ast.ExprStmt:
		w.expr(flow, s.X)
		if branch.Of(s).LeavesFunction() {
			return nil
		}
	case *ast.AssignStmt:
		w.assign(flow, s)
	case *ast.DeclStmt:
		w.decl(flow, s)
	case *ast.IncDecStmt:
		w.expr(flow, s.X)
		w.store(flow, []ast.Expr{s.X})
	case *ast.SendStmt:
		w.expr(flow, s.Chan)
		w.expr(flow, s.Value)
	case *ast.GoStmt:
		w.expr(flow, s.Call)
	case *ast.DeferStmt:
		w.expr(flow, s.Call)
	case *ast.ReturnStmt:
		for _, r := range s.Results {
			w.expr(flow, r)
		}
		return nil
	case *ast.BranchStmt:
		if s.Tok == token.BREAK {
			if t := w.target(s.Label); t != nil {
				t.breaks = append(t.breaks, flow)
			}
		}
		// continue loops back to a head that already assumes the worst;
		// goto is never walked and fallthrough is handled by the switch.
		return nil
	case *ast.LabeledStmt:
		return w.labeled(flow, s)
	case *ast.IfStmt:
		return w.ifStmt(flow, s)
	case *ast.ForStmt:
		return w.forStmt(flow, s, "")
	case *ast.RangeStmt:
		return w.rangeStmt(flow, s, "")
	case *ast.SwitchStmt:
		return w.switchStmt(flow, s, "")
	case *ast.TypeSwitchStmt:
		return w.typeSwitchStmt(flow, s, "")
	case *ast.SelectStmt:
		return w.selectStmt(flow, s, "")
	}
	return flow
}

func (w *walker) labeled(flow *dfa.MapFlow, s *ast.LabeledStmt) *dfa.MapFlow {
	label := s.Label.Name
	switch inner := s.Stmt.(type) {
	case *ast.ForStmt:
		return w.forStmt(flow, inner, label)
	case *ast.RangeStmt:
		return w.rangeStmt(flow, inner, label)
	case *ast.SwitchStmt:
		return w.switchStmt(flow, inner, label)
	case *ast.TypeSwitchStmt:
		return w.typeSwitchStmt(flow, inner, label)
	case *ast.SelectStmt:
		return w.selectStmt(flow, inner, label)
	}
	return w.stmt(flow, s.Stmt)
}

func (w *walker) ifStmt(flow *dfa.MapFlow, s *ast.IfStmt) *dfa.MapFlow {
	if s.Init != nil {
		if flow = w.stmt(flow, s.Init); flow == nil {
			return nil
		}
	}
	c := w.cond(flow, s.Cond)
	thenFlow := w.logic.ApproveStatementsInsideFlow(flow, dfa.EqTrueOf(c), true, false)
	elseFlow := w.logic.ApproveStatementsInsideFlow(flow, dfa.EqFalseOf(c), true, true)

	thenOut := w.block(thenFlow, s.Body.List)
	elseOut := elseFlow
	if s.Else != nil {
		elseOut = w.stmt(elseFlow, s.Else)
	}
	return w.join(thenOut, elseOut)
}

func (w *walker) forStmt(flow *dfa.MapFlow, s *ast.ForStmt, label string) *dfa.MapFlow {
	if s.Init != nil {
		if flow = w.stmt(flow, s.Init); flow == nil {
			return nil
		}
	}
	head := w.loopHead(flow, s)
	t := w.push(label)
	defer w.pop()

	var body, exit *dfa.MapFlow
	if s.Cond != nil {
		c := w.cond(head, s.Cond)
		body = w.logic.ApproveStatementsInsideFlow(head, dfa.EqTrueOf(c), true, false)
		exit = w.logic.ApproveStatementsInsideFlow(head, dfa.EqFalseOf(c), true, true)
	} else {
		body = w.fork(head)
	}
	w.block(body, s.Body.List)
	if s.Post != nil {
		w.stmt(w.fork(head), s.Post)
	}
	return w.join(append([]*dfa.MapFlow{exit}, t.breaks...)...)
}

func (w *walker) rangeStmt(flow *dfa.MapFlow, s *ast.RangeStmt, label string) *dfa.MapFlow {
	w.expr(flow, s.X)
	head := w.loopHead(flow, s)
	t := w.push(label)
	defer w.pop()

	body := w.fork(head)
	if s.Tok == token.ASSIGN {
		w.store(body, []ast.Expr{s.Key, s.Value})
	}
	w.block(body, s.Body.List)
	return w.join(append([]*dfa.MapFlow{head}, t.breaks...)...)
}

// loopHead weakens flow to what holds on every iteration: variables the
// loop assigns are forgotten, and so are fields when the loop may write
// them.
func (w *walker) loopHead(flow *dfa.MapFlow, loop ast.Node) *dfa.MapFlow {
	vars, fields := w.loopEffects(loop)
	for _, v := range vars {
		if v.Pos() >= loop.Pos() && v.Pos() < loop.End() {
			continue
		}
		if rv := w.storage.Get(w.symbolFor(v)); rv != nil {
			w.logic.RemoveAllAboutVariable(flow, rv)
		}
	}
	if fields {
		w.dropFields(flow)
	}
	return flow
}

func (w *walker) loopEffects(loop ast.Node) (vars []*types.Var, fields bool) {
	seen := make(map[*types.Var]bool)
	add := func(e ast.Expr) {
		if e == nil {
			return
		}
		v := w.identObj(e)
		if v == nil {
			if _, blank := astutil.Unparen(e).(*ast.Ident); !blank {
				fields = true
			}
			return
		}
		if !seen[v] {
			seen[v] = true
			vars = append(vars, v)
		}
	}
	ast.Inspect(loop, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.AssignStmt:
			for _, lhs := range n.Lhs {
				add(lhs)
			}
		case *ast.IncDecStmt:
			add(n.X)
		case *ast.RangeStmt:
			add(n.Key)
			add(n.Value)
		case *ast.CallExpr:
			if w.isCall(n) {
				fields = true
			}
		}
		return true
	})
	return vars, fields
}

func (w *walker) switchStmt(flow *dfa.MapFlow, s *ast.SwitchStmt, label string) *dfa.MapFlow {
	if s.Init != nil {
		if flow = w.stmt(flow, s.Init); flow == nil {
			return nil
		}
	}
	if s.Tag != nil {
		w.expr(flow, s.Tag)
	}
	t := w.push(label)
	defer w.pop()

	clauses := s.Body.List
	entries := make([]*dfa.MapFlow, len(clauses))
	rest := flow
	hasDefault := false
	for i, c := range clauses {
		cc := c.(*ast.CaseClause)
		if cc.List == nil {
			hasDefault = true
			continue
		}
		if s.Tag != nil {
			for _, e := range cc.List {
				w.expr(rest, e)
			}
			entries[i] = w.fork(rest)
			continue
		}
		var matched []*dfa.MapFlow
		for _, e := range cc.List {
			v := w.cond(rest, e)
			matched = append(matched, w.logic.ApproveStatementsInsideFlow(rest, dfa.EqTrueOf(v), true, false))
			rest = w.logic.ApproveStatementsInsideFlow(rest, dfa.EqFalseOf(v), true, true)
		}
		entries[i] = w.join(matched...)
	}

	var outs []*dfa.MapFlow
	var carry *dfa.MapFlow
	for i, c := range clauses {
		cc := c.(*ast.CaseClause)
		entry := entries[i]
		if cc.List == nil {
			entry = rest
		}
		entry = w.join(entry, carry)
		carry = nil

		body := cc.Body
		falls := len(body) > 0 && branch.Of(body[len(body)-1]) == branch.Fallthrough
		if falls {
			body = body[:len(body)-1]
		}
		end := w.block(entry, body)
		if falls {
			carry = end
		} else {
			outs = append(outs, end)
		}
	}
	if !hasDefault {
		outs = append(outs, rest)
	}
	return w.join(append(outs, t.breaks...)...)
}

func (w *walker) typeSwitchStmt(flow *dfa.MapFlow, s *ast.TypeSwitchStmt, label string) *dfa.MapFlow {
	if s.Init != nil {
		if flow = w.stmt(flow, s.Init); flow == nil {
			return nil
		}
	}
	var guard *ast.TypeAssertExpr
	switch a := s.Assign.(type) {
	case *ast.ExprStmt:
		guard, _ = astutil.Unparen(a.X).(*ast.TypeAssertExpr)
	case *ast.AssignStmt:
		guard, _ = astutil.Unparen(a.Rhs[0]).(*ast.TypeAssertExpr)
	}
	if guard == nil {
		return flow
	}
	w.expr(flow, guard.X)
	x := w.variable(guard.X)

	t := w.push(label)
	defer w.pop()

	nilListed := false
	hasDefault := false
	var outs []*dfa.MapFlow
	for _, c := range s.Body.List {
		cc := c.(*ast.CaseClause)
		entry := w.fork(flow)
		switch {
		case cc.List == nil:
			hasDefault = true
			continue
		case x == nil:
		case len(cc.List) == 1 && w.isNilExpr(cc.List[0]):
			nilListed = true
			w.logic.AddKnownInfo(entry, dfa.HasNot(x, nonNil))
		case len(cc.List) == 1:
			if typ := w.pass.TypesInfo.TypeOf(cc.List[0]); typ != nil {
				w.logic.AddKnownInfo(entry, dfa.Has(x, goType{typ}, nonNil))
			}
		default:
			withNil := false
			for _, e := range cc.List {
				withNil = withNil || w.isNilExpr(e)
			}
			if withNil {
				nilListed = true
			} else {
				w.logic.AddKnownInfo(entry, dfa.Has(x, nonNil))
			}
		}
		outs = append(outs, w.block(entry, cc.Body))
	}

	rest := w.fork(flow)
	if x != nil && nilListed {
		w.logic.AddKnownInfo(rest, dfa.Has(x, nonNil))
	}
	for _, c := range s.Body.List {
		if cc := c.(*ast.CaseClause); cc.List == nil {
			outs = append(outs, w.block(rest, cc.Body))
		}
	}
	if !hasDefault {
		outs = append(outs, rest)
	}
	return w.join(append(outs, t.breaks...)...)
}

func (w *walker) selectStmt(flow *dfa.MapFlow, s *ast.SelectStmt, label string) *dfa.MapFlow {
	t := w.push(label)
	defer w.pop()

	var outs []*dfa.MapFlow
	for _, c := range s.Body.List {
		cc := c.(*ast.CommClause)
		entry := w.fork(flow)
		if cc.Comm != nil {
			entry = w.stmt(entry, cc.Comm)
		}
		outs = append(outs, w.block(entry, cc.Body))
	}
	return w.join(append(outs, t.breaks...)...)
}

func (w *walker) decl(flow *dfa.MapFlow, s *ast.DeclStmt) {
	gen, ok := s.Decl.(*ast.GenDecl)
	if !ok || gen.Tok != token.VAR {
		return
	}
	for _, spec := range gen.Specs {
		vs := spec.(*ast.ValueSpec)
		lhs := make([]ast.Expr, len(vs.Names))
		for i, name := range vs.Names {
			lhs[i] = name
		}
		switch {
		case len(vs.Values) == 0:
			for _, name := range vs.Names {
				v := w.variable(name)
				if v != nil && isNilable(w.pass.TypesInfo.TypeOf(name)) {
					w.logic.AddKnownInfo(flow, dfa.HasNot(v, nonNil))
				}
			}
		case len(vs.Values) == len(vs.Names):
			w.bind(flow, lhs, vs.Values, true)
		default:
			w.expr(flow, vs.Values[0])
			w.store(flow, lhs)
		}
	}
}

func (w *walker) assign(flow *dfa.MapFlow, s *ast.AssignStmt) {
	define := s.Tok == token.DEFINE
	switch {
	case s.Tok != token.ASSIGN && !define:
		w.expr(flow, s.Lhs[0])
		w.expr(flow, s.Rhs[0])
		w.store(flow, s.Lhs)
	case len(s.Lhs) == 2 && len(s.Rhs) == 1:
		if ta, ok := astutil.Unparen(s.Rhs[0]).(*ast.TypeAssertExpr); ok {
			w.commaOk(flow, s.Lhs, ta)
			return
		}
		w.expr(flow, s.Rhs[0])
		w.store(flow, s.Lhs)
	case len(s.Lhs) == len(s.Rhs):
		w.bind(flow, s.Lhs, s.Rhs, define)
	default:
		w.expr(flow, s.Rhs[0])
		w.store(flow, s.Lhs)
	}
}

// value is what is known about a right-hand side before any of the
// assignment's targets are written.
type value struct {
	typ     types.Type
	src     *dfa.RealVariable
	info    *dfa.TypeInfo
	cond    dfa.DataFlowVariable
	nilness nilness
}

type nilness int

const (
	maybeNil nilness = iota
	isNil
	notNil
)

// bind assigns rhs to lhs pairwise. Every right-hand side is evaluated
// before any target changes.
func (w *walker) bind(flow *dfa.MapFlow, lhs, rhs []ast.Expr, define bool) {
	values := make([]value, len(rhs))
	for i, r := range rhs {
		val := value{typ: w.pass.TypesInfo.TypeOf(r)}
		if isBool(val.typ) && w.variable(lhs[i]) != nil {
			val.cond = w.cond(flow, r)
		} else {
			w.expr(flow, r)
			val.nilness = w.nilnessOf(r)
			if val.src = w.variable(r); val.src != nil {
				val.info = flow.KnownInfo(val.src)
			}
		}
		values[i] = val
	}

	w.storeFields(flow, lhs)
	for i, l := range lhs {
		val := values[i]
		if define && val.src != nil && w.canAlias(l, val.src) {
			w.storage.AttachSymbolToVariable(w.symbolFor(w.identObj(l)), val.src)
			continue
		}
		dst := w.variable(l)
		if dst == nil {
			continue
		}
		w.logic.RemoveAllAboutVariable(flow, dst)

		switch {
		case val.cond != nil:
			if dfa.VariablesEqual(val.cond, dst) {
				continue
			}
			if val.cond.IsSynthetic() {
				dfa.ReplaceConditionalVariableInStatements[*dfa.MapFlow](w.logic, flow, val.cond, dst, nil, nil)
				w.storage.RemoveSyntheticVariable(val.cond)
			} else {
				w.logic.TranslateConditionalVariableInStatements(flow, val.cond, dst, false, nil, nil)
			}
		case val.src != nil && val.src != dst && !val.info.IsEmpty() &&
			types.Identical(w.pass.TypesInfo.TypeOf(l), val.typ):
			w.logic.AddKnownInfo(flow, &dfa.TypeInfo{
				Variable:     dst,
				ExactType:    val.info.ExactType.Clone(),
				ExactNotType: val.info.ExactNotType.Clone(),
			})
		case !isNilable(w.pass.TypesInfo.TypeOf(l)):
		case val.nilness == notNil:
			w.logic.AddKnownInfo(flow, dfa.Has(dst, nonNil))
		case val.nilness == isNil:
			w.logic.AddKnownInfo(flow, dfa.HasNot(dst, nonNil))
		}
	}
}

// canAlias reports whether `l := src` lets l share src's variable: neither
// side is written after its definition. Parameters and var declarations
// have no defining assignment, so any write to them disqualifies src.
func (w *walker) canAlias(l ast.Expr, src *dfa.RealVariable) bool {
	obj := w.identObj(l)
	if obj == nil || w.assigns[obj] != w.defines[obj] || src.Receiver != nil {
		return false
	}
	sym, ok := src.Symbol.(*symbol)
	if !ok || !sym.local {
		return false
	}
	srcObj, ok := sym.obj.(*types.Var)
	if !ok || w.assigns[srcObj] > w.defines[srcObj] {
		return false
	}
	return types.Identical(obj.Type(), srcObj.Type())
}

func (w *walker) nilnessOf(e ast.Expr) nilness {
	e = astutil.Unparen(e)
	if w.isNilExpr(e) {
		return isNil
	}
	switch e := e.(type) {
	case *ast.CompositeLit, *ast.FuncLit:
		return notNil
	case *ast.UnaryExpr:
		if e.Op == token.AND {
			return notNil
		}
	case *ast.CallExpr:
		if tv, ok := w.pass.TypesInfo.Types[e.Fun]; ok && tv.IsBuiltin() {
			if id, ok := astutil.Unparen(e.Fun).(*ast.Ident); ok && (id.Name == "new" || id.Name == "make") {
				return notNil
			}
		}
	}
	return maybeNil
}

func (w *walker) commaOk(flow *dfa.MapFlow, lhs []ast.Expr, ta *ast.TypeAssertExpr) {
	w.expr(flow, ta.X)
	x := w.variable(ta.X)
	typ := w.pass.TypesInfo.TypeOf(ta.Type)
	if x != nil && typ != nil {
		w.checkAssertion(flow, ta, x, typ)
	}
	w.store(flow, lhs)
	if x == nil || typ == nil {
		return
	}
	for _, l := range lhs {
		if w.variable(l) == x {
			return
		}
	}
	ok := w.variable(lhs[1])
	if ok == nil {
		return
	}
	w.logic.AddLogicStatement(flow, dfa.Implies(dfa.EqTrueOf(ok), dfa.Has(x, goType{typ}, nonNil)))
	w.logic.AddLogicStatement(flow, dfa.Implies(dfa.EqFalseOf(ok), dfa.HasNot(x, goType{typ})))
	if y := w.variable(lhs[0]); y != nil && types.IsInterface(typ) {
		w.logic.AddLogicStatement(flow, dfa.Implies(dfa.EqTrueOf(ok), dfa.Has(y, nonNil)))
	}
}

// store forgets everything about the written targets.
func (w *walker) store(flow *dfa.MapFlow, lhs []ast.Expr) {
	w.storeFields(flow, lhs)
	for _, l := range lhs {
		if v := w.variable(l); v != nil {
			w.logic.RemoveAllAboutVariable(flow, v)
		}
	}
}

// storeFields drops every field fact when a target is not a plain
// identifier: p.f, *p and a[i] may alias any tracked field.
func (w *walker) storeFields(flow *dfa.MapFlow, lhs []ast.Expr) {
	for _, l := range lhs {
		if l == nil {
			continue
		}
		if _, ok := astutil.Unparen(l).(*ast.Ident); !ok {
			w.expr(flow, l)
			w.dropFields(flow)
			return
		}
	}
}

// dropFields forgets every variable reached through a receiver.
func (w *walker) dropFields(flow *dfa.MapFlow) {
	seen := make(map[*dfa.RealVariable]bool)
	var fields []*dfa.RealVariable
	add := func(v dfa.DataFlowVariable) {
		if rv, ok := v.(*dfa.RealVariable); ok && rv.Receiver != nil && !seen[rv] {
			seen[rv] = true
			fields = append(fields, rv)
		}
	}
	for _, v := range flow.KnownVariables() {
		add(v)
	}
	for _, s := range flow.Statements() {
		add(s.Condition.Variable)
		switch effect := s.Effect.(type) {
		case *dfa.TypeInfo:
			add(effect.Variable)
		case dfa.Predicate:
			add(effect.Variable)
		}
	}
	for _, v := range fields {
		w.logic.RemoveAllAboutVariable(flow, v)
	}
}
