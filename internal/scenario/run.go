package scenario

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/gnolang/smartcast/internal/analysis/lattice"
	"github.com/gnolang/smartcast/internal/dfa"
	"github.com/gnolang/smartcast/internal/typesys"
)

// Report is the outcome of a scenario run.
type Report struct {
	Name    string
	Results []Result
	Flows   []FlowSnapshot
	// Receivers lists the narrowings of `this` references in the order the
	// engine announced them.
	Receivers []string
	// Raw holds the final flows by name.
	Raw map[string]*dfa.MapFlow `json:"-" yaml:"-"`
}

// Passed reports whether every expectation held.
func (r *Report) Passed() bool {
	for _, res := range r.Results {
		if !res.Passed {
			return false
		}
	}
	return true
}

// Failed returns the expectations that did not hold.
func (r *Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.Passed {
			out = append(out, res)
		}
	}
	return out
}

type Result struct {
	Expectation Expectation
	Got         string
	Passed      bool
}

func (r Result) String() string {
	status := "ok"
	if !r.Passed {
		status = "FAIL"
	}
	return fmt.Sprintf("%s: %s in %s: %s", status, r.Expectation.Var, r.Expectation.Flow, r.Got)
}

// FlowSnapshot is a flow rendered with the scenario's variable names.
type FlowSnapshot struct {
	Name       string
	Known      []string
	Statements []string
	// Nilness lists the variables whose nilness the flow settles.
	Nilness lattice.Summary
}

type symbol struct {
	name     string
	local    bool
	mutable  bool
	modality dfa.Modality
}

func (s *symbol) Name() string           { return s.name }
func (s *symbol) IsLocal() bool          { return s.local }
func (s *symbol) IsMutable() bool        { return s.mutable }
func (s *symbol) Modality() dfa.Modality { return s.modality }

// ref is the element of a declared variable.
type ref struct {
	sym  *symbol
	recv *ref
	safe bool
	this bool
}

func (r *ref) ReferencedSymbol() dfa.Symbol { return r.sym }
func (r *ref) IsSafeCall() bool             { return r.safe }
func (r *ref) IsThisReference() bool        { return r.this }

func (r *ref) ExplicitReceiver() dfa.Element {
	if r.recv == nil {
		return nil
	}
	return r.recv
}

type synthetic struct {
	name string
}

type runner struct {
	logger    *zap.Logger
	hierarchy *typesys.Hierarchy
	storage   *dfa.VariableStorage
	logic     *dfa.MapLogicSystem

	refs       map[string]*ref
	synthetics map[string]*dfa.SyntheticVariable
	names      map[*dfa.SyntheticVariable]string
	flows      map[string]*dfa.MapFlow
	order      []string
	receivers  []string
}

// Run executes sc and checks its expectations. A failed expectation is
// recorded in the report; a malformed step is an error.
func Run(ctx context.Context, logger *zap.Logger, sc *Scenario) (report *Report, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	defer dfa.RecoverInvariant(&err)

	h, err := typesys.FromMap(sc.Hierarchy)
	if err != nil {
		return nil, fmt.Errorf("hierarchy: %w", err)
	}

	r := &runner{
		logger:     logger,
		hierarchy:  h,
		storage:    dfa.NewVariableStorage(logger),
		refs:       make(map[string]*ref),
		synthetics: make(map[string]*dfa.SyntheticVariable),
		names:      make(map[*dfa.SyntheticVariable]string),
		flows:      make(map[string]*dfa.MapFlow),
	}
	config := dfa.DefaultConfig()
	config.Logger = logger
	config.Oracle = h
	config.NonNullType = h.Any()
	config.Receivers = r
	if sc.MaxApprovalDepth > 0 {
		config.MaxApprovalDepth = sc.MaxApprovalDepth
	}
	r.logic = dfa.NewMapLogicSystem(r.storage, config)

	if err := r.declare(sc.Variables); err != nil {
		return nil, err
	}
	for i, step := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logger.Debug("scenario step", zap.String("scenario", sc.Name), zap.Int("step", i+1), zap.String("op", step.Op))
		if err := r.step(step); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, step.Op, err)
		}
	}

	report = &Report{Name: sc.Name, Receivers: r.receivers, Raw: r.flows}
	for i, exp := range sc.Expect {
		res, err := r.check(exp)
		if err != nil {
			return nil, fmt.Errorf("expectation %d: %w", i+1, err)
		}
		report.Results = append(report.Results, res)
	}
	for _, name := range r.order {
		report.Flows = append(report.Flows, r.snapshot(name, r.flows[name]))
	}
	return report, nil
}

// ReceiverUpdated records the narrowings of `this`.
func (r *runner) ReceiverUpdated(v *dfa.RealVariable, info *dfa.TypeInfo) {
	r.receivers = append(r.receivers, r.describeInfo(v, info))
}

func (r *runner) declare(vars []Variable) error {
	for _, decl := range vars {
		if decl.Name == "" {
			return errors.New("variable without a name")
		}
		if r.refs[decl.Name] != nil || r.synthetics[decl.Name] != nil {
			return fmt.Errorf("variable %s declared twice", decl.Name)
		}

		kind := decl.Kind
		if kind == "" {
			kind = KindLocal
		}
		if kind == KindSynthetic {
			if decl.Receiver != "" {
				return fmt.Errorf("synthetic variable %s cannot have a receiver", decl.Name)
			}
			v := r.storage.CreateSyntheticVariable(&synthetic{name: decl.Name})
			r.synthetics[decl.Name] = v
			r.names[v] = decl.Name
			continue
		}

		sym := &symbol{name: decl.Name}
		switch kind {
		case KindLocal:
			sym.local = true
		case KindProperty, KindMember:
			sym.mutable = decl.Mutable
			if decl.Open {
				sym.modality = dfa.ModalityOpen
			}
		default:
			return fmt.Errorf("variable %s: unknown kind %q", decl.Name, kind)
		}
		if kind == KindMember && decl.Receiver == "" {
			return fmt.Errorf("member %s needs a receiver", decl.Name)
		}

		rf := &ref{sym: sym, safe: decl.Safe, this: decl.This}
		if decl.Receiver != "" {
			recv, ok := r.refs[decl.Receiver]
			if !ok {
				return fmt.Errorf("receiver of %s: %w %q", decl.Name, ErrUnknownVariable, decl.Receiver)
			}
			rf.recv = recv
		}
		r.refs[decl.Name] = rf
	}
	return nil
}

func (r *runner) step(s Step) error {
	switch s.Op {
	case OpEmpty:
		return r.setFlow(s.Flow, r.logic.CreateEmptyFlow())

	case OpFork:
		from, err := r.flow(s.From)
		if err != nil {
			return err
		}
		return r.setFlow(s.Flow, r.logic.ForkFlow(from))

	case OpJoin:
		if len(s.Flows) == 0 {
			return errors.New("join needs flows")
		}
		flows := make([]*dfa.MapFlow, 0, len(s.Flows))
		for _, name := range s.Flows {
			f, err := r.flow(name)
			if err != nil {
				return err
			}
			flows = append(flows, f)
		}
		return r.setFlow(s.Flow, r.logic.JoinFlow(flows))

	case OpAdd:
		flow, err := r.flow(s.Flow)
		if err != nil {
			return err
		}
		info, err := r.fact(s.Fact)
		if err != nil {
			return err
		}
		r.logic.AddKnownInfo(flow, info)
		return nil

	case OpStatement:
		flow, err := r.flow(s.Flow)
		if err != nil {
			return err
		}
		when, err := r.predicate(s.When)
		if err != nil {
			return err
		}
		then, err := r.effect(s.Then)
		if err != nil {
			return err
		}
		r.logic.AddLogicStatement(flow, dfa.Implies(when, then))
		return nil

	case OpRemove:
		flow, err := r.flow(s.Flow)
		if err != nil {
			return err
		}
		v, err := r.real(s.Var)
		if err != nil {
			return err
		}
		r.logic.RemoveAllAboutVariable(flow, v)
		return nil

	case OpTranslate:
		flow, err := r.flow(s.Flow)
		if err != nil {
			return err
		}
		from, err := r.variable(s.From)
		if err != nil {
			return err
		}
		to, err := r.variable(s.To)
		if err != nil {
			return err
		}
		var transform func(dfa.LogicStatement) dfa.LogicStatement
		if s.Invert {
			transform = dfa.LogicStatement.InvertCondition
		}
		r.logic.TranslateConditionalVariableInStatements(flow, from, to, s.Remove, nil, transform)
		return nil

	case OpApprove:
		flow, err := r.flow(s.Flow)
		if err != nil {
			return err
		}
		when, err := r.predicate(s.When)
		if err != nil {
			return err
		}
		result := r.logic.ApproveStatementsInsideFlow(flow, when, s.Into != "", s.RemoveSynthetics)
		if s.Into != "" {
			return r.setFlow(s.Into, result)
		}
		return nil

	case OpAttach:
		rf, ok := r.refs[s.Var]
		if !ok {
			return fmt.Errorf("%w %q", ErrUnknownVariable, s.Var)
		}
		if rf.recv != nil || !rf.sym.local {
			return fmt.Errorf("only locals can be attached, %s is not one", s.Var)
		}
		target, err := r.real(s.To)
		if err != nil {
			return err
		}
		r.storage.AttachSymbolToVariable(rf.sym, target)
		return nil

	case OpBoolean:
		return r.boolean(s)
	}
	return fmt.Errorf("%w %q", ErrUnknownOp, s.Op)
}

// boolean records what `left op right` implies about its result, with the
// right operand's statements taken from a fork where the left operand
// already let evaluation through.
func (r *runner) boolean(s Step) error {
	flow, err := r.flow(s.Flow)
	if err != nil {
		return err
	}
	var op dfa.BooleanOperator
	switch strings.ToLower(s.Operator) {
	case "and", "&&":
		op = dfa.OpAnd
	case "or", "||":
		op = dfa.OpOr
	default:
		return fmt.Errorf("unknown operator %q", s.Operator)
	}
	left, err := r.variable(s.Left)
	if err != nil {
		return err
	}
	right, err := r.variable(s.Right)
	if err != nil {
		return err
	}
	result, err := r.variable(s.Result)
	if err != nil {
		return err
	}

	reach := dfa.EqTrueOf(left)
	if op == dfa.OpOr {
		reach = dfa.EqFalseOf(left)
	}
	rightFlow := r.logic.ApproveStatementsInsideFlow(flow, reach, true, false)
	info := r.logic.CollectInfoForBooleanOperator(flow, left, rightFlow, right)
	onTrue, onFalse := r.logic.BooleanFacts(op, info, left, right)
	r.logic.AddImplications(flow, dfa.EqTrueOf(result), onTrue)
	r.logic.AddImplications(flow, dfa.EqFalseOf(result), onFalse)
	return nil
}

func (r *runner) check(exp Expectation) (Result, error) {
	flow, err := r.flow(exp.Flow)
	if err != nil {
		return Result{}, err
	}
	v, err := r.real(exp.Var)
	if err != nil {
		return Result{}, err
	}
	info := flow.KnownInfo(v)
	res := Result{Expectation: exp, Got: r.describeInfo(v, info)}
	if exp.Absent {
		res.Passed = info.IsEmpty()
		return res, nil
	}
	if exp.Nilness != "" {
		got := lattice.Of(info, r.hierarchy.Any())
		res.Got = fmt.Sprintf("%s (%s)", res.Got, got)
		if got.String() != exp.Nilness {
			return res, nil
		}
		if exp.Is == nil && exp.IsNot == nil {
			res.Passed = true
			return res, nil
		}
	}
	var is, isNot []string
	if info != nil {
		is, isNot = info.ExactType.Names(), info.ExactNotType.Names()
	}
	res.Passed = sameNames(is, exp.Is) && sameNames(isNot, exp.IsNot)
	return res, nil
}

func sameNames(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	sorted := append([]string(nil), want...)
	sort.Strings(sorted)
	for i := range got {
		if got[i] != sorted[i] {
			return false
		}
	}
	return true
}

func (r *runner) setFlow(name string, f *dfa.MapFlow) error {
	if name == "" {
		return errors.New("missing flow name")
	}
	if _, ok := r.flows[name]; !ok {
		r.order = append(r.order, name)
	}
	r.flows[name] = f
	return nil
}

func (r *runner) flow(name string) (*dfa.MapFlow, error) {
	f, ok := r.flows[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownFlow, name)
	}
	return f, nil
}

func (r *runner) variable(name string) (dfa.DataFlowVariable, error) {
	if v, ok := r.synthetics[name]; ok {
		return v, nil
	}
	rf, ok := r.refs[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownVariable, name)
	}
	return r.storage.GetOrCreateVariable(rf), nil
}

func (r *runner) real(name string) (*dfa.RealVariable, error) {
	v, err := r.variable(name)
	if err != nil {
		return nil, err
	}
	rv, ok := v.(*dfa.RealVariable)
	if !ok {
		return nil, fmt.Errorf("%s is not a real variable", name)
	}
	return rv, nil
}

func (r *runner) types(names []string) ([]dfa.Type, error) {
	out := make([]dfa.Type, 0, len(names))
	for _, name := range names {
		t, ok := r.hierarchy.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w %q", typesys.ErrUnknownType, name)
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *runner) fact(text string) (*dfa.TypeInfo, error) {
	c, err := parseFact(text)
	if err != nil {
		return nil, err
	}
	return r.factOf(c)
}

func (r *runner) factOf(c *clause) (*dfa.TypeInfo, error) {
	v, err := r.real(c.Var)
	if err != nil {
		return nil, err
	}
	ts, err := r.types(c.Fact.Types)
	if err != nil {
		return nil, err
	}
	if c.Fact.Not {
		return dfa.HasNot(v, ts...), nil
	}
	return dfa.Has(v, ts...), nil
}

func (r *runner) predicate(text string) (dfa.Predicate, error) {
	c, err := parsePredicate(text)
	if err != nil {
		return dfa.Predicate{}, err
	}
	return r.predicateOf(c)
}

func (r *runner) predicateOf(c *clause) (dfa.Predicate, error) {
	v, err := r.variable(c.Var)
	if err != nil {
		return dfa.Predicate{}, err
	}
	var p dfa.Predicate
	switch c.Pred.Value {
	case "true":
		p = dfa.EqTrueOf(v)
	case "false":
		p = dfa.EqFalseOf(v)
	default:
		p = dfa.EqNullOf(v)
	}
	if c.Pred.Op == "!=" {
		p = p.Invert()
	}
	return p, nil
}

func (r *runner) effect(text string) (dfa.Effect, error) {
	c, err := parseClause(text)
	if err != nil {
		return nil, err
	}
	if c.Fact != nil {
		return r.factOf(c)
	}
	return r.predicateOf(c)
}

func (r *runner) snapshot(name string, f *dfa.MapFlow) FlowSnapshot {
	snap := FlowSnapshot{Name: name, Nilness: lattice.Summarize(f, r.hierarchy.Any())}
	for _, v := range f.KnownVariables() {
		snap.Known = append(snap.Known, r.describeInfo(v, f.KnownInfo(v)))
	}
	for _, s := range f.Statements() {
		snap.Statements = append(snap.Statements, r.describeStatement(s))
	}
	return snap
}

func (r *runner) describe(v dfa.DataFlowVariable) string {
	switch v := v.(type) {
	case *dfa.RealVariable:
		return v.Describe()
	case *dfa.SyntheticVariable:
		if name, ok := r.names[v]; ok {
			return name
		}
	}
	return v.String()
}

func (r *runner) describeInfo(v *dfa.RealVariable, info *dfa.TypeInfo) string {
	if info.IsEmpty() {
		return r.describe(v) + " unknown"
	}
	parts := []string{r.describe(v)}
	if !info.ExactType.IsEmpty() {
		parts = append(parts, "is", strings.Join(info.ExactType.Names(), ", "))
	}
	if !info.ExactNotType.IsEmpty() {
		parts = append(parts, "!is", strings.Join(info.ExactNotType.Names(), ", "))
	}
	return strings.Join(parts, " ")
}

func (r *runner) describePredicate(p dfa.Predicate) string {
	return r.describe(p.Variable) + " " + p.Condition.String()
}

func (r *runner) describeStatement(s dfa.LogicStatement) string {
	var effect string
	switch e := s.Effect.(type) {
	case dfa.Predicate:
		effect = r.describePredicate(e)
	case *dfa.TypeInfo:
		effect = r.describeInfo(e.Variable, e)
	default:
		effect = s.Effect.String()
	}
	return r.describePredicate(s.Condition) + " -> " + effect
}
