package dfa

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// snapshot renders a flow for cmp diffs.
func snapshot(f *MapFlow) map[string][]string {
	out := make(map[string][]string)
	for _, v := range f.KnownVariables() {
		info := f.KnownInfo(v)
		out[v.String()] = []string{info.ExactType.String(), info.ExactNotType.String()}
	}
	for _, s := range f.Statements() {
		out["statements"] = append(out["statements"], s.String())
	}
	return out
}

func TestForkIndependence(t *testing.T) {
	t.Parallel()
	e := newEngine(t, anyOracle)
	x, y := e.variable("x"), e.variable("y")
	b := e.storage.GetOrCreateVariable(&expr{"b"})

	parent := e.logic.CreateEmptyFlow()
	e.logic.AddKnownInfo(parent, Has(x, tString))
	e.logic.AddLogicStatement(parent, Implies(EqTrueOf(b), Has(y, tInt)))
	before := snapshot(parent)

	child := e.logic.ForkFlow(parent)
	e.logic.AddKnownInfo(child, Has(x, tInt))
	e.logic.AddKnownInfo(child, Has(y, tString))
	e.logic.AddLogicStatement(child, Implies(EqFalseOf(b), Has(y, tNull)))
	e.logic.AddLogicStatement(child, Implies(EqTrueOf(b), Has(x, tInt)))

	if diff := cmp.Diff(before, snapshot(parent)); diff != "" {
		t.Errorf("parent changed after mutating fork (-before +after):\n%s", diff)
	}
	assert.Equal(t, []string{"Int", "String"}, child.KnownInfo(x).ExactType.Names())
}

func TestJoinIdempotent(t *testing.T) {
	t.Parallel()
	e := newEngine(t, anyOracle)
	x := e.variable("x")
	b := e.storage.GetOrCreateVariable(&expr{"b"})

	flow := e.logic.CreateEmptyFlow()
	e.logic.AddKnownInfo(flow, Has(x, tString))
	e.logic.AddKnownInfo(flow, HasNot(x, tNull))
	e.logic.AddLogicStatement(flow, Implies(EqTrueOf(b), Has(x, tInt)))

	joined := e.logic.JoinFlow([]*MapFlow{flow, e.logic.ForkFlow(flow)})
	if diff := cmp.Diff(snapshot(flow), snapshot(joined)); diff != "" {
		t.Errorf("join(f, f) != f (-want +got):\n%s", diff)
	}

	single := e.logic.JoinFlow([]*MapFlow{flow})
	assert.NotSame(t, flow, single)
	assert.Empty(t, cmp.Diff(snapshot(flow), snapshot(single)))
}

func TestJoinKeepsCommonVariables(t *testing.T) {
	t.Parallel()
	e := newEngine(t, anyOracle)
	x, y, z := e.variable("x"), e.variable("y"), e.variable("z")

	f1 := e.logic.CreateEmptyFlow()
	e.logic.AddKnownInfo(f1, Has(x, tString))
	e.logic.AddKnownInfo(f1, Has(y, tString))

	f2 := e.logic.CreateEmptyFlow()
	e.logic.AddKnownInfo(f2, Has(x, tString))
	e.logic.AddKnownInfo(f2, Has(z, tString))

	joined := e.logic.JoinFlow([]*MapFlow{f1, f2})
	assert.Equal(t, []*RealVariable{x}, joined.KnownVariables())
	assert.Nil(t, joined.KnownInfo(y))
	assert.Nil(t, joined.KnownInfo(z))
}

func TestJoinWidening(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		oracle TypeOracle
		want   []string
	}{
		{"with supertype", anyOracle, []string{"Any"}},
		{"without supertype", nil, nil},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := newEngine(t, tt.oracle)
			x := e.variable("x")

			f1 := e.logic.CreateEmptyFlow()
			e.logic.AddKnownInfo(f1, Has(x, tString))
			f2 := e.logic.CreateEmptyFlow()
			e.logic.AddKnownInfo(f2, Has(x, tInt))

			joined := e.logic.JoinFlow([]*MapFlow{f1, f2})
			info := joined.KnownInfo(x)
			if tt.want == nil {
				assert.Nil(t, info, "nothing can be claimed without a supertype")
				return
			}
			require.NotNil(t, info)
			assert.Equal(t, tt.want, info.ExactType.Names())
		})
	}
}

func TestJoinStatements(t *testing.T) {
	t.Parallel()
	e := newEngine(t, anyOracle)
	x := e.variable("x")
	b := e.storage.GetOrCreateVariable(&expr{"b"})

	shared := Implies(EqTrueOf(b), Has(x, tString))
	only := Implies(EqFalseOf(b), Has(x, tInt))

	f1 := e.logic.CreateEmptyFlow()
	e.logic.AddLogicStatement(f1, shared)
	e.logic.AddLogicStatement(f1, only)
	f2 := e.logic.CreateEmptyFlow()
	e.logic.AddLogicStatement(f2, Implies(EqTrueOf(b), Has(x, tString)))

	joined := e.logic.JoinFlow([]*MapFlow{f1, f2})
	require.Len(t, joined.Statements(), 1)
	assert.True(t, joined.Statements()[0].Equal(shared))
}

func TestJoinNoFlowsPanics(t *testing.T) {
	t.Parallel()
	e := newEngine(t, anyOracle)
	err := func() (err error) {
		defer RecoverInvariant(&err)
		e.logic.JoinFlow(nil)
		return nil
	}()
	assert.True(t, errors.Is(err, ErrInvariant))
}

func TestRemoveAllAboutVariable(t *testing.T) {
	t.Parallel()
	e := newEngine(t, anyOracle)
	x, y := e.variable("x"), e.variable("y")
	b := e.storage.GetOrCreateVariable(&expr{"b"})
	field := &testSymbol{name: "f"}
	xf := e.storage.GetOrCreateVariable(&access{symbol: field, receiver: &access{symbol: e.symbol("x")}}).(*RealVariable)

	flow := e.logic.CreateEmptyFlow()
	e.logic.AddKnownInfo(flow, Has(x, tString))
	e.logic.AddKnownInfo(flow, Has(xf, tInt))
	e.logic.AddKnownInfo(flow, Has(y, tInt))
	e.logic.AddLogicStatement(flow, Implies(EqTrueOf(b), Has(x, tInt)))
	e.logic.AddLogicStatement(flow, Implies(EqTrueOf(x), Has(y, tString)))
	e.logic.AddLogicStatement(flow, Implies(EqTrueOf(b), Has(y, tString)))

	e.logic.RemoveAllAboutVariable(flow, x)

	assert.Nil(t, flow.KnownInfo(x))
	assert.Nil(t, flow.KnownInfo(xf), "facts reached through x are dropped")
	assert.NotNil(t, flow.KnownInfo(y))
	require.Len(t, flow.Statements(), 1)
	assert.Equal(t, y, effectVariable(flow.Statements()[0].Effect))

	approved := e.logic.ApprovePredicate(flow, EqTrueOf(b))
	for _, info := range approved {
		assert.NotEqual(t, x, info.Variable, "b no longer implies anything about x")
	}
	require.Len(t, approved, 1)
	assert.Equal(t, y, approved[0].Variable)
	assert.Equal(t, []string{"String"}, approved[0].ExactType.Names())
}

func TestAliasPreservesStatements(t *testing.T) {
	t.Parallel()
	e := newEngine(t, anyOracle)
	x := e.variable("x")
	cond := e.storage.GetOrCreateVariable(&expr{"x is String"})
	bSym := e.symbol("b")
	bv := e.variable("b")

	flow := e.logic.CreateEmptyFlow()
	e.logic.AddLogicStatement(flow, Implies(EqTrueOf(cond), Has(x, tString)))
	e.logic.AddLogicStatement(flow, Implies(EqFalseOf(cond), HasNot(x, tString)))

	// val b = x is String
	ReplaceConditionalVariableInStatements[*MapFlow](e.logic, flow, cond, bv, nil, nil)
	assert.Empty(t, flow.Conditions(cond))
	assert.Len(t, flow.Conditions(bv), 2)

	// val c = b
	target := e.storage.Get(bSym)
	cSym := e.symbol("c")
	e.storage.AttachSymbolToVariable(cSym, target)
	cv := e.storage.GetOrCreateRealVariable(cSym)

	approved := e.logic.ApproveStatementsInsideFlow(flow, EqTrueOf(cv), true, false)
	info := approved.KnownInfo(x)
	require.NotNil(t, info)
	assert.True(t, info.ExactType.Contains(tString))
	assert.Nil(t, flow.KnownInfo(x), "forked approval leaves the source flow untouched")
}

func TestTranslateWithFilterAndTransform(t *testing.T) {
	t.Parallel()
	e := newEngine(t, anyOracle)
	x := e.variable("x")
	cond := e.storage.GetOrCreateVariable(&expr{"x is String"})
	neg := e.storage.GetOrCreateVariable(&expr{"!(x is String)"})

	flow := e.logic.CreateEmptyFlow()
	e.logic.AddLogicStatement(flow, Implies(EqTrueOf(cond), Has(x, tString)))
	e.logic.AddLogicStatement(flow, Implies(EqFalseOf(cond), HasNot(x, tString)))

	e.logic.TranslateConditionalVariableInStatements(flow, cond, neg, false,
		func(s LogicStatement) bool { return s.Condition.Condition == EqTrue },
		LogicStatement.InvertCondition)

	assert.Len(t, flow.Conditions(cond), 2, "originals kept")
	got := flow.Conditions(neg)
	require.Len(t, got, 1)
	assert.Equal(t, EqFalse, got[0].Condition.Condition)
}

func TestApprovalIsTransitive(t *testing.T) {
	t.Parallel()
	e := newEngine(t, anyOracle)
	x := e.variable("x")
	a := e.storage.GetOrCreateVariable(&expr{"a"})
	b := e.storage.GetOrCreateVariable(&expr{"b"})
	c := e.storage.GetOrCreateVariable(&expr{"c"})

	flow := e.logic.CreateEmptyFlow()
	e.logic.AddLogicStatement(flow, Implies(EqTrueOf(a), EqTrueOf(b)))
	e.logic.AddLogicStatement(flow, Implies(EqTrueOf(b), EqFalseOf(c)))
	e.logic.AddLogicStatement(flow, Implies(EqFalseOf(c), Has(x, tString)))
	// Cycle back to a.
	e.logic.AddLogicStatement(flow, Implies(EqFalseOf(c), EqTrueOf(a)))

	infos := e.logic.ApprovePredicate(flow, EqTrueOf(a))
	require.Len(t, infos, 1)
	assert.Same(t, x, infos[0].Variable)
	assert.True(t, infos[0].ExactType.Contains(tString))
}

func TestApprovalDepthBound(t *testing.T) {
	t.Parallel()
	storage := NewVariableStorage(nil)
	config := DefaultConfig()
	config.MaxApprovalDepth = 1
	logic := NewMapLogicSystem(storage, config)

	x := storage.GetOrCreateRealVariable(local("x"))
	a := storage.GetOrCreateVariable(&expr{"a"})
	b := storage.GetOrCreateVariable(&expr{"b"})
	c := storage.GetOrCreateVariable(&expr{"c"})

	flow := logic.CreateEmptyFlow()
	logic.AddLogicStatement(flow, Implies(EqNullOf(a), EqNullOf(b)))
	logic.AddLogicStatement(flow, Implies(EqNullOf(b), EqNullOf(c)))
	logic.AddLogicStatement(flow, Implies(EqNullOf(c), Has(x, tString)))

	assert.Empty(t, logic.ApprovePredicate(flow, EqNullOf(a)))
	assert.Len(t, logic.ApprovePredicate(flow, EqNullOf(b)), 1)
}

func TestApproveBooleanImpliesNotNull(t *testing.T) {
	t.Parallel()
	e := newEngine(t, anyOracle)
	x := e.variable("x")
	b := e.storage.GetOrCreateVariable(&expr{"b"})

	flow := e.logic.CreateEmptyFlow()
	e.logic.AddLogicStatement(flow, Implies(NotNullOf(b), HasNot(x, tNull)))

	infos := e.logic.ApprovePredicate(flow, EqFalseOf(b))
	require.Len(t, infos, 1)
	assert.True(t, infos[0].ExactNotType.Contains(tNull))
}

func TestNonNullType(t *testing.T) {
	t.Parallel()
	storage := NewVariableStorage(nil)
	config := DefaultConfig()
	config.NonNullType = tAny
	logic := NewMapLogicSystem(storage, config)
	x := storage.GetOrCreateRealVariable(local("x"))

	flow := logic.ApproveStatementsInsideFlow(logic.CreateEmptyFlow(), NotNullOf(x), false, false)
	require.NotNil(t, flow.KnownInfo(x))
	assert.True(t, flow.KnownInfo(x).ExactType.Contains(tAny))

	flow = logic.ApproveStatementsInsideFlow(logic.CreateEmptyFlow(), EqNullOf(x), false, false)
	require.NotNil(t, flow.KnownInfo(x))
	assert.True(t, flow.KnownInfo(x).ExactNotType.Contains(tAny))
}

func TestApproveRemovesSynthetics(t *testing.T) {
	t.Parallel()
	e := newEngine(t, anyOracle)
	x := e.variable("x")
	element := &expr{"x is String"}
	cond := e.storage.GetOrCreateVariable(element)

	flow := e.logic.CreateEmptyFlow()
	e.logic.AddLogicStatement(flow, Implies(EqTrueOf(cond), Has(x, tString)))

	out := e.logic.ApproveStatementsInsideFlow(flow, EqTrueOf(cond), false, true)
	assert.Same(t, flow, out)
	assert.Empty(t, flow.Conditions(cond))
	assert.Nil(t, e.storage.GetVariable(element))
	assert.True(t, flow.KnownInfo(x).ExactType.Contains(tString))
}

func TestApprovePredicateWith(t *testing.T) {
	t.Parallel()
	e := newEngine(t, anyOracle)
	x, y := e.variable("x"), e.variable("y")
	b := e.storage.GetOrCreateVariable(&expr{"b"})

	statements := []LogicStatement{
		Implies(EqTrueOf(b), Has(x, tString)),
		Implies(EqTrueOf(b), Has(y, tInt)),
		Implies(EqFalseOf(b), Has(y, tString)),
	}
	facts := e.logic.ApprovePredicateStatements(EqTrueOf(b), statements)
	require.Len(t, facts, 2)
	assert.Equal(t, []string{"String"}, facts[x].ExactType.Names())
	assert.Equal(t, []string{"Int"}, facts[y].ExactType.Names())
}

type receiverListenerMock struct {
	mock.Mock
}

func (m *receiverListenerMock) ReceiverUpdated(v *RealVariable, info *TypeInfo) {
	m.Called(v, info)
}

func TestReceiverUpdates(t *testing.T) {
	t.Parallel()
	storage := NewVariableStorage(nil)
	listener := new(receiverListenerMock)
	config := DefaultConfig()
	config.Receivers = listener
	logic := NewMapLogicSystem(storage, config)

	this := storage.GetOrCreateVariable(&access{symbol: local("this"), this: true}).(*RealVariable)
	other := storage.GetOrCreateRealVariable(local("x"))

	listener.On("ReceiverUpdated", this, mock.AnythingOfType("*dfa.TypeInfo")).Once()
	listener.On("ReceiverUpdated", this, (*TypeInfo)(nil)).Once()

	flow := logic.CreateEmptyFlow()
	logic.AddKnownInfo(flow, Has(this, tString))
	logic.AddKnownInfo(flow, Has(other, tString))
	logic.RemoveAllAboutVariable(flow, this)

	listener.AssertExpectations(t)
}
