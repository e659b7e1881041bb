package dfa

import "testing"

type testType string

func (t testType) String() string { return string(t) }

const (
	tAny    testType = "Any"
	tString testType = "String"
	tInt    testType = "Int"
	tNull   testType = "Nothing?"
)

type testSymbol struct {
	name     string
	local    bool
	mutable  bool
	modality Modality
}

func (s *testSymbol) Name() string       { return s.name }
func (s *testSymbol) IsLocal() bool      { return s.local }
func (s *testSymbol) IsMutable() bool    { return s.mutable }
func (s *testSymbol) Modality() Modality { return s.modality }

func local(name string) *testSymbol {
	return &testSymbol{name: name, local: true}
}

// access is a qualified reference such as `a.b`.
type access struct {
	symbol   Symbol
	receiver Element
	safe     bool
	this     bool
}

func (a *access) ReferencedSymbol() Symbol  { return a.symbol }
func (a *access) ExplicitReceiver() Element { return a.receiver }
func (a *access) IsSafeCall() bool          { return a.safe }
func (a *access) IsThisReference() bool     { return a.this }

// expr is an opaque expression element.
type expr struct{ text string }

var anyOracle = OracleFunc(func([]Type) Type { return tAny })

type engine struct {
	storage *VariableStorage
	logic   *MapLogicSystem
	symbols map[string]*testSymbol
}

func newEngine(t *testing.T, oracle TypeOracle) *engine {
	t.Helper()
	storage := NewVariableStorage(nil)
	config := DefaultConfig()
	config.Oracle = oracle
	return &engine{
		storage: storage,
		logic:   NewMapLogicSystem(storage, config),
		symbols: make(map[string]*testSymbol),
	}
}

func (e *engine) symbol(name string) *testSymbol {
	if s, ok := e.symbols[name]; ok {
		return s
	}
	s := local(name)
	e.symbols[name] = s
	return s
}

func (e *engine) variable(name string) *RealVariable {
	return e.storage.GetOrCreateRealVariable(e.symbol(name))
}
