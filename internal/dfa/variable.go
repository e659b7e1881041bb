package dfa

import (
	"fmt"
	"sync"
)

// Modality describes whether a member can be overridden.
type Modality int

const (
	ModalityFinal Modality = iota
	ModalityOpen
	ModalityAbstract
)

func (m Modality) String() string {
	switch m {
	case ModalityFinal:
		return "final"
	case ModalityOpen:
		return "open"
	case ModalityAbstract:
		return "abstract"
	default:
		return "unknown"
	}
}

// Symbol is a stable program symbol (local variable, parameter, property).
// Implementations must be comparable; the registry uses them as map keys.
type Symbol interface {
	Name() string
}

// PropertySymbol is implemented by symbols whose stability depends on how
// they were declared. Symbols that do not implement it are always stable.
type PropertySymbol interface {
	Symbol
	IsLocal() bool
	IsMutable() bool
	Modality() Modality
}

// Element is an opaque, comparable handle for an expression or declaration
// owned by the caller. Synthetic variables are keyed by element identity.
type Element any

// SymbolReference is an element that resolves to a symbol.
type SymbolReference interface {
	ReferencedSymbol() Symbol
}

// QualifiedAccess is a symbol reference with an optional explicit receiver,
// e.g. the `b` in `a.b` or `a?.b`.
type QualifiedAccess interface {
	SymbolReference
	ExplicitReceiver() Element
	IsSafeCall() bool
	IsThisReference() bool
}

// DataFlowVariable is the identity that facts and statements are attached to.
type DataFlowVariable interface {
	IsStable() bool
	IsSynthetic() bool
	Index() int
	String() string
}

// RealVariable is backed by a program symbol, optionally reached through a
// receiver chain. The registry interns real variables, so two variables with
// the same symbol and receiver are the same pointer.
type RealVariable struct {
	Symbol          Symbol
	IsThisReference bool
	Receiver        DataFlowVariable
	IsSafeCall      bool

	index      int
	stableOnce sync.Once
	stable     bool
}

func newRealVariable(symbol Symbol, isThis bool, receiver DataFlowVariable, safe bool, index int) *RealVariable {
	return &RealVariable{
		Symbol:          symbol,
		IsThisReference: isThis,
		Receiver:        receiver,
		IsSafeCall:      safe,
		index:           index,
	}
}

// IsStable reports whether facts about the variable survive between reads.
// Non-local mutable or overridable properties are unstable.
func (v *RealVariable) IsStable() bool {
	v.stableOnce.Do(func() {
		v.stable = symbolIsStable(v.Symbol)
	})
	return v.stable
}

func symbolIsStable(symbol Symbol) bool {
	prop, ok := symbol.(PropertySymbol)
	if !ok {
		return true
	}
	switch {
	case prop.IsLocal():
		return true
	case prop.IsMutable():
		return false
	case prop.Modality() != ModalityFinal:
		return false
	default:
		return true
	}
}

func (v *RealVariable) IsSynthetic() bool { return false }
func (v *RealVariable) Index() int        { return v.index }

func (v *RealVariable) String() string {
	return fmt.Sprintf("d%d", v.index)
}

// Describe renders the variable with its symbol and receiver chain,
// e.g. "a.b" or "a?.b".
func (v *RealVariable) Describe() string {
	name := v.Symbol.Name()
	switch recv := v.Receiver.(type) {
	case *RealVariable:
		sep := "."
		if v.IsSafeCall {
			sep = "?."
		}
		return recv.Describe() + sep + name
	case *SyntheticVariable:
		return recv.String() + "." + name
	default:
		return name
	}
}

// Equal compares two real variables structurally: same symbol and an
// equal receiver chain.
func (v *RealVariable) Equal(other *RealVariable) bool {
	if v == other {
		return true
	}
	if v == nil || other == nil {
		return false
	}
	if v.Symbol != other.Symbol {
		return false
	}
	return VariablesEqual(v.Receiver, other.Receiver)
}

// DependsOn reports whether target appears in the receiver chain of v.
func (v *RealVariable) DependsOn(target DataFlowVariable) bool {
	for recv := v.Receiver; recv != nil; {
		if VariablesEqual(recv, target) {
			return true
		}
		rv, ok := recv.(*RealVariable)
		if !ok {
			return false
		}
		recv = rv.Receiver
	}
	return false
}

// SyntheticVariable is backed by an unnamed sub-expression, typically a
// boolean condition such as `x is String`.
type SyntheticVariable struct {
	Element Element
	index   int
}

func (v *SyntheticVariable) IsStable() bool    { return true }
func (v *SyntheticVariable) IsSynthetic() bool { return true }
func (v *SyntheticVariable) Index() int        { return v.index }

func (v *SyntheticVariable) String() string {
	return fmt.Sprintf("d%d", v.index)
}

// VariablesEqual compares two variables: structurally for real variables,
// by element identity for synthetic ones.
func VariablesEqual(a, b DataFlowVariable) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch left := a.(type) {
	case *RealVariable:
		right, ok := b.(*RealVariable)
		return ok && left.Equal(right)
	case *SyntheticVariable:
		right, ok := b.(*SyntheticVariable)
		return ok && (left == right || left.Element == right.Element)
	default:
		return a == b
	}
}
