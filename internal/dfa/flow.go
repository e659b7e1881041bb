package dfa

import (
	"strings"

	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// Flow is the read side of a per-branch snapshot: confirmed facts plus the
// logic statements that are still waiting for their condition.
type Flow interface {
	// KnownInfo returns the confirmed narrowing of variable, or nil.
	KnownInfo(variable *RealVariable) *TypeInfo
	// Conditions returns the statements whose condition is about variable.
	Conditions(variable DataFlowVariable) []LogicStatement
	// KnownVariables returns the variables with a confirmed narrowing.
	KnownVariables() []*RealVariable
	// RemoveConditions drops and returns the statements about variable.
	RemoveConditions(variable DataFlowVariable) []LogicStatement
}

var conditions = [...]Condition{EqTrue, EqFalse, EqNull, NotEqNull}

// MapFlow stores known facts in a map and statements in an insertion-ordered
// multimap keyed by predicate. Forking copies both containers; the infos and
// statement slices they hold are never mutated in place, so a fork shares no
// mutable state with its parent.
type MapFlow struct {
	known      map[*RealVariable]*TypeInfo
	statements *linkedhashmap.Map
}

func newMapFlow() *MapFlow {
	return &MapFlow{
		known:      make(map[*RealVariable]*TypeInfo),
		statements: linkedhashmap.New(),
	}
}

func (f *MapFlow) clone() *MapFlow {
	out := &MapFlow{
		known:      make(map[*RealVariable]*TypeInfo, len(f.known)),
		statements: linkedhashmap.New(),
	}
	for v, info := range f.known {
		out.known[v] = info
	}
	for _, key := range f.statements.Keys() {
		value, _ := f.statements.Get(key)
		out.statements.Put(key, value)
	}
	return out
}

func (f *MapFlow) KnownInfo(variable *RealVariable) *TypeInfo {
	return f.known[variable]
}

func (f *MapFlow) KnownVariables() []*RealVariable {
	out := make([]*RealVariable, 0, len(f.known))
	for v := range f.known {
		out = append(out, v)
	}
	sortVariables(out)
	return out
}

// KnownFacts returns a snapshot of the confirmed facts.
func (f *MapFlow) KnownFacts() KnownFacts {
	out := make(KnownFacts, len(f.known))
	for v, info := range f.known {
		out[v] = info
	}
	return out
}

func (f *MapFlow) Conditions(variable DataFlowVariable) []LogicStatement {
	var out []LogicStatement
	for _, c := range conditions {
		out = append(out, f.StatementsFor(Predicate{Variable: variable, Condition: c})...)
	}
	return out
}

// StatementsFor returns the statements whose condition is exactly p.
func (f *MapFlow) StatementsFor(p Predicate) []LogicStatement {
	value, ok := f.statements.Get(p)
	if !ok {
		return nil
	}
	return value.([]LogicStatement)
}

// Statements returns every pending statement in insertion order.
func (f *MapFlow) Statements() []LogicStatement {
	var out []LogicStatement
	for _, key := range f.statements.Keys() {
		value, _ := f.statements.Get(key)
		out = append(out, value.([]LogicStatement)...)
	}
	return out
}

func (f *MapFlow) RemoveConditions(variable DataFlowVariable) []LogicStatement {
	var removed []LogicStatement
	for _, c := range conditions {
		key := Predicate{Variable: variable, Condition: c}
		if value, ok := f.statements.Get(key); ok {
			removed = append(removed, value.([]LogicStatement)...)
			f.statements.Remove(key)
		}
	}
	return removed
}

func (f *MapFlow) setInfo(info *TypeInfo) {
	if info.IsEmpty() {
		delete(f.known, info.Variable)
		return
	}
	f.known[info.Variable] = info
}

func (f *MapFlow) addInfo(info *TypeInfo) {
	if info.IsEmpty() {
		return
	}
	if existing, ok := f.known[info.Variable]; ok {
		f.known[info.Variable] = existing.Plus(info)
		return
	}
	f.known[info.Variable] = info.Copy()
}

// addStatement appends to a fresh slice so that forks holding the previous
// slice never observe the new element.
func (f *MapFlow) addStatement(statement LogicStatement) {
	existing := f.StatementsFor(statement.Condition)
	for _, s := range existing {
		if s.Equal(statement) {
			return
		}
	}
	next := make([]LogicStatement, len(existing), len(existing)+1)
	copy(next, existing)
	f.statements.Put(statement.Condition, append(next, statement))
}

// removeStatements drops every statement matching drop.
func (f *MapFlow) removeStatements(drop func(LogicStatement) bool) {
	for _, key := range f.statements.Keys() {
		value, _ := f.statements.Get(key)
		existing := value.([]LogicStatement)
		kept := make([]LogicStatement, 0, len(existing))
		for _, s := range existing {
			if !drop(s) {
				kept = append(kept, s)
			}
		}
		switch {
		case len(kept) == 0:
			f.statements.Remove(key)
		case len(kept) != len(existing):
			f.statements.Put(key, kept)
		}
	}
}

func (f *MapFlow) String() string {
	var b strings.Builder
	b.WriteString("known:\n")
	for _, v := range f.KnownVariables() {
		b.WriteString("  " + f.known[v].String() + "\n")
	}
	b.WriteString("statements:\n")
	for _, s := range f.Statements() {
		b.WriteString("  " + s.String() + "\n")
	}
	return b.String()
}
