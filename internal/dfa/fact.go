package dfa

import (
	"fmt"
	"sort"
)

// Condition is the right-hand side of a predicate.
type Condition int

const (
	EqTrue Condition = iota
	EqFalse
	EqNull
	NotEqNull
)

func (c Condition) String() string {
	switch c {
	case EqTrue:
		return "== true"
	case EqFalse:
		return "== false"
	case EqNull:
		return "== null"
	case NotEqNull:
		return "!= null"
	default:
		return "?"
	}
}

// Invert flips true/false and null/not-null.
func (c Condition) Invert() Condition {
	switch c {
	case EqTrue:
		return EqFalse
	case EqFalse:
		return EqTrue
	case EqNull:
		return NotEqNull
	case NotEqNull:
		return EqNull
	default:
		return c
	}
}

// Effect is what a logic statement establishes: a Predicate or a *TypeInfo.
type Effect interface {
	isEffect()
	String() string
}

// Predicate states that a variable satisfies a condition.
type Predicate struct {
	Variable  DataFlowVariable
	Condition Condition
}

func (Predicate) isEffect() {}

func (p Predicate) Invert() Predicate {
	return Predicate{Variable: p.Variable, Condition: p.Condition.Invert()}
}

func (p Predicate) String() string {
	return fmt.Sprintf("%s %s", p.Variable, p.Condition)
}

// Equal compares predicates using structural variable equality.
func (p Predicate) Equal(other Predicate) bool {
	return p.Condition == other.Condition && VariablesEqual(p.Variable, other.Variable)
}

// TypeInfo is what is known about a real variable: the types it definitely
// is and the types it definitely is not. Values stored in a flow are never
// mutated in place.
type TypeInfo struct {
	Variable     *RealVariable
	ExactType    TypeSet
	ExactNotType TypeSet
}

func (*TypeInfo) isEffect() {}

// NewTypeInfo returns an empty info for variable.
func NewTypeInfo(variable *RealVariable) *TypeInfo {
	return &TypeInfo{Variable: variable, ExactType: TypeSet{}, ExactNotType: TypeSet{}}
}

// Plus merges both sets elementwise into a new info.
func (i *TypeInfo) Plus(other *TypeInfo) *TypeInfo {
	return &TypeInfo{
		Variable:     i.Variable,
		ExactType:    i.ExactType.Union(other.ExactType),
		ExactNotType: i.ExactNotType.Union(other.ExactNotType),
	}
}

// Invert swaps the two sets; it is what a negated `is` check establishes.
func (i *TypeInfo) Invert() *TypeInfo {
	return &TypeInfo{
		Variable:     i.Variable,
		ExactType:    i.ExactNotType.Clone(),
		ExactNotType: i.ExactType.Clone(),
	}
}

func (i *TypeInfo) Copy() *TypeInfo {
	return &TypeInfo{
		Variable:     i.Variable,
		ExactType:    i.ExactType.Clone(),
		ExactNotType: i.ExactNotType.Clone(),
	}
}

// IsEmpty reports that nothing narrows the variable.
func (i *TypeInfo) IsEmpty() bool {
	return i == nil || (i.ExactType.IsEmpty() && i.ExactNotType.IsEmpty())
}

func (i *TypeInfo) Equal(other *TypeInfo) bool {
	if i == nil || other == nil {
		return i == other
	}
	return i.Variable.Equal(other.Variable) &&
		i.ExactType.Equal(other.ExactType) &&
		i.ExactNotType.Equal(other.ExactNotType)
}

func (i *TypeInfo) String() string {
	return fmt.Sprintf("%s: %s, %s", i.Variable, i.ExactType, i.ExactNotType)
}

// LogicStatement says: if Condition holds, Effect holds too.
type LogicStatement struct {
	Condition Predicate
	Effect    Effect
}

// InvertCondition keeps the effect and negates the condition.
func (s LogicStatement) InvertCondition() LogicStatement {
	return LogicStatement{Condition: s.Condition.Invert(), Effect: s.Effect}
}

func (s LogicStatement) Equal(other LogicStatement) bool {
	if !s.Condition.Equal(other.Condition) {
		return false
	}
	return effectsEqual(s.Effect, other.Effect)
}

func (s LogicStatement) String() string {
	return fmt.Sprintf("%s -> %s", s.Condition, s.Effect)
}

// mentions reports whether the statement refers to v as its condition
// variable or as the target of its effect.
func (s LogicStatement) mentions(v DataFlowVariable) bool {
	if VariablesEqual(s.Condition.Variable, v) {
		return true
	}
	return effectVariable(s.Effect) != nil && VariablesEqual(effectVariable(s.Effect), v)
}

func effectVariable(e Effect) DataFlowVariable {
	switch eff := e.(type) {
	case Predicate:
		return eff.Variable
	case *TypeInfo:
		if eff.Variable == nil {
			return nil
		}
		return eff.Variable
	default:
		return nil
	}
}

func effectsEqual(a, b Effect) bool {
	switch left := a.(type) {
	case Predicate:
		right, ok := b.(Predicate)
		return ok && left.Equal(right)
	case *TypeInfo:
		right, ok := b.(*TypeInfo)
		return ok && left.Equal(right)
	default:
		return a == nil && b == nil
	}
}

// KnownFacts maps variables to confirmed narrowings.
type KnownFacts map[*RealVariable]*TypeInfo

// Add merges info into the facts additively.
func (k KnownFacts) Add(info *TypeInfo) {
	if info == nil {
		return
	}
	if existing, ok := k[info.Variable]; ok {
		k[info.Variable] = existing.Plus(info)
		return
	}
	k[info.Variable] = info.Copy()
}

// AddAll merges every info of other.
func (k KnownFacts) AddAll(other KnownFacts) {
	for _, info := range other {
		k.Add(info)
	}
}

// Variables returns the variables ordered by creation.
func (k KnownFacts) Variables() []*RealVariable {
	out := make([]*RealVariable, 0, len(k))
	for v := range k {
		out = append(out, v)
	}
	sortVariables(out)
	return out
}

// Infos returns the infos ordered by variable creation.
func (k KnownFacts) Infos() []*TypeInfo {
	vars := k.Variables()
	out := make([]*TypeInfo, len(vars))
	for i, v := range vars {
		out[i] = k[v]
	}
	return out
}

func sortVariables(vars []*RealVariable) {
	sort.Slice(vars, func(i, j int) bool { return vars[i].index < vars[j].index })
}

// ---- constructors ----

// Eq builds `v == constant`; a nil constant means null.
func Eq(v DataFlowVariable, constant *bool) Predicate {
	switch {
	case constant == nil:
		return Predicate{Variable: v, Condition: EqNull}
	case *constant:
		return Predicate{Variable: v, Condition: EqTrue}
	default:
		return Predicate{Variable: v, Condition: EqFalse}
	}
}

// NotEq builds `v != constant`; a nil constant means null.
func NotEq(v DataFlowVariable, constant *bool) Predicate {
	return Eq(v, constant).Invert()
}

func EqTrueOf(v DataFlowVariable) Predicate  { return Predicate{Variable: v, Condition: EqTrue} }
func EqFalseOf(v DataFlowVariable) Predicate { return Predicate{Variable: v, Condition: EqFalse} }
func EqNullOf(v DataFlowVariable) Predicate  { return Predicate{Variable: v, Condition: EqNull} }
func NotNullOf(v DataFlowVariable) Predicate { return Predicate{Variable: v, Condition: NotEqNull} }

// Implies builds `p -> e`.
func Implies(p Predicate, e Effect) LogicStatement {
	return LogicStatement{Condition: p, Effect: e}
}

// Has builds the info "v is one of types".
func Has(v *RealVariable, types ...Type) *TypeInfo {
	return &TypeInfo{Variable: v, ExactType: NewTypeSet(types...), ExactNotType: TypeSet{}}
}

// HasNot builds the info "v is none of types".
func HasNot(v *RealVariable, types ...Type) *TypeInfo {
	return &TypeInfo{Variable: v, ExactType: TypeSet{}, ExactNotType: NewTypeSet(types...)}
}
