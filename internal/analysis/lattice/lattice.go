package lattice

import "github.com/gnolang/smartcast/internal/dfa"

// Nilness models what is known about a pointer-like value being nil.
type Nilness int

const (
	Bottom Nilness = iota // unreachable
	Nil
	NonNil
	MaybeNil
)

func (n Nilness) String() string {
	switch n {
	case Bottom:
		return "Bottom"
	case Nil:
		return "Nil"
	case NonNil:
		return "NonNil"
	case MaybeNil:
		return "MaybeNil"
	default:
		return "Unknown"
	}
}

// Meet returns the greatest lower bound in the lattice.
func Meet(a, b Nilness) Nilness {
	if a == Bottom || b == Bottom {
		return Bottom
	}
	if a == MaybeNil {
		return b
	}
	if b == MaybeNil {
		return a
	}
	if a == b {
		return a
	}
	return Bottom
}

// Of summarizes a narrowing. nonNil is the type that an approved `v != nil`
// records; a nil info or nil type yields MaybeNil.
func Of(info *dfa.TypeInfo, nonNil dfa.Type) Nilness {
	if info.IsEmpty() || nonNil == nil {
		return MaybeNil
	}
	result := MaybeNil
	if info.ExactType.Contains(nonNil) {
		result = Meet(result, NonNil)
	}
	if info.ExactNotType.Contains(nonNil) {
		result = Meet(result, Nil)
	}
	return result
}

// Summary maps variable descriptions to their nilness. Variables that may
// or may not be nil are left out.
type Summary map[string]Nilness

// Summarize reports the nilness of every variable flow knows something about.
func Summarize(flow *dfa.MapFlow, nonNil dfa.Type) Summary {
	out := make(Summary)
	for _, v := range flow.KnownVariables() {
		if n := Of(flow.KnownInfo(v), nonNil); n != MaybeNil {
			out[v.Describe()] = n
		}
	}
	return out
}
