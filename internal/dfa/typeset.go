package dfa

import (
	"sort"
	"strings"
)

// Type is an opaque type owned by the host type system. Two types with the
// same String rendering are treated as the same type.
type Type interface {
	String() string
}

// TypeOracle finds a shared supertype for divergent narrowings. It returns
// nil when the types have no common supertype worth recording.
type TypeOracle interface {
	CommonSuperTypeOrNull(types []Type) Type
}

// OracleFunc adapts a function to TypeOracle.
type OracleFunc func(types []Type) Type

func (f OracleFunc) CommonSuperTypeOrNull(types []Type) Type { return f(types) }

// TypeSet is a set of types keyed by their rendering. A nil or empty set
// means "no information".
type TypeSet map[string]Type

// NewTypeSet builds a set from types, skipping nils.
func NewTypeSet(types ...Type) TypeSet {
	set := make(TypeSet, len(types))
	for _, t := range types {
		set.Add(t)
	}
	return set
}

func (s TypeSet) Add(t Type) {
	if t == nil {
		return
	}
	s[t.String()] = t
}

func (s TypeSet) AddAll(other TypeSet) {
	for k, t := range other {
		s[k] = t
	}
}

func (s TypeSet) Contains(t Type) bool {
	if t == nil {
		return false
	}
	_, ok := s[t.String()]
	return ok
}

func (s TypeSet) Len() int { return len(s) }

func (s TypeSet) IsEmpty() bool { return len(s) == 0 }

// Clone returns an independent copy; cloning nil yields an empty set.
func (s TypeSet) Clone() TypeSet {
	out := make(TypeSet, len(s))
	for k, t := range s {
		out[k] = t
	}
	return out
}

// Union returns a new set holding the members of both sets.
func (s TypeSet) Union(other TypeSet) TypeSet {
	out := s.Clone()
	out.AddAll(other)
	return out
}

// Minus returns the members of s that are not in other.
func (s TypeSet) Minus(other TypeSet) TypeSet {
	out := make(TypeSet, len(s))
	for k, t := range s {
		if _, ok := other[k]; !ok {
			out[k] = t
		}
	}
	return out
}

func (s TypeSet) Equal(other TypeSet) bool {
	if len(s) != len(other) {
		return false
	}
	for k := range s {
		if _, ok := other[k]; !ok {
			return false
		}
	}
	return true
}

// Sorted returns the members ordered by rendering.
func (s TypeSet) Sorted() []Type {
	keys := s.Names()
	out := make([]Type, len(keys))
	for i, k := range keys {
		out[i] = s[k]
	}
	return out
}

// Names returns the sorted renderings of the members.
func (s TypeSet) Names() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s TypeSet) String() string {
	return "{" + strings.Join(s.Names(), ", ") + "}"
}
