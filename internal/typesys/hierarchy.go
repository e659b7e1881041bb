// Package typesys provides a nominal type hierarchy used to widen
// divergent narrowings at control-flow joins.
package typesys

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gnolang/smartcast/internal/dfa"
)

var (
	ErrUnknownType = errors.New("unknown type")
	ErrCycle       = errors.New("cyclic type hierarchy")
)

const (
	AnyName     = "Any"
	NothingName = "Nothing"
)

// NamedType is a nominal type in a Hierarchy.
type NamedType struct {
	name string
}

func (t *NamedType) String() string { return t.name }

// Hierarchy is a nominal type lattice: every type has Any as an ancestor
// and Nothing as a descendant. It implements dfa.TypeOracle.
type Hierarchy struct {
	types  map[string]*NamedType
	supers map[string][]string
}

var _ dfa.TypeOracle = (*Hierarchy)(nil)

// NewHierarchy returns a hierarchy holding only Any and Nothing.
func NewHierarchy() *Hierarchy {
	h := &Hierarchy{
		types:  make(map[string]*NamedType),
		supers: make(map[string][]string),
	}
	h.types[AnyName] = &NamedType{name: AnyName}
	h.types[NothingName] = &NamedType{name: NothingName}
	return h
}

// FromMap builds a hierarchy from a name -> direct supertypes table, such as
// the `hierarchy:` section of a config or scenario file. Supertypes may be
// declared in any order.
func FromMap(decls map[string][]string) (*Hierarchy, error) {
	h := NewHierarchy()
	names := make([]string, 0, len(decls))
	for name := range decls {
		names = append(names, name)
	}
	sort.Strings(names)

	visiting := make(map[string]bool)
	var declare func(name string) error
	declare = func(name string) error {
		if _, ok := h.types[name]; ok {
			return nil
		}
		if visiting[name] {
			return fmt.Errorf("%w: %s", ErrCycle, name)
		}
		supers, ok := decls[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownType, name)
		}
		visiting[name] = true
		for _, s := range supers {
			if err := declare(s); err != nil {
				return fmt.Errorf("declaring %s: %w", name, err)
			}
		}
		delete(visiting, name)
		_, err := h.Declare(name, supers...)
		return err
	}

	for _, name := range names {
		if err := declare(name); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Declare adds a type with the given direct supertypes. Types without
// supertypes extend Any. Redeclaring a type is an error.
func (h *Hierarchy) Declare(name string, supers ...string) (*NamedType, error) {
	if _, ok := h.types[name]; ok {
		return nil, fmt.Errorf("type %s already declared", name)
	}
	for _, s := range supers {
		if _, ok := h.types[s]; !ok {
			return nil, fmt.Errorf("%w: %s (supertype of %s)", ErrUnknownType, s, name)
		}
		if s == NothingName {
			return nil, fmt.Errorf("type %s cannot extend %s", name, NothingName)
		}
	}
	t := &NamedType{name: name}
	h.types[name] = t
	h.supers[name] = append([]string(nil), supers...)
	return t, nil
}

// Lookup returns the type declared under name.
func (h *Hierarchy) Lookup(name string) (*NamedType, bool) {
	t, ok := h.types[name]
	return t, ok
}

// MustLookup is Lookup for names known to exist.
func (h *Hierarchy) MustLookup(name string) *NamedType {
	t, ok := h.types[name]
	if !ok {
		panic(fmt.Sprintf("typesys: %s is not declared", name))
	}
	return t
}

func (h *Hierarchy) Any() *NamedType     { return h.types[AnyName] }
func (h *Hierarchy) Nothing() *NamedType { return h.types[NothingName] }

// Names returns the declared type names in sorted order.
func (h *Hierarchy) Names() []string {
	out := make([]string, 0, len(h.types))
	for name := range h.types {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ancestors returns name and every transitive supertype, Any included.
func (h *Hierarchy) ancestors(name string) map[string]struct{} {
	out := map[string]struct{}{AnyName: {}}
	stack := []string{name}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := out[n]; seen && n != AnyName {
			continue
		}
		out[n] = struct{}{}
		stack = append(stack, h.supers[n]...)
	}
	return out
}

// IsSubtype reports whether sub is sub or a descendant of super. Types not
// in the hierarchy are only subtypes of themselves and Any.
func (h *Hierarchy) IsSubtype(sub, super dfa.Type) bool {
	if sub == nil || super == nil {
		return false
	}
	s, p := sub.String(), super.String()
	if s == p || p == AnyName || s == NothingName {
		return true
	}
	if _, ok := h.types[s]; !ok {
		return false
	}
	_, ok := h.ancestors(s)[p]
	return ok
}

// CommonSuperTypeOrNull returns the most specific type every input is a
// subtype of. It returns nil when an input is not declared or when several
// unrelated ancestors are equally specific.
func (h *Hierarchy) CommonSuperTypeOrNull(types []dfa.Type) dfa.Type {
	var names []string
	for _, t := range types {
		if t == nil {
			return nil
		}
		name := t.String()
		if _, ok := h.types[name]; !ok {
			return nil
		}
		if name != NothingName {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		if len(types) == 0 {
			return nil
		}
		return h.Nothing()
	}

	common := h.ancestors(names[0])
	for _, name := range names[1:] {
		anc := h.ancestors(name)
		for c := range common {
			if _, ok := anc[c]; !ok {
				delete(common, c)
			}
		}
	}

	var minimal []string
	for c := range common {
		dominated := false
		for d := range common {
			if d != c && h.IsSubtype(h.types[d], h.types[c]) {
				dominated = true
				break
			}
		}
		if !dominated {
			minimal = append(minimal, c)
		}
	}
	if len(minimal) != 1 {
		return nil
	}
	return h.types[minimal[0]]
}
