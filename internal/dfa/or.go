package dfa

// IntersectSets returns the members common to every set.
func IntersectSets(sets []TypeSet) TypeSet {
	if len(sets) == 0 {
		return TypeSet{}
	}
	result := sets[0].Clone()
	for _, set := range sets[1:] {
		for k := range result {
			if _, ok := set[k]; !ok {
				delete(result, k)
			}
		}
	}
	return result
}

// OrTypes widens type sets coming from mutually exclusive outcomes. The
// result holds the types present in every set plus, when the sets disagree,
// the common supertype of the differing types if the oracle knows one.
// Any empty input means one outcome carries no information, so nothing can
// be claimed.
func OrTypes(oracle TypeOracle, sets []TypeSet) TypeSet {
	if len(sets) == 0 {
		return TypeSet{}
	}
	all := TypeSet{}
	for _, set := range sets {
		if set.IsEmpty() {
			return TypeSet{}
		}
		all.AddAll(set)
	}
	common := IntersectSets(sets)
	different := all.Minus(common)
	if different.IsEmpty() || oracle == nil {
		return common
	}
	if super := oracle.CommonSuperTypeOrNull(different.Sorted()); super != nil {
		common.Add(super)
	}
	return common
}

// Or computes what holds for a variable after any one of infos happened.
// All infos must describe the same variable; a single info is returned as is.
// Excluded types are only intersected, never widened through the oracle: a
// supertype of types excluded on different paths is not excluded on any of
// them.
func Or(oracle TypeOracle, infos []*TypeInfo) *TypeInfo {
	if len(infos) == 0 {
		failInvariant(nil, "or", "no infos to combine")
	}
	if len(infos) == 1 {
		return infos[0]
	}
	variable := infos[0].Variable
	exact := make([]TypeSet, len(infos))
	exactNot := make([]TypeSet, len(infos))
	for i, info := range infos {
		if !info.Variable.Equal(variable) {
			failInvariant(nil, "or", "infos for %s and %s", variable.Describe(), info.Variable.Describe())
		}
		exact[i] = info.ExactType
		exactNot[i] = info.ExactNotType
	}
	return &TypeInfo{
		Variable:     variable,
		ExactType:    OrTypes(oracle, exact),
		ExactNotType: OrTypes(nil, exactNot),
	}
}

// OrForVerifiedFacts combines the facts of the two operands of `||`. Only
// variables known on both sides survive.
func OrForVerifiedFacts(oracle TypeOracle, left, right KnownFacts) KnownFacts {
	result := KnownFacts{}
	if len(left) == 0 || len(right) == 0 {
		return result
	}
	for _, variable := range left.Variables() {
		rightInfo, ok := right[variable]
		if !ok {
			continue
		}
		info := Or(oracle, []*TypeInfo{left[variable], rightInfo})
		if !info.IsEmpty() {
			result[variable] = info
		}
	}
	return result
}
