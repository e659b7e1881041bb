package dfa

import "go.uber.org/zap"

// CollectInfoForBooleanOperator gathers the pending statements about both
// operands and the facts the right operand added on top of the left flow.
// rightFlow is expected to descend from leftFlow with the left operand
// already approved, so KnownFromRight also carries what that approval
// produced.
func (l *MapLogicSystem) CollectInfoForBooleanOperator(
	leftFlow *MapFlow,
	leftVariable DataFlowVariable,
	rightFlow *MapFlow,
	rightVariable DataFlowVariable,
) InfoForBooleanOperator {
	return InfoForBooleanOperator{
		ConditionalFromLeft:  leftFlow.Conditions(leftVariable),
		ConditionalFromRight: rightFlow.Conditions(rightVariable),
		KnownFromRight:       knownDiff(leftFlow, rightFlow),
	}
}

func knownDiff(before, after *MapFlow) KnownFacts {
	diff := KnownFacts{}
	for v, info := range after.known {
		old, ok := before.known[v]
		if !ok {
			diff[v] = info
			continue
		}
		added := &TypeInfo{
			Variable:     v,
			ExactType:    info.ExactType.Minus(old.ExactType),
			ExactNotType: info.ExactNotType.Minus(old.ExactNotType),
		}
		if !added.IsEmpty() {
			diff[v] = added
		}
	}
	return diff
}

// AndFacts returns what holds when `left && right` evaluates to true and to
// false. A false result means either the left operand was false, or it was
// true and the right operand was false.
func (l *MapLogicSystem) AndFacts(info InfoForBooleanOperator, left, right DataFlowVariable) (onTrue, onFalse KnownFacts) {
	onTrue = l.ApprovePredicateStatements(EqTrueOf(left), info.ConditionalFromLeft)
	onTrue.AddAll(l.ApprovePredicateStatements(EqTrueOf(right), info.ConditionalFromRight))
	onTrue.AddAll(info.KnownFromRight)

	leftFalse := l.ApprovePredicateStatements(EqFalseOf(left), info.ConditionalFromLeft)
	rightFalse := l.ApprovePredicateStatements(EqFalseOf(right), info.ConditionalFromRight)
	rightFalse.AddAll(l.ApprovePredicateStatements(EqTrueOf(left), info.ConditionalFromLeft))
	rightFalse.AddAll(info.KnownFromRight)
	onFalse = OrForVerifiedFacts(l.config.Oracle, leftFalse, rightFalse)

	l.logBoolean(OpAnd, onTrue, onFalse)
	return onTrue, onFalse
}

// OrFacts is the dual of AndFacts for `left || right`.
func (l *MapLogicSystem) OrFacts(info InfoForBooleanOperator, left, right DataFlowVariable) (onTrue, onFalse KnownFacts) {
	onFalse = l.ApprovePredicateStatements(EqFalseOf(left), info.ConditionalFromLeft)
	onFalse.AddAll(l.ApprovePredicateStatements(EqFalseOf(right), info.ConditionalFromRight))
	onFalse.AddAll(info.KnownFromRight)

	leftTrue := l.ApprovePredicateStatements(EqTrueOf(left), info.ConditionalFromLeft)
	rightTrue := l.ApprovePredicateStatements(EqTrueOf(right), info.ConditionalFromRight)
	rightTrue.AddAll(l.ApprovePredicateStatements(EqFalseOf(left), info.ConditionalFromLeft))
	rightTrue.AddAll(info.KnownFromRight)
	onTrue = OrForVerifiedFacts(l.config.Oracle, leftTrue, rightTrue)

	l.logBoolean(OpOr, onTrue, onFalse)
	return onTrue, onFalse
}

// BooleanFacts dispatches to AndFacts or OrFacts.
func (l *MapLogicSystem) BooleanFacts(op BooleanOperator, info InfoForBooleanOperator, left, right DataFlowVariable) (onTrue, onFalse KnownFacts) {
	if op == OpAnd {
		return l.AndFacts(info, left, right)
	}
	return l.OrFacts(info, left, right)
}

// AddImplications records `predicate -> info` for every fact.
func (l *MapLogicSystem) AddImplications(flow *MapFlow, predicate Predicate, facts KnownFacts) {
	for _, info := range facts.Infos() {
		l.AddLogicStatement(flow, Implies(predicate, info))
	}
}

func (l *MapLogicSystem) logBoolean(op BooleanOperator, onTrue, onFalse KnownFacts) {
	l.logger.Debug("combined boolean operands",
		zap.Stringer("op", op),
		zap.Int("on_true", len(onTrue)),
		zap.Int("on_false", len(onFalse)))
}
