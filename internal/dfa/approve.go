package dfa

import "go.uber.org/zap"

type statementLookup func(Predicate) []LogicStatement

// approval walks implication chains. visited guards against statements that
// imply each other: a predicate already approved in this walk is a no-op.
type approval struct {
	logic    *MapLogicSystem
	lookup   statementLookup
	dst      KnownFacts
	visited  map[Predicate]struct{}
	maxDepth int
}

func (l *MapLogicSystem) newApproval(dst KnownFacts, lookup statementLookup) *approval {
	return &approval{
		logic:    l,
		lookup:   lookup,
		dst:      dst,
		visited:  make(map[Predicate]struct{}),
		maxDepth: l.config.MaxApprovalDepth,
	}
}

func (a *approval) approve(predicate Predicate, depth int) {
	if _, seen := a.visited[predicate]; seen {
		return
	}
	if depth > a.maxDepth {
		a.logic.logger.Warn("implication chain too deep",
			zap.Stringer("predicate", predicate),
			zap.Int("depth", depth))
		return
	}
	a.visited[predicate] = struct{}{}

	if info := a.logic.nullabilityInfo(predicate); info != nil {
		a.dst.Add(info)
	}
	for _, statement := range a.lookup(predicate) {
		switch effect := statement.Effect.(type) {
		case *TypeInfo:
			a.dst.Add(effect)
		case Predicate:
			a.approve(effect, depth+1)
		}
	}
	// A boolean known to be true or false is not null.
	if predicate.Condition == EqTrue || predicate.Condition == EqFalse {
		a.approve(NotNullOf(predicate.Variable), depth+1)
	}
}

func (l *MapLogicSystem) nullabilityInfo(predicate Predicate) *TypeInfo {
	if l.config.NonNullType == nil {
		return nil
	}
	variable, ok := predicate.Variable.(*RealVariable)
	if !ok {
		return nil
	}
	switch predicate.Condition {
	case NotEqNull:
		return Has(variable, l.config.NonNullType)
	case EqNull:
		return HasNot(variable, l.config.NonNullType)
	default:
		return nil
	}
}

// lookupIn indexes a loose collection of statements by condition.
func lookupIn(statements []LogicStatement) statementLookup {
	return func(p Predicate) []LogicStatement {
		var out []LogicStatement
		for _, s := range statements {
			if s.Condition.Equal(p) {
				out = append(out, s)
			}
		}
		return out
	}
}

func (l *MapLogicSystem) ApprovePredicateTo(destination KnownFacts, predicate Predicate, flow *MapFlow) {
	l.newApproval(destination, flow.StatementsFor).approve(predicate, 0)
}

func (l *MapLogicSystem) ApprovePredicateWith(destination KnownFacts, predicate Predicate, notApproved []LogicStatement) {
	l.newApproval(destination, lookupIn(notApproved)).approve(predicate, 0)
}

func (l *MapLogicSystem) ApprovePredicateStatements(predicate Predicate, statements []LogicStatement) KnownFacts {
	facts := KnownFacts{}
	l.ApprovePredicateWith(facts, predicate, statements)
	return facts
}

func (l *MapLogicSystem) ApprovePredicate(flow *MapFlow, predicate Predicate) []*TypeInfo {
	facts := KnownFacts{}
	l.ApprovePredicateTo(facts, predicate, flow)
	l.logger.Debug("approved predicate",
		zap.Stringer("predicate", predicate),
		zap.Int("infos", len(facts)))
	return facts.Infos()
}
