package dfa

import "go.uber.org/zap"

// LogicSystem is the flow algebra. Implementations pick how flows are stored;
// the fact helpers in or.go are shared free functions.
type LogicSystem[F Flow] interface {
	CreateEmptyFlow() F
	ForkFlow(flow F) F
	JoinFlow(flows []F) F

	AddKnownInfo(flow F, info *TypeInfo)
	AddLogicStatement(flow F, statement LogicStatement)
	RemoveAllAboutVariable(flow F, variable *RealVariable)

	// TranslateConditionalVariableInStatements rewrites the statements whose
	// condition is about from into statements about to. A nil filter keeps
	// every statement and a nil transform keeps the rewritten one as is.
	TranslateConditionalVariableInStatements(
		flow F,
		from, to DataFlowVariable,
		shouldRemoveOriginal bool,
		filter func(LogicStatement) bool,
		transform func(LogicStatement) LogicStatement,
	)

	// ApproveStatementsInsideFlow materializes everything predicate implies
	// as known facts, in flow itself or in a fork of it.
	ApproveStatementsInsideFlow(flow F, predicate Predicate, shouldForkFlow, shouldRemoveSynthetics bool) F

	ProcessUpdatedReceiverVariable(flow F, variable *RealVariable)
	UpdateAllReceivers(flow F)

	CollectInfoForBooleanOperator(leftFlow F, leftVariable DataFlowVariable, rightFlow F, rightVariable DataFlowVariable) InfoForBooleanOperator

	ApprovePredicateTo(destination KnownFacts, predicate Predicate, flow F)
	ApprovePredicateWith(destination KnownFacts, predicate Predicate, notApproved []LogicStatement)
	ApprovePredicateStatements(predicate Predicate, statements []LogicStatement) KnownFacts
	// ApprovePredicate collects every info implied by predicate, following
	// implied predicates transitively.
	ApprovePredicate(flow F, predicate Predicate) []*TypeInfo
}

// ReplaceConditionalVariableInStatements moves statements from one variable
// to another. It serves `val b = x is String`, `b = x is String` and `!b`.
func ReplaceConditionalVariableInStatements[F Flow](
	logic LogicSystem[F],
	flow F,
	from, to DataFlowVariable,
	filter func(LogicStatement) bool,
	transform func(LogicStatement) LogicStatement,
) {
	logic.TranslateConditionalVariableInStatements(flow, from, to, true, filter, transform)
}

// InfoForBooleanOperator is the raw material for combining the operands of
// `&&` and `||`.
type InfoForBooleanOperator struct {
	ConditionalFromLeft  []LogicStatement
	ConditionalFromRight []LogicStatement
	// KnownFromRight holds what became known while evaluating the right
	// operand, beyond what the left flow already knew.
	KnownFromRight KnownFacts
}

// BooleanOperator is a short-circuit operator.
type BooleanOperator int

const (
	OpAnd BooleanOperator = iota
	OpOr
)

func (o BooleanOperator) String() string {
	if o == OpAnd {
		return "&&"
	}
	return "||"
}

// ReceiverListener is told when the narrowing of a `this` reference changes,
// so the host can refresh its implicit receiver stack. A nil info means the
// narrowing was dropped.
type ReceiverListener interface {
	ReceiverUpdated(variable *RealVariable, info *TypeInfo)
}

const defaultMaxApprovalDepth = 64

// Config configures a logic system.
type Config struct {
	Logger *zap.Logger
	// Oracle widens divergent narrowings at joins. Nil records no supertype.
	Oracle TypeOracle
	// NonNullType, when set, turns approved `v != null` / `v == null`
	// predicates on real variables into `v has NonNullType` / `v hasNot NonNullType`.
	NonNullType Type
	// MaxApprovalDepth bounds the length of implication chains.
	MaxApprovalDepth int
	Receivers        ReceiverListener
}

// DefaultConfig returns a config with a no-op logger and no oracle.
func DefaultConfig() Config {
	return Config{
		Logger:           zap.NewNop(),
		MaxApprovalDepth: defaultMaxApprovalDepth,
	}
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.MaxApprovalDepth <= 0 {
		c.MaxApprovalDepth = defaultMaxApprovalDepth
	}
	return c
}
