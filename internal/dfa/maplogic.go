package dfa

import "go.uber.org/zap"

// MapLogicSystem implements LogicSystem over *MapFlow.
type MapLogicSystem struct {
	storage *VariableStorage
	config  Config
	logger  *zap.Logger
}

var _ LogicSystem[*MapFlow] = (*MapLogicSystem)(nil)

// NewMapLogicSystem creates a logic system. storage may be nil; it is only
// used to forget synthetic variables once their condition is resolved.
func NewMapLogicSystem(storage *VariableStorage, config Config) *MapLogicSystem {
	config = config.withDefaults()
	return &MapLogicSystem{
		storage: storage,
		config:  config,
		logger:  config.Logger,
	}
}

// Oracle returns the configured type oracle.
func (l *MapLogicSystem) Oracle() TypeOracle { return l.config.Oracle }

func (l *MapLogicSystem) CreateEmptyFlow() *MapFlow {
	return newMapFlow()
}

func (l *MapLogicSystem) ForkFlow(flow *MapFlow) *MapFlow {
	return flow.clone()
}

// JoinFlow merges sibling flows. A variable stays known only if every flow
// knows it, widened through Or; a statement survives only if every flow
// holds an equal statement.
func (l *MapLogicSystem) JoinFlow(flows []*MapFlow) *MapFlow {
	switch len(flows) {
	case 0:
		failInvariant(l.logger, "join", "no flows to join")
	case 1:
		return flows[0].clone()
	}

	result := newMapFlow()
	first, rest := flows[0], flows[1:]

	for _, variable := range first.KnownVariables() {
		infos := []*TypeInfo{first.known[variable]}
		for _, flow := range rest {
			info, ok := flow.known[variable]
			if !ok {
				infos = nil
				break
			}
			infos = append(infos, info)
		}
		if infos == nil {
			continue
		}
		result.setInfo(Or(l.config.Oracle, infos))
	}

	for _, statement := range first.Statements() {
		if everyFlowHolds(rest, statement) {
			result.addStatement(statement)
		}
	}

	l.logger.Debug("joined flows",
		zap.Int("inputs", len(flows)),
		zap.Int("known", len(result.known)),
		zap.Int("statements", result.statements.Size()))
	l.UpdateAllReceivers(result)
	return result
}

func everyFlowHolds(flows []*MapFlow, statement LogicStatement) bool {
	for _, flow := range flows {
		found := false
		for _, s := range flow.StatementsFor(statement.Condition) {
			if s.Equal(statement) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (l *MapLogicSystem) AddKnownInfo(flow *MapFlow, info *TypeInfo) {
	if info.IsEmpty() {
		return
	}
	flow.addInfo(info)
	l.ProcessUpdatedReceiverVariable(flow, info.Variable)
}

func (l *MapLogicSystem) AddLogicStatement(flow *MapFlow, statement LogicStatement) {
	if info, ok := statement.Effect.(*TypeInfo); ok && info.IsEmpty() {
		return
	}
	flow.addStatement(statement)
}

// RemoveAllAboutVariable forgets everything about variable and about every
// variable reached through it as a receiver. Called on reassignment.
func (l *MapLogicSystem) RemoveAllAboutVariable(flow *MapFlow, variable *RealVariable) {
	affected := func(v DataFlowVariable) bool {
		if v == nil {
			return false
		}
		if VariablesEqual(v, variable) {
			return true
		}
		rv, ok := v.(*RealVariable)
		return ok && rv.DependsOn(variable)
	}

	var dropped []*RealVariable
	for v := range flow.known {
		if affected(v) {
			dropped = append(dropped, v)
		}
	}
	for _, v := range dropped {
		delete(flow.known, v)
	}
	flow.removeStatements(func(s LogicStatement) bool {
		return affected(s.Condition.Variable) || affected(effectVariable(s.Effect))
	})

	sortVariables(dropped)
	for _, v := range dropped {
		l.ProcessUpdatedReceiverVariable(flow, v)
	}
}

func (l *MapLogicSystem) TranslateConditionalVariableInStatements(
	flow *MapFlow,
	from, to DataFlowVariable,
	shouldRemoveOriginal bool,
	filter func(LogicStatement) bool,
	transform func(LogicStatement) LogicStatement,
) {
	var statements []LogicStatement
	if shouldRemoveOriginal {
		statements = flow.RemoveConditions(from)
	} else {
		statements = flow.Conditions(from)
	}
	for _, s := range statements {
		if filter != nil && !filter(s) {
			continue
		}
		translated := LogicStatement{
			Condition: Predicate{Variable: to, Condition: s.Condition.Condition},
			Effect:    s.Effect,
		}
		if transform != nil {
			translated = transform(translated)
		}
		l.AddLogicStatement(flow, translated)
	}
}

func (l *MapLogicSystem) ApproveStatementsInsideFlow(
	flow *MapFlow,
	predicate Predicate,
	shouldForkFlow bool,
	shouldRemoveSynthetics bool,
) *MapFlow {
	result := flow
	if shouldForkFlow {
		result = l.ForkFlow(flow)
	}
	facts := KnownFacts{}
	l.ApprovePredicateTo(facts, predicate, result)
	for _, info := range facts.Infos() {
		l.AddKnownInfo(result, info)
	}
	if shouldRemoveSynthetics && predicate.Variable.IsSynthetic() {
		result.RemoveConditions(predicate.Variable)
		if l.storage != nil {
			l.storage.RemoveSyntheticVariable(predicate.Variable)
		}
	}
	return result
}

func (l *MapLogicSystem) ProcessUpdatedReceiverVariable(flow *MapFlow, variable *RealVariable) {
	if l.config.Receivers == nil || variable == nil || !variable.IsThisReference {
		return
	}
	l.config.Receivers.ReceiverUpdated(variable, flow.KnownInfo(variable))
}

func (l *MapLogicSystem) UpdateAllReceivers(flow *MapFlow) {
	if l.config.Receivers == nil {
		return
	}
	for _, v := range flow.KnownVariables() {
		l.ProcessUpdatedReceiverVariable(flow, v)
	}
}
