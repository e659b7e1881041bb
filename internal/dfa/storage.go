package dfa

import "go.uber.org/zap"

// ReceiverSymbol is a symbol whose declaration is itself reached through an
// explicit receiver. GetOrCreateRealVariable resolves that receiver.
type ReceiverSymbol interface {
	Symbol
	ExplicitReceiver() Element
	IsSafeCall() bool
	IsThisReference() bool
}

type realKey struct {
	symbol   Symbol
	receiver DataFlowVariable
}

// VariableStorage maps symbols and elements to data flow variables for a
// single analysis unit. It is owned by the unit and is not safe for
// concurrent use.
type VariableStorage struct {
	logger  *zap.Logger
	counter int

	realVariables      map[realKey]*RealVariable
	syntheticVariables map[Element]*SyntheticVariable
	localAliases       map[Symbol]*RealVariable
}

// NewVariableStorage creates an empty storage. A nil logger disables logging.
func NewVariableStorage(logger *zap.Logger) *VariableStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &VariableStorage{logger: logger}
	s.Reset()
	return s
}

// GetOrCreateRealVariable returns the variable for symbol, creating it on
// first use. Aliased symbols resolve to their alias target.
func (s *VariableStorage) GetOrCreateRealVariable(symbol Symbol) *RealVariable {
	if target, ok := s.localAliases[symbol]; ok {
		return target
	}
	var (
		receiver Element
		isSafe   bool
		isThis   bool
	)
	if rs, ok := symbol.(ReceiverSymbol); ok {
		receiver = rs.ExplicitReceiver()
		isSafe = rs.IsSafeCall()
		isThis = rs.IsThisReference()
	}
	return s.realVariable(symbol, receiver, isSafe, isThis)
}

func (s *VariableStorage) realVariable(symbol Symbol, receiver Element, isSafe, isThis bool) *RealVariable {
	var receiverVariable DataFlowVariable
	if receiver != nil {
		receiverVariable = s.GetOrCreateVariable(receiver)
	} else if target, ok := s.localAliases[symbol]; ok {
		return target
	}
	key := realKey{symbol: symbol, receiver: receiverVariable}
	if v, ok := s.realVariables[key]; ok {
		return v
	}
	v := newRealVariable(symbol, isThis, receiverVariable, isSafe, s.next())
	s.realVariables[key] = v
	return v
}

// CreateSyntheticVariable always creates a fresh synthetic variable for
// element, replacing any previous one.
func (s *VariableStorage) CreateSyntheticVariable(element Element) *SyntheticVariable {
	v := &SyntheticVariable{Element: element, index: s.next()}
	s.syntheticVariables[element] = v
	return v
}

// GetOrCreateVariable returns a real variable when element references a
// symbol and a synthetic variable keyed by element identity otherwise.
func (s *VariableStorage) GetOrCreateVariable(element Element) DataFlowVariable {
	switch e := element.(type) {
	case QualifiedAccess:
		if symbol := e.ReferencedSymbol(); symbol != nil {
			return s.realVariable(symbol, e.ExplicitReceiver(), e.IsSafeCall(), e.IsThisReference())
		}
	case SymbolReference:
		if symbol := e.ReferencedSymbol(); symbol != nil {
			return s.GetOrCreateRealVariable(symbol)
		}
	}
	if v, ok := s.syntheticVariables[element]; ok {
		return v
	}
	return s.CreateSyntheticVariable(element)
}

// AttachSymbolToVariable makes symbol an alias of target and evicts the
// independent variable symbol had so far. Later lookups of symbol resolve
// to target, keeping the facts accumulated for it.
func (s *VariableStorage) AttachSymbolToVariable(symbol Symbol, target *RealVariable) {
	if target == nil {
		failInvariant(s.logger, "attach", "nil target for %s", symbol.Name())
	}
	if target.Symbol == symbol && target.Receiver == nil {
		failInvariant(s.logger, "attach", "%s cannot alias itself", symbol.Name())
	}
	s.localAliases[symbol] = target
	delete(s.realVariables, realKey{symbol: symbol})
	s.logger.Debug("attached alias",
		zap.String("symbol", symbol.Name()),
		zap.Stringer("target", target))
}

// Get returns the variable currently bound to symbol, or nil.
func (s *VariableStorage) Get(symbol Symbol) *RealVariable {
	if symbol == nil {
		return nil
	}
	if target, ok := s.localAliases[symbol]; ok {
		return target
	}
	return s.realVariables[realKey{symbol: symbol}]
}

// GetVariable looks element up without creating anything.
func (s *VariableStorage) GetVariable(element Element) DataFlowVariable {
	switch e := element.(type) {
	case QualifiedAccess:
		if symbol := e.ReferencedSymbol(); symbol != nil {
			var receiver DataFlowVariable
			if r := e.ExplicitReceiver(); r != nil {
				receiver = s.GetVariable(r)
				if receiver == nil {
					return nil
				}
			} else {
				return nilIfAbsent(s.Get(symbol))
			}
			return nilIfAbsent(s.realVariables[realKey{symbol: symbol, receiver: receiver}])
		}
	case SymbolReference:
		if symbol := e.ReferencedSymbol(); symbol != nil {
			return nilIfAbsent(s.Get(symbol))
		}
	}
	if v, ok := s.syntheticVariables[element]; ok {
		return v
	}
	return nil
}

func nilIfAbsent(v *RealVariable) DataFlowVariable {
	if v == nil {
		return nil
	}
	return v
}

// RemoveRealVariable evicts the variable or alias bound to symbol. Removing
// a variable that is still the target of an alias, or an alias whose target
// is already gone, violates the storage invariant.
func (s *VariableStorage) RemoveRealVariable(symbol Symbol) {
	if target, ok := s.localAliases[symbol]; ok {
		if !s.containsReal(target) {
			failInvariant(s.logger, "remove", "alias %s points to removed variable %s",
				symbol.Name(), target.Describe())
		}
		delete(s.localAliases, symbol)
		return
	}
	v, ok := s.realVariables[realKey{symbol: symbol}]
	if !ok {
		return
	}
	s.RemoveVariable(v)
}

// RemoveVariable evicts variable. Synthetic variables are dropped by element;
// real variables follow RemoveRealVariable's invariant.
func (s *VariableStorage) RemoveVariable(variable DataFlowVariable) {
	switch v := variable.(type) {
	case *SyntheticVariable:
		s.RemoveSyntheticVariable(v)
	case *RealVariable:
		for alias, target := range s.localAliases {
			if target == v {
				failInvariant(s.logger, "remove", "%s is still aliased by %s",
					v.Describe(), alias.Name())
			}
		}
		delete(s.realVariables, realKey{symbol: v.Symbol, receiver: v.Receiver})
	}
}

// RemoveSyntheticVariable drops a synthetic variable once its condition has
// been resolved. Real variables are ignored.
func (s *VariableStorage) RemoveSyntheticVariable(variable DataFlowVariable) {
	v, ok := variable.(*SyntheticVariable)
	if !ok {
		return
	}
	if current, ok := s.syntheticVariables[v.Element]; ok && current == v {
		delete(s.syntheticVariables, v.Element)
	}
}

func (s *VariableStorage) containsReal(v *RealVariable) bool {
	current, ok := s.realVariables[realKey{symbol: v.Symbol, receiver: v.Receiver}]
	return ok && current == v
}

// Len returns the number of live real and synthetic variables.
func (s *VariableStorage) Len() int {
	return len(s.realVariables) + len(s.syntheticVariables)
}

// Reset clears all variables and aliases and restarts the debug counter.
func (s *VariableStorage) Reset() {
	s.counter = 0
	s.realVariables = make(map[realKey]*RealVariable)
	s.syntheticVariables = make(map[Element]*SyntheticVariable)
	s.localAliases = make(map[Symbol]*RealVariable)
}

func (s *VariableStorage) next() int {
	n := s.counter
	s.counter++
	return n
}
