// Package dfa implements a flow-sensitive type-narrowing engine.
//
// The engine tracks, for every control-flow path, what is provably known
// about the runtime type and nullability of program variables. Host front
// ends drive it while walking a function body:
//
//   - VariableStorage maps symbols and expressions to data flow variables.
//     Real variables are backed by symbols and reached through optional
//     receiver chains; synthetic variables stand for unnamed boolean
//     sub-expressions.
//   - TypeInfo records the types a variable definitely is and definitely is
//     not. LogicStatement records "if predicate holds, effect holds".
//   - MapFlow is a per-branch snapshot of confirmed facts and pending
//     statements. Forks are independent; joins keep only what every input
//     agrees on, widened through a TypeOracle.
//   - MapLogicSystem implements the flow algebra: approving predicates,
//     combining the operands of && and ||, translating statements when a
//     condition is bound to a name, and invalidating facts on reassignment.
//
// Out of scope:
//   - building control-flow graphs
//   - resolving symbols and types
//   - subtype checks beyond the oracle
//
// Violated invariants panic with *InvariantError. RecoverInvariant turns such
// a panic back into an error at an API boundary.
package dfa
