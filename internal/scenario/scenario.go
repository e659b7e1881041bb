// Package scenario runs engine scripts written in YAML: declare variables
// and a type hierarchy, drive flows through a sequence of steps, then check
// what each flow knows.
package scenario

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownFlow     = errors.New("unknown flow")
	ErrUnknownVariable = errors.New("unknown variable")
	ErrUnknownOp       = errors.New("unknown op")
)

// Variable kinds.
const (
	KindLocal     = "local"
	KindProperty  = "property"
	KindMember    = "member"
	KindSynthetic = "synthetic"
)

// Step operations.
const (
	OpEmpty     = "empty"
	OpFork      = "fork"
	OpJoin      = "join"
	OpAdd       = "add"
	OpStatement = "statement"
	OpRemove    = "remove"
	OpTranslate = "translate"
	OpApprove   = "approve"
	OpAttach    = "attach"
	OpBoolean   = "boolean"
)

type Scenario struct {
	Name string `yaml:"name"`
	// Hierarchy maps each named type to its direct supertypes.
	Hierarchy        map[string][]string `yaml:"hierarchy,omitempty"`
	MaxApprovalDepth int                 `yaml:"max_approval_depth,omitempty"`
	Variables        []Variable          `yaml:"variables"`
	Steps            []Step              `yaml:"steps"`
	Expect           []Expectation       `yaml:"expect"`
}

type Variable struct {
	Name string `yaml:"name"`
	// Kind defaults to local.
	Kind     string `yaml:"kind,omitempty"`
	Mutable  bool   `yaml:"mutable,omitempty"`
	Open     bool   `yaml:"open,omitempty"`
	Receiver string `yaml:"receiver,omitempty"`
	Safe     bool   `yaml:"safe,omitempty"`
	This     bool   `yaml:"this,omitempty"`
}

// Step is one engine operation. Which fields apply depends on Op:
//
//	empty      flow
//	fork       from -> flow
//	join       flows -> flow
//	add        flow, fact
//	statement  flow, when, then (fact or predicate)
//	remove     flow, var
//	translate  flow, from -> to, remove, invert
//	approve    flow, when, into (forks when set), remove_synthetics
//	attach     var -> to
//	boolean    flow, operator (and|or), left, right -> result
type Step struct {
	Op               string   `yaml:"op"`
	Flow             string   `yaml:"flow,omitempty"`
	From             string   `yaml:"from,omitempty"`
	Flows            []string `yaml:"flows,omitempty"`
	Fact             string   `yaml:"fact,omitempty"`
	When             string   `yaml:"when,omitempty"`
	Then             string   `yaml:"then,omitempty"`
	Var              string   `yaml:"var,omitempty"`
	To               string   `yaml:"to,omitempty"`
	Into             string   `yaml:"into,omitempty"`
	Remove           bool     `yaml:"remove,omitempty"`
	Invert           bool     `yaml:"invert,omitempty"`
	RemoveSynthetics bool     `yaml:"remove_synthetics,omitempty"`
	Operator         string   `yaml:"operator,omitempty"`
	Left             string   `yaml:"left,omitempty"`
	Right            string   `yaml:"right,omitempty"`
	Result           string   `yaml:"result,omitempty"`
}

// Expectation checks the known info of a variable in a flow. Is and IsNot
// are compared as exact sets; Absent requires that nothing is known.
// Nilness, one of Nil, NonNil or MaybeNil, is checked on its own when Is
// and IsNot are both omitted.
type Expectation struct {
	Flow    string   `yaml:"flow"`
	Var     string   `yaml:"var"`
	Is      []string `yaml:"is,omitempty"`
	IsNot   []string `yaml:"is_not,omitempty"`
	Absent  bool     `yaml:"absent,omitempty"`
	Nilness string   `yaml:"nilness,omitempty"`
}

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if sc.Name == "" {
		sc.Name = path
	}
	return sc, nil
}

// Parse decodes a scenario, rejecting unknown keys.
func Parse(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("decoding scenario: %w", err)
	}
	return &sc, nil
}
