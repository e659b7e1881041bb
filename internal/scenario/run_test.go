package scenario

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gnolang/smartcast/internal/analysis/lattice"
	"github.com/gnolang/smartcast/internal/dfa"
	"github.com/gnolang/smartcast/internal/typesys"
)

func TestScenarios(t *testing.T) {
	t.Parallel()
	files, err := filepath.Glob(filepath.Join("testdata", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		file := file
		t.Run(filepath.Base(file), func(t *testing.T) {
			t.Parallel()
			sc, err := Load(file)
			require.NoError(t, err)

			report, err := Run(context.Background(), zaptest.NewLogger(t), sc)
			require.NoError(t, err)
			require.Len(t, report.Results, len(sc.Expect))
			for _, res := range report.Results {
				assert.True(t, res.Passed, res.String())
			}
			assert.True(t, report.Passed())
			assert.Empty(t, report.Failed())
		})
	}
}

func run(t *testing.T, text string) (*Report, error) {
	t.Helper()
	sc, err := Parse(strings.NewReader(text))
	require.NoError(t, err)
	return Run(context.Background(), nil, sc)
}

func TestFailedExpectation(t *testing.T) {
	t.Parallel()
	report, err := run(t, `
hierarchy: {String: [Any], Int: [Any]}
variables: [{name: x}]
steps:
  - {op: empty, flow: f}
  - {op: add, flow: f, fact: "x is String"}
expect:
  - {flow: f, var: x, is: [Int]}
  - {flow: f, var: x, absent: true}
  - {flow: f, var: x, is: [String]}
`)
	require.NoError(t, err)
	assert.False(t, report.Passed())
	require.Len(t, report.Failed(), 2)
	assert.Equal(t, "x is String", report.Failed()[0].Got)
	assert.Equal(t, "FAIL: x in f: x is String", report.Failed()[0].String())
}

func TestSnapshots(t *testing.T) {
	t.Parallel()
	report, err := run(t, `
hierarchy: {String: [Any]}
variables: [{name: x}, {name: b, kind: synthetic}]
steps:
  - {op: empty, flow: f}
  - {op: add, flow: f, fact: "x !is String"}
  - {op: statement, flow: f, when: "b == true", then: "x != null"}
  - {op: fork, from: f, flow: g}
`)
	require.NoError(t, err)
	require.Len(t, report.Flows, 2)
	assert.Equal(t, "f", report.Flows[0].Name)
	assert.Equal(t, []string{"x !is String"}, report.Flows[0].Known)
	assert.Equal(t, []string{"b == true -> x != null"}, report.Flows[0].Statements)
	assert.Equal(t, "g", report.Flows[1].Name)
	assert.Contains(t, report.Raw, "g")
}

func TestNilness(t *testing.T) {
	t.Parallel()
	report, err := run(t, `
hierarchy: {String: [Any]}
variables: [{name: x}, {name: y}, {name: z}]
steps:
  - {op: empty, flow: f}
  - {op: add, flow: f, fact: "x is String, Any"}
  - {op: add, flow: f, fact: "y !is Any"}
  - {op: add, flow: f, fact: "z is String"}
expect:
  - {flow: f, var: x, nilness: NonNil}
  - {flow: f, var: y, nilness: Nil}
  - {flow: f, var: z, nilness: MaybeNil}
  - {flow: f, var: x, nilness: NonNil, is: [String]}
  - {flow: f, var: z, nilness: NonNil}
`)
	require.NoError(t, err)
	failed := report.Failed()
	require.Len(t, failed, 2)
	assert.Equal(t, "x is Any, String (NonNil)", failed[0].Got)
	assert.Equal(t, "z is String (MaybeNil)", failed[1].Got)

	require.Len(t, report.Flows, 1)
	assert.Equal(t, lattice.Summary{"x": lattice.NonNil, "y": lattice.Nil}, report.Flows[0].Nilness)
}

func TestReceiverUpdates(t *testing.T) {
	t.Parallel()
	report, err := run(t, `
hierarchy: {Node: [Any]}
variables: [{name: self, this: true}]
steps:
  - {op: empty, flow: f}
  - {op: add, flow: f, fact: "self is Node"}
`)
	require.NoError(t, err)
	assert.Contains(t, report.Receivers, "self is Node")
}

func TestRunErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		input  string
		target error
		msg    string
	}{
		{
			name:   "unknown op",
			input:  `steps: [{op: explode}]`,
			target: ErrUnknownOp,
		},
		{
			name:   "unknown flow",
			input:  `steps: [{op: fork, from: nowhere, flow: f}]`,
			target: ErrUnknownFlow,
		},
		{
			name: "unknown variable",
			input: `
steps:
  - {op: empty, flow: f}
  - {op: remove, flow: f, var: ghost}
`,
			target: ErrUnknownVariable,
		},
		{
			name: "unknown type",
			input: `
variables: [{name: x}]
steps:
  - {op: empty, flow: f}
  - {op: add, flow: f, fact: "x is Martian"}
`,
			target: typesys.ErrUnknownType,
		},
		{
			name:   "bad hierarchy",
			input:  `hierarchy: {A: [B], B: [A]}`,
			target: typesys.ErrCycle,
		},
		{
			name: "self alias",
			input: `
variables: [{name: x}]
steps: [{op: attach, var: x, to: x}]
`,
			target: dfa.ErrInvariant,
		},
		{
			name:  "duplicate variable",
			input: `variables: [{name: x}, {name: x}]`,
			msg:   "declared twice",
		},
		{
			name:  "member without receiver",
			input: `variables: [{name: p, kind: member}]`,
			msg:   "needs a receiver",
		},
		{
			name: "fact where a predicate is expected",
			input: `
variables: [{name: x}]
steps:
  - {op: empty, flow: f}
  - {op: approve, flow: f, when: "x is Any"}
`,
			msg: "not a predicate",
		},
		{
			name: "attach a member",
			input: `
variables: [{name: s, this: true}, {name: p, kind: member, receiver: s}]
steps: [{op: attach, var: p, to: s}]
`,
			msg: "only locals",
		},
		{
			name: "bad operator",
			input: `
variables: [{name: a}, {name: b}, {name: c}]
steps:
  - {op: empty, flow: f}
  - {op: boolean, flow: f, operator: xor, left: a, right: b, result: c}
`,
			msg: "unknown operator",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := run(t, tt.input)
			require.Error(t, err)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
			if tt.msg != "" {
				assert.ErrorContains(t, err, tt.msg)
			}
		})
	}
}

func TestRunCanceled(t *testing.T) {
	t.Parallel()
	sc, err := Parse(strings.NewReader(`steps: [{op: empty, flow: f}]`))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Run(ctx, nil, sc)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	_, err := Parse(strings.NewReader(`steps: [{op: empty, flw: f}]`))
	assert.Error(t, err)
}

func TestLoadDefaultsName(t *testing.T) {
	t.Parallel()
	sc, err := Load(filepath.Join("testdata", "widening.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "widening at a join", sc.Name)

	_, err = Load(filepath.Join("testdata", "missing.yaml"))
	assert.Error(t, err)
}
