package smartcast

import (
	"go/types"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
	"golang.org/x/tools/go/analysis/analysistest"

	"github.com/gnolang/smartcast/internal/dfa"
)

func TestAnalyzer(t *testing.T) {
	t.Parallel()
	analysistest.Run(t, analysistest.TestData(), Analyzer, "a")
}

func TestAnalyzerOptions(t *testing.T) {
	t.Parallel()
	opts := DefaultOptions()
	opts.NilChecks = false
	analysistest.Run(t, analysistest.TestData(), New(zaptest.NewLogger(t), opts), "quiet")
}

func TestAnalyzerComplexityLimit(t *testing.T) {
	t.Parallel()
	opts := DefaultOptions()
	opts.MaxComplexity = 2
	analysistest.Run(t, analysistest.TestData(), New(zaptest.NewLogger(t), opts), "bounded")
}

func TestCommonInterface(t *testing.T) {
	t.Parallel()
	anyType := types.NewInterfaceType(nil, nil).Complete()
	errType := types.Universe.Lookup("error").Type()
	intType := types.Typ[types.Int]

	tests := []struct {
		name string
		in   []dfa.Type
		want dfa.Type
	}{
		{"interface covers all", []dfa.Type{goType{intType}, goType{anyType}}, goType{anyType}},
		{"unrelated concrete types", []dfa.Type{goType{intType}, goType{types.Typ[types.String]}}, nil},
		{"int is not an error", []dfa.Type{goType{intType}, goType{errType}}, nil},
		{"markers never widen", []dfa.Type{nonNil, goType{anyType}}, nil},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, commonInterface(tt.in))
		})
	}
}

func TestAlwaysSucceeds(t *testing.T) {
	t.Parallel()
	storage := dfa.NewVariableStorage(nil)
	x := storage.GetOrCreateRealVariable(testSymbol("x"))
	errType := types.Universe.Lookup("error").Type()
	intType := types.Typ[types.Int]

	assert.False(t, alwaysSucceeds(nil, intType))
	assert.False(t, alwaysSucceeds(dfa.Has(x, goType{intType}), intType), "nil is not ruled out")
	assert.True(t, alwaysSucceeds(dfa.Has(x, goType{intType}, nonNil), intType))
	assert.False(t, alwaysSucceeds(dfa.Has(x, goType{intType}, nonNil), types.Typ[types.String]))
	assert.True(t, alwaysSucceeds(dfa.Has(x, goType{errType}, nonNil), errType))
	assert.False(t, alwaysSucceeds(dfa.Has(x, goType{errType}, nonNil), intType), "an error may hold any type")
}

type testSymbol string

func (s testSymbol) Name() string { return string(s) }
