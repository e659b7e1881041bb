package lattice

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gnolang/smartcast/internal/dfa"
)

func TestMeet(t *testing.T) {
	t.Parallel()
	tests := []struct {
		a, b Nilness
		meet Nilness
	}{
		{Bottom, Nil, Bottom},
		{Nil, Nil, Nil},
		{Nil, NonNil, Bottom},
		{NonNil, MaybeNil, NonNil},
		{MaybeNil, Nil, Nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.meet, Meet(tt.a, tt.b), "Meet(%s, %s)", tt.a, tt.b)
		assert.Equal(t, tt.meet, Meet(tt.b, tt.a), "Meet(%s, %s)", tt.b, tt.a)
	}
}

type typ string

func (t typ) String() string { return string(t) }

type sym string

func (s sym) Name() string { return string(s) }

func TestOf(t *testing.T) {
	t.Parallel()
	const nonNil = typ("any")
	storage := dfa.NewVariableStorage(nil)
	x := storage.GetOrCreateRealVariable(sym("x"))

	tests := []struct {
		name string
		info *dfa.TypeInfo
		want Nilness
	}{
		{"unknown", nil, MaybeNil},
		{"unrelated", dfa.Has(x, typ("int")), MaybeNil},
		{"non-nil", dfa.Has(x, nonNil), NonNil},
		{"nil", dfa.HasNot(x, nonNil), Nil},
		{"contradiction", dfa.Has(x, nonNil).Plus(dfa.HasNot(x, nonNil)), Bottom},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Of(tt.info, nonNil))
		})
	}
	assert.Equal(t, MaybeNil, Of(dfa.Has(x, nonNil), nil))
}

func TestSummarize(t *testing.T) {
	t.Parallel()
	const nonNil = typ("any")
	storage := dfa.NewVariableStorage(nil)
	logic := dfa.NewMapLogicSystem(storage, dfa.DefaultConfig())
	x := storage.GetOrCreateRealVariable(sym("x"))
	y := storage.GetOrCreateRealVariable(sym("y"))
	z := storage.GetOrCreateRealVariable(sym("z"))

	flow := logic.CreateEmptyFlow()
	logic.AddKnownInfo(flow, dfa.Has(x, nonNil))
	logic.AddKnownInfo(flow, dfa.HasNot(y, nonNil))
	logic.AddKnownInfo(flow, dfa.Has(z, typ("int")))

	got := Summarize(flow, nonNil)
	assert.Equal(t, Summary{"x": NonNil, "y": Nil}, got)
	assert.NotContains(t, got, "z")
}
