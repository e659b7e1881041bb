package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClause(t *testing.T) {
	t.Parallel()
	tests := []struct {
		input string
		fact  *factTail
		pred  *predTail
	}{
		{input: "x is String", fact: &factTail{Types: []string{"String"}}},
		{input: "x !is Int, Long", fact: &factTail{Not: true, Types: []string{"Int", "Long"}}},
		{input: "x is Nothing?", fact: &factTail{Types: []string{"Nothing?"}}},
		{input: "b == true", pred: &predTail{Op: "==", Value: "true"}},
		{input: "b != false", pred: &predTail{Op: "!=", Value: "false"}},
		{input: "s != null", pred: &predTail{Op: "!=", Value: "null"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			c, err := parseClause(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.fact, c.Fact)
			assert.Equal(t, tt.pred, c.Pred)
		})
	}
}

func TestParseClauseErrors(t *testing.T) {
	t.Parallel()
	for _, input := range []string{"", "x", "x is", "b == maybe", "x is String,"} {
		_, err := parseClause(input)
		assert.Error(t, err, input)
	}

	_, err := parseFact("b == true")
	assert.ErrorContains(t, err, "not a fact")
	_, err = parsePredicate("x is String")
	assert.ErrorContains(t, err, "not a predicate")
}
