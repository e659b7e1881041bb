package nolint

import (
	"go/parser"
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirective(t *testing.T) {
	t.Parallel()
	tests := []struct {
		text    string
		want    []string
		wantErr bool
	}{
		{"//nolint", nil, false},
		{"//nolint:a,b", []string{"a", "b"}, false},
		{"//nolint: a , b", []string{"a", "b"}, false},
		{"//nolint:", nil, true},
		{"//nolintx", nil, true},
		{"//smartcast:ignore", nil, false},
		{"//smartcast:ignore redundant-nil-check", []string{"redundant-nil-check"}, false},
		{"// regular comment", nil, true},
	}
	for _, tt := range tests {
		rules, err := parseDirective(tt.text)
		if tt.wantErr {
			assert.Error(t, err, tt.text)
			continue
		}
		require.NoError(t, err, tt.text)
		assert.Len(t, rules, len(tt.want), tt.text)
		for _, r := range tt.want {
			assert.Contains(t, rules, r, tt.text)
		}
	}
}

func TestIsNolint(t *testing.T) {
	t.Parallel()
	src := `package main

func main() {
	//nolint
	println("line 5")
	println("line 6")
	println("line 7") //nolint:rule1
	//smartcast:ignore rule2
	println("line 9")
}

//nolint:rule3
func other() {
	println("line 14")
}
`
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "test.go", src, parser.ParseComments)
	require.NoError(t, err)
	m := ParseComments(f, fset)

	tests := []struct {
		rule string
		line int
		want bool
	}{
		{"anyrule", 5, true},
		{"anyrule", 6, false},
		{"rule1", 7, true},
		{"rule2", 7, false},
		{"rule2", 9, true},
		{"rule3", 9, false},
		{"rule3", 14, true},
		{"rule1", 14, false},
	}
	for _, tt := range tests {
		pos := token.Position{Filename: "test.go", Line: tt.line, Column: 1}
		assert.Equal(t, tt.want, m.IsNolint(pos, tt.rule), "line %d rule %s", tt.line, tt.rule)
	}
	assert.False(t, m.IsNolint(token.Position{Filename: "other.go", Line: 5}, "anyrule"))
}

func TestFileScope(t *testing.T) {
	t.Parallel()
	src := `//nolint:rule1
package main

func main() {
	println("x")
}
`
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "file.go", src, parser.ParseComments)
	require.NoError(t, err)
	m := ParseComments(f, fset)

	assert.True(t, m.IsNolint(token.Position{Filename: "file.go", Line: 5}, "rule1"))
	assert.False(t, m.IsNolint(token.Position{Filename: "file.go", Line: 5}, "rule2"))
}
