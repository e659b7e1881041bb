package dfa

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrTypes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		oracle TypeOracle
		sets   []TypeSet
		want   []string
	}{
		{
			name:   "identical sets",
			oracle: anyOracle,
			sets:   []TypeSet{NewTypeSet(tString), NewTypeSet(tString)},
			want:   []string{"String"},
		},
		{
			name:   "divergent sets widen",
			oracle: anyOracle,
			sets:   []TypeSet{NewTypeSet(tString), NewTypeSet(tInt)},
			want:   []string{"Any"},
		},
		{
			name:   "divergent sets without oracle",
			oracle: nil,
			sets:   []TypeSet{NewTypeSet(tString), NewTypeSet(tInt)},
			want:   []string{},
		},
		{
			name:   "oracle without supertype",
			oracle: OracleFunc(func([]Type) Type { return nil }),
			sets:   []TypeSet{NewTypeSet(tString), NewTypeSet(tInt)},
			want:   []string{},
		},
		{
			name:   "common part kept",
			oracle: anyOracle,
			sets:   []TypeSet{NewTypeSet(tString, tNull), NewTypeSet(tInt, tNull)},
			want:   []string{"Any", "Nothing?"},
		},
		{
			name:   "empty side",
			oracle: anyOracle,
			sets:   []TypeSet{NewTypeSet(tString), {}},
			want:   []string{},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := OrTypes(tt.oracle, tt.sets)
			assert.Equal(t, tt.want, got.Names())
		})
	}
}

func TestOrKeepsExclusionsIntersected(t *testing.T) {
	t.Parallel()
	storage := NewVariableStorage(nil)
	x := storage.GetOrCreateRealVariable(local("x"))

	got := Or(anyOracle, []*TypeInfo{HasNot(x, tString), HasNot(x, tInt)})
	assert.True(t, got.IsEmpty(), "no supertype of excluded types is excluded")
	assert.False(t, got.ExactNotType.Contains(tAny))

	got = Or(anyOracle, []*TypeInfo{
		{Variable: x, ExactType: NewTypeSet(tString), ExactNotType: NewTypeSet(tInt)},
		{Variable: x, ExactType: NewTypeSet(tInt), ExactNotType: NewTypeSet(tString)},
	})
	assert.Equal(t, []string{"Any"}, got.ExactType.Names(), "included types widen")
	assert.True(t, got.ExactNotType.IsEmpty(), "excluded types only intersect")

	got = Or(anyOracle, []*TypeInfo{HasNot(x, tString, tInt), HasNot(x, tInt)})
	assert.Equal(t, []string{"Int"}, got.ExactNotType.Names())
}

func TestOrInvariants(t *testing.T) {
	t.Parallel()
	storage := NewVariableStorage(nil)
	x := storage.GetOrCreateRealVariable(local("x"))
	y := storage.GetOrCreateRealVariable(local("y"))

	for name, infos := range map[string][]*TypeInfo{
		"empty":              nil,
		"different variable": {Has(x, tString), Has(y, tString)},
	} {
		err := func() (err error) {
			defer RecoverInvariant(&err)
			Or(anyOracle, infos)
			return nil
		}()
		require.Error(t, err, name)
		assert.True(t, errors.Is(err, ErrInvariant), name)
	}

	single := Has(x, tString)
	assert.Same(t, single, Or(anyOracle, []*TypeInfo{single}))
}

func TestOrForVerifiedFacts(t *testing.T) {
	t.Parallel()
	storage := NewVariableStorage(nil)
	x := storage.GetOrCreateRealVariable(local("x"))
	y := storage.GetOrCreateRealVariable(local("y"))

	left := KnownFacts{x: Has(x, tString), y: Has(y, tInt)}
	right := KnownFacts{x: Has(x, tString)}

	got := OrForVerifiedFacts(anyOracle, left, right)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"String"}, got[x].ExactType.Names())

	assert.Empty(t, OrForVerifiedFacts(anyOracle, left, KnownFacts{}))
	assert.Empty(t, OrForVerifiedFacts(anyOracle, nil, right))
}
