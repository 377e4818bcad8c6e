package model

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/boostscore/core"
)

// stumpTree: f < 1.0 ? A(2.0) : B(-2.0)，缺失走 A
func stumpTree() *Tree {
	return MustTree(0,
		Split(0, "f", 1.0, 1, 2, 1),
		Leaf(1, 2.0),
		Leaf(2, -2.0),
	)
}

func TestTree_Evaluate_Stump(t *testing.T) {
	tests := []struct {
		name     string
		features map[string]float64
		want     float64
	}{
		{name: "less than threshold goes yes", features: map[string]float64{"f": 0.5}, want: 2.0},
		{name: "equal to threshold goes no", features: map[string]float64{"f": 1.0}, want: -2.0},
		{name: "greater than threshold goes no", features: map[string]float64{"f": 3.0}, want: -2.0},
		{name: "absent feature goes missing", features: map[string]float64{}, want: 2.0},
		{name: "nil map goes missing", features: nil, want: 2.0},
		{name: "unrelated feature goes missing", features: map[string]float64{"g": 0.0}, want: 2.0},
		{name: "NaN is present and compares false", features: map[string]float64{"f": math.NaN()}, want: -2.0},
		{name: "negative infinity goes yes", features: map[string]float64{"f": math.Inf(-1)}, want: 2.0},
	}
	tree := stumpTree()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tree.Evaluate(tt.features)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTree_Evaluate_MissingRoutesIndependently(t *testing.T) {
	// missing 指向与 yes/no 都不同的叶子
	tree := MustTree(0,
		Split(0, "f", 1.0, 1, 2, 3),
		Leaf(1, 1),
		Leaf(2, 2),
		Leaf(3, 3),
	)
	got, err := tree.Evaluate(map[string]float64{})
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)

	got, err = tree.Evaluate(map[string]float64{"f": 0})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got, "present zero is not missing")
}

func TestTree_Evaluate_SingleLeaf(t *testing.T) {
	tree := MustTree(7, Leaf(7, 0.25))
	for _, fv := range []map[string]float64{nil, {}, {"a": 1, "b": -1}} {
		got, err := tree.Evaluate(fv)
		require.NoError(t, err)
		assert.Equal(t, 0.25, got)
	}
	assert.Equal(t, 0, tree.Depth())
}

func TestTree_Evaluate_Deep(t *testing.T) {
	//        0: a<0
	//      /        \
	//   1: b<5     2: leaf 10
	//   /    \
	// 3:-1  4: 1
	tree := MustTree(0,
		Split(0, "a", 0, 1, 2, 2),
		Split(1, "b", 5, 3, 4, 4),
		Leaf(2, 10),
		Leaf(3, -1),
		Leaf(4, 1),
	)
	require.NoError(t, tree.Validate())
	assert.Equal(t, 2, tree.Depth())
	assert.Equal(t, 5, tree.Len())

	cases := map[float64]map[string]float64{
		-1: {"a": -1, "b": 4},
		1:  {"a": -1, "b": 5},
		10: {"a": 0},
	}
	for want, fv := range cases {
		got, err := tree.Evaluate(fv)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	// a 缺失 → missing=2
	got, err := tree.Evaluate(map[string]float64{"b": 0})
	require.NoError(t, err)
	assert.Equal(t, 10.0, got)
}

func TestTree_Evaluate_UnresolvedChild(t *testing.T) {
	tree := MustTree(0,
		Split(0, "f", 1.0, 1, 99, 1),
		Leaf(1, 2.0),
	)
	// yes 分支可以解析
	_, err := tree.Evaluate(map[string]float64{"f": 0})
	require.NoError(t, err)

	score, err := tree.Evaluate(map[string]float64{"f": 5})
	require.Error(t, err)
	assert.Zero(t, score)
	assert.True(t, core.IsModelIntegrity(err))
	assert.True(t, errors.Is(err, ErrModelIntegrity))
	assert.Contains(t, err.Error(), "99")

	assert.True(t, core.IsModelIntegrity(tree.Validate()))
}

func TestTree_Evaluate_Cycle(t *testing.T) {
	tree := MustTree(0,
		Split(0, "f", 1.0, 1, 1, 1),
		Split(1, "g", 1.0, 0, 0, 0),
	)
	_, err := tree.Evaluate(map[string]float64{})
	require.Error(t, err)
	assert.True(t, core.IsModelIntegrity(err))

	err = tree.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestNewTree_Errors(t *testing.T) {
	_, err := NewTree(0, Leaf(0, 1), Leaf(0, 2))
	assert.True(t, core.IsModelIntegrity(err), "duplicate id")

	_, err = NewTree(5, Leaf(0, 1))
	assert.True(t, core.IsModelIntegrity(err), "missing root")

	_, err = NewTree(0, Node{ID: 0})
	assert.True(t, core.IsModelIntegrity(err), "zero kind")
}

func TestTree_NodeLookup(t *testing.T) {
	tree := stumpTree()
	n, ok := tree.Node(2)
	require.True(t, ok)
	assert.True(t, n.IsLeaf())
	assert.Equal(t, -2.0, n.Value)

	_, ok = tree.Node(42)
	assert.False(t, ok)
	assert.Equal(t, 0, tree.RootID())
	assert.Contains(t, tree.String(), "[f<1]")
}

func TestTree_String_IncludesMissingSubtree(t *testing.T) {
	tree := MustTree(0,
		Split(0, "f", 1, 1, 2, 3),
		Leaf(1, 2), Leaf(2, -2), Leaf(3, 0.25))

	out := tree.String()
	assert.Contains(t, out, "1:leaf=2")
	assert.Contains(t, out, "2:leaf=-2")
	assert.Contains(t, out, "3:leaf=0.25")
	assert.Equal(t, 4, strings.Count(out, "\n"))

	// missing 与 yes 相同时只打印一次
	shared := MustTree(0, Split(0, "f", 1, 1, 2, 1), Leaf(1, 2), Leaf(2, -2))
	assert.Equal(t, 3, strings.Count(shared.String(), "\n"))
}
