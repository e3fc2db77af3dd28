package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Shape
		want    Shape
		wantErr bool
	}{
		{name: "equal", a: Shape{2, 3}, b: Shape{2, 3}, want: Shape{2, 3}},
		{name: "scalar left", a: Shape{}, b: Shape{4, 5}, want: Shape{4, 5}},
		{name: "scalar right", a: Shape{4, 5}, b: Shape{}, want: Shape{4, 5}},
		{name: "size one expands", a: Shape{2, 1}, b: Shape{2, 3}, want: Shape{2, 3}},
		{name: "rank extends left", a: Shape{3}, b: Shape{2, 3}, want: Shape{2, 3}},
		{name: "both expand", a: Shape{2, 1}, b: Shape{1, 3}, want: Shape{2, 3}},
		{name: "mismatch", a: Shape{2, 3}, b: Shape{2, 4}, wantErr: true},
		{name: "trailing mismatch", a: Shape{2}, b: Shape{3, 4}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BroadcastShapes(tt.a, tt.b)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got, tt.want)
		})
	}
}

func TestShapeReduce(t *testing.T) {
	s := Shape{2, 3, 4}

	all, err := s.Reduce(nil, false)
	require.NoError(t, err)
	assert.True(t, all.IsScalar())

	kept, err := s.Reduce([]int{1}, true)
	require.NoError(t, err)
	assert.True(t, kept.Equal(Shape{2, 1, 4}))

	dropped, err := s.Reduce([]int{0, 2}, false)
	require.NoError(t, err)
	assert.True(t, dropped.Equal(Shape{3}))

	_, err = s.Reduce([]int{3}, false)
	require.Error(t, err)
}

func TestAddRejectsForwardReference(t *testing.T) {
	g := New()
	x, err := g.Add(OpParam, nil, Shape{2}, Float64, Attrs{})
	require.NoError(t, err)

	_, err = g.Add(OpNeg, []NodeID{x + 1}, Shape{2}, Float64, Attrs{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedGraph)

	_, err = g.Add(OpNeg, []NodeID{InvalidNode}, Shape{2}, Float64, Attrs{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedGraph)
}

func TestParamsRecordedInOrder(t *testing.T) {
	g := New()
	a, _ := g.Add(OpParam, nil, Shape{}, Float64, Attrs{})
	_, _ = g.Add(OpNeg, []NodeID{a}, Shape{}, Float64, Attrs{})
	b, _ := g.Add(OpParam, nil, Shape{3}, Float32, Attrs{})
	assert.Equal(t, []NodeID{a, b}, g.Params())
}

// buildDiamond builds neg(x) + sin(y) with exp/sin inserted in the given
// order, to exercise fingerprint stability across insertion orders.
func buildDiamond(t *testing.T, sinFirst bool) *Graph {
	t.Helper()
	g := New()
	x, err := g.Add(OpParam, nil, Shape{2}, Float64, Attrs{})
	require.NoError(t, err)
	y, err := g.Add(OpParam, nil, Shape{2}, Float64, Attrs{})
	require.NoError(t, err)

	var a, b NodeID
	if sinFirst {
		b, err = g.Add(OpSin, []NodeID{y}, Shape{2}, Float64, Attrs{})
		require.NoError(t, err)
		a, err = g.Add(OpNeg, []NodeID{x}, Shape{2}, Float64, Attrs{})
		require.NoError(t, err)
	} else {
		a, err = g.Add(OpNeg, []NodeID{x}, Shape{2}, Float64, Attrs{})
		require.NoError(t, err)
		b, err = g.Add(OpSin, []NodeID{y}, Shape{2}, Float64, Attrs{})
		require.NoError(t, err)
	}
	sum, err := g.Add(OpAdd, []NodeID{a, b}, Shape{2}, Float64, Attrs{})
	require.NoError(t, err)
	require.NoError(t, g.SetOutputs(sum))
	return g
}

func TestFingerprintIgnoresInsertionOrder(t *testing.T) {
	g1 := buildDiamond(t, false)
	g2 := buildDiamond(t, true)
	assert.Equal(t, g1.Fingerprint(), g2.Fingerprint())
}

func TestFingerprintSeesStructure(t *testing.T) {
	g1 := buildDiamond(t, false)

	g2 := New()
	x, _ := g2.Add(OpParam, nil, Shape{2}, Float64, Attrs{})
	y, _ := g2.Add(OpParam, nil, Shape{2}, Float64, Attrs{})
	a, _ := g2.Add(OpNeg, []NodeID{x}, Shape{2}, Float64, Attrs{})
	b, _ := g2.Add(OpCos, []NodeID{y}, Shape{2}, Float64, Attrs{}) // cos, not sin
	sum, _ := g2.Add(OpAdd, []NodeID{a, b}, Shape{2}, Float64, Attrs{})
	require.NoError(t, g2.SetOutputs(sum))

	assert.NotEqual(t, g1.Fingerprint(), g2.Fingerprint())
}

// x*x+1: the mul consumes x through both inputs, so placement must
// count the duplicate edge twice to make the mul ready.
func buildSquarePlusOne(t *testing.T) *Graph {
	t.Helper()
	g := New()
	x, err := g.Add(OpParam, nil, Shape{}, Float64, Attrs{})
	require.NoError(t, err)
	sq, err := g.Add(OpMul, []NodeID{x, x}, Shape{}, Float64, Attrs{})
	require.NoError(t, err)
	one, err := g.Add(OpConstant, nil, Shape{}, Float64, Attrs{Lit: Scalar(1, Float64)})
	require.NoError(t, err)
	out, err := g.Add(OpAdd, []NodeID{sq, one}, Shape{}, Float64, Attrs{})
	require.NoError(t, err)
	require.NoError(t, g.SetOutputs(out))
	return g
}

func TestFingerprintDuplicateInputs(t *testing.T) {
	g1 := buildSquarePlusOne(t)
	g2 := buildSquarePlusOne(t)
	assert.Equal(t, g1.Fingerprint(), g2.Fingerprint())

	g3 := New()
	x, _ := g3.Add(OpParam, nil, Shape{}, Float64, Attrs{})
	cube, _ := g3.Add(OpMul, []NodeID{x, x}, Shape{}, Float64, Attrs{})
	cube, _ = g3.Add(OpMul, []NodeID{cube, x}, Shape{}, Float64, Attrs{})
	require.NoError(t, g3.SetOutputs(cube))
	assert.NotEqual(t, g1.Fingerprint(), g3.Fingerprint())
}

func TestCloneIsDeep(t *testing.T) {
	g := buildDiamond(t, false)
	c := g.Clone()
	require.Equal(t, g.NumNodes(), c.NumNodes())

	_, err := c.Add(OpNeg, []NodeID{0}, Shape{2}, Float64, Attrs{})
	require.NoError(t, err)
	assert.Equal(t, g.NumNodes()+1, c.NumNodes())
	assert.Equal(t, g.Fingerprint(), buildDiamond(t, false).Fingerprint())
}

func TestConsumerCounts(t *testing.T) {
	g := New()
	x, _ := g.Add(OpParam, nil, Shape{}, Float64, Attrs{})
	m, _ := g.Add(OpMul, []NodeID{x, x}, Shape{}, Float64, Attrs{})
	_, _ = g.Add(OpNeg, []NodeID{m}, Shape{}, Float64, Attrs{})

	counts := g.ConsumerCounts()
	assert.Equal(t, 2, counts[x])
	assert.Equal(t, 1, counts[m])
}

func TestDotRendersAllNodes(t *testing.T) {
	g := buildDiamond(t, false)
	dot := g.Dot()
	assert.Contains(t, dot, "digraph")
	assert.Contains(t, dot, "neg")
	assert.Contains(t, dot, "sin")
	assert.Contains(t, dot, "add")
}
