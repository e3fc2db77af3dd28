package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-ml/weft/internal/graph"
)

func scalarSpec() ArgSpec {
	return ArgSpec{Shape: graph.Shape{}, DType: graph.Float64}
}

func TestTraceRecordsNodes(t *testing.T) {
	f := func(args []Value) []Value {
		x := args[0]
		return []Value{x.Mul(x).AddScalar(1)}
	}
	g, err := Trace(f, []ArgSpec{scalarSpec()})
	require.NoError(t, err)

	require.Len(t, g.Params(), 1)
	require.Len(t, g.Outputs(), 1)

	out := g.Node(g.Outputs()[0])
	assert.Equal(t, graph.OpAdd, out.Kind)
	assert.True(t, out.Shape.IsScalar())
}

func TestTraceUnrollsHostLoops(t *testing.T) {
	f := func(args []Value) []Value {
		x := args[0]
		for i := 0; i < 3; i++ {
			x = x.Mul(args[0])
		}
		return []Value{x}
	}
	g, err := Trace(f, []ArgSpec{scalarSpec()})
	require.NoError(t, err)

	muls := 0
	for _, id := range g.Topo() {
		if g.Node(id).Kind == graph.OpMul {
			muls++
		}
	}
	assert.Equal(t, 3, muls)
}

func TestConstantFoldingAtTraceTime(t *testing.T) {
	f := func(args []Value) []Value {
		ctx := args[0].Context()
		two := ctx.Scalar(2)
		three := ctx.Scalar(3)
		return []Value{args[0].Add(two.Mul(three))}
	}
	g, err := Trace(f, []ArgSpec{scalarSpec()})
	require.NoError(t, err)

	for _, id := range g.Topo() {
		assert.NotEqual(t, graph.OpMul, g.Node(id).Kind, "2*3 should have folded at trace time")
	}
}

func TestCrossContextValueRejected(t *testing.T) {
	outer := NewContext()
	stray := outer.Param(graph.Shape{}, graph.Float64)

	f := func(args []Value) []Value {
		return []Value{args[0].Add(stray)}
	}
	_, err := Trace(f, []ArgSpec{scalarSpec()})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCrossContext)
}

func TestConcreteOnTracedValue(t *testing.T) {
	ctx := NewContext()
	x := ctx.Param(graph.Shape{}, graph.Float64)

	_, err := x.Mul(x).Concrete()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedControlFlow)

	lit, err := ctx.Scalar(7).Concrete()
	require.NoError(t, err)
	assert.Equal(t, 7.0, lit.Item())
}

func TestShapeMismatchSurfacesAsError(t *testing.T) {
	f := func(args []Value) []Value {
		return []Value{args[0].Add(args[1])}
	}
	specs := []ArgSpec{
		{Shape: graph.Shape{2, 3}, DType: graph.Float64},
		{Shape: graph.Shape{2, 4}, DType: graph.Float64},
	}
	_, err := Trace(f, specs)
	require.Error(t, err)
	assert.ErrorIs(t, err, graph.ErrMalformedGraph)
}

func TestTraceRequiresOutputs(t *testing.T) {
	f := func([]Value) []Value { return nil }
	_, err := Trace(f, []ArgSpec{scalarSpec()})
	require.Error(t, err)
}

func TestInlineSplicesChildGraph(t *testing.T) {
	child := NewContext()
	cx := child.Param(graph.Shape{}, graph.Float64)
	sub := child.Finish(cx.Mul(cx))

	parent := NewContext()
	px := parent.Param(graph.Shape{}, graph.Float64)
	arg := px.AddScalar(1)

	outs := parent.Inline(sub, []Value{arg})
	require.Len(t, outs, 1)
	assert.Equal(t, graph.OpMul, parent.Graph().Node(outs[0].ID()).Kind)

	// The child graph's param must not have leaked into the parent.
	assert.Len(t, parent.Graph().Params(), 1)
}

func TestInlineRejectsShapeMismatch(t *testing.T) {
	child := NewContext()
	cx := child.Param(graph.Shape{3}, graph.Float64)
	sub := child.Finish(cx.Neg())

	parent := NewContext()
	px := parent.Param(graph.Shape{2}, graph.Float64)

	assert.Panics(t, func() {
		parent.Inline(sub, []Value{px})
	})
}

func TestBuilderMethodsInferShapes(t *testing.T) {
	ctx := NewContext()
	x := ctx.Param(graph.Shape{2, 3}, graph.Float64)

	assert.True(t, x.Sum().Shape().IsScalar())
	assert.True(t, x.Sum(0).Shape().Equal(graph.Shape{3}))
	assert.True(t, x.SumKeepDims(1).Shape().Equal(graph.Shape{2, 1}))
	assert.True(t, x.Reshape(3, 2).Shape().Equal(graph.Shape{3, 2}))
	assert.True(t, x.Exp().Shape().Equal(graph.Shape{2, 3}))
	assert.True(t, x.Pow(2).Shape().Equal(graph.Shape{2, 3}))

	y := ctx.Param(graph.Shape{3}, graph.Float64)
	assert.True(t, x.Add(y).Shape().Equal(graph.Shape{2, 3}))
}
