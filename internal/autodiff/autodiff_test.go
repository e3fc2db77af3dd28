package autodiff_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-ml/weft/internal/autodiff"
	"github.com/weft-ml/weft/internal/exec"
	"github.com/weft-ml/weft/internal/graph"
	"github.com/weft-ml/weft/internal/trace"
)

// evalScalar runs a single-argument traced function at x and returns
// its first output as a scalar.
func evalScalar(t *testing.T, f trace.Func, x float64) float64 {
	t.Helper()
	outs, err := exec.Apply(f, []*graph.Literal{graph.Scalar(x, graph.Float64)})
	require.NoError(t, err)
	return outs[0].Item()
}

// numericalGradient computes df/dx by central finite differences.
func numericalGradient(t *testing.T, f trace.Func, x, epsilon float64) float64 {
	t.Helper()
	return (evalScalar(t, f, x+epsilon) - evalScalar(t, f, x-epsilon)) / (2 * epsilon)
}

func TestGradSquarePlusOne(t *testing.T) {
	f := func(args []trace.Value) []trace.Value {
		x := args[0]
		return []trace.Value{x.Mul(x).AddScalar(1)}
	}
	// f(x) = x² + 1, df/dx = 2x = 4 at x = 2.
	g := evalScalar(t, autodiff.Grad(f), 2)
	assert.InDelta(t, 4.0, g, 1e-12)
}

func TestGradMultiConsumer(t *testing.T) {
	// f(x) = x·x + x: x feeds three ops, cotangents must accumulate.
	f := func(args []trace.Value) []trace.Value {
		x := args[0]
		return []trace.Value{x.Mul(x).Add(x)}
	}
	g := evalScalar(t, autodiff.Grad(f), 3)
	assert.InDelta(t, 7.0, g, 1e-12)
}

func TestGradAgainstFiniteDifferences(t *testing.T) {
	tests := []struct {
		name string
		f    trace.Func
		at   float64
	}{
		{
			name: "exp of square",
			f: func(args []trace.Value) []trace.Value {
				x := args[0]
				return []trace.Value{x.Mul(x).Exp()}
			},
			at: 0.5,
		},
		{
			name: "tanh chain",
			f: func(args []trace.Value) []trace.Value {
				x := args[0]
				return []trace.Value{x.Tanh().MulScalar(3).AddScalar(1)}
			},
			at: 0.7,
		},
		{
			name: "log over sqrt",
			f: func(args []trace.Value) []trace.Value {
				x := args[0]
				return []trace.Value{x.Sqrt().Log()}
			},
			at: 2.5,
		},
		{
			name: "sin times cos",
			f: func(args []trace.Value) []trace.Value {
				x := args[0]
				return []trace.Value{x.Sin().Mul(x.Cos())}
			},
			at: 1.1,
		},
		{
			name: "quotient",
			f: func(args []trace.Value) []trace.Value {
				x := args[0]
				return []trace.Value{x.Div(x.Mul(x).AddScalar(1))}
			},
			at: 0.9,
		},
		{
			name: "fixed power",
			f: func(args []trace.Value) []trace.Value {
				x := args[0]
				return []trace.Value{x.Pow(3.5)}
			},
			at: 1.4,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evalScalar(t, autodiff.Grad(tt.f), tt.at)
			want := numericalGradient(t, tt.f, tt.at, 1e-6)
			assert.InDelta(t, want, got, 1e-5)
		})
	}
}

func TestGradOfGrad(t *testing.T) {
	// f(x) = x³: f' = 3x², f'' = 6x. The backward pass is ordinary graph
	// nodes, so differentiating twice is just nesting the transform.
	f := func(args []trace.Value) []trace.Value {
		x := args[0]
		return []trace.Value{x.Pow(3)}
	}
	second := autodiff.Grad(autodiff.Grad(f))
	assert.InDelta(t, 12.0, evalScalar(t, second, 2), 1e-9)
}

func TestGradThroughSumAndBroadcast(t *testing.T) {
	// f(x) = Σ (x · 2): the cotangent broadcasts back to x's shape.
	f := func(args []trace.Value) []trace.Value {
		return []trace.Value{args[0].MulScalar(2).Sum()}
	}
	x, err := graph.NewLiteral([]float64{1, 2, 3}, graph.Shape{3}, graph.Float64)
	require.NoError(t, err)

	outs, err := exec.Apply(autodiff.Grad(f), []*graph.Literal{x})
	require.NoError(t, err)
	assert.True(t, outs[0].Shape.Equal(graph.Shape{3}))
	assert.Equal(t, []float64{2, 2, 2}, outs[0].Data)
}

func TestGradSelectsArgnums(t *testing.T) {
	f := func(args []trace.Value) []trace.Value {
		return []trace.Value{args[0].Mul(args[1]).Sum()}
	}
	a, _ := graph.NewLiteral([]float64{1, 2}, graph.Shape{2}, graph.Float64)
	b, _ := graph.NewLiteral([]float64{3, 4}, graph.Shape{2}, graph.Float64)

	outs, err := exec.Apply(autodiff.Grad(f, 1), []*graph.Literal{a, b})
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, []float64{1, 2}, outs[0].Data, "d/db (a·b) = a")
}

func TestGradUnusedArgumentIsZero(t *testing.T) {
	f := func(args []trace.Value) []trace.Value {
		return []trace.Value{args[0].Mul(args[0])}
	}
	// args[1] never participates; its gradient is a zero of its shape.
	wrapped := func(args []trace.Value) []trace.Value {
		return f(args[:1])
	}
	a := graph.Scalar(2, graph.Float64)
	b, _ := graph.NewLiteral([]float64{1, 1}, graph.Shape{2}, graph.Float64)

	outs, err := exec.Apply(autodiff.Grad(wrapped), []*graph.Literal{a, b})
	require.NoError(t, err)
	require.Len(t, outs, 2)
	assert.InDelta(t, 4.0, outs[0].Item(), 1e-12)
	assert.Equal(t, []float64{0, 0}, outs[1].Data)
}

func TestGradRejectsNonScalarOutput(t *testing.T) {
	f := func(args []trace.Value) []trace.Value {
		return []trace.Value{args[0].Neg()}
	}
	x, _ := graph.NewLiteral([]float64{1, 2}, graph.Shape{2}, graph.Float64)

	_, err := exec.Apply(autodiff.Grad(f), []*graph.Literal{x})
	require.Error(t, err)
	assert.ErrorIs(t, err, autodiff.ErrGradient)
}

func TestValueAndGrad(t *testing.T) {
	f := func(args []trace.Value) []trace.Value {
		x := args[0]
		return []trace.Value{x.Mul(x).AddScalar(1)}
	}
	outs, err := exec.Apply(autodiff.ValueAndGrad(f), []*graph.Literal{graph.Scalar(2, graph.Float64)})
	require.NoError(t, err)
	require.Len(t, outs, 2)
	assert.InDelta(t, 5.0, outs[0].Item(), 1e-12)
	assert.InDelta(t, 4.0, outs[1].Item(), 1e-12)
}

func TestValueAndGradPassesAuxThrough(t *testing.T) {
	f := func(args []trace.Value) []trace.Value {
		x := args[0]
		loss := x.Mul(x)
		return []trace.Value{loss, x.Exp()} // second output is auxiliary
	}
	outs, err := exec.Apply(autodiff.ValueAndGrad(f), []*graph.Literal{graph.Scalar(1, graph.Float64)})
	require.NoError(t, err)
	require.Len(t, outs, 3)
	assert.InDelta(t, 1.0, outs[0].Item(), 1e-12)
	assert.InDelta(t, 2.0, outs[1].Item(), 1e-12)
	assert.InDelta(t, math.E, outs[2].Item(), 1e-12)
}

func TestBackwardSeedShapeChecked(t *testing.T) {
	g := graph.New()
	x, _ := g.Add(graph.OpParam, nil, graph.Shape{2}, graph.Float64, graph.Attrs{})
	bad, _ := g.Add(graph.OpConstant, nil, graph.Shape{}, graph.Float64,
		graph.Attrs{Lit: graph.Scalar(1, graph.Float64)})

	_, err := autodiff.Backward(g, x, bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, autodiff.ErrGradient)
}
