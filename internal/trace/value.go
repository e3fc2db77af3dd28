package trace

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/weft-ml/weft/internal/graph"
)

// Value is a handle to one node of a graph under construction.
// Arithmetic on values records nodes rather than computing numbers.
// Values are cheap, immutable, and tied to the context that made them.
type Value struct {
	ctx *Context
	id  graph.NodeID
}

// ID returns the underlying node id.
func (v Value) ID() graph.NodeID { return v.id }

// Context returns the owning trace context.
func (v Value) Context() *Context { return v.ctx }

// Shape returns the inferred shape of the value.
func (v Value) Shape() graph.Shape { return v.ctx.g.Node(v.id).Shape }

// DType returns the element type of the value.
func (v Value) DType() graph.DataType { return v.ctx.g.Node(v.id).DType }

func (v Value) String() string {
	n := v.ctx.g.Node(v.id)
	return fmt.Sprintf("Value(%s, shape=%v, dtype=%s)", n.Kind, n.Shape, n.DType)
}

// Add records elementwise addition with broadcasting.
func (v Value) Add(other Value) Value {
	return v.ctx.apply(graph.OpAdd, graph.Attrs{}, v, other)
}

// Sub records elementwise subtraction with broadcasting.
func (v Value) Sub(other Value) Value {
	return v.ctx.apply(graph.OpSub, graph.Attrs{}, v, other)
}

// Mul records elementwise multiplication with broadcasting.
func (v Value) Mul(other Value) Value {
	return v.ctx.apply(graph.OpMul, graph.Attrs{}, v, other)
}

// Div records elementwise division with broadcasting.
func (v Value) Div(other Value) Value {
	return v.ctx.apply(graph.OpDiv, graph.Attrs{}, v, other)
}

// AddScalar records addition of a host scalar.
func (v Value) AddScalar(s float64) Value { return v.Add(v.likeScalar(s)) }

// SubScalar records subtraction of a host scalar.
func (v Value) SubScalar(s float64) Value { return v.Sub(v.likeScalar(s)) }

// MulScalar records multiplication by a host scalar.
func (v Value) MulScalar(s float64) Value { return v.Mul(v.likeScalar(s)) }

// DivScalar records division by a host scalar.
func (v Value) DivScalar(s float64) Value { return v.Div(v.likeScalar(s)) }

func (v Value) likeScalar(s float64) Value {
	return v.ctx.Constant(graph.Scalar(s, v.DType()))
}

// Neg records elementwise negation.
func (v Value) Neg() Value { return v.ctx.apply(graph.OpNeg, graph.Attrs{}, v) }

// Exp records the elementwise exponential.
func (v Value) Exp() Value { return v.ctx.apply(graph.OpExp, graph.Attrs{}, v) }

// Log records the elementwise natural logarithm.
func (v Value) Log() Value { return v.ctx.apply(graph.OpLog, graph.Attrs{}, v) }

// Sin records the elementwise sine.
func (v Value) Sin() Value { return v.ctx.apply(graph.OpSin, graph.Attrs{}, v) }

// Cos records the elementwise cosine.
func (v Value) Cos() Value { return v.ctx.apply(graph.OpCos, graph.Attrs{}, v) }

// Tanh records the elementwise hyperbolic tangent.
func (v Value) Tanh() Value { return v.ctx.apply(graph.OpTanh, graph.Attrs{}, v) }

// Sqrt records the elementwise square root.
func (v Value) Sqrt() Value { return v.ctx.apply(graph.OpSqrt, graph.Attrs{}, v) }

// Pow records raising to a fixed host exponent.
func (v Value) Pow(k float64) Value {
	return v.ctx.apply(graph.OpPow, graph.Attrs{Exponent: k}, v)
}

// Sum records a reduction over the given axes. No axes means reduce
// everything to a scalar.
func (v Value) Sum(axes ...int) Value {
	return v.ctx.apply(graph.OpSum, graph.Attrs{Axes: axes}, v)
}

// SumKeepDims records a reduction that keeps reduced axes as size 1.
func (v Value) SumKeepDims(axes ...int) Value {
	return v.ctx.apply(graph.OpSum, graph.Attrs{Axes: axes, KeepDims: true}, v)
}

// Reshape records a view with the same element count and a new shape.
func (v Value) Reshape(shape ...int) Value {
	return v.ctx.apply(graph.OpReshape, graph.Attrs{TargetShape: graph.Shape(shape)}, v)
}

// Broadcast records expansion to the target shape.
func (v Value) Broadcast(shape graph.Shape) Value {
	return v.ctx.apply(graph.OpBroadcast, graph.Attrs{TargetShape: shape}, v)
}

// Concrete returns the literal behind the value if it is statically
// known. Traced values that depend on parameters have no concrete
// payload: host code branching on them is unsupported control flow,
// the way a `bool(tracer)` coercion would be.
func (v Value) Concrete() (*graph.Literal, error) {
	n := v.ctx.g.Node(v.id)
	if n.Kind != graph.OpConstant {
		return nil, errors.Wrapf(ErrUnsupportedControlFlow,
			"value of %s depends on traced inputs and has no concrete payload", n.Kind)
	}
	return n.Attrs.Lit, nil
}
