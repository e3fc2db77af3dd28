package ops

import (
	"math"

	"github.com/pkg/errors"

	"github.com/weft-ml/weft/internal/graph"
)

// registerElementwise registers the elementwise primitives: binary
// arithmetic with NumPy-style broadcasting and the unary math ops.
// All of them are tagged elementwise-fusible.
func registerElementwise() {
	Register(graph.OpAdd, binaryRule(
		func(x, y float64) float64 { return x + y },
		vjpAdd,
	))
	Register(graph.OpSub, binaryRule(
		func(x, y float64) float64 { return x - y },
		vjpSub,
	))
	Register(graph.OpMul, binaryRule(
		func(x, y float64) float64 { return x * y },
		vjpMul,
	))
	Register(graph.OpDiv, binaryRule(
		func(x, y float64) float64 { return x / y },
		vjpDiv,
	))

	Register(graph.OpNeg, unaryRule(func(x float64) float64 { return -x }, vjpNeg))
	Register(graph.OpExp, unaryRule(math.Exp, vjpExp))
	Register(graph.OpLog, unaryRule(math.Log, vjpLog))
	Register(graph.OpSin, unaryRule(math.Sin, vjpSin))
	Register(graph.OpCos, unaryRule(math.Cos, vjpCos))
	Register(graph.OpTanh, unaryRule(math.Tanh, vjpTanh))
	Register(graph.OpSqrt, unaryRule(math.Sqrt, vjpSqrt))

	// pow is unary with a constant exponent carried in the attrs.
	powRule := unaryRule(nil, vjpPow)
	powRule.Eval = func(attrs graph.Attrs, in []*graph.Literal) (*graph.Literal, error) {
		x := in[0]
		out := graph.Zeros(x.Shape, x.DType)
		for i, v := range x.Data {
			out.Data[i] = math.Pow(v, attrs.Exponent)
		}
		return out, nil
	}
	Register(graph.OpPow, powRule)
}

// binaryRule builds the Rule for a broadcasting binary elementwise op.
func binaryRule(f func(x, y float64) float64, vjp VJPRule) *Rule {
	return &Rule{
		Infer: func(_ graph.Attrs, inputs []*graph.Node) (graph.Shape, graph.DataType, error) {
			if len(inputs) != 2 {
				return nil, 0, errors.Errorf("binary op expects 2 inputs, got %d", len(inputs))
			}
			shape, err := graph.BroadcastShapes(inputs[0].Shape, inputs[1].Shape)
			if err != nil {
				return nil, 0, err
			}
			return shape, promote(inputs[0].DType, inputs[1].DType), nil
		},
		Eval: func(_ graph.Attrs, in []*graph.Literal) (*graph.Literal, error) {
			shape, err := graph.BroadcastShapes(in[0].Shape, in[1].Shape)
			if err != nil {
				return nil, err
			}
			out := graph.Zeros(shape, promote(in[0].DType, in[1].DType))
			forEachBroadcast(out, in[0], in[1], f)
			return out, nil
		},
		VJP:     vjp,
		Batch:   batchElementwise,
		Fusible: true,
	}
}

// unaryRule builds the Rule for a shape-preserving unary elementwise op.
func unaryRule(f func(x float64) float64, vjp VJPRule) *Rule {
	r := &Rule{
		Infer: func(_ graph.Attrs, inputs []*graph.Node) (graph.Shape, graph.DataType, error) {
			if len(inputs) != 1 {
				return nil, 0, errors.Errorf("unary op expects 1 input, got %d", len(inputs))
			}
			return inputs[0].Shape, inputs[0].DType, nil
		},
		VJP:     vjp,
		Batch:   batchElementwise,
		Fusible: true,
	}
	if f != nil {
		r.Eval = func(_ graph.Attrs, in []*graph.Literal) (*graph.Literal, error) {
			x := in[0]
			out := graph.Zeros(x.Shape, x.DType)
			applyUnary(out.Data, x.Data, f)
			return out, nil
		}
	}
	return r
}

// VJP rules. Each appends the backward computation as graph nodes, so
// gradients are themselves traceable and compose with vmap and jit.
// Broadcast operands receive their cotangent summed back down (reduceTo).

// d(a+b)/da = 1, d(a+b)/db = 1.
func vjpAdd(g *graph.Graph, n *graph.Node, ct graph.NodeID) ([]graph.NodeID, error) {
	b := &builder{g: g}
	a, c := g.Node(n.Inputs[0]), g.Node(n.Inputs[1])
	ga := b.reduceTo(ct, a.Shape)
	gb := b.reduceTo(ct, c.Shape)
	return []graph.NodeID{ga, gb}, b.err
}

// d(a-b)/da = 1, d(a-b)/db = -1.
func vjpSub(g *graph.Graph, n *graph.Node, ct graph.NodeID) ([]graph.NodeID, error) {
	b := &builder{g: g}
	a, c := g.Node(n.Inputs[0]), g.Node(n.Inputs[1])
	ga := b.reduceTo(ct, a.Shape)
	gb := b.reduceTo(b.emit(graph.OpNeg, graph.Attrs{}, ct), c.Shape)
	return []graph.NodeID{ga, gb}, b.err
}

// d(a*b)/da = b, d(a*b)/db = a.
func vjpMul(g *graph.Graph, n *graph.Node, ct graph.NodeID) ([]graph.NodeID, error) {
	b := &builder{g: g}
	a, c := g.Node(n.Inputs[0]), g.Node(n.Inputs[1])
	ga := b.reduceTo(b.emit(graph.OpMul, graph.Attrs{}, ct, c.ID), a.Shape)
	gb := b.reduceTo(b.emit(graph.OpMul, graph.Attrs{}, ct, a.ID), c.Shape)
	return []graph.NodeID{ga, gb}, b.err
}

// d(a/b)/da = 1/b, d(a/b)/db = -a/b².
func vjpDiv(g *graph.Graph, n *graph.Node, ct graph.NodeID) ([]graph.NodeID, error) {
	b := &builder{g: g}
	a, c := g.Node(n.Inputs[0]), g.Node(n.Inputs[1])
	ga := b.reduceTo(b.emit(graph.OpDiv, graph.Attrs{}, ct, c.ID), a.Shape)
	bb := b.emit(graph.OpMul, graph.Attrs{}, c.ID, c.ID)
	quot := b.emit(graph.OpDiv, graph.Attrs{}, a.ID, bb)
	gb := b.reduceTo(b.emit(graph.OpNeg, graph.Attrs{}, b.emit(graph.OpMul, graph.Attrs{}, ct, quot)), c.Shape)
	return []graph.NodeID{ga, gb}, b.err
}

func vjpNeg(g *graph.Graph, n *graph.Node, ct graph.NodeID) ([]graph.NodeID, error) {
	b := &builder{g: g}
	return []graph.NodeID{b.emit(graph.OpNeg, graph.Attrs{}, ct)}, b.err
}

// d(eˣ)/dx = eˣ: reuse the forward output.
func vjpExp(g *graph.Graph, n *graph.Node, ct graph.NodeID) ([]graph.NodeID, error) {
	b := &builder{g: g}
	return []graph.NodeID{b.emit(graph.OpMul, graph.Attrs{}, ct, n.ID)}, b.err
}

// d(ln x)/dx = 1/x.
func vjpLog(g *graph.Graph, n *graph.Node, ct graph.NodeID) ([]graph.NodeID, error) {
	b := &builder{g: g}
	return []graph.NodeID{b.emit(graph.OpDiv, graph.Attrs{}, ct, n.Inputs[0])}, b.err
}

// d(sin x)/dx = cos x.
func vjpSin(g *graph.Graph, n *graph.Node, ct graph.NodeID) ([]graph.NodeID, error) {
	b := &builder{g: g}
	cosx := b.emit(graph.OpCos, graph.Attrs{}, n.Inputs[0])
	return []graph.NodeID{b.emit(graph.OpMul, graph.Attrs{}, ct, cosx)}, b.err
}

// d(cos x)/dx = -sin x.
func vjpCos(g *graph.Graph, n *graph.Node, ct graph.NodeID) ([]graph.NodeID, error) {
	b := &builder{g: g}
	sinx := b.emit(graph.OpSin, graph.Attrs{}, n.Inputs[0])
	return []graph.NodeID{b.emit(graph.OpNeg, graph.Attrs{}, b.emit(graph.OpMul, graph.Attrs{}, ct, sinx))}, b.err
}

// d(tanh x)/dx = 1 - tanh²x: reuse the forward output.
func vjpTanh(g *graph.Graph, n *graph.Node, ct graph.NodeID) ([]graph.NodeID, error) {
	b := &builder{g: g}
	one := b.scalar(1, n.DType)
	sq := b.emit(graph.OpMul, graph.Attrs{}, n.ID, n.ID)
	return []graph.NodeID{b.emit(graph.OpMul, graph.Attrs{}, ct, b.emit(graph.OpSub, graph.Attrs{}, one, sq))}, b.err
}

// d(√x)/dx = 1/(2√x): reuse the forward output.
func vjpSqrt(g *graph.Graph, n *graph.Node, ct graph.NodeID) ([]graph.NodeID, error) {
	b := &builder{g: g}
	two := b.scalar(2, n.DType)
	return []graph.NodeID{b.emit(graph.OpDiv, graph.Attrs{}, ct, b.emit(graph.OpMul, graph.Attrs{}, two, n.ID))}, b.err
}

// d(xᵏ)/dx = k·xᵏ⁻¹.
func vjpPow(g *graph.Graph, n *graph.Node, ct graph.NodeID) ([]graph.NodeID, error) {
	b := &builder{g: g}
	k := b.scalar(n.Attrs.Exponent, n.DType)
	xk1 := b.emit(graph.OpPow, graph.Attrs{Exponent: n.Attrs.Exponent - 1}, n.Inputs[0])
	return []graph.NodeID{b.emit(graph.OpMul, graph.Attrs{}, ct, b.emit(graph.OpMul, graph.Attrs{}, k, xk1))}, b.err
}

// batchElementwise lifts an elementwise op over a leading batch axis.
// Batched operands already carry the batch axis at position 0; unbatched
// operands broadcast across it. When a batched operand's unbatched rank
// is lower than the op's result rank, it is reshaped to keep the batch
// axis out of the right-aligned broadcast.
func batchElementwise(dst *graph.Graph, n *graph.Node, args []BatchedArg) (graph.NodeID, int, error) {
	b := &builder{g: dst}
	rank := len(n.Shape) // unbatched result rank

	ids := make([]graph.NodeID, len(args))
	for i, arg := range args {
		ids[i] = arg.ID
		if arg.Axis == Unbatched {
			continue
		}
		shape := dst.Node(arg.ID).Shape // [B, unbatched...]
		if unbatchedRank := len(shape) - 1; unbatchedRank < rank {
			target := make(graph.Shape, 0, rank+1)
			target = append(target, shape[0])
			for j := 0; j < rank-unbatchedRank; j++ {
				target = append(target, 1)
			}
			target = append(target, shape[1:]...)
			ids[i] = b.emit(graph.OpReshape, graph.Attrs{TargetShape: target}, arg.ID)
		}
	}

	out := b.emit(n.Kind, n.Attrs, ids...)
	return out, 0, b.err
}
