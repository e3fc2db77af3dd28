package ops

import (
	"github.com/pkg/errors"

	"github.com/weft-ml/weft/internal/graph"
)

// registerReduce registers the sum reduction. Reductions are not
// elementwise-fusible: they change shape and their batching rule must
// shift axes past the inserted batch axis.
func registerReduce() {
	Register(graph.OpSum, &Rule{
		Infer:   inferSum,
		Eval:    evalSum,
		VJP:     vjpSum,
		Batch:   batchSum,
		Fusible: false,
	})
}

func inferSum(attrs graph.Attrs, inputs []*graph.Node) (graph.Shape, graph.DataType, error) {
	if len(inputs) != 1 {
		return nil, 0, errors.Errorf("sum expects 1 input, got %d", len(inputs))
	}
	shape, err := inputs[0].Shape.Reduce(attrs.Axes, attrs.KeepDims)
	if err != nil {
		return nil, 0, err
	}
	return shape, inputs[0].DType, nil
}

func evalSum(attrs graph.Attrs, in []*graph.Literal) (*graph.Literal, error) {
	x := in[0]
	outShape, err := x.Shape.Reduce(attrs.Axes, attrs.KeepDims)
	if err != nil {
		return nil, err
	}
	out := graph.Zeros(outShape, x.DType)

	reduced := make([]bool, len(x.Shape))
	if len(attrs.Axes) == 0 {
		for i := range reduced {
			reduced[i] = true
		}
	} else {
		for _, ax := range attrs.Axes {
			reduced[ax] = true
		}
	}

	// Map each input dimension to its stride in the output; reduced
	// dimensions contribute stride 0.
	outStrides := out.Shape.ComputeStrides()
	ms := make([]int, len(x.Shape))
	oi := 0
	for d := range x.Shape {
		if reduced[d] {
			if attrs.KeepDims {
				oi++
			}
			continue
		}
		ms[d] = outStrides[oi]
		oi++
	}

	idx := make([]int, len(x.Shape))
	o := 0
	for i := range x.Data {
		out.Data[o] += x.Data[i]
		for d := len(x.Shape) - 1; d >= 0; d-- {
			idx[d]++
			o += ms[d]
			if idx[d] < x.Shape[d] {
				break
			}
			idx[d] = 0
			o -= ms[d] * x.Shape[d]
		}
	}
	return out, nil
}

// vjpSum broadcasts the cotangent back over the reduced axes: the
// derivative of a sum distributes the incoming gradient unchanged to
// every summed element.
func vjpSum(g *graph.Graph, n *graph.Node, ct graph.NodeID) ([]graph.NodeID, error) {
	b := &builder{g: g}
	x := g.Node(n.Inputs[0])

	id := ct
	if !n.Attrs.KeepDims {
		keep, err := x.Shape.Reduce(n.Attrs.Axes, true)
		if err != nil {
			return nil, err
		}
		id = b.emit(graph.OpReshape, graph.Attrs{TargetShape: keep}, id)
	}
	if b.err == nil && !g.Node(id).Shape.Equal(x.Shape) {
		id = b.emit(graph.OpBroadcast, graph.Attrs{TargetShape: x.Shape}, id)
	}
	return []graph.NodeID{id}, b.err
}

// batchSum shifts the reduction axes by one so the batch axis at
// position 0 is never reduced.
func batchSum(dst *graph.Graph, n *graph.Node, args []BatchedArg) (graph.NodeID, int, error) {
	b := &builder{g: dst}
	in := args[0]
	unbatchedRank := len(dst.Node(in.ID).Shape) - 1

	axes := n.Attrs.Axes
	if len(axes) == 0 {
		axes = make([]int, unbatchedRank)
		for i := range axes {
			axes[i] = i
		}
	}
	// Summing a scalar is the identity; the batched form must not fall
	// through to an all-axes reduction over the batch axis.
	if len(axes) == 0 {
		return in.ID, 0, nil
	}

	shifted := make([]int, len(axes))
	for i, ax := range axes {
		shifted[i] = ax + 1
	}

	out := b.emit(graph.OpSum, graph.Attrs{Axes: shifted, KeepDims: n.Attrs.KeepDims}, in.ID)
	return out, 0, b.err
}
