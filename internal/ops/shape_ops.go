package ops

import (
	"github.com/pkg/errors"

	"github.com/weft-ml/weft/internal/graph"
)

// registerShapeOps registers broadcast, reshape, constant and param.
func registerShapeOps() {
	Register(graph.OpBroadcast, &Rule{
		Infer:   inferBroadcast,
		Eval:    evalBroadcast,
		VJP:     vjpBroadcast,
		Batch:   batchBroadcast,
		Fusible: false,
	})
	Register(graph.OpReshape, &Rule{
		Infer:   inferReshape,
		Eval:    evalReshape,
		VJP:     vjpReshape,
		Batch:   batchReshape,
		Fusible: false,
	})
	Register(graph.OpConstant, &Rule{
		Infer: inferConstant,
		Eval: func(attrs graph.Attrs, _ []*graph.Literal) (*graph.Literal, error) {
			return attrs.Lit, nil
		},
		// Constants and params are leaves: the autodiff engine and the
		// vmap lift handle them directly, so no VJP/Batch rules here.
		Fusible: false,
	})
	Register(graph.OpParam, &Rule{
		// Param shapes are declared at creation, not inferred; the
		// tracer adds them to the graph directly.
		Fusible: false,
	})
}

func inferBroadcast(attrs graph.Attrs, inputs []*graph.Node) (graph.Shape, graph.DataType, error) {
	if len(inputs) != 1 {
		return nil, 0, errors.Errorf("broadcast expects 1 input, got %d", len(inputs))
	}
	target := attrs.TargetShape
	combined, err := graph.BroadcastShapes(inputs[0].Shape, target)
	if err != nil {
		return nil, 0, err
	}
	if !combined.Equal(target) {
		return nil, 0, errors.Errorf("cannot broadcast %v to %v", inputs[0].Shape, target)
	}
	return target, inputs[0].DType, nil
}

func evalBroadcast(attrs graph.Attrs, in []*graph.Literal) (*graph.Literal, error) {
	x := in[0]
	out := graph.Zeros(attrs.TargetShape, x.DType)
	strides := broadcastStrides(x.Shape, out.Shape)
	idx := make([]int, len(out.Shape))
	xi := 0
	for i := range out.Data {
		out.Data[i] = x.Data[xi]
		for d := len(out.Shape) - 1; d >= 0; d-- {
			idx[d]++
			xi += strides[d]
			if idx[d] < out.Shape[d] {
				break
			}
			idx[d] = 0
			xi -= strides[d] * out.Shape[d]
		}
	}
	return out, nil
}

// vjpBroadcast sums the cotangent over the expanded dimensions.
func vjpBroadcast(g *graph.Graph, n *graph.Node, ct graph.NodeID) ([]graph.NodeID, error) {
	b := &builder{g: g}
	x := g.Node(n.Inputs[0])
	return []graph.NodeID{b.reduceTo(ct, x.Shape)}, b.err
}

// batchBroadcast prepends the batch dimension to the target shape. The
// operand is padded with size-1 dims after the batch axis when needed,
// so the batch axis never right-aligns against a data dimension.
func batchBroadcast(dst *graph.Graph, n *graph.Node, args []BatchedArg) (graph.NodeID, int, error) {
	b := &builder{g: dst}
	in := args[0]
	shape := dst.Node(in.ID).Shape // [B, unbatched...]
	batch := shape[0]

	id := in.ID
	if unbatchedRank := len(shape) - 1; unbatchedRank < len(n.Attrs.TargetShape) {
		padded := make(graph.Shape, 0, len(n.Attrs.TargetShape)+1)
		padded = append(padded, batch)
		for j := 0; j < len(n.Attrs.TargetShape)-unbatchedRank; j++ {
			padded = append(padded, 1)
		}
		padded = append(padded, shape[1:]...)
		id = b.emit(graph.OpReshape, graph.Attrs{TargetShape: padded}, id)
	}

	target := append(graph.Shape{batch}, n.Attrs.TargetShape...)
	out := b.emit(graph.OpBroadcast, graph.Attrs{TargetShape: target}, id)
	return out, 0, b.err
}

func inferReshape(attrs graph.Attrs, inputs []*graph.Node) (graph.Shape, graph.DataType, error) {
	if len(inputs) != 1 {
		return nil, 0, errors.Errorf("reshape expects 1 input, got %d", len(inputs))
	}
	target := attrs.TargetShape
	if inputs[0].Shape.NumElements() != target.NumElements() {
		return nil, 0, errors.Errorf("cannot reshape %v (%d elements) to %v (%d elements)",
			inputs[0].Shape, inputs[0].Shape.NumElements(), target, target.NumElements())
	}
	return target, inputs[0].DType, nil
}

func evalReshape(attrs graph.Attrs, in []*graph.Literal) (*graph.Literal, error) {
	x := in[0]
	data := make([]float64, len(x.Data))
	copy(data, x.Data)
	return &graph.Literal{Shape: attrs.TargetShape.Clone(), DType: x.DType, Data: data}, nil
}

func vjpReshape(g *graph.Graph, n *graph.Node, ct graph.NodeID) ([]graph.NodeID, error) {
	b := &builder{g: g}
	x := g.Node(n.Inputs[0])
	return []graph.NodeID{b.emit(graph.OpReshape, graph.Attrs{TargetShape: x.Shape}, ct)}, b.err
}

func batchReshape(dst *graph.Graph, n *graph.Node, args []BatchedArg) (graph.NodeID, int, error) {
	b := &builder{g: dst}
	in := args[0]
	batch := dst.Node(in.ID).Shape[0]
	target := append(graph.Shape{batch}, n.Attrs.TargetShape...)
	out := b.emit(graph.OpReshape, graph.Attrs{TargetShape: target}, in.ID)
	return out, 0, b.err
}

func inferConstant(attrs graph.Attrs, inputs []*graph.Node) (graph.Shape, graph.DataType, error) {
	if len(inputs) != 0 {
		return nil, 0, errors.Errorf("constant expects no inputs, got %d", len(inputs))
	}
	if attrs.Lit == nil {
		return nil, 0, errors.New("constant node has no embedded literal")
	}
	return attrs.Lit.Shape, attrs.Lit.DType, nil
}
