package ops

import (
	"github.com/weft-ml/weft/internal/graph"
	"github.com/weft-ml/weft/internal/parallel"
)

var kernelCfg = parallel.DefaultConfig()

// promote returns the result dtype of a binary op.
func promote(a, b graph.DataType) graph.DataType {
	if a == graph.Float64 || b == graph.Float64 {
		return graph.Float64
	}
	return graph.Float32
}

// builder appends nodes to a graph, capturing the first error so VJP and
// batching rules read as straight-line code.
type builder struct {
	g   *graph.Graph
	err error
}

func (b *builder) emit(kind graph.OpKind, attrs graph.Attrs, inputs ...graph.NodeID) graph.NodeID {
	if b.err != nil {
		return graph.InvalidNode
	}
	id, err := Append(b.g, kind, attrs, inputs...)
	if err != nil {
		b.err = err
		return graph.InvalidNode
	}
	return id
}

// scalar embeds a scalar constant.
func (b *builder) scalar(v float64, dtype graph.DataType) graph.NodeID {
	return b.emit(graph.OpConstant, graph.Attrs{Lit: graph.Scalar(v, dtype)})
}

// reduceTo sums a cotangent down to the target shape, undoing the
// broadcasting performed in the forward pass. Gradients accumulated at a
// broadcasted operand must be summed along the broadcast dimensions to
// match the operand's shape.
func (b *builder) reduceTo(id graph.NodeID, target graph.Shape) graph.NodeID {
	if b.err != nil {
		return graph.InvalidNode
	}
	cur := b.g.Node(id)
	shape := cur.Shape
	if shape.Equal(target) {
		return id
	}

	// Sum away the leading axes the broadcast introduced.
	if lead := len(shape) - len(target); lead > 0 {
		axes := make([]int, lead)
		for i := range axes {
			axes[i] = i
		}
		id = b.emit(graph.OpSum, graph.Attrs{Axes: axes}, id)
		if b.err != nil {
			return graph.InvalidNode
		}
		shape = b.g.Node(id).Shape
	}

	// Sum (keeping dims) over axes the operand contributed with size 1.
	var axes []int
	for i := range target {
		if target[i] == 1 && shape[i] != 1 {
			axes = append(axes, i)
		}
	}
	if len(axes) > 0 {
		id = b.emit(graph.OpSum, graph.Attrs{Axes: axes, KeepDims: true}, id)
	}
	return id
}

// broadcastStrides maps the dimensions of out onto in, right-aligned,
// with stride 0 for broadcast dimensions.
func broadcastStrides(in, out graph.Shape) []int {
	strides := in.ComputeStrides()
	res := make([]int, len(out))
	offset := len(out) - len(in)
	for i := range out {
		if j := i - offset; j >= 0 && in[j] != 1 {
			res[i] = strides[j]
		}
	}
	return res
}

// applyUnary maps f elementwise, in parallel for large buffers.
func applyUnary(out, in []float64, f func(float64) float64) {
	parallel.For(len(in), func(i int) {
		out[i] = f(in[i])
	}, kernelCfg)
}

// forEachBroadcast applies f over a and b broadcast to out's shape.
func forEachBroadcast(out, a, b *graph.Literal, f func(x, y float64) float64) {
	if a.Shape.Equal(b.Shape) {
		parallel.For(len(out.Data), func(i int) {
			out.Data[i] = f(a.Data[i], b.Data[i])
		}, kernelCfg)
		return
	}

	sa := broadcastStrides(a.Shape, out.Shape)
	sb := broadcastStrides(b.Shape, out.Shape)
	idx := make([]int, len(out.Shape))
	ai, bi := 0, 0
	for i := range out.Data {
		out.Data[i] = f(a.Data[ai], b.Data[bi])
		for d := len(out.Shape) - 1; d >= 0; d-- {
			idx[d]++
			ai += sa[d]
			bi += sb[d]
			if idx[d] < out.Shape[d] {
				break
			}
			idx[d] = 0
			ai -= sa[d] * out.Shape[d]
			bi -= sb[d] * out.Shape[d]
		}
	}
}

// Eval runs the registered kernel for an op kind on concrete inputs.
// The executor dispatches through this, as does trace-time constant
// folding and the fused-node interpreter.
func Eval(kind graph.OpKind, attrs graph.Attrs, inputs []*graph.Literal) (*graph.Literal, error) {
	r, ok := Lookup(kind)
	if !ok || r.Eval == nil {
		return nil, errNoKernel(kind)
	}
	return r.Eval(attrs, inputs)
}
