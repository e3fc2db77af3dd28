package optimize

import (
	"github.com/weft-ml/weft/internal/graph"
)

// copyNode re-adds n into dst with its inputs remapped.
func copyNode(dst *graph.Graph, n *graph.Node, remap []graph.NodeID) (graph.NodeID, error) {
	mapped := make([]graph.NodeID, len(n.Inputs))
	for i, in := range n.Inputs {
		mapped[i] = remap[in]
	}
	return dst.Add(n.Kind, mapped, n.Shape, n.DType, n.Attrs)
}

// finish carries src's outputs over to dst through the remap table.
func finish(dst, src *graph.Graph, remap []graph.NodeID) (*graph.Graph, error) {
	outs := make([]graph.NodeID, len(src.Outputs()))
	for i, id := range src.Outputs() {
		outs[i] = remap[id]
	}
	if err := dst.SetOutputs(outs...); err != nil {
		return nil, err
	}
	return dst, nil
}
