package optimize

import (
	"github.com/weft-ml/weft/internal/graph"
	"github.com/weft-ml/weft/internal/ops"
)

// Fold evaluates every node whose operands are all constants and embeds
// the result as a constant. Tracing already folds eagerly, but graph
// surgery (backward passes, batching rewrites, inlining) can leave new
// all-constant subtrees behind.
func Fold(g *graph.Graph) (*graph.Graph, error) {
	out := graph.New()
	remap := make([]graph.NodeID, g.NumNodes())
	for _, id := range g.Topo() {
		n := g.Node(id)

		if n.Kind != graph.OpParam && n.Kind != graph.OpConstant && len(n.Inputs) > 0 {
			if lit, ok := tryFold(out, n, remap); ok {
				nid, err := out.Add(graph.OpConstant, nil, lit.Shape, lit.DType, graph.Attrs{Lit: lit})
				if err != nil {
					return nil, err
				}
				remap[id] = nid
				continue
			}
		}

		nid, err := copyNode(out, n, remap)
		if err != nil {
			return nil, err
		}
		remap[id] = nid
	}
	return finish(out, g, remap)
}

func tryFold(dst *graph.Graph, n *graph.Node, remap []graph.NodeID) (*graph.Literal, bool) {
	lits := make([]*graph.Literal, len(n.Inputs))
	for i, in := range n.Inputs {
		mapped := dst.Node(remap[in])
		if mapped.Kind != graph.OpConstant {
			return nil, false
		}
		lits[i] = mapped.Attrs.Lit
	}
	lit, err := ops.Eval(n.Kind, n.Attrs, lits)
	if err != nil {
		// No kernel for this kind; leave the node symbolic.
		return nil, false
	}
	return lit, true
}
