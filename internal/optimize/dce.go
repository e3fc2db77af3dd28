package optimize

import (
	"github.com/weft-ml/weft/internal/graph"
)

// DCE drops nodes that no output transitively depends on. Parameters
// survive regardless: they define the graph's call signature, and
// removing one would silently change arity.
func DCE(g *graph.Graph) (*graph.Graph, error) {
	live := make([]bool, g.NumNodes())
	stack := append([]graph.NodeID(nil), g.Outputs()...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if live[id] {
			continue
		}
		live[id] = true
		stack = append(stack, g.Node(id).Inputs...)
	}

	out := graph.New()
	remap := make([]graph.NodeID, g.NumNodes())
	for i := range remap {
		remap[i] = graph.InvalidNode
	}
	for _, id := range g.Topo() {
		n := g.Node(id)
		if !live[id] && n.Kind != graph.OpParam {
			continue
		}
		nid, err := copyNode(out, n, remap)
		if err != nil {
			return nil, err
		}
		remap[id] = nid
	}
	return finish(out, g, remap)
}
