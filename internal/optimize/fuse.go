package optimize

import (
	"github.com/weft-ml/weft/internal/graph"
	"github.com/weft-ml/weft/internal/ops"
)

// Fuse collapses maximal chains of elementwise ops into single fused
// macro-nodes, so the executor makes one pass over the data instead of
// one per op.
//
// A node may be absorbed into the chain above it only when it is
// elementwise, has exactly one consumer, and is not a graph output:
// output nodes must stay addressable, and a second consumer would force
// recomputation. Chains shorter than two nodes are left alone.
func Fuse(g *graph.Graph) (*graph.Graph, error) {
	counts := g.ConsumerCounts()
	claimed := make([]bool, g.NumNodes())
	chains := make(map[graph.NodeID][]graph.NodeID)

	// Visit consumers before producers so every potential absorber has
	// decided before its inputs are considered as chain tails.
	for id := graph.NodeID(g.NumNodes() - 1); id >= 0; id-- {
		if claimed[id] || !ops.Fusible(g.Node(id).Kind) {
			continue
		}
		chain := []graph.NodeID{id}
		cur := g.Node(id)
		for {
			next := graph.InvalidNode
			for _, in := range cur.Inputs {
				m := g.Node(in)
				if ops.Fusible(m.Kind) && counts[in] == 1 && !g.IsOutput(in) && !claimed[in] {
					next = in
					break
				}
			}
			if next == graph.InvalidNode {
				break
			}
			claimed[next] = true
			chain = append(chain, next)
			cur = g.Node(next)
		}
		if len(chain) < 2 {
			continue
		}
		// Reverse into execution order, earliest step first.
		for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
			chain[i], chain[j] = chain[j], chain[i]
		}
		chains[id] = chain
	}

	out := graph.New()
	remap := make([]graph.NodeID, g.NumNodes())
	for i := range remap {
		remap[i] = graph.InvalidNode
	}
	for _, id := range g.Topo() {
		n := g.Node(id)
		if claimed[id] {
			continue
		}
		if chain, ok := chains[id]; ok {
			fid, err := emitFused(out, g, chain, remap)
			if err != nil {
				return nil, err
			}
			remap[id] = fid
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

// emitFused turns a chain (earliest node first, tail last) into one
// fused node. Chain-internal edges become step references; everything
// else becomes a macro-node input, deduplicated.
func emitFused(dst, src *graph.Graph, chain []graph.NodeID, remap []graph.NodeID) (graph.NodeID, error) {
	chainPos := make(map[graph.NodeID]int, len(chain))
	var ext []graph.NodeID
	extIndex := make(map[graph.NodeID]int)

	steps := make([]graph.FusedStep, len(chain))
	for s, cid := range chain {
		cn := src.Node(cid)
		args := make([]graph.StepArg, len(cn.Inputs))
		for i, in := range cn.Inputs {
			if p, ok := chainPos[in]; ok {
				args[i] = graph.StepArg{FromStep: true, Index: p}
				continue
			}
			rid := remap[in]
			pos, ok := extIndex[rid]
			if !ok {
				pos = len(ext)
				ext = append(ext, rid)
				extIndex[rid] = pos
			}
			args[i] = graph.StepArg{Index: pos}
		}
		steps[s] = graph.FusedStep{Kind: cn.Kind, Exponent: cn.Attrs.Exponent, Args: args}
		chainPos[cid] = s
	}
	return ops.Append(dst, graph.OpFused, graph.Attrs{Steps: steps}, ext...)
}
