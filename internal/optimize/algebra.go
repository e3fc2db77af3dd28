package optimize

import (
	"github.com/weft-ml/weft/internal/graph"
)

// Simplify applies local algebraic identities: x*0, x*1, x+0, x-0, x/1,
// x^0 and x^1. Identity rewrites (dropping the node for its operand)
// apply only when shape and dtype are unchanged, so broadcasting
// behavior is never altered; annihilators (x*0, x^0) become constants
// of the node's own shape.
func Simplify(g *graph.Graph) (*graph.Graph, error) {
	out := graph.New()
	remap := make([]graph.NodeID, g.NumNodes())
	for _, id := range g.Topo() {
		n := g.Node(id)
		if rid, ok := simplifyNode(out, g, n, remap); ok {
			remap[id] = rid
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

func simplifyNode(dst, src *graph.Graph, n *graph.Node, remap []graph.NodeID) (graph.NodeID, bool) {
	constant := func(lit *graph.Literal) (graph.NodeID, bool) {
		id, err := dst.Add(graph.OpConstant, nil, lit.Shape, lit.DType, graph.Attrs{Lit: lit})
		if err != nil {
			return graph.InvalidNode, false
		}
		return id, true
	}
	// identity keeps operand i in place of the node, when that preserves
	// the node's shape and dtype.
	identity := func(i int) (graph.NodeID, bool) {
		in := src.Node(n.Inputs[i])
		if !in.Shape.Equal(n.Shape) || in.DType != n.DType {
			return graph.InvalidNode, false
		}
		return remap[n.Inputs[i]], true
	}
	constOperand := func(i int) *graph.Literal {
		in := dst.Node(remap[n.Inputs[i]])
		if in.Kind != graph.OpConstant {
			return nil
		}
		return in.Attrs.Lit
	}

	switch n.Kind {
	case graph.OpMul:
		for i := 0; i < 2; i++ {
			if c := constOperand(i); c != nil {
				if c.AllZero() {
					return constant(graph.Zeros(n.Shape, n.DType))
				}
				if c.AllOne() {
					return identity(1 - i)
				}
			}
		}
	case graph.OpAdd:
		for i := 0; i < 2; i++ {
			if c := constOperand(i); c != nil && c.AllZero() {
				return identity(1 - i)
			}
		}
	case graph.OpSub:
		if c := constOperand(1); c != nil && c.AllZero() {
			return identity(0)
		}
	case graph.OpDiv:
		if c := constOperand(1); c != nil && c.AllOne() {
			return identity(0)
		}
	case graph.OpPow:
		if n.Attrs.Exponent == 1 {
			return identity(0)
		}
		if n.Attrs.Exponent == 0 {
			return constant(graph.Ones(n.Shape, n.DType))
		}
	}
	return graph.InvalidNode, false
}
