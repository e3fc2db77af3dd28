// Package autodiff implements reverse-mode automatic differentiation
// over computation graphs.
//
// The backward pass is itself expressed as graph nodes appended after
// the forward nodes, so the output of differentiation is an ordinary
// graph: it can be batched, compiled, optimized, or differentiated
// again.
package autodiff

import (
	"errors"

	pkgerrors "github.com/pkg/errors"

	"github.com/weft-ml/weft/internal/graph"
	"github.com/weft-ml/weft/internal/ops"
)

// ErrGradient reports a differentiation failure: a non-scalar loss, a
// mis-shaped seed, or a primitive with no backward rule.
var ErrGradient = errors.New("gradient computation failed")

// Backward appends the reverse-mode pass for output to g, seeded with
// the cotangent node seed (same shape as output). It returns a map from
// forward node id to the id of its accumulated cotangent node, for
// every node reachable walking back from output.
//
// The walk visits forward nodes in descending id order, which on an
// append-only graph is a reverse topological order. Backward rules
// append their nodes past the forward extent and those are never
// revisited. Cotangents from multiple consumers accumulate additively.
func Backward(g *graph.Graph, output, seed graph.NodeID) (map[graph.NodeID]graph.NodeID, error) {
	out := g.Node(output)
	if out == nil {
		return nil, pkgerrors.Wrapf(ErrGradient, "output node %d does not exist", output)
	}
	sd := g.Node(seed)
	if sd == nil {
		return nil, pkgerrors.Wrapf(ErrGradient, "seed node %d does not exist", seed)
	}
	if !sd.Shape.Equal(out.Shape) {
		return nil, pkgerrors.Wrapf(ErrGradient, "seed shape %v does not match output shape %v", sd.Shape, out.Shape)
	}

	ct := make(map[graph.NodeID]graph.NodeID)
	ct[output] = seed

	for id := output; id >= 0; id-- {
		ctID, ok := ct[id]
		if !ok {
			continue
		}
		n := g.Node(id)
		if n.Kind == graph.OpParam || n.Kind == graph.OpConstant {
			continue
		}

		rule, ok := ops.Lookup(n.Kind)
		if !ok || rule.VJP == nil {
			return nil, pkgerrors.Wrapf(ErrGradient, "op %s has no backward rule", n.Kind)
		}
		inCts, err := rule.VJP(g, n, ctID)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "backward rule for %s (node %d)", n.Kind, id)
		}
		if len(inCts) != len(n.Inputs) {
			return nil, pkgerrors.Wrapf(ErrGradient, "backward rule for %s returned %d cotangents for %d inputs",
				n.Kind, len(inCts), len(n.Inputs))
		}

		for i, in := range n.Inputs {
			inCt := inCts[i]
			if inCt == graph.InvalidNode {
				continue
			}
			if prev, seen := ct[in]; seen {
				sum, err := ops.Append(g, graph.OpAdd, graph.Attrs{}, prev, inCt)
				if err != nil {
					return nil, pkgerrors.Wrapf(err, "accumulating cotangent of node %d", in)
				}
				ct[in] = sum
			} else {
				ct[in] = inCt
			}
		}
	}

	return ct, nil
}
