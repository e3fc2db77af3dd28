package graph

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint returns a structural hash of the graph: two graphs that
// encode the same program hash equally, independent of node-id numbering.
//
// The graph is canonicalized by topological position, not raw id: nodes
// are emitted in a deterministic topological order chosen by each node's
// structural key (kind, attrs, canonical positions of its inputs), so two
// traces that appended structurally identical nodes in different orders
// still agree.
func (g *Graph) Fingerprint() uint64 {
	n := len(g.nodes)
	pos := make([]int, n) // canonical position per node id
	for i := range pos {
		pos[i] = -1
	}
	pending := make([]int, n) // unplaced input count
	for i, node := range g.nodes {
		pending[i] = len(node.Inputs)
	}

	digest := xxhash.New()
	placed := 0
	for placed < n {
		// Pick the ready node with the smallest structural key.
		best := NodeID(-1)
		var bestKey uint64
		for id, node := range g.nodes {
			if pos[id] >= 0 || pending[id] > 0 {
				continue
			}
			key := nodeKey(node, pos)
			if best < 0 || key < bestKey {
				best, bestKey = NodeID(id), key
			}
		}

		if best < 0 {
			// Inputs precede consumers by construction, so a ready node
			// always exists; if that invariant is ever violated, place
			// the rest in insertion order rather than loop forever.
			for id, node := range g.nodes {
				if pos[id] < 0 {
					pos[id] = placed
					placed++
					writeUint64(digest, nodeKey(node, pos))
				}
			}
			break
		}

		pos[best] = placed
		placed++
		writeUint64(digest, bestKey)

		// A consumer may reference the placed node through more than one
		// input (mul(x, x)); decrement once per edge, not per consumer.
		for _, c := range g.Consumers(best) {
			for _, in := range g.nodes[c].Inputs {
				if in == best {
					pending[c]--
				}
			}
		}
	}

	for _, p := range g.params {
		writeUint64(digest, uint64(pos[p]))
	}
	for _, o := range g.outputs {
		writeUint64(digest, uint64(pos[o]))
	}
	return digest.Sum64()
}

// nodeKey hashes one node given the canonical positions of its inputs.
func nodeKey(n *Node, pos []int) uint64 {
	h := xxhash.New()
	writeUint64(h, uint64(n.Kind))
	writeUint64(h, uint64(n.DType))
	writeUint64(h, uint64(len(n.Shape)))
	for _, dim := range n.Shape {
		writeUint64(h, uint64(dim))
	}
	writeUint64(h, uint64(len(n.Inputs)))
	for _, in := range n.Inputs {
		writeUint64(h, uint64(pos[in]))
	}
	hashAttrs(h, &n.Attrs)
	return h.Sum64()
}

func hashAttrs(h *xxhash.Digest, a *Attrs) {
	writeUint64(h, uint64(len(a.Axes)))
	for _, ax := range a.Axes {
		writeUint64(h, uint64(ax))
	}
	if a.KeepDims {
		writeUint64(h, 1)
	}
	writeUint64(h, uint64(len(a.TargetShape)))
	for _, dim := range a.TargetShape {
		writeUint64(h, uint64(dim))
	}
	writeUint64(h, math.Float64bits(a.Exponent))
	if a.Lit != nil {
		writeUint64(h, uint64(a.Lit.DType))
		writeUint64(h, uint64(len(a.Lit.Shape)))
		for _, dim := range a.Lit.Shape {
			writeUint64(h, uint64(dim))
		}
		for _, v := range a.Lit.Data {
			writeUint64(h, math.Float64bits(v))
		}
	}
	writeUint64(h, uint64(len(a.Steps)))
	for _, step := range a.Steps {
		writeUint64(h, uint64(step.Kind))
		writeUint64(h, math.Float64bits(step.Exponent))
		for _, arg := range step.Args {
			if arg.FromStep {
				writeUint64(h, 1)
			} else {
				writeUint64(h, 0)
			}
			writeUint64(h, uint64(arg.Index))
		}
	}
}

func writeUint64(h *xxhash.Digest, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	h.Write(buf[:]) //nolint:errcheck // xxhash.Write never fails
}
