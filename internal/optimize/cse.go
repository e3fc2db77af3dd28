package optimize

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/weft-ml/weft/internal/graph"
)

// CSE merges structurally identical nodes: same kind, same (already
// deduplicated) inputs, same attrs. Parameters are never merged, since
// each is a distinct call argument; identical constants are.
func CSE(g *graph.Graph) (*graph.Graph, error) {
	out := graph.New()
	remap := make([]graph.NodeID, g.NumNodes())
	seen := make(map[string]graph.NodeID, g.NumNodes())

	for _, id := range g.Topo() {
		n := g.Node(id)
		if n.Kind == graph.OpParam {
			nid, err := copyNode(out, n, remap)
			if err != nil {
				return nil, err
			}
			remap[id] = nid
			continue
		}

		key := nodeKey(n, remap)
		if prev, ok := seen[key]; ok {
			remap[id] = prev
			continue
		}
		nid, err := copyNode(out, n, remap)
		if err != nil {
			return nil, err
		}
		remap[id] = nid
		seen[key] = nid
	}
	return finish(out, g, remap)
}

func nodeKey(n *graph.Node, remap []graph.NodeID) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%d|%v|", n.Kind, n.DType, n.Shape)
	for _, in := range n.Inputs {
		fmt.Fprintf(&b, "%d,", remap[in])
	}
	b.WriteByte('|')
	fmt.Fprintf(&b, "%v|%t|%v|%x|", n.Attrs.Axes, n.Attrs.KeepDims, n.Attrs.TargetShape,
		math.Float64bits(n.Attrs.Exponent))
	if n.Attrs.Lit != nil {
		fmt.Fprintf(&b, "%x", hashData(n.Attrs.Lit.Data))
	}
	for _, st := range n.Attrs.Steps {
		fmt.Fprintf(&b, "s%d,%x:%v|", st.Kind, math.Float64bits(st.Exponent), st.Args)
	}
	return b.String()
}

func hashData(data []float64) uint64 {
	h := xxhash.New()
	var buf [8]byte
	for _, v := range data {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}
