package graph

import (
	"github.com/pkg/errors"
)

// Graph is an append-only data-flow graph. Construction maintains the
// invariant that every input of a node is already present, so insertion
// order is always a valid topological order and cycles cannot be built.
//
// A Graph is mutable only while the tracing/transformation/optimization
// pipeline runs. Once published (e.g. inserted in a jit cache) it must be
// treated as immutable and is then safe to share across goroutines.
type Graph struct {
	nodes   []*Node
	params  []NodeID
	outputs []NodeID
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{}
}

// Add appends a node and returns its id.
//
// Fails with ErrMalformedGraph if an input id does not refer to an
// existing node; this enforces the inputs-precede-consumers invariant by
// construction.
func (g *Graph) Add(kind OpKind, inputs []NodeID, shape Shape, dtype DataType, attrs Attrs) (NodeID, error) {
	id := NodeID(len(g.nodes))
	for _, in := range inputs {
		if in < 0 || in >= id {
			return InvalidNode, errors.WithStack(&NodeError{
				Node:   id,
				Kind:   kind,
				Reason: errors.Errorf("references undefined input n%d", in).Error(),
			})
		}
	}
	if err := shape.Validate(); err != nil {
		return InvalidNode, errors.WithStack(&NodeError{Node: id, Kind: kind, Reason: err.Error()})
	}

	n := &Node{
		ID:     id,
		Kind:   kind,
		Inputs: append([]NodeID(nil), inputs...),
		Shape:  shape.Clone(),
		DType:  dtype,
		Attrs:  attrs,
	}
	g.nodes = append(g.nodes, n)
	if kind == OpParam {
		g.params = append(g.params, id)
	}
	return id, nil
}

// Node returns the node with the given id, or nil if out of range.
func (g *Graph) Node(id NodeID) *Node {
	if id < 0 || int(id) >= len(g.nodes) {
		return nil
	}
	return g.nodes[id]
}

// NumNodes returns the number of nodes in the graph.
func (g *Graph) NumNodes() int {
	return len(g.nodes)
}

// Params returns the ordered parameter (designated input) node ids.
func (g *Graph) Params() []NodeID {
	return g.params
}

// Outputs returns the ordered designated output node ids.
func (g *Graph) Outputs() []NodeID {
	return g.outputs
}

// SetOutputs designates the graph's outputs, replacing any previous
// designation. Every id must refer to an existing node.
func (g *Graph) SetOutputs(ids ...NodeID) error {
	for _, id := range ids {
		if g.Node(id) == nil {
			return errors.WithStack(&NodeError{Node: id, Reason: "designated output does not exist"})
		}
	}
	g.outputs = append([]NodeID(nil), ids...)
	return nil
}

// IsOutput reports whether id is one of the designated outputs.
func (g *Graph) IsOutput(id NodeID) bool {
	for _, out := range g.outputs {
		if out == id {
			return true
		}
	}
	return false
}

// Topo returns node ids in topological order. Because construction is
// append-only with inputs preceding consumers, insertion order is
// topological and this is simply 0..NumNodes-1.
func (g *Graph) Topo() []NodeID {
	order := make([]NodeID, len(g.nodes))
	for i := range order {
		order[i] = NodeID(i)
	}
	return order
}

// ConsumerCounts returns, per node id, how many node inputs reference it.
// Output designation does not count as consumption.
func (g *Graph) ConsumerCounts() []int {
	counts := make([]int, len(g.nodes))
	for _, n := range g.nodes {
		for _, in := range n.Inputs {
			counts[in]++
		}
	}
	return counts
}

// Consumers returns the ids of nodes that consume the given node,
// in topological order.
func (g *Graph) Consumers(id NodeID) []NodeID {
	var out []NodeID
	for _, n := range g.nodes {
		for _, in := range n.Inputs {
			if in == id {
				out = append(out, n.ID)
				break
			}
		}
	}
	return out
}

// Clone creates a deep copy of the graph.
func (g *Graph) Clone() *Graph {
	clone := &Graph{
		nodes:   make([]*Node, len(g.nodes)),
		params:  append([]NodeID(nil), g.params...),
		outputs: append([]NodeID(nil), g.outputs...),
	}
	for i, n := range g.nodes {
		cn := *n
		cn.Inputs = append([]NodeID(nil), n.Inputs...)
		cn.Shape = n.Shape.Clone()
		if n.Attrs.Lit != nil {
			cn.Attrs.Lit = n.Attrs.Lit.Clone()
		}
		clone.nodes[i] = &cn
	}
	return clone
}

// Validate checks total reachability: every designated output must reach
// only existing nodes, and the graph must have outputs set. Used by the
// pipeline before handing a graph to the executor.
func (g *Graph) Validate() error {
	if len(g.outputs) == 0 {
		return errors.WithStack(errors.Wrap(ErrMalformedGraph, "graph has no designated outputs"))
	}
	for _, n := range g.nodes {
		for _, in := range n.Inputs {
			if in < 0 || in >= n.ID {
				return errors.WithStack(&NodeError{Node: n.ID, Kind: n.Kind, Reason: "dangling input reference"})
			}
		}
	}
	return nil
}
