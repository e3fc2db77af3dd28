// Package ops defines the closed primitive set and its rule tables.
//
// Each primitive registers, keyed by op kind:
//   - a shape/dtype inference rule (used by the tracer and by Append)
//   - an eval kernel (used by the executor and by trace-time constant folding)
//   - a VJP rule (used by reverse-mode autodiff)
//   - a batching rule (used by vmap)
//   - an elementwise-fusible tag (used by the fusion pass)
//
// Absence of a rule is a reportable error in the transformation that
// needs it, never a silent fallback.
package ops

import (
	"github.com/pkg/errors"

	"github.com/weft-ml/weft/internal/graph"
)

// ShapeRule infers the output shape and dtype of an op from its inputs.
type ShapeRule func(attrs graph.Attrs, inputs []*graph.Node) (graph.Shape, graph.DataType, error)

// Kernel executes an op on concrete inputs and returns the concrete output.
type Kernel func(attrs graph.Attrs, inputs []*graph.Literal) (*graph.Literal, error)

// VJPRule appends the backward computation for one node to g.
// Given the node's forward inputs (n.Inputs), its forward output (n.ID)
// and the accumulated output cotangent ct, it returns one cotangent node
// id per input (graph.InvalidNode where no gradient flows).
type VJPRule func(g *graph.Graph, n *graph.Node, ct graph.NodeID) ([]graph.NodeID, error)

// BatchedArg is one operand of a batched op: a node id in the batched
// graph plus the position of its batch axis (Unbatched when absent).
type BatchedArg struct {
	ID   graph.NodeID
	Axis int
}

// Unbatched marks an operand with no batch axis.
const Unbatched = -1

// BatchRule appends the batched form of a node to dst.
// n is the unbatched node (from the callee's trace); args are its
// operands already lifted into dst, with axis info. Returns the batched
// output node id and the output's batch axis.
type BatchRule func(dst *graph.Graph, n *graph.Node, args []BatchedArg) (graph.NodeID, int, error)

// Rule bundles all registered behavior for one op kind.
type Rule struct {
	Infer   ShapeRule
	Eval    Kernel
	VJP     VJPRule
	Batch   BatchRule
	Fusible bool // eligible for elementwise fusion
}

var registry = map[graph.OpKind]*Rule{}

// Register adds a rule for an op kind. Later registrations replace
// earlier ones; the builtin set registers at package init.
func Register(kind graph.OpKind, r *Rule) {
	registry[kind] = r
}

// Lookup returns the rule registered for an op kind.
func Lookup(kind graph.OpKind) (*Rule, bool) {
	r, ok := registry[kind]
	return r, ok
}

// Fusible reports whether an op kind is tagged elementwise-fusible.
func Fusible(kind graph.OpKind) bool {
	r, ok := registry[kind]
	return ok && r.Fusible
}

// Infer runs the shape/dtype inference rule for an op kind.
func Infer(kind graph.OpKind, attrs graph.Attrs, inputs []*graph.Node) (graph.Shape, graph.DataType, error) {
	r, ok := registry[kind]
	if !ok || r.Infer == nil {
		return nil, 0, errors.Errorf("no shape rule registered for op %s", kind)
	}
	return r.Infer(attrs, inputs)
}

// Append infers the output shape/dtype for the op and appends the node
// to g. This is the single construction path shared by the tracer, the
// autodiff engine and the vmap lift.
func Append(g *graph.Graph, kind graph.OpKind, attrs graph.Attrs, inputs ...graph.NodeID) (graph.NodeID, error) {
	nodes := make([]*graph.Node, len(inputs))
	for i, id := range inputs {
		n := g.Node(id)
		if n == nil {
			return graph.InvalidNode, errors.Wrapf(graph.ErrMalformedGraph, "op %s references undefined input n%d", kind, id)
		}
		nodes[i] = n
	}
	shape, dtype, err := Infer(kind, attrs, nodes)
	if err != nil {
		return graph.InvalidNode, errors.Wrapf(err, "inferring %s", kind)
	}
	return g.Add(kind, inputs, shape, dtype, attrs)
}

func errNoKernel(kind graph.OpKind) error {
	return errors.Errorf("no eval kernel registered for op %s", kind)
}

func init() {
	registerElementwise()
	registerReduce()
	registerShapeOps()
}
