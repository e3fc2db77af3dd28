// Package exec evaluates computation graphs on concrete host buffers.
//
// Execution walks the graph in topological order and dispatches every
// node through the kernel registry; there is no virtual dispatch on
// node types. The executor is the reference interpreter the compiled
// path and the optimizer passes are checked against.
package exec

import (
	"errors"

	pkgerrors "github.com/pkg/errors"

	"github.com/weft-ml/weft/internal/graph"
	"github.com/weft-ml/weft/internal/ops"
	"github.com/weft-ml/weft/internal/trace"
)

// ErrInvalidInput reports inputs that do not match a graph's parameters.
var ErrInvalidInput = errors.New("inputs do not match graph parameters")

// Execute evaluates g with one literal per graph parameter, in parameter
// order, and returns one literal per declared output.
func Execute(g *graph.Graph, inputs []*graph.Literal) ([]*graph.Literal, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	params := g.Params()
	if len(inputs) != len(params) {
		return nil, pkgerrors.Wrapf(ErrInvalidInput, "%d inputs for %d parameters", len(inputs), len(params))
	}

	vals := make([]*graph.Literal, g.NumNodes())
	for i, pid := range params {
		p := g.Node(pid)
		in := inputs[i]
		if in == nil {
			return nil, pkgerrors.Wrapf(ErrInvalidInput, "input %d is nil", i)
		}
		if !in.Shape.Equal(p.Shape) {
			return nil, pkgerrors.Wrapf(ErrInvalidInput, "input %d has shape %v, parameter expects %v", i, in.Shape, p.Shape)
		}
		if in.DType != p.DType {
			return nil, pkgerrors.Wrapf(ErrInvalidInput, "input %d has dtype %s, parameter expects %s", i, in.DType, p.DType)
		}
		vals[pid] = in
	}

	for _, id := range g.Topo() {
		n := g.Node(id)
		switch n.Kind {
		case graph.OpParam:
			continue
		case graph.OpConstant:
			vals[id] = n.Attrs.Lit
			continue
		}
		args := make([]*graph.Literal, len(n.Inputs))
		for i, in := range n.Inputs {
			args[i] = vals[in]
		}
		out, err := ops.Eval(n.Kind, n.Attrs, args)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "evaluating node %d (%s)", id, n.Kind)
		}
		if !out.Shape.Equal(n.Shape) {
			return nil, pkgerrors.Wrapf(graph.ErrMalformedGraph,
				"node %d (%s): kernel produced shape %v, graph records %v", id, n.Kind, out.Shape, n.Shape)
		}
		vals[id] = out
	}

	outs := make([]*graph.Literal, len(g.Outputs()))
	for i, id := range g.Outputs() {
		v := vals[id]
		// Parameter and constant outputs alias the caller's inputs or
		// the graph's embedded literals; hand back a copy so a caller
		// mutating an output cannot corrupt the graph. The jit cache
		// reuses compiled graphs across calls.
		if k := g.Node(id).Kind; k == graph.OpParam || k == graph.OpConstant {
			v = v.Clone()
		}
		outs[i] = v
	}
	return outs, nil
}

// Apply traces f at the shapes of the given inputs and evaluates the
// resulting graph on them. It is the uncached eager path; the jit
// wrapper is the cached one.
func Apply(f trace.Func, inputs []*graph.Literal) ([]*graph.Literal, error) {
	specs := make([]trace.ArgSpec, len(inputs))
	for i, in := range inputs {
		if in == nil {
			return nil, pkgerrors.Wrapf(ErrInvalidInput, "input %d is nil", i)
		}
		specs[i] = trace.ArgSpec{Shape: in.Shape, DType: in.DType}
	}
	g, err := trace.Trace(f, specs)
	if err != nil {
		return nil, err
	}
	return Execute(g, inputs)
}
