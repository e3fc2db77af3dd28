// Package trace turns function invocations over traced values into
// computation graphs.
//
// A Context owns one graph under construction. Executing a user function
// with Value arguments records every primitive call as a node; host
// control flow runs normally at trace time and is not recorded. Nested
// transformations (grad inside vmap, jit inside grad) push an isolated
// child Context and splice its finished graph back into the parent with
// Inline — values must never cross contexts implicitly.
package trace

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/weft-ml/weft/internal/graph"
	"github.com/weft-ml/weft/internal/ops"
)

// Context is the trace state for one graph under construction.
// It is single-threaded by design: one goroutine traces into a context
// at a time, per the stack discipline of nested transformations.
type Context struct {
	id     uuid.UUID
	parent *Context
	g      *graph.Graph
}

// NewContext creates a fresh root trace context.
func NewContext() *Context {
	return &Context{id: uuid.New(), g: graph.New()}
}

// Child pushes a nested trace context for an inner transformation.
// The child's graph is isolated from the parent's; use Inline to splice
// the finished child graph back.
func (c *Context) Child() *Context {
	return &Context{id: uuid.New(), parent: c, g: graph.New()}
}

// ID returns the context's unique identity.
func (c *Context) ID() uuid.UUID {
	return c.id
}

// Graph returns the graph under construction.
func (c *Context) Graph() *graph.Graph {
	return c.g
}

// Param appends a designated input node and returns its value.
func (c *Context) Param(shape graph.Shape, dtype graph.DataType) Value {
	id, err := c.g.Add(graph.OpParam, nil, shape, dtype, graph.Attrs{})
	if err != nil {
		panic(err)
	}
	return Value{ctx: c, id: id}
}

// Constant embeds a literal as a constant node.
func (c *Context) Constant(lit *graph.Literal) Value {
	id, err := c.g.Add(graph.OpConstant, nil, lit.Shape, lit.DType, graph.Attrs{Lit: lit})
	if err != nil {
		panic(err)
	}
	return Value{ctx: c, id: id}
}

// Scalar embeds a host scalar as a float64 constant node.
func (c *Context) Scalar(v float64) Value {
	return c.Constant(graph.Scalar(v, graph.Float64))
}

// ValueOf wraps an existing node of this context's graph as a value.
// Transformations that append nodes directly (the backward pass, the
// batching rewrite) use it to hand results back to traced code.
func (c *Context) ValueOf(id graph.NodeID) Value {
	if c.g.Node(id) == nil {
		panic(errors.Wrapf(graph.ErrMalformedGraph, "no node %d in this context", id))
	}
	return Value{ctx: c, id: id}
}

// Finish designates the outputs and returns the completed graph.
func (c *Context) Finish(outputs ...Value) *graph.Graph {
	ids := make([]graph.NodeID, len(outputs))
	for i, out := range outputs {
		if out.ctx != c {
			panic(errors.Wrapf(ErrCrossContext, "output %d was traced in context %s, not %s", i, out.ctx.id, c.id))
		}
		ids[i] = out.id
	}
	if err := c.g.SetOutputs(ids...); err != nil {
		panic(err)
	}
	return c.g
}

// apply records one primitive call: it verifies all operands belong to
// this context, folds the node eagerly when every operand is a constant
// (keeping graphs small when a sub-expression is statically known), and
// otherwise appends a node through the shape-inference rule.
func (c *Context) apply(kind graph.OpKind, attrs graph.Attrs, inputs ...Value) Value {
	ids := make([]graph.NodeID, len(inputs))
	allConst := true
	for i, in := range inputs {
		if in.ctx != c {
			panic(errors.Wrapf(ErrCrossContext, "operand %d of %s was traced in context %s, not %s",
				i, kind, in.ctx.id, c.id))
		}
		ids[i] = in.id
		if c.g.Node(in.id).Kind != graph.OpConstant {
			allConst = false
		}
	}

	if allConst && len(inputs) > 0 {
		if folded, ok := c.fold(kind, attrs, ids); ok {
			return folded
		}
	}

	id, err := ops.Append(c.g, kind, attrs, ids...)
	if err != nil {
		panic(err)
	}
	return Value{ctx: c, id: id}
}

// fold evaluates an all-constant expression eagerly through the op's
// kernel and embeds the result as a constant node.
func (c *Context) fold(kind graph.OpKind, attrs graph.Attrs, ids []graph.NodeID) (Value, bool) {
	lits := make([]*graph.Literal, len(ids))
	for i, id := range ids {
		lits[i] = c.g.Node(id).Attrs.Lit
	}
	out, err := ops.Eval(kind, attrs, lits)
	if err != nil {
		// No kernel or kernel failure: fall back to recording the node;
		// shape inference will surface a real problem.
		return Value{}, false
	}
	return c.Constant(out), true
}

// Inline splices a finished child graph into this context, substituting
// args for the child's parameters in order. Returns the child's outputs
// as values of this context. This is the one sanctioned way traced state
// crosses context boundaries.
func (c *Context) Inline(sub *graph.Graph, args []Value) []Value {
	params := sub.Params()
	if len(args) != len(params) {
		panic(errors.Wrapf(graph.ErrMalformedGraph, "inline: %d args for %d parameters", len(args), len(params)))
	}

	remap := make([]graph.NodeID, sub.NumNodes())
	paramIdx := 0
	for _, id := range sub.Topo() {
		n := sub.Node(id)
		switch n.Kind {
		case graph.OpParam:
			arg := args[paramIdx]
			if arg.ctx != c {
				panic(errors.Wrapf(ErrCrossContext, "inline arg %d belongs to context %s, not %s", paramIdx, arg.ctx.id, c.id))
			}
			if !arg.Shape().Equal(n.Shape) {
				panic(errors.Wrapf(graph.ErrMalformedGraph, "inline arg %d has shape %v, parameter expects %v",
					paramIdx, arg.Shape(), n.Shape))
			}
			remap[id] = arg.id
			paramIdx++
		default:
			mapped := make([]graph.NodeID, len(n.Inputs))
			for i, in := range n.Inputs {
				mapped[i] = remap[in]
			}
			// Shapes were already inferred in the child; re-adding with
			// the same metadata preserves them exactly.
			nid, err := c.g.Add(n.Kind, mapped, n.Shape, n.DType, n.Attrs)
			if err != nil {
				panic(err)
			}
			remap[id] = nid
		}
	}

	outs := make([]Value, len(sub.Outputs()))
	for i, id := range sub.Outputs() {
		outs[i] = Value{ctx: c, id: remap[id]}
	}
	return outs
}
