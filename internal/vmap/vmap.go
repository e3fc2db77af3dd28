// Package vmap implements automatic batching of traced functions.
//
// The transformed function is traced once at unbatched shapes and the
// recorded graph is rewritten node by node through per-op batching
// rules, so the batch dimension is threaded through a single graph
// instead of looping the function per example.
package vmap

import (
	"errors"

	pkgerrors "github.com/pkg/errors"

	"github.com/weft-ml/weft/internal/graph"
	"github.com/weft-ml/weft/internal/ops"
	"github.com/weft-ml/weft/internal/trace"
)

// ErrBatching reports a vmap failure: mismatched batch sizes, an
// invalid axis spec, or a primitive with no batching rule.
var ErrBatching = errors.New("batching transformation failed")

// Unbatched marks an argument that carries no batch dimension and is
// shared across all batch elements.
const Unbatched = ops.Unbatched

// Vmap transforms f into a function that maps it over a leading batch
// dimension. inAxes gives one entry per argument: 0 to map over the
// argument's leading axis, Unbatched to share it across the batch. An
// empty inAxes maps every argument over axis 0. At least one argument
// must be batched, and all batched arguments must agree on the batch
// size.
//
// Outputs always carry the batch on axis 0; an output that does not
// depend on any batched input is broadcast to the batch size.
func Vmap(f trace.Func, inAxes ...int) trace.Func {
	return func(args []trace.Value) []trace.Value {
		outs, err := batch(f, args, inAxes)
		if err != nil {
			panic(err)
		}
		return outs
	}
}

func batch(f trace.Func, args []trace.Value, inAxes []int) ([]trace.Value, error) {
	if len(args) == 0 {
		return nil, pkgerrors.Wrap(ErrBatching, "no arguments to batch over")
	}
	axes := inAxes
	if len(axes) == 0 {
		axes = make([]int, len(args))
	}
	if len(axes) != len(args) {
		return nil, pkgerrors.Wrapf(ErrBatching, "%d axis specs for %d arguments", len(axes), len(args))
	}

	// Determine the batch size and the unbatched shape of each argument.
	batchSize := -1
	specs := make([]trace.ArgSpec, len(args))
	for i, a := range args {
		switch axes[i] {
		case Unbatched:
			specs[i] = trace.SpecOf(a)
		case 0:
			shape := a.Shape()
			if len(shape) == 0 {
				return nil, pkgerrors.Wrapf(ErrBatching, "argument %d is a scalar and cannot be mapped over axis 0", i)
			}
			if batchSize == -1 {
				batchSize = shape[0]
			} else if shape[0] != batchSize {
				return nil, pkgerrors.Wrapf(ErrBatching, "argument %d has batch size %d, expected %d", i, shape[0], batchSize)
			}
			specs[i] = trace.ArgSpec{Shape: shape[1:].Clone(), DType: a.DType()}
		default:
			return nil, pkgerrors.Wrapf(ErrBatching, "argument %d: axis %d unsupported (batching maps axis 0 only)", i, axes[i])
		}
	}
	if batchSize == -1 {
		return nil, pkgerrors.Wrap(ErrBatching, "at least one argument must be batched")
	}

	// Trace the callee once at unbatched shapes.
	parent := args[0].Context()
	child := parent.Child()
	childArgs := make([]trace.Value, len(specs))
	for i, spec := range specs {
		childArgs[i] = child.Param(spec.Shape, spec.DType)
	}
	sub := child.Finish(f(childArgs)...)

	lifted, err := lift(parent.Graph(), sub, args, axes)
	if err != nil {
		return nil, err
	}

	outs := make([]trace.Value, len(sub.Outputs()))
	for i, id := range sub.Outputs() {
		l := lifted[id]
		v := parent.ValueOf(l.ID)
		if l.Axis == Unbatched {
			target := append(graph.Shape{batchSize}, v.Shape()...)
			v = v.Broadcast(target)
		}
		outs[i] = v
	}
	return outs, nil
}

// lift rewrites every node of the callee graph into dst in topological
// order, tracking the batch axis per node. Parameters map to the
// caller's (already batched) arguments; constants are copied as is.
func lift(dst *graph.Graph, sub *graph.Graph, args []trace.Value, axes []int) ([]ops.BatchedArg, error) {
	lifted := make([]ops.BatchedArg, sub.NumNodes())
	paramIdx := 0
	for _, id := range sub.Topo() {
		n := sub.Node(id)
		switch n.Kind {
		case graph.OpParam:
			lifted[id] = ops.BatchedArg{ID: args[paramIdx].ID(), Axis: axes[paramIdx]}
			paramIdx++
		case graph.OpConstant:
			cid, err := dst.Add(graph.OpConstant, nil, n.Shape, n.DType, n.Attrs)
			if err != nil {
				return nil, err
			}
			lifted[id] = ops.BatchedArg{ID: cid, Axis: Unbatched}
		default:
			rule, ok := ops.Lookup(n.Kind)
			if !ok || rule.Batch == nil {
				return nil, pkgerrors.Wrapf(ErrBatching, "op %s has no batching rule", n.Kind)
			}
			inArgs := make([]ops.BatchedArg, len(n.Inputs))
			allUnbatched := true
			for i, in := range n.Inputs {
				inArgs[i] = lifted[in]
				if inArgs[i].Axis != Unbatched {
					allUnbatched = false
				}
			}
			if allUnbatched {
				// No batch dimension flows through this node; replay it
				// unchanged and keep it shared across the batch.
				mapped := make([]graph.NodeID, len(n.Inputs))
				for i := range inArgs {
					mapped[i] = inArgs[i].ID
				}
				nid, err := ops.Append(dst, n.Kind, n.Attrs, mapped...)
				if err != nil {
					return nil, err
				}
				lifted[id] = ops.BatchedArg{ID: nid, Axis: Unbatched}
				continue
			}
			nid, axis, err := rule.Batch(dst, n, inArgs)
			if err != nil {
				return nil, pkgerrors.Wrapf(err, "batching rule for %s (node %d)", n.Kind, id)
			}
			if axis != 0 && axis != Unbatched {
				return nil, pkgerrors.Wrapf(ErrBatching, "batching rule for %s produced axis %d", n.Kind, axis)
			}
			lifted[id] = ops.BatchedArg{ID: nid, Axis: axis}
		}
	}
	return lifted, nil
}
