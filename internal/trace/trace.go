package trace

import (
	"github.com/pkg/errors"

	"github.com/weft-ml/weft/internal/graph"
)

// Func is a traceable function: it consumes and produces values of a
// single context. Transformations (grad, vmap, jit) take a Func and
// return another Func, so they compose by ordinary function wrapping.
type Func func(args []Value) []Value

// ArgSpec describes one abstract argument for tracing: only its shape
// and element type matter, never its data.
type ArgSpec struct {
	Shape graph.Shape
	DType graph.DataType
}

// SpecOf returns the abstract argument spec for a value.
func SpecOf(v Value) ArgSpec {
	return ArgSpec{Shape: v.Shape(), DType: v.DType()}
}

// Trace runs f once with abstract parameters and returns the recorded
// graph. Builder panics from malformed calls (shape mismatches, values
// crossing contexts, data-dependent branches) are converted back into
// errors here.
func Trace(f Func, specs []ArgSpec) (g *graph.Graph, err error) {
	defer Catch(&err)

	ctx := NewContext()
	args := make([]Value, len(specs))
	for i, spec := range specs {
		if verr := spec.Shape.Validate(); verr != nil {
			return nil, errors.Wrapf(verr, "argument %d", i)
		}
		args[i] = ctx.Param(spec.Shape, spec.DType)
	}

	outs := f(args)
	if len(outs) == 0 {
		return nil, errors.Wrap(graph.ErrMalformedGraph, "traced function returned no outputs")
	}
	return ctx.Finish(outs...), nil
}
