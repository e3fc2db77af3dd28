// Copyright 2025 Weft ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package trace provides the public API for recording computation
// graphs from ordinary Go functions.
//
// A traced function receives Value arguments instead of numbers; every
// arithmetic method on a Value appends a node to the graph under
// construction. Host control flow runs normally at trace time and is
// unrolled into the graph, never represented in it.
//
// Example:
//
//	f := func(args []trace.Value) []trace.Value {
//	    x := args[0]
//	    return []trace.Value{x.Mul(x).AddScalar(1)}
//	}
//	g, err := trace.Build(f, []trace.ArgSpec{{Shape: graph.Shape{}, DType: graph.Float64}})
package trace

import (
	"github.com/weft-ml/weft/internal/graph"
	"github.com/weft-ml/weft/internal/trace"
)

// Value is a handle to one node of a graph under construction.
type Value = trace.Value

// Context owns one graph under construction.
type Context = trace.Context

// Func is a traceable function over values.
type Func = trace.Func

// ArgSpec describes one abstract argument: shape and dtype, no data.
type ArgSpec = trace.ArgSpec

// ErrCrossContext reports a value from one trace context used in another.
var ErrCrossContext = trace.ErrCrossContext

// ErrUnsupportedControlFlow reports a data-dependent host branch on a
// traced value.
var ErrUnsupportedControlFlow = trace.ErrUnsupportedControlFlow

// NewContext creates a fresh root trace context.
func NewContext() *Context {
	return trace.NewContext()
}

// Build runs f once with abstract parameters and returns the recorded
// graph.
func Build(f Func, specs []ArgSpec) (*graph.Graph, error) {
	return trace.Trace(f, specs)
}

// SpecOf returns the abstract argument spec for a value.
func SpecOf(v Value) ArgSpec {
	return trace.SpecOf(v)
}

// Catch converts a tracing-time panic carrying an error back into an
// ordinary error return; use it with defer at entry points that invoke
// traced code. recover only takes effect in the deferred function
// itself, so this does not forward to the internal implementation.
func Catch(err *error) {
	if r := recover(); r != nil {
		if e, ok := r.(error); ok {
			*err = e
			return
		}
		panic(r)
	}
}
