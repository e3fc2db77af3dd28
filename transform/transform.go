// Copyright 2025 Weft ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package transform provides the public API for composable function
// transformations: automatic differentiation, automatic batching, and
// cached compilation.
//
// Every transformation maps a traceable function to another traceable
// function, so they nest in any order:
//
//	f := func(args []trace.Value) []trace.Value {
//	    x := args[0]
//	    return []trace.Value{x.Mul(x).AddScalar(1)}
//	}
//	df := transform.Grad(f)                 // scalar derivative
//	bdf := transform.Vmap(df)               // derivative per batch row
//	compiled := transform.Jit(bdf)          // cached compilation
//	out, err := compiled.Run(inputs)
package transform

import (
	"github.com/hashicorp/go-hclog"

	"github.com/weft-ml/weft/internal/autodiff"
	"github.com/weft-ml/weft/internal/graph"
	"github.com/weft-ml/weft/internal/jit"
	"github.com/weft-ml/weft/internal/optimize"
	"github.com/weft-ml/weft/internal/trace"
	"github.com/weft-ml/weft/internal/vmap"
)

// ErrGradient reports a differentiation failure.
var ErrGradient = autodiff.ErrGradient

// ErrBatching reports a vmap failure.
var ErrBatching = vmap.ErrBatching

// Unbatched marks a Vmap argument with no batch dimension.
const Unbatched = vmap.Unbatched

// Grad transforms f into a function returning the gradient of f's
// scalar output with respect to the arguments named by argnums (every
// argument when empty).
func Grad(f trace.Func, argnums ...int) trace.Func {
	return autodiff.Grad(f, argnums...)
}

// ValueAndGrad transforms f into a function returning f's scalar output
// followed by its gradients, then any auxiliary outputs of f unchanged.
func ValueAndGrad(f trace.Func, argnums ...int) trace.Func {
	return autodiff.ValueAndGrad(f, argnums...)
}

// Vmap transforms f into a function mapped over a leading batch
// dimension. inAxes gives 0 or Unbatched per argument; empty means
// every argument is batched on axis 0.
func Vmap(f trace.Func, inAxes ...int) trace.Func {
	return vmap.Vmap(f, inAxes...)
}

// Compiled is a function wrapped with a signature-keyed compilation
// cache.
type Compiled = jit.Compiled

// Option configures a Jit wrapper.
type Option = jit.Option

// Stats is a snapshot of a compilation cache's counters.
type Stats = jit.Stats

// Jit wraps f with a compilation cache: one trace+optimize per distinct
// argument signature, concurrent first calls coalesced.
func Jit(f trace.Func, opts ...Option) *Compiled {
	return jit.Jit(f, opts...)
}

// WithStaticArgnums declares arguments whose concrete values are baked
// into the compiled graph; each distinct value compiles separately.
func WithStaticArgnums(nums ...int) Option {
	return jit.WithStaticArgnums(nums...)
}

// WithLogger sets the logger a Jit wrapper uses for cache and
// optimization events.
func WithLogger(log hclog.Logger) Option {
	return jit.WithLogger(log)
}

// Optimize runs the standard optimization pipeline (constant folding,
// algebraic simplification, CSE, dead-code elimination, elementwise
// fusion) over a graph. Jit runs the same pipeline internally.
func Optimize(g *graph.Graph, log hclog.Logger) *graph.Graph {
	return optimize.New(log).Run(g)
}
