// Copyright 2025 Weft ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package exec provides the public API for evaluating computation
// graphs on concrete values.
package exec

import (
	"github.com/weft-ml/weft/internal/exec"
	"github.com/weft-ml/weft/internal/graph"
	"github.com/weft-ml/weft/internal/trace"
)

// ErrInvalidInput reports inputs that do not match a graph's parameters.
var ErrInvalidInput = exec.ErrInvalidInput

// Execute evaluates g with one literal per parameter, in parameter
// order, and returns one literal per declared output.
func Execute(g *graph.Graph, inputs []*graph.Literal) ([]*graph.Literal, error) {
	return exec.Execute(g, inputs)
}

// Apply traces f at the shapes of the inputs and evaluates the result
// on them: the uncached eager path.
func Apply(f trace.Func, inputs []*graph.Literal) ([]*graph.Literal, error) {
	return exec.Apply(f, inputs)
}
