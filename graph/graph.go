// Copyright 2025 Weft ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package graph provides the public API for Weft computation graphs.
//
// A Graph is the intermediate representation every transformation in
// the framework consumes and produces: an append-only list of primitive
// nodes in which inputs always precede their consumers. Graphs are
// built by tracing (see the trace package), rewritten by transformations
// (see the transform package), and evaluated by the executor (see the
// exec package).
package graph

import (
	"github.com/weft-ml/weft/internal/graph"
)

// Shape represents the dimensions of a value.
// Example: Shape{2, 3} is a 2×3 matrix; an empty Shape is a scalar.
type Shape = graph.Shape

// DataType represents the element type of a value.
type DataType = graph.DataType

// Element type constants.
const (
	Float32 DataType = graph.Float32
	Float64 DataType = graph.Float64
)

// Literal is a concrete host-side value: shape, dtype and flat data.
type Literal = graph.Literal

// NodeID identifies a node within a single graph.
type NodeID = graph.NodeID

// InvalidNode marks the absence of a node.
const InvalidNode NodeID = graph.InvalidNode

// OpKind tags a node with its primitive operation.
type OpKind = graph.OpKind

// Node is one operation in a computation graph.
type Node = graph.Node

// Graph is an append-only computation graph.
type Graph = graph.Graph

// ErrMalformedGraph reports a structurally invalid graph or node.
var ErrMalformedGraph = graph.ErrMalformedGraph

// NewLiteral wraps a flat float64 slice as a literal of the given shape.
func NewLiteral(data []float64, shape Shape, dtype DataType) (*Literal, error) {
	return graph.NewLiteral(data, shape, dtype)
}

// Scalar returns a rank-0 literal holding v.
func Scalar(v float64, dtype DataType) *Literal {
	return graph.Scalar(v, dtype)
}

// Zeros returns an all-zero literal of the given shape.
func Zeros(shape Shape, dtype DataType) *Literal {
	return graph.Zeros(shape, dtype)
}

// Ones returns an all-one literal of the given shape.
func Ones(shape Shape, dtype DataType) *Literal {
	return graph.Ones(shape, dtype)
}

// Fill returns a literal of the given shape with every element set to v.
func Fill(v float64, shape Shape, dtype DataType) *Literal {
	return graph.Fill(v, shape, dtype)
}

// BroadcastShapes returns the shape two operands broadcast to, aligning
// trailing dimensions.
func BroadcastShapes(a, b Shape) (Shape, error) {
	return graph.BroadcastShapes(a, b)
}
