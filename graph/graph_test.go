// Copyright 2025 Weft ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package graph_test

import (
	"errors"
	"testing"

	"github.com/weft-ml/weft/graph"
)

func TestNewLiteralChecksLength(t *testing.T) {
	lit, err := graph.NewLiteral([]float64{1, 2, 3, 4, 5, 6}, graph.Shape{2, 3}, graph.Float64)
	if err != nil {
		t.Fatalf("NewLiteral failed: %v", err)
	}
	if !lit.Shape.Equal(graph.Shape{2, 3}) {
		t.Errorf("shape = %v, want [2 3]", lit.Shape)
	}
	if _, err := graph.NewLiteral([]float64{1, 2}, graph.Shape{2, 3}, graph.Float64); err == nil {
		t.Error("expected error for data length 2 with shape [2 3]")
	}
}

func TestScalarAndFill(t *testing.T) {
	s := graph.Scalar(3.5, graph.Float64)
	if !s.Shape.IsScalar() {
		t.Errorf("Scalar shape = %v, want rank 0", s.Shape)
	}
	if got := s.Item(); got != 3.5 {
		t.Errorf("Item() = %v, want 3.5", got)
	}

	f := graph.Fill(2, graph.Shape{4}, graph.Float32)
	for i, v := range f.Data {
		if v != 2 {
			t.Fatalf("Fill element %d = %v, want 2", i, v)
		}
	}
	if !graph.Zeros(graph.Shape{3}, graph.Float64).AllZero() {
		t.Error("Zeros is not all zero")
	}
	if !graph.Ones(graph.Shape{3}, graph.Float64).AllOne() {
		t.Error("Ones is not all one")
	}
}

func TestBroadcastShapes(t *testing.T) {
	got, err := graph.BroadcastShapes(graph.Shape{4, 1}, graph.Shape{3})
	if err != nil {
		t.Fatalf("BroadcastShapes failed: %v", err)
	}
	if !got.Equal(graph.Shape{4, 3}) {
		t.Errorf("BroadcastShapes([4 1], [3]) = %v, want [4 3]", got)
	}

	_, err = graph.BroadcastShapes(graph.Shape{2, 3}, graph.Shape{4})
	if !errors.Is(err, graph.ErrMalformedGraph) {
		t.Errorf("incompatible shapes: err = %v, want ErrMalformedGraph", err)
	}
}
