package graph

import (
	"fmt"

	"github.com/pkg/errors"
)

// Shape represents the dimensions of a graph value.
// A zero-length shape is a scalar.
type Shape []int

// NumElements returns the total number of elements.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// IsScalar reports whether the shape has rank 0.
func (s Shape) IsScalar() bool {
	return len(s) == 0
}

// Validate checks that all dimensions are positive.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major strides for the shape.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}
	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// Reduce returns the shape resulting from summing over the given axes.
// A nil or empty axes slice reduces over all axes. With keepDims the
// reduced axes are retained with size 1.
func (s Shape) Reduce(axes []int, keepDims bool) (Shape, error) {
	reduced := make([]bool, len(s))
	if len(axes) == 0 {
		for i := range reduced {
			reduced[i] = true
		}
	} else {
		for _, ax := range axes {
			if ax < 0 || ax >= len(s) {
				return nil, fmt.Errorf("reduction axis %d out of range for shape %v", ax, s)
			}
			reduced[ax] = true
		}
	}

	out := make(Shape, 0, len(s))
	for i, dim := range s {
		switch {
		case !reduced[i]:
			out = append(out, dim)
		case keepDims:
			out = append(out, 1)
		}
	}
	return out, nil
}

// String renders the shape as e.g. "[2,3]". Scalars render as "[]".
func (s Shape) String() string {
	out := "["
	for i, dim := range s {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprint(dim)
	}
	return out + "]"
}

// BroadcastShapes implements NumPy-style broadcasting rules.
//
// Shapes are compared element-wise from right to left; dimensions are
// compatible if they are equal or one of them is 1, and missing leading
// dimensions are treated as 1.
//
// Examples:
//
//	(3, 1) + (3, 5) → (3, 5)
//	(5)    + (2, 5) → (2, 5)
//	(3, 4) + (3, 5) → error
func BroadcastShapes(a, b Shape) (Shape, error) {
	maxLen := max(len(a), len(b))
	result := make(Shape, maxLen)

	for i := 0; i < maxLen; i++ {
		aDim, bDim := 1, 1
		if idx := len(a) - 1 - i; idx >= 0 {
			aDim = a[idx]
		}
		if idx := len(b) - 1 - i; idx >= 0 {
			bDim = b[idx]
		}

		switch {
		case aDim == bDim:
			result[maxLen-1-i] = aDim
		case aDim == 1:
			result[maxLen-1-i] = bDim
		case bDim == 1:
			result[maxLen-1-i] = aDim
		default:
			return nil, errors.Wrapf(ErrMalformedGraph,
				"shapes not compatible for broadcasting: %v vs %v (dimension %d: %d vs %d)",
				a, b, maxLen-1-i, aDim, bDim)
		}
	}

	return result, nil
}
