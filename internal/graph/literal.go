package graph

import "fmt"

// Literal is a concrete constant value embeddable in the graph.
// The executor uses the same representation for its buffers, so a
// constant node's payload can be handed to execution without copying.
type Literal struct {
	Shape Shape
	DType DataType
	Data  []float64
}

// NewLiteral creates a literal from raw data. The data length must match
// the shape's element count.
func NewLiteral(data []float64, shape Shape, dtype DataType) (*Literal, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	return &Literal{Shape: shape.Clone(), DType: dtype, Data: data}, nil
}

// Scalar creates a rank-0 literal holding a single value.
func Scalar(v float64, dtype DataType) *Literal {
	return &Literal{Shape: Shape{}, DType: dtype, Data: []float64{v}}
}

// Fill creates a literal of the given shape with every element set to v.
func Fill(v float64, shape Shape, dtype DataType) *Literal {
	data := make([]float64, shape.NumElements())
	for i := range data {
		data[i] = v
	}
	return &Literal{Shape: shape.Clone(), DType: dtype, Data: data}
}

// Zeros creates a zero-filled literal.
func Zeros(shape Shape, dtype DataType) *Literal {
	return &Literal{Shape: shape.Clone(), DType: dtype, Data: make([]float64, shape.NumElements())}
}

// Ones creates a one-filled literal.
func Ones(shape Shape, dtype DataType) *Literal {
	return Fill(1, shape, dtype)
}

// Item returns the value of a scalar literal.
// Panics if the literal is not rank 0.
func (l *Literal) Item() float64 {
	if !l.Shape.IsScalar() {
		panic(fmt.Sprintf("Item() only works for scalar literals, got shape %v", l.Shape))
	}
	return l.Data[0]
}

// Clone creates a deep copy of the literal.
func (l *Literal) Clone() *Literal {
	data := make([]float64, len(l.Data))
	copy(data, l.Data)
	return &Literal{Shape: l.Shape.Clone(), DType: l.DType, Data: data}
}

// AllZero reports whether every element is exactly zero.
func (l *Literal) AllZero() bool {
	for _, v := range l.Data {
		if v != 0 {
			return false
		}
	}
	return true
}

// AllOne reports whether every element is exactly one.
func (l *Literal) AllOne() bool {
	for _, v := range l.Data {
		if v != 1 {
			return false
		}
	}
	return true
}

// String returns a short description of the literal.
func (l *Literal) String() string {
	return fmt.Sprintf("Literal[%s]%v", l.DType, l.Shape)
}
