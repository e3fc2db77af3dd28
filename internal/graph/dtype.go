// Package graph provides the computation graph IR for the weft tracing core.
package graph

// DataType represents runtime element-type information for graph values.
type DataType int

// Supported element types.
//
// The reference executor computes in float64 regardless of the declared
// type; the declared type still participates in shape/dtype inference and
// in jit cache signatures.
const (
	Float32 DataType = iota
	Float64
)

// Size returns the byte size of one element.
func (dt DataType) Size() int {
	switch dt {
	case Float32:
		return 4
	case Float64:
		return 8
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return "unknown"
	}
}
