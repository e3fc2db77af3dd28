package trace

import "errors"

// ErrCrossContext reports a traced value from one trace context being fed
// into an operation recorded in a different context. Nested
// transformations must lift values explicitly (see Context.Inline);
// implicit mixing would leak nodes between graphs.
var ErrCrossContext = errors.New("traced value used across trace contexts")

// ErrUnsupportedControlFlow reports an attempt to read a concrete value
// out of a non-constant traced value, which is what any data-dependent
// host-language branch on a traced value boils down to. This is a
// deliberate scope boundary: host control flow is unrolled at trace
// time, never represented in the graph.
var ErrUnsupportedControlFlow = errors.New("data-dependent control flow on a traced value")

// Catch converts a tracing-time panic carrying an error back into an
// ordinary error return. Primitive builders panic on misuse (cross
// context, malformed graph) because they cannot return errors without
// ruining the arithmetic call sites; the outermost entry points recover
// via Catch.
//
// Usage:
//
//	func Run(...) (err error) {
//	    defer trace.Catch(&err)
//	    ...
//	}
func Catch(err *error) {
	if r := recover(); r != nil {
		if e, ok := r.(error); ok {
			*err = e
			return
		}
		panic(r)
	}
}
