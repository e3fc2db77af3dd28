package graph

import (
	"errors"
	"fmt"
)

// ErrMalformedGraph reports an IR invariant violation: a node referencing
// an input that does not yet exist, an output designation for a missing
// node, and the like. It indicates a bug in the core, not a user error.
var ErrMalformedGraph = errors.New("malformed graph")

// NodeError provides detail about which node violated which invariant.
type NodeError struct {
	Node   NodeID
	Kind   OpKind
	Reason string
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("malformed graph: node %d (%s): %s", e.Node, e.Kind, e.Reason)
}

// Unwrap makes NodeError match ErrMalformedGraph under errors.Is.
func (e *NodeError) Unwrap() error {
	return ErrMalformedGraph
}
