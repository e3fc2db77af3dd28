package graph

import "fmt"

// NodeID identifies a node within a single graph. IDs are assigned
// monotonically in insertion order, so a node's inputs always carry
// smaller IDs than the node itself.
type NodeID int

// InvalidNode marks the absence of a node (e.g. "no cotangent flows here").
const InvalidNode NodeID = -1

// OpKind tags a node with its operation. The set is closed: every
// transformation dispatches through per-kind rule tables rather than
// virtual dispatch, and an unknown kind is a reportable error.
type OpKind int

// The primitive set.
const (
	OpParam OpKind = iota // designated graph input
	OpConstant
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpNeg
	OpPow // x^k with constant exponent k in Attrs.Exponent
	OpExp
	OpLog
	OpSin
	OpCos
	OpTanh
	OpSqrt
	OpSum       // reduction over Attrs.Axes (all axes when empty)
	OpBroadcast // expand to Attrs.TargetShape
	OpReshape   // view as Attrs.TargetShape
	OpFused     // macro-node carrying an ordered elementwise sub-op list
)

var opKindNames = map[OpKind]string{
	OpParam:     "param",
	OpConstant:  "constant",
	OpAdd:       "add",
	OpSub:       "sub",
	OpMul:       "mul",
	OpDiv:       "div",
	OpNeg:       "neg",
	OpPow:       "pow",
	OpExp:       "exp",
	OpLog:       "log",
	OpSin:       "sin",
	OpCos:       "cos",
	OpTanh:      "tanh",
	OpSqrt:      "sqrt",
	OpSum:       "sum",
	OpBroadcast: "broadcast",
	OpReshape:   "reshape",
	OpFused:     "fused",
}

// String returns the lowercase tag for the op kind.
func (k OpKind) String() string {
	if name, ok := opKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("opkind(%d)", int(k))
}

// Attrs holds the optional static payload of a node. Which fields are
// meaningful depends on the op kind; unused fields stay zero.
type Attrs struct {
	Lit         *Literal    // OpConstant: embedded value
	Axes        []int       // OpSum: reduction axes (empty = all)
	KeepDims    bool        // OpSum: retain reduced axes with size 1
	TargetShape Shape       // OpBroadcast, OpReshape
	Exponent    float64     // OpPow
	Steps       []FusedStep // OpFused
}

// FusedStep is one elementwise sub-op inside a fused macro-node.
// Steps execute in order; each step consumes macro-node inputs and/or
// results of earlier steps. The last step's result is the node's output.
type FusedStep struct {
	Kind     OpKind
	Exponent float64 // for OpPow steps
	Args     []StepArg
}

// StepArg references one operand of a fused step: either a macro-node
// input or the result of an earlier step.
type StepArg struct {
	FromStep bool
	Index    int
}

// Node is one operation in the computation graph.
// Nodes are immutable once the tracing+transformation+fusion pipeline
// completes; the graph owns them.
type Node struct {
	ID     NodeID
	Kind   OpKind
	Inputs []NodeID
	Shape  Shape
	DType  DataType
	Attrs  Attrs
}

// String returns a short description, e.g. "n3 = mul(n1, n2) f64[2,3]".
func (n *Node) String() string {
	in := ""
	for i, id := range n.Inputs {
		if i > 0 {
			in += ", "
		}
		in += fmt.Sprintf("n%d", id)
	}
	return fmt.Sprintf("n%d = %s(%s) %s%v", n.ID, n.Kind, in, n.DType, n.Shape)
}
