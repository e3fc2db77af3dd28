package ops

import (
	"math"

	"github.com/pkg/errors"

	"github.com/weft-ml/weft/internal/graph"
)

func init() {
	Register(graph.OpFused, &Rule{
		Infer: inferFused,
		Eval:  evalFused,
	})
}

// inferFused replays the step list abstractly: every step is an
// elementwise op, so its shape is the broadcast of its operand shapes
// and the macro-node's shape is the last step's shape.
func inferFused(attrs graph.Attrs, inputs []*graph.Node) (graph.Shape, graph.DataType, error) {
	inShapes := make([]graph.Shape, len(inputs))
	inTypes := make([]graph.DataType, len(inputs))
	for i, in := range inputs {
		inShapes[i] = in.Shape
		inTypes[i] = in.DType
	}
	return simulateSteps(attrs.Steps, inShapes, inTypes)
}

func simulateSteps(steps []graph.FusedStep, inShapes []graph.Shape, inTypes []graph.DataType) (graph.Shape, graph.DataType, error) {
	if len(steps) == 0 {
		return nil, 0, errors.Wrap(graph.ErrMalformedGraph, "fused node with no steps")
	}
	stepShapes := make([]graph.Shape, len(steps))
	stepTypes := make([]graph.DataType, len(steps))
	for s, st := range steps {
		if !Fusible(st.Kind) {
			return nil, 0, errors.Wrapf(graph.ErrMalformedGraph, "fused step %d: op %s is not elementwise", s, st.Kind)
		}
		if len(st.Args) == 0 || len(st.Args) > 2 {
			return nil, 0, errors.Wrapf(graph.ErrMalformedGraph, "fused step %d: %d operands", s, len(st.Args))
		}
		shapes := make([]graph.Shape, len(st.Args))
		types := make([]graph.DataType, len(st.Args))
		for i, a := range st.Args {
			switch {
			case a.FromStep && a.Index >= 0 && a.Index < s:
				shapes[i] = stepShapes[a.Index]
				types[i] = stepTypes[a.Index]
			case !a.FromStep && a.Index >= 0 && a.Index < len(inShapes):
				shapes[i] = inShapes[a.Index]
				types[i] = inTypes[a.Index]
			default:
				return nil, 0, errors.Wrapf(graph.ErrMalformedGraph, "fused step %d: operand %d out of range", s, i)
			}
		}
		if len(shapes) == 1 {
			stepShapes[s] = shapes[0]
			stepTypes[s] = types[0]
		} else {
			bc, err := graph.BroadcastShapes(shapes[0], shapes[1])
			if err != nil {
				return nil, 0, errors.Wrapf(err, "fused step %d", s)
			}
			stepShapes[s] = bc
			stepTypes[s] = promote(types[0], types[1])
		}
	}
	last := len(steps) - 1
	return stepShapes[last], stepTypes[last], nil
}

// evalFused interprets the step list in a single pass over the output:
// per element, macro-node inputs are gathered through broadcast strides
// and the steps run as scalar arithmetic, with no intermediate buffers.
// Evaluating every step at the final broadcast shape is sound because
// elementwise ops commute with broadcasting.
func evalFused(attrs graph.Attrs, inputs []*graph.Literal) (*graph.Literal, error) {
	inShapes := make([]graph.Shape, len(inputs))
	inTypes := make([]graph.DataType, len(inputs))
	for i, in := range inputs {
		inShapes[i] = in.Shape
		inTypes[i] = in.DType
	}
	shape, dtype, err := simulateSteps(attrs.Steps, inShapes, inTypes)
	if err != nil {
		return nil, err
	}

	out := graph.Zeros(shape, dtype)
	strides := make([][]int, len(inputs))
	offsets := make([]int, len(inputs))
	for i := range inputs {
		strides[i] = broadcastStrides(inputs[i].Shape, shape)
	}

	vals := make([]float64, len(inputs))
	results := make([]float64, len(attrs.Steps))
	idx := make([]int, len(shape))
	var argv [2]float64
	for i := range out.Data {
		for j := range inputs {
			vals[j] = inputs[j].Data[offsets[j]]
		}
		for s := range attrs.Steps {
			st := &attrs.Steps[s]
			for k, a := range st.Args {
				if a.FromStep {
					argv[k] = results[a.Index]
				} else {
					argv[k] = vals[a.Index]
				}
			}
			results[s] = scalarStep(st.Kind, st.Exponent, argv[0], argv[1])
		}
		out.Data[i] = results[len(results)-1]

		for d := len(shape) - 1; d >= 0; d-- {
			idx[d]++
			for j := range offsets {
				offsets[j] += strides[j][d]
			}
			if idx[d] < shape[d] {
				break
			}
			idx[d] = 0
			for j := range offsets {
				offsets[j] -= strides[j][d] * shape[d]
			}
		}
	}
	return out, nil
}

func scalarStep(kind graph.OpKind, exponent, x, y float64) float64 {
	switch kind {
	case graph.OpAdd:
		return x + y
	case graph.OpSub:
		return x - y
	case graph.OpMul:
		return x * y
	case graph.OpDiv:
		return x / y
	case graph.OpNeg:
		return -x
	case graph.OpPow:
		return math.Pow(x, exponent)
	case graph.OpExp:
		return math.Exp(x)
	case graph.OpLog:
		return math.Log(x)
	case graph.OpSin:
		return math.Sin(x)
	case graph.OpCos:
		return math.Cos(x)
	case graph.OpTanh:
		return math.Tanh(x)
	case graph.OpSqrt:
		return math.Sqrt(x)
	default:
		return math.NaN()
	}
}
