package autodiff

import (
	pkgerrors "github.com/pkg/errors"

	"github.com/weft-ml/weft/internal/graph"
	"github.com/weft-ml/weft/internal/trace"
)

// Grad transforms f into a function that returns the gradient of f's
// scalar output with respect to the arguments named by argnums (every
// argument when argnums is empty). f must return exactly one scalar.
//
// The returned function is itself traceable, so Grad composes with the
// other transformations in either order.
func Grad(f trace.Func, argnums ...int) trace.Func {
	return func(args []trace.Value) []trace.Value {
		_, grads, aux := differentiate(f, args, argnums)
		if len(aux) != 0 {
			panic(pkgerrors.Wrapf(ErrGradient, "function returns %d outputs; gradient requires exactly one", 1+len(aux)))
		}
		return grads
	}
}

// ValueAndGrad transforms f into a function that returns f's scalar
// output followed by its gradients, then any auxiliary outputs of f
// passed through undifferentiated. The first output of f is the one
// differentiated and must be a scalar.
func ValueAndGrad(f trace.Func, argnums ...int) trace.Func {
	return func(args []trace.Value) []trace.Value {
		primal, grads, aux := differentiate(f, args, argnums)
		outs := make([]trace.Value, 0, 1+len(grads)+len(aux))
		outs = append(outs, primal)
		outs = append(outs, grads...)
		outs = append(outs, aux...)
		return outs
	}
}

// differentiate traces f in a child context, appends the backward pass
// there, and inlines the combined graph into the caller's context. A
// parameter the loss does not depend on gets an all-zero gradient of
// its own shape.
func differentiate(f trace.Func, args []trace.Value, argnums []int) (primal trace.Value, grads, aux []trace.Value) {
	if len(args) == 0 {
		panic(pkgerrors.Wrap(ErrGradient, "no arguments to differentiate with respect to"))
	}
	nums := argnums
	if len(nums) == 0 {
		nums = make([]int, len(args))
		for i := range nums {
			nums[i] = i
		}
	}
	for _, n := range nums {
		if n < 0 || n >= len(args) {
			panic(pkgerrors.Wrapf(ErrGradient, "argnum %d out of range for %d arguments", n, len(args)))
		}
	}

	parent := args[0].Context()
	child := parent.Child()
	childArgs := make([]trace.Value, len(args))
	for i, a := range args {
		childArgs[i] = child.Param(a.Shape(), a.DType())
	}

	fOuts := f(childArgs)
	if len(fOuts) == 0 {
		panic(pkgerrors.Wrap(ErrGradient, "function returned no outputs"))
	}
	loss := fOuts[0]
	if !loss.Shape().IsScalar() {
		panic(pkgerrors.Wrapf(ErrGradient, "output has shape %v; differentiation requires a scalar", loss.Shape()))
	}

	seed := child.Constant(graph.Scalar(1, loss.DType()))
	ct, err := Backward(child.Graph(), loss.ID(), seed.ID())
	if err != nil {
		panic(err)
	}

	childOuts := make([]trace.Value, 0, 1+len(nums)+len(fOuts)-1)
	childOuts = append(childOuts, loss)
	for _, n := range nums {
		arg := childArgs[n]
		if id, ok := ct[arg.ID()]; ok {
			childOuts = append(childOuts, child.ValueOf(id))
		} else {
			childOuts = append(childOuts, child.Constant(graph.Zeros(arg.Shape(), arg.DType())))
		}
	}
	childOuts = append(childOuts, fOuts[1:]...)

	sub := child.Finish(childOuts...)
	outs := parent.Inline(sub, args)

	primal = outs[0]
	grads = outs[1 : 1+len(nums)]
	aux = outs[1+len(nums):]
	return primal, grads, aux
}
