/*
Package nn holds the differentiable building blocks shared by the
tree encoder, decoder and bottleneck: a tape that lets gradients
flow back through long recurrences one step at a time, row
gathering across steps, a straight-through estimator, embeddings,
branch-selected dense layers and the optimizers that apply
gradients to parameters.

Everything is expressed on top of anydiff results backed by
anyvec32 vectors.
*/
package nn

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

/*
Tape records the results of the steps of a recurrence.

Each recorded result is replaced, for the computations that come
after it, by a variable holding its output. The graph of every
step is thus shallow, and reading a state from many later steps
costs nothing more than accumulating into the variable's
gradient. Backward walks the steps in reverse, propagating each
variable's accumulated gradient into the result it stands for.
*/
type Tape struct {
	steps []tapeStep
}

type tapeStep struct {
	res  anydiff.Res
	leaf *anydiff.Var
}

// Checkpoint records r on the tape and returns a variable with
// r's output to be used in its place.
func (tp *Tape) Checkpoint(r anydiff.Res) anydiff.Res {
	leaf := anydiff.NewVar(r.Output())
	tp.steps = append(tp.steps, tapeStep{res: r, leaf: leaf})
	return leaf
}

// Len returns the number of recorded steps
func (tp *Tape) Len() int {
	return len(tp.steps)
}

/*
Backward propagates upstream through final, a result computed
from checkpointed variables, and then through every checkpointed
result from the last to the first, accumulating the gradients of
the variables in g. Only variables already present in g receive
gradients.
*/
func (tp *Tape) Backward(final anydiff.Res, upstream anyvec.Vector, g anydiff.Grad) {
	for _, s := range tp.steps {
		g[s.leaf] = s.leaf.Vector.Creator().MakeVector(s.leaf.Vector.Len())
	}
	final.Propagate(upstream, g)
	for i := len(tp.steps) - 1; i >= 0; i-- {
		s := tp.steps[i]
		u := g[s.leaf]
		delete(g, s.leaf)
		s.res.Propagate(u, g)
	}
}
