/*
Package treelstm implements the two tree recurrences of the
autoencoder: a child-sum encoder composing a tree bottom-up into
a single state, and a parent-expand decoder unfolding a state
top-down into one hidden vector per node.

Both run over the padded tensors of a batch one traversal step at
a time, every tree of the batch taking that step together. Rows
of trees shorter than the batch copy their state through padding
steps.
*/
package treelstm

import (
	"github.com/pbanos/treehash/batch"
	"github.com/pbanos/treehash/nn"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyvec"
)

// State is the state of a batch of LSTM cells: the memory cells
// and hidden vectors, batch x mem matrices each.
type State struct {
	C anydiff.Res
	H anydiff.Res
}

/*
Encoder is a child-sum tree LSTM. At each node the input, output
and update gates are computed from the node's label embedding and
the sum of its children's hidden vectors, and each child gets its
own forget gate from its hidden vector and the node's label.
*/
type Encoder struct {
	InDim  int
	MemDim int

	IOUX *anynet.FC
	IOUH *anynet.FC
	FX   *anynet.FC
	FH   *anynet.FC
}

// NewEncoder returns an encoder with random parameters
func NewEncoder(c anyvec.Creator, inDim, memDim int) *Encoder {
	return &Encoder{
		InDim:  inDim,
		MemDim: memDim,
		IOUX:   anynet.NewFC(c, inDim, 3*memDim),
		IOUH:   anynet.NewFC(c, memDim, 3*memDim),
		FX:     anynet.NewFC(c, inDim, memDim),
		FH:     anynet.NewFC(c, memDim, memDim),
	}
}

/*
Encode takes a tape, the label embedding and a batch and returns
the state of every tree's root. Encode positions are visited in
increasing order, so children are always computed before their
parents. The state of position 0 is all zeros and is what padded
children slots read. Every step's state is checkpointed on the
tape.
*/
func (e *Encoder) Encode(tp *nn.Tape, emb *nn.Embedding, b *batch.Batch) State {
	size, mem := b.Size(), e.MemDim
	zero := nn.Zeros(emb.Weights.Vector.Creator(), size*mem)
	cs := []anydiff.Res{zero}
	hs := []anydiff.Res{zero}
	prev := State{C: zero, H: zero}
	for t := 1; t < b.EncodeLen(); t++ {
		x := emb.Lookup(batch.Column(b.X, t))
		s := e.step(x, cs, hs, b, t)
		mask := batch.MaskColumn(b.XM, t)
		prev = State{
			C: tp.Checkpoint(nn.Blend(s.C, prev.C, mask, mem)),
			H: tp.Checkpoint(nn.Blend(s.H, prev.H, mask, mem)),
		}
		cs = append(cs, prev.C)
		hs = append(hs, prev.H)
	}
	return prev
}

func (e *Encoder) step(x anydiff.Res, cs, hs []anydiff.Res, b *batch.Batch, t int) State {
	size, mem := b.Size(), e.MemDim
	fx := e.FX.Apply(x, size)
	var hSum, fcSum anydiff.Res
	for k := 0; k < b.MaxChildren(); k++ {
		refs, ok := childRefs(b, t, k)
		if !ok {
			continue
		}
		ch := nn.GatherRows(hs, mem, refs)
		cc := nn.GatherRows(cs, mem, refs)
		f := anydiff.Sigmoid(anydiff.Add(e.FH.Apply(ch, size), fx))
		hSum = sum(hSum, ch)
		fcSum = sum(fcSum, anydiff.Mul(f, cc))
	}
	if hSum == nil {
		zero := nn.Zeros(x.Output().Creator(), size*mem)
		hSum, fcSum = zero, zero
	}
	iou := anydiff.Add(e.IOUX.Apply(x, size), e.IOUH.Apply(hSum, size))
	i, o, u := gates(iou, size, mem)
	c := anydiff.Add(anydiff.Mul(i, u), fcSum)
	return State{C: c, H: anydiff.Mul(o, anydiff.Tanh(c))}
}

// Parameters returns the parameters of the encoder
func (e *Encoder) Parameters() []*anydiff.Var {
	var res []*anydiff.Var
	for _, l := range []*anynet.FC{e.IOUX, e.IOUH, e.FX, e.FH} {
		res = append(res, l.Parameters()...)
	}
	return res
}

// childRefs returns the rows holding the k-th child of every
// tree at step t, and whether any tree has such a child. Missing
// children refer to the zero state of position 0.
func childRefs(b *batch.Batch, t, k int) ([]nn.RowRef, bool) {
	refs := make([]nn.RowRef, b.Size())
	found := false
	for i := range refs {
		refs[i].Row = i
		if b.XMC.Value([]int{i, t, k}) != 0 {
			refs[i].Source = int(b.XC.Value([]int{i, t, k}))
			found = true
		}
	}
	return refs, found
}

// gates splits a batch x 3*mem matrix into the input, output and
// update gates.
func gates(iou anydiff.Res, size, mem int) (i, o, u anydiff.Res) {
	i = anydiff.Sigmoid(nn.SliceCols(iou, size, 3*mem, 0, mem))
	o = anydiff.Sigmoid(nn.SliceCols(iou, size, 3*mem, mem, 2*mem))
	u = anydiff.Tanh(nn.SliceCols(iou, size, 3*mem, 2*mem, 3*mem))
	return
}

func sum(acc, r anydiff.Res) anydiff.Res {
	if acc == nil {
		return r
	}
	return anydiff.Add(acc, r)
}
