package treelstm

import (
	"github.com/pbanos/treehash/batch"
	"github.com/pbanos/treehash/nn"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyvec"
)

/*
Decoder is a parent-expand tree LSTM. The state of a node is
computed from its parent's state and its parent's label
embedding, through transforms selected by the node's rank among
its siblings. Ranks beyond Branches wrap around and share the
parameters of earlier ranks.
*/
type Decoder struct {
	InDim    int
	MemDim   int
	Branches int

	IOUH *nn.BranchLinear
	FH   *nn.BranchLinear
	IOUX *anynet.FC
	FX   *anynet.FC
}

// NewDecoder returns a decoder with random parameters and
// branches rank-specific transforms.
func NewDecoder(c anyvec.Creator, inDim, memDim, branches int) *Decoder {
	if branches < 1 {
		branches = 1
	}
	return &Decoder{
		InDim:    inDim,
		MemDim:   memDim,
		Branches: branches,
		IOUH:     nn.NewBranchLinear(c, memDim, 3*memDim, branches),
		FH:       nn.NewBranchLinear(c, memDim, memDim, branches),
		IOUX:     anynet.NewFC(c, inDim, 3*memDim),
		FX:       anynet.NewFC(c, inDim, memDim),
	}
}

/*
Decode takes a tape, the label embedding, a batch and the
batch x 2*mem initial state of the roots, memory cells first, and
returns the hidden vectors of every decode position, one
batch x mem matrix per position. Padding positions copy the state
of the parent they refer to.
*/
func (d *Decoder) Decode(tp *nn.Tape, emb *nn.Embedding, b *batch.Batch, init anydiff.Res) []anydiff.Res {
	size, mem := b.Size(), d.MemDim
	init = tp.Checkpoint(init)
	cs := []anydiff.Res{tp.Checkpoint(nn.SliceCols(init, size, 2*mem, 0, mem))}
	hs := []anydiff.Res{tp.Checkpoint(nn.SliceCols(init, size, 2*mem, mem, 2*mem))}
	for t := 1; t < b.DecodeLen(); t++ {
		parents := batch.Column(b.YP, t)
		refs := make([]nn.RowRef, size)
		labels := make([]int, size)
		for i, p := range parents {
			refs[i] = nn.RowRef{Source: p, Row: i}
			labels[i] = int(b.Y.Value([]int{i, p}))
		}
		parent := State{
			C: nn.GatherRows(cs, mem, refs),
			H: nn.GatherRows(hs, mem, refs),
		}
		s := d.step(emb.Lookup(labels), batch.Column(b.YR, t), parent, size)
		mask := batch.MaskColumn(b.YM, t)
		cs = append(cs, tp.Checkpoint(nn.Blend(s.C, parent.C, mask, mem)))
		hs = append(hs, tp.Checkpoint(nn.Blend(s.H, parent.H, mask, mem)))
	}
	return hs
}

func (d *Decoder) step(y anydiff.Res, ranks []int, parent State, size int) State {
	mem := d.MemDim
	iou := anydiff.Add(d.IOUX.Apply(y, size), d.IOUH.Apply(parent.H, ranks))
	i, o, u := gates(iou, size, mem)
	f := anydiff.Sigmoid(anydiff.Add(d.FH.Apply(parent.H, ranks), d.FX.Apply(y, size)))
	c := anydiff.Add(anydiff.Mul(i, u), anydiff.Mul(f, parent.C))
	return State{C: c, H: anydiff.Mul(o, anydiff.Tanh(c))}
}

// Parameters returns the parameters of the decoder
func (d *Decoder) Parameters() []*anydiff.Var {
	var res []*anydiff.Var
	res = append(res, d.IOUH.Parameters()...)
	res = append(res, d.FH.Parameters()...)
	res = append(res, d.IOUX.Parameters()...)
	res = append(res, d.FX.Parameters()...)
	return res
}
