package nn

import (
	"math/rand"

	"github.com/goki/mat32"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyvec"
)

/*
Embedding maps ids to rows of a Count x Dim weight matrix
*/
type Embedding struct {
	Count   int
	Dim     int
	Weights *anydiff.Var
}

/*
NewEmbedding takes a creator, a number of ids, a dimension and a
random source and returns an embedding with normally distributed
weights of unit variance.
*/
func NewEmbedding(c anyvec.Creator, count, dim int, r *rand.Rand) *Embedding {
	data := make([]float32, count*dim)
	for i := range data {
		data[i] = float32(r.NormFloat64())
	}
	return &Embedding{Count: count, Dim: dim, Weights: anydiff.NewVar(c.MakeVectorData(data))}
}

// Lookup returns the len(ids) x Dim matrix of the embeddings of ids
func (e *Embedding) Lookup(ids []int) anydiff.Res {
	table := make([]int, len(ids)*e.Dim)
	for i, id := range ids {
		for k := 0; k < e.Dim; k++ {
			table[i*e.Dim+k] = id*e.Dim + k
		}
	}
	c := e.Weights.Vector.Creator()
	return anydiff.Map(c.MakeMapper(e.Count*e.Dim, table), e.Weights)
}

// Parameters returns the weights of the embedding
func (e *Embedding) Parameters() []*anydiff.Var {
	return []*anydiff.Var{e.Weights}
}

/*
BranchLinear is an array of Branches dense layers sharing the same
input and output sizes. Each input row goes through the layer of
its branch, a row's branch being its rank modulo Branches.

All branches are computed by a single wide layer whose output is
then narrowed to the selected branch of every row.
*/
type BranchLinear struct {
	Branches int
	InCount  int
	OutCount int
	Layer    *anynet.FC
}

// NewBranchLinear returns a BranchLinear with randomly initialized
// branches
func NewBranchLinear(c anyvec.Creator, in, out, branches int) *BranchLinear {
	if branches < 1 {
		branches = 1
	}
	return &BranchLinear{
		Branches: branches,
		InCount:  in,
		OutCount: out,
		Layer:    anynet.NewFC(c, in, out*branches),
	}
}

// Branch returns the branch used for the given rank
func (bl *BranchLinear) Branch(rank int) int {
	b := rank % bl.Branches
	if b < 0 {
		b += bl.Branches
	}
	return b
}

/*
Apply takes a len(ranks) x InCount matrix and the rank of each row
and returns the len(ranks) x OutCount matrix of the rows mapped by
the layers of their branches.
*/
func (bl *BranchLinear) Apply(in anydiff.Res, ranks []int) anydiff.Res {
	rows := len(ranks)
	width := bl.OutCount * bl.Branches
	all := bl.Layer.Apply(in, rows)
	table := make([]int, rows*bl.OutCount)
	for i, r := range ranks {
		offset := i*width + bl.Branch(r)*bl.OutCount
		for j := 0; j < bl.OutCount; j++ {
			table[i*bl.OutCount+j] = offset + j
		}
	}
	c := in.Output().Creator()
	return anydiff.Map(c.MakeMapper(rows*width, table), all)
}

// Parameters returns the weights and biases of all branches
func (bl *BranchLinear) Parameters() []*anydiff.Var {
	return bl.Layer.Parameters()
}

/*
NewMatrix returns a rows x cols variable with components drawn
uniformly from [-b, b], b = 1/sqrt(cols).
*/
func NewMatrix(c anyvec.Creator, rows, cols int, r *rand.Rand) *anydiff.Var {
	bound := 1 / mat32.Sqrt(float32(cols))
	data := make([]float32, rows*cols)
	for i := range data {
		data[i] = (2*r.Float32() - 1) * bound
	}
	return anydiff.NewVar(c.MakeVectorData(data))
}
