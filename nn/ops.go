package nn

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// RowRef identifies row Row of the Source-th matrix given to
// GatherRows.
type RowRef struct {
	Source int
	Row    int
}

type gatherRes struct {
	sources []anydiff.Res
	refs    []RowRef
	cols    int
	out     anyvec.Vector
	vars    anydiff.VarSet
}

/*
GatherRows takes row-major matrices with cols columns and returns
the matrix made of the referenced rows, in order. A gradient
flowing into a row of the result is added to the row it was read
from.
*/
func GatherRows(sources []anydiff.Res, cols int, refs []RowRef) anydiff.Res {
	c := sources[0].Output().Creator()
	srcData := make([][]float32, len(sources))
	data := make([]float32, len(refs)*cols)
	for i, ref := range refs {
		if srcData[ref.Source] == nil {
			srcData[ref.Source] = sources[ref.Source].Output().Data().([]float32)
		}
		copy(data[i*cols:(i+1)*cols], srcData[ref.Source][ref.Row*cols:(ref.Row+1)*cols])
	}
	varSets := make([]anydiff.VarSet, len(sources))
	for i, s := range sources {
		varSets[i] = s.Vars()
	}
	return &gatherRes{
		sources: sources,
		refs:    refs,
		cols:    cols,
		out:     c.MakeVectorData(data),
		vars:    anydiff.MergeVarSets(varSets...),
	}
}

func (gr *gatherRes) Output() anyvec.Vector {
	return gr.out
}

func (gr *gatherRes) Vars() anydiff.VarSet {
	return gr.vars
}

func (gr *gatherRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	ud := u.Data().([]float32)
	upstreams := make([][]float32, len(gr.sources))
	for i, ref := range gr.refs {
		us := upstreams[ref.Source]
		if us == nil {
			us = make([]float32, gr.sources[ref.Source].Output().Len())
			upstreams[ref.Source] = us
		}
		row := us[ref.Row*gr.cols : (ref.Row+1)*gr.cols]
		for j, x := range ud[i*gr.cols : (i+1)*gr.cols] {
			row[j] += x
		}
	}
	c := u.Creator()
	for i, us := range upstreams {
		if us != nil {
			gr.sources[i].Propagate(c.MakeVectorData(us), g)
		}
	}
}

type straightThroughRes struct {
	in  anydiff.Res
	out anyvec.Vector
}

/*
StraightThrough returns a result whose value is out but whose
gradient is passed unchanged to in, as if the result were in.
out must have in's length.
*/
func StraightThrough(in anydiff.Res, out anyvec.Vector) anydiff.Res {
	if in.Output().Len() != out.Len() {
		panic("straight-through value length mismatch")
	}
	return &straightThroughRes{in: in, out: out}
}

func (st *straightThroughRes) Output() anyvec.Vector {
	return st.out
}

func (st *straightThroughRes) Vars() anydiff.VarSet {
	return st.in.Vars()
}

func (st *straightThroughRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	st.in.Propagate(u, g)
}

// Const returns a constant result holding data
func Const(c anyvec.Creator, data []float32) anydiff.Res {
	return anydiff.NewConst(c.MakeVectorData(data))
}

// Zeros returns a constant result of n zeros
func Zeros(c anyvec.Creator, n int) anydiff.Res {
	return anydiff.NewConst(c.MakeVector(n))
}

// RepeatCols returns a rows x cols matrix, row i filled with
// values[i]. It turns one value per batch row into a mask for
// a batch of vectors.
func RepeatCols(values []float32, cols int) []float32 {
	result := make([]float32, len(values)*cols)
	for i, v := range values {
		row := result[i*cols : (i+1)*cols]
		for j := range row {
			row[j] = v
		}
	}
	return result
}

/*
SliceCols takes a rows x cols row-major matrix and returns the
rows x (end-start) matrix with columns start to end-1.
*/
func SliceCols(in anydiff.Res, rows, cols, start, end int) anydiff.Res {
	width := end - start
	table := make([]int, rows*width)
	for i := 0; i < rows; i++ {
		for j := 0; j < width; j++ {
			table[i*width+j] = i*cols + start + j
		}
	}
	c := in.Output().Creator()
	return anydiff.Map(c.MakeMapper(rows*cols, table), in)
}

/*
Blend returns mask*next + (1-mask)*prev, mask holding one 0 or 1
value per row of the rows x cols matrices next and prev. Rows
with mask 0 copy prev through unchanged.
*/
func Blend(next, prev anydiff.Res, mask []float32, cols int) anydiff.Res {
	c := next.Output().Creator()
	m := Const(c, RepeatCols(mask, cols))
	return anydiff.Add(prev, anydiff.Mul(m, anydiff.Sub(next, prev)))
}

/*
Clamp01 returns in with every component clamped to [0, 1], as
1 - relu(1 - relu(in)).
*/
func Clamp01(in anydiff.Res) anydiff.Res {
	return anydiff.Complement(anydiff.ClipPos(anydiff.Complement(anydiff.ClipPos(in))))
}

/*
MatMulT returns the rows x outCount product of a rows x cols
matrix by the transpose of a outCount x cols matrix of weights.
*/
func MatMulT(in anydiff.Res, rows, cols int, weights anydiff.Res, outCount int) anydiff.Res {
	return anydiff.MatMul(false, true,
		&anydiff.Matrix{Data: in, Rows: rows, Cols: cols},
		&anydiff.Matrix{Data: weights, Rows: outCount, Cols: cols},
	).Data
}

// Float32s returns the components of a vector
func Float32s(v anyvec.Vector) []float32 {
	return v.Data().([]float32)
}
