package nn

import (
	"math/rand"

	"github.com/goki/mat32"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyvec"
)

// LayerNormEpsilon is added to the variance of a row before
// normalizing it
const LayerNormEpsilon = 1e-5

type softmaxRes struct {
	in   anydiff.Res
	cols int
	out  anyvec.Vector
}

/*
Softmax takes a row-major matrix with cols columns and returns
the matrix of the softmax of every row.
*/
func Softmax(in anydiff.Res, cols int) anydiff.Res {
	x := Float32s(in.Output())
	y := make([]float32, len(x))
	for start := 0; start < len(x); start += cols {
		row, out := x[start:start+cols], y[start:start+cols]
		max := row[0]
		for _, v := range row {
			if v > max {
				max = v
			}
		}
		var sum float32
		for j, v := range row {
			out[j] = mat32.Exp(v - max)
			sum += out[j]
		}
		for j := range out {
			out[j] /= sum
		}
	}
	return &softmaxRes{in: in, cols: cols, out: in.Output().Creator().MakeVectorData(y)}
}

func (sr *softmaxRes) Output() anyvec.Vector {
	return sr.out
}

func (sr *softmaxRes) Vars() anydiff.VarSet {
	return sr.in.Vars()
}

func (sr *softmaxRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	ud, y := Float32s(u), Float32s(sr.out)
	down := make([]float32, len(ud))
	for start := 0; start < len(ud); start += sr.cols {
		var dot float32
		for j := start; j < start+sr.cols; j++ {
			dot += ud[j] * y[j]
		}
		for j := start; j < start+sr.cols; j++ {
			down[j] = y[j] * (ud[j] - dot)
		}
	}
	sr.in.Propagate(u.Creator().MakeVectorData(down), g)
}

type rowNormRes struct {
	in   anydiff.Res
	cols int
	inv  []float32
	out  anyvec.Vector
}

/*
NormalizeRows takes a row-major matrix with cols columns and
returns it with every row shifted and scaled to zero mean and unit
variance.
*/
func NormalizeRows(in anydiff.Res, cols int) anydiff.Res {
	x := Float32s(in.Output())
	y := make([]float32, len(x))
	inv := make([]float32, len(x)/cols)
	for i := range inv {
		row, out := x[i*cols:(i+1)*cols], y[i*cols:(i+1)*cols]
		var mean, variance float32
		for _, v := range row {
			mean += v
		}
		mean /= float32(cols)
		for _, v := range row {
			variance += (v - mean) * (v - mean)
		}
		variance /= float32(cols)
		inv[i] = 1 / mat32.Sqrt(variance+LayerNormEpsilon)
		for j, v := range row {
			out[j] = (v - mean) * inv[i]
		}
	}
	return &rowNormRes{in: in, cols: cols, inv: inv, out: in.Output().Creator().MakeVectorData(y)}
}

func (rn *rowNormRes) Output() anyvec.Vector {
	return rn.out
}

func (rn *rowNormRes) Vars() anydiff.VarSet {
	return rn.in.Vars()
}

func (rn *rowNormRes) Propagate(u anyvec.Vector, g anydiff.Grad) {
	ud, y := Float32s(u), Float32s(rn.out)
	down := make([]float32, len(ud))
	n := float32(rn.cols)
	for i, inv := range rn.inv {
		start, end := i*rn.cols, (i+1)*rn.cols
		var meanU, meanUY float32
		for j := start; j < end; j++ {
			meanU += ud[j]
			meanUY += ud[j] * y[j]
		}
		meanU /= n
		meanUY /= n
		for j := start; j < end; j++ {
			down[j] = inv * (ud[j] - meanU - y[j]*meanUY)
		}
	}
	rn.in.Propagate(u.Creator().MakeVectorData(down), g)
}

/*
LayerNorm normalizes every row of a matrix and then scales and
shifts each column by a learned gain and bias.
*/
type LayerNorm struct {
	Dim  int
	Gain *anydiff.Var
	Bias *anydiff.Var
}

// NewLayerNorm returns a layer norm with unit gains and zero biases
func NewLayerNorm(c anyvec.Creator, dim int) *LayerNorm {
	gain := make([]float32, dim)
	for i := range gain {
		gain[i] = 1
	}
	return &LayerNorm{
		Dim:  dim,
		Gain: anydiff.NewVar(c.MakeVectorData(gain)),
		Bias: anydiff.NewVar(c.MakeVector(dim)),
	}
}

// Apply normalizes the rows of a rows x Dim matrix
func (ln *LayerNorm) Apply(in anydiff.Res, rows int) anydiff.Res {
	c := in.Output().Creator()
	table := make([]int, rows*ln.Dim)
	for i := range table {
		table[i] = i % ln.Dim
	}
	tile := c.MakeMapper(ln.Dim, table)
	norm := NormalizeRows(in, ln.Dim)
	return anydiff.Add(anydiff.Mul(norm, anydiff.Map(tile, ln.Gain)), anydiff.Map(tile, ln.Bias))
}

// Parameters returns the gain and bias of the layer norm
func (ln *LayerNorm) Parameters() []*anydiff.Var {
	return []*anydiff.Var{ln.Gain, ln.Bias}
}

/*
Dropout zeroes every component of in with probability p, drawn
from r, and scales the kept ones by 1/(1-p). It returns in itself
when p is not positive.
*/
func Dropout(in anydiff.Res, p float64, r *rand.Rand) anydiff.Res {
	if p <= 0 {
		return in
	}
	mask := make([]float32, in.Output().Len())
	keep := float32(1 / (1 - p))
	for i := range mask {
		if r.Float64() >= p {
			mask[i] = keep
		}
	}
	return anydiff.Mul(in, Const(in.Output().Creator(), mask))
}

/*
FeedForward is a position-wise network of two dense layers with a
rectifier between them.
*/
type FeedForward struct {
	Hidden *anynet.FC
	Output *anynet.FC
}

// NewFeedForward returns a feed-forward network mapping dim to
// hidden units and back
func NewFeedForward(c anyvec.Creator, dim, hidden int) *FeedForward {
	return &FeedForward{
		Hidden: anynet.NewFC(c, dim, hidden),
		Output: anynet.NewFC(c, hidden, dim),
	}
}

// Apply maps every row of a rows x dim matrix, dropping hidden
// units with probability p when r is not nil
func (ff *FeedForward) Apply(in anydiff.Res, rows int, p float64, r *rand.Rand) anydiff.Res {
	hidden := anydiff.ClipPos(ff.Hidden.Apply(in, rows))
	if r != nil {
		hidden = Dropout(hidden, p, r)
	}
	return ff.Output.Apply(hidden, rows)
}

// Parameters returns the weights and biases of both layers
func (ff *FeedForward) Parameters() []*anydiff.Var {
	return append(ff.Hidden.Parameters(), ff.Output.Parameters()...)
}
