/*
Package attention implements a self-attention encoder for token
sequences: sinusoid positions followed by layers of multi-head
self-attention and feed-forward networks, each wrapped in a
residual connection and a layer norm.

Sequences of a batch are laid out one after another as the rows of
a single matrix. Padding tokens and tokens of other sequences are
masked out of every attention.
*/
package attention

import (
	"math"
	"math/rand"

	"github.com/goki/mat32"
	"github.com/pbanos/treehash/nn"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyvec"
)

// MaskedLogit is added to the attention logit of a masked key
const MaskedLogit = -1e8

// Layer is a self-attention layer followed by a feed-forward layer
type Layer struct {
	Heads int
	Dim   int

	Query    *anynet.FC
	Key      *anynet.FC
	Value    *anynet.FC
	Mapper   *anynet.FC
	AttnNorm *nn.LayerNorm

	FFN     *nn.FeedForward
	FFNNorm *nn.LayerNorm
}

// Encoder is a stack of layers
type Encoder struct {
	Dim     int
	Heads   int
	Dropout float64
	Layers  []*Layer
}

/*
NewEncoder takes a creator, a number of layers and heads, the
model dimension, the hidden size of the feed-forward layers and
the dropout probability of residual and hidden units, and returns
an encoder with random parameters. heads must divide dim.
*/
func NewEncoder(c anyvec.Creator, layers, heads, dim, inner int, dropout float64) *Encoder {
	if heads < 1 || dim%heads != 0 {
		panic("attention heads must divide the model dimension")
	}
	e := &Encoder{Dim: dim, Heads: heads, Dropout: dropout}
	for i := 0; i < layers; i++ {
		e.Layers = append(e.Layers, &Layer{
			Heads:    heads,
			Dim:      dim,
			Query:    anynet.NewFC(c, dim, dim),
			Key:      anynet.NewFC(c, dim, dim),
			Value:    anynet.NewFC(c, dim, dim),
			Mapper:   anynet.NewFC(c, dim, dim),
			AttnNorm: nn.NewLayerNorm(c, dim),
			FFN:      nn.NewFeedForward(c, dim, inner),
			FFNNorm:  nn.NewLayerNorm(c, dim),
		})
	}
	return e
}

/*
Encode takes the (size*length) x Dim matrix of the embeddings of
size sequences of length tokens, a 0/1 mask with a value per token,
0 for padding, and a random source, and returns the encoded tokens
in the same layout. Dropout is applied only when r is not nil.
*/
func (e *Encoder) Encode(in anydiff.Res, mask []float32, size, length int, r *rand.Rand) anydiff.Res {
	n := size * length
	c := in.Output().Creator()
	x := anydiff.Add(in, nn.Const(c, PositionSignal(size, length, e.Dim)))
	keys := nn.Const(c, KeyMask(mask, size, length))
	for _, l := range e.Layers {
		y := l.attend(x, keys, n)
		x = l.AttnNorm.Apply(anydiff.Add(x, e.dropout(y, r)), n)
		y = l.FFN.Apply(x, n, e.Dropout, r)
		x = l.FFNNorm.Apply(anydiff.Add(x, e.dropout(y, r)), n)
	}
	return x
}

func (e *Encoder) dropout(in anydiff.Res, r *rand.Rand) anydiff.Res {
	if r == nil {
		return in
	}
	return nn.Dropout(in, e.Dropout, r)
}

// attend returns the multi-head self-attention of the n rows of x
func (l *Layer) attend(x, keys anydiff.Res, n int) anydiff.Res {
	c := x.Output().Creator()
	dh := l.Dim / l.Heads
	q := anydiff.Scale(l.Query.Apply(x, n), c.MakeNumeric(1/math.Sqrt(float64(dh))))
	k := l.Key.Apply(x, n)
	v := l.Value.Apply(x, n)
	heads := make([]anydiff.Res, l.Heads)
	for h := range heads {
		start, end := h*dh, (h+1)*dh
		logits := anydiff.MatMul(false, true,
			&anydiff.Matrix{Data: nn.SliceCols(q, n, l.Dim, start, end), Rows: n, Cols: dh},
			&anydiff.Matrix{Data: nn.SliceCols(k, n, l.Dim, start, end), Rows: n, Cols: dh},
		).Data
		weights := nn.Softmax(anydiff.Add(logits, keys), n)
		heads[h] = anydiff.MatMul(false, false,
			&anydiff.Matrix{Data: weights, Rows: n, Cols: n},
			&anydiff.Matrix{Data: nn.SliceCols(v, n, l.Dim, start, end), Rows: n, Cols: dh},
		).Data
	}
	// heads are concatenated head-major, rows want them side by side
	table := make([]int, n*l.Dim)
	for row := 0; row < n; row++ {
		for h := 0; h < l.Heads; h++ {
			for d := 0; d < dh; d++ {
				table[row*l.Dim+h*dh+d] = (h*n+row)*dh + d
			}
		}
	}
	joined := anydiff.Map(c.MakeMapper(n*l.Dim, table), anydiff.Concat(heads...))
	return l.Mapper.Apply(joined, n)
}

// Parameters returns the parameters of the layer
func (l *Layer) Parameters() []*anydiff.Var {
	var res []*anydiff.Var
	for _, fc := range []*anynet.FC{l.Query, l.Key, l.Value, l.Mapper} {
		res = append(res, fc.Parameters()...)
	}
	res = append(res, l.AttnNorm.Parameters()...)
	res = append(res, l.FFN.Parameters()...)
	return append(res, l.FFNNorm.Parameters()...)
}

// Parameters returns the parameters of every layer
func (e *Encoder) Parameters() []*anydiff.Var {
	var res []*anydiff.Var
	for _, l := range e.Layers {
		res = append(res, l.Parameters()...)
	}
	return res
}

/*
KeyMask returns the (size*length) x (size*length) matrix added to
attention logits: 0 where the key is a token of the query's own
sequence, MaskedLogit otherwise.
*/
func KeyMask(mask []float32, size, length int) []float32 {
	n := size * length
	res := make([]float32, n*n)
	for q := 0; q < n; q++ {
		for k := 0; k < n; k++ {
			if q/length != k/length || mask[k] == 0 {
				res[q*n+k] = MaskedLogit
			}
		}
	}
	return res
}

/*
PositionSignal returns the (size*length) x dim matrix of sinusoid
position encodings, sines in the first half of the columns and
cosines in the second, with timescales from 1 to 1e4. An odd last
column is left at 0.
*/
func PositionSignal(size, length, dim int) []float32 {
	timescales := dim / 2
	var increment float64
	if timescales > 1 {
		increment = math.Log(1e4) / float64(timescales-1)
	}
	row := make([]float32, length*dim)
	for t := 0; t < length; t++ {
		for i := 0; i < timescales; i++ {
			scaled := float32(float64(t) * math.Exp(-float64(i)*increment))
			row[t*dim+i] = mat32.Sin(scaled)
			row[t*dim+timescales+i] = mat32.Cos(scaled)
		}
	}
	res := make([]float32, 0, size*len(row))
	for i := 0; i < size; i++ {
		res = append(res, row...)
	}
	return res
}
