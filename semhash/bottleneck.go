/*
Package semhash implements improved semantic hashing: a bottleneck
squeezing a dense vector into a few bits and expanding those bits
back into a dense vector, trained through a straight-through
estimator and a schedule mixing discrete and continuous values.
*/
package semhash

import (
	"math/rand"

	"github.com/pbanos/treehash/nn"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyvec"
)

// Bottleneck turns batches of InDim vectors into Bits-bit codes
// and dense vectors reconstructed from them
type Bottleneck struct {
	InDim      int
	Bits       int
	FilterSize int

	// NoiseDev is the deviation of the gaussian noise added to
	// the logits of the bits during training, 0 for none
	NoiseDev float64
	// StartupSteps is half the number of steps it takes for the
	// probability of using discrete bits to reach DiscreteMix
	StartupSteps int
	// DiscreteMix is the highest probability of using discrete
	// bits during training
	DiscreteMix float64

	IToZ   *anynet.FC
	DenseA *anynet.FC
	DenseB *anynet.FC
	Dense  *anynet.FC
}

// New returns a bottleneck with random parameters
func New(c anyvec.Creator, inDim, bits, filterSize int, noiseDev float64, startupSteps int, discreteMix float64) *Bottleneck {
	return &Bottleneck{
		InDim:        inDim,
		Bits:         bits,
		FilterSize:   filterSize,
		NoiseDev:     noiseDev,
		StartupSteps: startupSteps,
		DiscreteMix:  discreteMix,
		IToZ:         anynet.NewFC(c, inDim, bits),
		DenseA:       anynet.NewFC(c, bits, filterSize),
		DenseB:       anynet.NewFC(c, bits, filterSize),
		Dense:        anynet.NewFC(c, filterSize, inDim),
	}
}

// Output is the result of applying a bottleneck to a batch
type Output struct {
	// Dense holds the batch x InDim reconstructed vectors
	Dense anydiff.Res
	// Codes holds the code of every vector of the batch
	Codes []int
}

/*
Apply takes a batch x InDim matrix, the batch size, whether the
bottleneck is training and the current training step, and returns
the output of the bottleneck.

In training, noise is added to the logits and each vector of the
batch goes through its discrete bits with a probability that
grows with step towards DiscreteMix, and through the continuous
squashed values otherwise. Outside training the discrete bits are
always used and no noise is added, so equal inputs yield equal
codes. r is the source for noise and mixing decisions and may be
nil outside training. Apply panics when training without one.
*/
func (bn *Bottleneck) Apply(in anydiff.Res, size int, training bool, step int, r *rand.Rand) *Output {
	if training && r == nil {
		panic("training the bottleneck requires a random source")
	}
	c := in.Output().Creator()
	z := bn.IToZ.Apply(in, size)
	clean := SaturatingSigmoid(z)
	y := clean
	if training && bn.NoiseDev > 0 {
		noise := make([]float32, size*bn.Bits)
		for i := range noise {
			noise[i] = float32(r.NormFloat64() * bn.NoiseDev)
		}
		y = SaturatingSigmoid(anydiff.Add(z, nn.Const(c, noise)))
	}

	ys := nn.Float32s(y.Output())
	bits := make([]float32, len(ys))
	for i, v := range ys {
		if v > 0.5 {
			bits[i] = 1
		}
	}
	discrete := nn.StraightThrough(y, c.MakeVectorData(bits))

	pd := 1.0
	if training {
		pd = InverseExpDecay(bn.StartupSteps*2, 0.01, step) * bn.DiscreteMix
	}
	mask := make([]float32, size)
	for i := range mask {
		if !training || r.Float64() < pd {
			mask[i] = 1
		}
	}
	mixed := nn.Blend(discrete, y, mask, bn.Bits)

	hidden := anydiff.ClipPos(anydiff.Add(
		bn.DenseA.Apply(mixed, size),
		bn.DenseB.Apply(anydiff.Complement(mixed), size),
	))
	return &Output{
		Dense: bn.Dense.Apply(hidden, size),
		Codes: Codes(bits, bn.Bits),
	}
}

// Parameters returns the parameters of the bottleneck
func (bn *Bottleneck) Parameters() []*anydiff.Var {
	var res []*anydiff.Var
	for _, l := range []*anynet.FC{bn.IToZ, bn.DenseA, bn.DenseB, bn.Dense} {
		res = append(res, l.Parameters()...)
	}
	return res
}

// SaturatingSigmoid returns 1.2*sigmoid(x)-0.1 clamped to [0, 1]
func SaturatingSigmoid(x anydiff.Res) anydiff.Res {
	c := x.Output().Creator()
	s := anydiff.Scale(anydiff.Sigmoid(x), c.MakeNumeric(1.2))
	return nn.Clamp01(anydiff.AddScalar(s, c.MakeNumeric(-0.1)))
}

// Codes packs every row of n 0/1 bits of a matrix into a code,
// lower-endian
func Codes(bits []float32, n int) []int {
	codes := make([]int, len(bits)/n)
	digits := make([]int, n)
	for i := range codes {
		for j := range digits {
			digits[j] = int(bits[i*n+j])
		}
		codes[i] = BitsToInt(digits, 2)
	}
	return codes
}
