package nn

import (
	"fmt"

	"github.com/goki/mat32"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/anyvec"
)

/*
Optimizer applies gradients to parameters: weight decay is added
to the gradient, the result goes through the Transformer, if any,
and the parameters move Rate times the transformed gradient
against it.
*/
type Optimizer struct {
	Name        string
	Transformer anysgd.Transformer
	Rate        float64
	WeightDecay float64
}

/*
NewOptimizer takes the name of an optimization method (adagrad, adam
or sgd), a learning rate and a weight decay and returns the
corresponding optimizer, or an error if the method is unknown.
*/
func NewOptimizer(name string, rate, weightDecay float64) (*Optimizer, error) {
	o := &Optimizer{Name: name, Rate: rate, WeightDecay: weightDecay}
	switch name {
	case "adagrad":
		o.Transformer = &Adagrad{}
	case "adam":
		o.Transformer = &anysgd.Adam{}
	case "sgd":
	default:
		return nil, fmt.Errorf("unknown optimization method %q", name)
	}
	return o, nil
}

/*
Step updates the given parameters with their gradients in g. The
gradient vectors are consumed and must not be used afterwards.
Parameters missing from g are left unchanged.
*/
func (o *Optimizer) Step(params []*anydiff.Var, g anydiff.Grad) {
	if o.WeightDecay != 0 {
		for _, p := range params {
			gv, ok := g[p]
			if !ok {
				continue
			}
			decay := p.Vector.Copy()
			decay.Scale(gv.Creator().MakeNumeric(o.WeightDecay))
			gv.Add(decay)
		}
	}
	if o.Transformer != nil {
		g = o.Transformer.Transform(g)
	}
	for _, p := range params {
		gv, ok := g[p]
		if !ok {
			continue
		}
		update := gv.Copy()
		update.Scale(gv.Creator().MakeNumeric(-o.Rate))
		p.Vector.Add(update)
	}
}

// NewGrad returns a zero gradient for the given parameters
func NewGrad(params []*anydiff.Var) anydiff.Grad {
	g := anydiff.Grad{}
	for _, p := range params {
		g[p] = p.Vector.Creator().MakeVector(p.Vector.Len())
	}
	return g
}

/*
Adagrad is an anysgd.Transformer dividing every gradient component
by the square root of the sum of the squares of all the values it
has taken so far.
*/
type Adagrad struct {
	// Damping is added to the denominator, 1e-10 if zero
	Damping float32

	sums map[*anydiff.Var][]float32
}

// Transform scales g in place and returns it
func (a *Adagrad) Transform(g anydiff.Grad) anydiff.Grad {
	if a.sums == nil {
		a.sums = map[*anydiff.Var][]float32{}
	}
	damping := a.Damping
	if damping == 0 {
		damping = 1e-10
	}
	for p, v := range g {
		data := v.Data().([]float32)
		sums, ok := a.sums[p]
		if !ok {
			sums = make([]float32, len(data))
			a.sums[p] = sums
		}
		for i, x := range data {
			sums[i] += x * x
			data[i] = x / (mat32.Sqrt(sums[i]) + damping)
		}
		v.SetData(anyvec.NumericList(data))
	}
	return g
}
