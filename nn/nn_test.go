package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
)

func creator() anyvec.Creator {
	return anyvec32.CurrentCreator()
}

func variable(data ...float32) *anydiff.Var {
	return anydiff.NewVar(creator().MakeVectorData(data))
}

func floatsClose(a, b []float32, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(float64(a[i]-b[i])) > tol {
			return false
		}
	}
	return true
}

func one() anyvec.Vector {
	return creator().MakeVectorData([]float32{1})
}

func TestTapeBackward(t *testing.T) {
	t.Parallel()
	x := variable(1, 2)
	tp := &Tape{}
	square := tp.Checkpoint(anydiff.Mul(x, x))
	cube := tp.Checkpoint(anydiff.Mul(square, x))
	final := anydiff.Sum(cube)
	if got := Float32s(final.Output()); !floatsClose(got, []float32{9}, 1e-5) {
		t.Fatalf("got output %v, expected [9]", got)
	}
	g := anydiff.Grad{x: creator().MakeVector(2)}
	tp.Backward(final, one(), g)
	if got, want := Float32s(g[x]), []float32{3, 12}; !floatsClose(got, want, 1e-4) {
		t.Errorf("got gradient %v, expected %v", got, want)
	}
	if len(g) != 1 {
		t.Errorf("expected checkpoint variables to be removed from the gradient, got %d entries", len(g))
	}
	if tp.Len() != 2 {
		t.Errorf("expected 2 recorded steps, got %d", tp.Len())
	}
}

func TestGatherRows(t *testing.T) {
	t.Parallel()
	a := variable(1, 2, 3, 4)
	b := variable(5, 6)
	out := GatherRows([]anydiff.Res{a, b}, 2, []RowRef{{1, 0}, {0, 1}, {0, 1}})
	if got, want := Float32s(out.Output()), []float32{5, 6, 3, 4, 3, 4}; !floatsClose(got, want, 0) {
		t.Fatalf("got %v, expected %v", got, want)
	}
	g := anydiff.Grad{a: creator().MakeVector(4), b: creator().MakeVector(2)}
	out.Propagate(creator().MakeVectorData([]float32{1, 2, 3, 4, 5, 6}), g)
	if got, want := Float32s(g[a]), []float32{0, 0, 8, 10}; !floatsClose(got, want, 0) {
		t.Errorf("got gradient %v for a, expected %v", got, want)
	}
	if got, want := Float32s(g[b]), []float32{1, 2}; !floatsClose(got, want, 0) {
		t.Errorf("got gradient %v for b, expected %v", got, want)
	}
}

func TestStraightThrough(t *testing.T) {
	t.Parallel()
	x := variable(0.2, 0.7)
	bits := creator().MakeVectorData([]float32{0, 1})
	st := StraightThrough(anydiff.Scale(x, creator().MakeNumeric(3)), bits)
	if got := Float32s(st.Output()); !floatsClose(got, []float32{0, 1}, 0) {
		t.Fatalf("got output %v, expected [0 1]", got)
	}
	g := anydiff.Grad{x: creator().MakeVector(2)}
	st.Propagate(creator().MakeVectorData([]float32{1, -1}), g)
	if got, want := Float32s(g[x]), []float32{3, -3}; !floatsClose(got, want, 1e-6) {
		t.Errorf("got gradient %v, expected %v", got, want)
	}
}

func TestSliceColsAndBlend(t *testing.T) {
	t.Parallel()
	m := variable(1, 2, 3, 4, 5, 6)
	sliced := SliceCols(m, 2, 3, 1, 3)
	if got, want := Float32s(sliced.Output()), []float32{2, 3, 5, 6}; !floatsClose(got, want, 0) {
		t.Errorf("got %v, expected %v", got, want)
	}
	next := variable(10, 20, 30, 40)
	prev := variable(1, 2, 3, 4)
	blended := Blend(next, prev, []float32{0, 1}, 2)
	if got, want := Float32s(blended.Output()), []float32{1, 2, 30, 40}; !floatsClose(got, want, 0) {
		t.Errorf("got blend %v, expected %v", got, want)
	}
}

func TestClamp01(t *testing.T) {
	t.Parallel()
	x := variable(-2, 0.25, 0.75, 3)
	if got, want := Float32s(Clamp01(x).Output()), []float32{0, 0.25, 0.75, 1}; !floatsClose(got, want, 1e-6) {
		t.Errorf("got %v, expected %v", got, want)
	}
}

func TestEmbeddingLookup(t *testing.T) {
	t.Parallel()
	e := NewEmbedding(creator(), 3, 2, rand.New(rand.NewSource(1)))
	e.Weights.Vector.SetData([]float32{0, 1, 2, 3, 4, 5})
	out := e.Lookup([]int{2, 0, 2})
	if got, want := Float32s(out.Output()), []float32{4, 5, 0, 1, 4, 5}; !floatsClose(got, want, 0) {
		t.Fatalf("got %v, expected %v", got, want)
	}
	g := NewGrad(e.Parameters())
	out.Propagate(creator().MakeVectorData([]float32{1, 1, 1, 1, 1, 1}), g)
	if got, want := Float32s(g[e.Weights]), []float32{1, 1, 0, 0, 2, 2}; !floatsClose(got, want, 0) {
		t.Errorf("got gradient %v, expected %v", got, want)
	}
}

func TestBranchLinear(t *testing.T) {
	t.Parallel()
	bl := NewBranchLinear(creator(), 1, 1, 2)
	// weights of branch 0 and 1, then biases
	bl.Layer.Weights.Vector.SetData([]float32{2, 5})
	bl.Layer.Biases.Vector.SetData([]float32{0, 1})
	in := variable(1, 1, 1)
	out := bl.Apply(in, []int{0, 1, 2})
	if got, want := Float32s(out.Output()), []float32{2, 6, 2}; !floatsClose(got, want, 1e-6) {
		t.Errorf("got %v, expected %v", got, want)
	}
	cases := map[int]int{0: 0, 1: 1, 2: 0, 5: 1, -1: 1}
	for rank, want := range cases {
		if got := bl.Branch(rank); got != want {
			t.Errorf("got branch %d for rank %d, expected %d", got, rank, want)
		}
	}
}

func TestMatMulT(t *testing.T) {
	t.Parallel()
	in := variable(1, 2)
	w := variable(1, 0, 0, 1, 1, 1)
	if got, want := Float32s(MatMulT(in, 1, 2, w, 3).Output()), []float32{1, 2, 3}; !floatsClose(got, want, 1e-6) {
		t.Errorf("got %v, expected %v", got, want)
	}
}

func TestOptimizers(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		want []float32
	}{
		{"sgd", []float32{0.9, 1.2}},
		{"adagrad", []float32{0.9, 1.9}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := variable(1, 2)
			o, err := NewOptimizer(tc.name, 0.1, 0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			g := anydiff.Grad{p: creator().MakeVectorData([]float32{1, 8})}
			o.Step([]*anydiff.Var{p}, g)
			if got := Float32s(p.Vector); !floatsClose(got, tc.want, 1e-5) {
				t.Errorf("got %v, expected %v", got, tc.want)
			}
		})
	}
	if _, err := NewOptimizer("rmsprop", 0.1, 0); err == nil {
		t.Errorf("expected an error for an unknown method")
	}
}

func TestWeightDecay(t *testing.T) {
	t.Parallel()
	p := variable(10)
	o, _ := NewOptimizer("sgd", 0.5, 0.1)
	o.Step([]*anydiff.Var{p}, anydiff.Grad{p: creator().MakeVector(1)})
	if got := Float32s(p.Vector); !floatsClose(got, []float32{9.5}, 1e-5) {
		t.Errorf("got %v, expected [9.5]", got)
	}
}

// checkGradient compares the gradient f propagates into x with
// central differences, f being reduced by a fixed weighting so that
// row-invariant outputs still have informative gradients.
func checkGradient(t *testing.T, x *anydiff.Var, f func(anydiff.Res) anydiff.Res) {
	t.Helper()
	n := f(x).Output().Len()
	weights := make([]float32, n)
	for i := range weights {
		weights[i] = float32(i%5) - 1.5
	}
	loss := func() anydiff.Res {
		return anydiff.Sum(anydiff.Mul(f(x), Const(creator(), weights)))
	}
	g := anydiff.Grad{x: creator().MakeVector(x.Vector.Len())}
	loss().Propagate(one(), g)
	analytic := Float32s(g[x])
	data := Float32s(x.Vector)
	const eps = 1e-2
	for i := range data {
		orig := data[i]
		data[i] = orig + eps
		x.Vector.SetData(data)
		plus := Float32s(loss().Output())[0]
		data[i] = orig - eps
		x.Vector.SetData(data)
		minus := Float32s(loss().Output())[0]
		data[i] = orig
		x.Vector.SetData(data)
		numeric := (plus - minus) / (2 * eps)
		if math.Abs(float64(numeric-analytic[i])) > 2e-3+2e-2*math.Abs(float64(numeric)) {
			t.Errorf("component %d: got gradient %v, expected about %v", i, analytic[i], numeric)
		}
	}
}

func TestSoftmax(t *testing.T) {
	t.Parallel()
	x := variable(0, 0, 1, 2, -1e8, 3)
	got := Float32s(Softmax(x, 3).Output())
	e := float32(math.E)
	want := []float32{1 / (2 + e), 1 / (2 + e), e / (2 + e), 0, 0, 1}
	want[3] = 1 / (1 + e)
	want[5] = e / (1 + e)
	if !floatsClose(got, want, 1e-6) {
		t.Errorf("got %v, expected %v", got, want)
	}
	checkGradient(t, variable(0.5, -1, 2, 0.1, 0.3, -0.4), func(in anydiff.Res) anydiff.Res {
		return Softmax(in, 3)
	})
}

func TestNormalizeRows(t *testing.T) {
	t.Parallel()
	got := Float32s(NormalizeRows(variable(1, 3, 5, 5, 5, 5), 3).Output())
	s := float32(math.Sqrt(1.5))
	if want := []float32{-1.5 / s, 0, 1.5 / s, 0, 0, 0}; !floatsClose(got, want, 1e-4) {
		t.Errorf("got %v, expected %v", got, want)
	}
	checkGradient(t, variable(0.5, -1, 2, 0.1, 0.3, -0.4), func(in anydiff.Res) anydiff.Res {
		return NormalizeRows(in, 3)
	})
}

func TestLayerNorm(t *testing.T) {
	t.Parallel()
	ln := NewLayerNorm(creator(), 2)
	ln.Gain.Vector.SetData([]float32{2, 3})
	ln.Bias.Vector.SetData([]float32{1, -1})
	out := ln.Apply(variable(0, 2, 5, 1), 2)
	if got, want := Float32s(out.Output()), []float32{-1, 2, 3, -4}; !floatsClose(got, want, 1e-4) {
		t.Errorf("got %v, expected %v", got, want)
	}
	g := NewGrad(ln.Parameters())
	out.Propagate(creator().MakeVectorData([]float32{1, 1, 1, 1}), g)
	if got, want := Float32s(g[ln.Bias]), []float32{2, 2}; !floatsClose(got, want, 0) {
		t.Errorf("got bias gradient %v, expected %v", got, want)
	}
}

func TestDropout(t *testing.T) {
	t.Parallel()
	x := variable(1, 1, 1, 1, 1, 1, 1, 1)
	if Dropout(x, 0, nil) != anydiff.Res(x) {
		t.Errorf("expected no dropout to return its input")
	}
	var kept int
	for _, v := range Float32s(Dropout(x, 0.5, rand.New(rand.NewSource(1))).Output()) {
		switch v {
		case 0:
		case 2:
			kept++
		default:
			t.Errorf("got component %v, expected 0 or 2", v)
		}
	}
	if kept == 0 || kept == 8 {
		t.Errorf("expected some but not all components to be dropped, kept %d", kept)
	}
}
