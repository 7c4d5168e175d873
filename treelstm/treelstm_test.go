package treelstm

import (
	"math"
	"math/rand"
	"testing"

	"github.com/pbanos/treehash/batch"
	"github.com/pbanos/treehash/dataset"
	"github.com/pbanos/treehash/nn"
	"github.com/pbanos/treehash/tree"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec32"
)

type testVocab map[string]int

func (tv testVocab) IDOf(label string) int {
	if id, ok := tv[label]; ok {
		return id
	}
	return 1
}

var labels = testVocab{"S": 2, "NP": 3, "VP": 4, "V": 5}

func newBatch(t *testing.T, texts ...string) *batch.Batch {
	t.Helper()
	var samples []dataset.Sample
	for i, text := range texts {
		tr, err := tree.ParseStructure(text, tree.Unlimited, tree.Unlimited)
		if err != nil {
			t.Fatalf("parsing %q: %v", text, err)
		}
		tr.ResolveLabels(labels)
		samples = append(samples, dataset.Sample{ID: i, Tree: tr})
	}
	return batch.New(samples)
}

func creator() anyvec.Creator {
	return anyvec32.CurrentCreator()
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

func row(r anydiff.Res, i, cols int) []float32 {
	return nn.Float32s(r.Output())[i*cols : (i+1)*cols]
}

const (
	short = "(S (NP a) (VP b))"
	long  = "(S (NP a) (VP (V b) (NP c)))"
)

func TestEncoderPaddingInvariance(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(42))
	emb := nn.NewEmbedding(creator(), 6, 3, r)
	enc := NewEncoder(creator(), 3, 4)

	alone := enc.Encode(&nn.Tape{}, emb, newBatch(t, short))
	padded := enc.Encode(&nn.Tape{}, emb, newBatch(t, short, long))
	if got, want := row(padded.H, 0, 4), row(alone.H, 0, 4); !floatsClose(got, want, 1e-5) {
		t.Errorf("root hidden state changed with padding: got %v, expected %v", got, want)
	}
	if got, want := row(padded.C, 0, 4), row(alone.C, 0, 4); !floatsClose(got, want, 1e-5) {
		t.Errorf("root memory cell changed with padding: got %v, expected %v", got, want)
	}
	longAlone := enc.Encode(&nn.Tape{}, emb, newBatch(t, long))
	if got, want := row(padded.H, 1, 4), row(longAlone.H, 0, 4); !floatsClose(got, want, 1e-5) {
		t.Errorf("longest tree root changed when batched: got %v, expected %v", got, want)
	}
}

func TestEncoderChildOrderInvariance(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(7))
	emb := nn.NewEmbedding(creator(), 6, 3, r)
	enc := NewEncoder(creator(), 3, 4)
	a := enc.Encode(&nn.Tape{}, emb, newBatch(t, "(S (NP a) (VP b))"))
	b := enc.Encode(&nn.Tape{}, emb, newBatch(t, "(S (VP b) (NP a))"))
	if !floatsClose(row(a.H, 0, 4), row(b.H, 0, 4), 1e-5) {
		t.Errorf("child-sum composition depends on child order: %v vs %v", row(a.H, 0, 4), row(b.H, 0, 4))
	}
}

func TestDecoderPadding(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(3))
	emb := nn.NewEmbedding(creator(), 6, 3, r)
	dec := NewDecoder(creator(), 3, 4, 2)
	initRow := make([]float32, 8)
	for i := range initRow {
		initRow[i] = float32(r.NormFloat64())
	}
	other := make([]float32, 8)
	for i := range other {
		other[i] = float32(r.NormFloat64())
	}
	alone := dec.Decode(&nn.Tape{}, emb, newBatch(t, short), nn.Const(creator(), initRow))
	padded := dec.Decode(&nn.Tape{}, emb, newBatch(t, short, long), nn.Const(creator(), append(append([]float32{}, initRow...), other...)))
	if len(alone) != 3 || len(padded) != 5 {
		t.Fatalf("got %d and %d positions, expected 3 and 5", len(alone), len(padded))
	}
	for i := range alone {
		if got, want := row(padded[i], 0, 4), row(alone[i], 0, 4); !floatsClose(got, want, 1e-5) {
			t.Errorf("position %d changed with padding: got %v, expected %v", i, got, want)
		}
	}
	for i := 3; i < 5; i++ {
		if got, want := row(padded[i], 0, 4), row(padded[0], 0, 4); !floatsClose(got, want, 0) {
			t.Errorf("padding position %d should copy the root state: got %v, expected %v", i, got, want)
		}
	}
}

func TestDecoderRootState(t *testing.T) {
	t.Parallel()
	dec := NewDecoder(creator(), 3, 2, 1)
	emb := nn.NewEmbedding(creator(), 6, 3, rand.New(rand.NewSource(1)))
	hs := dec.Decode(&nn.Tape{}, emb, newBatch(t, "(S a)"), nn.Const(creator(), []float32{1, 2, 3, 4}))
	if got := row(hs[0], 0, 2); !floatsClose(got, []float32{3, 4}, 0) {
		t.Errorf("got root hidden vector %v, expected the second half of the initial state", got)
	}
}

// gradientCheck compares the gradient computed through the tape
// with central differences on a few components of each parameter.
func gradientCheck(t *testing.T, params []*anydiff.Var, forward func(tp *nn.Tape) anydiff.Res) {
	t.Helper()
	tp := &nn.Tape{}
	out := anydiff.Sum(forward(tp))
	g := nn.NewGrad(params)
	tp.Backward(out, creator().MakeVectorData([]float32{1}), g)
	const eps = 1e-2
	for pi, p := range params {
		analytic := nn.Float32s(g[p])
		data := nn.Float32s(p.Vector)
		for _, idx := range []int{0, len(data) / 2, len(data) - 1} {
			orig := data[idx]
			data[idx] = orig + eps
			p.Vector.SetData(data)
			plus := nn.Float32s(anydiff.Sum(forward(&nn.Tape{})).Output())[0]
			data[idx] = orig - eps
			p.Vector.SetData(data)
			minus := nn.Float32s(anydiff.Sum(forward(&nn.Tape{})).Output())[0]
			data[idx] = orig
			p.Vector.SetData(data)
			numeric := (plus - minus) / (2 * eps)
			if math.Abs(float64(numeric-analytic[idx])) > 2e-3+2e-2*math.Abs(float64(numeric)) {
				t.Errorf("parameter %d component %d: got gradient %v, expected about %v", pi, idx, analytic[idx], numeric)
			}
		}
	}
}

func TestEncoderGradient(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(5))
	emb := nn.NewEmbedding(creator(), 6, 3, r)
	enc := NewEncoder(creator(), 3, 4)
	b := newBatch(t, short, long)
	params := append(enc.Parameters(), emb.Parameters()...)
	gradientCheck(t, params, func(tp *nn.Tape) anydiff.Res {
		return enc.Encode(tp, emb, b).H
	})
}

func TestDecoderGradient(t *testing.T) {
	t.Parallel()
	r := rand.New(rand.NewSource(6))
	emb := nn.NewEmbedding(creator(), 6, 3, r)
	dec := NewDecoder(creator(), 3, 4, 2)
	init := nn.NewMatrix(creator(), 2, 8, r)
	b := newBatch(t, short, long)
	params := append(dec.Parameters(), emb.Parameters()...)
	params = append(params, init)
	gradientCheck(t, params, func(tp *nn.Tape) anydiff.Res {
		hs := dec.Decode(tp, emb, b, init)
		return anydiff.Concat(hs...)
	})
}
