package batch

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"github.com/pbanos/treehash/dataset"
	"github.com/pbanos/treehash/tree"
)

type testVocab map[string]int

func (tv testVocab) IDOf(label string) int {
	if id, ok := tv[label]; ok {
		return id
	}
	return 1
}

var labels = testVocab{"S": 2, "NP": 3, "VP": 4, "V": 5}

func sample(t *testing.T, id int, text string) dataset.Sample {
	t.Helper()
	tr, err := tree.ParseStructure(text, tree.Unlimited, tree.Unlimited)
	if err != nil {
		t.Fatalf("parsing %q: %v", text, err)
	}
	tr.ResolveLabels(labels)
	return dataset.Sample{ID: id, Tree: tr}
}

func TestNew(t *testing.T) {
	t.Parallel()
	b := New([]dataset.Sample{
		sample(t, 7, "(S (NP a) (VP (V b) (NP c)))"),
		sample(t, 3, "(S (NP a))"),
	})
	if err := b.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if !reflect.DeepEqual(b.IDs, []int{7, 3}) {
		t.Errorf("got ids %v", b.IDs)
	}
	if b.EncodeLen() != 6 || b.DecodeLen() != 5 || b.MaxChildren() != 2 {
		t.Errorf("got shape enc %d dec %d children %d, expected 6 5 2", b.EncodeLen(), b.DecodeLen(), b.MaxChildren())
	}
	if b.S != nil {
		t.Errorf("expected no source tensor")
	}
	if got, want := b.X.Values, []int32{0, 3, 5, 3, 4, 2, 0, 3, 2, 0, 0, 0}; !reflect.DeepEqual(got, want) {
		t.Errorf("got X %v, expected %v", got, want)
	}
	if got, want := b.XM.Values, []float32{0, 1, 1, 1, 1, 1, 0, 1, 1, 0, 0, 0}; !reflect.DeepEqual(got, want) {
		t.Errorf("got XM %v, expected %v", got, want)
	}
	if got, want := b.XC.Value([]int{0, 5, 1}), int32(4); got != want {
		t.Errorf("got root second child %d, expected %d", got, want)
	}
	if got, want := b.XC.Value([]int{1, 2, 0}), int32(1); got != want {
		t.Errorf("got root first child %d, expected %d", got, want)
	}
	if got := b.XMC.Value([]int{1, 2, 1}); got != 0 {
		t.Errorf("expected padded child mask to be 0, got %v", got)
	}
	if got, want := b.Y.Values, []int32{2, 3, 4, 5, 3, 2, 3, 0, 0, 0}; !reflect.DeepEqual(got, want) {
		t.Errorf("got Y %v, expected %v", got, want)
	}
	if got, want := b.YP.Values, []int32{0, 0, 0, 2, 2, 0, 0, 0, 0, 0}; !reflect.DeepEqual(got, want) {
		t.Errorf("got YP %v, expected %v", got, want)
	}
	if got, want := b.YR.Values, []int32{0, 0, 1, 0, 1, 0, 0, 0, 0, 0}; !reflect.DeepEqual(got, want) {
		t.Errorf("got YR %v, expected %v", got, want)
	}
	if got, want := b.YM.Values, []float32{1, 1, 1, 1, 1, 1, 1, 0, 0, 0}; !reflect.DeepEqual(got, want) {
		t.Errorf("got YM %v, expected %v", got, want)
	}
	stats := b.SizeStats()
	if stats.Max != 5 || stats.Avg != 3.5 {
		t.Errorf("got size stats max %v avg %v, expected 5 3.5", stats.Max, stats.Avg)
	}
}

func TestNewSingleNodeTrees(t *testing.T) {
	t.Parallel()
	b := New([]dataset.Sample{sample(t, 0, "(S a)"), sample(t, 1, "(NP b)")})
	if b.MaxChildren() != 1 {
		t.Errorf("expected children dimension of 1, got %d", b.MaxChildren())
	}
	if err := b.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestNewWithSource(t *testing.T) {
	t.Parallel()
	s1 := sample(t, 0, "(S (NP a))")
	s1.Source = []int{4, 5, 6}
	s2 := sample(t, 1, "(S (VP b))")
	s2.Source = []int{7}
	b := New([]dataset.Sample{s1, s2})
	if b.SourceLen() != 3 {
		t.Fatalf("expected source length 3, got %d", b.SourceLen())
	}
	if got, want := b.S.Values, []int32{4, 5, 6, 7, 0, 0}; !reflect.DeepEqual(got, want) {
		t.Errorf("got S %v, expected %v", got, want)
	}
	if err := b.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestValidateDetectsMismatch(t *testing.T) {
	t.Parallel()
	b := New([]dataset.Sample{sample(t, 0, "(S (NP a) (VP b))")})
	b.YM.Set([]int{0, 2}, 0)
	err := b.Validate()
	var sme *ShapeMismatchError
	if !errors.As(err, &sme) {
		t.Fatalf("expected a *ShapeMismatchError, got %v", err)
	}
	if sme.Field != "YM" {
		t.Errorf("expected mismatch on YM, got %s", sme.Field)
	}

	b = New([]dataset.Sample{sample(t, 0, "(S (NP a) (VP b))")})
	b.XC.Set([]int{0, 3, 0}, 3)
	if err := b.Validate(); err == nil {
		t.Errorf("expected an error for a child index that is not yet computed")
	}
}

func trees(t *testing.T, sizes ...int) []dataset.Sample {
	t.Helper()
	texts := map[int]string{
		1: "(S a)",
		2: "(S (NP a))",
		3: "(S (NP a) (VP b))",
		4: "(S (NP a) (VP (V b)))",
		5: "(S (NP a) (VP (V b) (NP c)))",
	}
	var result []dataset.Sample
	for i, s := range sizes {
		result = append(result, sample(t, i, texts[s]))
	}
	return result
}

func batchSizes(bs []*Batch) [][]int {
	var result [][]int
	for _, b := range bs {
		var sizes []int
		for _, tr := range b.Trees {
			sizes = append(sizes, tr.Size())
		}
		result = append(result, sizes)
	}
	return result
}

func TestSplit(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name      string
		train     bool
		endOfData bool
		want      [][]int
		leaked    int
	}{
		{"eval end of data", false, true, [][]int{{1, 2}, {3, 4}, {5}}, 0},
		{"train end of data", true, true, [][]int{{1, 2}, {3, 4}}, 1},
		{"eval mid data", false, false, [][]int{{1, 2}, {3, 4}}, 1},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			br := &Batcher{Size: 2, BufferSize: 10, Train: tc.train}
			got := br.Split(trees(t, 5, 3, 1, 4, 2), tc.endOfData)
			if !reflect.DeepEqual(batchSizes(got), tc.want) {
				t.Errorf("got batches %v, expected %v", batchSizes(got), tc.want)
			}
			if br.Leaked() != tc.leaked {
				t.Errorf("got %d leaked samples, expected %d", br.Leaked(), tc.leaked)
			}
		})
	}
}

func TestLeakedSamplesJoinNextPass(t *testing.T) {
	t.Parallel()
	br := &Batcher{Size: 2, BufferSize: 10, Train: true}
	first := br.Split(trees(t, 1, 2, 3), true)
	if len(first) != 1 || br.Leaked() != 1 {
		t.Fatalf("expected 1 batch and 1 leaked sample, got %d and %d", len(first), br.Leaked())
	}
	second := br.Split(trees(t, 4), true)
	if !reflect.DeepEqual(batchSizes(second), [][]int{{3, 4}}) {
		t.Errorf("got batches %v, expected [[3 4]]", batchSizes(second))
	}
}

func TestBatches(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	samples, errs := dataset.New(trees(t, 5, 1, 4, 2, 3, 1, 5)).Read(ctx)
	br := &Batcher{Size: 2, BufferSize: 4, Shuffle: true, Rand: rand.New(rand.NewSource(3))}
	batches, berrs := br.Batches(ctx, samples)
	seen := map[int]bool{}
	for b := range batches {
		if err := b.Validate(); err != nil {
			t.Errorf("unexpected validation error: %v", err)
		}
		for _, id := range b.IDs {
			if seen[id] {
				t.Errorf("sample %d in more than one batch", id)
			}
			seen[id] = true
		}
	}
	if err := <-berrs; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := <-errs; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != 7 {
		t.Errorf("expected every sample to be batched once in eval mode, got %d", len(seen))
	}
}
