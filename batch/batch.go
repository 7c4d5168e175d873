/*
Package batch groups linearized trees into padded tensors that
the tree encoder and decoder process one traversal step at a
time for every tree of the batch at once.
*/
package batch

import (
	"fmt"

	"github.com/emer/etable/etensor"
	"github.com/emer/etable/minmax"
	"github.com/pbanos/treehash/dataset"
	"github.com/pbanos/treehash/tree"
)

/*
Batch holds a group of trees as padded tensors. Encode tensors
have their first column reserved for the dummy node, so the
encode sequence of a tree fills columns 1..N of its row. Decode
tensors are filled from column 0.
*/
type Batch struct {
	// IDs holds the sample ids of the trees, in batch order
	IDs   []int
	Trees []*tree.Tree

	// X holds encode label ids, [batch, encLen]
	X *etensor.Int32
	// XC holds the encode indices of children, [batch, encLen, maxChildren]
	XC *etensor.Int32
	// XM is 1 where X holds a node, [batch, encLen]
	XM *etensor.Float32
	// XMC is 1 where XC holds a child, [batch, encLen, maxChildren]
	XMC *etensor.Float32

	// Y holds decode label ids, [batch, decLen]
	Y *etensor.Int32
	// YP holds the decode index of parents, [batch, decLen]
	YP *etensor.Int32
	// YR holds the rank among siblings, [batch, decLen]
	YR *etensor.Int32
	// YM is 1 where Y holds a node, [batch, decLen]
	YM *etensor.Float32

	// S holds source token ids, 0 being padding, [batch, srcLen].
	// It is nil unless some sample had a source.
	S *etensor.Int32
}

// ShapeMismatchError is the error returned by Validate when the
// tensors of a batch do not agree with each other
type ShapeMismatchError struct {
	Field  string
	Reason string
}

func (sme *ShapeMismatchError) Error() string {
	return fmt.Sprintf("batch shape mismatch on %s: %s", sme.Field, sme.Reason)
}

/*
New takes a slice of samples and returns a batch with their trees
linearized and padded to the longest encode sequence, decode
sequence and children list among them. Label ids must have been
resolved on the trees.
*/
func New(samples []dataset.Sample) *Batch {
	size := len(samples)
	encs := make([][]tree.EncodeEntry, size)
	decs := make([][]tree.DecodeEntry, size)
	encLen, decLen, maxChildren, srcLen := 0, 0, 1, 0
	withSource := false
	for i, s := range samples {
		encs[i], decs[i] = tree.Linearize(s.Tree)
		if l := len(encs[i]) + 1; l > encLen {
			encLen = l
		}
		if l := len(decs[i]); l > decLen {
			decLen = l
		}
		for _, e := range encs[i] {
			if len(e.Children) > maxChildren {
				maxChildren = len(e.Children)
			}
		}
		if s.Source != nil {
			withSource = true
			if len(s.Source) > srcLen {
				srcLen = len(s.Source)
			}
		}
	}
	b := &Batch{
		IDs:   make([]int, size),
		Trees: make([]*tree.Tree, size),
		X:     etensor.NewInt32([]int{size, encLen}, nil, nil),
		XC:    etensor.NewInt32([]int{size, encLen, maxChildren}, nil, nil),
		XM:    etensor.NewFloat32([]int{size, encLen}, nil, nil),
		XMC:   etensor.NewFloat32([]int{size, encLen, maxChildren}, nil, nil),
		Y:     etensor.NewInt32([]int{size, decLen}, nil, nil),
		YP:    etensor.NewInt32([]int{size, decLen}, nil, nil),
		YR:    etensor.NewInt32([]int{size, decLen}, nil, nil),
		YM:    etensor.NewFloat32([]int{size, decLen}, nil, nil),
	}
	if withSource {
		if srcLen == 0 {
			srcLen = 1
		}
		b.S = etensor.NewInt32([]int{size, srcLen}, nil, nil)
	}
	for i, s := range samples {
		b.IDs[i] = s.ID
		b.Trees[i] = s.Tree
		for j, e := range encs[i] {
			t := j + 1
			b.X.Set([]int{i, t}, int32(e.LabelID))
			b.XM.Set([]int{i, t}, 1)
			for k, c := range e.Children {
				b.XC.Set([]int{i, t, k}, int32(c))
				b.XMC.Set([]int{i, t, k}, 1)
			}
		}
		for t, e := range decs[i] {
			b.Y.Set([]int{i, t}, int32(e.LabelID))
			b.YP.Set([]int{i, t}, int32(e.Parent))
			b.YR.Set([]int{i, t}, int32(e.Rank))
			b.YM.Set([]int{i, t}, 1)
		}
		for t, tok := range s.Source {
			b.S.Set([]int{i, t}, int32(tok))
		}
	}
	return b
}

// Size returns the number of trees in the batch
func (b *Batch) Size() int {
	return len(b.IDs)
}

// EncodeLen returns the padded encode length, dummy column included
func (b *Batch) EncodeLen() int {
	return b.X.Dim(1)
}

// DecodeLen returns the padded decode length
func (b *Batch) DecodeLen() int {
	return b.Y.Dim(1)
}

// MaxChildren returns the padded children dimension
func (b *Batch) MaxChildren() int {
	return b.XC.Dim(2)
}

// SourceLen returns the padded source length, 0 without source
func (b *Batch) SourceLen() int {
	if b.S == nil {
		return 0
	}
	return b.S.Dim(1)
}

// Column returns the values of an [batch, len] integer tensor at
// column t, one per tree.
func Column(tsr *etensor.Int32, t int) []int {
	rows := tsr.Dim(0)
	result := make([]int, rows)
	for i := range result {
		result[i] = int(tsr.Value([]int{i, t}))
	}
	return result
}

// MaskColumn returns the values of an [batch, len] mask at
// column t, one per tree.
func MaskColumn(tsr *etensor.Float32, t int) []float32 {
	rows := tsr.Dim(0)
	result := make([]float32, rows)
	for i := range result {
		result[i] = tsr.Value([]int{i, t})
	}
	return result
}

// SizeStats returns the average and maximum tree size in the batch
func (b *Batch) SizeStats() minmax.AvgMax32 {
	var am minmax.AvgMax32
	am.Init()
	for i, t := range b.Trees {
		am.UpdateVal(float32(t.Size()), i)
	}
	am.CalcAvg()
	return am
}

/*
Validate checks that the tensors of the batch agree with each
other and with the trees they were built from. It returns a
*ShapeMismatchError describing the first disagreement found, or
nil. A batch built by New always validates.
*/
func (b *Batch) Validate() error {
	size := b.Size()
	if len(b.Trees) != size {
		return &ShapeMismatchError{"Trees", fmt.Sprintf("%d trees for %d ids", len(b.Trees), size)}
	}
	encLen, decLen, maxChildren := b.EncodeLen(), b.DecodeLen(), b.MaxChildren()
	checks := []struct {
		name  string
		shape []int
		want  []int
	}{
		{"X", b.X.Shapes(), []int{size, encLen}},
		{"XC", b.XC.Shapes(), []int{size, encLen, maxChildren}},
		{"XM", b.XM.Shapes(), []int{size, encLen}},
		{"XMC", b.XMC.Shapes(), []int{size, encLen, maxChildren}},
		{"Y", b.Y.Shapes(), []int{size, decLen}},
		{"YP", b.YP.Shapes(), []int{size, decLen}},
		{"YR", b.YR.Shapes(), []int{size, decLen}},
		{"YM", b.YM.Shapes(), []int{size, decLen}},
	}
	if b.S != nil {
		checks = append(checks, struct {
			name  string
			shape []int
			want  []int
		}{"S", b.S.Shapes(), []int{size, b.SourceLen()}})
	}
	for _, c := range checks {
		if !equalInts(c.shape, c.want) {
			return &ShapeMismatchError{c.name, fmt.Sprintf("shape %v, expected %v", c.shape, c.want)}
		}
	}
	for i, t := range b.Trees {
		n := t.Size()
		if got := rowSum(b.XM, i); got != n {
			return &ShapeMismatchError{"XM", fmt.Sprintf("row %d marks %d nodes for a tree of size %d", i, got, n)}
		}
		if got := rowSum(b.YM, i); got != n {
			return &ShapeMismatchError{"YM", fmt.Sprintf("row %d marks %d nodes for a tree of size %d", i, got, n)}
		}
		if b.XM.Value([]int{i, 0}) != 0 {
			return &ShapeMismatchError{"XM", fmt.Sprintf("row %d uses the dummy column", i)}
		}
		for t := 1; t < encLen; t++ {
			for k := 0; k < maxChildren; k++ {
				if b.XMC.Value([]int{i, t, k}) == 0 {
					continue
				}
				if c := int(b.XC.Value([]int{i, t, k})); c < 1 || c >= t {
					return &ShapeMismatchError{"XC", fmt.Sprintf("row %d step %d refers to child %d", i, t, c)}
				}
			}
		}
		for t := 1; t < decLen; t++ {
			if b.YM.Value([]int{i, t}) == 0 {
				continue
			}
			if p := int(b.YP.Value([]int{i, t})); p < 0 || p >= t {
				return &ShapeMismatchError{"YP", fmt.Sprintf("row %d step %d refers to parent %d", i, t, p)}
			}
		}
	}
	return nil
}

func rowSum(tsr *etensor.Float32, row int) int {
	var sum float32
	for t := 0; t < tsr.Dim(1); t++ {
		sum += tsr.Value([]int{row, t})
	}
	return int(sum)
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
