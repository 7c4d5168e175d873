package main

import (
	"math"
	"math/rand"
	"reflect"
	"testing"
)

func TestDescribeCodes(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name       string
		codes      []int
		bits       int
		distinct   int
		entropy    float64
		perplexity float64
		bitRates   []float64
	}{
		{name: "single code", codes: []int{3, 3, 3}, distinct: 1, entropy: 0, perplexity: 1, bitRates: []float64{1, 1}},
		{name: "two balanced codes", codes: []int{1, 2, 1, 2}, distinct: 2, entropy: 1, perplexity: 2, bitRates: []float64{0.5, 0.5}},
		{name: "four balanced codes", codes: []int{0, 1, 2, 3}, distinct: 4, entropy: 2, perplexity: 4, bitRates: []float64{0.5, 0.5}},
		{name: "skewed codes", codes: []int{0, 0, 0, 1}, distinct: 2, entropy: 0.8112781244591328, perplexity: 1.7547653506033232, bitRates: []float64{0.25}},
		{name: "given bits", codes: []int{1, 1}, bits: 3, distinct: 1, entropy: 0, perplexity: 1, bitRates: []float64{1, 0, 0}},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := describeCodes(tc.codes, tc.bits)
			if s.Total != len(tc.codes) {
				t.Errorf("got total %d, expected %d", s.Total, len(tc.codes))
			}
			if s.Distinct != tc.distinct {
				t.Errorf("got %d distinct codes, expected %d", s.Distinct, tc.distinct)
			}
			if math.Abs(s.Entropy-tc.entropy) > 1e-9 {
				t.Errorf("got entropy %v, expected %v", s.Entropy, tc.entropy)
			}
			if math.Abs(s.Perplexity-tc.perplexity) > 1e-9 {
				t.Errorf("got perplexity %v, expected %v", s.Perplexity, tc.perplexity)
			}
			if !reflect.DeepEqual(s.BitRates, tc.bitRates) {
				t.Errorf("got bit rates %v, expected %v", s.BitRates, tc.bitRates)
			}
		})
	}
}

func TestSampleCodes(t *testing.T) {
	t.Parallel()
	codes := sampleCodes(rand.New(rand.NewSource(1)), 200, 5, 7)
	seen := map[int]bool{}
	for _, c := range codes {
		if c < 5 || c > 7 {
			t.Fatalf("got code %d out of [5, 7]", c)
		}
		seen[c] = true
	}
	if len(seen) != 3 {
		t.Errorf("expected every code of the range to be drawn, got %v", seen)
	}
}
