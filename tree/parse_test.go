package tree

import (
	"errors"
	"reflect"
	"testing"
)

func checkSizes(t *testing.T, n *Node) {
	t.Helper()
	sum := 1
	for _, c := range n.Children {
		checkSizes(t, c)
		sum += c.Size()
	}
	if n.Size() != sum {
		t.Errorf("size of %q is %d, expected %d", n.Label, n.Size(), sum)
	}
	if n.IsLeaf() && n.Depth() != 0 {
		t.Errorf("leaf %q has depth %d", n.Label, n.Depth())
	}
}

func TestParse(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name      string
		text      string
		structure bool
		want      string
		size      int
		depth     int
	}{
		{"with leaves", "(S (NP a) (VP (V b) (NP c)))", false, "(S (NP a) (VP (V b) (NP c)))", 8, 3},
		{"structure only", "(S (NP a) (VP (V b) (NP c)))", true, "(S NP (VP V NP))", 5, 2},
		{"wrapped leaf", "(S (NP (a)) (VP (b)))", false, "(S (NP a) (VP b))", 5, 2},
		{"empty root label", "((S (NP a)))", true, "( (S NP))", 3, 2},
		{"single node", "(S a)", true, "S", 1, 0},
		{"extra spaces", "  (S\t(NP  a )\n(VP b) ) ", false, "(S (NP a) (VP b))", 5, 2},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var tr *Tree
			var err error
			if tc.structure {
				tr, err = ParseStructure(tc.text, Unlimited, Unlimited)
			} else {
				tr, err = Parse(tc.text, Unlimited, Unlimited)
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := tr.String(); got != tc.want {
				t.Errorf("got %q, expected %q", got, tc.want)
			}
			if tr.Size() != tc.size {
				t.Errorf("got size %d, expected %d", tr.Size(), tc.size)
			}
			if tr.Depth() != tc.depth {
				t.Errorf("got depth %d, expected %d", tr.Depth(), tc.depth)
			}
			checkSizes(t, tr.Root)
		})
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()
	for _, text := range []string{
		"",
		"   ",
		"S NP VP",
		"(S (NP a)",
		"(S (NP a)))",
		"(S (NP a)) (S b)",
		")S(",
		"(S)",
	} {
		_, err := Parse(text, Unlimited, Unlimited)
		if err == nil {
			t.Errorf("expected an error parsing %q", text)
			continue
		}
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("expected a *ParseError parsing %q, got %T", text, err)
		}
	}
}

func TestParseTruncation(t *testing.T) {
	t.Parallel()
	text := "(S (NP a) (VP (V b) (NP c)))"
	cases := []struct {
		name       string
		depth      int
		size       int
		want       string
		wantLabels []string
	}{
		{"size limit", Unlimited, 3, "(S NP VP)", []string{"S", "NP", "VP"}},
		{"size limit one", Unlimited, 1, "S", []string{"S"}},
		{"depth limit", 2, Unlimited, "(S NP VP)", []string{"S", "NP", "VP"}},
		{"depth limit one", 1, Unlimited, "S", []string{"S"}},
		{"no limits", 1000000000, 1000000000, "(S NP (VP V NP))", []string{"S", "NP", "VP", "V", "NP"}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tr, err := ParseStructure(text, tc.depth, tc.size)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tr.Size() > tc.size {
				t.Errorf("tree of size %d exceeds limit %d", tr.Size(), tc.size)
			}
			if got := tr.String(); got != tc.want {
				t.Errorf("got %q, expected %q", got, tc.want)
			}
			if got := tr.Labels(); !reflect.DeepEqual(got, tc.wantLabels) {
				t.Errorf("got labels %v, expected %v", got, tc.wantLabels)
			}
			checkSizes(t, tr.Root)
		})
	}
}

func TestParseSetsRanksAndDepths(t *testing.T) {
	t.Parallel()
	tr, err := ParseStructure("(S (A (B x) (C y)) (D z))", Unlimited, Unlimited)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := map[string][2]int{}
	tr.Traverse(false, func(n *Node) error {
		got[n.Label] = [2]int{n.RankInChildren, n.RootDepth}
		return nil
	})
	want := map[string][2]int{
		"S": {0, 0},
		"A": {0, 1},
		"B": {0, 2},
		"C": {1, 2},
		"D": {1, 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got ranks and depths %v, expected %v", got, want)
	}
}

type mapVocab map[string]int

func (mv mapVocab) IDOf(label string) int {
	if id, ok := mv[label]; ok {
		return id
	}
	return 1
}

func TestResolveLabels(t *testing.T) {
	t.Parallel()
	tr, err := ParseStructure("(S (NP a) (VP b))", Unlimited, Unlimited)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tr.ResolveLabels(mapVocab{"S": 2, "NP": 3})
	var ids []int
	tr.Traverse(false, func(n *Node) error {
		ids = append(ids, n.LabelID)
		return nil
	})
	if want := []int{2, 3, 1}; !reflect.DeepEqual(ids, want) {
		t.Errorf("got ids %v, expected %v", ids, want)
	}
}
