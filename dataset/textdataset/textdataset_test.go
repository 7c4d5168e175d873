package textdataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
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

func (tv testVocab) IDs(tokens []string) []int {
	ids := make([]int, len(tokens))
	for i, t := range tokens {
		ids[i] = tv.IDOf(t)
	}
	return ids
}

type recordingLogger struct {
	lines []string
}

func (rl *recordingLogger) Logf(format string, a ...interface{}) {
	rl.lines = append(rl.lines, fmt.Sprintf(format, a...))
}

func writeFile(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadSkipsMalformedLines(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	trees := writeFile(t, dir, "trees.txt",
		"(S (NP a) (VP b))",
		"(S (NP a)",
		"(NP (DT the) (NN cat))",
	)
	srcs := writeFile(t, dir, "src.txt", "a b", "a", "the cat sat")
	logger := &recordingLogger{}
	loader := &dataset.Loader{
		Vocabulary:    testVocab{"S": 2, "NP": 3, "VP": 4},
		SrcVocabulary: testVocab{"a": 2, "b": 3, "the": 4, "cat": 5},
		SrcLimit:      2,
		Logger:        logger,
	}
	samples, err := dataset.Samples(context.Background(), New(trees, srcs, loader))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("got %d samples, expected 2", len(samples))
	}
	if samples[0].ID != 0 || samples[1].ID != 2 {
		t.Errorf("got ids %d %d, expected the line indices 0 2", samples[0].ID, samples[1].ID)
	}
	if got := samples[1].Tree.String(); got != "(NP DT NN)" {
		t.Errorf("got tree %q", got)
	}
	if got := samples[0].Tree.Root.LabelID; got != 2 {
		t.Errorf("got root label id %d, expected 2", got)
	}
	if got := samples[1].Tree.Root.Children[0].LabelID; got != 1 {
		t.Errorf("got unknown label id %d, expected 1", got)
	}
	if !reflect.DeepEqual(samples[1].Source, []int{4, 5}) {
		t.Errorf("got source %v, expected it cut to [4 5]", samples[1].Source)
	}
	if len(logger.lines) != 1 || !strings.Contains(logger.lines[0], "line 2") {
		t.Errorf("expected the malformed line to be reported with its number, got %v", logger.lines)
	}
	count, err := New(trees, srcs, loader).Count(context.Background())
	if err != nil || count != 3 {
		t.Errorf("got count %d %v, expected 3 lines", count, err)
	}
}

func TestReadLimits(t *testing.T) {
	t.Parallel()
	trees := writeFile(t, t.TempDir(), "trees.txt", "(S (NP (DT a) (NN b)) (VP c))")
	loader := &dataset.Loader{DepthLimit: 2, KeepLeaves: true}
	samples, err := dataset.Samples(context.Background(), New(trees, "", loader))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("got %d samples, expected 1", len(samples))
	}
	if got := samples[0].Tree.Depth(); got != 1 {
		t.Errorf("got depth %d, expected 1", got)
	}
	if samples[0].Source != nil {
		t.Errorf("expected no source without a source vocabulary")
	}
}

func TestReadErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	trees := writeFile(t, dir, "trees.txt", "(S a)", "(S b)")
	short := writeFile(t, dir, "src.txt", "a")
	testCases := []struct {
		name     string
		treePath string
		srcPath  string
	}{
		{"missing tree file", filepath.Join(dir, "missing.txt"), ""},
		{"missing source file", trees, filepath.Join(dir, "missing.txt")},
		{"short source file", trees, short},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			loader := &dataset.Loader{SrcVocabulary: testVocab{}}
			_, err := dataset.Samples(context.Background(), New(tc.treePath, tc.srcPath, loader))
			if err == nil {
				t.Errorf("expected an error")
			}
			var pe *tree.ParseError
			if errors.As(err, &pe) {
				t.Errorf("expected a file error, got a parse error %v", pe)
			}
		})
	}
}
