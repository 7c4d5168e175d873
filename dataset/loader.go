package dataset

import (
	"errors"
	"strings"

	"github.com/pbanos/treehash/tree"
)

// Vocabulary resolves labels and source tokens to ids
type Vocabulary interface {
	IDOf(label string) int
	IDs(tokens []string) []int
}

/*
Loader turns the text of a tree, and optionally of the sentence it
was parsed from, into a sample.

Trees are cut at DepthLimit and SizeLimit and sources at SrcLimit
tokens; tree.Unlimited keeps them whole, and so does 0. Lexical
leaves are dropped unless KeepLeaves is set. Label ids are
resolved with Vocabulary unless it is nil, and source tokens with
SrcVocabulary, sources being ignored when it is nil.
*/
type Loader struct {
	Vocabulary    Vocabulary
	SrcVocabulary Vocabulary
	DepthLimit    int
	SizeLimit     int
	SrcLimit      int
	KeepLeaves    bool
	// Logger reports skipped lines, nil meaning silence
	Logger Logger
}

/*
Sample takes the id of a sample, the 1-based line it comes from,
the text of its tree and of its source, and returns the sample or
a *tree.ParseError carrying the line.
*/
func (l *Loader) Sample(id, line int, treeText, srcText string) (Sample, error) {
	parse := tree.ParseStructure
	if l.KeepLeaves {
		parse = tree.Parse
	}
	t, err := parse(treeText, limit(l.DepthLimit), limit(l.SizeLimit))
	if err != nil {
		var pe *tree.ParseError
		if errors.As(err, &pe) {
			pe.Line = line
		}
		return Sample{}, err
	}
	if l.Vocabulary != nil {
		t.ResolveLabels(l.Vocabulary)
	}
	s := Sample{ID: id, Tree: t}
	if l.SrcVocabulary != nil {
		tokens := strings.Fields(srcText)
		if max := limit(l.SrcLimit); len(tokens) > max {
			tokens = tokens[:max]
		}
		s.Source = l.SrcVocabulary.IDs(tokens)
	}
	return s, nil
}

/*
Skip reports through the logger, if any, that a sample could not
be loaded and will be left out.
*/
func (l *Loader) Skip(err error) {
	if l.Logger != nil {
		l.Logger.Logf("skipping sample: %v", err)
	}
}

func limit(l int) int {
	if l <= 0 {
		return tree.Unlimited
	}
	return l
}
