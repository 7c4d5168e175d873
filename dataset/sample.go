package dataset

import (
	"fmt"

	"github.com/pbanos/treehash/tree"
)

/*
Sample is an item to encode or from which to learn how to
encode trees: a parse tree with its label ids resolved, the
position of the sample in its input and, optionally, the ids
of the tokens of the sentence the tree was parsed from.
*/
type Sample struct {
	// ID is the 0-based position of the sample in its input.
	// Outputs are reported in ID order.
	ID     int
	Tree   *tree.Tree
	Source []int
}

func (s Sample) String() string {
	return fmt.Sprintf("[%d %v]", s.ID, s.Tree)
}
