package tree

import (
	"fmt"
	"strings"
)

// Tree represents a parse tree. It is composed of its root
// node and, once linearized, the nodes of the tree in encode
// (post-order) and decode (pre-order) order.
type Tree struct {
	Root *Node
	// Encode holds the nodes in post-order, Encode[i] having
	// encode index i+1.
	Encode []*Node
	// Decode holds the nodes in pre-order, Decode[i] having
	// decode index i.
	Decode []*Node
}

// Vocabulary is the label lookup a tree needs to resolve
// its label ids.
type Vocabulary interface {
	IDOf(label string) int
}

// New returns a tree with the given root
func New(root *Node) *Tree {
	return &Tree{Root: root}
}

// Size returns the number of nodes in the tree
func (t *Tree) Size() int {
	return t.Root.Size()
}

// Depth returns the height of the tree
func (t *Tree) Depth() int {
	return t.Root.Depth()
}

// ResolveLabels sets the LabelID of every node in the tree
// to the id the vocabulary gives its label.
func (t *Tree) ResolveLabels(v Vocabulary) {
	t.Traverse(false, func(n *Node) error {
		n.LabelID = v.IDOf(n.Label)
		return nil
	})
}

// Labels returns the labels of the tree in pre-order
func (t *Tree) Labels() []string {
	var labels []string
	t.Traverse(false, func(n *Node) error {
		labels = append(labels, n.Label)
		return nil
	})
	return labels
}

// Traverse takes a bottomup boolean and an error-returning
// function that takes a node, and goes through the tree
// running the function with every traversed node.
// Traverse will call the function with a parent node before
// calling it for its children if bottomup is false, and
// call it after its children if bottomup is true. Children
// are always visited in order.
// If the call to the function returns an error, the
// traversing is aborted and the error is returned.
func (t *Tree) Traverse(bottomup bool, f func(*Node) error) error {
	if t == nil || t.Root == nil {
		return nil
	}
	return traverse(t.Root, bottomup, f)
}

func traverse(n *Node, bottomup bool, f func(*Node) error) error {
	var err error
	if !bottomup {
		err = f(n)
	}
	if err != nil {
		return err
	}
	for _, c := range n.Children {
		err = traverse(c, bottomup, f)
		if err != nil {
			return err
		}
	}
	if bottomup {
		err = f(n)
	}
	return err
}

// String returns the tree in bracketed notation. Leaves are
// written as bare labels.
func (t *Tree) String() string {
	if t == nil || t.Root == nil {
		return ""
	}
	var sb strings.Builder
	writeNode(&sb, t.Root)
	return sb.String()
}

func writeNode(sb *strings.Builder, n *Node) {
	if n.IsLeaf() {
		sb.WriteString(n.Label)
		return
	}
	sb.WriteString("(")
	sb.WriteString(n.Label)
	for _, c := range n.Children {
		sb.WriteString(" ")
		writeNode(sb, c)
	}
	sb.WriteString(")")
}

// Outline returns a multi-line drawing of the tree, one node
// per line, useful to inspect reconstructions.
func (t *Tree) Outline() string {
	if t == nil || t.Root == nil {
		return ""
	}
	return subtreeOutline(t.Root)
}

func subtreeOutline(n *Node) string {
	result := fmt.Sprintf("[%s]\n", n.Label)
	for i, c := range n.Children {
		for j, line := range strings.Split(subtreeOutline(c), "\n") {
			if len(line) == 0 {
				continue
			}
			switch {
			case j == 0:
				result = fmt.Sprintf("%s|__%s\n", result, line)
			case i == len(n.Children)-1:
				result = fmt.Sprintf("%s   %s\n", result, line)
			default:
				result = fmt.Sprintf("%s|  %s\n", result, line)
			}
		}
	}
	return result
}
