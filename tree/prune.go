package tree

// Prune returns a copy of the tree with its lexical leaves
// removed, if removeLeaves is true, and cut at the given depth
// if depth is not negative. Removing leaves turns every node
// with a leaf child into a leaf carrying its own label. Cutting
// at depth d turns nodes at distance d from the root into
// leaves, so depth 0 keeps only the root.
func Prune(t *Tree, depth int, removeLeaves bool) *Tree {
	if t == nil || t.Root == nil {
		return t
	}
	root := copyNode(t.Root, 0)
	if removeLeaves {
		deleteLeaves(root)
	}
	if depth >= 0 {
		cutBelow(root, depth)
	}
	return New(root)
}

func copyNode(n *Node, depth int) *Node {
	c := &Node{Label: n.Label, LabelID: n.LabelID, RootDepth: depth}
	for _, ch := range n.Children {
		c.AddChild(copyNode(ch, depth+1))
	}
	return c
}

func deleteLeaves(n *Node) {
	for _, c := range n.Children {
		if c.IsLeaf() {
			n.Children = nil
			return
		}
	}
	for _, c := range n.Children {
		deleteLeaves(c)
	}
}

func cutBelow(n *Node, depth int) {
	if depth == 0 {
		n.Children = nil
		return
	}
	for _, c := range n.Children {
		cutBelow(c, depth-1)
	}
}
