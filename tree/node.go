package tree

/*
Node is a node of a parse tree
*/
type Node struct {
	// The symbol on the node, such as S, NP or a word
	Label string
	// The index for Label in a vocabulary, set after construction
	LabelID int
	// The nodes directly under this node, in order
	Children []*Node
	// The node this node hangs from, nil for the root
	Parent *Node
	// The 0-based position of the node among its siblings
	RankInChildren int
	// The distance from the root of the tree to the node
	RootDepth int
	// The position of the node in the last traversal that
	// indexed it. Encode and decode orders use different
	// numberings, so it is only meaningful right after the
	// traversal that set it.
	Index int

	size     int
	depth    int
	depthSet bool
}

// AddChild appends child to the children of the node,
// setting its parent and rank.
func (n *Node) AddChild(child *Node) {
	child.Parent = n
	child.RankInChildren = len(n.Children)
	n.Children = append(n.Children, child)
}

// IsLeaf returns whether the node has no children
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Size returns the number of nodes in the subtree rooted
// at n. It is computed once: all children must have been
// attached before the first call.
func (n *Node) Size() int {
	if n.size == 0 {
		count := 1
		for _, c := range n.Children {
			count += c.Size()
		}
		n.size = count
	}
	return n.size
}

// Depth returns the height of the subtree rooted at n,
// 0 for a leaf. Like Size, it is computed on first use.
func (n *Node) Depth() int {
	if !n.depthSet {
		d := 0
		for _, c := range n.Children {
			if cd := c.Depth() + 1; cd > d {
				d = cd
			}
		}
		n.depth = d
		n.depthSet = true
	}
	return n.depth
}
