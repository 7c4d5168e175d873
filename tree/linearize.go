package tree

// EncodeEntry is a node of the encode sequence: its label id
// and the encode indices of its children. Children always have
// smaller indices than their parent.
type EncodeEntry struct {
	LabelID  int
	Children []int
}

// DecodeEntry is a node of the decode sequence: its label id,
// its rank among its siblings and the decode index of its
// parent. The root has rank 0 and parent 0, which must not be
// read as the root being its own parent.
type DecodeEntry struct {
	LabelID int
	Rank    int
	Parent  int
}

// Linearize indexes the nodes of the tree in post-order
// (1-based, index 0 being reserved for an empty dummy node)
// and in pre-order (0-based, the root being 0), and returns
// the encode and decode sequences built from both orders.
// The tree's Encode and Decode slices are set as well.
// The result only depends on the shape and label ids of the
// tree.
func Linearize(t *Tree) ([]EncodeEntry, []DecodeEntry) {
	t.Encode = t.Encode[:0]
	t.Traverse(true, func(n *Node) error {
		t.Encode = append(t.Encode, n)
		n.Index = len(t.Encode)
		return nil
	})
	enc := make([]EncodeEntry, len(t.Encode))
	for i, n := range t.Encode {
		children := make([]int, len(n.Children))
		for j, c := range n.Children {
			children[j] = c.Index
		}
		enc[i] = EncodeEntry{LabelID: n.LabelID, Children: children}
	}

	t.Decode = t.Decode[:0]
	t.Traverse(false, func(n *Node) error {
		n.Index = len(t.Decode)
		t.Decode = append(t.Decode, n)
		return nil
	})
	dec := make([]DecodeEntry, len(t.Decode))
	for i, n := range t.Decode {
		e := DecodeEntry{LabelID: n.LabelID}
		if n.Parent != nil {
			e.Rank = n.RankInChildren
			e.Parent = n.Parent.Index
		}
		dec[i] = e
	}
	return enc, dec
}

// FromDecode rebuilds a tree from a decode sequence and the
// labels for its label ids. It is the inverse of the decode
// half of Linearize.
func FromDecode(dec []DecodeEntry, label func(int) string) *Tree {
	if len(dec) == 0 {
		return New(nil)
	}
	nodes := make([]*Node, len(dec))
	for i, e := range dec {
		n := &Node{LabelID: e.LabelID, Label: label(e.LabelID)}
		if i > 0 {
			p := nodes[e.Parent]
			n.RootDepth = p.RootDepth + 1
			p.AddChild(n)
		}
		nodes[i] = n
	}
	return New(nodes[0])
}

// FromEncode rebuilds a tree from an encode sequence and the
// labels for its label ids. The last entry is the root.
func FromEncode(enc []EncodeEntry, label func(int) string) *Tree {
	if len(enc) == 0 {
		return New(nil)
	}
	nodes := make([]*Node, len(enc)+1)
	for i, e := range enc {
		n := &Node{LabelID: e.LabelID, Label: label(e.LabelID)}
		for _, c := range e.Children {
			n.AddChild(nodes[c])
		}
		nodes[i+1] = n
	}
	root := nodes[len(enc)]
	New(root).Traverse(false, func(n *Node) error {
		if n.Parent != nil {
			n.RootDepth = n.Parent.RootDepth + 1
		}
		return nil
	})
	return New(root)
}
