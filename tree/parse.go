package tree

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Unlimited can be used as depth or size limit to keep the
// whole parse.
const Unlimited = math.MaxInt32

// ParseError is the error returned when a bracketed tree
// cannot be parsed
type ParseError struct {
	// Line is the 1-based line of the input the text came
	// from, 0 when unknown.
	Line   int
	Text   string
	Reason string
}

func (pe *ParseError) Error() string {
	if pe.Line > 0 {
		return fmt.Sprintf("parsing tree on line %d: %s", pe.Line, pe.Reason)
	}
	return fmt.Sprintf("parsing tree %q: %s", pe.Text, pe.Reason)
}

var wrappedLeaf = regexp.MustCompile(`\(([^\s()]+)\)`)

// Parse takes a tree in bracketed notation, such as
// "(S (NP a) (VP b))", a depth limit and a size limit and
// returns the tree it represents, lexical leaves included,
// or a *ParseError.
//
// Nodes are added in pre-order while the tree has less than
// sizeLimit nodes, and only nodes at a distance from the root
// below depthLimit are added. Everything beyond the limits is
// dropped, so the result may be smaller than the input.
func Parse(text string, depthLimit, sizeLimit int) (*Tree, error) {
	return parse(text, depthLimit, sizeLimit, true)
}

// ParseStructure works like Parse but drops the lexical leaves
// of the tree, keeping only its constituents.
func ParseStructure(text string, depthLimit, sizeLimit int) (*Tree, error) {
	return parse(text, depthLimit, sizeLimit, false)
}

type rawNode struct {
	label    string
	token    bool
	children []*rawNode
}

func parse(text string, depthLimit, sizeLimit int, keepLeaves bool) (*Tree, error) {
	raw, err := parseRaw(text)
	if err != nil {
		return nil, err
	}
	root := &Node{Label: raw.label}
	size := 1
	var copyInto func(from *rawNode, to *Node, dep int)
	copyInto = func(from *rawNode, to *Node, dep int) {
		if dep >= depthLimit {
			return
		}
		for _, rc := range from.children {
			if size >= sizeLimit {
				return
			}
			if rc.token && !keepLeaves {
				continue
			}
			n := &Node{Label: rc.label, RootDepth: dep}
			size++
			to.AddChild(n)
			if !rc.token {
				copyInto(rc, n, dep+1)
			}
		}
	}
	copyInto(raw, root, 1)
	return New(root), nil
}

func parseRaw(text string) (*rawNode, error) {
	text = wrappedLeaf.ReplaceAllString(strings.TrimSpace(text), "$1")
	toks := tokenize(text)
	if len(toks) == 0 {
		return nil, &ParseError{Text: text, Reason: "empty input"}
	}
	if toks[0] != "(" {
		return nil, &ParseError{Text: text, Reason: "expected '(' at the start of the tree"}
	}
	p := &rawParser{toks: toks}
	n, err := p.node()
	if err != nil {
		return nil, &ParseError{Text: text, Reason: err.Error()}
	}
	if p.pos != len(toks) {
		return nil, &ParseError{Text: text, Reason: fmt.Sprintf("unexpected %q after the end of the tree", toks[p.pos])}
	}
	return n, nil
}

func tokenize(text string) []string {
	var toks []string
	start := -1
	flush := func(i int) {
		if start >= 0 {
			toks = append(toks, text[start:i])
			start = -1
		}
	}
	for i, r := range text {
		switch {
		case r == '(' || r == ')':
			flush(i)
			toks = append(toks, string(r))
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush(i)
		default:
			if start < 0 {
				start = i
			}
		}
	}
	flush(len(text))
	return toks
}

type rawParser struct {
	toks []string
	pos  int
}

// node parses "(" [label] child* ")" with the cursor on "("
func (p *rawParser) node() (*rawNode, error) {
	p.pos++
	n := &rawNode{}
	if p.pos < len(p.toks) && p.toks[p.pos] != "(" && p.toks[p.pos] != ")" {
		n.label = p.toks[p.pos]
		p.pos++
	}
	for {
		if p.pos >= len(p.toks) {
			return nil, fmt.Errorf("unbalanced brackets: missing ')'")
		}
		switch tok := p.toks[p.pos]; tok {
		case ")":
			p.pos++
			return n, nil
		case "(":
			c, err := p.node()
			if err != nil {
				return nil, err
			}
			n.children = append(n.children, c)
		default:
			n.children = append(n.children, &rawNode{label: tok, token: true})
			p.pos++
		}
	}
}
