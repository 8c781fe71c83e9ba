// Package layout decodes tmux window layout strings.
//
// A layout string is an optional four hex digit checksum and a comma,
// followed by one cell:
//
//	cell  = WxH,X,Y ( ",id" | "{" cells "}" | "[" cells "]" )
//	cells = cell ( "," cell )*
//
// Braces hold children laid out left to right (side by side), brackets hold
// children stacked top to bottom. Leaf ids may carry a leading '%'.
package layout

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/timvw/pane-gateway/internal/model"
)

// ErrMalformed is returned for any input that is not a complete layout.
var ErrMalformed = errors.New("malformed layout")

// Kind tells leaves and the two split orientations apart.
type Kind int

const (
	// KindPane is a leaf carrying a tmux pane id.
	KindPane Kind = iota
	// KindVerticalSplit holds children side by side, divided by vertical lines ("{…}").
	KindVerticalSplit
	// KindHorizontalSplit holds children stacked, divided by horizontal lines ("[…]").
	KindHorizontalSplit
)

func (k Kind) String() string {
	switch k {
	case KindPane:
		return "pane"
	case KindVerticalSplit:
		return "vertical"
	case KindHorizontalSplit:
		return "horizontal"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Node is one cell of a parsed layout. Sizes and offsets are in character cells.
type Node struct {
	Kind   Kind
	Width  int
	Height int
	X      int
	Y      int
	// PaneID is set for KindPane only.
	PaneID   model.PaneID
	Children []*Node
}

// IsLeaf reports whether n is a pane.
func (n *Node) IsLeaf() bool { return n.Kind == KindPane }

// PaneIDs returns the leaf pane ids in layout order (depth first, left to right).
func (n *Node) PaneIDs() []model.PaneID {
	var ids []model.PaneID
	n.walk(func(leaf *Node) { ids = append(ids, leaf.PaneID) })
	return ids
}

// Leaves returns the leaf nodes in layout order.
func (n *Node) Leaves() []*Node {
	var out []*Node
	n.walk(func(leaf *Node) { out = append(out, leaf) })
	return out
}

func (n *Node) walk(fn func(*Node)) {
	if n.IsLeaf() {
		fn(n)
		return
	}
	for _, c := range n.Children {
		c.walk(fn)
	}
}

// Parse decodes a layout string. On any error the returned node is nil.
func Parse(s string) (*Node, error) {
	body := stripChecksum(strings.TrimSpace(s))
	p := &parser{s: body}
	root, err := p.cell()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.s) {
		return nil, p.errorf("trailing input %q", p.s[p.pos:])
	}
	seen := make(map[model.PaneID]bool)
	for _, id := range root.PaneIDs() {
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate pane %s", ErrMalformed, id)
		}
		seen[id] = true
	}
	return root, nil
}

// stripChecksum removes a leading "xxxx," where xxxx is four hex digits.
func stripChecksum(s string) string {
	if len(s) < 5 || s[4] != ',' {
		return s
	}
	for i := 0; i < 4; i++ {
		if !isHex(s[i]) {
			return s
		}
	}
	return s[5:]
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

type parser struct {
	s   string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", ErrMalformed, p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) peek() byte {
	if p.pos >= len(p.s) {
		return 0
	}
	return p.s[p.pos]
}

func (p *parser) expect(c byte) error {
	if p.peek() != c {
		if p.pos >= len(p.s) {
			return p.errorf("want %q, got end of input", c)
		}
		return p.errorf("want %q, got %q", c, p.s[p.pos])
	}
	p.pos++
	return nil
}

func (p *parser) number() (int, error) {
	start := p.pos
	for p.pos < len(p.s) && p.s[p.pos] >= '0' && p.s[p.pos] <= '9' {
		p.pos++
	}
	if start == p.pos {
		return 0, p.errorf("want number")
	}
	v, err := strconv.Atoi(p.s[start:p.pos])
	if err != nil {
		return 0, p.errorf("number %q: %v", p.s[start:p.pos], err)
	}
	return v, nil
}

func (p *parser) cell() (*Node, error) {
	n := &Node{}
	var err error
	if n.Width, err = p.number(); err != nil {
		return nil, err
	}
	if err = p.expect('x'); err != nil {
		return nil, err
	}
	if n.Height, err = p.number(); err != nil {
		return nil, err
	}
	if err = p.expect(','); err != nil {
		return nil, err
	}
	if n.X, err = p.number(); err != nil {
		return nil, err
	}
	if err = p.expect(','); err != nil {
		return nil, err
	}
	if n.Y, err = p.number(); err != nil {
		return nil, err
	}

	switch p.peek() {
	case ',':
		p.pos++
		if p.peek() == '%' {
			p.pos++
		}
		id, err := p.number()
		if err != nil {
			return nil, err
		}
		n.Kind = KindPane
		n.PaneID = model.PaneID(id)
		return n, nil
	case '{':
		n.Kind = KindVerticalSplit
		return n, p.children(n, '}')
	case '[':
		n.Kind = KindHorizontalSplit
		return n, p.children(n, ']')
	case 0:
		return nil, p.errorf("cell without pane id or children")
	default:
		return nil, p.errorf("unexpected %q", p.s[p.pos])
	}
}

func (p *parser) children(n *Node, closer byte) error {
	p.pos++ // opening bracket
	for {
		child, err := p.cell()
		if err != nil {
			return err
		}
		n.Children = append(n.Children, child)
		if p.peek() == ',' {
			p.pos++
			continue
		}
		return p.expect(closer)
	}
}
