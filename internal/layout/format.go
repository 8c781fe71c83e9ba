package layout

import (
	"fmt"
	"strconv"
	"strings"
)

// Checksum computes tmux's layout checksum over a layout body.
func Checksum(body string) uint16 {
	var csum uint16
	for i := 0; i < len(body); i++ {
		csum = (csum >> 1) + ((csum & 1) << 15)
		csum += uint16(body[i])
	}
	return csum
}

// String renders the layout body without a checksum.
func (n *Node) String() string {
	var b strings.Builder
	n.write(&b)
	return b.String()
}

// Format renders n as tmux does, checksum included.
func Format(n *Node) string {
	body := n.String()
	return fmt.Sprintf("%04x,%s", Checksum(body), body)
}

func (n *Node) write(b *strings.Builder) {
	b.WriteString(strconv.Itoa(n.Width))
	b.WriteByte('x')
	b.WriteString(strconv.Itoa(n.Height))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(n.X))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(n.Y))
	switch n.Kind {
	case KindPane:
		b.WriteByte(',')
		b.WriteString(strconv.FormatUint(uint64(n.PaneID), 10))
		return
	case KindVerticalSplit:
		b.WriteByte('{')
	case KindHorizontalSplit:
		b.WriteByte('[')
	}
	for i, c := range n.Children {
		if i > 0 {
			b.WriteByte(',')
		}
		c.write(b)
	}
	if n.Kind == KindVerticalSplit {
		b.WriteByte('}')
	} else {
		b.WriteByte(']')
	}
}

// Dump renders an indented, human readable tree.
func Dump(n *Node) string {
	var b strings.Builder
	dump(&b, n, 0)
	return b.String()
}

func dump(b *strings.Builder, n *Node, depth int) {
	indent := strings.Repeat("  ", depth)
	if n.IsLeaf() {
		fmt.Fprintf(b, "%s%s %dx%d at (%d,%d)\n", indent, n.PaneID, n.Width, n.Height, n.X, n.Y)
		return
	}
	fmt.Fprintf(b, "%s%s split %dx%d at (%d,%d), %d children\n", indent, n.Kind, n.Width, n.Height, n.X, n.Y, len(n.Children))
	for _, c := range n.Children {
		dump(b, c, depth+1)
	}
}
