// Package pane manages the split tree of local panes inside one tab.
//
// The tree mirrors a tmux layout: leaves are panes with their own terminal,
// splits divide their rectangle between children in proportion to the cell
// sizes tmux reported.
package pane

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/timvw/pane-gateway/internal/layout"
	"github.com/timvw/pane-gateway/internal/model"
	"github.com/timvw/pane-gateway/internal/terminal"
)

var (
	// ErrEmptySplit is returned for a split node without children.
	ErrEmptySplit = errors.New("split without children")
	// ErrUnknownPane is returned when a geometry update names a pane the
	// manager does not hold.
	ErrUnknownPane = errors.New("unknown pane")
)

// IDAllocator hands out local pane ids. One allocator is shared by all tabs
// so ids are unique process wide.
type IDAllocator struct {
	last atomic.Uint64
}

func (a *IDAllocator) Next() model.NativePaneID {
	return model.NativePaneID(a.last.Add(1))
}

// TerminalFactory creates the terminal of a new pane.
type TerminalFactory func() (*terminal.Terminal, error)

// Pane is one local pane.
type Pane struct {
	ID       model.NativePaneID
	TmuxID   model.PaneID
	Terminal *terminal.Terminal
	// Bounds is the pixel rectangle computed by RecalculateBounds.
	Bounds model.Rect
	// Cells is the size tmux reported for the pane.
	Cells struct{ Cols, Rows int }
}

type node struct {
	kind     layout.Kind
	pane     *Pane
	children []*node
	weights  []float32
}

// Manager owns the pane tree of one tab. Not safe for concurrent use.
type Manager struct {
	logger      *slog.Logger
	ids         *IDAllocator
	newTerminal TerminalFactory

	root    *node
	panes   map[model.NativePaneID]*Pane
	order   []model.NativePaneID
	focused model.NativePaneID
	hasFoc  bool
	bounds  model.Rect
}

// NewManager returns an empty manager. A nil factory creates terminals with
// the default scrollback.
func NewManager(ids *IDAllocator, factory TerminalFactory, logger *slog.Logger) *Manager {
	if ids == nil {
		ids = &IDAllocator{}
	}
	if factory == nil {
		factory = func() (*terminal.Terminal, error) { return terminal.New(0), nil }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:      logger,
		ids:         ids,
		newTerminal: factory,
		panes:       make(map[model.NativePaneID]*Pane),
	}
}

// SetBounds sets the rectangle the tree is laid out in. Call
// RecalculateBounds afterwards.
func (m *Manager) SetBounds(r model.Rect) { m.bounds = r }

func (m *Manager) Bounds() model.Rect { return m.bounds }

// SetFromLayout discards the current tree and builds a new one with a fresh
// pane and terminal per leaf. On error the current tree is untouched.
func (m *Manager) SetFromLayout(tree *layout.Node) (map[model.PaneID]model.NativePaneID, error) {
	created := make(map[model.PaneID]*Pane)
	root, err := m.build(tree, func(leaf *layout.Node) (*Pane, error) {
		p, err := m.newPane(leaf)
		if err != nil {
			return nil, err
		}
		created[leaf.PaneID] = p
		return p, nil
	})
	if err != nil {
		closeAll(created)
		return nil, fmt.Errorf("set from layout: %w", err)
	}

	for _, p := range m.panes {
		p.Terminal.Close()
	}
	m.commit(root)
	if len(m.order) > 0 {
		m.focused, m.hasFoc = m.order[0], true
	}
	return mapping(created), nil
}

// RebuildPreserving builds a new tree from tree, reusing the panes in
// existing and creating panes for every other leaf. added lists the leaves
// expected to be new; a leaf in neither set is created as well and logged.
// Panes of the old tree that are not in the new one are closed. On error
// nothing changes.
func (m *Manager) RebuildPreserving(existing map[model.PaneID]model.NativePaneID, tree *layout.Node, added []model.PaneID) (map[model.PaneID]model.NativePaneID, error) {
	expected := make(map[model.PaneID]bool, len(added))
	for _, id := range added {
		expected[id] = true
	}
	created := make(map[model.PaneID]*Pane)
	result := make(map[model.PaneID]*Pane)
	var cells []cellUpdate
	root, err := m.build(tree, func(leaf *layout.Node) (*Pane, error) {
		if native, ok := existing[leaf.PaneID]; ok {
			if p, ok := m.panes[native]; ok {
				cells = append(cells, cellUpdate{p, leaf})
				result[leaf.PaneID] = p
				return p, nil
			}
		}
		if !expected[leaf.PaneID] {
			m.logger.Warn("pane neither kept nor added, creating it", "pane", leaf.PaneID.String())
		}
		p, err := m.newPane(leaf)
		if err != nil {
			return nil, err
		}
		created[leaf.PaneID] = p
		result[leaf.PaneID] = p
		return p, nil
	})
	if err != nil {
		closeAll(created)
		return nil, fmt.Errorf("rebuild preserving: %w", err)
	}
	applyCells(cells)
	m.replaceTree(root)
	return mapping(result), nil
}

// UpdateGeometry replaces the tree structure using only existing panes. Panes
// not in tree are closed. Every leaf must be in existing.
func (m *Manager) UpdateGeometry(tree *layout.Node, existing map[model.PaneID]model.NativePaneID) error {
	var cells []cellUpdate
	root, err := m.build(tree, func(leaf *layout.Node) (*Pane, error) {
		native, ok := existing[leaf.PaneID]
		if !ok {
			return nil, fmt.Errorf("%w: %s not mapped", ErrUnknownPane, leaf.PaneID)
		}
		p, ok := m.panes[native]
		if !ok {
			return nil, fmt.Errorf("%w: %s has no local pane %d", ErrUnknownPane, leaf.PaneID, native)
		}
		cells = append(cells, cellUpdate{p, leaf})
		return p, nil
	})
	if err != nil {
		return fmt.Errorf("update geometry: %w", err)
	}
	applyCells(cells)
	m.replaceTree(root)
	return nil
}

// ClosePane removes a pane from the tree and closes its terminal. A split
// left with a single child is collapsed into it.
func (m *Manager) ClosePane(id model.NativePaneID) bool {
	p, ok := m.panes[id]
	if !ok {
		return false
	}
	p.Terminal.Close()
	m.root = remove(m.root, p)
	m.reindex()
	return true
}

// ResizeAll resizes the terminal of every pane whose lock is in locks to fit
// its bounds. It returns the number of panes skipped for lack of a lock.
func (m *Manager) ResizeAll(cellW, cellH float32, locks *terminal.LockSet) int {
	skipped := 0
	for _, id := range m.order {
		p := m.panes[id]
		if !locks.Holds(p.Terminal) {
			skipped++
			continue
		}
		cols, rows := 0, 0
		if cellW > 0 && cellH > 0 {
			cols, rows = int(p.Bounds.Width/cellW), int(p.Bounds.Height/cellH)
		}
		p.Terminal.Resize(cols, rows, p.Bounds.Width, p.Bounds.Height)
	}
	return skipped
}

// RecalculateBounds lays the tree out in the manager's bounds.
func (m *Manager) RecalculateBounds() {
	if m.root != nil {
		place(m.root, m.bounds)
	}
}

// FocusPane focuses id if the manager holds it.
func (m *Manager) FocusPane(id model.NativePaneID) bool {
	if _, ok := m.panes[id]; !ok {
		return false
	}
	m.focused, m.hasFoc = id, true
	return true
}

// Focused returns the focused pane, if any.
func (m *Manager) Focused() (model.NativePaneID, bool) { return m.focused, m.hasFoc }

// Pane returns the pane with the given id.
func (m *Manager) Pane(id model.NativePaneID) (*Pane, bool) {
	p, ok := m.panes[id]
	return p, ok
}

// Panes returns the panes in layout order.
func (m *Manager) Panes() []*Pane {
	out := make([]*Pane, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.panes[id])
	}
	return out
}

// Terminals returns the pane terminals in layout order.
func (m *Manager) Terminals() []*terminal.Terminal {
	out := make([]*terminal.Terminal, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.panes[id].Terminal)
	}
	return out
}

func (m *Manager) Count() int { return len(m.order) }

// Close closes every pane and empties the tree.
func (m *Manager) Close() {
	for _, p := range m.panes {
		p.Terminal.Close()
	}
	m.commit(nil)
}

func (m *Manager) newPane(leaf *layout.Node) (*Pane, error) {
	t, err := m.newTerminal()
	if err != nil {
		return nil, fmt.Errorf("terminal for %s: %w", leaf.PaneID, err)
	}
	p := &Pane{ID: m.ids.Next(), TmuxID: leaf.PaneID, Terminal: t}
	p.Cells.Cols, p.Cells.Rows = leaf.Width, leaf.Height
	return p, nil
}

func (m *Manager) build(tree *layout.Node, paneFor func(*layout.Node) (*Pane, error)) (*node, error) {
	if tree == nil {
		return nil, fmt.Errorf("%w: nil layout", ErrEmptySplit)
	}
	if tree.IsLeaf() {
		p, err := paneFor(tree)
		if err != nil {
			return nil, err
		}
		return &node{kind: layout.KindPane, pane: p}, nil
	}
	if len(tree.Children) == 0 {
		return nil, ErrEmptySplit
	}
	n := &node{kind: tree.Kind}
	for _, c := range tree.Children {
		child, err := m.build(c, paneFor)
		if err != nil {
			return nil, err
		}
		n.children = append(n.children, child)
		w := c.Width
		if tree.Kind == layout.KindHorizontalSplit {
			w = c.Height
		}
		n.weights = append(n.weights, float32(w))
	}
	return n, nil
}

// replaceTree installs root, closing panes that are no longer in it, and
// drops focus if the focused pane went away.
func (m *Manager) replaceTree(root *node) {
	keep := make(map[model.NativePaneID]bool)
	walk(root, func(p *Pane) { keep[p.ID] = true })
	for id, p := range m.panes {
		if !keep[id] {
			p.Terminal.Close()
		}
	}
	m.commit(root)
}

func (m *Manager) commit(root *node) {
	m.root = root
	m.reindex()
}

func (m *Manager) reindex() {
	m.panes = make(map[model.NativePaneID]*Pane)
	m.order = m.order[:0]
	walk(m.root, func(p *Pane) {
		m.panes[p.ID] = p
		m.order = append(m.order, p.ID)
	})
	if _, ok := m.panes[m.focused]; !ok {
		m.focused, m.hasFoc = 0, false
	}
}

func walk(n *node, fn func(*Pane)) {
	if n == nil {
		return
	}
	if n.pane != nil {
		fn(n.pane)
		return
	}
	for _, c := range n.children {
		walk(c, fn)
	}
}

func remove(n *node, p *Pane) *node {
	if n == nil {
		return nil
	}
	if n.pane != nil {
		if n.pane == p {
			return nil
		}
		return n
	}
	var children []*node
	var weights []float32
	for i, c := range n.children {
		if r := remove(c, p); r != nil {
			children = append(children, r)
			weights = append(weights, n.weights[i])
		}
	}
	switch len(children) {
	case 0:
		return nil
	case 1:
		return children[0]
	}
	n.children, n.weights = children, weights
	return n
}

func place(n *node, r model.Rect) {
	if n.pane != nil {
		n.pane.Bounds = r
		return
	}
	var total float32
	for _, w := range n.weights {
		total += w
	}
	offset := float32(0)
	for i, c := range n.children {
		share := 1 / float32(len(n.children))
		if total > 0 {
			share = n.weights[i] / total
		}
		child := r
		if n.kind == layout.KindVerticalSplit {
			child.X = r.X + offset
			child.Width = r.Width * share
			offset += child.Width
		} else {
			child.Y = r.Y + offset
			child.Height = r.Height * share
			offset += child.Height
		}
		place(c, child)
	}
}

type cellUpdate struct {
	pane *Pane
	leaf *layout.Node
}

func applyCells(updates []cellUpdate) {
	for _, u := range updates {
		u.pane.Cells.Cols, u.pane.Cells.Rows = u.leaf.Width, u.leaf.Height
	}
}

func closeAll(panes map[model.PaneID]*Pane) {
	for _, p := range panes {
		p.Terminal.Close()
	}
}

func mapping(panes map[model.PaneID]*Pane) map[model.PaneID]model.NativePaneID {
	out := make(map[model.PaneID]model.NativePaneID, len(panes))
	for id, p := range panes {
		out[id] = p.ID
	}
	return out
}
