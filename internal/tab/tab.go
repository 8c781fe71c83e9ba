// Package tab is the local tab list. A tab owns a pane tree; the gateway tab
// additionally owns the control-mode terminal.
package tab

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/timvw/pane-gateway/internal/model"
	"github.com/timvw/pane-gateway/internal/pane"
	"github.com/timvw/pane-gateway/internal/terminal"
)

// ErrLimit is returned by CreateTab when the tab ceiling is reached.
var ErrLimit = errors.New("tab limit reached")

// Tab is one local tab.
type Tab struct {
	ID    model.TabID
	Title string
	Panes *pane.Manager
	// Terminal is the gateway's own terminal; nil for other tabs.
	Terminal *terminal.Terminal
	// LastPaneID is the tmux pane this tab last showed, used to find the tab
	// of a window that has no mapping yet.
	LastPaneID *model.PaneID
	// GatewayActive is set on the gateway tab while a tmux session is attached.
	GatewayActive bool
	// PendingControlModeDisable is set when control mode could not be turned
	// off at session end because the terminal was busy.
	PendingControlModeDisable bool
}

// IsGateway reports whether t hosts the control-mode connection.
func (t *Tab) IsGateway() bool { return t.Terminal != nil }

// SetLastPane records the tmux pane last shown by the tab.
func (t *Tab) SetLastPane(id model.PaneID) { t.LastPaneID = &id }

// Manager holds tabs in creation order.
type Manager struct {
	logger  *slog.Logger
	ids     *pane.IDAllocator
	factory pane.TerminalFactory

	// MaxTabs is the ceiling enforced by CreateTab; 0 means unlimited.
	MaxTabs int

	next   model.TabID
	tabs   map[model.TabID]*Tab
	order  []model.TabID
	active model.TabID
}

// NewManager returns an empty tab list. Pane ids come from ids, new pane
// terminals from factory (nil for the default).
func NewManager(ids *pane.IDAllocator, factory pane.TerminalFactory, logger *slog.Logger) *Manager {
	if ids == nil {
		ids = &pane.IDAllocator{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:  logger,
		ids:     ids,
		factory: factory,
		tabs:    make(map[model.TabID]*Tab),
	}
}

// CreateTab adds an empty tab. It fails with ErrLimit at the ceiling.
func (m *Manager) CreateTab() (model.TabID, error) {
	if m.MaxTabs > 0 && len(m.order) >= m.MaxTabs {
		return 0, fmt.Errorf("%w: %d of %d", ErrLimit, len(m.order), m.MaxTabs)
	}
	m.next++
	t := &Tab{
		ID:    m.next,
		Panes: pane.NewManager(m.ids, m.factory, m.logger),
	}
	m.tabs[t.ID] = t
	m.order = append(m.order, t.ID)
	if len(m.order) == 1 {
		m.active = t.ID
	}
	return t.ID, nil
}

// CreateGatewayTab adds the tab that hosts the control-mode terminal. It is
// not subject to the ceiling.
func (m *Manager) CreateGatewayTab(term *terminal.Terminal, title string) model.TabID {
	m.next++
	t := &Tab{
		ID:       m.next,
		Title:    title,
		Panes:    pane.NewManager(m.ids, m.factory, m.logger),
		Terminal: term,
	}
	m.tabs[t.ID] = t
	m.order = append(m.order, t.ID)
	if len(m.order) == 1 {
		m.active = t.ID
	}
	return t.ID
}

// Get returns the tab with the given id.
func (m *Manager) Get(id model.TabID) (*Tab, bool) {
	t, ok := m.tabs[id]
	return t, ok
}

// Tabs returns the tabs in creation order.
func (m *Manager) Tabs() []*Tab {
	out := make([]*Tab, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.tabs[id])
	}
	return out
}

func (m *Manager) Count() int { return len(m.order) }

// Close removes a tab and closes its panes. It reports whether the tab
// existed and whether it was the last one.
func (m *Manager) Close(id model.TabID) (closed, wasLast bool) {
	t, ok := m.tabs[id]
	if !ok {
		return false, false
	}
	t.Panes.Close()
	delete(m.tabs, id)
	idx := slices.Index(m.order, id)
	m.order = slices.Delete(m.order, idx, idx+1)
	if m.active == id {
		m.active = 0
		if len(m.order) > 0 {
			m.active = m.order[min(idx, len(m.order)-1)]
		}
	}
	return true, len(m.order) == 0
}

// SwitchTo makes id the active tab.
func (m *Manager) SwitchTo(id model.TabID) bool {
	if _, ok := m.tabs[id]; !ok {
		return false
	}
	m.active = id
	return true
}

// Active returns the active tab, if any.
func (m *Manager) Active() (*Tab, bool) {
	t, ok := m.tabs[m.active]
	return t, ok
}

// Next activates the tab after the active one, wrapping around.
func (m *Manager) Next() {
	m.step(1)
}

// Prev activates the tab before the active one, wrapping around.
func (m *Manager) Prev() {
	m.step(-1)
}

func (m *Manager) step(d int) {
	if len(m.order) == 0 {
		return
	}
	idx := slices.Index(m.order, m.active)
	idx = (idx + d + len(m.order)) % len(m.order)
	m.active = m.order[idx]
}
