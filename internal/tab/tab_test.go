package tab

import (
	"errors"
	"testing"

	"github.com/timvw/pane-gateway/internal/layout"
	"github.com/timvw/pane-gateway/internal/terminal"
)

func TestCreateAndClose(t *testing.T) {
	m := NewManager(nil, nil, nil)
	gw := m.CreateGatewayTab(terminal.New(0), "gateway")
	a, err := m.CreateTab()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := m.CreateTab()

	if m.Count() != 3 {
		t.Fatalf("count: got %d, want 3", m.Count())
	}
	if tab, _ := m.Get(gw); !tab.IsGateway() {
		t.Error("gateway tab not marked")
	}
	if active, _ := m.Active(); active.ID != gw {
		t.Errorf("active: got %d, want the first tab %d", active.ID, gw)
	}

	m.SwitchTo(a)
	closed, wasLast := m.Close(a)
	if !closed || wasLast {
		t.Fatalf("Close(a): got (%v, %v), want (true, false)", closed, wasLast)
	}
	if active, _ := m.Active(); active.ID != b {
		t.Errorf("active after close: got %d, want %d", active.ID, b)
	}
	if closed, _ := m.Close(a); closed {
		t.Error("closing twice reported true")
	}
	m.Close(gw)
	if _, wasLast := m.Close(b); !wasLast {
		t.Error("closing the final tab did not report wasLast")
	}
}

func TestCloseClosesPanes(t *testing.T) {
	m := NewManager(nil, nil, nil)
	id, _ := m.CreateTab()
	tab, _ := m.Get(id)
	tree, err := layout.Parse("80x24,0,0,4")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tab.Panes.SetFromLayout(tree); err != nil {
		t.Fatal(err)
	}
	term := tab.Panes.Terminals()[0]
	m.Close(id)
	if !term.Closed() {
		t.Error("pane terminal still open after its tab closed")
	}
}

func TestCeiling(t *testing.T) {
	m := NewManager(nil, nil, nil)
	m.MaxTabs = 2
	m.CreateGatewayTab(terminal.New(0), "gateway")
	if _, err := m.CreateTab(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.CreateTab(); !errors.Is(err, ErrLimit) {
		t.Fatalf("got %v, want ErrLimit", err)
	}
	// the gateway tab ignores the ceiling
	m.CreateGatewayTab(terminal.New(0), "second")
	if m.Count() != 3 {
		t.Errorf("count: got %d, want 3", m.Count())
	}
}

func TestNextPrevWrap(t *testing.T) {
	m := NewManager(nil, nil, nil)
	a, _ := m.CreateTab()
	b, _ := m.CreateTab()
	m.Next()
	if got, _ := m.Active(); got.ID != b {
		t.Errorf("next: got %d, want %d", got.ID, b)
	}
	m.Next()
	if got, _ := m.Active(); got.ID != a {
		t.Errorf("wrap: got %d, want %d", got.ID, a)
	}
	m.Prev()
	if got, _ := m.Active(); got.ID != b {
		t.Errorf("prev: got %d, want %d", got.ID, b)
	}
}

func TestLastPane(t *testing.T) {
	tab := &Tab{}
	if tab.LastPaneID != nil {
		t.Fatal("new tab has a last pane")
	}
	tab.SetLastPane(0)
	if tab.LastPaneID == nil || *tab.LastPaneID != 0 {
		t.Errorf("got %v, want pane 0", tab.LastPaneID)
	}
}
