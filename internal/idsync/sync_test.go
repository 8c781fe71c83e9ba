package idsync

import (
	"reflect"
	"testing"

	"github.com/timvw/pane-gateway/internal/bridge"
	"github.com/timvw/pane-gateway/internal/model"
)

func newEnabled() *Sync {
	s := New(nil)
	s.Enable()
	return s
}

func TestDisabledReturnsNothing(t *testing.T) {
	s := New(nil)
	got := s.ProcessNotifications([]bridge.Notification{bridge.WindowAdd{Window: 1}})
	if got != nil {
		t.Fatalf("got %v, want no actions while disabled", got)
	}
}

func TestWindowLifecycle(t *testing.T) {
	s := newEnabled()

	got := s.ProcessNotifications([]bridge.Notification{bridge.WindowAdd{Window: 0}})
	if want := []Action{CreateTab{Window: 0}}; !reflect.DeepEqual(got, want) {
		t.Fatalf("add: got %v, want %v", got, want)
	}

	s.MapWindow(0, 7)
	s.MapPane(7, 1, 100)
	s.MapPane(7, 2, 101)

	// a second add for a mapped window is ignored
	if got := s.ProcessNotifications([]bridge.Notification{bridge.WindowAdd{Window: 0}}); len(got) != 0 {
		t.Errorf("duplicate add: got %v, want nothing", got)
	}

	got = s.ProcessNotifications([]bridge.Notification{bridge.WindowRenamed{Window: 0, Name: "build"}})
	if want := []Action{RenameTab{Window: 0, Tab: 7, Name: "build"}}; !reflect.DeepEqual(got, want) {
		t.Errorf("rename: got %v, want %v", got, want)
	}

	got = s.ProcessNotifications([]bridge.Notification{bridge.WindowClose{Window: 0}})
	if want := []Action{CloseTab{Window: 0, Tab: 7}}; !reflect.DeepEqual(got, want) {
		t.Fatalf("close: got %v, want %v", got, want)
	}
	if _, ok := s.TabFor(0); ok {
		t.Error("window still mapped after close")
	}
	if s.PaneCount() != 0 {
		t.Errorf("panes after close: got %d, want 0", s.PaneCount())
	}
	if err := s.CheckInvariant(); err != nil {
		t.Fatal(err)
	}
}

func TestLayoutAndOutputTranslation(t *testing.T) {
	s := newEnabled()
	s.MapWindow(1, 3)
	s.MapPane(3, 5, 50)

	batch := []bridge.Notification{
		bridge.LayoutChange{Window: 1, Layout: "a"},
		bridge.LayoutChange{Window: 2, Layout: "b"},
		bridge.Output{Pane: 5, Data: []byte("x")},
		bridge.Output{Pane: 6, Data: []byte("y")},
	}
	got := s.ProcessNotifications(batch)
	want := []Action{
		UpdateLayout{Window: 1, Tab: 3, Layout: "a"},
		PaneOutput{Pane: 5, Native: 50, Tab: 3, Data: []byte("x")},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	unresolved := s.Unresolved(batch)
	wantUnresolved := []bridge.Notification{
		bridge.LayoutChange{Window: 2, Layout: "b"},
		bridge.Output{Pane: 6, Data: []byte("y")},
	}
	if !reflect.DeepEqual(unresolved, wantUnresolved) {
		t.Errorf("unresolved: got %v, want %v", unresolved, wantUnresolved)
	}
}

func TestMapPaneKeepsInverse(t *testing.T) {
	s := newEnabled()
	s.MapPane(1, 1, 10)
	s.MapPane(1, 2, 20)

	// native 10 is reassigned to %3; %1 must disappear
	s.MapPane(1, 3, 10)
	if _, ok := s.NativeFor(1); ok {
		t.Error("pane 1 still mapped after its native pane was reassigned")
	}
	// %2 moves to another tab with a new native pane
	s.MapPane(2, 2, 30)
	if _, ok := s.TmuxFor(20); ok {
		t.Error("native 20 still mapped after pane 2 was remapped")
	}
	if tab, _ := s.TabOfPane(2); tab != 2 {
		t.Errorf("tab of %%2: got %d, want 2", tab)
	}
	if err := s.CheckInvariant(); err != nil {
		t.Fatal(err)
	}
	if got, want := s.MappedPanes(1), []model.PaneID{3}; !reflect.DeepEqual(got, want) {
		t.Errorf("tab 1 panes: got %v, want %v", got, want)
	}
}

func TestReplaceTabPanes(t *testing.T) {
	s := newEnabled()
	s.MapPane(1, 1, 10)
	s.MapPane(1, 2, 11)
	s.MapPane(2, 9, 90)

	s.ReplaceTabPanes(1, map[model.PaneID]model.NativePaneID{2: 12, 3: 13})

	want := map[model.PaneID]model.NativePaneID{2: 12, 3: 13}
	if got := s.TabPanes(1); !reflect.DeepEqual(got, want) {
		t.Errorf("tab 1: got %v, want %v", got, want)
	}
	if got := s.TabPanes(2); len(got) != 1 {
		t.Errorf("tab 2 touched: got %v", got)
	}
	if err := s.CheckInvariant(); err != nil {
		t.Fatal(err)
	}
}

func TestMapWindowReplacesPairs(t *testing.T) {
	s := newEnabled()
	s.MapWindow(1, 10)
	s.MapWindow(2, 10)
	if _, ok := s.TabFor(1); ok {
		t.Error("@1 still mapped after tab 10 was given to @2")
	}
	if w, _ := s.WindowFor(10); w != 2 {
		t.Errorf("window of tab 10: got %s, want @2", w)
	}
	if err := s.CheckInvariant(); err != nil {
		t.Fatal(err)
	}
}

func TestPauseBuffersInArrivalOrder(t *testing.T) {
	s := newEnabled()
	s.MapPane(4, 1, 10)

	if got := s.ProcessNotifications([]bridge.Notification{bridge.Pause{Pane: 1}}); !reflect.DeepEqual(got, []Action{Pause{Pane: 1}}) {
		t.Fatalf("pause: got %v", got)
	}
	out := []bridge.Notification{
		bridge.Output{Pane: 1, Data: []byte("a")},
		bridge.Output{Pane: 1, Data: []byte("b")},
	}
	if got := s.ProcessNotifications(out); len(got) != 0 {
		t.Fatalf("output while paused: got %v, want nothing", got)
	}
	if got := s.Unresolved(out); len(got) != 0 {
		t.Errorf("buffered output reported unresolved: %v", got)
	}
	if !s.AnyPaused() {
		t.Error("AnyPaused: got false, want true")
	}

	got := s.ProcessNotifications([]bridge.Notification{bridge.Continue{Pane: 1}})
	want := []Action{Continue{Pane: 1, Native: 10, Tab: 4, Mapped: true, Buffered: [][]byte{[]byte("a"), []byte("b")}}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("continue: got %v, want %v", got, want)
	}
	if s.IsPaused(1) {
		t.Error("still paused after continue")
	}
}

func TestSessionEndedClears(t *testing.T) {
	s := newEnabled()
	s.MapWindow(1, 20)
	s.MapWindow(0, 10)
	s.MapPane(10, 1, 1)
	s.ProcessNotifications([]bridge.Notification{bridge.Pause{Pane: 1}})

	got := s.ProcessNotifications([]bridge.Notification{bridge.SessionEnded{}})
	want := []Action{SessionEnded{Tabs: []model.TabID{10, 20}}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if s.WindowCount() != 0 || s.PaneCount() != 0 || s.AnyPaused() {
		t.Errorf("state left after session end: %d windows, %d panes, paused %v", s.WindowCount(), s.PaneCount(), s.AnyPaused())
	}
	if !s.Enabled() {
		t.Error("session end must leave enabling to the caller")
	}
}
