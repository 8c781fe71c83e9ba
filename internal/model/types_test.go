package model

import (
	"encoding/json"
	"testing"
)

func TestIDStrings(t *testing.T) {
	if got := WindowID(3).String(); got != "@3" {
		t.Errorf("WindowID: got %q, want %q", got, "@3")
	}
	if got := PaneID(0).String(); got != "%0" {
		t.Errorf("PaneID: got %q, want %q", got, "%0")
	}
	if got := SessionID(12).String(); got != "$12" {
		t.Errorf("SessionID: got %q, want %q", got, "$12")
	}
}

func TestIDJSON(t *testing.T) {
	w := WindowID(7)
	p := PaneID(4)
	snap := TabSnapshot{ID: 1, Title: "x", Window: &w, Panes: []PaneSnapshot{{ID: 2, TmuxID: &p}}}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"id":1,"title":"x","window":"@7","panes":[{"id":2,"tmux_id":"%4","bounds":{"x":0,"y":0,"width":0,"height":0},"cols":0,"rows":0}]}`
	if string(data) != want {
		t.Errorf("got %s\nwant %s", data, want)
	}

	var back TabSnapshot
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Window == nil || *back.Window != 7 {
		t.Errorf("window: got %v, want @7", back.Window)
	}
	if back.Panes[0].TmuxID == nil || *back.Panes[0].TmuxID != 4 {
		t.Errorf("pane: got %v, want %%4", back.Panes[0].TmuxID)
	}
}

func TestUnmarshalTextRejectsGarbage(t *testing.T) {
	var p PaneID
	if err := p.UnmarshalText([]byte("%x")); err == nil {
		t.Errorf("expected error for %q", "%x")
	}
	var w WindowID
	if err := w.UnmarshalText([]byte("12")); err != nil || w != 12 {
		t.Errorf("bare number: got %v, %v", w, err)
	}
}

func TestContentArea(t *testing.T) {
	b := BoundsInfo{
		Width: 1000, Height: 800, ScaleFactor: 2,
		Padding: 10, ContentOffsetY: 40, ContentInsetRight: 20,
		CellWidth: 10, CellHeight: 20, StatusBarHeight: 30,
	}

	got := b.ContentArea(false)
	want := Rect{X: 10, Y: 40, Width: 1000 - 20 - 20, Height: 800 - 40 - 10 - 30}
	if got != want {
		t.Errorf("with padding: got %+v, want %+v", got, want)
	}

	got = b.ContentArea(true)
	want = Rect{X: 0, Y: 40, Width: 1000 - 20, Height: 800 - 40 - 30}
	if got != want {
		t.Errorf("hidden padding: got %+v, want %+v", got, want)
	}

	cols, rows := b.GridSize(false)
	if cols != 96 || rows != 36 {
		t.Errorf("grid: got %dx%d, want 96x36", cols, rows)
	}

	unscaled := b
	unscaled.ScaleFactor = 1
	if got, want := unscaled.ContentArea(false), b.ContentArea(false); got != want {
		t.Errorf("scale factor changed physical bounds: got %+v, want %+v", got, want)
	}
}

func TestContentAreaNeverNegative(t *testing.T) {
	b := BoundsInfo{Width: 10, Height: 10, Padding: 20, StatusBarHeight: 50}
	got := b.ContentArea(false)
	if got.Width != 0 || got.Height != 0 {
		t.Errorf("got %+v, want zero size", got)
	}
	if c, r := (BoundsInfo{}).GridSize(false); c != 0 || r != 0 {
		t.Errorf("zero cell size: got %dx%d", c, r)
	}
}
