package bridge

import (
	"reflect"
	"testing"

	"github.com/timvw/pane-gateway/internal/control"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		in    string
		kind  IDKind
		value uint64
	}{
		{"%0", IDPane, 0},
		{"%12", IDPane, 12},
		{"@3", IDWindow, 3},
		{"$1", IDSession, 1},
		{"main", IDRaw, 0},
		{"%", IDRaw, 0},
		{"%x", IDRaw, 0},
		{"", IDRaw, 0},
	}
	for _, tt := range tests {
		got := ParseID(tt.in)
		if got.Kind != tt.kind || got.Value != tt.value {
			t.Errorf("ParseID(%q): got (%v, %d), want (%v, %d)", tt.in, got.Kind, got.Value, tt.kind, tt.value)
		}
		if got.Raw != tt.in {
			t.Errorf("ParseID(%q).Raw: got %q", tt.in, got.Raw)
		}
	}

	if _, ok := ParseID("@3").Pane(); ok {
		t.Error("window id accepted as pane id")
	}
	if w, ok := ParseID("@3").Window(); !ok || w != 3 {
		t.Errorf("Window(): got (%d, %v), want (3, true)", w, ok)
	}
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []Notification
	}{
		{"begin", "%begin 1 1 0", []Notification{ControlModeStarted{}}},
		{"session changed", "%session-changed $0 main", []Notification{SessionStarted{Name: "main"}}},
		{"session renamed", "%session-renamed $0 work", []Notification{SessionRenamed{Name: "work"}}},
		{"exit", "%exit detached", []Notification{SessionEnded{Reason: "detached"}}},
		{"window add", "%window-add @2", []Notification{WindowAdd{Window: 2}}},
		{"window close", "%window-close @0", []Notification{WindowClose{Window: 0}}},
		{"window renamed", "%window-renamed @2 logs", []Notification{WindowRenamed{Window: 2, Name: "logs"}}},
		{"layout", "%layout-change @1 b25e,80x24,0,0,1 b25e,80x24,0,0,1 *", []Notification{LayoutChange{Window: 1, Layout: "b25e,80x24,0,0,1"}}},
		{"output", `%output %4 hi\012`, []Notification{Output{Pane: 4, Data: []byte("hi\n")}}},
		{"extended output", "%extended-output %4 10 : ok", []Notification{Output{Pane: 4, Data: []byte("ok")}}},
		{"focus", "%window-pane-changed @1 %4", []Notification{PaneFocusChanged{Window: 1, Pane: 4}}},
		{"pause", "%pause %4", []Notification{Pause{Pane: 4}}},
		{"continue", "%continue %4", []Notification{Continue{Pane: 4}}},
		{"unlinked", "%unlinked-window-add @5", nil},
		{"sessions changed", "%sessions-changed", nil},
		{"client detached", "%client-detached /dev/pts/1", nil},
		{"pane mode", "%pane-mode-changed %1", nil},
		{"unknown", "%message hello", nil},
		{"terminal output", "login: ", nil},
		{"bad window id", "%window-add 7", nil},
	}
	b := New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := b.Convert(control.ParseLine(tt.line))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestConvertErrorBlock(t *testing.T) {
	d := control.NewDecoder()
	d.FeedLine("%begin 1 7 0")
	d.FeedLine("can't find pane: %9")
	d.FeedLine("%error 1 7 0")
	d.FeedLine("%begin 1 8 0")
	d.FeedLine("%end 1 8 0")

	got := New(nil).ConvertAll(d.Drain())
	want := []Notification{
		ControlModeStarted{},
		Error{Message: "can't find pane: %9"},
		ControlModeStarted{},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestPartitionKeepsOrder(t *testing.T) {
	batch := []Notification{
		Output{Pane: 1, Data: []byte("a")},
		LayoutChange{Window: 1, Layout: "x"},
		WindowAdd{Window: 1},
		Pause{Pane: 1},
		Output{Pane: 2, Data: []byte("b")},
		SessionStarted{Name: "s"},
		SessionEnded{},
	}
	groups := Partition(batch)
	if got := groups[GroupStructure]; len(got) != 2 || got[0].Kind() != KindWindowAdd || got[1].Kind() != KindSessionEnded {
		t.Errorf("structure: got %v", got)
	}
	out := groups[GroupOutput]
	if len(out) != 2 || out[0].(Output).Pane != 1 || out[1].(Output).Pane != 2 {
		t.Errorf("output order: got %v", out)
	}
	if len(groups[GroupLayout]) != 1 || len(groups[GroupFlow]) != 1 || len(groups[GroupDirect]) != 1 {
		t.Errorf("group sizes: got %d layout, %d flow, %d direct",
			len(groups[GroupLayout]), len(groups[GroupFlow]), len(groups[GroupDirect]))
	}
}
