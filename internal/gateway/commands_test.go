package gateway

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/timvw/pane-gateway/internal/model"
)

func TestCommandBuilders(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{SendKeys(3, "C-l"), "send-keys -t %3 C-l\n"},
		{SendLiteral(0, "echo 'hi'"), `send-keys -t %0 -l 'echo '\''hi'\'''` + "\n"},
		{SelectPane(2), "select-pane -t %2\n"},
		{SelectWindow(1), "select-window -t @1\n"},
		{SplitWindow(2, true), "split-window -h -t %2\n"},
		{SplitWindow(2, false), "split-window -v -t %2\n"},
		{KillPane(5), "kill-pane -t %5\n"},
		{RefreshClient(), "refresh-client\n"},
		{RefreshClientSize(80, 24), "refresh-client -C 80x24\n"},
		{WindowSizeSmallest(), "set-option -g window-size smallest\n"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestIsControlSequence(t *testing.T) {
	for _, keys := range []string{"Enter", "Escape", "C-c", "M-x", "BSpace", "PPage"} {
		if !isControlSequence(keys) {
			t.Errorf("%q: got literal, want key name", keys)
		}
	}
	for _, keys := range []string{"y", "yes", "C-cc", "enter", "ls -l"} {
		if isControlSequence(keys) {
			t.Errorf("%q: got key name, want literal", keys)
		}
	}
}

func TestSendInputAndSubmit(t *testing.T) {
	rec := &recorder{}
	c := NewCommander(rec, nil, nil)

	if err := c.SendInput(1, "C-c"); err != nil {
		t.Fatal(err)
	}
	if err := c.Submit(1, "make"); err != nil {
		t.Fatal(err)
	}
	if err := c.Submit(1, "Enter"); err != nil {
		t.Fatal(err)
	}
	if err := c.SendInput(1, ""); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"send-keys -t %1 C-c\n",
		"send-keys -t %1 -l 'make'\n",
		"send-keys -t %1 Enter\n",
		"send-keys -t %1 Enter\n",
	}
	if !reflect.DeepEqual(rec.cmds, want) {
		t.Errorf("got %q, want %q", rec.cmds, want)
	}
}

func TestRefreshClientIsRateLimited(t *testing.T) {
	rec := &recorder{}
	c := NewCommander(rec, rate.NewLimiter(rate.Every(time.Hour), 1), nil)

	c.RefreshPanes(nil, []model.PaneID{1})
	c.RefreshPanes(nil, []model.PaneID{2})
	want := []string{"send-keys -t %1 C-l\n", "refresh-client\n", "send-keys -t %2 C-l\n"}
	if !reflect.DeepEqual(rec.cmds, want) {
		t.Fatalf("got %q, want %q", rec.cmds, want)
	}
	if !c.RefreshPending() {
		t.Fatal("held back refresh not pending")
	}
	c.Flush()
	if len(rec.cmds) != 3 {
		t.Errorf("flush sent a refresh inside the limit: %q", rec.cmds)
	}
}

func TestFlushSendsPendingRefresh(t *testing.T) {
	rec := &recorder{}
	lim := rate.NewLimiter(rate.Every(time.Hour), 1)
	c := NewCommander(rec, lim, nil)
	c.RefreshPanes(nil, nil)
	c.RefreshPanes(nil, nil)
	if !c.RefreshPending() {
		t.Fatal("second refresh not held back")
	}

	lim.SetLimit(rate.Inf)
	c.Flush()
	if c.RefreshPending() {
		t.Error("refresh still pending after flush")
	}
	if want := []string{"refresh-client\n", "refresh-client\n"}; !reflect.DeepEqual(rec.cmds, want) {
		t.Errorf("got %q, want %q", rec.cmds, want)
	}
}

func TestSendReportsWriterErrors(t *testing.T) {
	boom := errors.New("pipe closed")
	c := NewCommander(CommandWriterFunc(func(string) error { return boom }), nil, nil)
	if err := c.Send(RefreshClient()); !errors.Is(err, boom) {
		t.Fatalf("got %v, want %v", err, boom)
	}
	if err := c.ResizeClient(0, 10); err != nil {
		t.Errorf("zero size sent: %v", err)
	}
}
