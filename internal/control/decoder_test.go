package control

import (
	"bytes"
	"testing"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want Event
	}{
		{"%window-add @3", Event{Kind: KindWindowAdd, WindowID: "@3"}},
		{"%window-close @0", Event{Kind: KindWindowClose, WindowID: "@0"}},
		{"%window-renamed @2 my editor", Event{Kind: KindWindowRenamed, WindowID: "@2", Name: "my editor"}},
		{"%unlinked-window-add @9", Event{Kind: KindUnlinkedWindowAdd, WindowID: "@9"}},
		{"%session-changed $1 work", Event{Kind: KindSessionChanged, SessionID: "$1", Name: "work"}},
		{"%session-renamed $1 play", Event{Kind: KindSessionRenamed, SessionID: "$1", Name: "play"}},
		{"%session-renamed play", Event{Kind: KindSessionRenamed, Name: "play"}},
		{"%sessions-changed", Event{Kind: KindSessionsChanged}},
		{"%session-window-changed $1 @4", Event{Kind: KindSessionWindowChanged, SessionID: "$1", WindowID: "@4"}},
		{"%client-session-changed /dev/pts/3 $2 other", Event{Kind: KindClientSessionChanged, Client: "/dev/pts/3", SessionID: "$2", Name: "other"}},
		{"%client-detached /dev/pts/3", Event{Kind: KindClientDetached, Client: "/dev/pts/3"}},
		{"%window-pane-changed @1 %5", Event{Kind: KindWindowPaneChanged, WindowID: "@1", PaneID: "%5"}},
		{"%pane-mode-changed %5", Event{Kind: KindPaneModeChanged, PaneID: "%5"}},
		{"%pause %5", Event{Kind: KindPause, PaneID: "%5"}},
		{"%continue %5", Event{Kind: KindContinue, PaneID: "%5"}},
		{"%exit", Event{Kind: KindExit}},
		{"%exit server exited", Event{Kind: KindExit, Reason: "server exited"}},
		{"%paste-buffer-changed buffer0", Event{Kind: KindPasteBufferChanged, Name: "buffer0"}},
		{"%paste-buffer-deleted buffer0", Event{Kind: KindPasteBufferDeleted, Name: "buffer0"}},
		{"%config-error bad line", Event{Kind: KindUnknown, Line: "%config-error bad line"}},
		{"%window-add", Event{Kind: KindUnknown, Line: "%window-add"}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got := ParseLine(tt.line)
			if got.Kind != tt.want.Kind {
				t.Fatalf("kind: got %v, want %v", got.Kind, tt.want.Kind)
			}
			if got.WindowID != tt.want.WindowID || got.PaneID != tt.want.PaneID || got.SessionID != tt.want.SessionID {
				t.Errorf("ids: got (%q, %q, %q), want (%q, %q, %q)",
					got.WindowID, got.PaneID, got.SessionID, tt.want.WindowID, tt.want.PaneID, tt.want.SessionID)
			}
			if got.Name != tt.want.Name {
				t.Errorf("name: got %q, want %q", got.Name, tt.want.Name)
			}
			if got.Client != tt.want.Client {
				t.Errorf("client: got %q, want %q", got.Client, tt.want.Client)
			}
			if got.Reason != tt.want.Reason {
				t.Errorf("reason: got %q, want %q", got.Reason, tt.want.Reason)
			}
			if tt.want.Kind == KindUnknown && got.Line != tt.want.Line {
				t.Errorf("line: got %q, want %q", got.Line, tt.want.Line)
			}
		})
	}
}

func TestParseLineOutput(t *testing.T) {
	ev := ParseLine(`%output %1 hello\040world\015\012`)
	if ev.Kind != KindOutput || ev.PaneID != "%1" {
		t.Fatalf("got %v %q, want output %%1", ev.Kind, ev.PaneID)
	}
	if got, want := string(ev.Data), "hello world\r\n"; got != want {
		t.Errorf("data: got %q, want %q", got, want)
	}

	// a payload may start with a space
	ev = ParseLine("%output %2  indented")
	if got, want := string(ev.Data), " indented"; got != want {
		t.Errorf("leading space: got %q, want %q", got, want)
	}

	ev = ParseLine("%output %3")
	if ev.Kind != KindOutput || len(ev.Data) != 0 {
		t.Errorf("empty output: got %v with %q", ev.Kind, ev.Data)
	}

	ev = ParseLine(`%output %1 broken\0`)
	if ev.Kind != KindUnknown {
		t.Errorf("truncated escape: got %v, want unknown", ev.Kind)
	}
}

func TestParseLineExtendedOutput(t *testing.T) {
	ev := ParseLine(`%extended-output %7 250 : ls\012`)
	if ev.Kind != KindExtendedOutput {
		t.Fatalf("kind: got %v, want extended-output", ev.Kind)
	}
	if ev.PaneID != "%7" || ev.Age != 250 {
		t.Errorf("got pane %q age %d, want %%7 250", ev.PaneID, ev.Age)
	}
	if got, want := string(ev.Data), "ls\n"; got != want {
		t.Errorf("data: got %q, want %q", got, want)
	}
}

func TestParseLineLayoutChange(t *testing.T) {
	ev := ParseLine("%layout-change @1 b25e,80x24,0,0,1 b25e,80x24,0,0,1 *")
	if ev.Kind != KindLayoutChange {
		t.Fatalf("kind: got %v, want layout-change", ev.Kind)
	}
	if ev.WindowID != "@1" || ev.Layout != "b25e,80x24,0,0,1" || ev.VisibleLayout != "b25e,80x24,0,0,1" {
		t.Errorf("got %+v", ev)
	}

	// older tmux sends only the layout
	ev = ParseLine("%layout-change @2 b25e,80x24,0,0,1")
	if ev.Kind != KindLayoutChange || ev.Layout != "b25e,80x24,0,0,1" || ev.VisibleLayout != "" {
		t.Errorf("short form: got %+v", ev)
	}
}

func TestParseLineTerminalOutput(t *testing.T) {
	ev := ParseLine("$ tmux -C attach")
	if ev.Kind != KindTerminalOutput {
		t.Fatalf("got %v, want terminal-output", ev.Kind)
	}
	if got, want := string(ev.Data), "$ tmux -C attach\n"; got != want {
		t.Errorf("data: got %q, want %q", got, want)
	}
}

func TestDecoderBlocks(t *testing.T) {
	d := NewDecoder()
	d.FeedLine("%begin 1700000000 12 1")
	if !d.InBlock() {
		t.Fatal("expected an open block after begin line")
	}
	d.FeedLine("main: 2 windows")
	// notifications never appear inside a block; a %window-add here is body
	d.FeedLine("%window-add @9")
	d.FeedLine("%end 1700000000 12 1")
	d.FeedLine("%window-add @1")

	events := d.Drain()
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3: %+v", len(events), events)
	}
	if events[0].Kind != KindBegin || events[0].Number != 12 || events[0].Flags != 1 {
		t.Errorf("begin: got %+v", events[0])
	}
	if events[1].Kind != KindEnd || len(events[1].Body) != 2 || events[1].Body[0] != "main: 2 windows" {
		t.Errorf("end: got %+v", events[1])
	}
	if events[2].Kind != KindWindowAdd || events[2].WindowID != "@1" {
		t.Errorf("after block: got %+v", events[2])
	}
	if d.Pending() != 0 {
		t.Errorf("pending after drain: got %d, want 0", d.Pending())
	}
}

func TestDecoderErrorBlock(t *testing.T) {
	d := NewDecoder()
	d.FeedLine("%begin 1 3 0")
	d.FeedLine("unknown command: frobnicate")
	// a guard with another number is body text
	d.FeedLine("%end 1 2 0")
	d.FeedLine("%error 1 3 0")

	events := d.Drain()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	got := events[1]
	if got.Kind != KindError {
		t.Fatalf("kind: got %v, want error", got.Kind)
	}
	if want := "unknown command: frobnicate\n%end 1 2 0"; got.Message() != want {
		t.Errorf("message: got %q, want %q", got.Message(), want)
	}
}

func TestDecoderWriteSplitsLines(t *testing.T) {
	d := NewDecoder()
	stream := []byte(dcsPrefix + "%begin 1 1 0\r\n%end 1 1 0\n%window-add @2\n%out")
	if _, err := d.Write(stream[:10]); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Write(stream[10:]); err != nil {
		t.Fatal(err)
	}
	events := d.Drain()
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3: %+v", len(events), events)
	}
	if events[0].Kind != KindBegin {
		t.Errorf("dcs prefix not stripped: got %v", events[0].Kind)
	}

	// the partial %output line completes on the next write
	if _, err := d.Write([]byte("put %1 x\n")); err != nil {
		t.Fatal(err)
	}
	events = d.Drain()
	if len(events) != 1 || events[0].Kind != KindOutput || !bytes.Equal(events[0].Data, []byte("x")) {
		t.Fatalf("got %+v, want one output event", events)
	}
}

func TestDecoderReset(t *testing.T) {
	d := NewDecoder()
	d.FeedLine("%begin 1 1 0")
	_, _ = d.Write([]byte("half"))
	d.Reset()
	if d.InBlock() || d.Pending() != 0 {
		t.Fatal("reset left state behind")
	}
	d.FeedLine("%window-add @1")
	if events := d.Drain(); len(events) != 1 || events[0].Kind != KindWindowAdd {
		t.Fatalf("got %+v after reset", events)
	}
}

func TestUnescape(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"", "", true},
		{"plain", "plain", true},
		{`\033[1m`, "\x1b[1m", true},
		{`a\134b`, `a\b`, true},
		{`\\`, `\`, true},
		{`tab\there`, "tab\there", true},
		{`bad\`, "", false},
		{`bad\08`, "", false},
	}
	for _, tt := range tests {
		got, ok := Unescape(tt.in)
		if ok != tt.ok {
			t.Errorf("Unescape(%q) ok: got %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && string(got) != tt.want {
			t.Errorf("Unescape(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}
