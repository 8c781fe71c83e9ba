// Package control decodes the tmux control-mode line protocol into events.
//
// Decoding stops at the protocol level: ids are kept as the raw tokens tmux
// sent ("%3", "@1", "$0") and no event is interpreted. The gateway bridge
// turns events into notifications.
package control

import "fmt"

// Kind identifies a control-mode line.
type Kind int

const (
	KindBegin Kind = iota
	KindEnd
	KindError
	KindOutput
	KindExtendedOutput
	KindLayoutChange
	KindWindowAdd
	KindWindowClose
	KindWindowRenamed
	KindUnlinkedWindowAdd
	KindUnlinkedWindowClose
	KindUnlinkedWindowRenamed
	KindSessionChanged
	KindSessionRenamed
	KindSessionsChanged
	KindSessionWindowChanged
	KindClientSessionChanged
	KindClientDetached
	KindWindowPaneChanged
	KindPaneModeChanged
	KindPause
	KindContinue
	KindExit
	KindSubscriptionChanged
	KindPasteBufferChanged
	KindPasteBufferDeleted
	KindUnknown
	// KindTerminalOutput is a line outside any block that is not a notification,
	// e.g. shell output before tmux entered control mode.
	KindTerminalOutput
)

var kindNames = [...]string{
	KindBegin:                 "begin",
	KindEnd:                   "end",
	KindError:                 "error",
	KindOutput:                "output",
	KindExtendedOutput:        "extended-output",
	KindLayoutChange:          "layout-change",
	KindWindowAdd:             "window-add",
	KindWindowClose:           "window-close",
	KindWindowRenamed:         "window-renamed",
	KindUnlinkedWindowAdd:     "unlinked-window-add",
	KindUnlinkedWindowClose:   "unlinked-window-close",
	KindUnlinkedWindowRenamed: "unlinked-window-renamed",
	KindSessionChanged:        "session-changed",
	KindSessionRenamed:        "session-renamed",
	KindSessionsChanged:       "sessions-changed",
	KindSessionWindowChanged:  "session-window-changed",
	KindClientSessionChanged:  "client-session-changed",
	KindClientDetached:        "client-detached",
	KindWindowPaneChanged:     "window-pane-changed",
	KindPaneModeChanged:       "pane-mode-changed",
	KindPause:                 "pause",
	KindContinue:              "continue",
	KindExit:                  "exit",
	KindSubscriptionChanged:   "subscription-changed",
	KindPasteBufferChanged:    "paste-buffer-changed",
	KindPasteBufferDeleted:    "paste-buffer-deleted",
	KindUnknown:               "unknown",
	KindTerminalOutput:        "terminal-output",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event is one decoded control-mode line. Only the fields relevant to Kind
// are set.
type Event struct {
	Kind Kind

	PaneID    string
	WindowID  string
	SessionID string
	Client    string
	Name      string

	// Layout and VisibleLayout come from %layout-change.
	Layout        string
	VisibleLayout string

	// Data is the unescaped payload of %output and %extended-output, or the
	// raw bytes of terminal output.
	Data []byte
	// Age is the %extended-output age in milliseconds.
	Age int

	// Time, Number and Flags come from %begin, %end and %error.
	Time   int64
	Number int
	Flags  int
	// Body holds the response lines of a %end or %error block.
	Body []string

	// Reason is the optional %exit reason.
	Reason string
	// Line is the original line, kept for unknown and subscription events.
	Line string
}

// Message returns the body of an error block as one string.
func (e Event) Message() string {
	switch len(e.Body) {
	case 0:
		return ""
	case 1:
		return e.Body[0]
	}
	out := e.Body[0]
	for _, l := range e.Body[1:] {
		out += "\n" + l
	}
	return out
}
