// Package bridge converts decoded control-mode events into the closed set of
// notifications the gateway engine acts on.
package bridge

import (
	"fmt"

	"github.com/timvw/pane-gateway/internal/model"
)

// Notification is one of the types declared in this file. The set is closed:
// the unexported marker method keeps other packages from adding variants, so
// a type switch over these types is exhaustive.
type Notification interface {
	Kind() Kind
	notification()
}

// Kind names a notification type, for logs and metrics.
type Kind int

const (
	KindControlModeStarted Kind = iota
	KindSessionStarted
	KindSessionRenamed
	KindSessionEnded
	KindWindowAdd
	KindWindowClose
	KindWindowRenamed
	KindLayoutChange
	KindOutput
	KindPaneFocusChanged
	KindPause
	KindContinue
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindControlModeStarted:
		return "control_mode_started"
	case KindSessionStarted:
		return "session_started"
	case KindSessionRenamed:
		return "session_renamed"
	case KindSessionEnded:
		return "session_ended"
	case KindWindowAdd:
		return "window_add"
	case KindWindowClose:
		return "window_close"
	case KindWindowRenamed:
		return "window_renamed"
	case KindLayoutChange:
		return "layout_change"
	case KindOutput:
		return "output"
	case KindPaneFocusChanged:
		return "pane_focus_changed"
	case KindPause:
		return "pause"
	case KindContinue:
		return "continue"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ControlModeStarted is sent for the first %begin of a control client.
type ControlModeStarted struct{}

// SessionStarted reports the session the control client is attached to.
type SessionStarted struct {
	Name string
}

// SessionRenamed reports a new name for the attached session.
type SessionRenamed struct {
	Name string
}

// SessionEnded is sent when the control client exits.
type SessionEnded struct {
	Reason string
}

type WindowAdd struct {
	Window model.WindowID
}

type WindowClose struct {
	Window model.WindowID
}

type WindowRenamed struct {
	Window model.WindowID
	Name   string
}

// LayoutChange carries the raw layout string; it is parsed by the consumer so
// a malformed layout can be logged and discarded where it is applied.
type LayoutChange struct {
	Window model.WindowID
	Layout string
}

// Output is a chunk of pane output, already unescaped.
type Output struct {
	Pane model.PaneID
	Data []byte
}

// PaneFocusChanged reports the active pane of a window.
type PaneFocusChanged struct {
	Window model.WindowID
	Pane   model.PaneID
}

// Pause reports that tmux stopped sending output for a pane.
type Pause struct {
	Pane model.PaneID
}

// Continue reports that output for a pane resumes.
type Continue struct {
	Pane model.PaneID
}

// Error carries the body of a %error block.
type Error struct {
	Message string
}

func (ControlModeStarted) Kind() Kind { return KindControlModeStarted }
func (SessionStarted) Kind() Kind     { return KindSessionStarted }
func (SessionRenamed) Kind() Kind     { return KindSessionRenamed }
func (SessionEnded) Kind() Kind       { return KindSessionEnded }
func (WindowAdd) Kind() Kind          { return KindWindowAdd }
func (WindowClose) Kind() Kind        { return KindWindowClose }
func (WindowRenamed) Kind() Kind      { return KindWindowRenamed }
func (LayoutChange) Kind() Kind       { return KindLayoutChange }
func (Output) Kind() Kind             { return KindOutput }
func (PaneFocusChanged) Kind() Kind   { return KindPaneFocusChanged }
func (Pause) Kind() Kind              { return KindPause }
func (Continue) Kind() Kind           { return KindContinue }
func (Error) Kind() Kind              { return KindError }

func (ControlModeStarted) notification() {}
func (SessionStarted) notification()     {}
func (SessionRenamed) notification()     {}
func (SessionEnded) notification()       {}
func (WindowAdd) notification()          {}
func (WindowClose) notification()        {}
func (WindowRenamed) notification()      {}
func (LayoutChange) notification()       {}
func (Output) notification()             {}
func (PaneFocusChanged) notification()   {}
func (Pause) notification()              {}
func (Continue) notification()           {}
func (Error) notification()              {}

// Group is the processing bucket of a notification within one poll.
type Group int

const (
	// GroupDirect notifications bypass identifier translation.
	GroupDirect Group = iota
	// GroupStructure establishes and destroys window to tab mappings.
	GroupStructure
	// GroupLayout needs the window mappings of GroupStructure.
	GroupLayout
	// GroupOutput needs the pane mappings of GroupLayout.
	GroupOutput
	// GroupFlow is pause and continue.
	GroupFlow
)

func (g Group) String() string {
	switch g {
	case GroupDirect:
		return "direct"
	case GroupStructure:
		return "structure"
	case GroupLayout:
		return "layout"
	case GroupOutput:
		return "output"
	case GroupFlow:
		return "flow"
	default:
		return fmt.Sprintf("group(%d)", int(g))
	}
}

// GroupOf classifies n.
func GroupOf(n Notification) Group {
	switch n.(type) {
	case WindowAdd, WindowClose, WindowRenamed, SessionEnded:
		return GroupStructure
	case LayoutChange:
		return GroupLayout
	case Output:
		return GroupOutput
	case Pause, Continue:
		return GroupFlow
	default:
		return GroupDirect
	}
}

// Partition splits a batch into its groups, keeping arrival order inside
// each group.
func Partition(batch []Notification) map[Group][]Notification {
	out := make(map[Group][]Notification, 5)
	for _, n := range batch {
		g := GroupOf(n)
		out[g] = append(out[g], n)
	}
	return out
}
