package idsync

import "github.com/timvw/pane-gateway/internal/model"

// Action is a translated notification, ready to be applied to local tabs
// and panes. The set is closed.
type Action interface {
	action()
}

// CreateTab asks for a tab for a window that has none yet.
type CreateTab struct {
	Window model.WindowID
}

// CloseTab asks for the tab of a closed window to go away. The window and
// its panes are already unmapped when the action is returned.
type CloseTab struct {
	Window model.WindowID
	Tab    model.TabID
}

type RenameTab struct {
	Window model.WindowID
	Tab    model.TabID
	Name   string
}

// UpdateLayout applies a window layout to its mapped tab.
type UpdateLayout struct {
	Window model.WindowID
	Tab    model.TabID
	Layout string
}

// PaneOutput routes output to a mapped local pane.
type PaneOutput struct {
	Pane   model.PaneID
	Native model.NativePaneID
	Tab    model.TabID
	Data   []byte
}

// SessionEnded lists the tabs that were mapped when the session ended. The
// maps are cleared when the action is returned.
type SessionEnded struct {
	Tabs []model.TabID
}

type Pause struct {
	Pane model.PaneID
}

// Continue carries the output buffered while the pane was paused, oldest
// first. Mapped is false when the pane has no local pane.
type Continue struct {
	Pane     model.PaneID
	Native   model.NativePaneID
	Tab      model.TabID
	Mapped   bool
	Buffered [][]byte
}

func (CreateTab) action()    {}
func (CloseTab) action()     {}
func (RenameTab) action()    {}
func (UpdateLayout) action() {}
func (PaneOutput) action()   {}
func (SessionEnded) action() {}
func (Pause) action()        {}
func (Continue) action()     {}
