// Package model holds the identifier types and snapshots shared by the
// gateway engine, its collaborators and the command-line surface.
package model

import (
	"fmt"
	"strconv"
)

// WindowID is a tmux window identifier (@N). Session scoped: tmux never
// reuses one while the server lives, but a new server starts at @0 again.
type WindowID uint64

// PaneID is a tmux pane identifier (%N).
type PaneID uint64

// SessionID is a tmux session identifier ($N).
type SessionID uint64

// TabID identifies a local tab. Allocated by the tab manager only.
type TabID uint64

// NativePaneID identifies a local pane. Allocated by the pane manager only
// and unique across all tabs.
type NativePaneID uint64

func (id WindowID) String() string  { return "@" + strconv.FormatUint(uint64(id), 10) }
func (id PaneID) String() string    { return "%" + strconv.FormatUint(uint64(id), 10) }
func (id SessionID) String() string { return "$" + strconv.FormatUint(uint64(id), 10) }

// MarshalText renders the id in tmux notation so JSON output reads "@3".
func (id WindowID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// MarshalText renders the id in tmux notation so JSON output reads "%3".
func (id PaneID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// UnmarshalText accepts "@N" or a bare number.
func (id *WindowID) UnmarshalText(b []byte) error {
	v, err := parsePrefixed(string(b), '@')
	if err != nil {
		return fmt.Errorf("window id: %w", err)
	}
	*id = WindowID(v)
	return nil
}

// UnmarshalText accepts "%N" or a bare number.
func (id *PaneID) UnmarshalText(b []byte) error {
	v, err := parsePrefixed(string(b), '%')
	if err != nil {
		return fmt.Errorf("pane id: %w", err)
	}
	*id = PaneID(v)
	return nil
}

func parsePrefixed(s string, prefix byte) (uint64, error) {
	if len(s) > 0 && s[0] == prefix {
		s = s[1:]
	}
	return strconv.ParseUint(s, 10, 64)
}

// Rect is an axis-aligned rectangle in physical pixels.
type Rect struct {
	X      float32 `json:"x"`
	Y      float32 `json:"y"`
	Width  float32 `json:"width"`
	Height float32 `json:"height"`
}

// BoundsInfo is a renderer snapshot taken immediately before a layout is
// applied. It is never cached across calls.
type BoundsInfo struct {
	// Width and Height are the window's physical size.
	Width  float32
	Height float32
	// ScaleFactor converts logical to physical pixels.
	ScaleFactor float32
	// Padding is the window padding on the left, right and bottom edges.
	Padding float32
	// ContentOffsetY is the space taken above the content (tab bar).
	ContentOffsetY float32
	// ContentInsetRight is the space taken right of the content (scrollbar, side panel).
	ContentInsetRight float32
	CellWidth         float32
	CellHeight        float32
	// StatusBarHeight is the reserved status bar height in physical pixels.
	StatusBarHeight float32
}

// ContentArea returns the rectangle available to the pane tree.
// With hidePadding the window padding is treated as zero. Every length in
// BoundsInfo is already in physical pixels, so ScaleFactor is not applied.
func (b BoundsInfo) ContentArea(hidePadding bool) Rect {
	padding := b.Padding
	if hidePadding {
		padding = 0
	}
	w := b.Width - padding*2 - b.ContentInsetRight
	h := b.Height - b.ContentOffsetY - padding - b.StatusBarHeight
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return Rect{X: padding, Y: b.ContentOffsetY, Width: w, Height: h}
}

// GridSize returns the number of whole cells that fit the content area.
func (b BoundsInfo) GridSize(hidePadding bool) (cols, rows int) {
	area := b.ContentArea(hidePadding)
	if b.CellWidth <= 0 || b.CellHeight <= 0 {
		return 0, 0
	}
	return int(area.Width / b.CellWidth), int(area.Height / b.CellHeight)
}

// SessionInfo describes a tmux session as reported by list-sessions.
type SessionInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Windows  int    `json:"windows"`
	Attached int    `json:"attached"`
}

// PaneSnapshot is a read-only view of one local pane.
type PaneSnapshot struct {
	ID      NativePaneID `json:"id"`
	TmuxID  *PaneID      `json:"tmux_id,omitempty"`
	Bounds  Rect         `json:"bounds"`
	Cols    int          `json:"cols"`
	Rows    int          `json:"rows"`
	Focused bool         `json:"focused,omitempty"`
	Content []string     `json:"content,omitempty"`
}

// TabSnapshot is a read-only view of one local tab.
type TabSnapshot struct {
	ID      TabID          `json:"id"`
	Title   string         `json:"title"`
	Window  *WindowID      `json:"window,omitempty"`
	Gateway bool           `json:"gateway,omitempty"`
	Active  bool           `json:"active,omitempty"`
	Panes   []PaneSnapshot `json:"panes,omitempty"`
	// Output is the gateway terminal's own text: output that reached no pane.
	Output []string `json:"output,omitempty"`
}

// StateSnapshot is a read-only view of the whole gateway.
type StateSnapshot struct {
	RunID        string        `json:"run_id,omitempty"`
	Session      string        `json:"session,omitempty"`
	GatewayState string        `json:"gateway_state"`
	FocusedPane  *PaneID       `json:"focused_pane,omitempty"`
	Paused       bool          `json:"paused,omitempty"`
	LastError    string        `json:"last_error,omitempty"`
	Tabs         []TabSnapshot `json:"tabs"`
}
