// Package mux is the tmux transport. It lists sessions and window layouts
// through one-shot tmux invocations and runs the long-lived control-mode
// client whose output feeds the gateway terminal.
//
// Nothing here interprets what tmux reports beyond splitting fields; the
// gateway engine owns all state.
package mux

import (
	"context"

	"github.com/timvw/pane-gateway/internal/model"
)

// Multiplexer abstracts the one-shot multiplexer queries.
type Multiplexer interface {
	// Name returns the multiplexer name (e.g., "tmux").
	Name() string

	// ListSessions returns all sessions on the server.
	ListSessions(ctx context.Context) ([]model.SessionInfo, error)

	// WindowLayouts returns the layout string of every window in a session.
	WindowLayouts(ctx context.Context, session string) ([]WindowLayout, error)

	// CapturePane captures the visible content of a pane.
	CapturePane(ctx context.Context, target string) (string, error)
}

// WindowLayout is one row of list-windows output.
type WindowLayout struct {
	Window model.WindowID `json:"window"`
	Name   string         `json:"name"`
	Layout string         `json:"layout"`
}
