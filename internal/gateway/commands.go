package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/timvw/pane-gateway/internal/model"
)

// CommandWriter sends one newline-terminated tmux command over the control
// connection. Commands are fire and forget; replies come back as
// notifications.
type CommandWriter interface {
	WriteCommand(cmd string) error
}

// CommandWriterFunc adapts a function to CommandWriter.
type CommandWriterFunc func(cmd string) error

func (f CommandWriterFunc) WriteCommand(cmd string) error { return f(cmd) }

// Command builders. Each returns the command line including its newline.

func SendKeys(pane model.PaneID, keys string) string {
	return fmt.Sprintf("send-keys -t %s %s\n", pane, keys)
}

// SendLiteral types text into a pane without key-name lookup.
func SendLiteral(pane model.PaneID, text string) string {
	return fmt.Sprintf("send-keys -t %s -l %s\n", pane, quote(text))
}

func SelectPane(pane model.PaneID) string {
	return fmt.Sprintf("select-pane -t %s\n", pane)
}

func SelectWindow(window model.WindowID) string {
	return fmt.Sprintf("select-window -t %s\n", window)
}

// SplitWindow splits pane side by side when horizontal is set, stacked
// otherwise (tmux's -h and -v).
func SplitWindow(pane model.PaneID, horizontal bool) string {
	flag := "-v"
	if horizontal {
		flag = "-h"
	}
	return fmt.Sprintf("split-window %s -t %s\n", flag, pane)
}

func KillPane(pane model.PaneID) string {
	return fmt.Sprintf("kill-pane -t %s\n", pane)
}

func RefreshClient() string { return "refresh-client\n" }

// RefreshClientSize tells tmux the size of the control client.
func RefreshClientSize(cols, rows int) string {
	return fmt.Sprintf("refresh-client -C %dx%d\n", cols, rows)
}

// WindowSizeSmallest makes windows follow the smallest attached client.
func WindowSizeSmallest() string { return "set-option -g window-size smallest\n" }

// quote wraps s in single quotes for the tmux command parser.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// isControlSequence returns true if the keys string is a tmux key name
// rather than literal text to type.
func isControlSequence(keys string) bool {
	switch keys {
	case "Enter", "Escape", "Up", "Down", "Left", "Right",
		"Tab", "BTab", "Space", "BSpace", "DC",
		"Home", "End", "PPage", "NPage":
		return true
	}
	// C-x patterns (Ctrl+key)
	if len(keys) == 3 && keys[0] == 'C' && keys[1] == '-' {
		return true
	}
	// M-x patterns (Meta/Alt+key)
	if len(keys) == 3 && keys[0] == 'M' && keys[1] == '-' {
		return true
	}
	return false
}

// Commander writes gateway commands. refresh-client is rate limited: a
// refresh that is not allowed yet is remembered and sent by a later Flush.
type Commander struct {
	w       CommandWriter
	limiter *rate.Limiter
	logger  *slog.Logger

	mu             sync.Mutex
	pendingRefresh bool
}

// NewCommander returns a commander writing to w. A nil limiter never limits.
func NewCommander(w CommandWriter, limiter *rate.Limiter, logger *slog.Logger) *Commander {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Commander{w: w, limiter: limiter, logger: logger}
}

// Send writes one command, logging failures.
func (c *Commander) Send(cmd string) error {
	if err := c.w.WriteCommand(cmd); err != nil {
		c.logger.Warn("gateway command failed", "command", strings.TrimSpace(cmd), "error", err)
		return fmt.Errorf("write %q: %w", strings.TrimSpace(cmd), err)
	}
	return nil
}

// RefreshPanes nudges each pane's shell to repaint with C-l and then asks
// tmux to redraw the client.
func (c *Commander) RefreshPanes(_ context.Context, panes []model.PaneID) {
	for _, p := range panes {
		_ = c.Send(SendKeys(p, "C-l"))
	}
	c.refreshClient()
}

// Flush sends a refresh-client that was held back by the limiter.
func (c *Commander) Flush() {
	c.mu.Lock()
	pending := c.pendingRefresh
	c.mu.Unlock()
	if pending {
		c.refreshClient()
	}
}

// RefreshPending reports whether a refresh-client is waiting for Flush.
func (c *Commander) RefreshPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingRefresh
}

func (c *Commander) refreshClient() {
	c.mu.Lock()
	if !c.limiter.Allow() {
		c.pendingRefresh = true
		c.mu.Unlock()
		return
	}
	c.pendingRefresh = false
	c.mu.Unlock()
	_ = c.Send(RefreshClient())
}

// SendInput sends what the user typed to a pane. Key names (Enter, C-c, ...)
// are sent as keys, anything else literally.
func (c *Commander) SendInput(pane model.PaneID, input string) error {
	if input == "" {
		return nil
	}
	if isControlSequence(input) {
		return c.Send(SendKeys(pane, input))
	}
	return c.Send(SendLiteral(pane, input))
}

// Submit types text into a pane and presses Enter.
func (c *Commander) Submit(pane model.PaneID, text string) error {
	if err := c.SendInput(pane, text); err != nil {
		return err
	}
	if isControlSequence(text) {
		return nil
	}
	return c.Send(SendKeys(pane, "Enter"))
}

// ResizeClient reports the client size to tmux.
func (c *Commander) ResizeClient(cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return nil
	}
	return c.Send(RefreshClientSize(cols, rows))
}
