package mux

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/timvw/pane-gateway/internal/model"
)

// Tmux implements Multiplexer for tmux. Socket selects a server with -L;
// empty means the default server.
type Tmux struct {
	Socket string
}

// NewTmux creates a tmux multiplexer talking to the named socket.
func NewTmux(socket string) *Tmux {
	return &Tmux{Socket: socket}
}

// Name returns "tmux".
func (t *Tmux) Name() string {
	return "tmux"
}

const sessionFormat = "#{session_id}\t#{session_name}\t#{session_windows}\t#{session_attached}"

// ListSessions returns all sessions on the server.
func (t *Tmux) ListSessions(ctx context.Context) ([]model.SessionInfo, error) {
	out, err := t.run(ctx, "list-sessions", "-F", sessionFormat)
	if err != nil {
		return nil, fmt.Errorf("tmux list-sessions: %w", err)
	}
	return parseSessions(out), nil
}

const windowFormat = "#{window_id}\t#{window_name}\t#{window_layout}"

// WindowLayouts returns the layout of every window in session.
func (t *Tmux) WindowLayouts(ctx context.Context, session string) ([]WindowLayout, error) {
	out, err := t.run(ctx, "list-windows", "-t", session, "-F", windowFormat)
	if err != nil {
		return nil, fmt.Errorf("tmux list-windows -t %s: %w", session, err)
	}
	return parseWindowLayouts(out), nil
}

// CapturePane captures the visible content of a tmux pane.
// Uses -p (stdout) and -J (joined, unwraps lines).
func (t *Tmux) CapturePane(ctx context.Context, target string) (string, error) {
	out, err := t.run(ctx, "capture-pane", "-t", target, "-p", "-J")
	if err != nil {
		return "", fmt.Errorf("tmux capture-pane -t %s: %w", target, err)
	}
	return out, nil
}

// args prefixes the socket selection.
func (t *Tmux) args(args ...string) []string {
	if t.Socket == "" {
		return args
	}
	return append([]string{"-L", t.Socket}, args...)
}

// run executes a tmux command and returns its stdout.
func (t *Tmux) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "tmux", t.args(args...)...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return string(out), nil
}

func parseSessions(out string) []model.SessionInfo {
	var sessions []model.SessionInfo
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		parts := strings.SplitN(line, "\t", 4)
		if len(parts) != 4 {
			continue
		}
		windows, _ := strconv.Atoi(parts[2])
		attached, _ := strconv.Atoi(parts[3])
		sessions = append(sessions, model.SessionInfo{
			ID:       parts[0],
			Name:     parts[1],
			Windows:  windows,
			Attached: attached,
		})
	}
	return sessions
}

func parseWindowLayouts(out string) []WindowLayout {
	var windows []WindowLayout
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) != 3 {
			continue
		}
		var id model.WindowID
		if err := id.UnmarshalText([]byte(parts[0])); err != nil {
			continue
		}
		windows = append(windows, WindowLayout{Window: id, Name: parts[1], Layout: parts[2]})
	}
	return windows
}
