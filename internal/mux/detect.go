package mux

import (
	"fmt"
	"os"
	"os/exec"
)

// Detect auto-detects the active terminal multiplexer.
// It checks environment variables first, then falls back to checking
// if the multiplexer binary exists and has a running server.
func Detect(socket string) (Multiplexer, error) {
	if os.Getenv("TMUX") != "" {
		return NewTmux(socket), nil
	}
	if os.Getenv("ZELLIJ") != "" {
		return nil, fmt.Errorf("zellij has no control mode; only tmux is supported")
	}

	if tmuxPath, err := exec.LookPath("tmux"); err == nil && tmuxPath != "" {
		t := NewTmux(socket)
		cmd := exec.Command("tmux", t.args("list-sessions")...)
		if err := cmd.Run(); err == nil {
			return t, nil
		}
	}

	return nil, fmt.Errorf("no running tmux server detected (set $TMUX or start tmux)")
}

// FromName creates a Multiplexer by name.
func FromName(name, socket string) (Multiplexer, error) {
	switch name {
	case "tmux":
		return NewTmux(socket), nil
	case "zellij":
		return nil, fmt.Errorf("zellij has no control mode; only tmux is supported")
	default:
		return nil, fmt.Errorf("unknown multiplexer: %q (supported: tmux)", name)
	}
}
