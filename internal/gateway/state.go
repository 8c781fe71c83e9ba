package gateway

import (
	"fmt"

	"github.com/timvw/pane-gateway/internal/bridge"
	"github.com/timvw/pane-gateway/internal/model"
)

// State is the lifecycle of the control-mode connection.
type State int

const (
	// StateInactive: no control client was started.
	StateInactive State = iota
	// StateInitiating: the attach command was written, nothing seen yet.
	StateInitiating
	// StateDetecting: tmux answered with a command block.
	StateDetecting
	// StateConnected: tmux reported the attached session.
	StateConnected
	// StateEnded: the control client exited.
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateInitiating:
		return "initiating"
	case StateDetecting:
		return "detecting"
	case StateConnected:
		return "connected"
	case StateEnded:
		return "ended"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Active reports whether the gateway owns a live or starting connection.
func (s State) Active() bool {
	return s == StateInitiating || s == StateDetecting || s == StateConnected
}

// SessionState is the coarse view of State shown to users.
type SessionState int

const (
	SessionDisconnected SessionState = iota
	SessionConnecting
	SessionConnected
	SessionEnded
)

func (s SessionState) String() string {
	switch s {
	case SessionDisconnected:
		return "disconnected"
	case SessionConnecting:
		return "connecting"
	case SessionConnected:
		return "connected"
	case SessionEnded:
		return "ended"
	default:
		return fmt.Sprintf("session(%d)", int(s))
	}
}

// Session tracks the connection state and what tmux told us about the
// attached session.
type Session struct {
	state State
	// Name is the attached session's name once connected.
	Name string
	// FocusedPane is the active tmux pane as last reported.
	FocusedPane *model.PaneID
	// LastError is the most recent %error body.
	LastError string
}

func (s *Session) State() State { return s.state }

// SessionState maps the connection state to its coarse form.
func (s *Session) SessionState() SessionState {
	switch s.state {
	case StateInitiating, StateDetecting:
		return SessionConnecting
	case StateConnected:
		return SessionConnected
	case StateEnded:
		return SessionEnded
	default:
		return SessionDisconnected
	}
}

// Begin marks the attach command as sent.
func (s *Session) Begin() {
	s.state = StateInitiating
	s.Name = ""
	s.FocusedPane = nil
	s.LastError = ""
}

// Observe applies the state-only transition of n, if any. It reports whether
// the state changed.
func (s *Session) Observe(n bridge.Notification) bool {
	prev := s.state
	switch n := n.(type) {
	case bridge.ControlModeStarted:
		if s.state == StateInitiating {
			s.state = StateDetecting
		}
	case bridge.SessionStarted:
		if s.state == StateInitiating || s.state == StateDetecting {
			s.state = StateConnected
		}
	case bridge.SessionEnded:
		if s.state.Active() {
			s.state = StateEnded
		}
	case bridge.Error:
		if s.state == StateInitiating {
			s.state = StateEnded
		}
		s.LastError = n.Message
	}
	return prev != s.state
}

// Reset forgets the session; the state becomes inactive unless it ended.
func (s *Session) Reset() {
	if s.state != StateEnded {
		s.state = StateInactive
	}
	s.Name = ""
	s.FocusedPane = nil
}
