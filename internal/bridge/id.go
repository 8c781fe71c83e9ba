package bridge

import (
	"strconv"

	"github.com/timvw/pane-gateway/internal/model"
)

// IDKind tells the tmux id namespaces apart.
type IDKind int

const (
	IDRaw IDKind = iota
	IDPane
	IDWindow
	IDSession
)

// ParsedID is a tmux identifier token. Tokens that are not %N, @N or $N
// come back as IDRaw with Raw set.
type ParsedID struct {
	Kind  IDKind
	Value uint64
	Raw   string
}

// ParseID classifies a token by its sigil.
func ParseID(s string) ParsedID {
	raw := ParsedID{Kind: IDRaw, Raw: s}
	if len(s) < 2 {
		return raw
	}
	var kind IDKind
	switch s[0] {
	case '%':
		kind = IDPane
	case '@':
		kind = IDWindow
	case '$':
		kind = IDSession
	default:
		return raw
	}
	v, err := strconv.ParseUint(s[1:], 10, 64)
	if err != nil {
		return raw
	}
	return ParsedID{Kind: kind, Value: v, Raw: s}
}

// Pane returns the pane id, if p is one.
func (p ParsedID) Pane() (model.PaneID, bool) {
	return model.PaneID(p.Value), p.Kind == IDPane
}

// Window returns the window id, if p is one.
func (p ParsedID) Window() (model.WindowID, bool) {
	return model.WindowID(p.Value), p.Kind == IDWindow
}

// Session returns the session id, if p is one.
func (p ParsedID) Session() (model.SessionID, bool) {
	return model.SessionID(p.Value), p.Kind == IDSession
}

func (p ParsedID) String() string { return p.Raw }
