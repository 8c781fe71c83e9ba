package control

import (
	"bytes"
	"strconv"
	"strings"
	"sync"
)

// dcsPrefix is sent by tmux -CC before the first line; st terminates the
// stream after %exit.
const (
	dcsPrefix = "\x1bP1000p"
	st        = "\x1b\\"
)

// Decoder turns control-mode output into events. It implements io.Writer so
// the control client can copy the tmux stdout straight into it; partial lines
// are held until their newline arrives.
//
// Decoder is safe for concurrent use.
type Decoder struct {
	mu      sync.Mutex
	partial []byte
	events  []Event

	// current %begin block, if any
	block     *Event
	blockBody []string
}

// NewDecoder returns an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Write feeds raw bytes. Complete lines are decoded immediately.
func (d *Decoder) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.partial = append(d.partial, p...)
	for {
		idx := bytes.IndexByte(d.partial, '\n')
		if idx < 0 {
			break
		}
		line := string(d.partial[:idx])
		d.partial = d.partial[idx+1:]
		d.feedLocked(line)
	}
	if len(d.partial) == 0 {
		d.partial = nil
	}
	return len(p), nil
}

// FeedLine decodes one line without its trailing newline.
func (d *Decoder) FeedLine(line string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.feedLocked(line)
}

// Drain returns the decoded events in arrival order and forgets them.
func (d *Decoder) Drain() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.events
	d.events = nil
	return out
}

// Pending reports how many decoded events wait to be drained.
func (d *Decoder) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.events)
}

// InBlock reports whether a %begin block is open.
func (d *Decoder) InBlock() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.block != nil
}

// Reset drops buffered events, partial input and any open block.
func (d *Decoder) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.partial = nil
	d.events = nil
	d.block = nil
	d.blockBody = nil
}

func (d *Decoder) feedLocked(line string) {
	line = strings.TrimSuffix(line, "\r")
	line = strings.TrimPrefix(line, dcsPrefix)
	line = strings.TrimPrefix(line, st)
	if line == "" && d.block == nil {
		return
	}

	if d.block != nil {
		if ev, ok := parseGuard(line); ok && (ev.Kind == KindEnd || ev.Kind == KindError) && ev.Number == d.block.Number {
			ev.Body = d.blockBody
			d.events = append(d.events, ev)
			d.block = nil
			d.blockBody = nil
			return
		}
		d.blockBody = append(d.blockBody, line)
		return
	}

	ev := ParseLine(line)
	if ev.Kind == KindBegin {
		b := ev
		d.block = &b
	}
	d.events = append(d.events, ev)
}

// parseGuard parses %begin, %end and %error lines.
func parseGuard(line string) (Event, bool) {
	var kind Kind
	var rest string
	switch {
	case strings.HasPrefix(line, "%begin "):
		kind, rest = KindBegin, line[len("%begin "):]
	case strings.HasPrefix(line, "%end "):
		kind, rest = KindEnd, line[len("%end "):]
	case strings.HasPrefix(line, "%error "):
		kind, rest = KindError, line[len("%error "):]
	default:
		return Event{}, false
	}
	fields := strings.Fields(rest)
	if len(fields) < 2 {
		return Event{}, false
	}
	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Event{}, false
	}
	num, err := strconv.Atoi(fields[1])
	if err != nil {
		return Event{}, false
	}
	ev := Event{Kind: kind, Time: ts, Number: num, Line: line}
	if len(fields) > 2 {
		if flags, err := strconv.Atoi(fields[2]); err == nil {
			ev.Flags = flags
		}
	}
	return ev, true
}

// ParseLine decodes a single line seen outside a command block.
func ParseLine(line string) Event {
	if !strings.HasPrefix(line, "%") {
		return Event{Kind: KindTerminalOutput, Data: []byte(line + "\n"), Line: line}
	}
	if ev, ok := parseGuard(line); ok {
		return ev
	}

	name, rest, _ := strings.Cut(line, " ")
	unknown := Event{Kind: KindUnknown, Line: line}

	switch name {
	case "%output":
		pane, payload, ok := strings.Cut(rest, " ")
		if !ok && pane == "" {
			return unknown
		}
		data, ok := Unescape(payload)
		if !ok {
			return unknown
		}
		return Event{Kind: KindOutput, PaneID: pane, Data: data}

	case "%extended-output":
		pane, tail, ok := cutToken(rest)
		if !ok {
			return unknown
		}
		ageTok, tail, ok := cutToken(tail)
		if !ok {
			return unknown
		}
		age, err := strconv.Atoi(ageTok)
		if err != nil {
			return unknown
		}
		payload := tail
		if _, after, found := strings.Cut(tail, ": "); found {
			payload = after
		} else if tail == ":" {
			payload = ""
		}
		data, ok := Unescape(payload)
		if !ok {
			return unknown
		}
		return Event{Kind: KindExtendedOutput, PaneID: pane, Age: age, Data: data}

	case "%layout-change":
		fields := strings.Fields(rest)
		if len(fields) < 2 {
			return unknown
		}
		ev := Event{Kind: KindLayoutChange, WindowID: fields[0], Layout: fields[1]}
		if len(fields) > 2 {
			ev.VisibleLayout = fields[2]
		}
		if len(fields) > 3 {
			if flags, err := strconv.Atoi(strings.TrimPrefix(fields[3], "*")); err == nil {
				ev.Flags = flags
			}
		}
		return ev

	case "%window-add", "%window-close", "%unlinked-window-add", "%unlinked-window-close":
		win, _, ok := cutToken(rest)
		if !ok {
			return unknown
		}
		return Event{Kind: windowKinds[name], WindowID: win}

	case "%window-renamed", "%unlinked-window-renamed":
		win, title, ok := cutToken(rest)
		if !ok {
			return unknown
		}
		return Event{Kind: windowKinds[name], WindowID: win, Name: title}

	case "%session-changed", "%session-renamed":
		sess, title, ok := cutToken(rest)
		if !ok {
			return unknown
		}
		kind := KindSessionChanged
		if name == "%session-renamed" {
			kind = KindSessionRenamed
		}
		// Some tmux versions send only the new name on rename.
		if !strings.HasPrefix(sess, "$") {
			return Event{Kind: kind, Name: strings.TrimSpace(rest)}
		}
		return Event{Kind: kind, SessionID: sess, Name: title}

	case "%sessions-changed":
		return Event{Kind: KindSessionsChanged}

	case "%session-window-changed":
		fields := strings.Fields(rest)
		if len(fields) < 2 {
			return unknown
		}
		return Event{Kind: KindSessionWindowChanged, SessionID: fields[0], WindowID: fields[1]}

	case "%client-session-changed":
		client, tail, ok := cutToken(rest)
		if !ok {
			return unknown
		}
		sess, title, _ := cutToken(tail)
		return Event{Kind: KindClientSessionChanged, Client: client, SessionID: sess, Name: title}

	case "%client-detached":
		client, _, ok := cutToken(rest)
		if !ok {
			return unknown
		}
		return Event{Kind: KindClientDetached, Client: client}

	case "%window-pane-changed":
		fields := strings.Fields(rest)
		if len(fields) < 2 {
			return unknown
		}
		return Event{Kind: KindWindowPaneChanged, WindowID: fields[0], PaneID: fields[1]}

	case "%pane-mode-changed", "%pause", "%continue":
		pane, _, ok := cutToken(rest)
		if !ok {
			return unknown
		}
		return Event{Kind: paneKinds[name], PaneID: pane}

	case "%exit":
		return Event{Kind: KindExit, Reason: strings.TrimSpace(rest)}

	case "%subscription-changed":
		sub, _, ok := cutToken(rest)
		if !ok {
			return unknown
		}
		return Event{Kind: KindSubscriptionChanged, Name: sub, Line: line}

	case "%paste-buffer-changed", "%paste-buffer-deleted":
		buf, _, ok := cutToken(rest)
		if !ok {
			return unknown
		}
		kind := KindPasteBufferChanged
		if name == "%paste-buffer-deleted" {
			kind = KindPasteBufferDeleted
		}
		return Event{Kind: kind, Name: buf}
	}
	return unknown
}

var windowKinds = map[string]Kind{
	"%window-add":              KindWindowAdd,
	"%window-close":            KindWindowClose,
	"%window-renamed":          KindWindowRenamed,
	"%unlinked-window-add":     KindUnlinkedWindowAdd,
	"%unlinked-window-close":   KindUnlinkedWindowClose,
	"%unlinked-window-renamed": KindUnlinkedWindowRenamed,
}

var paneKinds = map[string]Kind{
	"%pane-mode-changed": KindPaneModeChanged,
	"%pause":             KindPause,
	"%continue":          KindContinue,
}
