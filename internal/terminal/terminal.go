// Package terminal holds the per-pane terminal buffer shared between the
// engine and the reader that feeds it.
//
// A Terminal is guarded by its own mutex. The reader goroutine takes it with
// Lock; the engine only ever uses TryLock and skips work on a miss. Methods
// documented as "caller holds the lock" do not lock themselves.
package terminal

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/x/ansi"

	"github.com/timvw/pane-gateway/internal/control"
)

// ErrContended is returned when a lock could not be taken without waiting.
var ErrContended = errors.New("terminal lock contended")

// DefaultScrollback is the number of lines kept when none is configured.
const DefaultScrollback = 2000

// Terminal is a line buffer with a size and an optional control-mode decoder.
type Terminal struct {
	mu sync.Mutex

	scrollback int
	lines      []string
	partial    strings.Builder

	cols, rows     int
	pixelW, pixelH float32
	resizes        int
	bytesWritten   int64
	controlMode    bool
	decoder        *control.Decoder
	closed         atomic.Bool
}

// New returns an empty terminal keeping scrollback lines (DefaultScrollback
// when scrollback <= 0).
func New(scrollback int) *Terminal {
	if scrollback <= 0 {
		scrollback = DefaultScrollback
	}
	return &Terminal{scrollback: scrollback}
}

func (t *Terminal) Lock()         { t.mu.Lock() }
func (t *Terminal) Unlock()       { t.mu.Unlock() }
func (t *Terminal) TryLock() bool { return t.mu.TryLock() }

// Write appends output. Caller holds the lock. Writes to a closed terminal
// are discarded.
func (t *Terminal) Write(p []byte) (int, error) {
	if t.closed.Load() {
		return len(p), nil
	}
	t.bytesWritten += int64(len(p))
	for _, b := range p {
		switch b {
		case '\n':
			t.lines = append(t.lines, t.partial.String())
			t.partial.Reset()
		case '\r':
			// carriage returns are handled by the line split
		default:
			t.partial.WriteByte(b)
		}
	}
	if over := len(t.lines) - t.scrollback; over > 0 {
		t.lines = append(t.lines[:0:0], t.lines[over:]...)
	}
	return len(p), nil
}

// Feed hands one line from the PTY reader to the terminal. In control mode
// the line goes to the decoder; otherwise it is written as output. Caller
// holds the lock.
func (t *Terminal) Feed(line string) {
	if t.controlMode {
		t.decoder.FeedLine(line)
		return
	}
	_, _ = t.Write([]byte(line + "\n"))
}

// Resize records the grid and pixel size. Caller holds the lock.
func (t *Terminal) Resize(cols, rows int, pixelW, pixelH float32) {
	if cols == t.cols && rows == t.rows && pixelW == t.pixelW && pixelH == t.pixelH {
		return
	}
	t.cols, t.rows = cols, rows
	t.pixelW, t.pixelH = pixelW, pixelH
	t.resizes++
}

// Size returns the grid size. Caller holds the lock.
func (t *Terminal) Size() (cols, rows int) { return t.cols, t.rows }

// Resizes counts size changes. Caller holds the lock.
func (t *Terminal) Resizes() int { return t.resizes }

// SetControlMode switches control-mode decoding. Turning it off drops any
// undrained events. Caller holds the lock.
func (t *Terminal) SetControlMode(on bool) {
	if on == t.controlMode {
		return
	}
	t.controlMode = on
	if on {
		t.decoder = control.NewDecoder()
		return
	}
	t.decoder = nil
}

// ControlMode reports whether the terminal decodes control mode. Caller
// holds the lock.
func (t *Terminal) ControlMode() bool { return t.controlMode }

// DrainNotifications returns the decoded control-mode events buffered since
// the last drain. Caller holds the lock.
func (t *Terminal) DrainNotifications() []control.Event {
	if t.decoder == nil {
		return nil
	}
	return t.decoder.Drain()
}

// Close marks the terminal dead; later writes are dropped.
func (t *Terminal) Close() { t.closed.Store(true) }

func (t *Terminal) Closed() bool { return t.closed.Load() }

// Snapshot is a plain-text copy of a terminal.
type Snapshot struct {
	Cols  int
	Rows  int
	Lines []string
	Bytes int64
}

// TrySnapshot copies the last rows lines with escape sequences stripped. It
// reports false if the lock is held elsewhere.
func (t *Terminal) TrySnapshot() (Snapshot, bool) {
	if !t.TryLock() {
		return Snapshot{}, false
	}
	defer t.Unlock()
	return t.snapshot(), true
}

// SnapshotLocked is TrySnapshot for a caller that holds the lock.
func (t *Terminal) SnapshotLocked() Snapshot { return t.snapshot() }

func (t *Terminal) snapshot() Snapshot {
	src := t.lines
	if t.partial.Len() > 0 {
		src = append(src[:len(src):len(src)], t.partial.String())
	}
	if t.rows > 0 && len(src) > t.rows {
		src = src[len(src)-t.rows:]
	}
	lines := make([]string, len(src))
	for i, l := range src {
		lines[i] = ansi.Strip(l)
	}
	return Snapshot{Cols: t.cols, Rows: t.rows, Lines: lines, Bytes: t.bytesWritten}
}
