package mux

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/timvw/pane-gateway/internal/terminal"
)

// ErrClosed is returned by WriteCommand after the client has stopped.
var ErrClosed = errors.New("control client closed")

// maxLineSize bounds one control-mode line. %output lines for a busy pane
// can be long once octal-escaped.
const maxLineSize = 4 * 1024 * 1024

// stopGrace is how long Stop waits for tmux to exit after stdin closes.
const stopGrace = 2 * time.Second

// NewLineScanner returns a scanner sized for control-mode lines.
func NewLineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return scanner
}

// LineFeeder hands control-mode lines to a terminal under its lock and
// tees them to Record when set.
type LineFeeder struct {
	Term   *terminal.Terminal
	Record io.Writer

	lines    atomic.Uint64
	sawExit  atomic.Bool
	recordMu sync.Mutex
}

// FeedLine blocks on the terminal lock. It is the only writer that waits;
// the engine side always try-locks.
func (f *LineFeeder) FeedLine(line string) error {
	f.Term.Lock()
	f.Term.Feed(line)
	f.Term.Unlock()
	f.lines.Add(1)
	if isExit(line) {
		f.sawExit.Store(true)
	}

	if f.Record == nil {
		return nil
	}
	f.recordMu.Lock()
	defer f.recordMu.Unlock()
	if _, err := io.WriteString(f.Record, line+"\n"); err != nil {
		return fmt.Errorf("record control line: %w", err)
	}
	return nil
}

// Lines returns how many lines were fed.
func (f *LineFeeder) Lines() uint64 { return f.lines.Load() }

func isExit(line string) bool {
	line = strings.TrimPrefix(line, "\x1bP1000p")
	return line == "%exit" || strings.HasPrefix(line, "%exit ")
}

// ControlOptions configures StartControl.
type ControlOptions struct {
	Socket  string
	Session string
	// Record receives a copy of every line read from tmux.
	Record io.Writer
	Logger *slog.Logger
}

// ControlClient is a running `tmux -C` process whose stdout feeds the
// gateway terminal and whose stdin carries commands.
type ControlClient struct {
	feeder *LineFeeder
	logger *slog.Logger

	wmu    sync.Mutex
	stdin  io.WriteCloser
	closed bool

	wait   func() error
	kill   func()
	stderr *bytes.Buffer

	done chan struct{}
	err  error
}

// StartControl launches `tmux -C new-session -A -s SESSION`, creating the
// session when it does not exist, and starts feeding its output to term.
// The caller switches term into control mode before the first tick.
func StartControl(ctx context.Context, term *terminal.Terminal, opts ControlOptions) (*ControlClient, error) {
	if opts.Session == "" {
		return nil, fmt.Errorf("start tmux control mode: no session name")
	}
	t := NewTmux(opts.Socket)
	cmd := exec.CommandContext(ctx, "tmux", t.args("-C", "new-session", "-A", "-s", opts.Session)...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start tmux control mode: %w", err)
	}

	kill := func() {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
	}
	return newControlClient(term, stdin, stdout, stderr, cmd.Wait, kill, opts), nil
}

func newControlClient(term *terminal.Terminal, stdin io.WriteCloser, stdout io.Reader, stderr *bytes.Buffer, wait func() error, kill func(), opts ControlOptions) *ControlClient {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &ControlClient{
		feeder: &LineFeeder{Term: term, Record: opts.Record},
		logger: logger,
		stdin:  stdin,
		stderr: stderr,
		wait:   wait,
		kill:   kill,
		done:   make(chan struct{}),
	}
	go c.readLoop(stdout)
	return c
}

// readLoop runs for the lifetime of the process. When tmux goes away
// without announcing it, a synthetic %exit is fed so the engine tears the
// session down.
func (c *ControlClient) readLoop(stdout io.Reader) {
	defer close(c.done)

	scanner := NewLineScanner(stdout)
	var feedErr error
	for scanner.Scan() {
		if err := c.feeder.FeedLine(scanner.Text()); err != nil && feedErr == nil {
			feedErr = err
			c.logger.Warn("recording stopped", "error", err)
		}
	}
	scanErr := scanner.Err()

	if !c.feeder.sawExit.Load() {
		c.logger.Info("tmux control client exited without %exit")
		_ = c.feeder.FeedLine("%exit")
	}

	c.wmu.Lock()
	c.closed = true
	_ = c.stdin.Close()
	c.wmu.Unlock()

	waitErr := c.wait()
	switch {
	case scanErr != nil:
		c.err = fmt.Errorf("read tmux control mode: %w", scanErr)
	case waitErr != nil:
		c.err = fmt.Errorf("tmux control mode: %w%s", waitErr, c.stderrSuffix())
	}
	c.logger.Debug("tmux control client finished", "lines", c.feeder.Lines(), "error", c.err)
}

func (c *ControlClient) stderrSuffix() string {
	if c.stderr == nil {
		return ""
	}
	if s := strings.TrimSpace(c.stderr.String()); s != "" {
		return ": " + s
	}
	return ""
}

// WriteCommand writes one newline-terminated tmux command. Safe for
// concurrent use.
func (c *ControlClient) WriteCommand(cmd string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if !strings.HasSuffix(cmd, "\n") {
		cmd += "\n"
	}
	if _, err := io.WriteString(c.stdin, cmd); err != nil {
		return fmt.Errorf("write tmux command: %w", err)
	}
	return nil
}

// Done is closed when the process has exited and all output was fed.
func (c *ControlClient) Done() <-chan struct{} { return c.done }

// Err returns the exit error once Done is closed.
func (c *ControlClient) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Lines returns how many control-mode lines were read.
func (c *ControlClient) Lines() uint64 { return c.feeder.Lines() }

// Stop detaches by closing stdin and waits for the process, killing it
// if it lingers.
func (c *ControlClient) Stop() error {
	c.wmu.Lock()
	if !c.closed {
		c.closed = true
		_ = c.stdin.Close()
	}
	c.wmu.Unlock()

	timer := time.NewTimer(stopGrace)
	defer timer.Stop()
	select {
	case <-c.done:
	case <-timer.C:
		c.logger.Warn("tmux control client did not exit, killing")
		if c.kill != nil {
			c.kill()
		}
		<-c.done
	}
	return c.err
}
