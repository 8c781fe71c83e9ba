package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/timvw/pane-gateway/internal/config"
)

// newLogger builds the process logger.
//
// With a log file configured, or when the dashboard owns the terminal,
// records go as JSON to a size-rotated file. Otherwise they go to stderr:
// text when stderr is a terminal, JSON when it is piped. The returned
// closer releases the file.
func newLogger(cfg *config.Config, interactive bool) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.LogLevel))); err != nil {
		return nil, nil, fmt.Errorf("log level %q: %w", cfg.LogLevel, err)
	}
	options := &slog.HandlerOptions{Level: level}

	path := cfg.LogFile
	if path == "" && interactive {
		path = defaultLogPath()
	}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("log directory: %w", err)
		}
		rotated := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: 3,
		}
		return slog.New(slog.NewJSONHandler(rotated, options)), rotated, nil
	}

	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler), nopCloser{}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func defaultLogPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "pane-gateway", "pane-gateway.log")
}
