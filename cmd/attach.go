package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/timvw/pane-gateway/internal/config"
	"github.com/timvw/pane-gateway/internal/gateway"
	"github.com/timvw/pane-gateway/internal/mux"
	telem "github.com/timvw/pane-gateway/internal/otel"
	"github.com/timvw/pane-gateway/internal/viewer"
)

var (
	flagSession  string
	flagRecord   string
	flagHeadless bool
	flagTheme    string
	flagMaxTabs  int
)

var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Attach to a tmux session and mirror it",
	Long: `Attach to a tmux session in control mode, creating it if needed
(tmux -C new-session -A -s NAME), and keep the local tab and pane model in
sync with it.

By default an interactive dashboard shows the tabs, the pane tree of the
selected tab and a live preview of the focused pane; its input box types
into the focused tmux pane. Logs go to a rotated file while the dashboard
owns the terminal. With --headless the engine runs without a UI until the
session ends or the process is interrupted.

Only one gateway per tmux session and socket runs at a time.

Configuration is loaded from .pane-gateway.yaml|toml or environment variables.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAttach(cmd)
	},
}

func init() {
	attachCmd.Flags().StringVarP(&flagSession, "session", "s", "", "tmux session to attach (default from config: main)")
	attachCmd.Flags().StringVar(&flagRecord, "record", "", "write the raw control-mode stream to FILE for replay")
	attachCmd.Flags().BoolVar(&flagHeadless, "headless", false, "run without the dashboard")
	attachCmd.Flags().StringVar(&flagTheme, "theme", "", "dashboard color theme: dark, light")
	attachCmd.Flags().IntVar(&flagMaxTabs, "max-tabs", -1, "local tab ceiling, 0 = unlimited (default from config)")
	rootCmd.AddCommand(attachCmd)
}

func runAttach(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagSession != "" {
		cfg.Session = flagSession
	}
	if flagTheme != "" {
		cfg.Theme = flagTheme
	}
	if flagMaxTabs >= 0 {
		cfg.MaxTabs = flagMaxTabs
	}
	if !cfg.TmuxEnabled {
		return errors.New("tmux integration is disabled (tmux_enabled: false)")
	}

	logger, logCloser, err := newLogger(cfg, !flagHeadless)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	runID := uuid.NewString()
	logger = logger.With("gateway_run", runID, "session", cfg.Session)
	if cfg.ConfigFile != "" {
		logger.Info("config loaded", "path", cfg.ConfigFile)
	}

	lock := flock.New(lockPath(cfg))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("instance lock %s: %w", lock.Path(), err)
	}
	if !locked {
		return fmt.Errorf("another pane-gateway is attached to session %q (lock %s)", cfg.Session, lock.Path())
	}
	defer lock.Unlock()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Wire build version into OTEL service metadata
	telem.Version = Version

	// Initialize OTEL (no-op if no endpoint configured)
	tel, err := telem.Init(ctx, telem.OTELConfig{
		Endpoint: cfg.OTELEndpoint,
		Headers:  cfg.OTELHeaders,
		RunID:    runID,
		Session:  cfg.Session,
		Socket:   cfg.Socket,
	})
	if err != nil {
		logger.Warn("otel init failed", "error", err)
	}
	defer tel.Shutdown(context.Background())

	var record *os.File
	if flagRecord != "" {
		record, err = os.Create(flagRecord)
		if err != nil {
			return fmt.Errorf("record file: %w", err)
		}
		defer record.Close()
	}

	var client *mux.ControlClient
	writer := gateway.CommandWriterFunc(func(c string) error {
		if client == nil {
			return mux.ErrClosed
		}
		return client.WriteCommand(c)
	})
	eng := newEngine(cfg, writer, refreshLimiter(cfg), logger, tel)

	opts := mux.ControlOptions{Socket: cfg.Socket, Session: cfg.Session, Logger: logger}
	if record != nil {
		opts.Record = record
	}
	client, err = mux.StartControl(ctx, eng.term, opts)
	if err != nil {
		return err
	}
	logger.Info("attached", "socket", cfg.Socket, "record", flagRecord)

	if flagHeadless {
		runHeadless(ctx, eng, client, cfg.PollDuration, logger)
	} else {
		dash := &viewer.Dashboard{
			Engine:   &dashboardEngine{Poller: eng.poller, bounds: eng.bounds},
			Interval: cfg.PollDuration,
			Theme:    viewer.ThemeByName(cfg.Theme),
			Done:     client.Done(),
			RunID:    runID,
		}
		if err := dash.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("dashboard failed", "error", err)
		}
	}

	err = client.Stop()
	logger.Info("detached", "lines", client.Lines(), "error", err)
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// runHeadless ticks the engine until the context ends or tmux goes away.
func runHeadless(ctx context.Context, eng *engine, client *mux.ControlClient, interval time.Duration, logger *slog.Logger) {
	eng.bounds.setContent(80, 24)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := ""
	for {
		select {
		case <-ctx.Done():
			return
		case <-client.Done():
			eng.poller.Tick(ctx)
			return
		case <-ticker.C:
			if !eng.poller.Tick(ctx) {
				continue
			}
			snap := eng.poller.Snapshot(false)
			if snap.GatewayState != last {
				logger.Info("gateway state", "state", snap.GatewayState, "tabs", len(snap.Tabs))
				last = snap.GatewayState
			}
		}
	}
}

// lockPath names the per-user lock for one session on one socket.
func lockPath(cfg *config.Config) string {
	socket := cfg.Socket
	if socket == "" {
		socket = "default"
	}
	name := fmt.Sprintf("pane-gateway-%d-%s-%s.lock", os.Getuid(), safeName(socket), safeName(cfg.Session))
	return filepath.Join(os.TempDir(), name)
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, s)
}
