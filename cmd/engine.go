package cmd

import (
	"log/slog"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/timvw/pane-gateway/internal/config"
	"github.com/timvw/pane-gateway/internal/gateway"
	"github.com/timvw/pane-gateway/internal/idsync"
	"github.com/timvw/pane-gateway/internal/model"
	telem "github.com/timvw/pane-gateway/internal/otel"
	"github.com/timvw/pane-gateway/internal/tab"
	"github.com/timvw/pane-gateway/internal/terminal"
)

// engine is the gateway model shared by attach and replay.
type engine struct {
	poller *gateway.Poller
	term   *terminal.Terminal
	bounds *screenBounds
}

// newEngine builds the sync state with its gateway tab attached. Commands
// go to w; a nil limiter sends refresh-client unthrottled.
func newEngine(cfg *config.Config, w gateway.CommandWriter, limiter *rate.Limiter, logger *slog.Logger, tel *telem.Telemetry) *engine {
	scrollback := cfg.ScrollbackLines
	factory := func() (*terminal.Terminal, error) { return terminal.New(scrollback), nil }

	tabs := tab.NewManager(nil, factory, logger)
	tabs.MaxTabs = cfg.MaxTabs
	state := gateway.NewSyncState(idsync.New(logger), tabs)

	term := terminal.New(scrollback)
	state.AttachGateway(term, gateway.GatewayTitle(cfg.Session))

	bounds := &screenBounds{
		padding:   float32(cfg.WindowPadding),
		statusBar: float32(cfg.StatusBarHeight),
	}
	poller := gateway.NewPoller(state, gateway.Options{
		Enabled:     cfg.TmuxEnabled,
		HidePadding: cfg.HideWindowPaddingOnSplit,
		Bounds:      bounds,
		Commands:    gateway.NewCommander(w, limiter, logger),
		Logger:      logger,
		Telemetry:   tel,
	})
	return &engine{poller: poller, term: term, bounds: bounds}
}

// refreshLimiter spaces refresh-client commands; nil when disabled.
func refreshLimiter(cfg *config.Config) *rate.Limiter {
	if cfg.RefreshDuration <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(cfg.RefreshDuration), 1)
}

// screenBounds reports a character grid as renderer bounds: one physical
// pixel per cell, the status bar below the content.
type screenBounds struct {
	cols, rows atomic.Int64
	padding    float32
	statusBar  float32
}

// setContent sizes the grid so the content area is cols x rows.
func (b *screenBounds) setContent(cols, rows int) {
	b.cols.Store(int64(cols))
	b.rows.Store(int64(rows))
}

func (b *screenBounds) BoundsInfo() model.BoundsInfo {
	cols, rows := float32(b.cols.Load()), float32(b.rows.Load())
	return model.BoundsInfo{
		Width:           cols + 2*b.padding,
		Height:          rows + b.padding + b.statusBar,
		ScaleFactor:     1,
		Padding:         b.padding,
		CellWidth:       1,
		CellHeight:      1,
		StatusBarHeight: b.statusBar,
	}
}

// dashboardEngine lets the dashboard size drive both the renderer bounds
// and the tmux client size.
type dashboardEngine struct {
	*gateway.Poller
	bounds *screenBounds
}

func (e *dashboardEngine) SetClientSize(cols, rows int) {
	e.bounds.setContent(cols, rows)
	e.Poller.SetClientSize(cols, rows)
}
