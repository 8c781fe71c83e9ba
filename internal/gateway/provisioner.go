package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/timvw/pane-gateway/internal/layout"
	"github.com/timvw/pane-gateway/internal/model"
	"github.com/timvw/pane-gateway/internal/otel"
	"github.com/timvw/pane-gateway/internal/reconcile"
	"github.com/timvw/pane-gateway/internal/tab"
)

// Provisioner creates tabs for tmux windows.
type Provisioner struct {
	State      *SyncState
	Reconciler *reconcile.Reconciler
	Logger     *slog.Logger
	Metrics    *otel.Metrics
}

// CreateTabForWindow creates a tab titled after window, maps it and, when
// tree is not nil, applies tree to it. At the tab ceiling nothing is created
// and the returned error wraps tab.ErrLimit.
func (p *Provisioner) CreateTabForWindow(ctx context.Context, window model.WindowID, tree *layout.Node) (model.TabID, error) {
	id, err := p.State.Tabs.CreateTab()
	if err != nil {
		if errors.Is(err, tab.ErrLimit) {
			p.Metrics.RecordTabRefused(ctx)
			p.logger().Warn("tab limit reached, window not shown", "window", window.String(), "limit", p.State.Tabs.MaxTabs)
		}
		return 0, fmt.Errorf("tab for %s: %w", window, err)
	}
	t, _ := p.State.Tabs.Get(id)
	t.Title = "tmux " + window.String()
	p.State.Sync.MapWindow(window, id)
	p.Metrics.RecordTabProvisioned(ctx)
	p.logger().Info("tab created for window", "window", window.String(), "tab", id)

	if tree != nil {
		if _, err := p.Reconciler.Apply(ctx, t, window, tree); err != nil {
			// the tab stays mapped; the next layout for the window fills it
			return id, fmt.Errorf("initial layout for %s: %w", window, err)
		}
	}
	return id, nil
}

func (p *Provisioner) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}
