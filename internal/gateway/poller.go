package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/timvw/pane-gateway/internal/bridge"
	"github.com/timvw/pane-gateway/internal/control"
	"github.com/timvw/pane-gateway/internal/idsync"
	"github.com/timvw/pane-gateway/internal/layout"
	"github.com/timvw/pane-gateway/internal/model"
	"github.com/timvw/pane-gateway/internal/otel"
	"github.com/timvw/pane-gateway/internal/reconcile"
	"github.com/timvw/pane-gateway/internal/tab"
	"github.com/timvw/pane-gateway/internal/terminal"
)

// Converter turns decoded control events into notifications.
type Converter interface {
	ConvertAll(events []control.Event) []bridge.Notification
}

// Options configures a Poller.
type Options struct {
	// Enabled is the master switch; a disabled poller does nothing.
	Enabled bool
	// HidePadding lays tmux panes out without window padding.
	HidePadding bool
	// Bounds reports the renderer geometry.
	Bounds reconcile.BoundsSource
	// Commands writes tmux commands to the gateway connection.
	Commands *Commander
	// Bridge converts events; nil uses bridge.New(Logger).
	Bridge Converter

	Logger    *slog.Logger
	Telemetry *otel.Telemetry
}

// Poller applies gateway notifications to the local model, one Tick at a
// time. Tick must not be called concurrently.
type Poller struct {
	state       *SyncState
	opts        Options
	bridge      Converter
	reconciler  *reconcile.Reconciler
	provisioner *Provisioner
	commands    *Commander

	logger  *slog.Logger
	metrics *otel.Metrics
	tracer  trace.Tracer

	clientCols, clientRows int
}

// NewPoller wires a poller over state.
func NewPoller(state *SyncState, opts Options) *Poller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var metrics *otel.Metrics
	var tracer trace.Tracer = tracenoop.NewTracerProvider().Tracer("")
	if opts.Telemetry != nil {
		metrics = opts.Telemetry.Metrics
		if opts.Telemetry.Tracer != nil {
			tracer = opts.Telemetry.Tracer
		}
	}
	conv := opts.Bridge
	if conv == nil {
		conv = bridge.New(logger)
	}
	commands := opts.Commands
	if commands == nil {
		commands = NewCommander(CommandWriterFunc(func(string) error { return nil }), nil, logger)
	}
	bounds := opts.Bounds
	if bounds == nil {
		bounds = reconcile.BoundsFunc(func() model.BoundsInfo { return model.BoundsInfo{} })
	}

	rec := &reconcile.Reconciler{
		Sync:        state.Sync,
		Bounds:      bounds,
		Refresher:   commands,
		HidePadding: opts.HidePadding,
		Logger:      logger,
		Metrics:     metrics,
		Tracer:      tracer,
	}
	p := &Poller{
		state:      state,
		opts:       opts,
		bridge:     conv,
		reconciler: rec,
		commands:   commands,
		logger:     logger,
		metrics:    metrics,
		tracer:     tracer,
	}
	p.opts.Bounds = bounds
	p.provisioner = &Provisioner{State: state, Reconciler: rec, Logger: logger, Metrics: metrics}
	return p
}

// State returns the state the poller drives.
func (p *Poller) State() *SyncState { return p.state }

// Commands returns the command writer used for refreshes and input.
func (p *Poller) Commands() *Commander { return p.commands }

// Tick runs one poll. It reports whether anything changed that needs a
// redraw.
func (p *Poller) Tick(ctx context.Context) bool {
	if !p.opts.Enabled {
		return false
	}
	redraw := p.retryDeferredDisable(ctx)

	gw, ok := p.state.GatewayTab()
	if !ok {
		return redraw
	}

	if !gw.Terminal.TryLock() {
		p.metrics.RecordLockMiss(ctx, "drain")
		return redraw
	}
	events := gw.Terminal.DrainNotifications()
	gw.Terminal.Unlock()

	// a refresh held back by the limiter goes out even on quiet ticks
	p.commands.Flush()
	if len(events) == 0 {
		return p.retryPending(ctx) || redraw
	}

	notes := p.bridge.ConvertAll(events)
	if len(notes) == 0 {
		return p.retryPending(ctx) || redraw
	}

	ctx, span := p.tracer.Start(ctx, "gateway.tick", trace.WithAttributes(
		attribute.Int("gateway.raw_events", len(events)),
		attribute.Int("gateway.notifications", len(notes)),
	))
	defer span.End()

	for _, n := range notes {
		p.metrics.RecordNotification(ctx, n.Kind().String())
		if p.state.Session.Observe(n) {
			p.logger.Info("gateway state", "state", p.state.Session.State().String())
			redraw = true
		}
	}

	groups := bridge.Partition(notes)

	var focus []bridge.PaneFocusChanged
	for _, n := range groups[bridge.GroupDirect] {
		if f, ok := n.(bridge.PaneFocusChanged); ok {
			focus = append(focus, f)
			continue
		}
		if p.dispatchDirect(ctx, n) {
			redraw = true
		}
	}

	if p.processStructure(ctx, groups[bridge.GroupStructure]) {
		redraw = true
	}
	if p.processLayouts(ctx, groups[bridge.GroupLayout]) {
		redraw = true
	}
	if p.processOutput(ctx, groups[bridge.GroupOutput]) {
		redraw = true
	}
	if p.processFlow(ctx, groups[bridge.GroupFlow]) {
		redraw = true
	}
	// focus needs the pane mappings established above
	for _, f := range focus {
		if p.handleFocus(f) {
			redraw = true
		}
	}

	span.SetAttributes(attribute.Bool("gateway.applied", redraw))
	return redraw
}

// retryDeferredDisable turns control mode off on terminals whose teardown
// missed the lock.
func (p *Poller) retryDeferredDisable(ctx context.Context) bool {
	changed := false
	for _, t := range p.state.Tabs.Tabs() {
		if !t.PendingControlModeDisable || t.Terminal == nil {
			continue
		}
		if !t.Terminal.TryLock() {
			p.metrics.RecordLockMiss(ctx, "disable")
			continue
		}
		t.Terminal.SetControlMode(false)
		t.Terminal.Unlock()
		t.PendingControlModeDisable = false
		p.logger.Info("control mode disabled after retry", "tab", t.ID)
		changed = true
	}
	return changed
}

func (p *Poller) processStructure(ctx context.Context, batch []bridge.Notification) bool {
	if len(batch) == 0 {
		return false
	}
	applied := false
	if !p.state.Sync.Enabled() {
		// the session ended before it was reported as started
		for _, n := range batch {
			if _, ok := n.(bridge.SessionEnded); ok {
				p.handleSessionEnded(ctx, nil)
				return true
			}
		}
		return false
	}
	for _, a := range p.state.Sync.ProcessNotifications(batch) {
		switch a := a.(type) {
		case idsync.CreateTab:
			if _, err := p.provisioner.CreateTabForWindow(ctx, a.Window, nil); err == nil {
				applied = true
			}
		case idsync.CloseTab:
			p.handleWindowClose(ctx, a)
			applied = true
		case idsync.RenameTab:
			if t, ok := p.state.Tabs.Get(a.Tab); ok {
				t.Title = a.Name
				applied = true
			}
		case idsync.SessionEnded:
			p.handleSessionEnded(ctx, a.Tabs)
			applied = true
		}
	}
	return applied
}

func (p *Poller) processLayouts(ctx context.Context, batch []bridge.Notification) bool {
	applied := false

	// a newer layout for the same window supersedes a pending one
	for _, n := range batch {
		p.state.dropPending(n.(bridge.LayoutChange).Window)
	}
	if p.retryPending(ctx) {
		applied = true
	}

	if len(batch) == 0 {
		return applied
	}
	unresolved := p.state.Sync.Unresolved(batch)
	for _, a := range p.state.Sync.ProcessNotifications(batch) {
		ul, ok := a.(idsync.UpdateLayout)
		if !ok {
			continue
		}
		t, ok := p.state.Tabs.Get(ul.Tab)
		if !ok {
			p.logger.Warn("layout for a tab that no longer exists", "window", ul.Window.String(), "tab", ul.Tab)
			continue
		}
		if p.applyLayout(ctx, t, ul.Window, ul.Layout) {
			applied = true
		}
	}
	for _, n := range unresolved {
		lc := n.(bridge.LayoutChange)
		if p.layoutFallback(ctx, lc) {
			applied = true
		}
	}
	return applied
}

// retryPending applies the layouts that missed a lock on an earlier tick.
func (p *Poller) retryPending(ctx context.Context) bool {
	applied := false
	for _, pl := range p.state.takePending() {
		t, ok := p.tabFor(pl.window)
		if !ok {
			continue
		}
		if p.applyLayout(ctx, t, pl.window, pl.layout) {
			applied = true
		}
	}
	return applied
}

func (p *Poller) tabFor(window model.WindowID) (*tab.Tab, bool) {
	id, ok := p.state.Sync.TabFor(window)
	if !ok {
		return nil, false
	}
	return p.state.Tabs.Get(id)
}

// applyLayout parses and reconciles one layout. A layout that misses a lock
// is kept pending for the next tick.
func (p *Poller) applyLayout(ctx context.Context, t *tab.Tab, window model.WindowID, raw string) bool {
	tree, err := layout.Parse(raw)
	if err != nil {
		p.metrics.RecordParseFailure(ctx)
		p.logger.Error("layout discarded", "window", window.String(), "layout", raw, "error", err)
		return false
	}
	res, err := p.reconciler.Apply(ctx, t, window, tree)
	if err != nil {
		if errors.Is(err, terminal.ErrContended) {
			p.state.setPending(window, raw)
		}
		return false
	}
	p.followFocus(res)
	return true
}

// followFocus moves the session focus off a pane the layout removed, to the
// pane the tab focused instead.
func (p *Poller) followFocus(res reconcile.Result) {
	focused := p.state.Session.FocusedPane
	if focused == nil || res.Focus == nil || !slices.Contains(res.Removed, *focused) {
		return
	}
	p.logger.Debug("focused pane removed", "pane", focused.String(), "focus", res.Focus.String())
	p.state.Session.FocusedPane = res.Focus
}

// layoutFallback handles a layout for a window without a tab: it adopts the
// first tab whose last pane appears in the layout, or provisions a new tab.
func (p *Poller) layoutFallback(ctx context.Context, lc bridge.LayoutChange) bool {
	// an earlier fallback in this tick may have mapped the window
	if t, ok := p.tabFor(lc.Window); ok {
		return p.applyLayout(ctx, t, lc.Window, lc.Layout)
	}
	tree, err := layout.Parse(lc.Layout)
	if err != nil {
		p.metrics.RecordParseFailure(ctx)
		p.logger.Error("layout discarded", "window", lc.Window.String(), "layout", lc.Layout, "error", err)
		return false
	}
	ids := tree.PaneIDs()
	for _, t := range p.state.Tabs.Tabs() {
		if t.IsGateway() || t.LastPaneID == nil || !slices.Contains(ids, *t.LastPaneID) {
			continue
		}
		if _, mapped := p.state.Sync.WindowFor(t.ID); mapped {
			continue
		}
		p.logger.Info("window adopted by tab with matching pane", "window", lc.Window.String(), "tab", t.ID, "pane", t.LastPaneID.String())
		p.state.Sync.MapWindow(lc.Window, t.ID)
		return p.applyLayout(ctx, t, lc.Window, lc.Layout)
	}
	id, err := p.provisioner.CreateTabForWindow(ctx, lc.Window, tree)
	if err != nil {
		if errors.Is(err, terminal.ErrContended) {
			p.state.setPending(lc.Window, lc.Layout)
		}
		return id != 0
	}
	return true
}

func (p *Poller) processOutput(ctx context.Context, batch []bridge.Notification) bool {
	if len(batch) == 0 {
		return false
	}
	applied := false
	unresolved := p.state.Sync.Unresolved(batch)
	for _, a := range p.state.Sync.ProcessNotifications(batch) {
		po, ok := a.(idsync.PaneOutput)
		if !ok {
			continue
		}
		if p.writePane(ctx, po.Tab, po.Native, po.Data, "output") {
			applied = true
		}
	}
	for _, n := range unresolved {
		o := n.(bridge.Output)
		if p.writeGateway(ctx, o.Data) {
			applied = true
		}
	}
	return applied
}

func (p *Poller) processFlow(ctx context.Context, batch []bridge.Notification) bool {
	if len(batch) == 0 {
		return false
	}
	applied := false
	for _, a := range p.state.Sync.ProcessNotifications(batch) {
		switch a := a.(type) {
		case idsync.Pause:
			p.logger.Debug("pane output paused", "pane", a.Pane.String())
			applied = true
		case idsync.Continue:
			p.logger.Debug("pane output continued", "pane", a.Pane.String(), "buffered", len(a.Buffered))
			for _, data := range a.Buffered {
				if a.Mapped {
					p.writePane(ctx, a.Tab, a.Native, data, "flush")
				} else {
					p.writeGateway(ctx, data)
				}
			}
			applied = true
		}
	}
	return applied
}

// writePane writes output to a local pane if its lock is free. Output that
// misses the lock is dropped.
func (p *Poller) writePane(ctx context.Context, tabID model.TabID, native model.NativePaneID, data []byte, site string) bool {
	t, ok := p.state.Tabs.Get(tabID)
	if !ok {
		return false
	}
	pn, ok := t.Panes.Pane(native)
	if !ok {
		return false
	}
	if !pn.Terminal.TryLock() {
		p.metrics.RecordLockMiss(ctx, site)
		p.logger.Debug("output dropped, terminal busy", "pane", pn.TmuxID.String(), "bytes", len(data))
		return false
	}
	_, _ = pn.Terminal.Write(data)
	pn.Terminal.Unlock()
	return true
}

// writeGateway routes output without a pane to the gateway's own terminal.
func (p *Poller) writeGateway(ctx context.Context, data []byte) bool {
	gw, ok := p.state.GatewayTab()
	if !ok {
		return false
	}
	if !gw.Terminal.TryLock() {
		p.metrics.RecordLockMiss(ctx, "gateway_output")
		return false
	}
	_, _ = gw.Terminal.Write(data)
	gw.Terminal.Unlock()
	return true
}

// SetClientSize records the size of the local client and, once connected,
// reports it to tmux.
func (p *Poller) SetClientSize(cols, rows int) {
	if cols == p.clientCols && rows == p.clientRows {
		return
	}
	p.clientCols, p.clientRows = cols, rows
	if p.state.Session.State() == StateConnected {
		_ = p.commands.ResizeClient(cols, rows)
	}
}

// clientSize returns the recorded client size, falling back to the grid that
// fits the current bounds.
func (p *Poller) clientSize() (int, int) {
	if p.clientCols > 0 && p.clientRows > 0 {
		return p.clientCols, p.clientRows
	}
	return p.opts.Bounds.BoundsInfo().GridSize(p.opts.HidePadding)
}

// SendInput types input into the focused tmux pane.
func (p *Poller) SendInput(input string) error {
	pane, ok := p.FocusedPane()
	if !ok {
		return errNoFocusedPane
	}
	return p.commands.SendInput(pane, input)
}

// Submit types text into the focused tmux pane and presses Enter.
func (p *Poller) Submit(text string) error {
	pane, ok := p.FocusedPane()
	if !ok {
		return errNoFocusedPane
	}
	return p.commands.Submit(pane, text)
}

// Split splits the focused tmux pane, side by side when horizontal is set.
// The new pane arrives as a layout change.
func (p *Poller) Split(horizontal bool) error {
	pane, ok := p.FocusedPane()
	if !ok {
		return errNoFocusedPane
	}
	return p.commands.Send(SplitWindow(pane, horizontal))
}

// KillFocused closes the focused tmux pane.
func (p *Poller) KillFocused() error {
	pane, ok := p.FocusedPane()
	if !ok {
		return errNoFocusedPane
	}
	return p.commands.Send(KillPane(pane))
}

// SelectPane makes pane the active pane of its window in tmux. tmux confirms
// with a pane focus notification.
func (p *Poller) SelectPane(pane model.PaneID) error {
	if _, ok := p.state.Sync.NativeFor(pane); !ok {
		return fmt.Errorf("select pane %s: %w", pane, errNotMapped)
	}
	return p.commands.Send(SelectPane(pane))
}

// SelectTab activates a local tab and, for a tmux tab, its window.
func (p *Poller) SelectTab(id model.TabID) error {
	if !p.state.Tabs.SwitchTo(id) {
		return fmt.Errorf("select tab %d: no such tab", id)
	}
	window, ok := p.state.Sync.WindowFor(id)
	if !ok {
		return nil
	}
	// input follows the pane the tab shows as focused
	if t, ok := p.state.Tabs.Get(id); ok {
		if native, ok := t.Panes.Focused(); ok {
			if pane, ok := p.state.Sync.TmuxFor(native); ok {
				p.state.Session.FocusedPane = &pane
			}
		}
	}
	return p.commands.Send(SelectWindow(window))
}

// Snapshot describes the current tabs and panes.
func (p *Poller) Snapshot(content bool) model.StateSnapshot {
	return p.state.Snapshot(content)
}

// FocusedPane returns the tmux pane that has focus, if known.
func (p *Poller) FocusedPane() (model.PaneID, bool) {
	if p.state.Session.FocusedPane != nil {
		return *p.state.Session.FocusedPane, true
	}
	if t, ok := p.state.Tabs.Active(); ok {
		if native, ok := t.Panes.Focused(); ok {
			return p.state.Sync.TmuxFor(native)
		}
	}
	return 0, false
}

var (
	errNoFocusedPane = errors.New("no focused tmux pane")
	errNotMapped     = errors.New("not a mapped tmux pane")
)
