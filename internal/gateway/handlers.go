package gateway

import (
	"context"
	"slices"

	"github.com/timvw/pane-gateway/internal/bridge"
	"github.com/timvw/pane-gateway/internal/idsync"
	"github.com/timvw/pane-gateway/internal/model"
)

// GatewayTitle is the title of the gateway tab while attached to session.
func GatewayTitle(session string) string {
	return "[tmux: " + session + "]"
}

// dispatchDirect handles the notifications that need no id translation.
func (p *Poller) dispatchDirect(ctx context.Context, n bridge.Notification) bool {
	switch n := n.(type) {
	case bridge.ControlModeStarted:
		p.logger.Debug("control mode block started")
		return false
	case bridge.SessionStarted:
		p.handleSessionStarted(n.Name)
		return true
	case bridge.SessionRenamed:
		p.state.Session.Name = n.Name
		if gw, ok := p.state.GatewayTab(); ok {
			gw.Title = GatewayTitle(n.Name)
		}
		p.logger.Info("session renamed", "session", n.Name)
		return true
	case bridge.Error:
		p.logger.Warn("tmux error", "message", n.Message, "state", p.state.Session.State().String())
		// an error before any reply means the attach failed
		if p.state.Session.State() == StateEnded {
			if _, ok := p.state.GatewayTab(); ok {
				p.handleSessionEnded(ctx, nil)
			}
		}
		return true
	}
	return false
}

func (p *Poller) handleSessionStarted(name string) {
	p.state.Session.Name = name
	if gw, ok := p.state.GatewayTab(); ok {
		gw.Title = GatewayTitle(name)
		gw.GatewayActive = true
	}
	p.state.Sync.Enable()
	p.logger.Info("session attached", "session", name)

	_ = p.commands.Send(WindowSizeSmallest())
	cols, rows := p.clientSize()
	_ = p.commands.ResizeClient(cols, rows)
}

// handleFocus records the focused tmux pane and focuses its local pane.
func (p *Poller) handleFocus(f bridge.PaneFocusChanged) bool {
	pane := f.Pane
	p.state.Session.FocusedPane = &pane

	native, ok := p.state.Sync.NativeFor(pane)
	if !ok {
		return true
	}
	tabID, _ := p.state.Sync.TabOfPane(pane)
	t, ok := p.state.Tabs.Get(tabID)
	if !ok {
		return true
	}
	t.Panes.FocusPane(native)
	t.SetLastPane(pane)
	return true
}

// handleWindowClose closes the tab of a closed window. The mappings are
// already gone. Closing the last tab ends the session.
func (p *Poller) handleWindowClose(ctx context.Context, a idsync.CloseTab) {
	p.state.dropPending(a.Window)
	_, wasLast := p.state.Tabs.Close(a.Tab)
	p.logger.Info("window closed", "window", a.Window.String(), "tab", a.Tab)
	if wasLast {
		p.handleSessionEnded(ctx, p.mappedTabs())
	}
}

func (p *Poller) mappedTabs() []model.TabID {
	var out []model.TabID
	for _, t := range p.state.Tabs.Tabs() {
		if _, ok := p.state.Sync.WindowFor(t.ID); ok {
			out = append(out, t.ID)
		}
	}
	return out
}

// handleSessionEnded tears the session down: tmux tabs are closed, control
// mode is switched off on the gateway terminal (or deferred if it is busy)
// and all maps are cleared.
func (p *Poller) handleSessionEnded(ctx context.Context, tabs []model.TabID) {
	gw, hasGateway := p.state.GatewayTab()

	closed := 0
	for _, t := range p.state.Tabs.Tabs() {
		if t.IsGateway() {
			continue
		}
		_, mapped := p.state.Sync.WindowFor(t.ID)
		if !mapped && !slices.Contains(tabs, t.ID) && t.LastPaneID == nil {
			continue
		}
		p.state.Tabs.Close(t.ID)
		closed++
	}

	if hasGateway {
		gw.GatewayActive = false
		if gw.Terminal.TryLock() {
			gw.Terminal.SetControlMode(false)
			gw.Terminal.Unlock()
		} else {
			gw.PendingControlModeDisable = true
			p.metrics.RecordLockMiss(ctx, "disable")
			p.logger.Warn("control mode disable deferred, terminal busy", "tab", gw.ID)
		}
	}

	p.state.forgetGatewayTab()
	p.state.Session.Reset()
	p.state.Sync.Clear()
	p.state.Sync.Disable()
	p.state.takePending()
	p.logger.Info("session ended", "tabs_closed", closed)
}
