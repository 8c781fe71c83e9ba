// Package gateway drives a local tab and pane model from a tmux control-mode
// connection.
//
// All mutable state lives in one SyncState owned by the Poller. Each Tick
// drains the decoded notifications of the gateway terminal and applies them
// in a fixed order: window structure, then layouts, then output, then flow
// control. Terminal locks are only ever try-locked; work that misses a lock
// is skipped and picked up again by a later tick.
package gateway

import (
	"github.com/timvw/pane-gateway/internal/idsync"
	"github.com/timvw/pane-gateway/internal/model"
	"github.com/timvw/pane-gateway/internal/tab"
	"github.com/timvw/pane-gateway/internal/terminal"
)

// SyncState is the gateway's mutable state. It is passed explicitly to the
// poller and provisioner and has no other writers.
type SyncState struct {
	Session Session
	Sync    *idsync.Sync
	Tabs    *tab.Manager

	gatewayTab    model.TabID
	hasGatewayTab bool

	// layouts that could not be applied for lock contention, by window
	pending      map[model.WindowID]string
	pendingOrder []model.WindowID
}

// NewSyncState returns state over the given maps and tabs.
func NewSyncState(sync *idsync.Sync, tabs *tab.Manager) *SyncState {
	return &SyncState{
		Sync:    sync,
		Tabs:    tabs,
		pending: make(map[model.WindowID]string),
	}
}

// AttachGateway creates the gateway tab around term, switches the terminal
// to control mode and marks the session as initiating. The caller must not
// have started the reader on term yet.
func (s *SyncState) AttachGateway(term *terminal.Terminal, title string) model.TabID {
	term.Lock()
	term.SetControlMode(true)
	term.Unlock()

	id := s.Tabs.CreateGatewayTab(term, title)
	t, _ := s.Tabs.Get(id)
	t.GatewayActive = true
	s.gatewayTab, s.hasGatewayTab = id, true
	s.Session.Begin()
	return id
}

// GatewayTab returns the tab of the attached control connection.
func (s *SyncState) GatewayTab() (*tab.Tab, bool) {
	if !s.hasGatewayTab {
		return nil, false
	}
	return s.Tabs.Get(s.gatewayTab)
}

func (s *SyncState) forgetGatewayTab() {
	s.gatewayTab, s.hasGatewayTab = 0, false
}

// setPending records layout as the latest unapplied layout of window.
func (s *SyncState) setPending(window model.WindowID, layout string) {
	if _, ok := s.pending[window]; !ok {
		s.pendingOrder = append(s.pendingOrder, window)
	}
	s.pending[window] = layout
}

// dropPending forgets the unapplied layout of window.
func (s *SyncState) dropPending(window model.WindowID) {
	if _, ok := s.pending[window]; !ok {
		return
	}
	delete(s.pending, window)
	for i, w := range s.pendingOrder {
		if w == window {
			s.pendingOrder = append(s.pendingOrder[:i], s.pendingOrder[i+1:]...)
			break
		}
	}
}

// takePending removes and returns the unapplied layouts in arrival order.
func (s *SyncState) takePending() []pendingLayout {
	out := make([]pendingLayout, 0, len(s.pendingOrder))
	for _, w := range s.pendingOrder {
		out = append(out, pendingLayout{window: w, layout: s.pending[w]})
	}
	s.pending = make(map[model.WindowID]string)
	s.pendingOrder = nil
	return out
}

// PendingLayouts returns the number of layouts waiting for a retry.
func (s *SyncState) PendingLayouts() int { return len(s.pendingOrder) }

type pendingLayout struct {
	window model.WindowID
	layout string
}
