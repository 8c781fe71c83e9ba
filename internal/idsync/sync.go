// Package idsync keeps the tmux window and pane ids mapped to local tabs and
// panes, and translates notifications into actions on the local side.
//
// The pane maps are kept as exact inverses: every mutation goes through
// MapPane or unmapPane, which update both directions together.
package idsync

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/timvw/pane-gateway/internal/bridge"
	"github.com/timvw/pane-gateway/internal/model"
)

// Sync owns the identifier maps. It is not safe for concurrent use; the
// poller is its only writer.
type Sync struct {
	logger *slog.Logger

	windowToTab map[model.WindowID]model.TabID
	tabToWindow map[model.TabID]model.WindowID

	paneToNative map[model.PaneID]model.NativePaneID
	nativeToPane map[model.NativePaneID]model.PaneID
	paneTab      map[model.PaneID]model.TabID

	enabled bool
	paused  map[model.PaneID]bool
	buffers map[model.PaneID][][]byte
}

// New returns a disabled Sync with empty maps.
func New(logger *slog.Logger) *Sync {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sync{logger: logger}
	s.Clear()
	return s
}

// Enable turns translation on. A disabled Sync returns no actions.
func (s *Sync) Enable() { s.enabled = true }

func (s *Sync) Disable() { s.enabled = false }

func (s *Sync) Enabled() bool { return s.enabled }

// Clear forgets every mapping and pause buffer. The enabled flag is kept.
func (s *Sync) Clear() {
	s.windowToTab = make(map[model.WindowID]model.TabID)
	s.tabToWindow = make(map[model.TabID]model.WindowID)
	s.paneToNative = make(map[model.PaneID]model.NativePaneID)
	s.nativeToPane = make(map[model.NativePaneID]model.PaneID)
	s.paneTab = make(map[model.PaneID]model.TabID)
	s.paused = make(map[model.PaneID]bool)
	s.buffers = make(map[model.PaneID][][]byte)
}

// ProcessNotifications translates one group of notifications. Layout and
// output notifications without a mapping produce no action; Unresolved
// lists them for the caller's fallback.
func (s *Sync) ProcessNotifications(batch []bridge.Notification) []Action {
	if !s.enabled {
		return nil
	}
	var actions []Action
	for _, n := range batch {
		switch n := n.(type) {
		case bridge.WindowAdd:
			if _, ok := s.windowToTab[n.Window]; ok {
				s.logger.Debug("window already mapped", "window", n.Window.String())
				continue
			}
			actions = append(actions, CreateTab{Window: n.Window})

		case bridge.WindowClose:
			tab, ok := s.windowToTab[n.Window]
			if !ok {
				s.logger.Debug("close for unmapped window", "window", n.Window.String())
				continue
			}
			s.UnmapWindow(n.Window)
			s.UnmapTabPanes(tab)
			actions = append(actions, CloseTab{Window: n.Window, Tab: tab})

		case bridge.WindowRenamed:
			if tab, ok := s.windowToTab[n.Window]; ok {
				actions = append(actions, RenameTab{Window: n.Window, Tab: tab, Name: n.Name})
			}

		case bridge.SessionEnded:
			tabs := make([]model.TabID, 0, len(s.tabToWindow))
			for tab := range s.tabToWindow {
				tabs = append(tabs, tab)
			}
			slices.Sort(tabs)
			s.Clear()
			actions = append(actions, SessionEnded{Tabs: tabs})

		case bridge.LayoutChange:
			if tab, ok := s.windowToTab[n.Window]; ok {
				actions = append(actions, UpdateLayout{Window: n.Window, Tab: tab, Layout: n.Layout})
			}

		case bridge.Output:
			if s.paused[n.Pane] {
				s.buffers[n.Pane] = append(s.buffers[n.Pane], n.Data)
				continue
			}
			if native, ok := s.paneToNative[n.Pane]; ok {
				actions = append(actions, PaneOutput{Pane: n.Pane, Native: native, Tab: s.paneTab[n.Pane], Data: n.Data})
			}

		case bridge.Pause:
			s.paused[n.Pane] = true
			actions = append(actions, Pause{Pane: n.Pane})

		case bridge.Continue:
			c := Continue{Pane: n.Pane, Buffered: s.buffers[n.Pane]}
			if native, ok := s.paneToNative[n.Pane]; ok {
				c.Native, c.Tab, c.Mapped = native, s.paneTab[n.Pane], true
			}
			delete(s.paused, n.Pane)
			delete(s.buffers, n.Pane)
			actions = append(actions, c)
		}
	}
	return actions
}

// Unresolved returns the layout and output notifications of batch that have
// no mapping. Output for a paused pane is buffered, not unresolved.
func (s *Sync) Unresolved(batch []bridge.Notification) []bridge.Notification {
	if !s.enabled {
		return nil
	}
	var out []bridge.Notification
	for _, n := range batch {
		switch n := n.(type) {
		case bridge.LayoutChange:
			if _, ok := s.windowToTab[n.Window]; !ok {
				out = append(out, n)
			}
		case bridge.Output:
			if _, ok := s.paneToNative[n.Pane]; !ok && !s.paused[n.Pane] {
				out = append(out, n)
			}
		}
	}
	return out
}

// MapWindow maps window to tab, replacing any previous pairing of either.
func (s *Sync) MapWindow(window model.WindowID, tab model.TabID) {
	if old, ok := s.windowToTab[window]; ok {
		delete(s.tabToWindow, old)
	}
	if old, ok := s.tabToWindow[tab]; ok {
		delete(s.windowToTab, old)
	}
	s.windowToTab[window] = tab
	s.tabToWindow[tab] = window
}

func (s *Sync) UnmapWindow(window model.WindowID) {
	if tab, ok := s.windowToTab[window]; ok {
		delete(s.tabToWindow, tab)
		delete(s.windowToTab, window)
	}
}

// UnmapTab removes the window mapping of tab and all its panes.
func (s *Sync) UnmapTab(tab model.TabID) {
	if w, ok := s.tabToWindow[tab]; ok {
		s.UnmapWindow(w)
	}
	s.UnmapTabPanes(tab)
}

func (s *Sync) TabFor(window model.WindowID) (model.TabID, bool) {
	tab, ok := s.windowToTab[window]
	return tab, ok
}

func (s *Sync) WindowFor(tab model.TabID) (model.WindowID, bool) {
	w, ok := s.tabToWindow[tab]
	return w, ok
}

// MapPane pairs a tmux pane with a local pane of tab. A previous pairing of
// either id is removed first so the maps stay inverse.
func (s *Sync) MapPane(tab model.TabID, pane model.PaneID, native model.NativePaneID) {
	s.unmapPane(pane)
	if old, ok := s.nativeToPane[native]; ok {
		s.unmapPane(old)
	}
	s.paneToNative[pane] = native
	s.nativeToPane[native] = pane
	s.paneTab[pane] = tab
}

func (s *Sync) UnmapPane(pane model.PaneID) { s.unmapPane(pane) }

func (s *Sync) unmapPane(pane model.PaneID) {
	native, ok := s.paneToNative[pane]
	if !ok {
		return
	}
	delete(s.paneToNative, pane)
	delete(s.nativeToPane, native)
	delete(s.paneTab, pane)
}

// UnmapTabPanes removes every pane mapping that belongs to tab.
func (s *Sync) UnmapTabPanes(tab model.TabID) {
	for pane, t := range s.paneTab {
		if t == tab {
			s.unmapPane(pane)
		}
	}
}

// ReplaceTabPanes makes mapping the complete pane mapping of tab.
func (s *Sync) ReplaceTabPanes(tab model.TabID, mapping map[model.PaneID]model.NativePaneID) {
	s.UnmapTabPanes(tab)
	for pane, native := range mapping {
		s.MapPane(tab, pane, native)
	}
}

func (s *Sync) NativeFor(pane model.PaneID) (model.NativePaneID, bool) {
	n, ok := s.paneToNative[pane]
	return n, ok
}

func (s *Sync) TmuxFor(native model.NativePaneID) (model.PaneID, bool) {
	p, ok := s.nativeToPane[native]
	return p, ok
}

// TabOfPane returns the tab a tmux pane is mapped in.
func (s *Sync) TabOfPane(pane model.PaneID) (model.TabID, bool) {
	t, ok := s.paneTab[pane]
	return t, ok
}

// TabPanes returns a copy of the pane mapping of tab.
func (s *Sync) TabPanes(tab model.TabID) map[model.PaneID]model.NativePaneID {
	out := make(map[model.PaneID]model.NativePaneID)
	for pane, t := range s.paneTab {
		if t == tab {
			out[pane] = s.paneToNative[pane]
		}
	}
	return out
}

// MappedPanes returns the sorted tmux pane ids mapped for tab.
func (s *Sync) MappedPanes(tab model.TabID) []model.PaneID {
	var out []model.PaneID
	for pane, t := range s.paneTab {
		if t == tab {
			out = append(out, pane)
		}
	}
	slices.Sort(out)
	return out
}

// PaneCount returns the number of mapped panes across all tabs.
func (s *Sync) PaneCount() int { return len(s.paneToNative) }

// WindowCount returns the number of mapped windows.
func (s *Sync) WindowCount() int { return len(s.windowToTab) }

func (s *Sync) IsPaused(pane model.PaneID) bool { return s.paused[pane] }

// AnyPaused reports whether output of some pane is being buffered.
func (s *Sync) AnyPaused() bool { return len(s.paused) > 0 }

// CheckInvariant verifies that the pane maps are exact inverses, that every
// mapped pane belongs to a tab and that the window maps are inverses.
func (s *Sync) CheckInvariant() error {
	if len(s.paneToNative) != len(s.nativeToPane) {
		return fmt.Errorf("pane maps differ in size: %d tmux, %d native", len(s.paneToNative), len(s.nativeToPane))
	}
	for pane, native := range s.paneToNative {
		back, ok := s.nativeToPane[native]
		if !ok || back != pane {
			return fmt.Errorf("pane %s maps to native %d which maps back to %s", pane, native, back)
		}
		if _, ok := s.paneTab[pane]; !ok {
			return fmt.Errorf("pane %s has no tab", pane)
		}
	}
	if len(s.paneTab) != len(s.paneToNative) {
		return fmt.Errorf("pane tab map has %d entries for %d panes", len(s.paneTab), len(s.paneToNative))
	}
	if len(s.windowToTab) != len(s.tabToWindow) {
		return fmt.Errorf("window maps differ in size: %d windows, %d tabs", len(s.windowToTab), len(s.tabToWindow))
	}
	for w, tab := range s.windowToTab {
		if back, ok := s.tabToWindow[tab]; !ok || back != w {
			return fmt.Errorf("window %s maps to tab %d which maps back to %s", w, tab, back)
		}
	}
	return nil
}
