package gateway

import (
	"github.com/timvw/pane-gateway/internal/model"
)

// Snapshot describes the tabs and panes. With content set, the visible text
// of every terminal that is not locked at the moment is included.
func (s *SyncState) Snapshot(content bool) model.StateSnapshot {
	snap := model.StateSnapshot{
		Session:      s.Session.Name,
		GatewayState: s.Session.State().String(),
		FocusedPane:  s.Session.FocusedPane,
		Paused:       s.Sync.AnyPaused(),
		LastError:    s.Session.LastError,
		Tabs:         []model.TabSnapshot{},
	}
	active, _ := s.Tabs.Active()
	for _, t := range s.Tabs.Tabs() {
		ts := model.TabSnapshot{
			ID:      t.ID,
			Title:   t.Title,
			Gateway: t.IsGateway(),
			Active:  active != nil && active.ID == t.ID,
		}
		if w, ok := s.Sync.WindowFor(t.ID); ok {
			ts.Window = &w
		}
		if content && t.IsGateway() && t.Terminal != nil {
			if term, ok := t.Terminal.TrySnapshot(); ok {
				ts.Output = term.Lines
			}
		}
		focused, hasFocus := t.Panes.Focused()
		for _, p := range t.Panes.Panes() {
			ps := model.PaneSnapshot{
				ID:      p.ID,
				Bounds:  p.Bounds,
				Focused: hasFocus && focused == p.ID,
			}
			if tmuxID, ok := s.Sync.TmuxFor(p.ID); ok {
				ps.TmuxID = &tmuxID
			}
			if term, ok := p.Terminal.TrySnapshot(); ok {
				ps.Cols, ps.Rows = term.Cols, term.Rows
				if content {
					ps.Content = term.Lines
				}
			}
			ts.Panes = append(ts.Panes, ps)
		}
		snap.Tabs = append(snap.Tabs, ts)
	}
	return snap
}
