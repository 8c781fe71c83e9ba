package bridge

import (
	"log/slog"

	"github.com/timvw/pane-gateway/internal/control"
)

// Bridge converts control events to notifications. The zero value is ready
// to use and logs to slog.Default().
type Bridge struct {
	Logger *slog.Logger
}

// New returns a bridge logging to logger.
func New(logger *slog.Logger) *Bridge {
	return &Bridge{Logger: logger}
}

func (b *Bridge) logger() *slog.Logger {
	if b == nil || b.Logger == nil {
		return slog.Default()
	}
	return b.Logger
}

// Convert returns the notifications for one event. Events the engine has no
// use for, and events whose ids do not parse, produce nothing.
func (b *Bridge) Convert(ev control.Event) []Notification {
	n, ok := convert(ev)
	if !ok {
		if ev.Kind != control.KindUnknown && ev.Kind != control.KindTerminalOutput {
			b.logger().Debug("control event filtered", "event", ev.Kind.String())
		}
		return nil
	}
	return []Notification{n}
}

// ConvertAll converts a drained batch, keeping arrival order.
func (b *Bridge) ConvertAll(events []control.Event) []Notification {
	var out []Notification
	for _, ev := range events {
		out = append(out, b.Convert(ev)...)
	}
	return out
}

func convert(ev control.Event) (Notification, bool) {
	switch ev.Kind {
	case control.KindBegin:
		return ControlModeStarted{}, true

	case control.KindError:
		return Error{Message: ev.Message()}, true

	case control.KindSessionChanged:
		return SessionStarted{Name: ev.Name}, true

	case control.KindSessionRenamed:
		return SessionRenamed{Name: ev.Name}, true

	case control.KindExit:
		return SessionEnded{Reason: ev.Reason}, true

	case control.KindWindowAdd:
		w, ok := ParseID(ev.WindowID).Window()
		if !ok {
			return nil, false
		}
		return WindowAdd{Window: w}, true

	case control.KindWindowClose:
		w, ok := ParseID(ev.WindowID).Window()
		if !ok {
			return nil, false
		}
		return WindowClose{Window: w}, true

	case control.KindWindowRenamed:
		w, ok := ParseID(ev.WindowID).Window()
		if !ok {
			return nil, false
		}
		return WindowRenamed{Window: w, Name: ev.Name}, true

	case control.KindLayoutChange:
		w, ok := ParseID(ev.WindowID).Window()
		if !ok || ev.Layout == "" {
			return nil, false
		}
		return LayoutChange{Window: w, Layout: ev.Layout}, true

	case control.KindOutput, control.KindExtendedOutput:
		p, ok := ParseID(ev.PaneID).Pane()
		if !ok {
			return nil, false
		}
		return Output{Pane: p, Data: ev.Data}, true

	case control.KindWindowPaneChanged:
		w, okW := ParseID(ev.WindowID).Window()
		p, okP := ParseID(ev.PaneID).Pane()
		if !okW || !okP {
			return nil, false
		}
		return PaneFocusChanged{Window: w, Pane: p}, true

	case control.KindPause:
		p, ok := ParseID(ev.PaneID).Pane()
		if !ok {
			return nil, false
		}
		return Pause{Pane: p}, true

	case control.KindContinue:
		p, ok := ParseID(ev.PaneID).Pane()
		if !ok {
			return nil, false
		}
		return Continue{Pane: p}, true
	}
	// %end, unlinked windows, other clients, subscriptions, paste buffers,
	// unknown lines and plain terminal output.
	return nil, false
}
