// Package reconcile applies a tmux window layout to the pane tree of a tab.
//
// Four cases are told apart by comparing the reported pane set with the panes
// mapped for the tab:
//
//	preserve  same set: keep every pane, update geometry only
//	remove    panes only went away: close them, keep the rest
//	add       panes only appeared: reuse kept terminals, create the new ones
//	full      anything else: rebuild the tree from scratch
//
// Nothing is mutated unless every terminal of the tab could be try-locked.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/timvw/pane-gateway/internal/idsync"
	"github.com/timvw/pane-gateway/internal/layout"
	"github.com/timvw/pane-gateway/internal/model"
	"github.com/timvw/pane-gateway/internal/otel"
	"github.com/timvw/pane-gateway/internal/tab"
	"github.com/timvw/pane-gateway/internal/terminal"
)

// Case is the kind of change a layout represents for a tab.
type Case int

const (
	CasePreserve Case = iota
	CaseRemove
	CaseAdd
	CaseFull
)

func (c Case) String() string {
	switch c {
	case CasePreserve:
		return "preserve"
	case CaseRemove:
		return "remove"
	case CaseAdd:
		return "add"
	case CaseFull:
		return "full"
	default:
		return fmt.Sprintf("case(%d)", int(c))
	}
}

// Diff is the comparison of a reported pane set with a mapped one. Slices
// follow layout order for reported ids and ascending order for mapped ones.
type Diff struct {
	Case    Case
	Kept    []model.PaneID
	Added   []model.PaneID
	Removed []model.PaneID
}

// Classify compares the panes of a new layout with the panes mapped for the
// tab.
func Classify(reported, mapped []model.PaneID) Diff {
	var d Diff
	for _, id := range reported {
		if slices.Contains(mapped, id) {
			d.Kept = append(d.Kept, id)
		} else {
			d.Added = append(d.Added, id)
		}
	}
	for _, id := range mapped {
		if !slices.Contains(reported, id) {
			d.Removed = append(d.Removed, id)
		}
	}
	switch {
	case len(d.Kept) == 0:
		d.Case = CaseFull
	case len(d.Added) == 0 && len(d.Removed) == 0:
		d.Case = CasePreserve
	case len(d.Added) == 0:
		d.Case = CaseRemove
	case len(d.Removed) == 0:
		d.Case = CaseAdd
	default:
		d.Case = CaseFull
	}
	return d
}

// BoundsSource returns the current renderer geometry. It is asked once per
// Apply.
type BoundsSource interface {
	BoundsInfo() model.BoundsInfo
}

// BoundsFunc adapts a function to BoundsSource.
type BoundsFunc func() model.BoundsInfo

func (f BoundsFunc) BoundsInfo() model.BoundsInfo { return f() }

// Refresher asks tmux to repaint panes.
type Refresher interface {
	RefreshPanes(ctx context.Context, panes []model.PaneID)
}

// Result describes an applied layout.
type Result struct {
	Diff
	// Refreshed lists the panes a repaint was requested for.
	Refreshed []model.PaneID
	// Focus is the tmux pane focused in the tab after the change, if any.
	Focus *model.PaneID
}

// Reconciler applies layouts. Its fields are set once at construction.
type Reconciler struct {
	Sync      *idsync.Sync
	Bounds    BoundsSource
	Refresher Refresher
	// HidePadding lays panes out without window padding.
	HidePadding bool

	Logger  *slog.Logger
	Metrics *otel.Metrics
	Tracer  trace.Tracer
}

func (r *Reconciler) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func (r *Reconciler) tracer() trace.Tracer {
	if r.Tracer == nil {
		return tracenoop.NewTracerProvider().Tracer("")
	}
	return r.Tracer
}

// Apply reconciles t with tree, the parsed layout of window. It returns an
// error wrapping terminal.ErrContended when a terminal of the tab was busy;
// nothing changed in that case and the layout should be applied again later.
// Any other error leaves the pane tree and the identifier maps as they were.
func (r *Reconciler) Apply(ctx context.Context, t *tab.Tab, window model.WindowID, tree *layout.Node) (Result, error) {
	ctx, span := r.tracer().Start(ctx, "layout.reconcile", trace.WithAttributes(
		attribute.String("tmux.window", window.String()),
		attribute.Int64("tab.id", int64(t.ID)),
	))
	defer span.End()

	reported := tree.PaneIDs()
	diff := Classify(reported, r.Sync.MappedPanes(t.ID))
	span.SetAttributes(attribute.String("reconcile.case", diff.Case.String()))
	log := r.logger().With("window", window.String(), "tab", t.ID, "case", diff.Case.String())

	locks, err := terminal.TryLockAll(t.Panes.Terminals()...)
	if err != nil {
		r.Metrics.RecordLockMiss(ctx, "layout")
		log.Warn("layout deferred, terminal busy")
		span.SetStatus(codes.Error, "contended")
		return Result{Diff: diff}, fmt.Errorf("apply layout for %s: %w", window, err)
	}
	defer locks.Release()

	info := r.Bounds.BoundsInfo()
	t.Panes.SetBounds(info.ContentArea(r.HidePadding))

	res := Result{Diff: diff}
	switch diff.Case {
	case CasePreserve:
		err = t.Panes.UpdateGeometry(tree, r.Sync.TabPanes(t.ID))
	case CaseRemove:
		err = r.remove(t, tree, diff)
	case CaseAdd:
		res.Refreshed, err = r.add(t, tree, diff, locks)
	case CaseFull:
		res.Refreshed, err = r.full(t, tree, locks)
	}
	if err != nil {
		r.Metrics.RecordReconcile(ctx, "failed")
		log.Error("layout not applied", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{Diff: diff}, err
	}

	t.Panes.RecalculateBounds()
	if skipped := t.Panes.ResizeAll(info.CellWidth, info.CellHeight, locks); skipped > 0 {
		log.Warn("panes not resized", "skipped", skipped)
	}
	if focused, ok := t.Panes.Focused(); ok {
		if tmuxID, ok := r.Sync.TmuxFor(focused); ok {
			t.SetLastPane(tmuxID)
			res.Focus = &tmuxID
		}
	} else if len(reported) > 0 {
		t.SetLastPane(reported[0])
	}

	r.Metrics.RecordReconcile(ctx, diff.Case.String())
	log.Debug("layout applied", "panes", len(reported), "added", len(diff.Added), "removed", len(diff.Removed))

	if len(res.Refreshed) > 0 && r.Refresher != nil {
		r.Refresher.RefreshPanes(ctx, res.Refreshed)
	}
	return res, nil
}

var errStaleMapping = errors.New("mapped pane missing from tab")

func (r *Reconciler) remove(t *tab.Tab, tree *layout.Node, diff Diff) error {
	mapping := r.Sync.TabPanes(t.ID)
	kept := make(map[model.PaneID]model.NativePaneID, len(diff.Kept))
	for _, id := range diff.Kept {
		native := mapping[id]
		if _, ok := t.Panes.Pane(native); !ok {
			return fmt.Errorf("%w: %s", errStaleMapping, id)
		}
		kept[id] = native
	}

	for _, id := range diff.Removed {
		t.Panes.ClosePane(mapping[id])
		r.Sync.UnmapPane(id)
	}
	if err := t.Panes.UpdateGeometry(tree, kept); err != nil {
		// unreachable: every kept leaf was checked above
		return err
	}
	if _, ok := t.Panes.Focused(); !ok {
		t.Panes.FocusPane(kept[diff.Kept[0]])
	}
	return nil
}

func (r *Reconciler) add(t *tab.Tab, tree *layout.Node, diff Diff, locks *terminal.LockSet) ([]model.PaneID, error) {
	mapping, err := t.Panes.RebuildPreserving(r.Sync.TabPanes(t.ID), tree, diff.Added)
	if err != nil {
		return nil, err
	}
	r.Sync.ReplaceTabPanes(t.ID, mapping)
	r.lockNew(t, diff.Added, mapping, locks)
	return diff.Added, nil
}

func (r *Reconciler) full(t *tab.Tab, tree *layout.Node, locks *terminal.LockSet) ([]model.PaneID, error) {
	mapping, err := t.Panes.SetFromLayout(tree)
	if err != nil {
		return nil, err
	}
	r.Sync.ReplaceTabPanes(t.ID, mapping)
	all := tree.PaneIDs()
	r.lockNew(t, all, mapping, locks)
	return all, nil
}

// lockNew adds the terminals of freshly created panes to locks so they can
// be resized. Nothing else knows them yet, so the locks are free.
func (r *Reconciler) lockNew(t *tab.Tab, ids []model.PaneID, mapping map[model.PaneID]model.NativePaneID, locks *terminal.LockSet) {
	for _, id := range ids {
		if p, ok := t.Panes.Pane(mapping[id]); ok {
			locks.Add(p.Terminal)
		}
	}
}
