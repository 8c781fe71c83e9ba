package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "pane-gateway"

// Metrics holds the gateway's metric instruments.
// All counters are cumulative (monotonic) and safe for concurrent use.
type Metrics struct {
	// Notifications after conversion, partitioned by kind
	Notifications metric.Int64Counter

	// Layout reconciliation counters
	Reconciles          metric.Int64Counter
	LayoutParseFailures metric.Int64Counter

	// Try-lock misses, partitioned by site (output, layout, disable, flush)
	LockMisses metric.Int64Counter

	// Tab provisioning
	TabsProvisioned metric.Int64Counter
	TabsRefused     metric.Int64Counter
}

// NewMetrics creates all metric instruments. Returns no-op instruments
// when no MeterProvider is registered (safe to call unconditionally).
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Notifications, err = meter.Int64Counter("gateway.notifications",
		metric.WithDescription("Control-mode notifications processed, by kind"))
	if err != nil {
		return nil, err
	}

	// --- Layout ---

	m.Reconciles, err = meter.Int64Counter("gateway.reconciles",
		metric.WithDescription("Layout reconciliations, by case (preserve, remove, add, full, failed)"))
	if err != nil {
		return nil, err
	}

	m.LayoutParseFailures, err = meter.Int64Counter("gateway.layout_parse_failures",
		metric.WithDescription("Layout strings discarded because they did not parse"))
	if err != nil {
		return nil, err
	}

	m.LockMisses, err = meter.Int64Counter("gateway.lock_misses",
		metric.WithDescription("Operations skipped because a terminal lock was busy, by site"))
	if err != nil {
		return nil, err
	}

	// --- Tabs ---

	m.TabsProvisioned, err = meter.Int64Counter("gateway.tabs_provisioned",
		metric.WithDescription("Tabs created for tmux windows"))
	if err != nil {
		return nil, err
	}

	m.TabsRefused, err = meter.Int64Counter("gateway.tabs_refused",
		metric.WithDescription("Tab creations refused at the tab ceiling"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordNotification counts one notification of the given kind.
func (m *Metrics) RecordNotification(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.Notifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("notification.kind", kind),
	))
}

// RecordReconcile counts one layout application with the case it took.
func (m *Metrics) RecordReconcile(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.Reconciles.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reconcile.case", kind),
	))
}

// RecordParseFailure counts a discarded layout string.
func (m *Metrics) RecordParseFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.LayoutParseFailures.Add(ctx, 1)
}

// RecordLockMiss counts an operation skipped on lock contention.
func (m *Metrics) RecordLockMiss(ctx context.Context, site string) {
	if m == nil {
		return
	}
	m.LockMisses.Add(ctx, 1, metric.WithAttributes(
		attribute.String("lock.site", site),
	))
}

// RecordTabProvisioned counts a tab created for a window.
func (m *Metrics) RecordTabProvisioned(ctx context.Context) {
	if m == nil {
		return
	}
	m.TabsProvisioned.Add(ctx, 1)
}

// RecordTabRefused counts a tab refused at the ceiling.
func (m *Metrics) RecordTabRefused(ctx context.Context) {
	if m == nil {
		return
	}
	m.TabsRefused.Add(ctx, 1)
}
