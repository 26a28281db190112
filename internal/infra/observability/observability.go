// Package observability holds the Prometheus metrics for the offline
// queue: submit outcomes, sync passes, per-verdict results, and the
// current queue depth by status.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tillsync/tillsync/internal/domain"
)

// ─── Submitter Metrics ──────────────────────────────────────────────────────

// SubmitOutcomes counts immediate submission outcomes.
// outcome ∈ {completed, queued, rejected}.
var SubmitOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tillsync",
	Subsystem: "submitter",
	Name:      "outcomes_total",
	Help:      "Total immediate submission outcomes.",
}, []string{"outcome"})

// ─── Sync Engine Metrics ────────────────────────────────────────────────────

// SyncPasses counts completed sync passes by trigger.
// trigger ∈ {edge, timer, manual}.
var SyncPasses = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tillsync",
	Subsystem: "sync",
	Name:      "passes_total",
	Help:      "Total sync passes by trigger.",
}, []string{"trigger"})

// SyncSkipped counts passes skipped because one was already in flight.
var SyncSkipped = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "tillsync",
	Subsystem: "sync",
	Name:      "passes_skipped_total",
	Help:      "Total sync passes skipped because a pass was already running.",
})

// SyncVerdicts counts per-transaction verdicts applied from sync passes.
// verdict ∈ {synced, failed, unanswered}.
var SyncVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "tillsync",
	Subsystem: "sync",
	Name:      "verdicts_total",
	Help:      "Total per-transaction sync verdicts applied.",
}, []string{"verdict"})

// SyncBatchDuration tracks batch sync round-trip time.
var SyncBatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "tillsync",
	Subsystem: "sync",
	Name:      "batch_duration_seconds",
	Help:      "Batch sync request duration in seconds.",
	Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
})

// ─── Queue Metrics ──────────────────────────────────────────────────────────

// QueueDepth tracks the number of stored transactions per status.
var QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "tillsync",
	Subsystem: "queue",
	Name:      "depth",
	Help:      "Number of locally stored transactions by status.",
}, []string{"status"})

// ConnectivityOnline tracks the monitor's current state (1 online, 0 offline).
var ConnectivityOnline = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "tillsync",
	Subsystem: "connectivity",
	Name:      "online",
	Help:      "Whether the connectivity monitor currently reports online.",
})

// ObserveQueue pushes a store summary into the depth gauges.
func ObserveQueue(sum domain.QueueSummary) {
	QueueDepth.WithLabelValues(string(domain.StatusPending)).Set(float64(sum.Pending))
	QueueDepth.WithLabelValues(string(domain.StatusSyncing)).Set(float64(sum.Syncing))
	QueueDepth.WithLabelValues(string(domain.StatusSynced)).Set(float64(sum.Synced))
	QueueDepth.WithLabelValues(string(domain.StatusFailed)).Set(float64(sum.Failed))
}
