package sim

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes engine counters to a prometheus registry.
//
// Metrics are optional: an engine constructed without WithMetrics
// simply skips the bumps. All updates happen inside the engine's
// exclusive section, so plain counters suffice.
type Metrics struct {
	EventsExecuted prometheus.Counter
	EventsFailed   prometheus.Counter
	EventsSkipped  prometheus.Counter
	UndoOps        prometheus.Counter
	RedoOps        prometheus.Counter
	QueueDepth     prometheus.Gauge
}

// NewMetrics creates and registers the engine metric set.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "holodeck_events_executed_total",
			Help: "Events that applied successfully.",
		}),
		EventsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "holodeck_events_failed_total",
			Help: "Events whose execution failed.",
		}),
		EventsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "holodeck_events_skipped_total",
			Help: "Events skipped by time jumps without executing.",
		}),
		UndoOps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "holodeck_undo_total",
			Help: "Successful single-event reversals.",
		}),
		RedoOps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "holodeck_redo_total",
			Help: "Successful single-event re-executions.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "holodeck_pending_events",
			Help: "Events currently pending in the queue.",
		}),
	}
	reg.MustRegister(
		m.EventsExecuted,
		m.EventsFailed,
		m.EventsSkipped,
		m.UndoOps,
		m.RedoOps,
		m.QueueDepth,
	)
	return m
}
