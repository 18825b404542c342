package telemetry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	Reconciliations     *prometheus.CounterVec
	Transitions         *prometheus.CounterVec
	QueueMessages       *prometheus.CounterVec
	SnapshotsTaken      prometheus.Counter
	SubscriptionChanges *prometheus.CounterVec
	SweepDuration       prometheus.Histogram
	LiveStreamers       prometheus.Gauge
)

//Init registers all metrics with the default registry. Safe to call more than once.
func Init() {
	once.Do(func() {
		Reconciliations = promauto.NewCounterVec(prometheus.CounterOpts{Name: "betty_reconciliations_total", Help: "Reconciliations by result"}, []string{"result"})
		Transitions = promauto.NewCounterVec(prometheus.CounterOpts{Name: "betty_transitions_total", Help: "Live state transitions applied"}, []string{"transition"})
		QueueMessages = promauto.NewCounterVec(prometheus.CounterOpts{Name: "betty_queue_messages_total", Help: "Inbound queue messages by outcome"}, []string{"outcome"})
		SnapshotsTaken = promauto.NewCounter(prometheus.CounterOpts{Name: "betty_snapshots_taken_total", Help: "Snapshots recorded for live streamers"})
		SubscriptionChanges = promauto.NewCounterVec(prometheus.CounterOpts{Name: "betty_subscription_changes_total", Help: "Event subscriptions created or deleted"}, []string{"action"})
		SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "betty_sweep_duration_seconds", Help: "Snapshot sweep duration seconds", Buckets: prometheus.DefBuckets})
		LiveStreamers = promauto.NewGauge(prometheus.GaugeOpts{Name: "betty_live_streamers", Help: "Tracked streamers currently live"})
	})
}

//CountReconciliation records the outcome of one reconciliation.
func CountReconciliation(result string) {
	if Reconciliations != nil {
		Reconciliations.WithLabelValues(result).Inc()
	}
}

//CountTransition records an applied state transition.
func CountTransition(transition string) {
	if Transitions != nil {
		Transitions.WithLabelValues(transition).Inc()
	}
}

//CountQueueMessage records how an inbound message was settled.
func CountQueueMessage(outcome string) {
	if QueueMessages != nil {
		QueueMessages.WithLabelValues(outcome).Inc()
	}
}

//CountSnapshot records a snapshot being taken.
func CountSnapshot() {
	if SnapshotsTaken != nil {
		SnapshotsTaken.Inc()
	}
}

//CountSubscriptionChange records a subscription create or delete.
func CountSubscriptionChange(action string) {
	if SubscriptionChanges != nil {
		SubscriptionChanges.WithLabelValues(action).Inc()
	}
}

//SetLiveStreamers updates the live streamer gauge.
func SetLiveStreamers(n int) {
	if LiveStreamers != nil {
		LiveStreamers.Set(float64(n))
	}
}

//ObserveSweep records how long a sweep took.
func ObserveSweep(d time.Duration) {
	if SweepDuration != nil {
		SweepDuration.Observe(d.Seconds())
	}
}
