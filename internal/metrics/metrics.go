package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/breeze-rmm/memview/internal/procsnap"
)

var (
	SnapshotDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "memview_snapshot_duration_seconds",
			Help:    "Wall-clock time of a process snapshot",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	SnapshotRequested = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "memview_snapshot_requested_processes",
			Help: "Processes enumerated by the last snapshot",
		},
	)

	SnapshotCompleted = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "memview_snapshot_completed_processes",
			Help: "Rows returned by the last snapshot",
		},
	)

	SnapshotMemoryBytes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "memview_snapshot_memory_bytes",
			Help: "Sum of resident memory over the rows of the last snapshot",
		},
	)

	SnapshotTaskTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "memview_snapshot_task_timeouts_total",
			Help: "Process queries abandoned by the per-task timeout",
		},
	)

	SnapshotDeadlineHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "memview_snapshot_deadline_exceeded_total",
			Help: "Snapshots cut short by the global deadline",
		},
	)

	SnapshotEnumerationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "memview_snapshot_enumeration_failures_total",
			Help: "Snapshots that failed because the process table could not be read",
		},
	)

	RefreshDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "memview_refresh_dropped_total",
			Help: "Refresh requests dropped because another refresh was in flight",
		},
	)
)

// Register adds every memview collector to reg.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		SnapshotDuration,
		SnapshotRequested,
		SnapshotCompleted,
		SnapshotMemoryBytes,
		SnapshotTaskTimeouts,
		SnapshotDeadlineHits,
		SnapshotEnumerationFailures,
		RefreshDropped,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Handler serves the collectors of reg in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// ObserveSnapshot records one snapshot attempt.
func ObserveSnapshot(res *procsnap.Result, err error) {
	if err != nil {
		SnapshotEnumerationFailures.Inc()
		return
	}
	if res == nil {
		return
	}
	SnapshotDuration.Observe(res.Duration.Seconds())
	SnapshotRequested.Set(float64(res.Requested))
	SnapshotCompleted.Set(float64(res.Completed))
	SnapshotMemoryBytes.Set(float64(res.TotalMemoryBytes))
	SnapshotTaskTimeouts.Add(float64(res.TimedOut))
	if res.DeadlineExceeded {
		SnapshotDeadlineHits.Inc()
	}
}

// ObserveDroppedRefresh records a refresh suppressed by the single-flight guard.
func ObserveDroppedRefresh() {
	RefreshDropped.Inc()
}
