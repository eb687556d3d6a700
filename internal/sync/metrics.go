package sync

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	importedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vo2sync",
		Subsystem: "import",
		Name:      "workouts_imported_total",
		Help:      "Number of workouts saved, by source.",
	}, []string{"source"})

	skippedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vo2sync",
		Subsystem: "import",
		Name:      "workouts_skipped_total",
		Help:      "Number of imports skipped because the workout was already stored.",
	}, []string{"source"})

	failedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vo2sync",
		Subsystem: "import",
		Name:      "failures_total",
		Help:      "Number of failed imports, by source and stage.",
	}, []string{"source", "stage"})

	lastSyncGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "vo2sync",
		Subsystem: "sync",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix timestamp of the most recent completed remote sync.",
	})
)

func init() {
	prometheus.MustRegister(importedCounter, skippedCounter, failedCounter, lastSyncGauge)
}

func recordImported(source string) {
	importedCounter.WithLabelValues(source).Inc()
}

func recordSkipped(source string) {
	skippedCounter.WithLabelValues(source).Inc()
}

func recordFailure(source, stage string) {
	failedCounter.WithLabelValues(source, stage).Inc()
}

func recordSync(ts time.Time) {
	lastSyncGauge.Set(float64(ts.Unix()))
}
