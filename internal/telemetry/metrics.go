// Package telemetry exposes Prometheus metrics for the publication pipeline.
// Metrics register on the default registry and are served by the /metrics
// endpoint.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal counts finished pipeline runs by terminal status.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inkpress",
		Name:      "runs_total",
		Help:      "Finished pipeline runs by status.",
	}, []string{"status"})

	// StepFailuresTotal counts step failures by step name, degradable and
	// critical alike.
	StepFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inkpress",
		Name:      "step_failures_total",
		Help:      "Pipeline step failures by step.",
	}, []string{"step"})

	// RunDuration observes wall-clock duration of a full pipeline run.
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "inkpress",
		Name:      "run_duration_seconds",
		Help:      "Duration of pipeline runs.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})

	// PublishedBlocks observes how many blocks each published essay produced.
	PublishedBlocks = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "inkpress",
		Name:      "published_blocks",
		Help:      "Block count per published essay.",
		Buckets:   prometheus.LinearBuckets(50, 50, 8),
	})
)
