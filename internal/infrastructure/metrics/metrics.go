package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ThoughtsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "thought_engine",
			Subsystem: "processing",
			Name:      "thoughts_total",
			Help:      "Total thoughts processed by terminal status",
		},
		[]string{"status", "mode"},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "thought_engine",
			Subsystem: "semantic_cache",
			Name:      "lookups_total",
			Help:      "Semantic cache lookups by result",
		},
		[]string{"result"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "thought_engine",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	PersonaRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "thought_engine",
			Subsystem: "pipeline",
			Name:      "persona_runs_total",
			Help:      "Persona pipeline executions by outcome",
		},
		[]string{"status"},
	)

	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "thought_engine",
			Subsystem: "processing",
			Name:      "batch_duration_seconds",
			Help:      "Batch run duration in seconds",
			Buckets:   []float64{1, 5, 15, 60, 300, 900},
		},
	)

	EmbeddingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "thought_engine",
			Subsystem: "semantic_cache",
			Name:      "embedding_duration_seconds",
			Help:      "Embedding computation duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10},
		},
	)

	EventPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "thought_engine",
			Subsystem: "events",
			Name:      "publish_failures_total",
			Help:      "Progress event publishes that failed (best effort, non-fatal)",
		},
	)

	DeadLetteredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "thought_engine",
			Subsystem: "messaging",
			Name:      "dead_lettered_total",
			Help:      "Messages routed to the dead letter stream",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
