package sync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// operationsTotal counts engine operations by name and result.
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fitlife_sync_operations_total",
		Help: "Total plan sync operations by operation and result",
	}, []string{"op", "result"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fitlife_sync_operation_duration_seconds",
		Help:    "Plan sync operation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
	}, []string{"op"})

	// appendConflicts counts version conflicts hit by set writes.
	appendConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fitlife_sync_append_conflicts_total",
		Help: "Version conflicts observed while rewriting an exercise's sets",
	})

	partialCascades = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fitlife_sync_partial_cascades_total",
		Help: "Cascades that stopped after committing some but not all writes",
	}, []string{"op"})
)
