// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Transitions counts relationship operations by op and result code ("ok" on success).
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "companion",
		Subsystem: "relationship",
		Name:      "transitions_total",
		Help:      "Relationship operations by op and result.",
	}, []string{"op", "result"})

	// ApplyConflicts counts store version conflicts that forced a retry.
	ApplyConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "companion",
		Subsystem: "relationship",
		Name:      "apply_conflicts_total",
		Help:      "Compare-and-apply attempts rejected because the store version moved.",
	}, []string{"op"})

	// ApplyAttempts observes how many apply attempts each mutation needed.
	ApplyAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "companion",
		Subsystem: "relationship",
		Name:      "apply_attempts",
		Help:      "Apply attempts per relationship mutation.",
		Buckets:   []float64{1, 2, 3, 4, 5, 8},
	})

	// AuditPublishFailures counts events that could not be queued for the historian.
	AuditPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "companion",
		Subsystem: "audit",
		Name:      "publish_failures_total",
		Help:      "Relationship events dropped because the audit queue was unavailable.",
	})
)
