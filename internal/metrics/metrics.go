// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "reconcilarr"

var (
	// Searches counts search backend calls by backend and outcome
	Searches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "searches_total",
		Help:      "Search backend calls by backend and outcome.",
	}, []string{"backend", "outcome"})

	// Grabs counts download submissions by outcome
	Grabs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "grabs_total",
		Help:      "Download submissions by outcome.",
	}, []string{"outcome"})

	// EntityChecks counts monitor checks by media kind and result
	EntityChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "entity_checks_total",
		Help:      "Monitored entity checks by kind and result.",
	}, []string{"kind", "result"})

	// WatcherFiles counts watcher file actions
	WatcherFiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "watcher_files_total",
		Help:      "Watcher file actions (moved, pending, skipped, approved, rejected, error).",
	}, []string{"action"})

	// Renames counts rename attempts by outcome
	Renames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "renames_total",
		Help:      "Rename attempts by outcome.",
	}, []string{"outcome"})

	// JobDuration observes scheduled job durations
	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "job_duration_seconds",
		Help:      "Duration of scheduled jobs.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"job"})
)

// ObserveJob records the duration of a job that started at start
func ObserveJob(job string, start time.Time) {
	JobDuration.WithLabelValues(job).Observe(time.Since(start).Seconds())
}
