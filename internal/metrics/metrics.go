// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ItemsProcessedTotal counts items a worker finished Process on.
	ItemsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capturescope_items_processed_total",
			Help: "Total number of items processed by a task worker",
		},
		[]string{"task", "worker"},
	)

	// ItemsDroppedTotal counts items that never reached a worker.
	ItemsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capturescope_items_dropped_total",
			Help: "Total number of items dropped before processing",
		},
		[]string{"task", "reason"},
	)

	// IntakeQueueDepth tracks the combined depth of a task's worker intake
	// channels, sampled periodically.
	IntakeQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "capturescope_intake_queue_depth",
			Help: "Combined number of items queued across a task's worker intake channels",
		},
		[]string{"task"},
	)

	// TaskStatus tracks current task status.
	TaskStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "capturescope_task_status",
			Help: "Current status of tasks, one gauge per (task, status) pair, 1 if active",
		},
		[]string{"task", "status"},
	)

	// ReporterBatchSize tracks ReporterWrapper batch size distribution.
	ReporterBatchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "capturescope_reporter_batch_size",
			Help:    "Number of results sent per reporter batch",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1, 2, 4, ..., 2048
		},
		[]string{"task", "reporter"},
	)

	// ReporterErrorsTotal counts reporter errors by name and error type.
	ReporterErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capturescope_reporter_errors_total",
			Help: "Total number of reporter errors",
		},
		[]string{"task", "reporter", "error_type"},
	)

	// EventBusQueuedTotal is a gauge for the combined queued-event depth
	// across the event bus's partitions. Nothing in the module sets it.
	EventBusQueuedTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "capturescope_eventbus_queued_total",
			Help: "Combined number of events queued across all event bus partitions",
		},
	)
)

// Numeric task status codes. Task.setState does not use them: it sets the
// TaskStatus gauge to 1 for the new state's label and 0 for the old one.
const (
	TaskStatusStopped = 0
	TaskStatusRunning = 1
	TaskStatusError   = 2
	TaskStatusPaused  = 3
)
