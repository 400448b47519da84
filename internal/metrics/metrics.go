// Package metrics exposes the gateway's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Submission metrics
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shield_gateway_submissions_total",
			Help: "Total number of analysis submissions received",
		},
		[]string{"modality", "status"},
	)

	ActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shield_gateway_actions_total",
			Help: "Total number of analysis records by trust decision",
		},
		[]string{"modality", "action"},
	)

	DetectionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shield_gateway_detection_duration_seconds",
			Help:    "Duration of detection backend calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"modality"},
	)

	// Generation metrics
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shield_gateway_generations_total",
			Help: "Total number of generation invocations by terminal state",
		},
		[]string{"backend", "result"},
	)

	// History polling metrics
	PollFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shield_gateway_history_poll_failures_total",
			Help: "Total number of failed history polls",
		},
	)

	HistoryRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shield_gateway_history_records",
			Help: "Number of records in the current history window",
		},
	)
)
