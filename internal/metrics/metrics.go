// Package metrics holds the Prometheus collectors shared by the API, the
// consumer and the sessionizer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ga4sessions"

const (
	LabelStep    = "step"
	LabelChannel = "channel"
	LabelStatus  = "status"
	LabelSink    = "sink"
)

// Ingestion metrics
var (
	// EventsPublished counts raw events accepted by the API, by outcome
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "events_published_total",
		Help:      "Total number of raw events published to the queue",
	}, []string{LabelStatus})

	// EventsInserted counts raw events written by the consumer
	EventsInserted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "events_inserted_total",
		Help:      "Total number of raw events inserted into storage",
	})

	// MessagesDropped counts queue messages deleted without being stored
	MessagesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "messages_dropped_total",
		Help:      "Total number of malformed queue messages deleted by the consumer",
	})
)

// Session pipeline metrics
var (
	// StepDuration observes how long each processing step takes
	StepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "step_duration_seconds",
		Help:      "Processing step latency",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{LabelStep})

	// StepRows reports the output row count of the last execution of each step
	StepRows = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "step_output_rows",
		Help:      "Rows produced by the last execution of a processing step",
	}, []string{LabelStep})

	// SessionsBuilt counts sessions emitted per channel
	SessionsBuilt = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sessions",
		Name:      "built_total",
		Help:      "Total number of sessions built, by channel",
	}, []string{LabelChannel})

	// LookbackReattributed counts Direct sessions re-attributed to an earlier touch
	LookbackReattributed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sessions",
		Name:      "lookback_reattributed_total",
		Help:      "Total number of direct sessions re-attributed to the last non-direct session",
	})

	// SessionsWritten counts sessions materialized per sink
	SessionsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sessions",
		Name:      "written_total",
		Help:      "Total number of sessions written to a sink",
	}, []string{LabelSink})
)
