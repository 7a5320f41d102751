package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EnrichmentAttempts counts enrichment attempts by outcome: an error
	// code, or "ok".
	EnrichmentAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rcfeed_enrichment_attempts_total",
		Help: "Enrichment attempts by outcome",
	}, []string{"outcome"})

	EnrichmentDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rcfeed_enrichment_duration_seconds",
		Help:    "Time spent in a single enrichment attempt",
		Buckets: prometheus.DefBuckets,
	})

	// MessagesDispatched counts stored messages by type and whether they
	// carried an error.
	MessagesDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rcfeed_messages_dispatched_total",
		Help: "Messages stored by type and error state",
	}, []string{"type", "errored"})

	MessagesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rcfeed_messages_rejected_total",
		Help: "Messages rejected because the dispatcher was at capacity",
	})

	StoreErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rcfeed_store_errors_total",
		Help: "Failures writing messages to the database",
	})
)
