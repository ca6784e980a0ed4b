package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	summarizeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paperlens_summarize_requests_total",
		Help: "Summarize requests by complexity tier and outcome.",
	}, []string{"tier", "outcome"})

	chatRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paperlens_chat_requests_total",
		Help: "Chat requests by outcome.",
	}, []string{"outcome"})

	documentLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paperlens_document_lookups_total",
		Help: "Document cache lookups by result.",
	}, []string{"result"})

	degradedSummaries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paperlens_degraded_summaries_total",
		Help: "Summaries produced with one or more unavailable sections.",
	})

	extractionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "paperlens_extraction_duration_seconds",
		Help:    "Time spent fetching and extracting a document.",
		Buckets: prometheus.DefBuckets,
	})
)

const (
	outcomeOK         = "ok"
	outcomeExtractErr = "extraction_failed"
	outcomeModelErr   = "model_unavailable"
	outcomeBadRequest = "invalid_request"
	outcomeNoDocument = "no_document"
	outcomeError      = "error"
)
