package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Processing outcomes recorded by ProcessingOutcomes.
const (
	OutcomeProcessed        = "processed"
	OutcomeAlreadyProcessed = "already_processed"
	OutcomeInProgress       = "in_progress"
	OutcomeNotFound         = "not_found"
	OutcomeCopyFailed       = "copy_failed"
	OutcomeError            = "error"
	OutcomeUnauthenticated  = "unauthenticated"
	OutcomeInvalidPayload   = "invalid_payload"
)

var (
	ProcessingOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "videohub_processing_outcomes_total",
		Help: "Processing notifications by source and outcome",
	}, []string{"source", "outcome"})

	CopyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "videohub_storage_copy_duration_seconds",
		Help:    "Time taken to copy the video and audio objects of one upload",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	VideoUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "videohub_video_updates_total",
		Help: "Video metadata update requests by HTTP status",
	}, []string{"status"})

	CompletionStreams = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "videohub_description_completions_total",
		Help: "Description completion streams by result",
	}, []string{"result"})
)
