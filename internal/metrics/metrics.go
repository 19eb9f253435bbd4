// Package metrics provides Prometheus metrics for the import pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "mxpack"

// Pipeline metrics track per-sticker outcomes.
var (
	// StickersProcessed counts stickers by terminal outcome
	// (published, skipped, failed).
	StickersProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stickers_processed_total",
		Help:      "Total number of stickers processed by outcome",
	}, []string{"outcome"})

	// StickersConverted counts successful conversions by detected kind.
	StickersConverted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stickers_converted_total",
		Help:      "Total number of stickers converted by source kind",
	}, []string{"kind"})

	// ConvertDuration is a histogram of conversion duration in seconds.
	ConvertDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "convert_duration_seconds",
		Help:      "Duration of sticker conversion in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
	})
)

// Publisher metrics track uploads and deduplication.
var (
	// UploadsDeduplicated counts publishes satisfied without an upload.
	UploadsDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploads_deduplicated_total",
		Help:      "Total number of publishes satisfied by the dedup cache or store",
	})

	// UploadRetries counts transient upload failures that were retried.
	UploadRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upload_retries_total",
		Help:      "Total number of upload retry attempts",
	})

	// PublishDuration is a histogram of upload attempt duration in seconds.
	PublishDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "publish_duration_seconds",
		Help:      "Duration of upload attempts in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
	})
)
