package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ClipsScanned = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homewatch",
		Name:      "clips_scanned_total",
		Help:      "Total number of clips scanned",
	}, []string{"camera"})

	PersonsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homewatch",
		Name:      "persons_detected_total",
		Help:      "Total number of person detections across sampled frames",
	}, []string{"camera"})

	IdentityResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homewatch",
		Name:      "identity_resolutions_total",
		Help:      "Identity arbiter outcomes by method",
	}, []string{"method"})

	TrackReuse = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "homewatch",
		Name:      "track_reuse_total",
		Help:      "Detections that reused a live track identity without re-embedding",
	})

	BodyCacheWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homewatch",
		Name:      "body_cache_writes_total",
		Help:      "Body cache writes by source path (face or body)",
	}, []string{"source"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "homewatch",
		Name:      "pipeline_stage_duration_seconds",
		Help:      "Duration of pipeline stages",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"stage"})

	EventsPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "homewatch",
		Name:      "events_persisted_total",
		Help:      "Total number of fused events committed to the store",
	})

	LLMRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "homewatch",
		Name:      "llm_requests_total",
		Help:      "LLM gateway requests by outcome",
	}, []string{"outcome"})

	LLMDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "homewatch",
		Name:      "llm_request_duration_seconds",
		Help:      "LLM request duration including retries",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "homewatch",
		Name:      "queue_depth",
		Help:      "Number of pending batch jobs in queue",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "homewatch",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "homewatch",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
