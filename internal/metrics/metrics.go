package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tripstore_frames_decoded_total",
		Help: "Total number of complete frames produced by the stream decoder.",
	})

	FramesMalformed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tripstore_frames_malformed_total",
		Help: "Total number of frames dropped for parse or schema violations.",
	})

	StreamsTruncated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tripstore_streams_truncated_total",
		Help: "Total number of streams that ended with a partial frame buffered.",
	})

	EventsPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tripstore_events_persisted_total",
		Help: "Total number of events appended to the store, labelled by kind.",
	}, []string{"kind"})

	PersistenceErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tripstore_persistence_errors_total",
		Help: "Total number of failed store appends.",
	})

	WriteQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tripstore_write_queue_depth",
		Help: "Events currently waiting on the async writer queue.",
	})

	StreamConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tripstore_stream_connected",
		Help: "1 while the ingestion stream is connected, 0 otherwise.",
	})

	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tripstore_query_duration_ms",
		Help:    "Store query latency in milliseconds, labelled by query.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	}, []string{"query"})
)
