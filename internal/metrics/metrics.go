package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "livequote"

// Drop reasons for FramesDropped.
const (
	ReasonMalformed     = "malformed"
	ReasonMissingSymbol = "missing_symbol"
	ReasonStale         = "stale_generation"
)

var (
	// Stream metrics
	FramesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "frames_received_total",
			Help:      "Total text frames received on the live channel",
		},
		[]string{"channel"},
	)

	FramesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "frames_dropped_total",
			Help:      "Frames discarded before reaching the quote store",
		},
		[]string{"channel", "reason"},
	)

	HeartbeatsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "heartbeats_sent_total",
			Help:      "Heartbeat frames written",
		},
		[]string{"channel"},
	)

	ReconnectsScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "reconnects_scheduled_total",
			Help:      "Reconnect attempts scheduled after a close",
		},
		[]string{"channel"},
	)

	ConnectionState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "connection_state",
			Help:      "Connection state (0=disconnected 1=connecting 2=connected 3=closing)",
		},
		[]string{"channel"},
	)

	// Reconciliation metrics
	FlashesTriggered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quotes",
			Name:      "flashes_triggered_total",
			Help:      "Price moves that produced a flash",
		},
		[]string{"channel", "direction"},
	)

	QuotesTracked = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "quotes",
			Name:      "symbols_tracked",
			Help:      "Symbols currently held in the quote store",
		},
		[]string{"channel"},
	)

	// Snapshot metrics
	SnapshotErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "errors_total",
			Help:      "Failed snapshot loads",
		},
		[]string{"channel"},
	)

	SnapshotCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "cache_hits_total",
			Help:      "Snapshot requests served from cache",
		},
		[]string{"backend"},
	)

	// Recorder metrics
	RecorderWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recorder",
			Name:      "rows_written_total",
			Help:      "Quote rows inserted",
		},
	)

	RecorderDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recorder",
			Name:      "rows_dropped_total",
			Help:      "Quote rows dropped because the buffer was full",
		},
	)

	RecorderFlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "recorder",
			Name:      "flush_duration_seconds",
			Help:      "Time spent inserting one batch",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
