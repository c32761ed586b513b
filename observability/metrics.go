package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatrelay_connections_active",
			Help: "Currently registered websocket connections",
		},
	)

	ConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatrelay_connections_total",
			Help: "Total websocket connections admitted",
		},
	)

	MessagesPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatrelay_messages_persisted_total",
			Help: "Total message records created",
		},
	)

	FramesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_frames_dropped_total",
			Help: "Inbound frames dropped before persistence",
		},
		[]string{"reason"}, // "malformed", "anonymous", "invalid", "blob", "record"
	)

	PresenceBroadcasts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatrelay_presence_broadcasts_total",
			Help: "Total full presence snapshots pushed",
		},
	)

	LivenessReaps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatrelay_liveness_reaps_total",
			Help: "Connections terminated by the death timer",
		},
	)
)
