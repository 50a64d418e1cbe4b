package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the relay server.
type Metrics struct {
	// Session metrics
	ActiveSessions  prometheus.Gauge
	ActivePlayers   prometheus.Gauge
	SessionsCreated prometheus.Counter

	// Connection metrics
	ConnectionsTotal prometheus.Counter
	DisconnectsTotal prometheus.Counter

	// Frame metrics
	FramesReceived *prometheus.CounterVec // by frame type
	RateLimited    *prometheus.CounterVec // by frame type
	Evictions      *prometheus.CounterVec // by reason ("afk", "ping_timeout")

	// Broadcast metrics
	BroadcastsTotal prometheus.Counter
	BroadcastFanout prometheus.Histogram
}

// NewMetrics creates and registers the metric set with reg.
//
// Precondition: reg must be non-nil. Use prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_active_sessions",
			Help: "Current number of live game sessions",
		}),
		ActivePlayers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_active_players",
			Help: "Current number of connected players",
		}),
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_sessions_created_total",
			Help: "Total number of sessions created",
		}),
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_connections_total",
			Help: "Total number of accepted WebSocket connections",
		}),
		DisconnectsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_disconnects_total",
			Help: "Total number of closed WebSocket connections",
		}),
		FramesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_frames_received_total",
			Help: "Total inbound frames by type",
		}, []string{"type"}),
		RateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_frames_rate_limited_total",
			Help: "Total inbound frames rejected by rate limiting, by type",
		}, []string{"type"}),
		Evictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_evictions_total",
			Help: "Total forced disconnects by reason",
		}, []string{"reason"}),
		BroadcastsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_broadcasts_total",
			Help: "Total broadcast messages (unique messages, not deliveries)",
		}),
		BroadcastFanout: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "relay_broadcast_fanout",
			Help:    "Number of players that received each broadcast",
			Buckets: []float64{1, 2, 5, 10, 15, 20},
		}),
	}
}
