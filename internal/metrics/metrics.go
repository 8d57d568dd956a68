// Package metrics exposes Prometheus instrumentation for the voice relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the relay updates.
type Metrics struct {
	ActiveSessions  prometheus.Gauge
	ChunksReceived  prometheus.Counter
	ChunksForwarded prometheus.Counter
	ChunksRelayed   prometheus.Counter
	TurnsCompleted  prometheus.Counter
	FramesRejected  prometheus.Counter
	UpstreamErrors  prometheus.Counter
}

// New registers all collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voice_active_sessions",
			Help: "Number of client voice sessions currently connected.",
		}),
		ChunksReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_chunks_received_total",
			Help: "Audio chunks accepted from clients.",
		}),
		ChunksForwarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_chunks_forwarded_total",
			Help: "Audio chunks forwarded to the upstream voice service.",
		}),
		ChunksRelayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_chunks_relayed_total",
			Help: "Response audio chunks relayed back to clients.",
		}),
		TurnsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_turns_completed_total",
			Help: "Conversation turns relayed end to end.",
		}),
		FramesRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_frames_rejected_total",
			Help: "Client audio frames dropped because they failed to decode.",
		}),
		UpstreamErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_upstream_errors_total",
			Help: "Turns abandoned because the upstream session failed.",
		}),
	}
}
