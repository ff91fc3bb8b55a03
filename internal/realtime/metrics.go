package realtime

import "github.com/prometheus/client_golang/prometheus"

var (
	// wsUsers gauges users with at least one live connection.
	wsUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "chat",
		Subsystem: "ws",
		Name:      "connected_users",
		Help:      "Number of users with at least one live websocket connection.",
	})

	// wsConns gauges live websocket connections.
	wsConns = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "chat",
		Subsystem: "ws",
		Name:      "connections",
		Help:      "Number of live websocket connections.",
	})

	// wsEvents counts inbound events by name and outcome (ok, error, rejected).
	wsEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chat",
			Subsystem: "ws",
			Name:      "events_total",
			Help:      "Inbound websocket events by event and outcome.",
		},
		[]string{"event", "outcome"},
	)

	// wsDropped counts outbound frames dropped because a send buffer was full.
	wsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chat",
		Subsystem: "ws",
		Name:      "frames_dropped_total",
		Help:      "Outbound websocket frames dropped for slow consumers.",
	})
)

func init() {
	prometheus.MustRegister(wsUsers, wsConns, wsEvents, wsDropped)
}
