// Package metrics — счётчики Prometheus, отдаются на /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pawsafe_messages_sent_total",
			Help: "Chat messages persisted, by chat kind.",
		},
		[]string{"kind"},
	)
	SendsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pawsafe_sends_rejected_total",
			Help: "Chat sends rejected before any write, by reason.",
		},
		[]string{"reason"},
	)
	NotificationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pawsafe_notifications_created_total",
			Help: "Notification records written, by type.",
		},
		[]string{"type"},
	)
	PushFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pawsafe_push_failures_total",
		Help: "Push deliveries that failed and were swallowed.",
	})
	ProximityMatches = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pawsafe_proximity_matches_total",
		Help: "Lost-report owners notified about a nearby found pet.",
	})
	WSConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pawsafe_ws_connections",
		Help: "Open websocket connections.",
	})
)

func init() {
	prometheus.MustRegister(MessagesSent)
	prometheus.MustRegister(SendsRejected)
	prometheus.MustRegister(NotificationsCreated)
	prometheus.MustRegister(PushFailures)
	prometheus.MustRegister(ProximityMatches)
	prometheus.MustRegister(WSConnections)
}

// Handler — обработчик /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
