package telemetry

import "github.com/prometheus/client_golang/prometheus"

const camhiveNamespace string = "camhive"

var (
	promSessionsActive      prometheus.Gauge
	promBroadcastersLive    prometheus.Gauge
	promViewersJoined       prometheus.Gauge
	ServiceOperationCounter *prometheus.CounterVec
)

func init() {
	promSessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: camhiveNamespace,
		Subsystem: "session",
		Name:      "active_total",
	})

	promBroadcastersLive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: camhiveNamespace,
		Subsystem: "presence",
		Name:      "live_total",
	})

	promViewersJoined = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: camhiveNamespace,
		Subsystem: "session",
		Name:      "viewers_total",
	})

	ServiceOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: camhiveNamespace,
			Subsystem: "node",
			Name:      "service_operation",
		},
		[]string{"type", "status", "error_type"},
	)

	prometheus.MustRegister(promSessionsActive)
	prometheus.MustRegister(promBroadcastersLive)
	prometheus.MustRegister(promViewersJoined)
	prometheus.MustRegister(ServiceOperationCounter)
}

func SessionStarted() {
	promSessionsActive.Inc()
}

func SessionStopped() {
	promSessionsActive.Dec()
}

func BroadcasterLive() {
	promBroadcastersLive.Inc()
}

func BroadcasterOffline() {
	promBroadcastersLive.Dec()
}

func ViewerJoined() {
	promViewersJoined.Inc()
}

func ViewerLeft() {
	promViewersJoined.Dec()
}
