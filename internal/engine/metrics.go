package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	activeSessionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "session_service",
		Subsystem: "engine",
		Name:      "active_sessions",
		Help:      "Number of sessions currently live in the engine.",
	})

	sessionsCompletedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "session_service",
		Subsystem: "engine",
		Name:      "sessions_completed_total",
		Help:      "Number of sessions that reached the terminal state.",
	})
)

func init() {
	prometheus.MustRegister(activeSessionsGauge, sessionsCompletedCounter)
}
