package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	sessionPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "session_service",
		Subsystem: "persistence",
		Name:      "last_session_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent session persisted to Postgres.",
	})
	sessionCompletedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "session_service",
		Subsystem: "persistence",
		Name:      "last_session_completed_timestamp_seconds",
		Help:      "Unix timestamp of the most recent session marked completed.",
	})
)

func init() {
	prometheus.MustRegister(sessionPersistGauge, sessionCompletedGauge)
}

// RecordSessionPersisted updates the persistence watermark gauge.
func RecordSessionPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	sessionPersistGauge.Set(float64(ts.Unix()))
}

// RecordSessionCompleted updates the completion watermark gauge.
func RecordSessionCompleted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	sessionCompletedGauge.Set(float64(ts.Unix()))
}
