package session

import "github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/telemetry"

// RecordMetrics is a Manager subscriber that counts lifecycle events.
func RecordMetrics(e Event) {
	telemetry.SessionEventsTotal.WithLabelValues(string(e.Type)).Inc()
	if e.Type == EventDestroyed && e.Reason == ReasonExpired {
		telemetry.ForcedLogoutsTotal.Inc()
	}
}
