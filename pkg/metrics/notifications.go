package metrics

import "github.com/prometheus/client_golang/prometheus"

// NotificationMetrics counts dispatcher outcomes: delivered, stored, dropped, failed.
type NotificationMetrics struct {
	events *prometheus.CounterVec
}

func NewNotificationMetrics(reg prometheus.Registerer) *NotificationMetrics {
	if reg == nil {
		return &NotificationMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Notification dispatch outcomes by type.",
	}, []string{"type", "outcome"})
	reg.MustRegister(events)
	return &NotificationMetrics{events: events}
}

func (n *NotificationMetrics) Inc(kind, outcome string) {
	if n == nil || n.events == nil {
		return
	}
	n.events.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
}
