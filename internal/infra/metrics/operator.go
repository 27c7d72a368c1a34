package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(notificationsTotal, adminCommandsTotal, accessEventsTotal) }

var (
	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "operator_notifications_total",
			Help: "Operator notifications by result.",
		},
		[]string{"result"}, // sent, failed, dropped
	)

	adminCommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_commands_total",
			Help: "Operator bot commands by command and authorization result.",
		},
		[]string{"command", "result"},
	)

	accessEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_events_total",
			Help: "Access grant/revoke events by kind and delivery result.",
		},
		[]string{"kind", "result"}, // queued, delivered (per subscriber), dropped
	)
)

func IncNotification(result string) {
	notificationsTotal.WithLabelValues(norm(result)).Inc()
}

func IncAdminCommand(command, result string) {
	adminCommandsTotal.WithLabelValues(norm(command), norm(result)).Inc()
}

func IncAccessEvent(kind, result string) {
	accessEventsTotal.WithLabelValues(norm(kind), norm(result)).Inc()
}
