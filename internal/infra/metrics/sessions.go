package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		sessionsStartedTotal,
		sessionsEndedTotal,
		sessionsActive,
		usageBytesTotal,
		admissionDecisionsTotal,
	)
}

var (
	sessionsStartedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessions_started_total",
			Help: "Sessions created, by entitlement origin.",
		},
		[]string{"origin"}, // voucher, payment
	)

	sessionsEndedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessions_ended_total",
			Help: "Sessions that left the active state, by terminal status.",
		},
		[]string{"status"}, // expired, terminated
	)

	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Active sessions seen by the last enforcer sweep.",
		},
	)

	usageBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usage_bytes_total",
			Help: "Bytes reported by network control.",
		},
		[]string{"direction"}, // in, out
	)

	admissionDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_decisions_total",
			Help: "Admission decisions by action.",
		},
		[]string{"action"},
	)
)

func IncSessionStarted(origin string) {
	sessionsStartedTotal.WithLabelValues(norm(origin)).Inc()
}

func IncSessionEnded(status string) {
	sessionsEndedTotal.WithLabelValues(norm(status)).Inc()
}

func SetSessionsActive(n int) {
	sessionsActive.Set(float64(n))
}

func AddUsageBytes(in, out int64) {
	usageBytesTotal.WithLabelValues("in").Add(float64(in))
	usageBytesTotal.WithLabelValues("out").Add(float64(out))
}

func IncAdmission(action string) {
	admissionDecisionsTotal.WithLabelValues(norm(action)).Inc()
}
