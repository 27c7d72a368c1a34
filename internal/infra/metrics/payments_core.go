package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		paymentLateCallbacksTotal,
		paymentCallbacksRejectedTotal,
		paymentProviderDuration,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payment requests by status (initiated/completed/failed/reclaimed).",
		},
		[]string{"status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total monetary value of completed payments, labeled by currency.",
		},
		[]string{"currency"},
	)

	paymentLateCallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_late_callbacks_total",
			Help: "Callbacks received for requests that were already resolved, by callback outcome.",
		},
		[]string{"outcome"},
	)

	paymentCallbacksRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_callbacks_rejected_total",
			Help: "Completion callbacks refused before crediting, by reason (amount/phone/unpaid).",
		},
		[]string{"reason"},
	)

	paymentProviderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_provider_request_duration_seconds",
			Help:    "Latency of outbound charge requests to the payment provider.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
		},
		[]string{"provider", "result"}, // result: ok|error
	)
)

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amount int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}

func IncLateCallback(outcome string) {
	paymentLateCallbacksTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncCallbackRejected(reason string) {
	paymentCallbacksRejectedTotal.WithLabelValues(norm(reason)).Inc()
}

func ObserveProviderRequest(provider string, d time.Duration, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	paymentProviderDuration.WithLabelValues(norm(provider), result).Observe(d.Seconds())
}
