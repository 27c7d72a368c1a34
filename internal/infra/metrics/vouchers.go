package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(vouchersGeneratedTotal, voucherRedemptionsTotal) }

var (
	vouchersGeneratedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "vouchers_generated_total",
			Help: "Total number of vouchers generated.",
		},
	)

	voucherRedemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voucher_redemptions_total",
			Help: "Voucher redemption attempts by result.",
		},
		[]string{"result"}, // ok, not_found, expired, already_used, device_active, rate_limited, error
	)
)

func AddVouchersGenerated(n int) {
	vouchersGeneratedTotal.Add(float64(n))
}

func IncVoucherRedemption(result string) {
	voucherRedemptionsTotal.WithLabelValues(norm(result)).Inc()
}
