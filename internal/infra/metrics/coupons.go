package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(couponsIssued, couponsIssuedAmount, redemptions, redeemLatencyMs, couponsByStatus, couponsExpiredUnused, couponsOutstandingAmount)
}

var couponsIssued = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "coupons_issued_total",
		Help: "Count of successfully issued coupons.",
	},
)

var couponsIssuedAmount = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "coupons_issued_amount",
		Help: "Total monetary amount of issued coupons, in minor units.",
	},
)

var redemptions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "coupon_redemptions_total",
		Help: "Redemption attempts by outcome (success/rejected/malformed/error).",
	},
	[]string{"outcome"},
)

var redeemLatencyMs = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "coupon_redeem_latency_ms",
		Help:    "Latency of the atomic redeem store call in milliseconds.",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	},
)

var couponsByStatus = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "coupons_by_status",
		Help: "Current number of coupons per status.",
	},
	[]string{"status"},
)

var couponsExpiredUnused = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "coupons_expired_unused",
		Help: "Coupons whose expiry passed without redemption.",
	},
)

var couponsOutstandingAmount = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "coupons_outstanding_amount",
		Help: "Total amount of unused, not-yet-expired coupons, in minor units.",
	},
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncCouponIssued(amount int64) {
	couponsIssued.Inc()
	couponsIssuedAmount.Add(float64(amount))
}

func IncRedemption(outcome string) {
	redemptions.WithLabelValues(norm(outcome)).Inc()
}

func ObserveRedeemLatency(d time.Duration) {
	redeemLatencyMs.Observe(float64(d.Milliseconds()))
}

func SetCouponsByStatus(status string, n int) {
	couponsByStatus.WithLabelValues(norm(status)).Set(float64(n))
}

func SetCouponsExpiredUnused(n int) {
	couponsExpiredUnused.Set(float64(n))
}

func SetCouponsOutstandingAmount(total int64) {
	couponsOutstandingAmount.Set(float64(total))
}
