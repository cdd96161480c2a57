package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	settleTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settle_rounds_total",
			Help: "Total round settlement attempts by result",
		},
		[]string{"result"},
	)

	settleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "settle_round_duration_ms",
			Help:    "Round settlement duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"result"},
	)

	refundTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refund_rounds_total",
			Help: "Total round refund compensations by result",
		},
		[]string{"result"},
	)

	refundDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "refund_round_duration_ms",
			Help:    "Round refund compensation duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"result"},
	)

	jobRetryTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "settle_job_retries_total",
			Help: "Total settlement job retries scheduled",
		},
	)

	jobExhaustedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "settle_job_exhausted_total",
			Help: "Total settlement jobs that exhausted retries",
		},
	)
)

// RecordSettle 记录一次结算尝试
// result: "success" | "noop" | "lock_busy" | "fail"
func RecordSettle(result string, started time.Time) {
	settleTotal.WithLabelValues(result).Inc()
	settleDuration.WithLabelValues(result).Observe(float64(time.Since(started).Milliseconds()))
}

// RecordRefund 记录一次退款补偿
func RecordRefund(result string, started time.Time) {
	refundTotal.WithLabelValues(result).Inc()
	refundDuration.WithLabelValues(result).Observe(float64(time.Since(started).Milliseconds()))
}

// RecordJobRetry 记录一次重试排期
func RecordJobRetry() {
	jobRetryTotal.Inc()
}

// RecordJobExhausted 记录一次重试耗尽
func RecordJobExhausted() {
	jobExhaustedTotal.Inc()
}
