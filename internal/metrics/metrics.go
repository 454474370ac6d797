package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus 指标
var (
	FraudAssessmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundgate_fraud_assessments_total",
			Help: "Total number of contribution fraud assessments by risk level and verdict",
		},
		[]string{"risk_level", "allowed"},
	)

	ContributionsAppliedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fundgate_contributions_applied_total",
			Help: "Total number of confirmed contributions applied to campaigns",
		},
	)

	ContributedAmountTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundgate_contributed_amount_total",
			Help: "Sum of applied contribution amounts by currency",
		},
		[]string{"currency"},
	)

	PaymentsResolvedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundgate_payments_resolved_total",
			Help: "Pending payments resolved by kind and final status",
		},
		[]string{"kind", "status"},
	)

	PaymentCheckDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fundgate_payment_check_duration_seconds",
			Help:    "Duration of a single pending payment check",
			Buckets: prometheus.DefBuckets,
		},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundgate_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fundgate_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	CampaignsGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fundgate_campaigns",
			Help: "Number of campaigns by status",
		},
		[]string{"status"},
	)

	RaisedGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fundgate_raised",
			Help: "Total funds raised by currency",
		},
		[]string{"currency"},
	)
)

var registerOnce sync.Once

// Register 注册全部指标，重复调用无副作用
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(FraudAssessmentsTotal)
		prometheus.MustRegister(ContributionsAppliedTotal)
		prometheus.MustRegister(ContributedAmountTotal)
		prometheus.MustRegister(PaymentsResolvedTotal)
		prometheus.MustRegister(PaymentCheckDuration)
		prometheus.MustRegister(HTTPRequestsTotal)
		prometheus.MustRegister(HTTPRequestDuration)
		prometheus.MustRegister(CampaignsGauge)
		prometheus.MustRegister(RaisedGauge)
	})
}
