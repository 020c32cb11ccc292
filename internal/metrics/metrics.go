package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	WithdrawalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "withdrawals_total",
			Help: "Withdrawal submissions by outcome",
		},
		[]string{"outcome"}, // completed|pending|error|rejected_request
	)

	PayoutCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payout_calls_total",
			Help: "Payout gateway calls by result",
		},
		[]string{"result"}, // success|failure
	)

	DepositsCredited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "deposits_credited_total",
			Help: "Deposits credited via webhook",
		},
	)

	GatewayLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_latency_seconds",
			Help:    "Latency of payment gateway calls.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op", "outcome"},
	)

	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(WithdrawalsTotal)
	prometheus.MustRegister(PayoutCalls)
	prometheus.MustRegister(DepositsCredited)
	prometheus.MustRegister(GatewayLatency)
	prometheus.MustRegister(WorkerQueueDepth)
}
