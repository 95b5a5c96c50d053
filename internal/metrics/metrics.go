package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_requests_latency_seconds",
			Help:    "Latency of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// ledger
	PurchaseRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchase_requests_total",
			Help: "Purchase requests by outcome",
		},
		[]string{"status"}, // accepted|rejected|expired|cancelled|sent
	)
	PaymentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Total successful payments",
		},
	)
	SettlementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlements_total",
			Help: "Settlements by type",
		},
		[]string{"type"}, // income|withdrawal
	)

	// worker queue
	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)

	// sweep worker
	SweepRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_runs_total",
			Help: "Background sweep runs by kind",
		},
		[]string{"kind"}, // expiry|overdue
	)
	SweptRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swept_rows_total",
			Help: "Rows updated by background sweeps",
		},
		[]string{"kind"},
	)
)

// Handler serves the /metrics endpoint.
var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestLatency)
	prometheus.MustRegister(PurchaseRequestsTotal)
	prometheus.MustRegister(PaymentsTotal)
	prometheus.MustRegister(SettlementsTotal)
	prometheus.MustRegister(WorkerQueueDepth)
	prometheus.MustRegister(SweepRunsTotal)
	prometheus.MustRegister(SweptRowsTotal)
}
