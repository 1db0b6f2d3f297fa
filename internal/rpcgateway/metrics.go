package rpcgateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gatewayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evmsync_rpc_requests_total",
			Help: "Total number of RPC Gateway requests by method",
		},
		[]string{"network", "method"},
	)

	gatewayErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evmsync_rpc_errors_total",
			Help: "Total number of RPC Gateway errors by method and kind",
		},
		[]string{"network", "method", "kind"},
	)

	gatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "evmsync_rpc_request_duration_seconds",
			Help:    "Duration of RPC Gateway requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"network", "method"},
	)

	gatewayRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evmsync_rpc_retries_total",
			Help: "Total number of RPC Gateway retry attempts by method",
		},
		[]string{"method"},
	)

	gatewayInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "evmsync_rpc_inflight_requests",
			Help: "Number of RPC Gateway requests currently occupying the concurrency pool",
		},
		[]string{"network"},
	)
)

func gatewayRetriesInc(method string) {
	gatewayRetries.WithLabelValues(method).Inc()
}

func gatewayRequestInc(network, method string) {
	gatewayRequests.WithLabelValues(network, method).Inc()
}

func gatewayErrorInc(network, method, kind string) {
	gatewayErrors.WithLabelValues(network, method, kind).Inc()
}

func gatewayDurationObserve(network, method string, d time.Duration) {
	gatewayDuration.WithLabelValues(network, method).Observe(d.Seconds())
}

func gatewayInFlightSet(network string, n int) {
	gatewayInFlight.WithLabelValues(network).Set(float64(n))
}
