package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cache store metrics
	cacheQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evmsync_cache_queries_total",
			Help: "Total number of cache store queries",
		},
		[]string{"operation"},
	)

	cacheQueryTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "evmsync_cache_query_duration_seconds",
			Help:    "Duration of cache store queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	cacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evmsync_cache_errors_total",
			Help: "Total number of cache store errors",
		},
		[]string{"error_type"},
	)

	// Indexing / dispatch metrics, one series per (network, source)
	LastDispatchedBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "evmsync_last_dispatched_block",
			Help: "The last block number whose events were dispatched",
		},
		[]string{"network", "source"},
	)

	BlocksFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evmsync_blocks_fetched_total",
			Help: "Total number of blocks hydrated from RPC",
		},
		[]string{"network"},
	)

	EventsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evmsync_events_dispatched_total",
			Help: "Total number of decoded events handed to user handlers",
		},
		[]string{"network", "source"},
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "evmsync_dispatch_duration_seconds",
			Help:    "Time taken to dispatch a single event (handler + commit)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	FetchRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "evmsync_fetch_rate_blocks_per_second",
			Help: "Current historical-fetch rate in blocks per second",
		},
		[]string{"network"},
	)

	// System metrics
	Uptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "evmsync_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)

	Errors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evmsync_errors_total",
			Help: "Total number of errors by component and severity",
		},
		[]string{"component", "severity"},
	)

	ComponentHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "evmsync_component_health",
			Help: "Component health status (1=healthy, 0=unhealthy)",
		},
		[]string{"component"},
	)

	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "evmsync_goroutines",
			Help: "Number of active goroutines",
		},
	)

	MemoryUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "evmsync_memory_usage_bytes",
			Help: "Memory usage statistics",
		},
		[]string{"type"},
	)

	startTime = time.Now()
)

func CacheQueryInc(operation string) {
	cacheQueries.WithLabelValues(operation).Inc()
}

func CacheQueryDuration(operation string, duration time.Duration) {
	cacheQueryTime.WithLabelValues(operation).Observe(duration.Seconds())
}

func CacheErrorInc(errorType string) {
	cacheErrors.WithLabelValues(errorType).Inc()
}

func DispatchDurationLog(source string, duration time.Duration) {
	DispatchDuration.WithLabelValues(source).Observe(duration.Seconds())
}

func LastDispatchedBlockSet(network, source string, blockNum uint64) {
	LastDispatchedBlock.WithLabelValues(network, source).Set(float64(blockNum))
}

func BlocksFetchedInc(network string, count uint64) {
	BlocksFetched.WithLabelValues(network).Add(float64(count))
}

func EventsDispatchedInc(network, source string, count int) {
	EventsDispatched.WithLabelValues(network, source).Add(float64(count))
}

func FetchRateSet(network string, rate float64) {
	FetchRate.WithLabelValues(network).Set(rate)
}

func ComponentHealthSet(component string, healthy bool) {
	boolAsFloat := float64(1)
	if !healthy {
		boolAsFloat = 0
	}

	ComponentHealth.WithLabelValues(component).Set(boolAsFloat)
}

func ErrorsInc(component, severity string) {
	Errors.WithLabelValues(component, severity).Inc()
}

// UpdateSystemMetrics updates runtime system metrics.
// This should be called periodically (e.g., every 15 seconds).
func UpdateSystemMetrics() {
	Uptime.Set(time.Since(startTime).Seconds())
	Goroutines.Set(float64(runtime.NumGoroutine()))

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	MemoryUsage.WithLabelValues("alloc").Set(float64(m.Alloc))
	MemoryUsage.WithLabelValues("total_alloc").Set(float64(m.TotalAlloc))
	MemoryUsage.WithLabelValues("sys").Set(float64(m.Sys))
	MemoryUsage.WithLabelValues("heap_inuse").Set(float64(m.HeapInuse))
}
