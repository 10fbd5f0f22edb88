package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TradeOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trade_operations_total",
		Help: "Total number of trade lifecycle operations",
	}, []string{"operation", "status"})

	TradeOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trade_operation_duration_seconds",
		Help:    "Duration of trade lifecycle operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	TradesImported = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trades_imported_total",
		Help: "Total number of imported trade rows",
	}, []string{"status"})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total number of cache hits",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total number of cache misses",
	})

	DatabaseQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "database_queries_total",
		Help: "Total number of database queries",
	}, []string{"query_type", "status"})

	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "database_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query_type"})

	AnalyticsRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analytics_requests_total",
		Help: "Total number of analytics requests",
	}, []string{"kind", "cached"})

	ActiveGoroutines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "active_goroutines",
		Help: "Number of active goroutines",
	})

	MemoryUsage = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "memory_usage_bytes",
		Help: "Current memory usage in bytes",
	})
)

func RecordCacheHit() {
	CacheHits.Inc()
}

func RecordCacheMiss() {
	CacheMisses.Inc()
}

func RecordTradeOperation(operation string, err error) {
	TradeOperations.WithLabelValues(operation, statusOf(err)).Inc()
}

func RecordTradeImported(status string, n int) {
	TradesImported.WithLabelValues(status).Add(float64(n))
}

func RecordAnalyticsRequest(kind string, cached bool) {
	cachedStr := "false"
	if cached {
		cachedStr = "true"
	}
	AnalyticsRequests.WithLabelValues(kind, cachedStr).Inc()
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{
		start: time.Now(),
	}
}

func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(time.Since(t.start).Seconds())
}
