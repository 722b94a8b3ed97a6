package monitor

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector registers and records the service metrics
type MetricsCollector struct {
	// charge pipeline
	chargeRequestTotal  *prometheus.CounterVec
	chargeOutcomeTotal  *prometheus.CounterVec
	chargeDuration      *prometheus.HistogramVec
	providerCallTotal   *prometheus.CounterVec
	providerFallback    prometheus.Counter
	providerCallLatency *prometheus.HistogramVec
	refundTotal         *prometheus.CounterVec

	// fulfillment
	fulfillmentAttemptTotal *prometheus.CounterVec
	bookingTotal            *prometheus.CounterVec
	staleReclaimTotal       prometheus.Counter

	// HTTP
	httpRequestTotal    *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// database
	dbConnectionsActive prometheus.Gauge
	dbConnectionsIdle   prometheus.Gauge
	dbQueryTotal        *prometheus.CounterVec
	dbQueryDuration     *prometheus.HistogramVec

	// Redis
	redisConnectionsActive prometheus.Gauge
	redisCommandTotal      *prometheus.CounterVec

	// runtime
	memoryUsage    prometheus.Gauge
	goroutineCount prometheus.Gauge
	gcDuration     prometheus.Gauge

	// queues
	queueMessageTotal *prometheus.CounterVec
	queueSize         *prometheus.GaugeVec
	retryQueuePending *prometheus.GaugeVec
}

// NewMetricsCollector creates and registers the metric set
func NewMetricsCollector() *MetricsCollector {
	mc := &MetricsCollector{}
	mc.initMetrics()
	return mc
}

func (mc *MetricsCollector) initMetrics() {
	mc.chargeRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "charge_request_total",
			Help: "Total number of charge attempts",
		},
		[]string{"status"},
	)

	mc.chargeOutcomeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "charge_outcome_total",
			Help: "Charge outcomes by status and decline code",
		},
		[]string{"status", "code"},
	)

	mc.chargeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "charge_duration_seconds",
			Help:    "Duration of charge attempts",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	mc.providerCallTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_call_total",
			Help: "Payment provider calls by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	mc.providerFallback = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "provider_fallback_total",
			Help: "Charges routed to the secondary provider",
		},
	)

	mc.providerCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_call_duration_seconds",
			Help:    "Latency of payment provider calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	mc.refundTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refund_total",
			Help: "Compensating refunds by provider and status",
		},
		[]string{"provider", "status"},
	)

	mc.fulfillmentAttemptTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fulfillment_attempt_total",
			Help: "Fulfillment attempts by result",
		},
		[]string{"result"},
	)

	mc.bookingTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_total",
			Help: "Bookings created by source",
		},
		[]string{"source"},
	)

	mc.staleReclaimTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fulfillment_stale_reclaim_total",
			Help: "Stale pending requests republished by the sweeper",
		},
	)

	mc.httpRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	mc.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	mc.dbConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	mc.dbConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	mc.dbQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_query_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "table", "status"},
	)

	mc.dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	mc.redisConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "redis_connections_active",
			Help: "Number of active Redis connections",
		},
	)

	mc.redisCommandTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_command_total",
			Help: "Total number of Redis commands",
		},
		[]string{"command", "status"},
	)

	mc.memoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "memory_usage_bytes",
			Help: "Memory usage in bytes",
		},
	)

	mc.goroutineCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "goroutine_count",
			Help: "Number of goroutines",
		},
	)

	mc.gcDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gc_duration_seconds",
			Help: "Cumulative garbage collection pause time",
		},
	)

	mc.queueMessageTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_message_total",
			Help: "Total number of queue messages",
		},
		[]string{"queue", "operation", "status"},
	)

	mc.queueSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_size",
			Help: "Size of queue",
		},
		[]string{"queue"},
	)

	mc.retryQueuePending = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "retry_queue_pending",
			Help: "Operations pending in the durable retry queue",
		},
		[]string{"queue"},
	)
}

// RecordChargeRequest records a charge attempt
func (mc *MetricsCollector) RecordChargeRequest(status string) {
	mc.chargeRequestTotal.WithLabelValues(status).Inc()
}

// RecordChargeOutcome records a settled charge outcome
func (mc *MetricsCollector) RecordChargeOutcome(status, code string) {
	mc.chargeOutcomeTotal.WithLabelValues(status, code).Inc()
}

// RecordChargeDuration records how long a charge attempt took
func (mc *MetricsCollector) RecordChargeDuration(status string, duration time.Duration) {
	mc.chargeDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordProviderCall records a payment provider call
func (mc *MetricsCollector) RecordProviderCall(provider, outcome string) {
	mc.providerCallTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordProviderFallback records a charge routed to the secondary provider
func (mc *MetricsCollector) RecordProviderFallback() {
	mc.providerFallback.Inc()
}

// RecordProviderLatency records payment provider call latency
func (mc *MetricsCollector) RecordProviderLatency(provider string, duration time.Duration) {
	mc.providerCallLatency.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordRefund records a compensating refund attempt
func (mc *MetricsCollector) RecordRefund(provider, status string) {
	mc.refundTotal.WithLabelValues(provider, status).Inc()
}

// RecordFulfillmentAttempt records a fulfillment worker pass
func (mc *MetricsCollector) RecordFulfillmentAttempt(result string) {
	mc.fulfillmentAttemptTotal.WithLabelValues(result).Inc()
}

// RecordBooking records a created booking
func (mc *MetricsCollector) RecordBooking(source string) {
	mc.bookingTotal.WithLabelValues(source).Inc()
}

// RecordStaleReclaim records a request republished by the sweeper
func (mc *MetricsCollector) RecordStaleReclaim() {
	mc.staleReclaimTotal.Inc()
}

// RecordHTTPRequest records an HTTP request
func (mc *MetricsCollector) RecordHTTPRequest(method, path, status string) {
	mc.httpRequestTotal.WithLabelValues(method, path, status).Inc()
}

// RecordHTTPDuration records HTTP request duration
func (mc *MetricsCollector) RecordHTTPDuration(method, path string, duration time.Duration) {
	mc.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// UpdateDBConnections updates database connection gauges
func (mc *MetricsCollector) UpdateDBConnections(active, idle int) {
	mc.dbConnectionsActive.Set(float64(active))
	mc.dbConnectionsIdle.Set(float64(idle))
}

// RecordDBQuery records a database query
func (mc *MetricsCollector) RecordDBQuery(operation, table, status string) {
	mc.dbQueryTotal.WithLabelValues(operation, table, status).Inc()
}

// RecordDBQueryDuration records database query duration
func (mc *MetricsCollector) RecordDBQueryDuration(operation, table string, duration time.Duration) {
	mc.dbQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// UpdateRedisConnections updates the Redis connection gauge
func (mc *MetricsCollector) UpdateRedisConnections(active int) {
	mc.redisConnectionsActive.Set(float64(active))
}

// RecordRedisCommand records a Redis command
func (mc *MetricsCollector) RecordRedisCommand(command, status string) {
	mc.redisCommandTotal.WithLabelValues(command, status).Inc()
}

// RecordQueueMessage records a message queue operation
func (mc *MetricsCollector) RecordQueueMessage(queue, operation, status string) {
	mc.queueMessageTotal.WithLabelValues(queue, operation, status).Inc()
}

// UpdateQueueSize updates a queue size gauge
func (mc *MetricsCollector) UpdateQueueSize(queue string, size int) {
	mc.queueSize.WithLabelValues(queue).Set(float64(size))
}

// UpdateRetryQueuePending updates the retry queue backlog gauge
func (mc *MetricsCollector) UpdateRetryQueuePending(queue string, pending int) {
	mc.retryQueuePending.WithLabelValues(queue).Set(float64(pending))
}

// UpdateSystemMetrics refreshes the runtime gauges
func (mc *MetricsCollector) UpdateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	mc.memoryUsage.Set(float64(m.Alloc))
	mc.goroutineCount.Set(float64(runtime.NumGoroutine()))
	mc.gcDuration.Set(float64(m.PauseTotalNs) / 1e9)
}

// StartSystemMetricsCollection refreshes runtime gauges until ctx is cancelled
func (mc *MetricsCollector) StartSystemMetricsCollection(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mc.UpdateSystemMetrics()
		}
	}
}
