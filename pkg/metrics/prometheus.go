// Package metrics provides Prometheus metrics for the dripcue service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Outcome label values shared by several vectors.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeDropped = "dropped"
)

// Manager manages all Prometheus metrics for the dripcue service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Beat scheduler
	beatsFired        prometheus.Counter
	beatLateness      prometheus.Histogram
	beatsPerTick      prometheus.Histogram
	schedulerRunning  prometheus.Gauge
	schedulerInterval prometheus.Gauge
	pulseSinkErrors   *prometheus.CounterVec

	// Timer registry
	timersActive   prometheus.Gauge
	timersCreated  prometheus.Counter
	timersRejected prometheus.Counter
	timersDeleted  prometheus.Counter
	timersExpired  prometheus.Counter
	sweepDuration  prometheus.Histogram
	sweepsSkipped  prometheus.Counter

	// Notifications
	notifications  *prometheus.CounterVec
	notifyQueue    prometheus.Gauge
	notifyQueueCap prometheus.Gauge

	// Persistence
	persistence        *prometheus.CounterVec
	persistenceLatency *prometheus.HistogramVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "dripcue",
		subsystem:        "core",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix != "" {
		return m.metricPrefix + "_" + n
	}
	return n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of metric definitions
	auto := promauto.With(m.registry)

	m.beatsFired = m.counter("beats_fired_total", "Total number of beats delivered to the pulse sinks")
	m.beatLateness = m.histogram("beat_lateness_milliseconds",
		"Difference between a beat's scheduled deadline and its actual fire time",
		[]float64{0.5, 1, 2, 4, 8, 16, 32, 64, 128, 256, 1000})
	m.beatsPerTick = m.histogram("beats_scheduled_per_tick",
		"Number of one-shot fires armed by a single scheduler tick",
		[]float64{0, 1, 2, 4, 8, 16, 64, 256})
	m.schedulerRunning = m.gauge("scheduler_running", "1 while the beat scheduler is running")
	m.schedulerInterval = m.gauge("scheduler_interval_milliseconds", "Current beat interval in milliseconds")
	m.pulseSinkErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("pulse_sink_errors_total"),
		Help:        "Pulse sink failures by sink and kind",
		ConstLabels: m.customLabels,
	}, []string{"sink", "kind"})

	m.timersActive = m.gauge("timers_active", "Number of active countdown timers")
	m.timersCreated = m.counter("timers_created_total", "Total number of timers created")
	m.timersRejected = m.counter("timers_rejected_total", "Timer creations rejected at capacity")
	m.timersDeleted = m.counter("timers_deleted_total", "Timers removed by explicit delete")
	m.timersExpired = m.counter("timers_expired_total", "Timers pruned by a sweep after expiry")
	m.sweepDuration = m.histogram("sweep_duration_milliseconds", "Duration of a registry sweep", m.histogramBuckets)
	m.sweepsSkipped = m.counter("sweeps_skipped_total", "Sweeps skipped because another sweep was in flight")

	m.notifications = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("notifications_total"),
		Help:        "Notification requests by kind, backend and outcome",
		ConstLabels: m.customLabels,
	}, []string{"kind", "backend", "outcome"})
	m.notifyQueue = m.gauge("notify_queue_size", "Pending notification requests in the async queue")
	m.notifyQueueCap = m.gauge("notify_queue_capacity", "Capacity of the async notification queue")

	m.persistence = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("persistence_operations_total"),
		Help:        "Persistence store operations by backend, op and outcome",
		ConstLabels: m.customLabels,
	}, []string{"backend", "op", "outcome"})
	m.persistenceLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("persistence_latency_milliseconds"),
		Help:        "Persistence store operation latency",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}, []string{"backend", "op"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_requests_total"),
		Help:        "Total number of HTTP requests by endpoint and method",
		ConstLabels: m.customLabels,
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_request_duration_milliseconds"),
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

func enabled() bool { return globalManager != nil && globalManager.enabled }

// Beat scheduler.

// RecordBeatFired counts a delivered beat and observes its lateness.
func RecordBeatFired(latenessMs float64) {
	if !enabled() {
		return
	}
	globalManager.beatsFired.Inc()
	globalManager.beatLateness.Observe(latenessMs)
}

// RecordBeatsScheduled observes how many fires one tick armed.
func RecordBeatsScheduled(n int) {
	if !enabled() {
		return
	}
	globalManager.beatsPerTick.Observe(float64(n))
}

// UpdateSchedulerState sets the running gauge and current interval.
func UpdateSchedulerState(running bool, intervalMs float64) {
	if !enabled() {
		return
	}
	v := 0.0
	if running {
		v = 1
	}
	globalManager.schedulerRunning.Set(v)
	globalManager.schedulerInterval.Set(intervalMs)
}

// RecordPulseSinkError counts a pulse sink failure.
func RecordPulseSinkError(sink, kind string) {
	if !enabled() {
		return
	}
	globalManager.pulseSinkErrors.WithLabelValues(sink, kind).Inc()
}

// Timer registry.

// UpdateTimersActive sets the active timer count.
func UpdateTimersActive(n int) {
	if !enabled() {
		return
	}
	globalManager.timersActive.Set(float64(n))
}

// RecordTimerCreated increments the created counter.
func RecordTimerCreated() {
	if !enabled() {
		return
	}
	globalManager.timersCreated.Inc()
}

// RecordTimerRejected increments the capacity rejection counter.
func RecordTimerRejected() {
	if !enabled() {
		return
	}
	globalManager.timersRejected.Inc()
}

// RecordTimerDeleted increments the delete counter.
func RecordTimerDeleted() {
	if !enabled() {
		return
	}
	globalManager.timersDeleted.Inc()
}

// RecordTimersExpired adds n pruned timers.
func RecordTimersExpired(n int) {
	if !enabled() || n <= 0 {
		return
	}
	globalManager.timersExpired.Add(float64(n))
}

// RecordSweep observes a sweep duration.
func RecordSweep(d time.Duration) {
	if !enabled() {
		return
	}
	globalManager.sweepDuration.Observe(float64(d) / float64(time.Millisecond))
}

// RecordSweepSkipped counts a sweep that found another in flight.
func RecordSweepSkipped() {
	if !enabled() {
		return
	}
	globalManager.sweepsSkipped.Inc()
}

// Notifications.

// RecordNotification counts a notification request outcome.
func RecordNotification(kind, backend, outcome string) {
	if !enabled() {
		return
	}
	globalManager.notifications.WithLabelValues(kind, backend, outcome).Inc()
}

// UpdateNotifyQueue sets the async queue size and capacity.
func UpdateNotifyQueue(size, capacity int) {
	if !enabled() {
		return
	}
	globalManager.notifyQueue.Set(float64(size))
	globalManager.notifyQueueCap.Set(float64(capacity))
}

// Persistence.

// RecordPersistence counts a store operation and its latency.
func RecordPersistence(backend, op, outcome string, d time.Duration) {
	if !enabled() {
		return
	}
	globalManager.persistence.WithLabelValues(backend, op, outcome).Inc()
	globalManager.persistenceLatency.WithLabelValues(backend, op).Observe(float64(d) / float64(time.Millisecond))
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if !enabled() {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if !enabled() {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	if !enabled() {
		return
	}
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	if !enabled() {
		return
	}
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
