package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Command metrics
	OpsTotal   *prometheus.CounterVec
	OpDuration *prometheus.HistogramVec

	// Bus metrics
	BusMessages *prometheus.CounterVec

	// Pending call metrics
	PendingCalls prometheus.Gauge
	CallTimeouts prometheus.Counter

	// Installer metrics
	InstallsTotal *prometheus.CounterVec

	// Runtime metrics
	RuntimeUp       prometheus.Gauge
	RuntimeRestarts prometheus.Counter
	RuntimeCrashes  prometheus.Counter

	// Extension metrics
	ExtensionsInstalled prometheus.Gauge
	ExtensionsActive    prometheus.Gauge

	// Store metrics
	StoreRequests *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSEvents      *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot Snapshot

	mu sync.RWMutex
}

// Snapshot holds current metric values for the JSON API
type Snapshot struct {
	TotalRequests   int64   `json:"total_requests"`
	TotalErrors     int64   `json:"total_errors"`
	AvgDurationMS   float64 `json:"avg_duration_ms"`
	Installed       int64   `json:"extensions_installed"`
	Active          int64   `json:"extensions_active"`
	RuntimeRestarts int64   `json:"runtime_restarts"`
	PendingCalls    int64   `json:"pending_calls"`
	WSConnections   int64   `json:"ws_connections"`
	UptimeSeconds   float64 `json:"uptime_seconds"`

	totalDuration float64
	requestCount  int64
}

// NewMetrics creates a metrics collector registered with the default registry
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates a metrics collector registered with the given
// registerer. Tests pass a private registry to avoid duplicate registration.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exthost_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "exthost_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "exthost_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "exthost_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "path"},
		),

		// Command metrics
		OpsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exthost_operations_total",
				Help: "Total number of controller operations",
			},
			[]string{"operation", "status"},
		),
		OpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "exthost_operation_duration_seconds",
				Help:    "Controller operation duration in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30},
			},
			[]string{"operation"},
		),

		// Bus metrics
		BusMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exthost_bus_messages_total",
				Help: "Total number of bus messages by direction and kind",
			},
			[]string{"direction", "kind"},
		),

		// Pending call metrics
		PendingCalls: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "exthost_pending_calls",
				Help: "Number of in-flight pending calls",
			},
		),
		CallTimeouts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "exthost_call_timeouts_total",
				Help: "Total number of pending calls resolved by timeout",
			},
		),

		// Installer metrics
		InstallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exthost_installs_total",
				Help: "Total number of package installations",
			},
			[]string{"source", "outcome"},
		),

		// Runtime metrics
		RuntimeUp: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "exthost_runtime_up",
				Help: "Whether the extension runtime process is running",
			},
		),
		RuntimeRestarts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "exthost_runtime_restarts_total",
				Help: "Total number of runtime restart attempts",
			},
		),
		RuntimeCrashes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "exthost_runtime_crashes_total",
				Help: "Total number of detected runtime crashes",
			},
		),

		// Extension metrics
		ExtensionsInstalled: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "exthost_extensions_installed",
				Help: "Number of installed extensions",
			},
		),
		ExtensionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "exthost_extensions_active",
				Help: "Number of active extensions",
			},
		),

		// Store metrics
		StoreRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exthost_store_requests_total",
				Help: "Total number of store API requests",
			},
			[]string{"operation", "status"},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "exthost_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exthost_ws_events_total",
				Help: "Total number of events pushed to UI clients",
			},
			[]string{"type"},
		),

		// System metrics
		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "exthost_uptime_seconds",
				Help: "Host uptime in seconds",
			},
		),
	}

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.totalDuration += duration.Seconds()
	m.snapshot.requestCount++
	if len(status) > 0 && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordOperation records a controller operation
func (m *Metrics) RecordOperation(operation, status string, duration time.Duration) {
	m.OpsTotal.WithLabelValues(operation, status).Inc()
	m.OpDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordBusMessage records a bus message
func (m *Metrics) RecordBusMessage(direction, kind string) {
	m.BusMessages.WithLabelValues(direction, kind).Inc()
}

// SetPendingCalls sets the in-flight pending call gauge
func (m *Metrics) SetPendingCalls(count int) {
	m.PendingCalls.Set(float64(count))
	m.mu.Lock()
	m.snapshot.PendingCalls = int64(count)
	m.mu.Unlock()
}

// IncCallTimeouts increments the call timeout counter
func (m *Metrics) IncCallTimeouts() {
	m.CallTimeouts.Inc()
}

// RecordInstall records a package installation attempt
func (m *Metrics) RecordInstall(source, outcome string) {
	m.InstallsTotal.WithLabelValues(source, outcome).Inc()
}

// SetRuntimeUp sets the runtime liveness gauge
func (m *Metrics) SetRuntimeUp(up bool) {
	if up {
		m.RuntimeUp.Set(1)
	} else {
		m.RuntimeUp.Set(0)
	}
}

// IncRuntimeRestarts increments the restart counter
func (m *Metrics) IncRuntimeRestarts() {
	m.RuntimeRestarts.Inc()
	m.mu.Lock()
	m.snapshot.RuntimeRestarts++
	m.mu.Unlock()
}

// IncRuntimeCrashes increments the crash counter
func (m *Metrics) IncRuntimeCrashes() {
	m.RuntimeCrashes.Inc()
}

// SetExtensionsInstalled sets the installed extension gauge
func (m *Metrics) SetExtensionsInstalled(count int) {
	m.ExtensionsInstalled.Set(float64(count))
	m.mu.Lock()
	m.snapshot.Installed = int64(count)
	m.mu.Unlock()
}

// SetExtensionsActive sets the active extension gauge
func (m *Metrics) SetExtensionsActive(count int) {
	m.ExtensionsActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.Active = int64(count)
	m.mu.Unlock()
}

// RecordStoreRequest records a store API request
func (m *Metrics) RecordStoreRequest(operation, status string) {
	m.StoreRequests.WithLabelValues(operation, status).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.WSConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.WSConnections--
	m.mu.Unlock()
}

// RecordWSEvent records an event pushed to UI clients
func (m *Metrics) RecordWSEvent(eventType string) {
	m.WSEvents.WithLabelValues(eventType).Inc()
}

// GetSnapshot returns current metric values for the JSON API
func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.RLock()
	snap := m.snapshot
	m.mu.RUnlock()

	if snap.requestCount > 0 {
		snap.AvgDurationMS = snap.totalDuration / float64(snap.requestCount) * 1000
	}
	snap.UptimeSeconds = time.Since(m.startTime).Seconds()
	return snap
}
