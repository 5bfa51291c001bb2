// Package metrics provides Prometheus metrics for the decode pipeline and the
// health endpoints served next to them.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/geekxflood/common/config"
	"github.com/geekxflood/common/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/model"
)

// invalidLabel replaces label values that are not valid UTF-8.
const invalidLabel = "invalid"

// MetricsConfig defines the configuration for the metrics system
type MetricsConfig struct {
	Enabled        bool          `json:"enabled"`
	ListenAddress  string        `json:"listen_address"`
	MetricsPath    string        `json:"metrics_path"`
	HealthPath     string        `json:"health_path"`
	ReadyPath      string        `json:"ready_path"`
	UpdateInterval time.Duration `json:"update_interval"`
	Namespace      string        `json:"namespace"`
}

// DefaultMetricsConfig returns the default metrics configuration
func DefaultMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		Enabled:        true,
		ListenAddress:  ":9090",
		MetricsPath:    "/metrics",
		HealthPath:     "/health",
		ReadyPath:      "/ready",
		UpdateInterval: 30 * time.Second,
		Namespace:      "ndpsdecode",
	}
}

// MetricsManager owns the metric registry and the metrics HTTP server.
type MetricsManager struct {
	config   *MetricsConfig
	logger   logging.Logger
	registry *prometheus.Registry
	server   *http.Server

	decodeMetrics  *DecodeMetrics
	storageMetrics *StorageMetrics
	systemMetrics  *SystemMetrics

	healthStatus map[string]bool
	readyStatus  bool
	mu           sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// DecodeMetrics contains decoder metrics
type DecodeMetrics struct {
	DecodesTotal     *prometheus.CounterVec
	DecodeDuration   *prometheus.HistogramVec
	InputBytes       prometheus.Histogram
	PartialSequences prometheus.Counter
	UnknownSyntax    *prometheus.CounterVec
}

// StorageMetrics contains decode history metrics
type StorageMetrics struct {
	RecordsStored   prometheus.Counter
	StorageErrors   prometheus.Counter
	QueryDuration   prometheus.Histogram
	RecordsRetained prometheus.Gauge
}

// SystemMetrics contains process metrics
type SystemMetrics struct {
	MemoryUsage    prometheus.Gauge
	GoroutineCount prometheus.Gauge
	Uptime         prometheus.Gauge
}

// NewMetricsManager creates a new metrics manager
func NewMetricsManager(cfg config.Provider, logger logging.Logger) (*MetricsManager, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	metricsConfig, err := loadMetricsConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load metrics configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	manager := &MetricsManager{
		config:       metricsConfig,
		logger:       logger.With("component", "metrics"),
		registry:     prometheus.NewRegistry(),
		healthStatus: make(map[string]bool),
		ctx:          ctx,
		cancel:       cancel,
	}

	if err := manager.initializeMetrics(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return manager, nil
}

func (m *MetricsManager) initializeMetrics() error {
	ns := m.config.Namespace

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: name, Help: help})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: name, Help: help})
	}
	histogram := func(name, help string, buckets []float64) prometheus.Histogram {
		return prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: ns, Name: name, Help: help, Buckets: buckets})
	}

	m.decodeMetrics = &DecodeMetrics{
		DecodesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "decodes_total",
			Help:      "Decodes by grammar and outcome",
		}, []string{"grammar", "outcome"}),
		DecodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "decode_duration_seconds",
			Help:      "Time spent decoding one input",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 5, 8),
		}, []string{"grammar"}),
		InputBytes:       histogram("decode_input_bytes", "Size of decoded inputs", prometheus.ExponentialBuckets(16, 4, 7)),
		PartialSequences: counter("partial_sequences_total", "Sequences clamped at the item cap or cut short"),
		UnknownSyntax: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "unknown_syntax_total",
			Help:      "Unregistered attribute syntax tags seen, by tag",
		}, []string{"syntax"}),
	}

	m.storageMetrics = &StorageMetrics{
		RecordsStored:   counter("records_stored_total", "Decode records written to the history"),
		StorageErrors:   counter("storage_errors_total", "Decode records that could not be written"),
		QueryDuration:   histogram("storage_write_duration_seconds", "Time spent writing one decode record, retries included", prometheus.DefBuckets),
		RecordsRetained: gauge("records_retained", "Decode records currently in the history"),
	}

	m.systemMetrics = &SystemMetrics{
		MemoryUsage:    gauge("memory_usage_bytes", "Heap bytes allocated"),
		GoroutineCount: gauge("goroutines", "Running goroutines"),
		Uptime:         gauge("uptime_seconds", "Seconds since the metrics server started"),
	}

	collectors := []prometheus.Collector{
		m.decodeMetrics.DecodesTotal,
		m.decodeMetrics.DecodeDuration,
		m.decodeMetrics.InputBytes,
		m.decodeMetrics.PartialSequences,
		m.decodeMetrics.UnknownSyntax,
		m.storageMetrics.RecordsStored,
		m.storageMetrics.StorageErrors,
		m.storageMetrics.QueryDuration,
		m.storageMetrics.RecordsRetained,
		m.systemMetrics.MemoryUsage,
		m.systemMetrics.GoroutineCount,
		m.systemMetrics.Uptime,
	}
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			return fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return nil
}

// Start starts the metrics server and background monitoring
func (m *MetricsManager) Start() error {
	if !m.config.Enabled {
		m.logger.Info("Metrics collection is disabled")
		return nil
	}

	m.logger.Info("Starting metrics server",
		"listen_address", m.config.ListenAddress,
		"metrics_path", m.config.MetricsPath)

	m.server = &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("Metrics server error", "error", err.Error())
		}
	}()

	m.wg.Add(1)
	go m.collectSystemMetrics()

	return nil
}

// Handler returns the mux serving the metrics, health and ready paths.
func (m *MetricsManager) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(m.config.MetricsPath, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc(m.config.HealthPath, m.healthHandler)
	mux.HandleFunc(m.config.ReadyPath, m.readyHandler)
	return mux
}

// Stop stops the metrics server and background monitoring
func (m *MetricsManager) Stop() error {
	if !m.config.Enabled {
		return nil
	}

	m.logger.Info("Stopping metrics server")
	m.cancel()

	if m.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := m.server.Shutdown(ctx); err != nil {
			m.logger.Error("Error shutting down metrics server", "error", err.Error())
		}
	}

	m.wg.Wait()
	return nil
}

func (m *MetricsManager) collectSystemMetrics() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.UpdateInterval)
	defer ticker.Stop()

	startTime := time.Now()
	m.updateSystemMetrics(startTime)

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.updateSystemMetrics(startTime)
		}
	}
}

func (m *MetricsManager) updateSystemMetrics(startTime time.Time) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m.systemMetrics.MemoryUsage.Set(float64(memStats.Alloc))
	m.systemMetrics.GoroutineCount.Set(float64(runtime.NumGoroutine()))
	m.systemMetrics.Uptime.Set(time.Since(startTime).Seconds())
}

// ObserveDecode records one finished decode.
func (m *MetricsManager) ObserveDecode(grammar, outcome string, inputBytes int, elapsed time.Duration) {
	grammar = labelValue(grammar)
	m.decodeMetrics.DecodesTotal.WithLabelValues(grammar, labelValue(outcome)).Inc()
	m.decodeMetrics.DecodeDuration.WithLabelValues(grammar).Observe(elapsed.Seconds())
	m.decodeMetrics.InputBytes.Observe(float64(inputBytes))
}

// ObservePartialSequences adds n clamped or cut-short sequences.
func (m *MetricsManager) ObservePartialSequences(n int) {
	if n > 0 {
		m.decodeMetrics.PartialSequences.Add(float64(n))
	}
}

// ObserveUnknownSyntax counts one unrecognised syntax tag.
func (m *MetricsManager) ObserveUnknownSyntax(tag uint32) {
	m.decodeMetrics.UnknownSyntax.WithLabelValues(fmt.Sprintf("0x%02x", tag)).Inc()
}

// ObserveStore records the result of persisting one decode record.
func (m *MetricsManager) ObserveStore(elapsed time.Duration, err error) {
	m.storageMetrics.QueryDuration.Observe(elapsed.Seconds())
	if err != nil {
		m.storageMetrics.StorageErrors.Inc()
		return
	}
	m.storageMetrics.RecordsStored.Inc()
}

// SetRecordsRetained publishes the current size of the decode history.
func (m *MetricsManager) SetRecordsRetained(n int64) {
	m.storageMetrics.RecordsRetained.Set(float64(n))
}

// labelValue guards against label values Prometheus would reject.
func labelValue(v string) string {
	if v == "" || !model.LabelValue(v).IsValid() {
		return invalidLabel
	}
	return v
}

func (m *MetricsManager) healthHandler(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	var unhealthy []string
	for component, healthy := range m.healthStatus {
		if !healthy {
			unhealthy = append(unhealthy, component)
		}
	}
	m.mu.RUnlock()

	if len(unhealthy) > 0 {
		m.logger.Debug("Health check failed", "unhealthy", unhealthy)
	}
	writeStatus(w, len(unhealthy) == 0, "OK", "UNHEALTHY")
}

func (m *MetricsManager) readyHandler(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	ready := m.readyStatus
	m.mu.RUnlock()

	writeStatus(w, ready, "READY", "NOT READY")
}

func writeStatus(w http.ResponseWriter, ok bool, okBody, failBody string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(failBody))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(okBody))
}

// SetComponentHealth sets the health status for a component
func (m *MetricsManager) SetComponentHealth(component string, healthy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.healthStatus[component] = healthy
	m.logger.Debug("Component health updated",
		"component", component,
		"healthy", healthy)
}

// SetReady sets the overall readiness status
func (m *MetricsManager) SetReady(ready bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.readyStatus = ready
	m.logger.Info("Readiness status updated", "ready", ready)
}

// Registry returns the registry the metrics are registered with.
func (m *MetricsManager) Registry() *prometheus.Registry {
	return m.registry
}

// GetDecodeMetrics returns the decoder metrics instance
func (m *MetricsManager) GetDecodeMetrics() *DecodeMetrics {
	return m.decodeMetrics
}

// GetStorageMetrics returns the storage metrics instance
func (m *MetricsManager) GetStorageMetrics() *StorageMetrics {
	return m.storageMetrics
}

// GetSystemMetrics returns the system metrics instance
func (m *MetricsManager) GetSystemMetrics() *SystemMetrics {
	return m.systemMetrics
}

func loadMetricsConfig(cfg config.Provider) (*MetricsConfig, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration provider cannot be nil")
	}

	metricsConfig := DefaultMetricsConfig()

	if enabled, err := cfg.GetBool("metrics.enabled", metricsConfig.Enabled); err == nil {
		metricsConfig.Enabled = enabled
	}

	if addr, err := cfg.GetString("metrics.listen_address", metricsConfig.ListenAddress); err == nil && addr != "" {
		metricsConfig.ListenAddress = addr
	}

	paths := []struct {
		key  string
		into *string
	}{
		{"metrics.metrics_path", &metricsConfig.MetricsPath},
		{"metrics.health_path", &metricsConfig.HealthPath},
		{"metrics.ready_path", &metricsConfig.ReadyPath},
	}
	for _, p := range paths {
		v, err := cfg.GetString(p.key, *p.into)
		if err != nil || v == "" {
			continue
		}
		if v[0] != '/' {
			return nil, fmt.Errorf("%s must start with '/': %q", p.key, v)
		}
		*p.into = v
	}

	if interval, err := cfg.GetDuration("metrics.update_interval", metricsConfig.UpdateInterval); err == nil && interval > 0 {
		metricsConfig.UpdateInterval = interval
	}

	if namespace, err := cfg.GetString("metrics.namespace", metricsConfig.Namespace); err == nil {
		if namespace != "" && !model.MetricNameRE.MatchString(namespace) {
			return nil, fmt.Errorf("invalid metrics namespace %q", namespace)
		}
		metricsConfig.Namespace = namespace
	}

	return metricsConfig, nil
}
