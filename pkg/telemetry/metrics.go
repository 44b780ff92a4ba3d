package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the plugin server, the plugin
// client, the bridge and the error handler. A nil *Metrics, or one built with
// metrics disabled, records nothing.
type Metrics struct {
	config MetricsConfig

	// Server metrics
	commandsHandled   *prometheus.CounterVec
	commandDuration   *prometheus.HistogramVec
	connectionsTotal  prometheus.Counter
	activeConnections prometheus.Gauge

	// Client metrics
	clientRequests   *prometheus.CounterVec
	clientDuration   *prometheus.HistogramVec
	clientReconnects prometheus.Counter

	// Bridge metrics
	bridgeOperations *prometheus.CounterVec
	bridgeMode       *prometheus.GaugeVec

	// Error metrics
	errorsByCategory *prometheus.CounterVec

	// Activity log metrics
	activityRecords *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		commandsHandled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "server",
				Name:      "commands_total",
				Help:      "Total number of commands dispatched by the plugin server",
			},
			[]string{"command", "status"},
		),
		commandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "server",
				Name:      "command_duration_seconds",
				Help:      "Duration of command dispatch in seconds",
				Buckets:   buckets,
			},
			[]string{"command"},
		),
		connectionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "server",
				Name:      "connections_total",
				Help:      "Total number of accepted connections",
			},
		),
		activeConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "server",
				Name:      "active_connections",
				Help:      "Current number of open connections",
			},
		),

		clientRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "requests_total",
				Help:      "Total number of round trips sent by the plugin client",
			},
			[]string{"command", "status"},
		),
		clientDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "request_duration_seconds",
				Help:      "Duration of client round trips in seconds",
				Buckets:   buckets,
			},
			[]string{"command"},
		),
		clientReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "client",
				Name:      "connects_total",
				Help:      "Total number of successful dials to the plugin",
			},
		),

		bridgeOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "bridge",
				Name:      "operations_total",
				Help:      "Total number of bridge operations",
			},
			[]string{"mode", "operation", "status"},
		),
		bridgeMode: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "bridge",
				Name:      "mode",
				Help:      "Active bridge mode (1 for the selected mode)",
			},
			[]string{"mode"},
		),

		errorsByCategory: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of handled errors",
			},
			[]string{"category", "severity"},
		),

		activityRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "activity",
				Name:      "records_total",
				Help:      "Total number of activity log writes",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.commandsHandled,
		m.commandDuration,
		m.connectionsTotal,
		m.activeConnections,
		m.clientRequests,
		m.clientDuration,
		m.clientReconnects,
		m.bridgeOperations,
		m.bridgeMode,
		m.errorsByCategory,
		m.activityRecords,
	)

	return m, nil
}

func status(failed bool) string {
	if failed {
		return "error"
	}
	return "success"
}

// Server Metrics

// RecordCommand records a dispatched command.
func (m *Metrics) RecordCommand(command string, failed bool, duration time.Duration) {
	if m == nil || m.commandsHandled == nil {
		return
	}
	m.commandsHandled.WithLabelValues(command, status(failed)).Inc()
	m.commandDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// ConnectionOpened records an accepted connection.
func (m *Metrics) ConnectionOpened() {
	if m == nil || m.connectionsTotal == nil {
		return
	}
	m.connectionsTotal.Inc()
	m.activeConnections.Inc()
}

// ConnectionClosed records a closed connection.
func (m *Metrics) ConnectionClosed() {
	if m == nil || m.activeConnections == nil {
		return
	}
	m.activeConnections.Dec()
}

// Client Metrics

// RecordClientRequest records a client round trip.
func (m *Metrics) RecordClientRequest(command string, failed bool, duration time.Duration) {
	if m == nil || m.clientRequests == nil {
		return
	}
	m.clientRequests.WithLabelValues(command, status(failed)).Inc()
	m.clientDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordClientConnect records a successful dial.
func (m *Metrics) RecordClientConnect() {
	if m == nil || m.clientReconnects == nil {
		return
	}
	m.clientReconnects.Inc()
}

// Bridge Metrics

// RecordBridgeOperation records a bridge operation.
func (m *Metrics) RecordBridgeOperation(mode, operation string, failed bool) {
	if m == nil || m.bridgeOperations == nil {
		return
	}
	m.bridgeOperations.WithLabelValues(mode, operation, status(failed)).Inc()
}

// SetBridgeMode marks mode as the active one.
func (m *Metrics) SetBridgeMode(mode string) {
	if m == nil || m.bridgeMode == nil {
		return
	}
	m.bridgeMode.Reset()
	m.bridgeMode.WithLabelValues(mode).Set(1)
}

// Error Metrics

// RecordError records a handled error by category and severity.
func (m *Metrics) RecordError(category, severity string) {
	if m == nil || m.errorsByCategory == nil {
		return
	}
	m.errorsByCategory.WithLabelValues(category, severity).Inc()
}

// RecordActivity records an activity log write.
func (m *Metrics) RecordActivity(failed bool) {
	if m == nil || m.activityRecords == nil {
		return
	}
	m.activityRecords.WithLabelValues(status(failed)).Inc()
}

// Registry returns the private registry, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Serve exposes the metrics endpoint until ctx is cancelled. It returns nil
// immediately when metrics are disabled or no listen address is configured.
func (m *Metrics) Serve(ctx context.Context) error {
	if m == nil || !m.config.Enabled || m.config.ListenAddress == "" {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
