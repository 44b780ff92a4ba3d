package telemetry

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Config is the telemetry section of the cadbridge configuration file.
type Config struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	Environment    string `yaml:"environment"`

	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig selects the level, encoding and destination of log lines.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error, fatal
	Format string `yaml:"format"` // console or json
	// Output is stderr, stdout or a file path.
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
	TimeFormat   string `yaml:"time_format"` // rfc3339, unix or unixms
}

// TracingConfig controls span export. With Enabled false spans are still
// created but never leave the process.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"` // otlp, stdout or none
	// Endpoint is the OTLP gRPC collector, e.g. "localhost:4317".
	Endpoint           string            `yaml:"endpoint"`
	Insecure           bool              `yaml:"insecure"`
	Headers            map[string]string `yaml:"headers"`
	SamplingRate       float64           `yaml:"sampling_rate"`
	MaxExportBatchSize int               `yaml:"max_export_batch_size"`
	ExportTimeout      time.Duration     `yaml:"export_timeout"`
}

// MetricsConfig controls the Prometheus collectors. ListenAddress empty
// keeps the collectors in memory without an HTTP endpoint.
type MetricsConfig struct {
	Enabled                 bool      `yaml:"enabled"`
	ListenAddress           string    `yaml:"listen_address"`
	Path                    string    `yaml:"path"`
	Namespace               string    `yaml:"namespace"`
	DefaultHistogramBuckets []float64 `yaml:"buckets"`
}

var (
	logLevels     = []string{"trace", "debug", "info", "warn", "error", "fatal"}
	logFormats    = []string{"console", "json"}
	spanExporters = []string{"otlp", "stdout", "none"}
)

// DefaultConfig returns console logging at info, tracing off and metrics
// collected without an endpoint.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "cadbridge",
		ServiceVersion: "dev",
		Environment:    "development",
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			Output:     "stderr",
			TimeFormat: "rfc3339",
		},
		Tracing: TracingConfig{
			Exporter:           "none",
			Insecure:           true,
			Headers:            map[string]string{},
			SamplingRate:       1.0,
			MaxExportBatchSize: 512,
			ExportTimeout:      30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Path:      "/metrics",
			Namespace: "cadbridge",
			// Commands against a live design range from a millisecond to
			// tens of seconds for large extrudes.
			DefaultHistogramBuckets: []float64{
				0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
			},
		},
	}
}

// Validate reports every problem found rather than stopping at the first.
func (c *Config) Validate() error {
	var errs []error
	if c.ServiceName == "" {
		errs = append(errs, errors.New("service name is required"))
	}
	if !slices.Contains(logLevels, c.Logging.Level) {
		errs = append(errs, fmt.Errorf("invalid log level: %s", c.Logging.Level))
	}
	if !slices.Contains(logFormats, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("invalid log format: %s (must be 'console' or 'json')", c.Logging.Format))
	}
	if c.Tracing.Enabled {
		switch {
		case !slices.Contains(spanExporters, c.Tracing.Exporter):
			errs = append(errs, fmt.Errorf("invalid trace exporter: %s", c.Tracing.Exporter))
		case c.Tracing.Exporter == "otlp" && c.Tracing.Endpoint == "":
			errs = append(errs, errors.New("otlp exporter requires an endpoint"))
		}
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		errs = append(errs, fmt.Errorf("trace sampling rate must be between 0 and 1, got: %g", c.Tracing.SamplingRate))
	}
	return errors.Join(errs...)
}
