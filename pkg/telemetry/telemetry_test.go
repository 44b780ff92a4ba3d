package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "empty service", mutate: func(c *Config) { c.ServiceName = "" }, wantErr: true},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: true},
		{name: "bad format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: true},
		{name: "bad exporter", mutate: func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "jaeger"
		}, wantErr: true},
		{name: "otlp without endpoint", mutate: func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "otlp"
		}, wantErr: true},
		{name: "otlp with endpoint", mutate: func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "otlp"
			c.Tracing.Endpoint = "localhost:4317"
		}},
		{name: "sampling out of range", mutate: func(c *Config) { c.Tracing.SamplingRate = 2 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"debug":   zerolog.DebugLevel,
		"warn":    zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"fatal":   zerolog.FatalLevel,
		"unknown": zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, LoggingConfig{Level: "info", Format: "json"})

	z := logger.Component("server")
	z.Debug().Msg("hidden")
	z.Info().Msg("visible")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["component"] != "server" {
		t.Errorf("component = %v, want server", entry["component"])
	}
	if entry["message"] != "visible" {
		t.Errorf("message = %v, want visible", entry["message"])
	}
}

func TestLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cadbridge.log")
	logger, err := NewLogger(LoggingConfig{Level: "warn", Format: "json", Output: path})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	ctx := logger.WithContext(context.Background())
	z := FromContext(ctx).Component("client")
	z.Info().Msg("filtered")
	z.Warn().Msg("kept")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if strings.Contains(string(data), "filtered") || !strings.Contains(string(data), "kept") {
		t.Errorf("log file = %q", data)
	}

	if _, err := NewLogger(LoggingConfig{Output: filepath.Join(path, "nested", "x.log")}); err == nil {
		t.Error("expected error for unwritable output")
	}
}

func TestFromContextWithoutLogger(t *testing.T) {
	z := FromContext(context.Background()).Zerolog()
	if z.GetLevel() != zerolog.Disabled {
		t.Errorf("fallback logger level = %v, want disabled", z.GetLevel())
	}
}

func TestMetricsDisabledIsNoop(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	m.RecordCommand("ping", false, time.Millisecond)
	m.ConnectionOpened()
	m.SetBridgeMode("simulation")

	var nilMetrics *Metrics
	nilMetrics.RecordError("network", "high")
	nilMetrics.RecordActivity(true)

	if m.Registry() != nil {
		t.Error("disabled metrics should have no registry")
	}
}

func TestMetricsRecord(t *testing.T) {
	cfg := DefaultConfig().Metrics
	m, err := NewMetrics(cfg)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	m.RecordCommand("ping", false, time.Millisecond)
	m.RecordCommand("ping", false, time.Millisecond)
	m.RecordCommand("ping", true, time.Millisecond)
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.SetBridgeMode("plugin")
	m.SetBridgeMode("simulation")
	m.RecordError("plugin_comm", "high")

	if got := testutil.ToFloat64(m.commandsHandled.WithLabelValues("ping", "success")); got != 2 {
		t.Errorf("successful commands = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.commandsHandled.WithLabelValues("ping", "error")); got != 1 {
		t.Errorf("failed commands = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.activeConnections); got != 1 {
		t.Errorf("active connections = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.bridgeMode); got != 1 {
		t.Errorf("bridge mode series = %d, want 1", got)
	}
	if got := testutil.ToFloat64(m.errorsByCategory.WithLabelValues("plugin_comm", "high")); got != 1 {
		t.Errorf("errors = %v, want 1", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "cadbridge_server_commands_total") {
		t.Errorf("metrics output missing command counter:\n%s", rec.Body.String())
	}
}
