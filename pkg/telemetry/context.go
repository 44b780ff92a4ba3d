package telemetry

import (
	"context"
	"errors"
	"fmt"
)

// Telemetry holds what a cadbridge process needs to observe itself.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Config  *Config
}

// NewTelemetry validates cfg and builds the logger, tracer and metrics.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	t := &Telemetry{Config: cfg}
	var err error
	if t.Logger, err = NewLogger(cfg.Logging); err != nil {
		return nil, err
	}
	if t.Tracer, err = NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment); err != nil {
		return nil, err
	}
	if t.Metrics, err = NewMetrics(cfg.Metrics); err != nil {
		return nil, err
	}
	return t, nil
}

// WithContext stores the process logger in ctx for FromContext.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	return t.Logger.WithContext(ctx)
}

// Shutdown flushes pending spans. Safe on a nil *Telemetry.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	err := t.Tracer.Shutdown(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
