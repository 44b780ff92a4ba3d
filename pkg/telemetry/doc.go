// Package telemetry provides logging, tracing and metrics for cadbridge
// processes.
//
// Structured logging uses zerolog, tracing uses OpenTelemetry with an OTLP or
// stdout exporter, and metrics are Prometheus collectors held in a private
// registry.
//
// # Usage
//
// Initialize telemetry at startup:
//
//	cfg := telemetry.DefaultConfig()
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	g.Go(func() error { return tel.Metrics.Serve(ctx) })
//
// Library packages take a zerolog.Logger rather than *Logger:
//
//	srv := server.New(cfg, table, server.WithLogger(tel.Logger.Component("server")))
//
// # Metrics
//
// Metric names are prefixed with the configured namespace:
//
//	cadbridge_server_commands_total{command,status}
//	cadbridge_server_command_duration_seconds{command}
//	cadbridge_server_connections_total
//	cadbridge_server_active_connections
//	cadbridge_client_requests_total{command,status}
//	cadbridge_client_request_duration_seconds{command}
//	cadbridge_client_connects_total
//	cadbridge_bridge_operations_total{mode,operation,status}
//	cadbridge_bridge_mode{mode}
//	cadbridge_errors_total{category,severity}
//	cadbridge_activity_records_total{status}
//
// All recording methods are safe on a nil *Metrics and on one built with
// metrics disabled.
//
// # Tracing
//
// Spans are started per dispatched command and per bridge operation:
//
//	ctx, span := tracer.StartCommandSpan(ctx, "create_sketch")
//	defer span.End()
//	if err != nil {
//	    telemetry.RecordError(span, err)
//	}
package telemetry
