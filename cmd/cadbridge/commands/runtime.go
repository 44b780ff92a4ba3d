package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/cadbridge/cadbridge/pkg/activity"
	"github.com/cadbridge/cadbridge/pkg/bridge"
	"github.com/cadbridge/cadbridge/pkg/config"
	"github.com/cadbridge/cadbridge/pkg/faults"
	"github.com/cadbridge/cadbridge/pkg/host"
	"github.com/cadbridge/cadbridge/pkg/plugin/client"
	"github.com/cadbridge/cadbridge/pkg/telemetry"
)

// runtime holds the process-wide collaborators built from the config.
type runtime struct {
	config    *config.Config
	telemetry *telemetry.Telemetry
	logger    zerolog.Logger
	errors    *faults.Handler
	store     *activity.SQLiteStore
}

func newRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	tcfg := cfg.Telemetry
	// The global level filters; the logger itself lets everything through
	// so a reloaded level takes effect.
	tcfg.Logging.Level = "trace"

	tel, err := telemetry.NewTelemetry(&tcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	metrics := tel.Metrics
	opts := append(cfg.ErrorHandlerOptions(),
		faults.WithLogger(tel.Logger.Component("errors")),
		faults.WithObserver(func(rec faults.Record) {
			metrics.RecordError(string(rec.Category), string(rec.Severity))
		}),
	)

	rt := &runtime{
		config:    cfg,
		telemetry: tel,
		logger:    tel.Logger.Zerolog(),
		errors:    faults.NewHandler(opts...),
	}

	if cfg.Activity.Enabled {
		store, err := openStore(ctx, cfg.Activity.Config)
		if err != nil {
			return nil, err
		}
		rt.store = store
	}
	return rt, nil
}

func openStore(ctx context.Context, cfg activity.Config) (*activity.SQLiteStore, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create activity directory: %w", err)
		}
	}
	store, err := activity.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open activity log: %w", err)
	}
	return store, nil
}

// Mode choices for commands that build a bridge.
const (
	modeAuto       = "auto"
	modePlugin     = "plugin"
	modeDirect     = "direct"
	modeSimulation = "simulation"
)

// newBridge builds and initializes a bridge. Direct mode runs against an
// in-memory workspace since this process is never inside a host.
func (r *runtime) newBridge(ctx context.Context, mode string) (*bridge.Bridge, error) {
	m := r.telemetry.Metrics
	pluginClient := client.New(r.config.Client,
		client.WithLogger(r.logger),
		client.WithErrorHandler(r.errors),
		client.WithMetrics(m),
	)

	opts := []bridge.Option{
		bridge.WithClient(pluginClient),
		bridge.WithPluginMode(r.config.Bridge.UsePluginMode),
		bridge.WithRetry(r.config.Bridge.Retry),
		bridge.WithDirectCommands(r.config.Bridge.DirectCommands...),
		bridge.WithErrorHandler(r.errors),
		bridge.WithLogger(r.logger),
		bridge.WithMetrics(m),
		bridge.WithTracer(r.telemetry.Tracer),
		bridge.WithUserContext(map[string]any{"source": "cli"}),
	}
	if r.store != nil {
		opts = append(opts, bridge.WithActivity(r.store))
	}

	switch mode {
	case modeAuto:
	case modePlugin:
		opts = append(opts, bridge.WithPluginMode(true))
	case modeDirect:
		opts = append(opts,
			bridge.WithPluginMode(false),
			bridge.WithLocator(host.Static(host.NewWorkspace())),
		)
	case modeSimulation:
		opts = append(opts, bridge.WithPluginMode(false))
	default:
		return nil, fmt.Errorf("unknown mode %q (want auto, plugin, direct or simulation)", mode)
	}

	b := bridge.New(opts...)
	b.Initialize(ctx)
	if mode != modeAuto && string(b.Mode()) != mode {
		b.Cleanup()
		return nil, fmt.Errorf("%s mode unavailable, bridge selected %s", mode, b.Mode())
	}
	return b, nil
}

func (r *runtime) Close(ctx context.Context) {
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Warn().Err(err).Msg("Failed to close activity log")
		}
	}
	if err := r.telemetry.Shutdown(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("Failed to shut down telemetry")
	}
}
