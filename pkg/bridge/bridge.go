// Package bridge is the automation-side facade over a CAD host. At
// initialization it selects one of three modes, in order: talk to the plugin
// over its socket, call an in-process host API directly, or answer from
// canned simulated data. The selection is final until Cleanup.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cadbridge/cadbridge/pkg/activity"
	"github.com/cadbridge/cadbridge/pkg/faults"
	"github.com/cadbridge/cadbridge/pkg/host"
	"github.com/cadbridge/cadbridge/pkg/plugin/handlers"
	"github.com/cadbridge/cadbridge/pkg/plugin/protocol"
	"github.com/cadbridge/cadbridge/pkg/telemetry"
)

// Mode is the execution strategy selected by Initialize.
type Mode string

const (
	ModeUnknown    Mode = "unknown"
	ModeDirect     Mode = "direct"
	ModePlugin     Mode = "plugin"
	ModeSimulation Mode = "simulation"
)

// MsgNotInitialized is returned by operations called before Initialize.
const MsgNotInitialized = "Bridge not initialized"

// PluginClient is the part of the plugin client the bridge uses.
type PluginClient interface {
	Connect(ctx context.Context) error
	Disconnect()
	TestConnection(ctx context.Context) bool
	Send(ctx context.Context, name string, params map[string]any) protocol.Response
	SendWithRetry(ctx context.Context, name string, params map[string]any) protocol.Response
}

// DefaultDirectCommands are the commands implemented in direct mode.
var DefaultDirectCommands = []string{
	protocol.CommandGetDesignInfo,
	protocol.CommandGetComponentHierarchy,
	protocol.CommandCreateSketch,
}

// Result is the outcome of a bridge operation: either the response, or the
// report of a failure that was raised while computing it.
type Result struct {
	protocol.Response
	Report *faults.Report
}

// Failed reports whether the operation did not succeed.
func (r Result) Failed() bool {
	return r.Report != nil || r.Response.Failed()
}

// Map returns the caller-facing form: the response fields, or the report
// fields carrying "error": true.
func (r Result) Map() map[string]any {
	if r.Report != nil {
		return r.Report.Fields()
	}
	return r.Response.Map()
}

// MarshalJSON encodes the caller-facing form.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}

// Bridge routes operations to the plugin, the host API or the simulator.
type Bridge struct {
	client         PluginClient
	usePlugin      bool
	locator        host.Locator
	errors         *faults.Handler
	sink           activity.Sink
	retry          bool
	directCommands map[string]bool
	userContext    map[string]any
	logger         zerolog.Logger
	metrics        *telemetry.Metrics
	tracer         *telemetry.Tracer
	sim            simulator

	mu          sync.RWMutex
	mode        Mode
	initialized bool
	api         host.API
	table       *handlers.Table
	executor    *host.Executor
	ownExecutor bool
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithClient sets the plugin client tried first by Initialize.
func WithClient(c PluginClient) Option {
	return func(b *Bridge) {
		b.client = c
	}
}

// WithPluginMode enables or disables the plugin attempt. Enabled by default.
func WithPluginMode(enabled bool) Option {
	return func(b *Bridge) {
		b.usePlugin = enabled
	}
}

// WithLocator sets how an in-process host API is found.
func WithLocator(l host.Locator) Option {
	return func(b *Bridge) {
		if l != nil {
			b.locator = l
		}
	}
}

// WithExecutor serializes direct host calls through e. Without it the bridge
// starts its own executor when direct mode is selected.
func WithExecutor(e *host.Executor) Option {
	return func(b *Bridge) {
		b.executor = e
	}
}

// WithErrorHandler sets the handler failures are reported to.
func WithErrorHandler(h *faults.Handler) Option {
	return func(b *Bridge) {
		if h != nil {
			b.errors = h
		}
	}
}

// WithActivity forwards every completed operation to sink.
func WithActivity(sink activity.Sink) Option {
	return func(b *Bridge) {
		b.sink = sink
	}
}

// WithRetry retries recoverable failures before reporting them.
func WithRetry(enabled bool) Option {
	return func(b *Bridge) {
		b.retry = enabled
	}
}

// WithDirectCommands replaces the set of commands implemented in direct mode.
func WithDirectCommands(names ...string) Option {
	return func(b *Bridge) {
		b.directCommands = make(map[string]bool, len(names))
		for _, n := range names {
			b.directCommands[n] = true
		}
	}
}

// WithUserContext attaches ctx to every activity entry.
func WithUserContext(ctx map[string]any) Option {
	return func(b *Bridge) {
		b.userContext = ctx
	}
}

// WithLogger sets the bridge logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(b *Bridge) {
		b.logger = logger.With().Str("component", "bridge").Logger()
	}
}

// WithMetrics records operations and the selected mode.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(b *Bridge) {
		b.metrics = m
	}
}

// WithTracer starts a span per operation.
func WithTracer(t *telemetry.Tracer) Option {
	return func(b *Bridge) {
		b.tracer = t
	}
}

// New creates an uninitialized bridge.
func New(opts ...Option) *Bridge {
	b := &Bridge{
		usePlugin: true,
		locator:   host.Unavailable,
		logger:    zerolog.Nop(),
		mode:      ModeUnknown,
	}
	WithDirectCommands(DefaultDirectCommands...)(b)
	for _, opt := range opts {
		opt(b)
	}
	if b.errors == nil {
		b.errors = faults.NewHandler(faults.WithLogger(b.logger))
	}
	return b
}

// Mode returns the selected mode.
func (b *Bridge) Mode() Mode {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.mode
}

// Initialized reports whether a mode has been selected.
func (b *Bridge) Initialized() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.initialized
}

// Initialize selects a mode: plugin, then direct, then simulation. It always
// ends up initialized; calling it again keeps the selected mode.
func (b *Bridge) Initialize(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized {
		return true
	}

	switch {
	case b.usePlugin && b.client != nil && b.initPlugin(ctx):
		b.mode = ModePlugin
	case b.initDirect(ctx):
		b.mode = ModeDirect
	default:
		b.logger.Warn().Msg("Running in simulation mode")
		b.mode = ModeSimulation
	}

	b.initialized = true
	b.metrics.SetBridgeMode(string(b.mode))
	b.logger.Info().Str("mode", string(b.mode)).Msg("bridge initialized")
	return true
}

func (b *Bridge) initPlugin(ctx context.Context) bool {
	ok, report := faults.Safe(ctx, b.errors, func(ctx context.Context) (bool, error) {
		if err := b.client.Connect(ctx); err != nil {
			return false, err
		}
		if !b.client.TestConnection(ctx) {
			return false, nil
		}
		return true, nil
	}, map[string]any{"operation": "bridge_initialization", "mode": string(ModePlugin)})

	if !ok {
		b.client.Disconnect()
		ev := b.logger.Warn()
		if report != nil {
			ev = ev.Str("error_id", report.ErrorID)
		}
		ev.Msg("Plugin communication mode initialization failed, trying other modes")
	}
	return ok
}

func (b *Bridge) initDirect(ctx context.Context) bool {
	api, report := faults.Safe(ctx, b.errors, func(ctx context.Context) (host.API, error) {
		api, err := b.locator(ctx)
		if errors.Is(err, host.ErrHostUnavailable) {
			// Not running inside a host; nothing to report.
			return nil, nil
		}
		return api, err
	}, map[string]any{"operation": "bridge_initialization", "mode": string(ModeDirect)})

	if report != nil || api == nil {
		return false
	}
	b.attach(api)
	return true
}

// attach binds the direct-mode command table to api. Callers hold b.mu.
func (b *Bridge) attach(api host.API) {
	if b.executor == nil {
		b.executor = host.NewExecutor(16)
		b.ownExecutor = true
	}
	b.api = api
	b.table = handlers.NewTable(api, handlers.WithExecutor(b.executor))
}

// Execute runs the named command in the selected mode. Failures raised while
// computing the result, panics included, are reported through the error
// handler and returned as a failed Result.
func (b *Bridge) Execute(ctx context.Context, name string, params map[string]any) Result {
	b.mu.RLock()
	mode, initialized := b.mode, b.initialized
	b.mu.RUnlock()

	if !initialized {
		return Result{Response: protocol.Failure(MsgNotInitialized)}
	}
	if params == nil {
		params = map[string]any{}
	}

	ctx, span := b.tracer.StartBridgeSpan(ctx, string(mode), name)
	defer span.End()

	errCtx := map[string]any{"operation": name, "mode": string(mode)}
	op := func(ctx context.Context) (protocol.Response, error) {
		return b.dispatch(ctx, mode, name, params)
	}

	var result Result
	if b.retry {
		result.Response, result.Report = faults.Guard(ctx, b.errors, op, errCtx)
	} else {
		result.Response, result.Report = faults.Safe(ctx, b.errors, op, errCtx)
	}

	if result.Failed() {
		msg := result.Error
		if result.Report != nil {
			msg = result.Report.Message
			span.SetAttributes(telemetry.AttrErrorCategory.String(string(result.Report.Category)))
		}
		telemetry.RecordFailure(span, msg)
	} else {
		telemetry.RecordSuccess(span)
	}
	b.metrics.RecordBridgeOperation(string(mode), name, result.Failed())
	b.record(ctx, mode, name, params, result)
	return result
}

func (b *Bridge) dispatch(ctx context.Context, mode Mode, name string, params map[string]any) (protocol.Response, error) {
	switch mode {
	case ModePlugin:
		if b.retry {
			return b.client.SendWithRetry(ctx, name, params), nil
		}
		return b.client.Send(ctx, name, params), nil
	case ModeDirect:
		return b.direct(ctx, name, params)
	case ModeSimulation:
		return b.sim.execute(name, params)
	default:
		return protocol.Failure(MsgNotInitialized), nil
	}
}

// direct runs a command table handler on the host executor. Unlike the
// plugin server's dispatch, errors and panics are returned to the caller.
func (b *Bridge) direct(ctx context.Context, name string, params map[string]any) (protocol.Response, error) {
	b.mu.RLock()
	table, executor := b.table, b.executor
	b.mu.RUnlock()

	h, ok := table.Lookup(name)
	if !ok {
		return protocol.Failure("Unknown command: %s", name), nil
	}
	if !b.directCommands[name] {
		return protocol.Failure("%s in direct API mode not yet implemented", gapLabel(name)), nil
	}

	resp, err := host.Call(ctx, executor, func(ctx context.Context) (protocol.Response, error) {
		return h(ctx, params)
	})
	if err != nil {
		return resp, err
	}
	if !resp.Failed() {
		resp = resp.With("mode", string(ModeDirect))
	}
	return resp, nil
}

var gapLabels = map[string]string{
	protocol.CommandGetDesignInfo:         "Design info retrieval",
	protocol.CommandGetComponentHierarchy: "Component hierarchy retrieval",
	protocol.CommandCreateSketch:          "Sketch creation",
	protocol.CommandCreateRectangle:       "Rectangle creation",
	protocol.CommandCreateCircle:          "Circle creation",
	protocol.CommandCreateExtrude:         "Extrude creation",
	protocol.CommandGetSketches:           "Sketch retrieval",
	protocol.CommandGetFeatures:           "Feature retrieval",
	protocol.CommandDrawLine:              "Line drawing",
	protocol.CommandDrawArc:               "Arc drawing",
	protocol.CommandDrawPolygon:           "Polygon drawing",
}

func gapLabel(name string) string {
	if label, ok := gapLabels[name]; ok {
		return label
	}
	return name
}

// record forwards a completed operation to the activity sink.
func (b *Bridge) record(ctx context.Context, mode Mode, name string, params map[string]any, result Result) {
	if b.sink == nil {
		return
	}
	entry := activity.NewEntry(name, params, result.Map())
	entry.Mode = string(mode)
	entry.Success = !result.Failed()
	entry.UserContext = b.userContext

	err := b.sink.Record(ctx, entry)
	b.metrics.RecordActivity(err != nil)
	if err != nil {
		b.logger.Warn().Err(err).Str("command", name).Msg("failed to record activity")
	}
}
