package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/cadbridge/cadbridge/pkg/activity"
	"github.com/cadbridge/cadbridge/pkg/host"
	"github.com/cadbridge/cadbridge/pkg/plugin/client"
	"github.com/cadbridge/cadbridge/pkg/plugin/handlers"
	"github.com/cadbridge/cadbridge/pkg/plugin/protocol"
	"github.com/cadbridge/cadbridge/pkg/plugin/server"
)

func startPlugin(t *testing.T, ws *host.Workspace) client.Config {
	t.Helper()
	srv := server.New(server.Config{Host: "127.0.0.1", Port: 0, IdleTimeout: 5 * time.Second}, handlers.NewTable(ws))
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(srv.Stop)
	return client.Config{
		Host:        "127.0.0.1",
		Port:        srv.Addr().(*net.TCPAddr).Port,
		DialTimeout: time.Second,
		Timeout:     2 * time.Second,
	}
}

func unreachableClient(t *testing.T) *client.Client {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error = %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return client.New(client.Config{Host: "127.0.0.1", Port: port, DialTimeout: 200 * time.Millisecond, Timeout: time.Second})
}

func initialized(t *testing.T, opts ...Option) *Bridge {
	t.Helper()
	b := New(opts...)
	if !b.Initialize(context.Background()) {
		t.Fatal("Initialize() = false")
	}
	t.Cleanup(b.Cleanup)
	return b
}

// faultyAPI wraps a workspace and fails DesignInfo.
type faultyAPI struct {
	*host.Workspace
	panics bool
}

func (f faultyAPI) DesignInfo(context.Context) (host.DesignInfo, error) {
	if f.panics {
		panic("host crashed")
	}
	return host.DesignInfo{}, errors.New("internal host failure")
}

func TestInitializeModeSelection(t *testing.T) {
	ws := host.NewWorkspace()
	cfg := startPlugin(t, host.NewWorkspace())

	tests := []struct {
		name string
		opts []Option
		want Mode
	}{
		{
			name: "plugin reachable",
			opts: []Option{WithClient(client.New(cfg)), WithLocator(host.Static(ws))},
			want: ModePlugin,
		},
		{
			name: "plugin unreachable falls back to direct",
			opts: []Option{WithClient(unreachableClient(t)), WithLocator(host.Static(ws))},
			want: ModeDirect,
		},
		{
			name: "plugin disabled",
			opts: []Option{WithClient(client.New(cfg)), WithPluginMode(false), WithLocator(host.Static(ws))},
			want: ModeDirect,
		},
		{
			name: "nothing available",
			opts: []Option{WithClient(unreachableClient(t))},
			want: ModeSimulation,
		},
		{
			name: "locator error",
			opts: []Option{WithLocator(func(context.Context) (host.API, error) { return nil, errors.New("boom") })},
			want: ModeSimulation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := initialized(t, tt.opts...)
			if got := b.Mode(); got != tt.want {
				t.Errorf("Mode() = %s, want %s", got, tt.want)
			}
			if !b.Initialized() {
				t.Error("Initialized() = false")
			}
		})
	}
}

func TestInitializeIsSticky(t *testing.T) {
	b := initialized(t)
	if b.Mode() != ModeSimulation {
		t.Fatalf("Mode() = %s", b.Mode())
	}
	b.locator = host.Static(host.NewWorkspace())
	b.Initialize(context.Background())
	if b.Mode() != ModeSimulation {
		t.Errorf("second Initialize changed mode to %s", b.Mode())
	}
}

func TestNotInitialized(t *testing.T) {
	b := New()
	res := b.GetDesignInfo(context.Background())
	if !res.Failed() || res.Error != MsgNotInitialized {
		t.Errorf("result = %+v", res)
	}
	if res.Report != nil {
		t.Error("uninitialized call must not produce a report")
	}
	if b.HasActiveDesign(context.Background()) {
		t.Error("HasActiveDesign() = true before Initialize")
	}
	if v := b.ValidateOperation(context.Background(), OperationSketch, ""); v.Valid || v.Error != MsgNotInitialized {
		t.Errorf("ValidateOperation() = %+v", v)
	}
}

func TestSimulationResults(t *testing.T) {
	b := initialized(t)
	ctx := context.Background()

	if !b.HasActiveDesign(ctx) || !b.RefreshDesign(ctx) {
		t.Error("simulation mode always has an active design")
	}

	tests := []struct {
		name  string
		res   Result
		key   string
		value any
	}{
		{"design", b.GetDesignInfo(ctx), "design_name", "Simulated Design"},
		{"hierarchy", b.GetComponentHierarchy(ctx), "total_components", 2},
		{"sketches", b.GetSketches(ctx), "total_count", 2},
		{"features", b.GetFeatures(ctx), "total_count", 2},
		{"sketch default name", b.CreateSketch(ctx, handlers.DefaultSketchParams()), "sketch_name", "Sketch1"},
		{"sketch named", b.CreateSketch(ctx, handlers.SketchParams{Plane: "XZ", Name: "Base"}), "plane", "XZ"},
		{"rectangle", b.CreateRectangle(ctx, handlers.RectangleParams{SketchName: "Base", Width: 20, Height: 5}), "width", 20.0},
		{"circle", b.CreateCircle(ctx, handlers.CircleParams{SketchName: "Base", Radius: 3}), "circle_created", true},
		{"extrude", b.CreateExtrude(ctx, handlers.ExtrudeParams{SketchName: "Base", Distance: 4, Operation: "join"}), "feature_name", "Extrude1"},
		{"line", b.DrawLine(ctx, handlers.LineParams{SketchName: "Base", EndX: 3, EndY: 4}), "length", 5.0},
		{"arc", b.DrawArc(ctx, handlers.ArcParams{SketchName: "Base", Radius: 2, EndAngle: 3}), "end_angle", 3.0},
		{"polygon", b.DrawPolygon(ctx, handlers.PolygonParams{SketchName: "Base", Radius: 2, Sides: 8}), "lines_count", 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.res.Failed() {
				t.Fatalf("failed: %v", tt.res.Map())
			}
			if got, _ := tt.res.Get(tt.key); got != tt.value {
				t.Errorf("%s = %v (%T), want %v", tt.key, got, got, tt.value)
			}
			if mode, _ := tt.res.Get("mode"); mode != "simulation" {
				t.Errorf("mode = %v", mode)
			}
		})
	}

	res := b.Execute(ctx, "teleport", nil)
	if res.Error != "Unknown command: teleport" {
		t.Errorf("unknown command error = %q", res.Error)
	}
}

func TestSimulationNumbersGeneratedNames(t *testing.T) {
	b := initialized(t)
	ctx := context.Background()

	for _, want := range []string{"Sketch1", "Sketch2", "Sketch3"} {
		res := b.CreateSketch(ctx, handlers.DefaultSketchParams())
		if got, _ := res.Get("sketch_name"); got != want {
			t.Errorf("sketch_name = %v, want %s", got, want)
		}
	}
	for _, want := range []string{"Extrude1", "Extrude2"} {
		res := b.CreateExtrude(ctx, handlers.ExtrudeParams{SketchName: "Sketch1", Distance: 1, Operation: "new"})
		if got, _ := res.Get("feature_name"); got != want {
			t.Errorf("feature_name = %v, want %s", got, want)
		}
	}

	other := initialized(t)
	if got, _ := other.CreateSketch(ctx, handlers.DefaultSketchParams()).Get("sketch_name"); got != "Sketch1" {
		t.Errorf("a second bridge should number from Sketch1, got %v", got)
	}
}

func TestDirectMode(t *testing.T) {
	ws := host.NewWorkspace(host.WithDesignName("Bracket"))
	b := initialized(t, WithLocator(host.Static(ws)))
	ctx := context.Background()

	res := b.GetDesignInfo(ctx)
	if res.Failed() {
		t.Fatalf("GetDesignInfo() failed: %v", res.Map())
	}
	if name, _ := res.Get("design_name"); name != "Bracket" {
		t.Errorf("design_name = %v", name)
	}
	if mode, _ := res.Get("mode"); mode != "direct" {
		t.Errorf("mode = %v", mode)
	}

	res = b.CreateSketch(ctx, handlers.SketchParams{Plane: "XY", Name: "Profile"})
	if name, _ := res.Get("sketch_name"); name != "Profile" {
		t.Errorf("sketch_name = %v", name)
	}

	gaps := []struct {
		res  Result
		want string
	}{
		{b.CreateRectangle(ctx, handlers.RectangleParams{SketchName: "Profile", Width: 1, Height: 1}), "Rectangle creation in direct API mode not yet implemented"},
		{b.CreateCircle(ctx, handlers.CircleParams{SketchName: "Profile", Radius: 1}), "Circle creation in direct API mode not yet implemented"},
		{b.CreateExtrude(ctx, handlers.ExtrudeParams{SketchName: "Profile", Distance: 1, Operation: "new"}), "Extrude creation in direct API mode not yet implemented"},
		{b.GetSketches(ctx), "Sketch retrieval in direct API mode not yet implemented"},
		{b.GetFeatures(ctx), "Feature retrieval in direct API mode not yet implemented"},
		{b.DrawLine(ctx, handlers.DefaultLineParams()), "Line drawing in direct API mode not yet implemented"},
	}
	for _, g := range gaps {
		if g.res.Error != g.want {
			t.Errorf("error = %q, want %q", g.res.Error, g.want)
		}
	}
}

func TestDirectModeFullCommandSet(t *testing.T) {
	ws := host.NewWorkspace()
	b := initialized(t,
		WithLocator(host.Static(ws)),
		WithDirectCommands(handlers.NewTable(ws).Names()...),
	)
	ctx := context.Background()

	b.CreateSketch(ctx, handlers.SketchParams{Plane: "XY", Name: "Profile"})
	b.CreateSketch(ctx, handlers.SketchParams{Plane: "XY", Name: "Empty"})
	if res := b.CreateRectangle(ctx, handlers.RectangleParams{SketchName: "Profile", Width: 4, Height: 2}); res.Failed() {
		t.Fatalf("CreateRectangle() failed: %v", res.Map())
	}

	res := b.CreateExtrude(ctx, handlers.ExtrudeParams{SketchName: "Profile", Distance: 3, Operation: "new"})
	if created, _ := res.Get("extrude_created"); created != true {
		t.Errorf("extrude result = %v", res.Map())
	}

	res = b.CreateCircle(ctx, handlers.CircleParams{SketchName: "Missing", Radius: 1})
	if res.Error != "Sketch not found: Missing" {
		t.Errorf("error = %q", res.Error)
	}
	if res.Report != nil {
		t.Error("domain failures are responses, not reports")
	}

	tests := []struct {
		kind   string
		sketch string
		valid  bool
		errMsg string
	}{
		{OperationSketch, "Profile", true, ""},
		{OperationSketch, "Missing", false, "Sketch not found: Missing"},
		{OperationExtrude, "Empty", false, "Sketch has no extrudable profiles"},
		{OperationExtrude, "", true, ""},
		{"other_operation", "Missing", true, ""},
	}
	for _, tt := range tests {
		v := b.ValidateOperation(ctx, tt.kind, tt.sketch)
		if v.Valid != tt.valid || v.Error != tt.errMsg {
			t.Errorf("ValidateOperation(%s, %q) = %+v", tt.kind, tt.sketch, v)
		}
	}
}

func TestDirectModeNoActiveDesign(t *testing.T) {
	ws := host.NewWorkspace(host.WithoutDesign())
	b := initialized(t, WithLocator(host.Static(ws)))
	ctx := context.Background()

	if b.HasActiveDesign(ctx) {
		t.Error("HasActiveDesign() = true without a design")
	}
	if v := b.ValidateOperation(ctx, OperationSketch, "Any"); v.Valid || v.Error != "No active design" {
		t.Errorf("ValidateOperation() = %+v", v)
	}
	if n := b.ErrorSummary().TotalErrors; n != 0 {
		t.Errorf("missing design recorded %d errors", n)
	}
}

func TestFailuresBecomeReports(t *testing.T) {
	tests := []struct {
		name   string
		panics bool
	}{
		{"error", false},
		{"panic", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := faultyAPI{Workspace: host.NewWorkspace(), panics: tt.panics}
			b := initialized(t, WithLocator(host.Static(api)))

			res := b.GetDesignInfo(context.Background())
			if !res.Failed() || res.Report == nil {
				t.Fatalf("result = %+v", res)
			}
			fields := res.Map()
			if fields["error"] != true {
				t.Errorf("error field = %v", fields["error"])
			}
			if fields["error_id"] == "" || fields["user_message"] == "" {
				t.Errorf("report fields missing: %v", fields)
			}

			raw, err := json.Marshal(res)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			var decoded map[string]any
			if err := json.Unmarshal(raw, &decoded); err != nil || decoded["error"] != true {
				t.Errorf("encoded result = %s", raw)
			}

			if n := b.ErrorSummary().TotalErrors; n != 1 {
				t.Errorf("TotalErrors = %d, want 1", n)
			}
		})
	}
}

func TestPluginMode(t *testing.T) {
	ws := host.NewWorkspace(host.WithDesignName("Housing"))
	c := client.New(startPlugin(t, ws))
	b := initialized(t, WithClient(c), WithRetry(true))
	ctx := context.Background()

	if b.Mode() != ModePlugin {
		t.Fatalf("Mode() = %s", b.Mode())
	}
	if !b.HasActiveDesign(ctx) || !b.RefreshDesign(ctx) {
		t.Error("plugin should report an active design")
	}

	res := b.GetDesignInfo(ctx)
	if name, _ := res.Get("design_name"); name != "Housing" {
		t.Errorf("design_name = %v", name)
	}

	res = b.CreateSketch(ctx, handlers.SketchParams{Plane: "YZ"})
	if name, _ := res.Get("sketch_name"); name != "Sketch1" {
		t.Errorf("sketch_name = %v", name)
	}
	res = b.DrawPolygon(ctx, handlers.PolygonParams{SketchName: "Sketch1", Radius: 4, Sides: 5})
	if n, _ := res.Get("lines_count"); n != 5.0 {
		t.Errorf("lines_count = %v", n)
	}

	// Plugin mode does not validate sketches locally.
	if v := b.ValidateOperation(ctx, OperationExtrude, "Missing"); !v.Valid || v.Mode != ModePlugin {
		t.Errorf("ValidateOperation() = %+v", v)
	}

	b.Cleanup()
	if c.Connected() {
		t.Error("Cleanup() should disconnect the client")
	}
}

func TestActivityRecording(t *testing.T) {
	var (
		mu      sync.Mutex
		entries []*activity.Entry
	)
	sink := activity.SinkFunc(func(_ context.Context, e *activity.Entry) error {
		mu.Lock()
		defer mu.Unlock()
		entries = append(entries, e)
		return nil
	})

	b := initialized(t, WithActivity(sink), WithUserContext(map[string]any{"session": "s1"}))
	ctx := context.Background()
	b.CreateCircle(ctx, handlers.CircleParams{SketchName: "Sketch1", Radius: 2})
	b.Execute(ctx, "teleport", nil)

	mu.Lock()
	defer mu.Unlock()
	if len(entries) != 2 {
		t.Fatalf("recorded %d entries, want 2", len(entries))
	}
	first := entries[0]
	if first.ActionType != protocol.CommandCreateCircle || !first.Success || first.Mode != "simulation" {
		t.Errorf("first entry = %+v", first)
	}
	if first.Parameters["sketch_name"] != "Sketch1" || first.Result["circle_created"] != true {
		t.Errorf("first entry payload = %v / %v", first.Parameters, first.Result)
	}
	if first.UserContext["session"] != "s1" {
		t.Errorf("user context = %v", first.UserContext)
	}
	if entries[1].Success {
		t.Error("unknown command recorded as success")
	}
}

func TestActivitySinkFailureDoesNotFailOperation(t *testing.T) {
	sink := activity.SinkFunc(func(context.Context, *activity.Entry) error {
		return errors.New("disk full")
	})
	b := initialized(t, WithActivity(sink))
	if res := b.GetFeatures(context.Background()); res.Failed() {
		t.Errorf("GetFeatures() failed: %v", res.Map())
	}
}

func TestCleanup(t *testing.T) {
	ws := host.NewWorkspace()
	b := New(WithLocator(host.Static(ws)))
	ctx := context.Background()
	b.Initialize(ctx)
	if b.Mode() != ModeDirect {
		t.Fatalf("Mode() = %s", b.Mode())
	}

	b.Cleanup()
	if b.Initialized() || b.Mode() != ModeUnknown {
		t.Errorf("after Cleanup: initialized=%v mode=%s", b.Initialized(), b.Mode())
	}
	if res := b.GetDesignInfo(ctx); res.Error != MsgNotInitialized {
		t.Errorf("error = %q", res.Error)
	}

	b.Initialize(ctx)
	defer b.Cleanup()
	if res := b.GetDesignInfo(ctx); res.Failed() {
		t.Errorf("GetDesignInfo() after re-initialize failed: %v", res.Map())
	}
}
