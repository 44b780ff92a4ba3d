package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/cadbridge/cadbridge/pkg/faults"
	"github.com/cadbridge/cadbridge/pkg/host"
	"github.com/cadbridge/cadbridge/pkg/plugin/protocol"
)

// Operation kinds accepted by ValidateOperation.
const (
	OperationSketch  = "sketch_operation"
	OperationExtrude = "extrude_operation"
)

// Validation is the outcome of ValidateOperation.
type Validation struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
	Mode  Mode   `json:"mode,omitempty"`
}

// HasActiveDesign reports whether the host has an open design. Simulation
// mode always has one.
func (b *Bridge) HasActiveDesign(ctx context.Context) bool {
	b.mu.RLock()
	mode, api, executor := b.mode, b.api, b.executor
	b.mu.RUnlock()

	active, _ := faults.Safe(ctx, b.errors, func(ctx context.Context) (bool, error) {
		switch mode {
		case ModePlugin:
			return !b.client.Send(ctx, protocol.CommandGetDesignInfo, nil).Failed(), nil
		case ModeDirect:
			_, err := host.Call(ctx, executor, api.DesignInfo)
			if err != nil && !isDomainError(err) {
				return false, err
			}
			return err == nil, nil
		case ModeSimulation:
			return true, nil
		default:
			return false, nil
		}
	}, map[string]any{"operation": "check_active_design"})
	return active
}

// RefreshDesign re-checks the host. In plugin mode it tests the connection;
// in direct mode it locates the host API again.
func (b *Bridge) RefreshDesign(ctx context.Context) bool {
	b.mu.RLock()
	mode := b.mode
	b.mu.RUnlock()

	switch mode {
	case ModePlugin:
		ok, _ := faults.Safe(ctx, b.errors, func(ctx context.Context) (bool, error) {
			return b.client.TestConnection(ctx), nil
		}, map[string]any{"operation": "refresh_design"})
		return ok
	case ModeDirect:
		api, report := faults.Safe(ctx, b.errors, func(ctx context.Context) (host.API, error) {
			return b.locator(ctx)
		}, map[string]any{"operation": "refresh_design"})
		if report != nil || api == nil {
			return false
		}
		b.mu.Lock()
		b.attach(api)
		b.mu.Unlock()
		return b.HasActiveDesign(ctx)
	case ModeSimulation:
		return true
	default:
		return false
	}
}

// ValidateOperation checks whether an operation of kind can run now. In
// direct mode the named sketch is looked up as well.
func (b *Bridge) ValidateOperation(ctx context.Context, kind, sketchName string) Validation {
	b.mu.RLock()
	mode, initialized, api, executor := b.mode, b.initialized, b.api, b.executor
	b.mu.RUnlock()

	if !initialized {
		return Validation{Error: MsgNotInitialized}
	}
	if !b.HasActiveDesign(ctx) {
		return Validation{Error: "No active design"}
	}
	if mode != ModeDirect || sketchName == "" || (kind != OperationSketch && kind != OperationExtrude) {
		return Validation{Valid: true, Mode: mode}
	}

	sketches, report := faults.Safe(ctx, b.errors, func(ctx context.Context) ([]host.Sketch, error) {
		return host.Call(ctx, executor, api.Sketches)
	}, map[string]any{"operation": "validate_operation", "operation_type": kind})
	if report != nil {
		return Validation{Error: report.UserMessage}
	}

	for _, s := range sketches {
		if s.Name != sketchName {
			continue
		}
		if kind == OperationExtrude && s.Profiles == 0 {
			return Validation{Error: "Sketch has no extrudable profiles"}
		}
		return Validation{Valid: true, Mode: mode}
	}
	return Validation{Error: fmt.Sprintf("Sketch not found: %s", sketchName)}
}

// Cleanup disconnects the plugin client and marks the bridge uninitialized.
func (b *Bridge) Cleanup() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.client != nil {
		b.client.Disconnect()
	}
	if b.ownExecutor {
		b.executor.Close()
		b.executor = nil
		b.ownExecutor = false
	}
	b.api = nil
	b.table = nil
	b.initialized = false
	b.mode = ModeUnknown
	b.logger.Info().Msg("Bridge resources cleaned up")
}

// ErrorSummary returns the error handler's summary.
func (b *Bridge) ErrorSummary() faults.Summary {
	return b.errors.Summary()
}

// Errors returns the error handler.
func (b *Bridge) Errors() *faults.Handler {
	return b.errors
}

func isDomainError(err error) bool {
	return errors.Is(err, host.ErrNoActiveDesign)
}
