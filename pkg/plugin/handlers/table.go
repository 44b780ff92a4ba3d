// Package handlers maps plugin command names to functions that drive a host
// API and shape the replies.
package handlers

import (
	"context"
	"errors"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/cadbridge/cadbridge/pkg/host"
	"github.com/cadbridge/cadbridge/pkg/plugin/protocol"
)

// HandlerFunc executes one command. A returned error is reported to the
// caller as an execution failure; domain failures are returned as a failed
// Response instead.
type HandlerFunc func(ctx context.Context, params map[string]any) (protocol.Response, error)

// Table is the read-only command dispatch table. It is safe for concurrent
// use; host calls are serialized through the configured executor.
type Table struct {
	api      host.API
	executor *host.Executor
	validate *validator.Validate
	handlers map[string]HandlerFunc
}

// Option configures a Table.
type Option func(*Table)

// WithExecutor serializes every handler through e.
func WithExecutor(e *host.Executor) Option {
	return func(t *Table) {
		t.executor = e
	}
}

// NewTable builds the dispatch table for api.
func NewTable(api host.API, opts ...Option) *Table {
	t := &Table{
		api:      api,
		validate: newValidator(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.handlers = map[string]HandlerFunc{
		protocol.CommandGetDesignInfo:         t.getDesignInfo,
		protocol.CommandGetComponentHierarchy: t.getComponentHierarchy,
		protocol.CommandCreateSketch:          t.createSketch,
		protocol.CommandCreateRectangle:       t.createRectangle,
		protocol.CommandCreateCircle:          t.createCircle,
		protocol.CommandCreateExtrude:         t.createExtrude,
		protocol.CommandGetSketches:           t.getSketches,
		protocol.CommandGetFeatures:           t.getFeatures,
		protocol.CommandDrawLine:              t.drawLine,
		protocol.CommandDrawArc:               t.drawArc,
		protocol.CommandDrawPolygon:           t.drawPolygon,
	}
	return t
}

// Lookup returns the handler registered for name.
func (t *Table) Lookup(name string) (HandlerFunc, bool) {
	h, ok := t.handlers[name]
	return h, ok
}

// Names returns the registered command names, sorted.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.handlers))
	for name := range t.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs cmd and always returns a response: unknown commands, handler
// errors and handler panics become error responses.
func (t *Table) Dispatch(ctx context.Context, cmd *protocol.Command) (resp protocol.Response) {
	if cmd == nil || cmd.Validate() != nil {
		return protocol.Failure(protocol.ErrMissingCommand.Error())
	}
	h, ok := t.handlers[cmd.Name]
	if !ok {
		return protocol.Failure("Unknown command: %s", cmd.Name)
	}

	defer func() {
		if r := recover(); r != nil {
			resp = protocol.Failure("Command '%s' execution failed: %v", cmd.Name, r)
		}
	}()

	var err error
	resp, err = host.Call(ctx, t.executor, func(ctx context.Context) (protocol.Response, error) {
		return h(ctx, cmd.Params)
	})
	if err != nil {
		return protocol.Failure("Command '%s' execution failed: %v", cmd.Name, err)
	}
	return resp
}

// hostFailure turns the host's domain errors into failed responses and passes
// anything else through as an execution error.
func hostFailure(err error, subject string) (protocol.Response, error) {
	switch {
	case errors.Is(err, host.ErrNoActiveDesign):
		return protocol.Failure("No active product"), nil
	case errors.Is(err, host.ErrSketchNotFound):
		return protocol.Failure("Sketch not found: %s", subject), nil
	case errors.Is(err, host.ErrNoProfiles):
		return protocol.Failure("No extrudable profiles in sketch"), nil
	case errors.Is(err, host.ErrUnsupportedPlane):
		return protocol.Failure("Unsupported plane: %s", subject), nil
	default:
		return protocol.Response{}, err
	}
}
