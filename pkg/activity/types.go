// Package activity records the operations performed through the bridge in a
// SQLite-backed log with embedded schema migrations.
package activity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry is one completed bridge operation.
type Entry struct {
	ID          string         `json:"id"`
	ActionType  string         `json:"action_type"`
	Description string         `json:"description"`
	Mode        string         `json:"mode,omitempty"`
	Success     bool           `json:"success"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Result      map[string]any `json:"result,omitempty"`
	UserContext map[string]any `json:"user_context,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// NewEntry creates an entry for the named command with a fresh id.
func NewEntry(command string, params, result map[string]any) *Entry {
	return &Entry{
		ID:          uuid.New().String(),
		ActionType:  command,
		Description: "Execute tool: " + command,
		Parameters:  params,
		Result:      result,
		Timestamp:   time.Now().UTC(),
	}
}

// Filter selects entries for List.
type Filter struct {
	// ActionType restricts the listing to one command when non-empty.
	ActionType string

	// Limit caps the number of entries; zero means DefaultLimit.
	Limit  int
	Offset int
}

// DefaultLimit is the listing size used when Filter.Limit is zero.
const DefaultLimit = 50

// Sink receives completed operations.
type Sink interface {
	Record(ctx context.Context, entry *Entry) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, entry *Entry) error

// Record calls f(ctx, entry).
func (f SinkFunc) Record(ctx context.Context, entry *Entry) error {
	return f(ctx, entry)
}

// Discard is a Sink that drops every entry.
var Discard Sink = SinkFunc(func(context.Context, *Entry) error { return nil })
