package activity

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

// setupTestStore creates a migrated store in a temporary directory.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := Open(context.Background(), Config{
		Path: filepath.Join(t.TempDir(), "activity.db"),
	})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreLifecycle(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Error("expected error for empty path")
	}

	store, err := NewSQLiteStore(Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err == nil {
		t.Error("Migrate before Init should fail")
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}
	// A second migration is a no-op.
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("second migration failed: %v", err)
	}
	if err := store.HealthCheck(ctx); err != nil {
		t.Errorf("health check failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("failed to close store: %v", err)
	}
}

func TestRecordAndList(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	entry := NewEntry("create_sketch", map[string]any{"plane": "XY"}, map[string]any{"sketch_name": "Sketch1"})
	entry.Mode = "simulation"
	entry.Success = true
	entry.UserContext = map[string]any{"session": "abc"}
	if err := store.Record(ctx, entry); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	entries, err := store.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("List() returned %d entries, want 1", len(entries))
	}

	got := entries[0]
	if got.ID != entry.ID {
		t.Errorf("ID = %s, want %s", got.ID, entry.ID)
	}
	if got.Description != "Execute tool: create_sketch" {
		t.Errorf("Description = %q", got.Description)
	}
	if !got.Success || got.Mode != "simulation" {
		t.Errorf("Success = %v, Mode = %q", got.Success, got.Mode)
	}
	if got.Parameters["plane"] != "XY" {
		t.Errorf("Parameters = %v", got.Parameters)
	}
	if got.Result["sketch_name"] != "Sketch1" {
		t.Errorf("Result = %v", got.Result)
	}
	if got.UserContext["session"] != "abc" {
		t.Errorf("UserContext = %v", got.UserContext)
	}
	if d := got.Timestamp.Sub(entry.Timestamp); d > time.Millisecond || d < -time.Millisecond {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, entry.Timestamp)
	}
}

func TestListFilterAndOrder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		cmd := "create_circle"
		if i%2 == 0 {
			cmd = "create_rectangle"
		}
		e := NewEntry(cmd, map[string]any{"index": i}, nil)
		if err := store.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	tests := []struct {
		name    string
		filter  Filter
		want    int
		firstIx float64
	}{
		{name: "all", filter: Filter{}, want: 5, firstIx: 4},
		{name: "by action", filter: Filter{ActionType: "create_circle"}, want: 2, firstIx: 3},
		{name: "limit", filter: Filter{Limit: 2}, want: 2, firstIx: 4},
		{name: "offset", filter: Filter{Limit: 2, Offset: 4}, want: 1, firstIx: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := store.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(entries) != tt.want {
				t.Fatalf("List() returned %d entries, want %d", len(entries), tt.want)
			}
			if got := entries[0].Parameters["index"]; got != tt.firstIx {
				t.Errorf("first index = %v, want %v", got, tt.firstIx)
			}
		})
	}

	total, err := store.Count(ctx, "")
	if err != nil || total != 5 {
		t.Errorf("Count() = %d, %v; want 5", total, err)
	}
	circles, err := store.Count(ctx, "create_circle")
	if err != nil || circles != 2 {
		t.Errorf("Count(create_circle) = %d, %v; want 2", circles, err)
	}
}

func TestRecordAssignsID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	entry := &Entry{ActionType: "get_features"}
	if err := store.Record(ctx, entry); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if entry.ID == "" || entry.Timestamp.IsZero() {
		t.Errorf("Record() did not fill ID/Timestamp: %+v", entry)
	}

	// Duplicate ids are rejected.
	dup := &Entry{ID: entry.ID, ActionType: "get_features"}
	if err := store.Record(ctx, dup); err == nil {
		t.Error("expected error for duplicate id")
	}
}

func TestSinkFunc(t *testing.T) {
	var got []string
	sink := SinkFunc(func(_ context.Context, e *Entry) error {
		got = append(got, e.ActionType)
		return nil
	})

	for i := 0; i < 3; i++ {
		sink.Record(context.Background(), NewEntry(fmt.Sprintf("cmd%d", i), nil, nil))
	}
	if len(got) != 3 || got[2] != "cmd2" {
		t.Errorf("recorded %v", got)
	}
	if err := Discard.Record(context.Background(), NewEntry("x", nil, nil)); err != nil {
		t.Errorf("Discard.Record() error = %v", err)
	}
}
