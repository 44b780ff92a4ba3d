package faults

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestHandleReport(t *testing.T) {
	h := NewHandler()

	report := h.Handle(errors.New("connection reset by peer"), map[string]any{"command": "get_design_info"})

	if !strings.HasPrefix(report.ErrorID, "ERR_") {
		t.Errorf("ErrorID = %q, want ERR_ prefix", report.ErrorID)
	}
	if report.Category != CategoryPluginComm {
		t.Errorf("Category = %v, want %v", report.Category, CategoryPluginComm)
	}
	if report.Severity != SeverityHigh {
		t.Errorf("Severity = %v, want %v", report.Severity, SeverityHigh)
	}
	if !report.Recoverable {
		t.Error("plugin communication failures should be recoverable")
	}
	if report.UserMessage != UserMessage(CategoryPluginComm, SeverityHigh) {
		t.Errorf("UserMessage = %q", report.UserMessage)
	}
	if len(report.RecoverySuggestions) != 4 {
		t.Errorf("RecoverySuggestions = %v, want 4 entries", report.RecoverySuggestions)
	}
	if report.TechnicalDetails.ErrorType != string(CategoryPluginComm) {
		t.Errorf("TechnicalDetails.ErrorType = %q", report.TechnicalDetails.ErrorType)
	}

	fields := report.Fields()
	if fields["error"] != true {
		t.Errorf("Fields()[error] = %v, want true", fields["error"])
	}
	if _, err := json.Marshal(fields); err != nil {
		t.Errorf("Fields() not serializable: %v", err)
	}
}

func TestHandleUnrecoverable(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "validation", err: NewValidationError("width must be positive", nil)},
		{name: "unknown", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := NewHandler().Handle(tt.err, nil)
			if report.Recoverable {
				t.Errorf("Handle(%v).Recoverable = true, want false", tt.err)
			}
		})
	}
}

func TestUserMessageFallback(t *testing.T) {
	if got := UserMessage(CategoryValidation, SeverityHigh); got != fallbackUserMessage {
		t.Errorf("UserMessage() = %q, want fallback", got)
	}
	if got := RecoverySuggestions(CategoryConfig); len(got) != 1 || got[0] != "Contact technical support" {
		t.Errorf("RecoverySuggestions(config) = %v", got)
	}
}

func TestHistoryBounded(t *testing.T) {
	h := NewHandler(WithMaxHistory(100))

	ids := make([]string, 0, 150)
	for i := 0; i < 150; i++ {
		r := h.Handle(fmt.Errorf("failure %d", i), nil)
		ids = append(ids, r.ErrorID)
	}

	history := h.History()
	if len(history) != 100 {
		t.Fatalf("len(History()) = %d, want 100", len(history))
	}
	for i, rec := range history {
		if rec.ID != ids[50+i] {
			t.Fatalf("History()[%d].ID = %s, want %s", i, rec.ID, ids[50+i])
		}
	}
}

func TestHistoryConcurrent(t *testing.T) {
	h := NewHandler(WithMaxHistory(10))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h.Handle(fmt.Errorf("socket failure %d", i), nil)
		}(i)
	}
	wg.Wait()

	if got := len(h.History()); got != 10 {
		t.Errorf("len(History()) = %d, want 10", got)
	}
	if got := h.Summary().TotalErrors; got != 10 {
		t.Errorf("Summary().TotalErrors = %d, want 10", got)
	}
}

func TestSummary(t *testing.T) {
	h := NewHandler()

	if s := h.Summary(); s.TotalErrors != 0 || s.LastError != nil {
		t.Fatalf("empty Summary() = %+v", s)
	}

	h.Handle(errors.New("socket closed"), nil)
	h.Handle(errors.New("invalid width"), nil)
	h.Handle(errors.New("invalid height"), nil)

	// Move the clock past the summary window.
	h.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	last := h.Handle(New(CategoryConfig, SeverityCritical, "bad config", nil), nil)

	s := h.Summary()
	if s.TotalErrors != 4 {
		t.Errorf("TotalErrors = %d, want 4", s.TotalErrors)
	}
	if s.Categories[CategoryValidation] != 2 {
		t.Errorf("Categories[validation] = %d, want 2", s.Categories[CategoryValidation])
	}
	if s.Severities[SeverityHigh] != 1 {
		t.Errorf("Severities[high] = %d, want 1", s.Severities[SeverityHigh])
	}
	if s.RecentErrors != 1 || s.RecentCategories[CategoryConfig] != 1 {
		t.Errorf("RecentErrors = %d (%v), want only the config error", s.RecentErrors, s.RecentCategories)
	}
	if s.LastError == nil || s.LastError.ID != last.ErrorID {
		t.Errorf("LastError = %+v, want %s", s.LastError, last.ErrorID)
	}
}

func TestHandleStampsHandlingTime(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	handled := created.Add(90 * time.Minute)

	cached := NewPluginCommunicationError("Unable to connect to plugin", nil)
	cached.Timestamp = created

	h := NewHandler()
	h.now = func() time.Time { return handled }

	first := h.Handle(cached, nil)
	handled = handled.Add(time.Minute)
	second := h.Handle(cached, nil)

	if !first.Timestamp.Equal(created.Add(90*time.Minute)) || !second.Timestamp.Equal(handled) {
		t.Errorf("report timestamps = %v, %v; want handling times", first.Timestamp, second.Timestamp)
	}
	if !second.TechnicalDetails.Timestamp.Equal(handled) {
		t.Errorf("technical details timestamp = %v, want %v", second.TechnicalDetails.Timestamp, handled)
	}
	if s := h.Summary(); s.RecentErrors != 2 {
		t.Errorf("RecentErrors = %d, want 2", s.RecentErrors)
	}
}

func TestHandleLogLevels(t *testing.T) {
	tests := []struct {
		name      string
		severity  Severity
		wantLevel string
	}{
		{name: "low", severity: SeverityLow, wantLevel: "info"},
		{name: "medium", severity: SeverityMedium, wantLevel: "warn"},
		{name: "high", severity: SeverityHigh, wantLevel: "error"},
		{name: "critical", severity: SeverityCritical, wantLevel: "fatal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := NewHandler(WithLogger(zerolog.New(&buf)))
			h.Handle(New(CategoryUnknown, tt.severity, "something", nil), nil)

			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("log line not JSON: %v (%q)", err, buf.String())
			}
			if entry["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %v", entry["level"], tt.wantLevel)
			}
			if entry["component"] != "faults" {
				t.Errorf("component = %v, want faults", entry["component"])
			}
		})
	}
}

func TestObserver(t *testing.T) {
	var seen []Category
	h := NewHandler(WithObserver(func(r Record) { seen = append(seen, r.Category) }))

	h.Handle(errors.New("network unreachable"), nil)
	h.Handle(errors.New("design has no bodies"), nil)

	if len(seen) != 2 || seen[0] != CategoryPluginComm || seen[1] != CategoryHostAPI {
		t.Errorf("observer saw %v", seen)
	}
}
