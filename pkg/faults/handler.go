package faults

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultMaxHistory    = 100
	DefaultSummaryWindow = time.Hour
)

// Record is one handled failure kept in the handler's history.
type Record struct {
	ID        string         `json:"error_id"`
	Timestamp time.Time      `json:"timestamp"`
	Category  Category       `json:"category"`
	Severity  Severity       `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

// TechnicalDetails is the developer-facing part of a Report.
type TechnicalDetails struct {
	ErrorType string    `json:"error_type"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Report is the structured result of handling a failure.
type Report struct {
	ErrorID             string           `json:"error_id"`
	Category            Category         `json:"category"`
	Severity            Severity         `json:"severity"`
	Message             string           `json:"message"`
	UserMessage         string           `json:"user_message"`
	TechnicalDetails    TechnicalDetails `json:"technical_details"`
	RecoverySuggestions []string         `json:"recovery_suggestions"`
	Recoverable         bool             `json:"recoverable"`
	Timestamp           time.Time        `json:"timestamp"`
}

// Fields flattens the report into a map carrying "error": true, the shape
// callers receive instead of a successful result.
func (r Report) Fields() map[string]any {
	technical := map[string]any{
		"error_type": r.TechnicalDetails.ErrorType,
		"severity":   string(r.TechnicalDetails.Severity),
		"message":    r.TechnicalDetails.Message,
		"timestamp":  r.TechnicalDetails.Timestamp.Format(time.RFC3339Nano),
	}
	return map[string]any{
		"error":                true,
		"error_id":             r.ErrorID,
		"category":             string(r.Category),
		"severity":             string(r.Severity),
		"message":              r.Message,
		"user_message":         r.UserMessage,
		"technical_details":    technical,
		"recovery_suggestions": r.RecoverySuggestions,
		"recoverable":          r.Recoverable,
		"timestamp":            r.Timestamp.Format(time.RFC3339Nano),
	}
}

// Summary aggregates the handler's history.
type Summary struct {
	TotalErrors      int              `json:"total_errors"`
	RecentErrors     int              `json:"recent_errors"`
	Categories       map[Category]int `json:"categories"`
	Severities       map[Severity]int `json:"severities"`
	RecentCategories map[Category]int `json:"recent_categories"`
	RecentSeverities map[Severity]int `json:"recent_severities"`
	LastError        *Record          `json:"last_error,omitempty"`
}

// Observer is notified after every handled failure.
type Observer func(Record)

// Handler classifies, logs and records failures and drives retries. It is
// safe for concurrent use.
type Handler struct {
	logger     zerolog.Logger
	policies   PolicyTable
	maxHistory int
	window     time.Duration
	observers  []Observer
	now        func() time.Time

	mu      sync.Mutex
	history []Record
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger used for handled failures and retries.
func WithLogger(logger zerolog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger.With().Str("component", "faults").Logger()
	}
}

// WithPolicies replaces the retry table.
func WithPolicies(policies PolicyTable) Option {
	return func(h *Handler) {
		if policies != nil {
			h.policies = policies
		}
	}
}

// WithMaxHistory bounds the number of retained records.
func WithMaxHistory(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxHistory = n
		}
	}
}

// WithSummaryWindow sets the "recent" window used by Summary.
func WithSummaryWindow(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.window = d
		}
	}
}

// WithObserver registers a callback for every handled failure.
func WithObserver(o Observer) Option {
	return func(h *Handler) {
		if o != nil {
			h.observers = append(h.observers, o)
		}
	}
}

// NewHandler creates a Handler with the default retry table.
func NewHandler(opts ...Option) *Handler {
	h := &Handler{
		logger:     zerolog.Nop(),
		policies:   DefaultPolicies(),
		maxHistory: DefaultMaxHistory,
		window:     DefaultSummaryWindow,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Policies returns the handler's retry table.
func (h *Handler) Policies() PolicyTable {
	return h.policies
}

// Recoverable reports whether failures of category c may be retried.
func (h *Handler) Recoverable(c Category) bool {
	return h.policies.Lookup(c).Recoverable
}

// Handle classifies err, logs and records it, and returns the report.
func (h *Handler) Handle(err error, errCtx map[string]any) Report {
	if err == nil {
		return Report{}
	}
	classified := Classify(err, errCtx)

	// Records are stamped when handled; a cached error may be handled many
	// times long after it was created.
	rec := Record{
		ID:        "ERR_" + uuid.New().String(),
		Timestamp: h.now(),
		Category:  classified.Category,
		Severity:  classified.Severity,
		Message:   classified.Message,
		Details:   classified.Details,
		Context:   errCtx,
	}

	h.log(rec)
	h.append(rec)
	for _, o := range h.observers {
		o(rec)
	}

	return Report{
		ErrorID:     rec.ID,
		Category:    rec.Category,
		Severity:    rec.Severity,
		Message:     rec.Message,
		UserMessage: UserMessage(rec.Category, rec.Severity),
		TechnicalDetails: TechnicalDetails{
			ErrorType: string(rec.Category),
			Severity:  rec.Severity,
			Message:   rec.Message,
			Timestamp: rec.Timestamp,
		},
		RecoverySuggestions: RecoverySuggestions(rec.Category),
		Recoverable:         h.Recoverable(rec.Category),
		Timestamp:           rec.Timestamp,
	}
}

func (h *Handler) log(rec Record) {
	var evt *zerolog.Event
	switch rec.Severity {
	case SeverityLow:
		evt = h.logger.Info()
	case SeverityMedium:
		evt = h.logger.Warn()
	case SeverityCritical:
		// WithLevel does not exit the process the way Fatal does.
		evt = h.logger.WithLevel(zerolog.FatalLevel)
	default:
		evt = h.logger.Error()
	}
	evt.
		Str("error_id", rec.ID).
		Str("category", string(rec.Category)).
		Str("severity", string(rec.Severity)).
		Interface("details", rec.Details).
		Interface("context", rec.Context).
		Msg(rec.Message)
}

func (h *Handler) append(rec Record) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.history = append(h.history, rec)
	if over := len(h.history) - h.maxHistory; over > 0 {
		h.history = append([]Record(nil), h.history[over:]...)
	}
}

// History returns a copy of the retained records, oldest first.
func (h *Handler) History() []Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Record, len(h.history))
	copy(out, h.history)
	return out
}

// Summary aggregates the retained history.
func (h *Handler) Summary() Summary {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := Summary{
		TotalErrors:      len(h.history),
		Categories:       make(map[Category]int),
		Severities:       make(map[Severity]int),
		RecentCategories: make(map[Category]int),
		RecentSeverities: make(map[Severity]int),
	}
	if len(h.history) == 0 {
		return s
	}

	cutoff := h.now().Add(-h.window)
	for _, rec := range h.history {
		s.Categories[rec.Category]++
		s.Severities[rec.Severity]++
		if rec.Timestamp.After(cutoff) {
			s.RecentErrors++
			s.RecentCategories[rec.Category]++
			s.RecentSeverities[rec.Severity]++
		}
	}
	last := h.history[len(h.history)-1]
	s.LastError = &last
	return s
}
