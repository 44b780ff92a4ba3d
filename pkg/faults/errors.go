package faults

import (
	"errors"
	"fmt"
	"time"
)

// Category is the coarse classification of a failure used to pick a retry
// policy and a user-facing message.
type Category string

const (
	// CategoryPluginComm covers socket and protocol failures between the
	// automation process and the plugin running inside the host.
	CategoryPluginComm Category = "plugin_comm"

	// CategoryHostAPI covers failures raised by the CAD host's modeling API.
	CategoryHostAPI Category = "host_api"

	// CategoryValidation covers malformed or out-of-range input.
	CategoryValidation Category = "validation"

	// CategoryResource covers files, paths and other local resources.
	CategoryResource Category = "resource"

	CategoryNetwork    Category = "network"
	CategoryFilesystem Category = "filesystem"
	CategoryConfig     Category = "config"
	CategoryUnknown    Category = "unknown"
)

// Categories lists every category in a stable order.
func Categories() []Category {
	return []Category{
		CategoryPluginComm,
		CategoryHostAPI,
		CategoryValidation,
		CategoryResource,
		CategoryNetwork,
		CategoryFilesystem,
		CategoryConfig,
		CategoryUnknown,
	}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// Severity ranks how badly a failure affects the caller.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Error is a classified failure. The zero Timestamp is replaced with the
// current time by the constructors.
type Error struct {
	Category  Category       `json:"category"`
	Severity  Severity       `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`

	// Err is the underlying cause, if any.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same category.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Category == t.Category
}

// WithDetail adds a detail field and returns the error for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a classified error with an explicit category and severity.
func New(category Category, severity Severity, message string, details map[string]any) *Error {
	return &Error{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Details:   details,
		Timestamp: time.Now(),
	}
}

// Wrap classifies err under category, prefixing its message.
func Wrap(err error, category Category, severity Severity, message string) *Error {
	e := New(category, severity, fmt.Sprintf("%s: %v", message, err), nil)
	e.Err = err
	return e
}

// NewPluginCommunicationError creates a high severity plugin_comm error.
func NewPluginCommunicationError(message string, details map[string]any) *Error {
	return New(CategoryPluginComm, SeverityHigh, message, details)
}

// NewHostAPIError creates a medium severity host_api error.
func NewHostAPIError(message string, details map[string]any) *Error {
	return New(CategoryHostAPI, SeverityMedium, message, details)
}

// NewValidationError creates a low severity validation error.
func NewValidationError(message string, details map[string]any) *Error {
	return New(CategoryValidation, SeverityLow, message, details)
}

// NewResourceError creates a medium severity resource error.
func NewResourceError(message string, details map[string]any) *Error {
	return New(CategoryResource, SeverityMedium, message, details)
}

// CategoryOf returns the category of the first *Error in err's chain, or
// CategoryUnknown when there is none.
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return CategoryUnknown
}

// IsCategory reports whether err carries a classified error of category c.
func IsCategory(err error, c Category) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Category == c
	}
	return false
}

// PanicError carries a value recovered from a panic.
type PanicError struct {
	Value any
}

func (p *PanicError) Error() string {
	if err, ok := p.Value.(error); ok {
		return err.Error()
	}
	return fmt.Sprintf("%v", p.Value)
}

// Unwrap exposes a panicked error value.
func (p *PanicError) Unwrap() error {
	if err, ok := p.Value.(error); ok {
		return err
	}
	return nil
}
