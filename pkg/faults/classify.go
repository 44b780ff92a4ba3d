package faults

import (
	"errors"
	"fmt"
	"strings"
)

type keywordRule struct {
	category Category
	severity Severity
	prefix   string
	keywords []string
}

// Rules are checked in order and the first match wins.
var classificationRules = []keywordRule{
	{
		category: CategoryPluginComm,
		severity: SeverityHigh,
		prefix:   "Plugin communication error",
		keywords: []string{"connection", "socket", "timeout", "network", "communication"},
	},
	{
		category: CategoryHostAPI,
		severity: SeverityMedium,
		prefix:   "Host API error",
		keywords: []string{"host", "cad", "sketch", "feature", "component", "design"},
	},
	{
		category: CategoryValidation,
		severity: SeverityLow,
		prefix:   "Data validation error",
		keywords: []string{"invalid", "validation", "parameter", "argument"},
	},
	{
		category: CategoryResource,
		severity: SeverityMedium,
		prefix:   "Resource access error",
		keywords: []string{"file", "directory", "path", "resource", "access"},
	},
}

// Classify maps an arbitrary error to a classified *Error. An *Error already
// in the chain is returned unchanged; anything else is matched on keywords in
// its lower-cased message.
func Classify(err error, errCtx map[string]any) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	details := map[string]any{"original_error": fmt.Sprintf("%T", err)}
	if len(errCtx) > 0 {
		details["context"] = errCtx
	}

	for _, rule := range classificationRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				e := Wrap(err, rule.category, rule.severity, rule.prefix)
				e.Details = details
				return e
			}
		}
	}

	e := Wrap(err, CategoryUnknown, SeverityMedium, "Unknown error")
	e.Details = details
	return e
}
