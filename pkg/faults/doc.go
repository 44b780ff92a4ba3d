// Package faults classifies failures into categories and severities, keeps a
// bounded history of handled failures, and retries operations with a
// per-category exponential backoff.
//
// A failure is either a *Error created by one of the constructors or any other
// error, which Classify maps to a category by keywords in its message:
//
//	h := faults.NewHandler(faults.WithLogger(logger))
//	report := h.Handle(err, map[string]any{"operation": "create_sketch"})
//	if report.Recoverable {
//	    // retry later
//	}
//
// Retries are keyed to the category of the first failure of a call:
//
//	info, err := faults.Do(ctx, h, func(ctx context.Context) (Info, error) {
//	    return fetch(ctx)
//	}, nil)
//
// Guard is the same loop but returns the handled report instead of the error
// and turns panics into failures.
package faults
