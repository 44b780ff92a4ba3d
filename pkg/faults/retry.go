package faults

import (
	"context"
	"fmt"
	"time"
)

// Retry runs op, retrying it according to the policy of the first failure's
// category. On final failure the error is handled and returned.
func (h *Handler) Retry(ctx context.Context, op func(context.Context) error, errCtx map[string]any) error {
	_, err := Do(ctx, h, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, errCtx)
	return err
}

// Do runs op with retries and returns its value. The category of the first
// failure selects the retry policy for the whole call; the final failure is
// handled and returned.
func Do[T any](ctx context.Context, h *Handler, op func(context.Context) (T, error), errCtx map[string]any) (T, error) {
	v, _, err := run(ctx, h, op, errCtx)
	return v, err
}

// Guard runs op with retries and recovers panics. Instead of returning the
// final error it returns the report produced by handling it.
func Guard[T any](ctx context.Context, h *Handler, op func(context.Context) (T, error), errCtx map[string]any) (T, *Report) {
	v, report, _ := run(ctx, h, recovered(op), errCtx)
	return v, report
}

// Safe runs op once, recovers panics and returns the report for a failure.
func Safe[T any](ctx context.Context, h *Handler, op func(context.Context) (T, error), errCtx map[string]any) (T, *Report) {
	v, err := recovered(op)(ctx)
	if err != nil {
		report := h.Handle(err, errCtx)
		return v, &report
	}
	return v, nil
}

func recovered[T any](op func(context.Context) (T, error)) func(context.Context) (T, error) {
	return func(ctx context.Context) (v T, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &PanicError{Value: r}
			}
		}()
		return op(ctx)
	}
}

func run[T any](ctx context.Context, h *Handler, op func(context.Context) (T, error), errCtx map[string]any) (T, *Report, error) {
	v, err := op(ctx)
	if err == nil {
		return v, nil, nil
	}

	category := Classify(err, errCtx).Category
	policy := h.policies.Lookup(category)
	if !policy.Recoverable || policy.MaxRetries <= 0 {
		report := h.Handle(err, errCtx)
		return v, &report, err
	}

	schedule := policy.BackOff()
	for attempt := 1; attempt <= policy.MaxRetries; attempt++ {
		delay := schedule.NextBackOff()
		h.logger.Warn().
			Err(err).
			Str("category", string(category)).
			Int("attempt", attempt).
			Int("max_retries", policy.MaxRetries).
			Dur("delay", delay).
			Msg(fmt.Sprintf("Operation failed, retrying in %.1fs", delay.Seconds()))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			report := h.Handle(err, errCtx)
			return v, &report, ctx.Err()
		}

		v, err = op(ctx)
		if err == nil {
			return v, nil, nil
		}
	}

	report := h.Handle(err, errCtx)
	h.logger.Error().
		Str("error_id", report.ErrorID).
		Int("attempts", policy.MaxRetries+1).
		Msg("Retry failed, abandoning operation")
	return v, &report, err
}
