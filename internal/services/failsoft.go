package services

import (
	"context"
	"fmt"

	"github.com/AnshRaj112/tripjournal-backend/internal/logging"
	"github.com/AnshRaj112/tripjournal-backend/internal/metrics"
)

// Operation names used for fail-soft logging and metrics.
const (
	OpEnrich         = "enrichment.build_auto"
	OpMediaThumbnail = "media.generate_thumbnail"
	OpMediaRefresh   = "media.refresh_assets"
	OpMediaDelete    = "media.delete_assets"
	OpMediaBatch     = "media.batch_fetch"
	OpPublishEvent   = "events.publish"
)

// Attempt runs fn as a best-effort operation. Errors and panics are logged
// and counted but never returned; the result reports whether fn succeeded.
func Attempt(ctx context.Context, operation string, fn func(context.Context) error) bool {
	_, ok := attempt(ctx, operation, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return ok
}

// AttemptValue is Attempt for operations with a result; def is returned when
// fn fails.
func AttemptValue[T any](ctx context.Context, operation string, fn func(context.Context) (T, error), def T) T {
	v, ok := attempt(ctx, operation, fn)
	if !ok {
		return def
	}
	return v
}

func attempt[T any](ctx context.Context, operation string, fn func(context.Context) (T, error)) (result T, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			recordFailure(ctx, operation, fmt.Errorf("panic: %v", r))
			var zero T
			result, ok = zero, false
		}
	}()

	v, err := fn(ctx)
	if err != nil {
		recordFailure(ctx, operation, err)
		return v, false
	}
	return v, true
}

func recordFailure(ctx context.Context, operation string, err error) {
	metrics.FailSoftFailures.WithLabelValues(operation).Inc()
	logging.Ctx(ctx).Warn().Err(err).Str("operation", operation).Msg("best-effort call failed, continuing")
}
