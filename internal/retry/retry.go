// Package retry wraps language-model calls with bounded exponential backoff
// and reports enough detail on exhaustion for the caller to persist a
// resumable failure.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/BTreeMap/HabitAudit/internal/models"
)

// Default retry policy: 3 attempts with 2s/4s/8s exponential delays, no jitter.
const (
	DefaultMaxAttempts     = 3
	DefaultInitialInterval = 2 * time.Second
	DefaultMaxInterval     = 8 * time.Second
)

// Classifier maps a call error onto the engine's error taxonomy.
type Classifier func(error) models.ErrorClass

// RetryDecider reports whether a failure class should be retried.
type RetryDecider func(models.ErrorClass) bool

// Handler retries an operation under the configured policy.
type Handler struct {
	maxAttempts     int
	initialInterval time.Duration
	maxInterval     time.Duration
	classify        Classifier
	retryable       RetryDecider
}

// Outcome describes how a wrapped call ended.
type Outcome struct {
	Attempts int               // how many calls were made
	Class    models.ErrorClass // classification of the last error, if any
}

// NewHandler creates a retry handler with the default 3-attempt policy.
func NewHandler(classify Classifier, retryable RetryDecider) *Handler {
	return &Handler{
		maxAttempts:     DefaultMaxAttempts,
		initialInterval: DefaultInitialInterval,
		maxInterval:     DefaultMaxInterval,
		classify:        classify,
		retryable:       retryable,
	}
}

// WithPolicy overrides the attempt budget and delay schedule. Intended for
// tests that cannot afford real backoff delays.
func (h *Handler) WithPolicy(maxAttempts int, initialInterval, maxInterval time.Duration) *Handler {
	h.maxAttempts = maxAttempts
	h.initialInterval = initialInterval
	h.maxInterval = maxInterval
	return h
}

// Do runs op until it succeeds, a fatal error is classified, or the attempt
// budget is exhausted. The returned Outcome always reflects the final state,
// whether or not an error is returned.
func (h *Handler) Do(ctx context.Context, op func(context.Context) error) (Outcome, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = h.initialInterval
	bo.RandomizationFactor = 0 // deterministic schedule, not jittered
	bo.Multiplier = 2
	bo.MaxInterval = h.maxInterval
	bo.MaxElapsedTime = 0

	outcome := Outcome{}
	wrapped := func() error {
		outcome.Attempts++
		err := op(ctx)
		if err == nil {
			return nil
		}
		outcome.Class = h.classify(err)
		if !h.retryable(outcome.Class) {
			slog.Debug("retry.Do: fatal error, not retrying", "attempt", outcome.Attempts, "class", outcome.Class, "error", err)
			return backoff.Permanent(err)
		}
		slog.Warn("retry.Do: attempt failed", "attempt", outcome.Attempts, "maxAttempts", h.maxAttempts, "class", outcome.Class, "error", err)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(h.maxAttempts-1)), ctx)
	err := backoff.Retry(wrapped, policy)
	if err != nil {
		slog.Error("retry.Do: exhausted", "attempts", outcome.Attempts, "class", outcome.Class, "error", err)
		return outcome, err
	}
	return outcome, nil
}
