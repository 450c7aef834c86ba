package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xhad/docqa/internal/models"
)

var retryBaseDelay = 500 * time.Millisecond

// withRetry runs fn, retrying only rate-limited failures with exponential
// backoff (base delay doubling per attempt). After maxRetries the last error
// surfaces to the caller.
func withRetry(ctx context.Context, maxRetries int, fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryBaseDelay << (attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err = fn()
		if err == nil {
			return nil
		}
		if !errors.Is(err, models.ErrRateLimited) {
			return err
		}
	}
	return err
}

// classify maps a collaborator error into the taxonomy: rate limits become
// models.ErrRateLimited (retryable), everything else an UpstreamError
// carrying the collaborator's message verbatim.
func classify(op string, err error) error {
	if isRateLimited(err) {
		return fmt.Errorf("%s: %w", op, models.ErrRateLimited)
	}
	return &models.UpstreamError{Op: op, Err: err}
}

func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, models.ErrRateLimited) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests")
}
