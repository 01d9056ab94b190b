package pipeline

import (
	"errors"
	"math/rand/v2"
	"time"

	"forgeworks/macrod/internal/downstream"
)

const (
	maxRetries  = 3
	baseBackoff = 500 * time.Millisecond
	maxBackoff  = 10 * time.Second
)

// isRetryable reports whether a publish error is worth retrying.
func isRetryable(err error) bool {
	var re *downstream.RetryableError
	return errors.As(err, &re)
}

// backoff returns the delay before the given retry attempt, with jitter.
func backoff(attempt int) time.Duration {
	d := baseBackoff << uint(attempt)
	if d > maxBackoff {
		d = maxBackoff
	}
	jitter := time.Duration(rand.Int64N(int64(d) / 4))
	return d + jitter
}
