package retry

import (
	"context"
	"database/sql/driver"
	"errors"
	"math/rand"
	"net"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// ErrStoreUnavailable is returned when all retry attempts are exhausted.
// Handlers map it to 503 with a Retry-After hint.
var ErrStoreUnavailable = errors.New("store unavailable")

const (
	maxAttempts = 5
	baseDelay   = 100 * time.Millisecond
	maxDelay    = 2 * time.Second
)

// Do runs fn, retrying with bounded exponential backoff while the error is
// transient (connectivity loss, replica election, serialization failure,
// deadlock). Non-transient errors are returned to the caller untouched.
func Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}

		lastErr = err
		if attempt == maxAttempts {
			break
		}

		delay := backoffDuration(attempt)
		log.Warn().
			Str("operation", op).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Err(err).
			Msg("Transient store error, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	log.Error().Str("operation", op).Err(lastErr).Msg("Store retries exhausted")
	return errors.Join(ErrStoreUnavailable, lastErr)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"57P01", // admin_shutdown (failover / replica election)
			"57P02", // crash_shutdown
			"57P03": // cannot_connect_now
			return true
		}
		// Class 08: connection exceptions
		if pqErr.Code.Class() == "08" {
			return true
		}
	}

	return false
}

func backoffDuration(attempt int) time.Duration {
	delay := baseDelay << (attempt - 1)
	if delay > maxDelay {
		delay = maxDelay
	}
	// full jitter
	return time.Duration(rand.Int63n(int64(delay)) + int64(baseDelay)/2)
}
