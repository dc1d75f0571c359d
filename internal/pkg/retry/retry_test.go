package retry

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"bad conn", driver.ErrBadConn, true},
		{"wrapped bad conn", fmt.Errorf("exec: %w", driver.ErrBadConn), true},
		{"serialization failure", &pq.Error{Code: "40001"}, true},
		{"deadlock", &pq.Error{Code: "40P01"}, true},
		{"admin shutdown", &pq.Error{Code: "57P01"}, true},
		{"cannot connect now", &pq.Error{Code: "57P03"}, true},
		{"connection failure class 08", &pq.Error{Code: "08006"}, true},
		{"unique violation", &pq.Error{Code: "23505"}, false},
		{"check violation", &pq.Error{Code: "23514"}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestDoReturnsNonTransientImmediately(t *testing.T) {
	calls := 0
	bizErr := errors.New("insufficient funds")

	err := Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		return bizErr
	})

	if !errors.Is(err, bizErr) {
		t.Fatalf("expected the business error back, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if errors.Is(err, ErrStoreUnavailable) {
		t.Error("non-transient error must not be wrapped as store unavailable")
	}
}

func TestDoRecoversAfterTransientFailures(t *testing.T) {
	calls := 0

	err := Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return driver.ErrBadConn
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoExhaustsIntoStoreUnavailable(t *testing.T) {
	calls := 0

	err := Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		return driver.ErrBadConn
	})

	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if !errors.Is(err, driver.ErrBadConn) {
		t.Error("expected the last underlying error to remain inspectable")
	}
	if calls != maxAttempts {
		t.Errorf("expected %d calls, got %d", maxAttempts, calls)
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, "test", func(ctx context.Context) error {
		return driver.ErrBadConn
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
