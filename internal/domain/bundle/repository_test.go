package bundle

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })

	db := sqlx.NewDb(mockDB, "sqlmock")
	return NewRepository(db), mock
}

func TestReserveGuardsAvailability(t *testing.T) {
	repo, mock := newMockRepo(t)
	bundleID := uuid.New()
	ctx := context.Background()

	t.Run("enough stock", func(t *testing.T) {
		mock.ExpectExec("UPDATE bundles SET").
			WithArgs(bundleID, 3).
			WillReturnResult(sqlmock.NewResult(0, 1))

		if err := repo.Reserve(ctx, repo.DB(), bundleID, 3); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("insufficient stock leaves counters untouched", func(t *testing.T) {
		mock.ExpectExec("UPDATE bundles SET").
			WithArgs(bundleID, 100).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Reserve(ctx, repo.DB(), bundleID, 100)
		if !errors.Is(err, ErrInsufficientStock) {
			t.Fatalf("expected ErrInsufficientStock, got %v", err)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestConfirmReservationGuardsReserved(t *testing.T) {
	repo, mock := newMockRepo(t)
	bundleID := uuid.New()
	ctx := context.Background()

	mock.ExpectExec("UPDATE bundles SET").
		WithArgs(bundleID, 2).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ConfirmReservation(ctx, repo.DB(), bundleID, 2)
	if !errors.Is(err, ErrStockInconsistent) {
		t.Fatalf("expected ErrStockInconsistent, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestReleaseReservationAlwaysSucceeds(t *testing.T) {
	repo, mock := newMockRepo(t)
	bundleID := uuid.New()

	// Zero rows matched is fine for release: the clamp makes it idempotent
	mock.ExpectExec("UPDATE bundles SET").
		WithArgs(bundleID, 5).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.ReleaseReservation(context.Background(), repo.DB(), bundleID, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
