package wallet_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/bundlemart/bundlemart-api/internal/domain/wallet"
	"github.com/bundlemart/bundlemart-api/internal/pkg/retry"
)

func TestLedgerRetriesExhaustIntoStoreUnavailable(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer mockDB.Close()
	db := sqlx.NewDb(mockDB, "sqlmock")
	ledger := wallet.NewLedger(wallet.NewRepository(db))

	// Every attempt dies on a serialization failure before any write lands
	for i := 0; i < 5; i++ {
		mock.ExpectBegin().WillReturnError(&pq.Error{Code: "40001"})
	}

	_, err = ledger.Credit(context.Background(), uuid.New(), decimal.NewFromInt(10),
		wallet.TypeReward, "adj-retry-exhausted", wallet.Attribution{})
	if !errors.Is(err, retry.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable after exhausted retries, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestLedgerCreditRecoversAfterTransientFailure(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	defer mockDB.Close()
	db := sqlx.NewDb(mockDB, "sqlmock")
	ledger := wallet.NewLedger(wallet.NewRepository(db))

	userID := uuid.New()

	mock.ExpectBegin().WillReturnError(&pq.Error{Code: "40P01"})

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT balance, currency, approval_status, is_active").
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"balance", "currency", "approval_status", "is_active"}).
			AddRow("0", "GHS", "approved", true))
	mock.ExpectQuery("SELECT (.+) FROM wallet_transactions WHERE reference").
		WithArgs("adj-retry-recovers").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec("INSERT INTO wallet_transactions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE users SET balance").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	txn, err := ledger.Credit(context.Background(), userID, decimal.NewFromInt(10),
		wallet.TypeReward, "adj-retry-recovers", wallet.Attribution{})
	if err != nil {
		t.Fatalf("credit should succeed on the retry: %v", err)
	}
	if !txn.BalanceAfter.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected balance_after 10, got %s", txn.BalanceAfter)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
