package wallet

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Repository owns the ledger's transactional boundary. Balance and ledger
// entry always change inside one database transaction, guarded by a row lock
// on the owning user.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

type lockedWallet struct {
	Balance        decimal.Decimal `db:"balance"`
	Currency       string          `db:"currency"`
	ApprovalStatus string          `db:"approval_status"`
	IsActive       bool            `db:"is_active"`
}

func (r *Repository) beginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

// LockWallet takes a FOR UPDATE lock on the user row and returns the current
// balance. Every concurrent mutation of the same wallet serializes here.
func (r *Repository) LockWallet(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (decimal.Decimal, error) {
	var lw lockedWallet
	err := tx.GetContext(ctx, &lw, `
		SELECT balance, currency, approval_status, is_active
		FROM users WHERE id = $1 FOR UPDATE
	`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, ErrUserNotFound
		}
		return decimal.Zero, err
	}
	if lw.ApprovalStatus != "approved" || !lw.IsActive {
		return decimal.Zero, ErrUserNotApproved
	}
	return lw.Balance, nil
}

func (r *Repository) getByReference(ctx context.Context, q sqlx.QueryerContext, reference string) (*Transaction, error) {
	var txn Transaction
	err := sqlx.GetContext(ctx, q, &txn, `
		SELECT * FROM wallet_transactions WHERE reference = $1 LIMIT 1
	`, reference)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// GetByReference looks up a ledger entry by its idempotency key
func (r *Repository) GetByReference(ctx context.Context, reference string) (*Transaction, error) {
	return r.getByReference(ctx, r.db, reference)
}

// InsertTx writes a ledger entry within an external transaction.
// A unique violation on reference maps to ErrDuplicateReference.
func (r *Repository) InsertTx(ctx context.Context, tx *sqlx.Tx, txn *Transaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_transactions
			(id, user_id, type, amount, currency, status, reference, order_id,
			 balance_before, balance_after, processed_by, metadata, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, txn.ID, txn.UserID, txn.Type, txn.Amount, txn.Currency, txn.Status, txn.Reference,
		txn.OrderID, txn.BalanceBefore, txn.BalanceAfter, txn.ProcessedBy, txn.Metadata,
		txn.CreatedAt, txn.CompletedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateReference
		}
		return err
	}
	return nil
}

// UpdateBalanceTx writes the post-mutation balance within an external transaction
func (r *Repository) UpdateBalanceTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, balance decimal.Decimal) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE users SET balance = $1, updated_at = now() WHERE id = $2
	`, balance, userID)
	return err
}

// ApplyTx applies a completed ledger entry within an external transaction:
// the caller must already hold the wallet lock acquired via LockWallet.
// Balance math and both writes happen here so no caller can drift them apart.
func (r *Repository) ApplyTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, balance decimal.Decimal,
	txType TransactionType, amount decimal.Decimal, reference string, attr Attribution) (*Transaction, error) {

	next := balance.Add(txType.SignedDelta(amount))
	if next.IsNegative() {
		return nil, ErrInsufficientFunds
	}

	var metadata JSONRawMessage
	if attr.Metadata != nil {
		metadata, _ = json.Marshal(attr.Metadata)
	}

	now := time.Now()
	txn := &Transaction{
		ID:            uuid.New(),
		UserID:        userID,
		Type:          txType,
		Amount:        amount,
		Currency:      "GHS",
		Status:        StatusCompleted,
		Reference:     reference,
		BalanceBefore: balance,
		BalanceAfter:  next,
		ProcessedBy:   attr.ProcessedBy,
		Metadata:      metadata,
		CreatedAt:     now,
		CompletedAt:   sql.NullTime{Time: now, Valid: true},
	}

	if err := r.InsertTx(ctx, tx, txn); err != nil {
		return nil, err
	}
	if err := r.UpdateBalanceTx(ctx, tx, userID, next); err != nil {
		return nil, err
	}
	return txn, nil
}

// apply runs a full credit/debit in its own transaction with idempotency on
// reference: a retry with the same reference, type and amount returns the
// existing entry without touching the balance again.
func (r *Repository) apply(ctx context.Context, userID uuid.UUID, txType TransactionType,
	amount decimal.Decimal, reference string, attr Attribution) (*Transaction, error) {

	tx, err := r.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	balance, err := r.LockWallet(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	existing, err := r.getByReference(ctx, tx, reference)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Type != txType || !existing.Amount.Equal(amount) {
			return nil, ErrReferenceConflict
		}
		return existing, nil
	}

	txn, err := r.ApplyTx(ctx, tx, userID, balance, txType, amount, reference, attr)
	if err != nil {
		if errors.Is(err, ErrDuplicateReference) {
			// Lost a race on the unique index; the other writer's entry is
			// the applied one. Re-read outside this aborted transaction.
			tx.Rollback()
			winner, readErr := r.GetByReference(ctx, reference)
			if readErr != nil {
				return nil, readErr
			}
			if winner == nil || winner.Type != txType || !winner.Amount.Equal(amount) {
				return nil, ErrReferenceConflict
			}
			return winner, nil
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return txn, nil
}

// Credit applies a balance-increasing entry
func (r *Repository) Credit(ctx context.Context, userID uuid.UUID, txType TransactionType,
	amount decimal.Decimal, reference string, attr Attribution) (*Transaction, error) {
	return r.apply(ctx, userID, txType, amount, reference, attr)
}

// Debit applies a balance-decreasing entry, failing with ErrInsufficientFunds
// when the wallet cannot cover it
func (r *Repository) Debit(ctx context.Context, userID uuid.UUID, txType TransactionType,
	amount decimal.Decimal, reference string, attr Attribution) (*Transaction, error) {
	return r.apply(ctx, userID, txType, amount, reference, attr)
}

// GetBalance reads the current wallet balance
func (r *Repository) GetBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.db.GetContext(ctx, &balance, `SELECT balance FROM users WHERE id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, ErrUserNotFound
	}
	return balance, err
}

// ListByUser returns a user's ledger history, newest first
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Transaction, error) {
	var txns []*Transaction
	err := r.db.SelectContext(ctx, &txns, `
		SELECT * FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return txns, err
}

// DB exposes the underlying handle for callers composing multi-domain transactions
func (r *Repository) DB() *sqlx.DB {
	return r.db
}
