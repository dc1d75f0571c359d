package deposit

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

	"github.com/bundlemart/bundlemart-api/internal/domain/wallet"
)

// Repository manages pending deposit rows and the claim protocol that makes
// crediting exactly-once. A deposit lives in wallet_transactions as a pending
// entry; the processing columns are the claim lock.
type Repository struct {
	db      *sqlx.DB
	wallets *wallet.Repository
}

func NewRepository(db *sqlx.DB, wallets *wallet.Repository) *Repository {
	return &Repository{db: db, wallets: wallets}
}

// CreatePending opens a deposit: a pending ledger entry carrying the gateway
// reference. The balance snapshot stays zeroed until completion.
func (r *Repository) CreatePending(ctx context.Context, userID uuid.UUID, amount decimal.Decimal,
	reference string, metadata map[string]interface{}) (*wallet.Transaction, error) {

	var meta wallet.JSONRawMessage
	if metadata != nil {
		meta, _ = json.Marshal(metadata)
	}

	txn := &wallet.Transaction{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      wallet.TypeDeposit,
		Amount:    amount,
		Currency:  "GHS",
		Status:    wallet.StatusPending,
		Reference: reference,
		Metadata:  meta,
		CreatedAt: time.Now(),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO wallet_transactions
			(id, user_id, type, amount, currency, status, reference,
			 balance_before, balance_after, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0, $8, $9)
	`, txn.ID, txn.UserID, txn.Type, txn.Amount, txn.Currency, txn.Status,
		txn.Reference, txn.Metadata, txn.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, wallet.ErrDuplicateReference
		}
		return nil, err
	}
	return txn, nil
}

// Claim atomically takes ownership of a pending deposit. Exactly one of any
// number of concurrent callers gets the row back; the rest see zero rows and
// must consult GetByReference to tell done from in-flight.
func (r *Repository) Claim(ctx context.Context, reference, source string) (*wallet.Transaction, error) {
	var txn wallet.Transaction
	err := r.db.GetContext(ctx, &txn, `
		UPDATE wallet_transactions
		SET processing = TRUE,
		    processing_started_at = now(),
		    processing_source = $2
		WHERE reference = $1
		  AND type = 'deposit'
		  AND status = 'pending'
		  AND processing IS NOT TRUE
		RETURNING *
	`, reference, source)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// StealStaleClaim re-claims a deposit whose holder went silent. Only claims
// older than staleBefore are eligible, so a live holder is never preempted.
func (r *Repository) StealStaleClaim(ctx context.Context, reference, source string, staleBefore time.Time) (*wallet.Transaction, error) {
	var txn wallet.Transaction
	err := r.db.GetContext(ctx, &txn, `
		UPDATE wallet_transactions
		SET processing_started_at = now(),
		    processing_source = $2
		WHERE reference = $1
		  AND type = 'deposit'
		  AND status = 'pending'
		  AND processing IS TRUE
		  AND processing_started_at < $3
		RETURNING *
	`, reference, source, staleBefore)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// ReleaseClaim puts a claimed deposit back into the reclaimable pool after a
// completion failure. Guarded on status so a concurrently completed row is
// never reopened.
func (r *Repository) ReleaseClaim(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE wallet_transactions
		SET processing = FALSE,
		    processing_started_at = NULL,
		    processing_source = NULL
		WHERE id = $1 AND status = 'pending'
	`, id)
	return err
}

// CompleteClaimed settles a claimed deposit in one transaction: lock the
// wallet, mark the entry completed with balance snapshots, move the balance.
// creditAmount may differ from the entry's gross amount when a fee applies.
func (r *Repository) CompleteClaimed(ctx context.Context, claimed *wallet.Transaction,
	creditAmount decimal.Decimal, gatewayMeta map[string]interface{}) (*wallet.Transaction, error) {

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	balance, err := r.wallets.LockWallet(ctx, tx, claimed.UserID)
	if err != nil {
		return nil, err
	}
	next := balance.Add(creditAmount)

	meta := claimed.Metadata
	if gatewayMeta != nil {
		merged := map[string]interface{}{}
		if len(claimed.Metadata) > 0 {
			json.Unmarshal(claimed.Metadata, &merged)
		}
		for k, v := range gatewayMeta {
			merged[k] = v
		}
		meta, _ = json.Marshal(merged)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE wallet_transactions
		SET status = 'completed',
		    amount = $2,
		    balance_before = $3,
		    balance_after = $4,
		    metadata = $5,
		    completed_at = now(),
		    processing = FALSE
		WHERE id = $1 AND status = 'pending' AND processing IS TRUE
	`, claimed.ID, creditAmount, balance, next, meta)
	if err != nil {
		return nil, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrNotPending
	}

	if err := r.wallets.UpdateBalanceTx(ctx, tx, claimed.UserID, next); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	out := *claimed
	out.Status = wallet.StatusCompleted
	out.Amount = creditAmount
	out.BalanceBefore = balance
	out.BalanceAfter = next
	out.Metadata = wallet.JSONRawMessage(meta)
	out.Processing = false
	out.CompletedAt = sql.NullTime{Time: time.Now(), Valid: true}
	return &out, nil
}

// GetByReference reads a deposit entry by gateway reference
func (r *Repository) GetByReference(ctx context.Context, reference string) (*wallet.Transaction, error) {
	var txn wallet.Transaction
	err := r.db.GetContext(ctx, &txn, `
		SELECT * FROM wallet_transactions
		WHERE reference = $1 AND type = 'deposit'
		LIMIT 1
	`, reference)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// SweepStaleClaims releases every claim older than staleBefore so the poller
// can retry it. Returns how many were released.
func (r *Repository) SweepStaleClaims(ctx context.Context, staleBefore time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE wallet_transactions
		SET processing = FALSE,
		    processing_started_at = NULL,
		    processing_source = NULL
		WHERE type = 'deposit'
		  AND status = 'pending'
		  AND processing IS TRUE
		  AND processing_started_at < $1
	`, staleBefore)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListPendingOlderThan returns unclaimed pending deposits created before the
// cutoff, oldest first. The poller verifies these against the gateway.
func (r *Repository) ListPendingOlderThan(ctx context.Context, createdBefore time.Time, limit int) ([]*wallet.Transaction, error) {
	var txns []*wallet.Transaction
	err := r.db.SelectContext(ctx, &txns, `
		SELECT * FROM wallet_transactions
		WHERE type = 'deposit'
		  AND status = 'pending'
		  AND processing IS NOT TRUE
		  AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`, createdBefore, limit)
	return txns, err
}
