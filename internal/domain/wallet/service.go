package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/bundlemart/bundlemart-api/internal/pkg/retry"
)

// Ledger is the only component allowed to mutate wallet balances. Callers
// supply a unique reference per mutation; replays with the same reference are
// absorbed, never double-applied.
type Ledger struct {
	repo *Repository
}

func NewLedger(repo *Repository) *Ledger {
	return &Ledger{repo: repo}
}

func (l *Ledger) GetBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	return l.repo.GetBalance(ctx, userID)
}

func (l *Ledger) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return l.repo.ListByUser(ctx, userID, limit, offset)
}

// Credit increases the wallet balance and appends a completed ledger entry
func (l *Ledger) Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal,
	txType TransactionType, reference string, attr Attribution) (*Transaction, error) {

	if !amount.IsPositive() || reference == "" {
		return nil, ErrInvalidAmount
	}
	if !txType.IsCredit() {
		return nil, ErrInvalidAmount
	}

	var txn *Transaction
	err := retry.Do(ctx, "wallet.credit", func(ctx context.Context) error {
		var opErr error
		txn, opErr = l.repo.Credit(ctx, userID, txType, amount, reference, attr)
		return opErr
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("type", string(txType)).
		Str("amount", amount.StringFixed(2)).
		Str("reference", reference).
		Msg("Wallet credit applied")
	return txn, nil
}

// Debit decreases the wallet balance and appends a completed ledger entry
func (l *Ledger) Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal,
	txType TransactionType, reference string, attr Attribution) (*Transaction, error) {

	if !amount.IsPositive() || reference == "" {
		return nil, ErrInvalidAmount
	}
	if txType.IsCredit() {
		return nil, ErrInvalidAmount
	}

	var txn *Transaction
	err := retry.Do(ctx, "wallet.debit", func(ctx context.Context) error {
		var opErr error
		txn, opErr = l.repo.Debit(ctx, userID, txType, amount, reference, attr)
		return opErr
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("type", string(txType)).
		Str("amount", amount.StringFixed(2)).
		Str("reference", reference).
		Msg("Wallet debit applied")
	return txn, nil
}
