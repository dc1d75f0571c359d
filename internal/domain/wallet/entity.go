package wallet

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType classifies ledger entries
type TransactionType string

const (
	TypeDeposit    TransactionType = "deposit"
	TypePurchase   TransactionType = "purchase"
	TypeRefund     TransactionType = "refund"
	TypeCredit     TransactionType = "credit"
	TypeDebit      TransactionType = "debit"
	TypeReward     TransactionType = "reward"
	TypeWithdrawal TransactionType = "withdrawal"
)

// IsCredit reports whether the type increases the balance
func (t TransactionType) IsCredit() bool {
	switch t {
	case TypeDeposit, TypeRefund, TypeCredit, TypeReward:
		return true
	}
	return false
}

// SignedDelta returns the balance delta for an entry of this type
func (t TransactionType) SignedDelta(amount decimal.Decimal) decimal.Decimal {
	if t.IsCredit() {
		return amount
	}
	return amount.Neg()
}

// TransactionStatus is the settlement state of a ledger entry
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// JSONRawMessage handles NULL json fields from DB
type JSONRawMessage []byte

func (j *JSONRawMessage) Scan(src any) error {
	if src == nil {
		*j = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = []byte(v)
	default:
		return fmt.Errorf("unsupported type: %T", src)
	}
	return nil
}

func (j JSONRawMessage) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// Transaction is a ledger entry. Once completed it is immutable; the pair
// BalanceBefore/BalanceAfter snapshots the wallet around the entry.
type Transaction struct {
	ID                  uuid.UUID         `db:"id" json:"id"`
	UserID              uuid.UUID         `db:"user_id" json:"user_id"`
	Type                TransactionType   `db:"type" json:"type"`
	Amount              decimal.Decimal   `db:"amount" json:"amount"`
	Currency            string            `db:"currency" json:"currency"`
	Status              TransactionStatus `db:"status" json:"status"`
	Reference           string            `db:"reference" json:"reference"`
	OrderID             uuid.NullUUID     `db:"order_id" json:"order_id,omitempty"`
	BalanceBefore       decimal.Decimal   `db:"balance_before" json:"balance_before"`
	BalanceAfter        decimal.Decimal   `db:"balance_after" json:"balance_after"`
	ProcessedBy         uuid.NullUUID     `db:"processed_by" json:"processed_by,omitempty"`
	Processing          bool              `db:"processing" json:"-"`
	ProcessingStartedAt sql.NullTime      `db:"processing_started_at" json:"-"`
	ProcessingSource    sql.NullString    `db:"processing_source" json:"-"`
	Metadata            JSONRawMessage    `db:"metadata" json:"metadata,omitempty"`
	CreatedAt           time.Time         `db:"created_at" json:"created_at"`
	CompletedAt         sql.NullTime      `db:"completed_at" json:"completed_at,omitempty"`
}

// Attribution records who caused a ledger mutation
type Attribution struct {
	ProcessedBy uuid.NullUUID
	Metadata    map[string]interface{}
}
