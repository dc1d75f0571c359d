package order

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bundlemart/bundlemart-api/internal/domain/wallet"
)

// Status is the order lifecycle state
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRefunded   Status = "refunded"
	StatusAPIError   Status = "api_error"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusRefunded, StatusAPIError:
		return true
	}
	return false
}

// CanTransitionTo reports whether a manual transition from s to next is
// allowed. A transition to the same status is always rejected. Failed orders
// may still be refunded so a charge is never stranded.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return false
	}
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusCompleted ||
			next == StatusFailed || next == StatusRefunded
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed ||
			next == StatusRefunded || next == StatusAPIError
	case StatusFailed, StatusAPIError:
		return next == StatusRefunded
	}
	return false
}

// Order is a purchase of one bundle SKU, always created together with its
// wallet debit. BundleType and CapacityMB are denormalized for display; the
// owned reference is BundleID.
type Order struct {
	ID                   uuid.UUID             `db:"id" json:"id"`
	UserID               uuid.UUID             `db:"user_id" json:"user_id"`
	BundleID             uuid.UUID             `db:"bundle_id" json:"bundle_id"`
	BundleType           string                `db:"bundle_type" json:"bundle_type"`
	CapacityMB           int64                 `db:"capacity_mb" json:"capacity_mb"`
	Quantity             int                   `db:"quantity" json:"quantity"`
	UnitPrice            decimal.Decimal       `db:"unit_price" json:"unit_price"`
	Price                decimal.Decimal       `db:"price" json:"price"`
	RecipientNumber      string                `db:"recipient_number" json:"recipient_number"`
	OrderReference       string                `db:"order_reference" json:"order_reference"`
	ProviderReference    sql.NullString        `db:"provider_reference" json:"provider_reference,omitempty"`
	Status               Status                `db:"status" json:"status"`
	ReservationConfirmed bool                  `db:"reservation_confirmed" json:"-"`
	ProcessedBy          uuid.NullUUID         `db:"processed_by" json:"processed_by,omitempty"`
	FailureReason        sql.NullString        `db:"failure_reason" json:"failure_reason,omitempty"`
	Metadata             wallet.JSONRawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt            time.Time             `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time             `db:"updated_at" json:"updated_at"`
	CompletedAt          sql.NullTime          `db:"completed_at" json:"completed_at,omitempty"`
}

// ReservationHeld reports whether stock is still reserved but not yet sold
// for this order. True only for manual-path orders awaiting settlement.
func (o *Order) ReservationHeld() bool {
	if o.ReservationConfirmed {
		return false
	}
	return o.Status == StatusPending || o.Status == StatusProcessing
}
