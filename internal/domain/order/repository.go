package order

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// InsertTx writes an order within an external transaction so it commits
// together with its wallet debit.
func (r *Repository) InsertTx(ctx context.Context, tx *sqlx.Tx, o *Order) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders
			(id, user_id, bundle_id, bundle_type, capacity_mb, quantity,
			 unit_price, price, recipient_number, order_reference,
			 provider_reference, status, reservation_confirmed, metadata,
			 created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, o.ID, o.UserID, o.BundleID, o.BundleType, o.CapacityMB, o.Quantity,
		o.UnitPrice, o.Price, o.RecipientNumber, o.OrderReference,
		o.ProviderReference, o.Status, o.ReservationConfirmed, o.Metadata,
		o.CreatedAt, o.UpdatedAt, o.CompletedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateReference
		}
		return err
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	var o Order
	err := r.db.GetContext(ctx, &o, `SELECT * FROM orders WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// TransitionTx moves an order between statuses within an external transaction,
// guarded on the expected current status. Zero rows means the order moved
// under us and the caller must reload.
func (r *Repository) TransitionTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID,
	from, to Status, actorID uuid.UUID, failureReason string, reservationConfirmed bool) error {

	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $3,
		    processed_by = $4,
		    failure_reason = NULLIF($5, ''),
		    reservation_confirmed = $6,
		    completed_at = CASE WHEN $3 = 'completed' THEN now() ELSE completed_at END,
		    updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, from, to, actorID, failureReason, reservationConfirmed)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrStaleOrder
	}
	return nil
}

// ListByUser returns a user's orders, newest first
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Order, error) {
	var orders []*Order
	err := r.db.SelectContext(ctx, &orders, `
		SELECT * FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return orders, err
}

// List returns orders across all users, optionally filtered by status
func (r *Repository) List(ctx context.Context, status Status, limit, offset int) ([]*Order, error) {
	var orders []*Order
	if status != "" {
		err := r.db.SelectContext(ctx, &orders, `
			SELECT * FROM orders
			WHERE status = $1
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3
		`, status, limit, offset)
		return orders, err
	}
	err := r.db.SelectContext(ctx, &orders, `
		SELECT * FROM orders
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	return orders, err
}

// DB exposes the underlying handle for composing the placement transaction
func (r *Repository) DB() *sqlx.DB {
	return r.db
}
