package bundle

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository owns bundle rows and the stock unit counters. All stock
// mutations are single conditional UPDATE statements so concurrent callers
// can never observe or produce negative availability; the derived
// out-of-stock/low-stock flags are recomputed inside the same statement.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Bundle, error) {
	var b Bundle
	err := r.db.GetContext(ctx, &b, `SELECT * FROM bundles WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *Repository) ListActive(ctx context.Context) ([]*Bundle, error) {
	var bundles []*Bundle
	err := r.db.SelectContext(ctx, &bundles, `
		SELECT * FROM bundles WHERE is_active ORDER BY bundle_type, capacity_mb
	`)
	return bundles, err
}

// Reserve moves qty units from available to reserved. It fails fast with no
// mutation when availability cannot cover the request.
func (r *Repository) Reserve(ctx context.Context, e sqlx.ExtContext, bundleID uuid.UUID, qty int) error {
	result, err := e.ExecContext(ctx, `
		UPDATE bundles SET
			stock_available = stock_available - $2,
			stock_reserved  = stock_reserved + $2,
			is_out_of_stock = (stock_available - $2 = 0),
			is_low_stock    = (stock_available - $2 > 0 AND stock_available - $2 <= low_stock_threshold),
			updated_at      = now()
		WHERE id = $1 AND stock_available >= $2
	`, bundleID, qty)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// ConfirmReservation moves qty units from reserved to sold. The guard on
// stock_reserved surfaces caller bugs instead of corrupting the counters.
func (r *Repository) ConfirmReservation(ctx context.Context, e sqlx.ExtContext, bundleID uuid.UUID, qty int) error {
	result, err := e.ExecContext(ctx, `
		UPDATE bundles SET
			stock_reserved = stock_reserved - $2,
			stock_sold     = stock_sold + $2,
			updated_at     = now()
		WHERE id = $1 AND stock_reserved >= $2
	`, bundleID, qty)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrStockInconsistent
	}
	return nil
}

// ReleaseReservation returns qty units from reserved to available. Always
// safe: the reserved counter is clamped at zero.
func (r *Repository) ReleaseReservation(ctx context.Context, e sqlx.ExtContext, bundleID uuid.UUID, qty int) error {
	_, err := e.ExecContext(ctx, `
		UPDATE bundles SET
			stock_available = stock_available + $2,
			stock_reserved  = GREATEST(stock_reserved - $2, 0),
			is_out_of_stock = FALSE,
			is_low_stock    = (stock_available + $2 <= low_stock_threshold),
			updated_at      = now()
		WHERE id = $1
	`, bundleID, qty)
	return err
}

type stockChange struct {
	PreviousAvailable int `db:"previous_available"`
	NewAvailable      int `db:"new_available"`
}

// Restock increases available and initial units, appending a history record
// in the same transaction.
func (r *Repository) Restock(ctx context.Context, bundleID uuid.UUID, qty int, actorID uuid.UUID, reason string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := r.RestockTx(ctx, tx, bundleID, qty, actorID, reason); err != nil {
		return err
	}
	return tx.Commit()
}

// RestockTx performs the restock within an external transaction so callers
// can tie the stock return to their own guarded updates.
func (r *Repository) RestockTx(ctx context.Context, tx *sqlx.Tx, bundleID uuid.UUID, qty int, actorID uuid.UUID, reason string) error {
	var change stockChange
	err := tx.GetContext(ctx, &change, `
		UPDATE bundles SET
			stock_available = stock_available + $2,
			stock_initial   = stock_initial + $2,
			is_out_of_stock = FALSE,
			is_low_stock    = (stock_available + $2 <= low_stock_threshold),
			updated_at      = now()
		WHERE id = $1
		RETURNING stock_available - $2 AS previous_available, stock_available AS new_available
	`, bundleID, qty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	return r.insertHistory(ctx, tx, bundleID, change, qty, "restock", actorID, reason)
}

// Adjust applies a signed correction to available units, rejecting deltas
// that would drive availability negative.
func (r *Repository) Adjust(ctx context.Context, bundleID uuid.UUID, delta int, actorID uuid.UUID, reason string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var change stockChange
	err = tx.GetContext(ctx, &change, `
		UPDATE bundles SET
			stock_available = stock_available + $2,
			is_out_of_stock = (stock_available + $2 = 0),
			is_low_stock    = (stock_available + $2 > 0 AND stock_available + $2 <= low_stock_threshold),
			updated_at      = now()
		WHERE id = $1 AND stock_available + $2 >= 0
		RETURNING stock_available - $2 AS previous_available, stock_available AS new_available
	`, bundleID, delta)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Either the bundle is missing or the delta was too large
			if _, getErr := r.GetByID(ctx, bundleID); getErr != nil {
				return getErr
			}
			return ErrInvalidAdjustment
		}
		return err
	}

	if err := r.insertHistory(ctx, tx, bundleID, change, delta, "adjust", actorID, reason); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repository) insertHistory(ctx context.Context, tx *sqlx.Tx, bundleID uuid.UUID,
	change stockChange, delta int, action string, actorID uuid.UUID, reason string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO stock_history
			(id, bundle_id, previous_available, delta, new_available, action, actor_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
	`, uuid.New(), bundleID, change.PreviousAvailable, delta, change.NewAvailable, action, actorID, reason)
	return err
}

// History returns the append-only stock change log for a bundle, newest first
func (r *Repository) History(ctx context.Context, bundleID uuid.UUID, limit int) ([]StockHistoryEntry, error) {
	var entries []StockHistoryEntry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT * FROM stock_history
		WHERE bundle_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, bundleID, limit)
	return entries, err
}

// DB exposes the underlying handle for callers composing multi-domain transactions
func (r *Repository) DB() *sqlx.DB {
	return r.db
}
