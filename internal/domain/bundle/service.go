package bundle

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/bundlemart/bundlemart-api/internal/pkg/metrics"
)

// StockEngine is the only component allowed to mutate stock unit counters.
type StockEngine struct {
	repo *Repository
}

func NewStockEngine(repo *Repository) *StockEngine {
	return &StockEngine{repo: repo}
}

func (s *StockEngine) Get(ctx context.Context, id uuid.UUID) (*Bundle, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *StockEngine) ListActive(ctx context.Context) ([]*Bundle, error) {
	return s.repo.ListActive(ctx)
}

// Reserve holds qty units ahead of an order attempt
func (s *StockEngine) Reserve(ctx context.Context, bundleID uuid.UUID, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if err := s.repo.Reserve(ctx, s.repo.DB(), bundleID, qty); err != nil {
		return err
	}
	metrics.StockReservationsTotal.WithLabelValues("reserve").Inc()
	return nil
}

// ConfirmReservationTx settles a reservation as sold within the caller's transaction
func (s *StockEngine) ConfirmReservationTx(ctx context.Context, tx *sqlx.Tx, bundleID uuid.UUID, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	err := s.repo.ConfirmReservation(ctx, tx, bundleID, qty)
	if err != nil {
		if err == ErrStockInconsistent {
			log.Error().
				Str("bundle_id", bundleID.String()).
				Int("qty", qty).
				Msg("Confirm exceeded reserved units, caller bug")
		}
		return err
	}
	metrics.StockReservationsTotal.WithLabelValues("confirm").Inc()
	return nil
}

// ReleaseReservation returns held units after a failed or refunded order
func (s *StockEngine) ReleaseReservation(ctx context.Context, bundleID uuid.UUID, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if err := s.repo.ReleaseReservation(ctx, s.repo.DB(), bundleID, qty); err != nil {
		return err
	}
	metrics.StockReservationsTotal.WithLabelValues("release").Inc()
	return nil
}

// ReleaseReservationTx returns held units within the caller's transaction
func (s *StockEngine) ReleaseReservationTx(ctx context.Context, tx *sqlx.Tx, bundleID uuid.UUID, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if err := s.repo.ReleaseReservation(ctx, tx, bundleID, qty); err != nil {
		return err
	}
	metrics.StockReservationsTotal.WithLabelValues("release").Inc()
	return nil
}

// Restock adds new units, attributed and recorded in the stock history
func (s *StockEngine) Restock(ctx context.Context, bundleID uuid.UUID, qty int, actorID uuid.UUID, reason string) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if err := s.repo.Restock(ctx, bundleID, qty, actorID, reason); err != nil {
		return err
	}
	log.Info().
		Str("bundle_id", bundleID.String()).
		Int("qty", qty).
		Str("actor_id", actorID.String()).
		Msg("Bundle restocked")
	metrics.StockReservationsTotal.WithLabelValues("restock").Inc()
	return nil
}

// RestockTx returns sold units within the caller's transaction, recorded in
// the stock history like any other restock
func (s *StockEngine) RestockTx(ctx context.Context, tx *sqlx.Tx, bundleID uuid.UUID, qty int, actorID uuid.UUID, reason string) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if err := s.repo.RestockTx(ctx, tx, bundleID, qty, actorID, reason); err != nil {
		return err
	}
	metrics.StockReservationsTotal.WithLabelValues("restock").Inc()
	return nil
}

// Adjust applies a signed stock correction, attributed and recorded
func (s *StockEngine) Adjust(ctx context.Context, bundleID uuid.UUID, delta int, actorID uuid.UUID, reason string) error {
	if delta == 0 {
		return ErrInvalidQuantity
	}
	if err := s.repo.Adjust(ctx, bundleID, delta, actorID, reason); err != nil {
		return err
	}
	log.Info().
		Str("bundle_id", bundleID.String()).
		Int("delta", delta).
		Str("actor_id", actorID.String()).
		Msg("Bundle stock adjusted")
	metrics.StockReservationsTotal.WithLabelValues("adjust").Inc()
	return nil
}

// History exposes the append-only stock log
func (s *StockEngine) History(ctx context.Context, bundleID uuid.UUID, limit int) ([]StockHistoryEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.History(ctx, bundleID, limit)
}
