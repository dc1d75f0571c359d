package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/bundlemart/bundlemart-api/internal/domain/audit"
	"github.com/bundlemart/bundlemart-api/internal/domain/bundle"
	"github.com/bundlemart/bundlemart-api/internal/domain/user"
	"github.com/bundlemart/bundlemart-api/internal/domain/wallet"
	"github.com/bundlemart/bundlemart-api/internal/pkg/fulfillment"
	"github.com/bundlemart/bundlemart-api/internal/pkg/metrics"
	"github.com/bundlemart/bundlemart-api/internal/pkg/retry"
	"github.com/bundlemart/bundlemart-api/internal/pkg/sms"
)

const providerTimeout = 10 * time.Second

// Orchestrator runs order placement and the editor-driven lifecycle. The
// external provider call happens outside the database transaction; everything
// persistent commits as one unit so money never moves without an order row.
type Orchestrator struct {
	orders  *Repository
	stock   *bundle.StockEngine
	ledger  *wallet.Repository
	users   *user.Repository
	fulfill *fulfillment.Registry
	sms     sms.Sender
	audit   *audit.Sink
}

func NewOrchestrator(orders *Repository, stock *bundle.StockEngine, ledger *wallet.Repository,
	users *user.Repository, fulfill *fulfillment.Registry, smsSender sms.Sender, auditSink *audit.Sink) *Orchestrator {
	return &Orchestrator{
		orders:  orders,
		stock:   stock,
		ledger:  ledger,
		users:   users,
		fulfill: fulfill,
		sms:     smsSender,
		audit:   auditSink,
	}
}

// PlaceOrder runs the full placement pipeline: price resolution, balance
// check, stock reservation, provider submission, then a single transaction
// for order row, wallet debit and reservation settlement. A provider
// rejection or timeout leaves nothing behind but a released reservation.
func (s *Orchestrator) PlaceOrder(ctx context.Context, userID, bundleID uuid.UUID,
	recipient string, qty int) (*Order, error) {

	if qty <= 0 {
		return nil, bundle.ErrInvalidQuantity
	}
	if strings.TrimSpace(recipient) == "" {
		return nil, ErrInvalidRecipient
	}

	b, err := s.stock.Get(ctx, bundleID)
	if err != nil {
		return nil, err
	}
	if !b.IsActive {
		return nil, bundle.ErrNotActive
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.CanTransact() {
		return nil, wallet.ErrUserNotApproved
	}

	unitPrice := b.PriceFor(string(u.Role))
	total := unitPrice.Mul(decimal.NewFromInt(int64(qty)))

	balance, err := s.ledger.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balance.LessThan(total) {
		metrics.OrdersRejectedTotal.WithLabelValues("insufficient_funds").Inc()
		return nil, wallet.ErrInsufficientFunds
	}

	if err := s.stock.Reserve(ctx, bundleID, qty); err != nil {
		if errors.Is(err, bundle.ErrInsufficientStock) {
			metrics.OrdersRejectedTotal.WithLabelValues("out_of_stock").Inc()
		}
		return nil, err
	}

	reference := "ORD-" + strings.ToUpper(uuid.New().String()[:12])
	status := StatusPending
	providerRef := sql.NullString{}
	reservationConfirmed := false

	if b.RequiresProvider() {
		result, err := s.submitToProvider(ctx, b, recipient, qty, reference)
		if err != nil {
			s.releaseReserved(ctx, bundleID, qty, reference)
			if errors.Is(err, fulfillment.ErrRejected) {
				metrics.OrdersRejectedTotal.WithLabelValues("provider_rejected").Inc()
			} else {
				metrics.OrdersRejectedTotal.WithLabelValues("provider_error").Inc()
			}
			return nil, err
		}
		providerRef = sql.NullString{String: result.ProviderReference, Valid: result.ProviderReference != ""}
		if result.Delivered {
			status = StatusCompleted
		} else {
			status = StatusProcessing
		}
		// Provider accepted, so the units are sold regardless of whether
		// delivery settles now or out-of-band.
		reservationConfirmed = true
	}

	now := time.Now()
	metaRaw, _ := json.Marshal(map[string]interface{}{
		"quantity":       qty,
		"stock_snapshot": b.StockAvailable,
	})
	o := &Order{
		ID:                   uuid.New(),
		UserID:               userID,
		BundleID:             bundleID,
		BundleType:           b.BundleType,
		CapacityMB:           b.CapacityMB,
		Quantity:             qty,
		UnitPrice:            unitPrice,
		Price:                total,
		RecipientNumber:      recipient,
		OrderReference:       reference,
		ProviderReference:    providerRef,
		Status:               status,
		ReservationConfirmed: reservationConfirmed,
		Metadata:             metaRaw,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if status == StatusCompleted {
		o.CompletedAt = sql.NullTime{Time: now, Valid: true}
	}

	err = retry.Do(ctx, "order.persist_placement", func(ctx context.Context) error {
		return s.persistPlacement(ctx, o, reservationConfirmed)
	})
	if err != nil {
		s.releaseReserved(ctx, bundleID, qty, reference)
		return nil, err
	}

	metrics.OrdersPlacedTotal.WithLabelValues(b.BundleType).Inc()
	s.audit.Append(ctx, userID, "order.placed", o.ID.String(), map[string]interface{}{
		"reference": reference,
		"bundle_id": bundleID.String(),
		"price":     total.String(),
		"status":    string(status),
	})

	log.Info().
		Str("reference", reference).
		Str("user_id", userID.String()).
		Str("bundle_type", b.BundleType).
		Str("status", string(status)).
		Msg("Order placed")

	if status == StatusCompleted {
		s.notifyOrder(u.Phone, fmt.Sprintf("Your %s order %s has been delivered to %s.",
			b.BundleType, reference, recipient))
	}

	return o, nil
}

func (s *Orchestrator) submitToProvider(ctx context.Context, b *bundle.Bundle,
	recipient string, qty int, reference string) (*fulfillment.SubmitResult, error) {

	provider, err := s.fulfill.Get(b.Fulfillment)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()

	result, err := provider.Submit(ctx, fulfillment.SubmitRequest{
		Recipient: recipient,
		VolumeMB:  b.CapacityMB * int64(qty),
		Reference: reference,
	})
	if err != nil {
		// A timeout is a failure, never an ambiguous success
		log.Warn().
			Err(err).
			Str("provider", provider.Name()).
			Str("reference", reference).
			Msg("Fulfillment submission failed")
		return nil, err
	}
	return result, nil
}

// persistPlacement commits order row, wallet debit and reservation settlement
// as one transaction.
func (s *Orchestrator) persistPlacement(ctx context.Context, o *Order, confirmStock bool) error {
	tx, err := s.orders.DB().BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	balance, err := s.ledger.LockWallet(ctx, tx, o.UserID)
	if err != nil {
		return err
	}

	if err := s.orders.InsertTx(ctx, tx, o); err != nil {
		return err
	}

	txn, err := s.ledger.ApplyTx(ctx, tx, o.UserID, balance, wallet.TypePurchase, o.Price,
		"ord-"+o.OrderReference, wallet.Attribution{Metadata: map[string]interface{}{
			"order_id": o.ID.String(),
		}})
	if err != nil {
		if errors.Is(err, wallet.ErrInsufficientFunds) {
			metrics.OrdersRejectedTotal.WithLabelValues("insufficient_funds").Inc()
		}
		return err
	}
	_, err = tx.ExecContext(ctx, `UPDATE wallet_transactions SET order_id = $1 WHERE id = $2`, o.ID, txn.ID)
	if err != nil {
		return err
	}

	if confirmStock {
		if err := s.stock.ConfirmReservationTx(ctx, tx, o.BundleID, o.Quantity); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// UpdateStatus applies an editor-driven transition. Refunds credit the order
// price back exactly once, keyed on the order id.
func (s *Orchestrator) UpdateStatus(ctx context.Context, orderID uuid.UUID, next Status,
	actorID uuid.UUID, actorRole, reason string) (*Order, error) {

	if !next.Valid() {
		return nil, ErrInvalidTransition
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status == next {
		return nil, ErrSameStatus
	}
	if !o.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, o.Status, next)
	}

	switch next {
	case StatusCompleted:
		err = s.completeOrder(ctx, o, actorID)
	case StatusRefunded:
		err = s.refundOrder(ctx, o, actorID, reason)
	case StatusFailed, StatusAPIError:
		err = s.failOrder(ctx, o, next, actorID, reason)
	case StatusProcessing:
		err = s.transition(ctx, o, StatusProcessing, actorID, "", o.ReservationConfirmed)
	default:
		return nil, ErrInvalidTransition
	}
	if err != nil {
		return nil, err
	}

	s.audit.Append(ctx, actorID, "order.status_changed", o.ID.String(), map[string]interface{}{
		"reference":  o.OrderReference,
		"from":       string(o.Status),
		"to":         string(next),
		"actor_role": actorRole,
		"reason":     reason,
	})

	log.Info().
		Str("reference", o.OrderReference).
		Str("from", string(o.Status)).
		Str("to", string(next)).
		Str("actor_id", actorID.String()).
		Msg("Order status changed")

	return s.orders.GetByID(ctx, orderID)
}

// completeOrder confirms the held reservation (manual path) and marks the
// order done in one transaction.
func (s *Orchestrator) completeOrder(ctx context.Context, o *Order, actorID uuid.UUID) error {
	tx, err := s.orders.DB().BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if o.ReservationHeld() {
		if err := s.stock.ConfirmReservationTx(ctx, tx, o.BundleID, o.Quantity); err != nil {
			return err
		}
	}
	if err := s.orders.TransitionTx(ctx, tx, o.ID, o.Status, StatusCompleted, actorID, "", true); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if u, err := s.users.GetByID(ctx, o.UserID); err == nil {
		s.notifyOrder(u.Phone, fmt.Sprintf("Your %s order %s has been delivered to %s.",
			o.BundleType, o.OrderReference, o.RecipientNumber))
	}
	return nil
}

// refundOrder credits the order price back and returns the units to stock.
// The credit reference is derived from the order id so a repeated refund
// attempt hits the ledger's idempotency and cannot double-credit. The stock
// return and the guarded transition commit together: a concurrent refund
// that loses the status guard rolls its stock mutation back with it.
func (s *Orchestrator) refundOrder(ctx context.Context, o *Order, actorID uuid.UUID, reason string) error {
	_, err := s.ledger.Credit(ctx, o.UserID, wallet.TypeRefund, o.Price,
		"refund-"+o.ID.String(), wallet.Attribution{
			ProcessedBy: uuid.NullUUID{UUID: actorID, Valid: true},
			Metadata: map[string]interface{}{
				"order_id":        o.ID.String(),
				"order_reference": o.OrderReference,
				"reason":          reason,
			},
		})
	if err != nil && !errors.Is(err, wallet.ErrDuplicateReference) {
		return err
	}

	tx, err := s.orders.DB().BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if o.ReservationHeld() {
		if err := s.stock.ReleaseReservationTx(ctx, tx, o.BundleID, o.Quantity); err != nil {
			return err
		}
	} else if o.ReservationConfirmed {
		if err := s.stock.RestockTx(ctx, tx, o.BundleID, o.Quantity, actorID, "order refund "+o.OrderReference); err != nil {
			return err
		}
	}
	if err := s.orders.TransitionTx(ctx, tx, o.ID, o.Status, StatusRefunded, actorID, reason, o.ReservationConfirmed); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	metrics.OrdersRefundedTotal.Inc()
	if u, err := s.users.GetByID(ctx, o.UserID); err == nil {
		s.notifyOrder(u.Phone, fmt.Sprintf("Order %s was refunded. GHS %s has been returned to your wallet.",
			o.OrderReference, o.Price.StringFixed(2)))
	}
	return nil
}

// failOrder releases a held reservation and records the failure in one
// transaction. A confirmed reservation stays confirmed: the units were sold,
// and a later refund is what returns them.
func (s *Orchestrator) failOrder(ctx context.Context, o *Order, next Status, actorID uuid.UUID, reason string) error {
	tx, err := s.orders.DB().BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if o.ReservationHeld() {
		if err := s.stock.ReleaseReservationTx(ctx, tx, o.BundleID, o.Quantity); err != nil {
			return err
		}
	}
	if err := s.orders.TransitionTx(ctx, tx, o.ID, o.Status, next, actorID, reason, o.ReservationConfirmed); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Orchestrator) transition(ctx context.Context, o *Order, next Status,
	actorID uuid.UUID, reason string, reservationConfirmed bool) error {

	tx, err := s.orders.DB().BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.orders.TransitionTx(ctx, tx, o.ID, o.Status, next, actorID, reason, reservationConfirmed); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Orchestrator) releaseReserved(ctx context.Context, bundleID uuid.UUID, qty int, reference string) {
	if err := s.stock.ReleaseReservation(ctx, bundleID, qty); err != nil {
		log.Error().
			Err(err).
			Str("bundle_id", bundleID.String()).
			Str("reference", reference).
			Msg("Failed to release reservation after aborted order")
	}
}

func (s *Orchestrator) notifyOrder(phone, message string) {
	sms.NotifyAsync(s.sms, phone, message)
}

// Get returns an order by id
func (s *Orchestrator) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.orders.GetByID(ctx, id)
}

// ListByUser returns a user's order history
func (s *Orchestrator) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.orders.ListByUser(ctx, userID, limit, offset)
}

// List returns orders across users for staff views
func (s *Orchestrator) List(ctx context.Context, status Status, limit, offset int) ([]*Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.orders.List(ctx, status, limit, offset)
}
