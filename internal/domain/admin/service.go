package admin

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/bundlemart/bundlemart-api/internal/domain/audit"
	"github.com/bundlemart/bundlemart-api/internal/domain/deposit"
	"github.com/bundlemart/bundlemart-api/internal/domain/user"
	"github.com/bundlemart/bundlemart-api/internal/domain/wallet"
)

// Service is the staff adjustment layer. Every mutation goes through the same
// ledger primitives as the automated paths and carries processed_by
// attribution, so admin corrections are indistinguishable in shape from
// system-originated entries.
type Service struct {
	ledger   *wallet.Ledger
	users    *user.Service
	deposits *deposit.Service
	audit    *audit.Sink
}

func NewService(ledger *wallet.Ledger, users *user.Service, deposits *deposit.Service, auditSink *audit.Sink) *Service {
	return &Service{ledger: ledger, users: users, deposits: deposits, audit: auditSink}
}

func adjustmentReference(prefix string, provided string) string {
	if strings.TrimSpace(provided) != "" {
		return provided
	}
	return prefix + "-" + strings.ToUpper(uuid.New().String()[:12])
}

// CreditWallet applies a manual credit or reward payout to a user's wallet
func (s *Service) CreditWallet(ctx context.Context, actorID, targetID uuid.UUID,
	amount decimal.Decimal, txType wallet.TransactionType, reference, reason string) (*wallet.Transaction, error) {

	if !txType.IsCredit() || txType == wallet.TypeDeposit {
		return nil, wallet.ErrInvalidAmount
	}

	txn, err := s.ledger.Credit(ctx, targetID, amount, txType,
		adjustmentReference("ADJ", reference), wallet.Attribution{
			ProcessedBy: uuid.NullUUID{UUID: actorID, Valid: true},
			Metadata:    map[string]interface{}{"reason": reason},
		})
	if err != nil {
		return nil, err
	}

	s.audit.Append(ctx, actorID, "wallet.admin_credit", targetID.String(), map[string]interface{}{
		"amount":    amount.String(),
		"type":      string(txType),
		"reference": txn.Reference,
		"reason":    reason,
	})
	return txn, nil
}

// DebitWallet applies a manual debit, bounded by the current balance
func (s *Service) DebitWallet(ctx context.Context, actorID, targetID uuid.UUID,
	amount decimal.Decimal, reference, reason string) (*wallet.Transaction, error) {

	txn, err := s.ledger.Debit(ctx, targetID, amount, wallet.TypeDebit,
		adjustmentReference("ADJ", reference), wallet.Attribution{
			ProcessedBy: uuid.NullUUID{UUID: actorID, Valid: true},
			Metadata:    map[string]interface{}{"reason": reason},
		})
	if err != nil {
		return nil, err
	}

	s.audit.Append(ctx, actorID, "wallet.admin_debit", targetID.String(), map[string]interface{}{
		"amount":    amount.String(),
		"reference": txn.Reference,
		"reason":    reason,
	})
	return txn, nil
}

// ApproveUser activates a pending registration
func (s *Service) ApproveUser(ctx context.Context, actorID, targetID uuid.UUID) error {
	if err := s.users.Approve(ctx, targetID); err != nil {
		return err
	}
	s.audit.Append(ctx, actorID, "user.approved", targetID.String(), nil)
	return nil
}

// RejectUser declines a pending registration
func (s *Service) RejectUser(ctx context.Context, actorID, targetID uuid.UUID) error {
	if err := s.users.Reject(ctx, targetID); err != nil {
		return err
	}
	s.audit.Append(ctx, actorID, "user.rejected", targetID.String(), nil)
	return nil
}

// ListPendingUsers returns registrations awaiting a decision
func (s *Service) ListPendingUsers(ctx context.Context, limit, offset int) ([]*user.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.users.ListPending(ctx, limit, offset)
}

// ReconcileDeposits re-verifies a batch of aged pending deposits against the
// gateway. Used when a webhook outage leaves deposits stranded.
func (s *Service) ReconcileDeposits(ctx context.Context, actorID uuid.UUID, batchSize int) (credited, checked int, err error) {
	if batchSize <= 0 || batchSize > 200 {
		batchSize = 50
	}

	credited, checked, err = s.deposits.ReconcilePending(ctx, batchSize, deposit.SourceAdmin)
	if err != nil {
		return 0, 0, err
	}

	s.audit.Append(ctx, actorID, "deposit.bulk_reconcile", "", map[string]interface{}{
		"checked":  checked,
		"credited": credited,
	})
	log.Info().
		Int("checked", checked).
		Int("credited", credited).
		Str("actor_id", actorID.String()).
		Msg("Admin deposit reconciliation completed")
	return credited, checked, nil
}

// AuditTrail returns audit entries for a target
func (s *Service) AuditTrail(ctx context.Context, targetID string, limit int) ([]audit.Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.audit.ListByTarget(ctx, targetID, limit)
}
