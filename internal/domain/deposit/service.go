package deposit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/bundlemart/bundlemart-api/internal/domain/audit"
	"github.com/bundlemart/bundlemart-api/internal/domain/user"
	"github.com/bundlemart/bundlemart-api/internal/domain/wallet"
	"github.com/bundlemart/bundlemart-api/internal/pkg/metrics"
	"github.com/bundlemart/bundlemart-api/internal/pkg/paystack"
	"github.com/bundlemart/bundlemart-api/internal/pkg/retry"
	"github.com/bundlemart/bundlemart-api/internal/pkg/sms"
)

const (
	doneKeyPrefix = "dep:done:"
	doneKeyTTL    = 24 * time.Hour

	// Pending deposits younger than this are left to the webhook and the
	// redirect; the poller only picks up ones the fast paths missed.
	pollMinAge = 10 * time.Minute
)

// Gateway is the slice of the payment client the reconciler needs
type Gateway interface {
	Initialize(ctx context.Context, req paystack.InitializeRequest) (*paystack.InitializeResponse, error)
	Verify(ctx context.Context, reference string) (*paystack.VerifyResult, error)
}

// Service runs the deposit lifecycle: initiation on the gateway, then
// reconciliation through whichever of webhook, redirect verify or polling
// reports success first. All three paths converge on the same claim protocol
// so a deposit credits at most once.
type Service struct {
	repo       *Repository
	users      *user.Repository
	gateway    Gateway
	redis      *redis.Client
	sms        sms.Sender
	audit      *audit.Sink
	feePercent decimal.Decimal
	staleAfter time.Duration
}

func NewService(repo *Repository, users *user.Repository, gateway Gateway,
	redisClient *redis.Client, smsSender sms.Sender, auditSink *audit.Sink,
	feePercent decimal.Decimal, staleAfter time.Duration) *Service {

	if staleAfter <= 0 {
		staleAfter = 30 * time.Minute
	}
	return &Service{
		repo:       repo,
		users:      users,
		gateway:    gateway,
		redis:      redisClient,
		sms:        smsSender,
		audit:      auditSink,
		feePercent: feePercent,
		staleAfter: staleAfter,
	}
}

// creditFor applies the platform fee to a gross deposit. The rule is a
// percentage of gross, rounded to pesewa precision, and it is the only place
// the fee is computed so every trigger path credits the same number.
func (s *Service) creditFor(gross decimal.Decimal) decimal.Decimal {
	if s.feePercent.IsZero() {
		return gross
	}
	fee := gross.Mul(s.feePercent).Div(decimal.NewFromInt(100)).Round(2)
	return gross.Sub(fee)
}

// Initiate opens a deposit on the gateway and records the pending ledger entry
func (s *Service) Initiate(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*InitiateResult, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !u.CanTransact() {
		return nil, wallet.ErrUserNotApproved
	}

	reference := "DEP-" + strings.ToUpper(uuid.New().String()[:12])

	txn, err := s.repo.CreatePending(ctx, userID, amount, reference, map[string]interface{}{
		"fee_percent": s.feePercent.String(),
	})
	if err != nil {
		return nil, err
	}

	init, err := s.gateway.Initialize(ctx, paystack.InitializeRequest{
		Email:       u.Email,
		AmountMinor: paystack.ToPesewas(amount),
		Currency:    "GHS",
		Reference:   reference,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize payment: %w", err)
	}

	log.Info().
		Str("reference", reference).
		Str("user_id", userID.String()).
		Str("amount", amount.String()).
		Msg("Deposit initiated")

	return &InitiateResult{Transaction: txn, AuthorizationURL: init.AuthorizationURL}, nil
}

// ProcessSuccessfulPayment reconciles a deposit the gateway reports as paid.
// Safe to call any number of times from any source: the first caller to win
// the claim credits the wallet, everyone else gets a terminal verdict.
func (s *Service) ProcessSuccessfulPayment(ctx context.Context, reference, source string,
	gatewayAmount decimal.Decimal, gatewayMeta map[string]interface{}) (*Result, error) {

	if s.isDone(ctx, reference) {
		metrics.DepositsReconciled.WithLabelValues(source, string(OutcomeAlreadyDone)).Inc()
		return &Result{Outcome: OutcomeAlreadyDone, Reference: reference}, nil
	}

	var claimed *wallet.Transaction
	err := retry.Do(ctx, "deposit.claim", func(ctx context.Context) error {
		var opErr error
		claimed, opErr = s.repo.Claim(ctx, reference, source)
		return opErr
	})
	if err != nil {
		return nil, err
	}

	if claimed == nil {
		result, err := s.resolveUnclaimed(ctx, reference, source)
		if err != nil || result != nil {
			if result != nil {
				metrics.DepositsReconciled.WithLabelValues(source, string(result.Outcome)).Inc()
			}
			return result, err
		}
		// resolveUnclaimed stole a stale claim; re-read it
		claimed, err = s.repo.GetByReference(ctx, reference)
		if err != nil {
			return nil, err
		}
	}

	if gatewayAmount.IsPositive() && !gatewayAmount.Equal(claimed.Amount) {
		s.releaseClaim(ctx, claimed.ID, reference)
		log.Error().
			Str("reference", reference).
			Str("expected", claimed.Amount.String()).
			Str("got", gatewayAmount.String()).
			Msg("Deposit amount mismatch, claim released")
		metrics.DepositsReconciled.WithLabelValues(source, "amount_mismatch").Inc()
		return nil, ErrAmountMismatch
	}

	credit := s.creditFor(claimed.Amount)
	if !credit.IsPositive() {
		s.releaseClaim(ctx, claimed.ID, reference)
		log.Error().
			Str("reference", reference).
			Str("gross", claimed.Amount.String()).
			Str("fee_percent", s.feePercent.String()).
			Msg("Fee leaves nothing to credit, claim released")
		metrics.DepositsReconciled.WithLabelValues(source, "nothing_to_credit").Inc()
		return nil, fmt.Errorf("%w: gross %s at %s%%", ErrNothingToCredit, claimed.Amount, s.feePercent)
	}
	meta := map[string]interface{}{
		"gross_amount":     claimed.Amount.String(),
		"credited_amount":  credit.String(),
		"reconcile_source": source,
	}
	for k, v := range gatewayMeta {
		meta[k] = v
	}

	completed, err := s.repo.CompleteClaimed(ctx, claimed, credit, meta)
	if err != nil {
		if errors.Is(err, ErrNotPending) {
			// Someone completed it between our claim read and the guarded
			// update. Terminal either way.
			s.markDone(ctx, reference)
			metrics.DepositsReconciled.WithLabelValues(source, string(OutcomeAlreadyDone)).Inc()
			return &Result{Outcome: OutcomeAlreadyDone, Reference: reference}, nil
		}
		s.releaseClaim(ctx, claimed.ID, reference)
		return nil, err
	}

	s.markDone(ctx, reference)
	metrics.DepositsReconciled.WithLabelValues(source, string(OutcomeCredited)).Inc()
	s.audit.Append(ctx, completed.UserID, "deposit.credited", reference, map[string]interface{}{
		"amount": credit.String(),
		"source": source,
	})

	log.Info().
		Str("reference", reference).
		Str("user_id", completed.UserID.String()).
		Str("credited", credit.String()).
		Str("source", source).
		Msg("Deposit credited")

	s.notifyCredited(ctx, completed.UserID, credit, completed.BalanceAfter)

	return &Result{
		Outcome:     OutcomeCredited,
		Reference:   reference,
		Transaction: completed,
		Credited:    credit,
	}, nil
}

// resolveUnclaimed classifies a reference the claim update did not match.
// Returns a terminal Result, or (nil, nil) after successfully stealing a
// stale claim so the caller proceeds with completion.
func (s *Service) resolveUnclaimed(ctx context.Context, reference, source string) (*Result, error) {
	existing, err := s.repo.GetByReference(ctx, reference)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &Result{Outcome: OutcomeNotFound, Reference: reference}, nil
		}
		return nil, err
	}

	if existing.Status == wallet.StatusCompleted {
		s.markDone(ctx, reference)
		return &Result{Outcome: OutcomeAlreadyDone, Reference: reference, Transaction: existing}, nil
	}
	if existing.Status != wallet.StatusPending {
		return &Result{Outcome: OutcomeNotFound, Reference: reference}, nil
	}

	// Pending but held by someone else. Steal only if the holder is stale.
	staleBefore := time.Now().Add(-s.staleAfter)
	stolen, err := s.repo.StealStaleClaim(ctx, reference, source, staleBefore)
	if err != nil {
		return nil, err
	}
	if stolen == nil {
		return &Result{Outcome: OutcomeBeingProcessed, Reference: reference}, nil
	}

	log.Warn().
		Str("reference", reference).
		Str("source", source).
		Msg("Stale deposit claim taken over")
	return nil, nil
}

// VerifyAndProcess asks the gateway for the transaction state and reconciles
// on success. This is the redirect-verify and polling entry point.
func (s *Service) VerifyAndProcess(ctx context.Context, reference, source string) (*Result, error) {
	if s.isDone(ctx, reference) {
		metrics.DepositsReconciled.WithLabelValues(source, string(OutcomeAlreadyDone)).Inc()
		return &Result{Outcome: OutcomeAlreadyDone, Reference: reference}, nil
	}

	verified, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("failed to verify payment: %w", err)
	}
	if !verified.IsSuccess() {
		return nil, fmt.Errorf("%w: gateway status %q", ErrPaymentFailed, verified.Status)
	}

	return s.ProcessSuccessfulPayment(ctx, reference, source, verified.Amount, map[string]interface{}{
		"gateway_fees":   verified.Fees.String(),
		"gateway_status": verified.Status,
	})
}

// SweepStaleClaims releases claims whose holders went silent
func (s *Service) SweepStaleClaims(ctx context.Context) (int64, error) {
	var released int64
	err := retry.Do(ctx, "deposit.sweep_stale", func(ctx context.Context) error {
		var opErr error
		released, opErr = s.repo.SweepStaleClaims(ctx, time.Now().Add(-s.staleAfter))
		return opErr
	})
	if err != nil {
		return 0, err
	}
	if released > 0 {
		metrics.StaleClaimsReleased.Add(float64(released))
		log.Warn().Int64("released", released).Msg("Stale deposit claims released")
	}
	return released, nil
}

// ReconcilePending verifies a batch of aged pending deposits against the
// gateway. Payments the webhook and redirect both missed resolve here.
func (s *Service) ReconcilePending(ctx context.Context, batchSize int, source string) (credited, checked int, err error) {
	pending, err := s.repo.ListPendingOlderThan(ctx, time.Now().Add(-pollMinAge), batchSize)
	if err != nil {
		return 0, 0, err
	}

	for _, txn := range pending {
		checked++
		result, err := s.VerifyAndProcess(ctx, txn.Reference, source)
		if err != nil {
			if errors.Is(err, ErrPaymentFailed) {
				continue
			}
			log.Error().Err(err).Str("reference", txn.Reference).Msg("Pending deposit verification failed")
			continue
		}
		if result.Outcome == OutcomeCredited {
			credited++
		}
	}
	return credited, checked, nil
}

// GetByReference exposes a deposit entry for status lookups
func (s *Service) GetByReference(ctx context.Context, reference string) (*wallet.Transaction, error) {
	return s.repo.GetByReference(ctx, reference)
}

func (s *Service) releaseClaim(ctx context.Context, id uuid.UUID, reference string) {
	if err := s.repo.ReleaseClaim(ctx, id); err != nil {
		log.Error().Err(err).Str("reference", reference).Msg("Failed to release deposit claim")
	}
}

func (s *Service) isDone(ctx context.Context, reference string) bool {
	if s.redis == nil {
		return false
	}
	n, err := s.redis.Exists(ctx, doneKeyPrefix+reference).Result()
	return err == nil && n > 0
}

func (s *Service) markDone(ctx context.Context, reference string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Set(ctx, doneKeyPrefix+reference, "1", doneKeyTTL).Err(); err != nil {
		log.Warn().Err(err).Str("reference", reference).Msg("Failed to cache completed deposit reference")
	}
}

func (s *Service) notifyCredited(ctx context.Context, userID uuid.UUID, credited, balance decimal.Decimal) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("Failed to load user for deposit SMS")
		return
	}
	msg := fmt.Sprintf("Your wallet has been credited with GHS %s. New balance: GHS %s.",
		credited.StringFixed(2), balance.StringFixed(2))
	sms.NotifyAsync(s.sms, u.Phone, msg)
}
