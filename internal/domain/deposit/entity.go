package deposit

import (
	"github.com/shopspring/decimal"

	"github.com/bundlemart/bundlemart-api/internal/domain/wallet"
)

// Trigger sources for reconciliation. Every path funnels into the same
// routine; the source is recorded on the claim for observability.
const (
	SourceWebhook  = "webhook"
	SourceRedirect = "redirect_verify"
	SourcePoll     = "poll_verify"
	SourceAdmin    = "admin_reconcile"
)

// Outcome classifies a reconciliation attempt
type Outcome string

const (
	OutcomeCredited       Outcome = "credited"
	OutcomeAlreadyDone    Outcome = "already_processed"
	OutcomeBeingProcessed Outcome = "being_processed"
	OutcomeNotFound       Outcome = "not_found"
)

// Result is the reconciliation verdict returned to every trigger path
type Result struct {
	Outcome     Outcome             `json:"outcome"`
	Reference   string              `json:"reference"`
	Transaction *wallet.Transaction `json:"transaction,omitempty"`
	Credited    decimal.Decimal     `json:"credited_amount"`
}

// AlreadyProcessed reports whether the reference was settled before this attempt
func (r *Result) AlreadyProcessed() bool { return r.Outcome == OutcomeAlreadyDone }

// IsBeingProcessed reports whether another caller currently holds the claim
func (r *Result) IsBeingProcessed() bool { return r.Outcome == OutcomeBeingProcessed }

// InitiateResult is returned when a deposit is opened on the gateway
type InitiateResult struct {
	Transaction      *wallet.Transaction `json:"transaction"`
	AuthorizationURL string              `json:"authorization_url"`
}
