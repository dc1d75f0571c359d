package paystack

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Webhook event types this system cares about.
const (
	EventChargeSuccess = "charge.success"
)

// WebhookEvent represents a parsed Paystack webhook delivery
type WebhookEvent struct {
	Event     string
	Reference string
	Amount    decimal.Decimal
	Fees      decimal.Decimal
	Currency  string
	Metadata  map[string]interface{}
}

type webhookBody struct {
	Event string `json:"event"`
	Data  struct {
		Reference string                 `json:"reference"`
		Amount    int64                  `json:"amount"`
		Fees      int64                  `json:"fees"`
		Currency  string                 `json:"currency"`
		Metadata  map[string]interface{} `json:"metadata"`
	} `json:"data"`
}

// ParseWebhook parses a raw webhook body into a structured event.
// Signature verification is the caller's responsibility and must happen
// against the exact raw bytes passed here.
func ParseWebhook(raw []byte) (*WebhookEvent, error) {
	var body webhookBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}
	if body.Event == "" {
		return nil, fmt.Errorf("webhook event is required")
	}
	if body.Data.Reference == "" {
		return nil, fmt.Errorf("webhook reference is required")
	}

	return &WebhookEvent{
		Event:     body.Event,
		Reference: body.Data.Reference,
		Amount:    FromPesewas(body.Data.Amount),
		Fees:      FromPesewas(body.Data.Fees),
		Currency:  body.Data.Currency,
		Metadata:  body.Data.Metadata,
	}, nil
}
