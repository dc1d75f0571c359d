package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds Paystack API configuration
type Config struct {
	BaseURL     string
	SecretKey   string
	CallbackURL string
	Timeout     time.Duration
}

// Client represents Paystack payment gateway client
type Client struct {
	httpClient *http.Client
	config     Config
}

// InitializeRequest represents transaction initialization request
type InitializeRequest struct {
	Email       string            `json:"email"`
	AmountMinor int64             `json:"amount"` // pesewas
	Currency    string            `json:"currency"`
	Reference   string            `json:"reference"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// InitializeResponse represents transaction initialization response
type InitializeResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// VerifyResult represents the outcome of a verification call
type VerifyResult struct {
	Reference string
	Status    string // success, failed, abandoned, pending
	Amount    decimal.Decimal
	Fees      decimal.Decimal
	Currency  string
	Metadata  map[string]interface{}
}

// IsSuccess reports whether the gateway settled the charge.
func (v *VerifyResult) IsSuccess() bool {
	return v.Status == "success"
}

type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type verifyData struct {
	Reference string                 `json:"reference"`
	Status    string                 `json:"status"`
	Amount    int64                  `json:"amount"`
	Fees      int64                  `json:"fees"`
	Currency  string                 `json:"currency"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// NewClient creates new Paystack API client
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.paystack.co"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
	}
}

// Initialize creates a pending transaction on the gateway and returns the
// authorization URL for user redirect.
func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResponse, error) {
	if req.AmountMinor <= 0 {
		return nil, fmt.Errorf("validation error: amount must be > 0")
	}
	if strings.TrimSpace(req.Reference) == "" {
		return nil, fmt.Errorf("validation error: reference must be non-empty")
	}
	if req.Currency == "" {
		req.Currency = "GHS"
	}
	if req.CallbackURL == "" {
		req.CallbackURL = c.config.CallbackURL
	}

	data, err := c.call(ctx, http.MethodPost, "/transaction/initialize", req)
	if err != nil {
		return nil, err
	}

	var out InitializeResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse paystack response: %w", err)
	}
	return &out, nil
}

// Verify fetches the current gateway-side state of a transaction by reference.
func (c *Client) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, fmt.Errorf("validation error: reference must be non-empty")
	}

	data, err := c.call(ctx, http.MethodGet, "/transaction/verify/"+reference, nil)
	if err != nil {
		return nil, err
	}

	var vd verifyData
	if err := json.Unmarshal(data, &vd); err != nil {
		return nil, fmt.Errorf("failed to parse paystack response: %w", err)
	}

	return &VerifyResult{
		Reference: vd.Reference,
		Status:    vd.Status,
		Amount:    FromPesewas(vd.Amount),
		Fees:      FromPesewas(vd.Fees),
		Currency:  vd.Currency,
		Metadata:  vd.Metadata,
	}, nil
}

func (c *Client) call(ctx context.Context, method, path string, payload interface{}) (json.RawMessage, error) {
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("paystack client is not initialized")
	}
	if strings.TrimSpace(c.config.SecretKey) == "" {
		return nil, fmt.Errorf("paystack config error: secret_key is empty")
	}

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode paystack request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + path

	timeout := c.config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("paystack api call failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.SecretKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("paystack api call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("paystack api call failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("paystack api returned non-2xx status: %d, body: %s", resp.StatusCode, string(respBody))
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse paystack response: %w", err)
	}
	if !envelope.Status {
		return nil, fmt.Errorf("paystack api error: %s", envelope.Message)
	}

	return envelope.Data, nil
}
