package fulfillment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ClientConfig holds reseller API configuration
type ClientConfig struct {
	Name      string
	BaseURL   string
	APIKey    string
	Delivered bool // whether this reseller settles submissions synchronously
	Timeout   time.Duration
}

// HTTPProvider is a Provider backed by a reseller REST API.
// Hubnet, Geonettech and Telecel all expose the same submit shape; only
// endpoint, auth header and settlement semantics differ.
type HTTPProvider struct {
	httpClient *http.Client
	config     ClientConfig
}

type submitPayload struct {
	Phone     string `json:"phone"`
	Volume    int64  `json:"volume"`
	Reference string `json:"reference"`
}

type submitResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Reference string `json:"reference"`
}

// NewHTTPProvider creates a reseller API client
func NewHTTPProvider(cfg ClientConfig) *HTTPProvider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPProvider{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
	}
}

// Name returns the provider identifier
func (p *HTTPProvider) Name() string { return p.config.Name }

// Submit pushes a bundle delivery to the reseller API.
func (p *HTTPProvider) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if strings.TrimSpace(req.Recipient) == "" {
		return nil, fmt.Errorf("validation error: recipient must be non-empty")
	}
	if req.VolumeMB <= 0 {
		return nil, fmt.Errorf("validation error: volume must be > 0")
	}
	if strings.TrimSpace(p.config.BaseURL) == "" {
		return nil, fmt.Errorf("%s config error: base_url is empty", p.config.Name)
	}

	jsonData, err := json.Marshal(submitPayload{
		Phone:     req.Recipient,
		Volume:    req.VolumeMB,
		Reference: req.Reference,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", p.config.Name, err)
	}

	url := strings.TrimRight(p.config.BaseURL, "/") + "/api/v1/transactions"

	timeout := p.config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("%s api call failed: %w", p.config.Name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s api call failed: %w", p.config.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s api call failed: %w", p.config.Name, err)
	}

	// 4xx is a decline: the reseller looked at the request and said no.
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		reason := parseReason(body)
		return nil, &RejectionError{Provider: p.config.Name, Reason: reason}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s api returned non-2xx status: %d, body: %s", p.config.Name, resp.StatusCode, string(body))
	}

	var out submitResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", p.config.Name, err)
	}

	switch strings.ToLower(out.Status) {
	case "success", "accepted", "pending", "processing", "ok":
		return &SubmitResult{
			ProviderReference: out.Reference,
			Delivered:         p.config.Delivered,
		}, nil
	default:
		return nil, &RejectionError{Provider: p.config.Name, Reason: out.Message}
	}
}

func parseReason(body []byte) string {
	var out submitResponse
	if err := json.Unmarshal(body, &out); err == nil && out.Message != "" {
		return out.Message
	}
	const max = 200
	if len(body) > max {
		body = body[:max]
	}
	return string(body)
}
