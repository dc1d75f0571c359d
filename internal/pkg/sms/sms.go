package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Sender sends SMS messages. Failures never block business operations.
type Sender interface {
	Send(ctx context.Context, phoneNumber, message string) error
}

// Config holds SMS gateway configuration
type Config struct {
	BaseURL  string
	APIKey   string
	SenderID string
	Timeout  time.Duration
}

// Client is an HTTP SMS gateway client
type Client struct {
	httpClient *http.Client
	config     Config
}

type sendPayload struct {
	Sender     string   `json:"sender"`
	Message    string   `json:"message"`
	Recipients []string `json:"recipients"`
}

// NewClient creates an SMS gateway client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
	}
}

// Send delivers a single SMS
func (c *Client) Send(ctx context.Context, phoneNumber, message string) error {
	if strings.TrimSpace(c.config.APIKey) == "" {
		return fmt.Errorf("sms config error: api_key is empty")
	}

	jsonData, err := json.Marshal(sendPayload{
		Sender:     c.config.SenderID,
		Message:    message,
		Recipients: []string{phoneNumber},
	})
	if err != nil {
		return fmt.Errorf("failed to encode sms request: %w", err)
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + "/api/v2/sms/send"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("sms api call failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", c.config.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sms api call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sms api returned non-2xx status: %d, body: %s", resp.StatusCode, string(body))
	}

	return nil
}

// NotifyAsync sends an SMS in the background with its own timeout.
// Errors are logged, never returned.
func NotifyAsync(sender Sender, phoneNumber, message string) {
	if sender == nil || phoneNumber == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := sender.Send(ctx, phoneNumber, message); err != nil {
			log.Error().
				Err(err).
				Str("phone", phoneNumber).
				Msg("Failed to send SMS notification")
		}
	}()
}
