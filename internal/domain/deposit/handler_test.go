package deposit

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bundlemart/bundlemart-api/internal/pkg/paystack"
)

const testSecret = "sk_test_webhook"

func postWebhook(t *testing.T, h *Handler, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(paystack.SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	h.Webhook(rec, req)
	return rec
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	h := NewHandler(nil, testSecret)
	body := []byte(`{"event":"charge.success","data":{"reference":"DEP-1","amount":1000}}`)

	rec := postWebhook(t, h, body, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing signature: expected 401, got %d", rec.Code)
	}

	rec = postWebhook(t, h, body, "deadbeef")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong signature: expected 401, got %d", rec.Code)
	}

	// Signature computed over different bytes than delivered
	other := paystack.GenerateSignature([]byte(`{"event":"charge.success"}`), testSecret)
	rec = postWebhook(t, h, body, other)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("mismatched signature: expected 401, got %d", rec.Code)
	}
}

func TestWebhookAcknowledgesIgnoredEvents(t *testing.T) {
	h := NewHandler(nil, testSecret)

	// A correctly signed event type we do not handle still gets a 200 so the
	// gateway does not retry it forever.
	body := []byte(`{"event":"transfer.success","data":{"reference":"TRF-1"}}`)
	rec := postWebhook(t, h, body, paystack.GenerateSignature(body, testSecret))
	if rec.Code != http.StatusOK {
		t.Errorf("ignored event: expected 200, got %d", rec.Code)
	}

	// Same for a signed but unparseable payload
	body = []byte(`not json at all`)
	rec = postWebhook(t, h, body, paystack.GenerateSignature(body, testSecret))
	if rec.Code != http.StatusOK {
		t.Errorf("unparseable payload: expected 200, got %d", rec.Code)
	}
}
