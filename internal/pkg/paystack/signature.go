package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
)

// SignatureHeader is the HTTP header Paystack uses to carry the webhook signature.
const SignatureHeader = "x-paystack-signature"

// VerifySignature validates the HMAC-SHA512 signature of a webhook payload.
// The signature is computed over the raw request body with the secret key.
func VerifySignature(payload []byte, signature string, secretKey string) bool {
	if secretKey == "" || signature == "" {
		return false
	}

	h := hmac.New(sha512.New, []byte(secretKey))
	h.Write(payload)
	expected := h.Sum(nil)

	given, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	return hmac.Equal(given, expected)
}

// GenerateSignature creates an HMAC-SHA512 signature for testing
func GenerateSignature(payload []byte, secretKey string) string {
	if secretKey == "" {
		return ""
	}

	h := hmac.New(sha512.New, []byte(secretKey))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
