package paystack

import "testing"

func TestVerifySignature(t *testing.T) {
	secret := "sk_test_abc123"
	payload := []byte(`{"event":"charge.success","data":{"reference":"DEP-1","amount":10000}}`)

	sig := GenerateSignature(payload, secret)
	if sig == "" {
		t.Fatal("expected a non-empty signature")
	}

	if !VerifySignature(payload, sig, secret) {
		t.Error("valid signature rejected")
	}

	if VerifySignature([]byte(`{"event":"charge.success","data":{"reference":"DEP-2"}}`), sig, secret) {
		t.Error("signature accepted for a different payload")
	}

	if VerifySignature(payload, sig, "sk_test_other") {
		t.Error("signature accepted with the wrong secret")
	}

	if VerifySignature(payload, "", secret) {
		t.Error("empty signature accepted")
	}

	if VerifySignature(payload, "deadbeef", secret) {
		t.Error("bogus signature accepted")
	}
}

func TestSignatureDependsOnExactBytes(t *testing.T) {
	secret := "sk_test_abc123"
	payload := []byte(`{"a":1}`)
	reserialized := []byte(`{ "a": 1 }`)

	sig := GenerateSignature(payload, secret)
	if VerifySignature(reserialized, sig, secret) {
		t.Error("signature must not survive payload re-serialization")
	}
}
