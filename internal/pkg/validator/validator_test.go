package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMSISDNValidation(t *testing.T) {
	valid := []string{"0241234567", "0551234567", "0201112223"}
	for _, n := range valid {
		assert.NoError(t, ValidateVar(n, "msisdn"), "%s should be valid", n)
	}

	invalid := []string{"", "024123456", "02412345678", "1241234567", "0141234567", "+233241234567", "024123456a"}
	for _, n := range invalid {
		assert.Error(t, ValidateVar(n, "msisdn"), "%s should be invalid", n)
	}
}

func TestStructValidationUsesJSONNames(t *testing.T) {
	type req struct {
		Recipient string `json:"recipient" validate:"required,msisdn"`
		Role      string `json:"role" validate:"role"`
	}

	details := Validate(req{Recipient: "bad", Role: "superuser"})
	require.NotNil(t, details)
	assert.Contains(t, details, "recipient")
	assert.Contains(t, details, "role")

	assert.Nil(t, Validate(req{Recipient: "0241234567", Role: "editor"}))
}
