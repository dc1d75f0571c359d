package paystack

import "github.com/shopspring/decimal"

// Paystack expresses amounts in the minor currency unit (pesewas for GHS).

// ToPesewas converts a GHS amount to pesewas.
func ToPesewas(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromPesewas converts a pesewa amount to GHS.
func FromPesewas(pesewas int64) decimal.Decimal {
	return decimal.New(pesewas, -2)
}
