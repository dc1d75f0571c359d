package deposit

import "errors"

var (
	ErrNotFound        = errors.New("deposit not found")
	ErrNotPending      = errors.New("deposit is not pending")
	ErrAmountMismatch  = errors.New("deposit amount does not match gateway amount")
	ErrNothingToCredit = errors.New("credit amount after fee is not positive")
	ErrPaymentFailed   = errors.New("payment was not successful")
	ErrInvalidAmount   = errors.New("deposit amount must be positive")
)
