package order

import "errors"

var (
	ErrNotFound           = errors.New("order not found")
	ErrInvalidRecipient   = errors.New("recipient number is invalid")
	ErrInvalidTransition  = errors.New("invalid order status transition")
	ErrSameStatus         = errors.New("order already has this status")
	ErrDuplicateReference = errors.New("order reference already exists")
	ErrStaleOrder         = errors.New("order changed concurrently, reload and retry")
)
