package bundle

import "errors"

var (
	ErrNotFound          = errors.New("bundle not found")
	ErrNotActive         = errors.New("bundle not active")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInvalidAdjustment = errors.New("adjustment would drive stock negative")
	// ErrStockInconsistent means a caller confirmed more units than were
	// reserved. That is a bug in the caller, never a user-facing condition.
	ErrStockInconsistent = errors.New("stock reservation inconsistency")
)
