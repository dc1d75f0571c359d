package wallet

import "errors"

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInsufficientFunds  = errors.New("insufficient wallet balance")
	ErrDuplicateReference = errors.New("duplicate reference")
	ErrReferenceConflict  = errors.New("reference conflicts with different amount")
	ErrUserNotFound       = errors.New("wallet owner not found")
	ErrUserNotApproved    = errors.New("wallet owner not approved")
)
