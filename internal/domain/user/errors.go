package user

import "errors"

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrDuplicatePhone = errors.New("phone already registered")
	ErrNotApproved    = errors.New("user not approved")
	ErrBadCredentials = errors.New("invalid email or password")
	ErrAlreadyDecided = errors.New("registration already approved or rejected")
)
