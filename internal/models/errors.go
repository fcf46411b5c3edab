package models

import "errors"

// Every expected ledger outcome is a sentinel value so callers can branch with
// errors.Is and handlers can map each one to a specific status code.
var (
	ErrInvalidAmount          = errors.New("amount must be greater than zero")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrAccountNotFound        = errors.New("account not found")
	ErrDestinationNotFound    = errors.New("destination not found")
	ErrInvalidMpin            = errors.New("invalid mpin")
	ErrMpinLocked             = errors.New("mpin locked")
	ErrDuplicateAccountNumber = errors.New("account number already exists")
	ErrNonZeroBalance         = errors.New("account balance must be zero")
	ErrAccountInactive        = errors.New("account is not active")
	ErrInvalidStatus          = errors.New("invalid account status")
	ErrUserNotFound           = errors.New("user not found")
	ErrDuplicateUser          = errors.New("user already exists")
	ErrForbidden              = errors.New("forbidden")
	ErrVersionConflict        = errors.New("record version conflict")
	ErrStorageUnavailable     = errors.New("storage unavailable")
)
