package auctionerrors

import "errors"

// Repository-level errors
var (
	ErrNotFound               = errors.New("record not found")
	ErrConcurrentModification = errors.New("concurrent modification")
)

// business logic errors
var (
	ErrInvalidState      = errors.New("invalid lifecycle state")
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAlreadyProcessed  = errors.New("operation already processed")
)
