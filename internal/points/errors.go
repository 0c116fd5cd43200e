package points

import "errors"

// Sentinel errors returned by the award engine and the read services. The
// HTTP layer maps these to status codes with errors.Is; everything else is a
// 500. Wrapped variants carry context, so always match with errors.Is.
var (
	ErrValidation          = errors.New("validation failed")
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
	ErrAlreadyCompleted    = errors.New("chore already completed")
	ErrInvalidState        = errors.New("invalid state")
	ErrUndoWindowExpired   = errors.New("undo window expired")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)
