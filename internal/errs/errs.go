package errs

import "errors"

// Domain sentinel errors, mapped to HTTP status codes in handlers.
var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrViolationNotFound = errors.New("violation not found")
	ErrSessionEnded      = errors.New("session already ended")
	ErrInvalidViolation  = errors.New("invalid violation event")
)
