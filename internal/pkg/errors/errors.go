package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrThrottled signals that a rate limiter's wait queue is full and the
	// caller should back off rather than pile up.
	ErrThrottled = errors.New("throttled")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrQuotaExceeded signals the owning account has no remaining analysis quota.
	ErrQuotaExceeded = errors.New("quota exceeded")
)
