package domain

import "errors"

// Domain errors - defining errors as values makes them testable
// and allows callers to check for specific error types with errors.Is
var (
	// ErrInvalidFormat is returned for short codes outside ^[A-Za-z0-9]{4,10}$
	ErrInvalidFormat = errors.New("invalid short code format")
	// ErrNotFound is returned when no link owns the code or id
	ErrNotFound = errors.New("link not found")
	// ErrGone is returned when the link exists but is not active
	ErrGone = errors.New("link is no longer active")
	// ErrStorageUnavailable wraps every failure of the backing store
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrNamespaceExhausted is returned when the allocator runs out of attempts
	ErrNamespaceExhausted = errors.New("short code namespace exhausted")
	// ErrCodeTaken is returned when the store rejects a duplicate short code
	ErrCodeTaken = errors.New("short code already in use")
	// ErrForbidden is returned when a caller touches a link it does not own
	ErrForbidden = errors.New("link belongs to another owner")

	ErrEmptyURL      = errors.New("URL cannot be empty")
	ErrInvalidURL    = errors.New("URL must be an absolute http or https URL")
	ErrTitleRequired = errors.New("title is required")
	ErrInvalidStatus = errors.New("status must be active, inactive or expired")
	ErrValidation    = errors.New("validation failed")
)
