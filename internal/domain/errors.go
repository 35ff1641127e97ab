package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a uniqueness constraint was hit.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidState indicates the entity exists but cannot be changed in its current status.
	ErrInvalidState = errors.New("invalid state")
	// ErrInvalidInput wraps request validation failures.
	ErrInvalidInput = errors.New("invalid input")
	// ErrProductUnavailable is returned when adding a product marked out of stock.
	ErrProductUnavailable = errors.New("product unavailable")
	// ErrUnauthorized is returned when a manager credential check fails.
	ErrUnauthorized = errors.New("unauthorized")

	// Settlement validation errors. Never retried.
	ErrEmptyCart            = errors.New("empty cart")
	ErrIncompleteItem       = errors.New("incomplete item")
	ErrInsufficientPayment  = errors.New("insufficient payment")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")

	// Settlement concurrency errors. Retried by the coordinator.
	ErrCodeConflict   = errors.New("transaction code conflict")
	ErrCommitConflict = errors.New("commit conflict")

	// ErrRetryable marks a settlement that gave up after bounded retries; the caller may retry.
	ErrRetryable = errors.New("retryable")
)

// IsValidation reports whether err is a settlement or request validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyCart) ||
		errors.Is(err, ErrIncompleteItem) ||
		errors.Is(err, ErrInsufficientPayment) ||
		errors.Is(err, ErrInvalidPaymentMethod) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrProductUnavailable)
}

// IsConcurrency reports whether err should trigger a fresh reserve/commit attempt.
func IsConcurrency(err error) bool {
	return errors.Is(err, ErrCodeConflict) || errors.Is(err, ErrCommitConflict)
}
