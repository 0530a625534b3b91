package domain

import "errors"

var (
	ErrNoItems        = errors.New("order needs at least one item")
	ErrNonPositiveQty = errors.New("item quantity must be greater than zero")
	ErrMissingClient  = errors.New("client name and email are required")
	ErrMissingAddress = errors.New("shipping address street is required")

	ErrOrderNotFound   = errors.New("order not found")
	ErrProductNotFound = errors.New("product not found")

	// ErrStaleTransition means the order already left PENDING_VALIDATION;
	// the triggering event was a duplicate or late retry.
	ErrStaleTransition = errors.New("order is not pending validation")
)

// IsValidation reports whether err is a synchronous input-validation failure,
// as opposed to a not-found or infrastructure error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrNoItems) ||
		errors.Is(err, ErrNonPositiveQty) ||
		errors.Is(err, ErrMissingClient) ||
		errors.Is(err, ErrMissingAddress)
}
