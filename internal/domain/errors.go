package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientStock rejects an order whose basket asks for more units
	// than any single product has left.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrOrderMissing marks a failure notification that references a payment
	// intent with no persisted order. A failed payment implies the order was
	// already materialized, so this is an invariant violation.
	ErrOrderMissing = errors.New("no order for payment intent")
)
