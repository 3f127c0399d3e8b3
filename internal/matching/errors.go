package matching

import "errors"

var (
	// ErrMissingPrice is returned when a Limit order carries no price.
	ErrMissingPrice = errors.New("matching: limit order missing price")
	// ErrInvalidQuantity is returned when quantity is not positive.
	ErrInvalidQuantity = errors.New("matching: quantity must be positive")
)
