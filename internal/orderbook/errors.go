package orderbook

import "errors"

var (
	// ErrInvalidPrice is returned when a limit order is missing a price or
	// carries a non-positive one.
	ErrInvalidPrice = errors.New("orderbook: invalid price")
	// ErrInvalidQuantity is returned when an order quantity is not positive.
	ErrInvalidQuantity = errors.New("orderbook: invalid quantity")
	// ErrOrderExists is returned when AddOrder is called with an order ID
	// already resting in the book.
	ErrOrderExists = errors.New("orderbook: order already resting")
)
