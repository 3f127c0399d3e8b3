package oms

import "errors"

var (
	// ErrOrderNotFound is returned when an order ID is unknown to the OMS.
	ErrOrderNotFound = errors.New("oms: order not found")
	// ErrInvalidTransition is returned when a status transition violates the
	// lifecycle state machine (spec §4.3).
	ErrInvalidTransition = errors.New("oms: invalid status transition")
	// ErrOrderAlreadyExists is returned when creating an order whose
	// ClientOrderID collides with an existing one for the same account.
	ErrOrderAlreadyExists = errors.New("oms: client order id already exists")
	// ErrInvalidQuantity is returned for non-positive or overfilling
	// quantities.
	ErrInvalidQuantity = errors.New("oms: invalid quantity")
	// ErrInvalidPrice is returned when a Limit order carries no price.
	ErrInvalidPrice = errors.New("oms: invalid price")
	// ErrOverfill is returned when a fill would push FilledQty past Qty; the
	// fill is rejected rather than silently clamped (spec §7 error taxonomy).
	ErrOverfill = errors.New("oms: fill exceeds order quantity")
	// ErrOrderNotActive is returned when amending or cancelling a terminal
	// order.
	ErrOrderNotActive = errors.New("oms: order is not active")
	// ErrPersistence wraps a failed durable write. Callers must treat it as
	// a blocking failure of the whole operation (spec §4.3, §7); the
	// in-memory mutation that produced the write is rolled back before this
	// error reaches the caller.
	ErrPersistence = errors.New("oms: persistence write failed")
)

// transitions enumerates the legal next-states for each status (spec §4.3).
// A status absent from the map, or a next-status absent from its slice, is
// an illegal transition.
var transitions = map[Status][]Status{
	StatusNew:             {StatusPending, StatusRejected},
	StatusPending:         {StatusSubmitted, StatusRejected},
	StatusSubmitted:       {StatusPartiallyFilled, StatusFilled, StatusCancelled, StatusRejected, StatusExpired},
	StatusPartiallyFilled: {StatusPartiallyFilled, StatusFilled, StatusCancelled, StatusExpired},
}

func canTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
