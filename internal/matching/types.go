// Package matching implements deterministic price-time-priority crossing
// for the OMS internal book and back-testing paths (spec §4.2). It operates
// over a single internal/orderbook.Book per symbol and never suspends —
// matching is synchronous, holding only the book's short critical sections.
package matching

import (
	"github.com/tradsys/core/internal/numerics"
	"github.com/tradsys/core/internal/orderbook"
)

// TimeInForce mirrors the OMS-level TIF but is re-declared here so this
// package has no import-cycle dependency on internal/oms; internal/gateway
// converts between the two by numeric value, so both declare the constants
// in the same order.
type TimeInForce int

const (
	TIFDay TimeInForce = iota
	TIFGTC
	TIFIOC
	TIFFOK
	TIFGTT
)

// OrderType is the incoming order's type.
type OrderType int

const (
	TypeMarket OrderType = iota
	TypeLimit
)

// Incoming describes an order being submitted for matching against a book.
type Incoming struct {
	OrderID     int64
	AccountID   string
	Side        orderbook.Side
	Type        OrderType
	LimitPrice  numerics.Price // ignored for Market; treated as +/-inf
	Qty         numerics.Qty
	TIF         TimeInForce
	GTTDeadline numerics.Timestamp // only meaningful when TIF == TIFGTT
}

// Fill is one execution produced by a match. Price is always the resting
// order's price — price improvement only benefits the taker when the
// resting side's best is better than the incoming limit (spec §4.2).
type Fill struct {
	IncomingOrderID int64
	RestingOrderID  int64
	Price           numerics.Price
	Qty             numerics.Qty
	TakerSide       orderbook.Side
}

// Outcome is the result of submitting an Incoming order to Match.
type Outcome struct {
	Fills            []Fill
	RemainingQty     numerics.Qty
	Rested           bool   // true if RemainingQty > 0 and the order now rests in the book
	Rejected         bool   // true if the order was rejected without resting or filling
	RejectReason     string
}

// SelfTradeDecision is the result of evaluating the self-trade policy for
// one candidate (incoming, resting) pairing.
type SelfTradeDecision int

const (
	// SelfTradeAllow lets the match proceed normally.
	SelfTradeAllow SelfTradeDecision = iota
	// SelfTradeCancelResting cancels the resting order and skips it without
	// producing a fill, then continues matching against the next order.
	SelfTradeCancelResting
	// SelfTradeCancelIncoming cancels the remainder of the incoming order.
	SelfTradeCancelIncoming
	// SelfTradeReject rejects the incoming order outright.
	SelfTradeReject
)

// SelfTradePolicy is a pluggable predicate over (incoming account, resting
// account). The default ("allow") never rejects a match (spec §4.2).
type SelfTradePolicy func(incomingAccount, restingAccount string) SelfTradeDecision

// AllowSelfTrade is the default self-trade policy.
func AllowSelfTrade(string, string) SelfTradeDecision {
	return SelfTradeAllow
}
