// Package oms is the order management system: it owns order identity, the
// lifecycle state machine, fill/position accounting, and durable persistence
// of order state across restarts (spec §3). internal/gateway's Engine drives
// internal/matching for book-crossed orders and applies the resulting fills
// through ProcessFill; fills that venue adapters report for routed child
// orders are not fed into ProcessFill.
package oms

import (
	"github.com/tradsys/core/internal/numerics"
	"github.com/tradsys/core/internal/orderbook"
)

// Status is the order's position in the lifecycle state machine (spec §4.3).
type Status string

const (
	StatusNew             Status = "new"
	StatusPending         Status = "pending"
	StatusSubmitted       Status = "submitted"
	StatusPartiallyFilled Status = "partially_filled"
	StatusFilled          Status = "filled"
	StatusCancelled       Status = "cancelled"
	StatusRejected        Status = "rejected"
	StatusExpired         Status = "expired"
)

// IsTerminal reports whether an order in this status can ever transition
// again.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected, StatusExpired:
		return true
	default:
		return false
	}
}

// TimeInForce mirrors internal/matching.TimeInForce; internal/gateway
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

// OrderType is the order's execution style.
type OrderType int

const (
	TypeMarket OrderType = iota
	TypeLimit
)

// Order is the OMS's authoritative record for one client order. All
// quantities are fixed-point (internal/numerics); Order is never shared
// across goroutines without going through Service, which owns the mutex
// guarding mutation (spec §5: single-writer-per-order).
type Order struct {
	OrderID       int64
	ClientOrderID string
	AccountID     string
	Symbol        string
	Side          orderbook.Side
	Type          OrderType
	TIF           TimeInForce
	LimitPrice    numerics.Price
	StopPrice     numerics.Price
	Qty           numerics.Qty
	StrategyID    string
	Venue         string

	Status            Status
	FilledQty         numerics.Qty
	RemainingQty      numerics.Qty
	AvgFillPrice      numerics.Price
	RejectReason      string

	// Version strictly increases on every persisted mutation (spec §3,
	// testable property 3). It is the key paired with OrderID in the
	// persistence layer, letting a restore replay resolve to the last
	// version written.
	Version int64

	CreatedAt numerics.Timestamp
	UpdatedAt numerics.Timestamp
	GTTDeadline numerics.Timestamp

	Fills []Fill
}

// Fill is one execution applied against an order, whether it came from the
// internal matching engine or an external venue report.
type Fill struct {
	FillID   int64
	OrderID  int64
	Price    numerics.Price
	Qty      numerics.Qty
	Venue    string
	IsMaker  bool
	Seq      int64
	At       numerics.Timestamp
}

// Amendment describes an in-place price/quantity change requested against a
// live order (spec §4.1's "modify retains/forfeits priority" rule applies
// identically here once the amendment reaches the book).
type Amendment struct {
	OrderID    int64
	NewPrice   numerics.Price
	NewQty     numerics.Qty
}

// Position is the OMS's running net position and cost basis for one
// (account, symbol) pair, maintained incrementally as fills are processed.
type Position struct {
	AccountID string
	Symbol    string
	NetQty    numerics.Qty // positive = net long, negative = net short
	AvgPrice  numerics.Price
}
