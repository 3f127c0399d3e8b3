// Package router implements the Smart Order Router: it builds a per-symbol
// MarketContext from subscribed venue snapshots, ranks eligible venues, and
// decomposes a parent order into child orders via a pluggable algorithm
// (spec §4.4).
package router

import (
	"github.com/tradsys/core/internal/numerics"
	"github.com/tradsys/core/internal/orderbook"
	"github.com/tradsys/core/internal/venue"
)

// MarketContext is a point-in-time snapshot of every eligible venue's
// best-of-book for one symbol, used by an Algorithm to decide where and how
// much to send.
type MarketContext struct {
	Symbol string
	Quotes map[string]venue.MarketSnapshot // keyed by venue name
	AsOf   numerics.Timestamp

	// Ranked lists the venues eligible for this symbol (connected, order-
	// type-capable, non-stale), ordered by the Router's selection ranking
	// — lower latency, lower taker fee, higher advertised liquidity, name
	// as the final tiebreak (spec §4.4 venue selection). When non-empty,
	// BestBid/BestAsk restrict their search to these venues and break
	// price ties in Ranked order instead of scanning Quotes directly.
	// Left empty by callers that build a MarketContext outside of the
	// Router's tick loop (e.g. tests), which fall back to the raw scan.
	Ranked []string
}

// BestBid returns the highest-bidding eligible venue, if any quote is
// present.
func (c MarketContext) BestBid() (venueName string, price numerics.Price, ok bool) {
	if len(c.Ranked) > 0 {
		return c.bestRanked(true)
	}
	best := numerics.Price(-1)
	for name, q := range c.Quotes {
		if q.Bid > best {
			best = q.Bid
			venueName, ok = name, true
		}
	}
	return venueName, best, ok
}

// BestAsk returns the lowest-asking eligible venue, if any quote is
// present.
func (c MarketContext) BestAsk() (venueName string, price numerics.Price, ok bool) {
	if len(c.Ranked) > 0 {
		return c.bestRanked(false)
	}
	var best numerics.Price
	first := true
	for name, q := range c.Quotes {
		if first || q.Ask < best {
			best, venueName, ok = q.Ask, name, true
			first = false
		}
	}
	return venueName, best, ok
}

// bestRanked scans Ranked in rank order, picking the best bid (or ask)
// among venues that still have a quote; a price tie keeps whichever venue
// was encountered first, i.e. the higher-ranked one.
func (c MarketContext) bestRanked(bid bool) (venueName string, price numerics.Price, ok bool) {
	for _, name := range c.Ranked {
		q, present := c.Quotes[name]
		if !present {
			continue
		}
		p := q.Ask
		if bid {
			p = q.Bid
		}
		switch {
		case !ok:
			venueName, price, ok = name, p, true
		case bid && p > price:
			venueName, price = name, p
		case !bid && p < price:
			venueName, price = name, p
		}
	}
	return venueName, price, ok
}

// ParentOrder is the order submitted to the router for algorithmic
// execution across one or more venues.
type ParentOrder struct {
	ParentOrderID int64
	AccountID     string
	Symbol        string
	Side          orderbook.Side
	LimitPrice    numerics.Price // zero means no limit (work at market)
	Qty           numerics.Qty
	Algo          AlgoType
	Params        AlgoParams
}

// AlgoType selects which pluggable algorithm decomposes the parent order.
type AlgoType string

const (
	AlgoSmart   AlgoType = "smart"
	AlgoTWAP    AlgoType = "twap"
	AlgoVWAP    AlgoType = "vwap"
	AlgoPOV     AlgoType = "pov"
	AlgoIceberg AlgoType = "iceberg"
	AlgoPeg     AlgoType = "peg"
)

// AlgoParams carries the superset of tunables every algorithm might read;
// each algorithm only looks at the fields relevant to it (spec §4.4's
// per-algorithm parameter tables).
type AlgoParams struct {
	SliceInterval      int64          // seconds, TWAP
	ParticipationBps   int            // POV target participation rate
	DisplayQty         numerics.Qty   // Iceberg clip size
	PegOffset          numerics.Price // Peg offset from the referenced side
	VWAPProfile        []VolumeProfilePoint
	DurationSeconds    int64
	TickSize           numerics.Price // VWAP's adverse-shift increment; <= 0 disables the shift
	VWAPWeightThresholdBps int        // VWAP bucket-weight floor below which the adverse shift applies; <= 0 uses the default (1000 bps)
}

// VolumeProfilePoint is one (time bucket, target participation weight) pair
// driving a VWAP algorithm's scheduled slice sizes (spec §8 scenario D).
type VolumeProfilePoint struct {
	BucketSeconds int64
	Weight        float64 // relative weight, need not sum to 1 across points
}

// ChildPlan is one child order an Algorithm wants dispatched now.
type ChildPlan struct {
	Venue      string
	Side       orderbook.Side
	LimitPrice numerics.Price
	Qty        numerics.Qty
}

// Algorithm decomposes a parent order's remaining quantity into child
// orders given the current market context. Next is called repeatedly by
// the Router's scheduling loop (paced per algorithm: immediately for Smart,
// on a ticker for TWAP/POV) until the parent's remaining quantity reaches
// zero or the caller cancels.
type Algorithm interface {
	// Next returns the child orders to dispatch this tick, or none if the
	// algorithm is waiting (e.g. TWAP between slices).
	Next(ctx MarketContext, parent ParentOrder, remaining numerics.Qty, elapsedSeconds int64) []ChildPlan
}
