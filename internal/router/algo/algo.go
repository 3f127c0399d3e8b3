// Package algo implements the Smart Order Router's pluggable execution
// algorithms (spec §4.4): Smart, TWAP, VWAP, POV, Iceberg, and Peg. Each
// satisfies router.Algorithm without importing internal/router, to avoid
// a cycle — internal/router imports this package and registers instances
// in its algorithm registry.
package algo

import (
	"github.com/tradsys/core/internal/numerics"
	"github.com/tradsys/core/internal/orderbook"
	"github.com/tradsys/core/internal/router"
)

// Smart routes the full remaining quantity to whichever eligible venue
// currently offers the best price, re-evaluating every tick; if that venue
// later fails, the unfilled residual can land on the next best venue only
// if a caller ticks the parent again (Router.Tick). The router does not
// re-tick on its own: a failed child dispatch is logged, the parent's
// remaining quantity is left unchanged, and nothing reports the failure
// back to trigger a new Next call.
type Smart struct{}

func (Smart) Next(ctx router.MarketContext, parent router.ParentOrder, remaining numerics.Qty, _ int64) []router.ChildPlan {
	if remaining <= 0 {
		return nil
	}
	var venueName string
	var price numerics.Price
	var ok bool
	if parent.Side == orderbook.SideBuy {
		venueName, price, ok = ctx.BestAsk()
	} else {
		venueName, price, ok = ctx.BestBid()
	}
	if !ok {
		return nil
	}
	if parent.LimitPrice > 0 {
		if parent.Side == orderbook.SideBuy && price > parent.LimitPrice {
			return nil
		}
		if parent.Side == orderbook.SideSell && price < parent.LimitPrice {
			return nil
		}
	}
	return []router.ChildPlan{{Venue: venueName, Side: parent.Side, LimitPrice: price, Qty: remaining}}
}

// TWAP slices the parent order into equal clips released once per
// SliceInterval seconds over Params.DurationSeconds.
type TWAP struct{}

func (TWAP) Next(ctx router.MarketContext, parent router.ParentOrder, remaining numerics.Qty, elapsedSeconds int64) []router.ChildPlan {
	if remaining <= 0 {
		return nil
	}
	interval := parent.Params.SliceInterval
	if interval <= 0 {
		interval = 30
	}
	if elapsedSeconds%interval != 0 {
		return nil
	}
	duration := parent.Params.DurationSeconds
	if duration <= 0 {
		duration = interval
	}
	totalSlices := duration / interval
	if totalSlices <= 0 {
		totalSlices = 1
	}
	sliceQty := numerics.Qty(numerics.MulDiv(int64(parent.Qty), 1, totalSlices))
	if sliceQty > remaining {
		sliceQty = remaining
	}
	venueName, price, ok := bestForSide(ctx, parent)
	if !ok {
		return nil
	}
	return []router.ChildPlan{{Venue: venueName, Side: parent.Side, LimitPrice: price, Qty: sliceQty}}
}

// defaultVWAPWeightThresholdBps is the participation-weight floor below
// which a bucket is considered thin enough that resting at the mid risks
// missing the slice: the child is shifted one tick into the book instead
// (spec §4.4, §8 scenario D).
const defaultVWAPWeightThresholdBps = 1000 // 10%

// VWAP slices the parent order according to a supplied historical volume
// profile (spec §8 scenario D): each bucket's target quantity is the
// parent's total quantity weighted by that bucket's share of the profile's
// total weight. Every child is priced at the current mid; a bucket whose
// weight share falls below Params.VWAPWeightThresholdBps is thin enough
// that the child is shifted one tick away from mid in the adverse
// direction instead of resting passively.
type VWAP struct{}

func (VWAP) Next(ctx router.MarketContext, parent router.ParentOrder, remaining numerics.Qty, elapsedSeconds int64) []router.ChildPlan {
	if remaining <= 0 || len(parent.Params.VWAPProfile) == 0 {
		return nil
	}
	var totalWeight float64
	var bucketWeight float64
	var found bool
	for _, p := range parent.Params.VWAPProfile {
		totalWeight += p.Weight
		if p.BucketSeconds == elapsedSeconds {
			bucketWeight = p.Weight
			found = true
		}
	}
	if !found || totalWeight == 0 {
		return nil
	}
	targetQty := numerics.QtyFromFloat(parent.Qty.Float() * bucketWeight / totalWeight)
	if targetQty <= 0 {
		return nil
	}
	if targetQty > remaining {
		targetQty = remaining
	}
	venueName, _, ok := bestForSide(ctx, parent)
	if !ok {
		return nil
	}
	price, ok := vwapMid(ctx)
	if !ok {
		return nil
	}

	threshold := parent.Params.VWAPWeightThresholdBps
	if threshold <= 0 {
		threshold = defaultVWAPWeightThresholdBps
	}
	shareBps := int(bucketWeight / totalWeight * 10000)
	if shareBps < threshold && parent.Params.TickSize > 0 {
		if parent.Side == orderbook.SideBuy {
			price += parent.Params.TickSize
		} else {
			price -= parent.Params.TickSize
		}
	}
	return []router.ChildPlan{{Venue: venueName, Side: parent.Side, LimitPrice: price, Qty: targetQty}}
}

// vwapMid computes the current mid price from the best bid and best ask
// across eligible venues, rounding half to even back to fixed-point.
func vwapMid(ctx router.MarketContext) (numerics.Price, bool) {
	_, bid, okBid := ctx.BestBid()
	_, ask, okAsk := ctx.BestAsk()
	if !okBid || !okAsk {
		return 0, false
	}
	return numerics.Price(numerics.MulDiv(int64(bid)+int64(ask), 1, 2)), true
}

// POV (percentage of volume) targets a fixed participation rate against
// observed market volume. Without a live trade-tape feed this
// implementation paces against the best-of-book's displayed quantity as a
// proxy, matching the spec's "best-effort against available signal" note
// for venues that don't publish a trade tape.
type POV struct{}

func (POV) Next(ctx router.MarketContext, parent router.ParentOrder, remaining numerics.Qty, _ int64) []router.ChildPlan {
	if remaining <= 0 {
		return nil
	}
	venueName, _, ok := bestForSide(ctx, parent)
	if !ok {
		return nil
	}
	quote := ctx.Quotes[venueName]
	available := quote.AskQty
	price := quote.Ask
	if parent.Side == orderbook.SideSell {
		available = quote.BidQty
		price = quote.Bid
	}
	bps := parent.Params.ParticipationBps
	if bps <= 0 {
		bps = 1000
	}
	targetQty := numerics.Qty(numerics.MulDiv(int64(available), int64(bps), 10000))
	if targetQty <= 0 {
		return nil
	}
	if targetQty > remaining {
		targetQty = remaining
	}
	return []router.ChildPlan{{Venue: venueName, Side: parent.Side, LimitPrice: price, Qty: targetQty}}
}

// Iceberg exposes only Params.DisplayQty of the remaining quantity at a
// time, refreshing the clip once the prior one is reported filled (the
// router calls Next again with the reduced `remaining` once a fill lands).
type Iceberg struct{}

func (Iceberg) Next(ctx router.MarketContext, parent router.ParentOrder, remaining numerics.Qty, _ int64) []router.ChildPlan {
	if remaining <= 0 {
		return nil
	}
	clip := parent.Params.DisplayQty
	if clip <= 0 || clip > remaining {
		clip = remaining
	}
	venueName, price, ok := bestForSide(ctx, parent)
	if !ok {
		return nil
	}
	if parent.LimitPrice > 0 {
		price = parent.LimitPrice
	}
	return []router.ChildPlan{{Venue: venueName, Side: parent.Side, LimitPrice: price, Qty: clip}}
}

// Peg prices the child order a fixed offset away from the referenced
// side's best price (e.g. peg-to-bid minus one tick to avoid crossing),
// re-quoting every tick as the market moves.
type Peg struct{}

func (Peg) Next(ctx router.MarketContext, parent router.ParentOrder, remaining numerics.Qty, _ int64) []router.ChildPlan {
	if remaining <= 0 {
		return nil
	}
	venueName, price, ok := bestForSide(ctx, parent)
	if !ok {
		return nil
	}
	pegged := price + parent.Params.PegOffset
	return []router.ChildPlan{{Venue: venueName, Side: parent.Side, LimitPrice: pegged, Qty: remaining}}
}

func bestForSide(ctx router.MarketContext, parent router.ParentOrder) (string, numerics.Price, bool) {
	if parent.Side == orderbook.SideBuy {
		return ctx.BestAsk()
	}
	return ctx.BestBid()
}
