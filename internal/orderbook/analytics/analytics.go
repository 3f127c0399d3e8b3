// Package analytics is the order book's microstructure sidecar: imbalance,
// weighted mid, spread, and a VPIN-style toxicity score, computed on demand
// from a depth snapshot (spec §4.1).
//
// Per spec §9's design notes, the exact toxicity detection algorithm (and
// any spoofing/layering/quote-stuffing pattern detection) is explicitly
// deferred to implementers — this sidecar only commits to the contract that
// Toxicity returns a unit-interval scalar from a rolling bucketed volume
// window, not to a specific detection heuristic.
package analytics

import (
	"gonum.org/v1/gonum/stat"

	"github.com/tradsys/core/internal/numerics"
	"github.com/tradsys/core/internal/orderbook"
)

// Snapshot is the derived-metrics result for one book at one instant.
type Snapshot struct {
	ImbalanceTop  float64 // at top-of-book (k=1)
	WeightedMid   numerics.Price
	SpreadBps     float64
	ToxicityScore float64
}

// Build computes a full analytics Snapshot for a book, using tracker's
// current rolling toxicity estimate (nil is treated as "not tracked" -> 0).
func Build(book *orderbook.Book, tracker *ToxicityTracker, depth int) Snapshot {
	bidViews, askViews := book.Depth(depth)
	snap := Snapshot{ImbalanceTop: Imbalance(bidViews, askViews, 1)}
	if len(bidViews) > 0 && len(askViews) > 0 {
		bid, ask := bidViews[0], askViews[0]
		snap.WeightedMid = WeightedMid(bid.Price, bid.Qty, ask.Price, ask.Qty)
		snap.SpreadBps = SpreadBps(bid.Price, ask.Price, snap.WeightedMid)
	}
	if tracker != nil {
		snap.ToxicityScore = tracker.Score()
	}
	return snap
}

// Imbalance computes the order-flow imbalance over the top k levels of each
// side: (ΣQbid - ΣQask) / (ΣQbid + ΣQask), in [-1, 1]. Returns 0 when both
// sides are empty.
func Imbalance(bidLevels, askLevels []orderbook.LevelView, k int) float64 {
	var bidQty, askQty float64
	for i, l := range bidLevels {
		if i >= k {
			break
		}
		bidQty += float64(l.Qty)
	}
	for i, l := range askLevels {
		if i >= k {
			break
		}
		askQty += float64(l.Qty)
	}
	total := bidQty + askQty
	if total == 0 {
		return 0
	}
	return (bidQty - askQty) / total
}

// WeightedMid computes (Pbid*Qask + Pask*Qbid) / (Qask + Qbid) from the
// top-of-book. Returns 0 if either side is empty.
func WeightedMid(bestBid numerics.Price, bidQty numerics.Qty, bestAsk numerics.Price, askQty numerics.Qty) numerics.Price {
	totalQty := int64(bidQty) + int64(askQty)
	if totalQty == 0 {
		return 0
	}
	num := int64(bestBid)*int64(askQty) + int64(bestAsk)*int64(bidQty)
	return numerics.Price(numerics.MulDiv(num, 1, totalQty))
}

// SpreadBps computes (Pask - Pbid) / mid * 10^4. Returns 0 if mid is 0.
func SpreadBps(bestBid, bestAsk, mid numerics.Price) float64 {
	if mid == 0 {
		return 0
	}
	return float64(bestAsk-bestBid) / float64(mid) * 10000
}

// VolumeBucket is one bucket of a VPIN-style rolling toxicity estimate: the
// buy-initiated and sell-initiated volume observed within that bucket.
type VolumeBucket struct {
	BuyVolume  float64
	SellVolume float64
}

// ToxicityTracker maintains a rolling window of volume buckets and reports a
// unit-interval VPIN-style toxicity estimate: the mean, over the window, of
// |buy - sell| / (buy + sell) per bucket — order-flow imbalance averaged
// across buckets rather than instantaneously, which is what makes it a
// "toxicity" signal instead of plain imbalance.
type ToxicityTracker struct {
	buckets    []VolumeBucket
	windowSize int
}

// NewToxicityTracker creates a tracker over the last windowSize buckets.
func NewToxicityTracker(windowSize int) *ToxicityTracker {
	if windowSize <= 0 {
		windowSize = 50
	}
	return &ToxicityTracker{windowSize: windowSize}
}

// Observe records one bucket's buy/sell volume, evicting the oldest bucket
// once the window is full.
func (t *ToxicityTracker) Observe(buyVolume, sellVolume float64) {
	t.buckets = append(t.buckets, VolumeBucket{BuyVolume: buyVolume, SellVolume: sellVolume})
	if len(t.buckets) > t.windowSize {
		t.buckets = t.buckets[len(t.buckets)-t.windowSize:]
	}
}

// Score returns the current toxicity estimate in [0, 1]. Returns 0 for an
// empty window.
func (t *ToxicityTracker) Score() float64 {
	if len(t.buckets) == 0 {
		return 0
	}
	ratios := make([]float64, 0, len(t.buckets))
	for _, b := range t.buckets {
		total := b.BuyVolume + b.SellVolume
		if total == 0 {
			continue
		}
		diff := b.BuyVolume - b.SellVolume
		if diff < 0 {
			diff = -diff
		}
		ratios = append(ratios, diff/total)
	}
	if len(ratios) == 0 {
		return 0
	}
	return stat.Mean(ratios, nil)
}
