package algo

import (
	"testing"

	"github.com/tradsys/core/internal/numerics"
	"github.com/tradsys/core/internal/orderbook"
	"github.com/tradsys/core/internal/router"
	"github.com/tradsys/core/internal/venue"
)

func twoVenueContext() router.MarketContext {
	return router.MarketContext{
		Symbol: "BTC-USD",
		Quotes: map[string]venue.MarketSnapshot{
			"A": {Venue: "A", Bid: numerics.PriceFromFloat(99.9), Ask: numerics.PriceFromFloat(100.1), BidQty: numerics.QtyFromFloat(10), AskQty: numerics.QtyFromFloat(10)},
			"B": {Venue: "B", Bid: numerics.PriceFromFloat(99.8), Ask: numerics.PriceFromFloat(100.0), BidQty: numerics.QtyFromFloat(20), AskQty: numerics.QtyFromFloat(20)},
		},
	}
}

func TestSmartPicksBestAskForBuy(t *testing.T) {
	ctx := twoVenueContext()
	parent := router.ParentOrder{Side: orderbook.SideBuy, Qty: numerics.QtyFromFloat(5)}
	plans := Smart{}.Next(ctx, parent, numerics.QtyFromFloat(5), 0)
	if len(plans) != 1 || plans[0].Venue != "B" {
		t.Fatalf("expected venue B (lowest ask), got %+v", plans)
	}
}

func TestSmartRespectsLimitPrice(t *testing.T) {
	ctx := twoVenueContext()
	parent := router.ParentOrder{Side: orderbook.SideBuy, Qty: numerics.QtyFromFloat(5), LimitPrice: numerics.PriceFromFloat(99.95)}
	plans := Smart{}.Next(ctx, parent, numerics.QtyFromFloat(5), 0)
	if len(plans) != 0 {
		t.Fatalf("expected no plan since best ask exceeds limit, got %+v", plans)
	}
}

func TestTWAPOnlyFiresOnSliceBoundary(t *testing.T) {
	ctx := twoVenueContext()
	parent := router.ParentOrder{
		Side: orderbook.SideBuy, Qty: numerics.QtyFromFloat(100),
		Params: router.AlgoParams{SliceInterval: 30, DurationSeconds: 120},
	}
	if plans := (TWAP{}).Next(ctx, parent, numerics.QtyFromFloat(100), 15); len(plans) != 0 {
		t.Fatalf("expected no slice off-boundary, got %+v", plans)
	}
	plans := (TWAP{}).Next(ctx, parent, numerics.QtyFromFloat(100), 30)
	if len(plans) != 1 || plans[0].Qty.Float() != 25 {
		t.Fatalf("expected a 25-unit slice (100/4), got %+v", plans)
	}
}

func TestVWAPWeightsBucketsByProfile(t *testing.T) {
	ctx := twoVenueContext()
	parent := router.ParentOrder{
		Side: orderbook.SideBuy, Qty: numerics.QtyFromFloat(100),
		Params: router.AlgoParams{VWAPProfile: []router.VolumeProfilePoint{
			{BucketSeconds: 0, Weight: 0.2},
			{BucketSeconds: 60, Weight: 0.8},
		}},
	}
	plans := (VWAP{}).Next(ctx, parent, numerics.QtyFromFloat(100), 60)
	if len(plans) != 1 || plans[0].Qty.Float() != 80 {
		t.Fatalf("expected 80-unit slice for the 0.8-weighted bucket, got %+v", plans)
	}
}

func TestVWAPScenarioDPricesThinBucketsOffMid(t *testing.T) {
	ctx := twoVenueContext() // mid = (99.9 bid on A + 100.0 ask on B) / 2 = 99.95
	profile := []router.VolumeProfilePoint{
		{BucketSeconds: 0, Weight: 0.05},
		{BucketSeconds: 60, Weight: 0.08},
		{BucketSeconds: 120, Weight: 0.12},
		{BucketSeconds: 180, Weight: 0.15},
		{BucketSeconds: 240, Weight: 0.18},
		{BucketSeconds: 300, Weight: 0.16},
		{BucketSeconds: 360, Weight: 0.12},
		{BucketSeconds: 420, Weight: 0.08},
		{BucketSeconds: 480, Weight: 0.06},
	}
	wantQty := map[int64]float64{0: 50, 60: 80, 120: 120, 180: 150, 240: 180, 300: 160, 360: 120, 420: 80, 480: 60}
	thinBuckets := map[int64]bool{0: true, 60: true, 420: true, 480: true}
	const tick = 0.01

	for _, bucket := range profile {
		parent := router.ParentOrder{
			Side: orderbook.SideBuy, Qty: numerics.QtyFromFloat(1000),
			Params: router.AlgoParams{VWAPProfile: profile, TickSize: numerics.PriceFromFloat(tick)},
		}
		plans := (VWAP{}).Next(ctx, parent, numerics.QtyFromFloat(1000), bucket.BucketSeconds)
		if len(plans) != 1 {
			t.Fatalf("bucket %d: expected one plan, got %+v", bucket.BucketSeconds, plans)
		}
		if got := plans[0].Qty.Float(); got != wantQty[bucket.BucketSeconds] {
			t.Fatalf("bucket %d: expected qty %v, got %v", bucket.BucketSeconds, wantQty[bucket.BucketSeconds], got)
		}
		wantPrice := 99.95
		if thinBuckets[bucket.BucketSeconds] {
			wantPrice += tick // Buy side adverse shift is away from mid, upward
		}
		if got := plans[0].LimitPrice.Float(); got != wantPrice {
			t.Fatalf("bucket %d: expected price %v, got %v", bucket.BucketSeconds, wantPrice, got)
		}
	}
}

func TestVWAPWithoutTickSizeLeavesPriceAtMid(t *testing.T) {
	ctx := twoVenueContext()
	parent := router.ParentOrder{
		Side: orderbook.SideSell, Qty: numerics.QtyFromFloat(100),
		Params: router.AlgoParams{VWAPProfile: []router.VolumeProfilePoint{{BucketSeconds: 0, Weight: 0.05}, {BucketSeconds: 60, Weight: 0.95}}},
	}
	plans := (VWAP{}).Next(ctx, parent, numerics.QtyFromFloat(100), 0)
	if len(plans) != 1 || plans[0].LimitPrice.Float() != 99.95 {
		t.Fatalf("expected the thin bucket to still price at mid when TickSize is unset, got %+v", plans)
	}
}

func TestPOVTargetsParticipationOfDisplayedQty(t *testing.T) {
	ctx := twoVenueContext()
	parent := router.ParentOrder{
		Side: orderbook.SideBuy, Qty: numerics.QtyFromFloat(100),
		Params: router.AlgoParams{ParticipationBps: 5000}, // 50%
	}
	plans := (POV{}).Next(ctx, parent, numerics.QtyFromFloat(100), 0)
	if len(plans) != 1 {
		t.Fatalf("expected one plan, got %+v", plans)
	}
	// Best ask venue is B with AskQty 20; 50% participation => 10.
	if plans[0].Qty.Float() != 10 {
		t.Fatalf("expected qty 10, got %v", plans[0].Qty.Float())
	}
}

func TestIcebergCapsDisplayedQty(t *testing.T) {
	ctx := twoVenueContext()
	parent := router.ParentOrder{
		Side: orderbook.SideBuy, Qty: numerics.QtyFromFloat(100),
		Params: router.AlgoParams{DisplayQty: numerics.QtyFromFloat(10)},
	}
	plans := (Iceberg{}).Next(ctx, parent, numerics.QtyFromFloat(100), 0)
	if len(plans) != 1 || plans[0].Qty.Float() != 10 {
		t.Fatalf("expected clipped qty 10, got %+v", plans)
	}
}

func TestPegAppliesOffsetToReferencedSide(t *testing.T) {
	ctx := twoVenueContext()
	parent := router.ParentOrder{
		Side: orderbook.SideBuy, Qty: numerics.QtyFromFloat(5),
		Params: router.AlgoParams{PegOffset: numerics.PriceFromFloat(-0.01)},
	}
	plans := (Peg{}).Next(ctx, parent, numerics.QtyFromFloat(5), 0)
	if len(plans) != 1 {
		t.Fatalf("expected one plan, got %+v", plans)
	}
	if plans[0].LimitPrice.Float() != 99.99 {
		t.Fatalf("expected pegged price 99.99 (100.0 - 0.01), got %v", plans[0].LimitPrice.Float())
	}
}
