package router

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/tradsys/core/internal/numerics"
	"github.com/tradsys/core/internal/orderbook"
	"github.com/tradsys/core/internal/venue"
)

type stubAlgo struct {
	plans []ChildPlan
	calls int
}

func (s *stubAlgo) Next(ctx MarketContext, parent ParentOrder, remaining numerics.Qty, elapsed int64) []ChildPlan {
	s.calls++
	if remaining <= 0 {
		return nil
	}
	return s.plans
}

func TestSubmitDispatchesChildThroughVenueAdapter(t *testing.T) {
	sim := venue.NewSimulatedAdapter("SIM")
	algo := &stubAlgo{plans: []ChildPlan{{Venue: "SIM", Side: orderbook.SideBuy, LimitPrice: numerics.PriceFromFloat(100), Qty: numerics.QtyFromFloat(5)}}}

	r, err := NewRouter(Registry{AlgoSmart: algo}, VenueSet{"SIM": sim}, DefaultConfig(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	err = r.Submit(context.Background(), ParentOrder{
		ParentOrderID: 1, Symbol: "BTC-USD", Side: orderbook.SideBuy, Qty: numerics.QtyFromFloat(5), Algo: AlgoSmart,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	remaining, ok := r.Remaining(1)
	if !ok || remaining.Float() != 5 {
		t.Fatalf("expected remaining untouched until a fill is reported, got %v ok=%v", remaining, ok)
	}
}

func TestSubmitUnknownAlgoFails(t *testing.T) {
	r, err := NewRouter(Registry{}, VenueSet{}, DefaultConfig(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	err = r.Submit(context.Background(), ParentOrder{ParentOrderID: 1, Algo: AlgoTWAP})
	if err == nil {
		t.Fatal("expected ErrUnknownAlgo")
	}
}

func TestApplyChildFillReducesRemaining(t *testing.T) {
	sim := venue.NewSimulatedAdapter("SIM")
	algo := &stubAlgo{plans: nil}
	r, err := NewRouter(Registry{AlgoSmart: algo}, VenueSet{"SIM": sim}, DefaultConfig(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	r.Submit(context.Background(), ParentOrder{ParentOrderID: 1, Symbol: "BTC-USD", Qty: numerics.QtyFromFloat(10), Algo: AlgoSmart})
	r.ApplyChildFill(1, numerics.QtyFromFloat(4))

	remaining, ok := r.Remaining(1)
	if !ok || remaining.Float() != 6 {
		t.Fatalf("expected remaining 6, got %v ok=%v", remaining, ok)
	}
}

func TestCancelParentPropagatesToChildren(t *testing.T) {
	sim := venue.NewSimulatedAdapter("SIM")
	algo := &stubAlgo{plans: []ChildPlan{{Venue: "SIM", Side: orderbook.SideBuy, LimitPrice: numerics.PriceFromFloat(100), Qty: numerics.QtyFromFloat(5)}}}
	r, err := NewRouter(Registry{AlgoSmart: algo}, VenueSet{"SIM": sim}, DefaultConfig(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	r.Submit(context.Background(), ParentOrder{ParentOrderID: 1, Symbol: "BTC-USD", Qty: numerics.QtyFromFloat(5), Algo: AlgoSmart})

	if err := r.CancelParent(context.Background(), 1); err != nil {
		t.Fatalf("CancelParent: %v", err)
	}
	if err := r.CancelParent(context.Background(), 999); err != ErrUnknownParent {
		t.Fatalf("expected ErrUnknownParent for unknown id, got %v", err)
	}
}

func TestUpdateQuoteBuildsMarketContext(t *testing.T) {
	r, err := NewRouter(Registry{}, VenueSet{}, DefaultConfig(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	r.UpdateQuote(venue.MarketSnapshot{Venue: "A", Symbol: "BTC-USD", Bid: numerics.PriceFromFloat(99), Ask: numerics.PriceFromFloat(101)})
	ctx := r.context("BTC-USD")
	if len(ctx.Quotes) != 1 {
		t.Fatalf("expected one quote cached, got %+v", ctx.Quotes)
	}
	venueName, price, ok := ctx.BestAsk()
	if !ok || venueName != "A" || price.Float() != 101 {
		t.Fatalf("unexpected best ask: %v %v %v", venueName, price, ok)
	}
}
