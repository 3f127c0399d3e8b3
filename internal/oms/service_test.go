package oms

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/tradsys/core/internal/numerics"
	"github.com/tradsys/core/internal/oms/persistence"
	"github.com/tradsys/core/internal/orderbook"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(persistence.NewMemoryStore(), zaptest.NewLogger(t))
}

func TestCreateSubmitProcessFillLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	o, err := s.Create(ctx, &Order{
		AccountID: "acct-A", Symbol: "BTC-USD", Side: orderbook.SideBuy, Type: TypeLimit,
		LimitPrice: numerics.PriceFromFloat(100), Qty: numerics.QtyFromFloat(10), TIF: TIFDay,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if o.Status != StatusNew {
		t.Fatalf("expected StatusNew, got %v", o.Status)
	}

	o, err = s.Submit(ctx, o.OrderID)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if o.Status != StatusSubmitted {
		t.Fatalf("expected StatusSubmitted, got %v", o.Status)
	}

	o, err = s.ProcessFill(ctx, o.OrderID, numerics.PriceFromFloat(100), numerics.QtyFromFloat(4), "SIM", true)
	if err != nil {
		t.Fatalf("ProcessFill: %v", err)
	}
	if o.Status != StatusPartiallyFilled || o.FilledQty.Float() != 4 || o.RemainingQty.Float() != 6 {
		t.Fatalf("unexpected state after partial fill: %+v", o)
	}

	o, err = s.ProcessFill(ctx, o.OrderID, numerics.PriceFromFloat(102), numerics.QtyFromFloat(6), "SIM", true)
	if err != nil {
		t.Fatalf("ProcessFill: %v", err)
	}
	if o.Status != StatusFilled || o.RemainingQty != 0 {
		t.Fatalf("expected StatusFilled with zero remaining, got %+v", o)
	}
	wantAvg := (100.0*4 + 102.0*6) / 10.0
	if o.AvgFillPrice.Float() != wantAvg {
		t.Fatalf("expected VWAP %v, got %v", wantAvg, o.AvgFillPrice.Float())
	}
}

func TestProcessFillRejectsOverfill(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	o, _ := s.Create(ctx, &Order{
		AccountID: "acct-A", Symbol: "BTC-USD", Side: orderbook.SideBuy, Type: TypeLimit,
		LimitPrice: numerics.PriceFromFloat(100), Qty: numerics.QtyFromFloat(5), TIF: TIFDay,
	})
	s.Submit(ctx, o.OrderID)

	_, err := s.ProcessFill(ctx, o.OrderID, numerics.PriceFromFloat(100), numerics.QtyFromFloat(6), "SIM", true)
	if err != ErrOverfill {
		t.Fatalf("expected ErrOverfill, got %v", err)
	}

	got, _ := s.Get(o.OrderID)
	if got.FilledQty != 0 || got.Status != StatusSubmitted {
		t.Fatalf("expected order untouched after rejected overfill, got %+v", got)
	}
}

func TestCancelTerminalOrderFails(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	o, _ := s.Create(ctx, &Order{
		AccountID: "acct-A", Symbol: "BTC-USD", Side: orderbook.SideBuy, Type: TypeLimit,
		LimitPrice: numerics.PriceFromFloat(100), Qty: numerics.QtyFromFloat(5), TIF: TIFDay,
	})
	s.Submit(ctx, o.OrderID)
	s.Cancel(ctx, o.OrderID)

	if _, err := s.Cancel(ctx, o.OrderID); err != ErrOrderNotActive {
		t.Fatalf("expected ErrOrderNotActive cancelling a cancelled order, got %v", err)
	}
}

func TestDuplicateClientOrderIDRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	base := Order{
		AccountID: "acct-A", ClientOrderID: "c-1", Symbol: "BTC-USD", Side: orderbook.SideBuy,
		Type: TypeLimit, LimitPrice: numerics.PriceFromFloat(100), Qty: numerics.QtyFromFloat(5), TIF: TIFDay,
	}
	if _, err := s.Create(ctx, &base); err != nil {
		t.Fatalf("first create: %v", err)
	}
	dup := base
	if _, err := s.Create(ctx, &dup); err != ErrOrderAlreadyExists {
		t.Fatalf("expected ErrOrderAlreadyExists, got %v", err)
	}
}

func TestPositionAccountingFlipsThroughZero(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	buy, _ := s.Create(ctx, &Order{
		AccountID: "acct-A", Symbol: "BTC-USD", Side: orderbook.SideBuy, Type: TypeLimit,
		LimitPrice: numerics.PriceFromFloat(100), Qty: numerics.QtyFromFloat(10), TIF: TIFDay,
	})
	s.Submit(ctx, buy.OrderID)
	if _, err := s.ProcessFill(ctx, buy.OrderID, numerics.PriceFromFloat(100), numerics.QtyFromFloat(10), "SIM", true); err != nil {
		t.Fatal(err)
	}

	pos, ok := s.Position("acct-A", "BTC-USD")
	if !ok || pos.NetQty.Float() != 10 || pos.AvgPrice.Float() != 100 {
		t.Fatalf("unexpected position after buy: %+v ok=%v", pos, ok)
	}

	sell, _ := s.Create(ctx, &Order{
		AccountID: "acct-A", Symbol: "BTC-USD", Side: orderbook.SideSell, Type: TypeLimit,
		LimitPrice: numerics.PriceFromFloat(110), Qty: numerics.QtyFromFloat(15), TIF: TIFDay,
	})
	s.Submit(ctx, sell.OrderID)
	if _, err := s.ProcessFill(ctx, sell.OrderID, numerics.PriceFromFloat(110), numerics.QtyFromFloat(15), "SIM", true); err != nil {
		t.Fatal(err)
	}

	pos, ok = s.Position("acct-A", "BTC-USD")
	if !ok || pos.NetQty.Float() != -5 || pos.AvgPrice.Float() != 110 {
		t.Fatalf("expected flipped short position at the new fill price, got %+v ok=%v", pos, ok)
	}
}

func TestRestoreRoundTripsThroughStore(t *testing.T) {
	ctx := context.Background()
	store := persistence.NewMemoryStore()
	s1 := NewService(store, zaptest.NewLogger(t))

	o, _ := s1.Create(ctx, &Order{
		AccountID: "acct-A", Symbol: "BTC-USD", Side: orderbook.SideBuy, Type: TypeLimit,
		LimitPrice: numerics.PriceFromFloat(100), Qty: numerics.QtyFromFloat(10), TIF: TIFDay,
	})
	s1.Submit(ctx, o.OrderID)
	s1.ProcessFill(ctx, o.OrderID, numerics.PriceFromFloat(100), numerics.QtyFromFloat(4), "SIM", true)

	s2 := NewService(store, zaptest.NewLogger(t))
	if err := s2.Restore(ctx); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	restored, err := s2.Get(o.OrderID)
	if err != nil {
		t.Fatalf("Get after restore: %v", err)
	}
	if restored.Status != StatusPartiallyFilled || restored.FilledQty.Float() != 4 {
		t.Fatalf("restored order mismatch: %+v", restored)
	}
	pos, ok := s2.Position("acct-A", "BTC-USD")
	if !ok || pos.NetQty.Float() != 4 {
		t.Fatalf("expected position rebuilt from replayed fills, got %+v ok=%v", pos, ok)
	}

	// A freshly created order after restore must not collide with the
	// replayed OrderID sequence.
	next, err := s2.Create(ctx, &Order{
		AccountID: "acct-A", Symbol: "BTC-USD", Side: orderbook.SideBuy, Type: TypeLimit,
		LimitPrice: numerics.PriceFromFloat(100), Qty: numerics.QtyFromFloat(1), TIF: TIFDay,
	})
	if err != nil {
		t.Fatal(err)
	}
	if next.OrderID <= o.OrderID {
		t.Fatalf("expected new order id > restored id, got %d vs %d", next.OrderID, o.OrderID)
	}
}
