package venue

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/tradsys/core/internal/numerics"
	"github.com/tradsys/core/internal/orderbook"
)

func TestCheckProtocolCompatibilityRejectsOldVersion(t *testing.T) {
	if err := CheckProtocolCompatibility("1.9.0"); !errors.Is(err, ErrIncompatibleProtocol) {
		t.Fatalf("expected ErrIncompatibleProtocol, got %v", err)
	}
}

func TestCheckProtocolCompatibilityRejectsFutureMajor(t *testing.T) {
	if err := CheckProtocolCompatibility("3.0.0"); !errors.Is(err, ErrIncompatibleProtocol) {
		t.Fatalf("expected ErrIncompatibleProtocol for future major, got %v", err)
	}
}

func TestCheckProtocolCompatibilityAcceptsInRange(t *testing.T) {
	if err := CheckProtocolCompatibility("2.3.1"); err != nil {
		t.Fatalf("expected compatible version to pass, got %v", err)
	}
}

func TestSimulatedAdapterFillsImmediately(t *testing.T) {
	ctx := context.Background()
	adapter := NewSimulatedAdapter("SIM")
	fills, err := adapter.SubscribeFills(ctx)
	if err != nil {
		t.Fatal(err)
	}

	err = adapter.SubmitChild(ctx, ChildOrder{
		ChildOrderID: 1, Symbol: "BTC-USD", Side: orderbook.SideBuy,
		LimitPrice: numerics.PriceFromFloat(100), Qty: numerics.QtyFromFloat(5),
	})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case f := <-fills:
		if f.ChildOrderID != 1 || f.Qty.Float() != 5 {
			t.Fatalf("unexpected fill: %+v", f)
		}
	default:
		t.Fatal("expected an immediate fill on the channel")
	}
}

func TestSimulatedAdapterRejectAll(t *testing.T) {
	ctx := context.Background()
	adapter := NewSimulatedAdapter("SIM")
	adapter.RejectAll = true

	err := adapter.SubmitChild(ctx, ChildOrder{ChildOrderID: 1, LimitPrice: numerics.PriceFromFloat(100), Qty: numerics.QtyFromFloat(1)})
	if !errors.Is(err, ErrSimulatedRejection) {
		t.Fatalf("expected ErrSimulatedRejection, got %v", err)
	}
}

func TestGuardedAdapterTripsBreakerOnRepeatedFailure(t *testing.T) {
	ctx := context.Background()
	sim := NewSimulatedAdapter("SIM")
	sim.RejectAll = true

	cfg := BreakerConfig{MaxRequests: 1, FailureRatio: 0.5, MinRequests: 2}
	guarded := NewGuardedAdapter(sim, cfg, zaptest.NewLogger(t))

	for i := 0; i < 2; i++ {
		_ = guarded.SubmitChild(ctx, ChildOrder{ChildOrderID: int64(i), LimitPrice: numerics.PriceFromFloat(1), Qty: numerics.QtyFromFloat(1)})
	}

	err := guarded.SubmitChild(ctx, ChildOrder{ChildOrderID: 99, LimitPrice: numerics.PriceFromFloat(1), Qty: numerics.QtyFromFloat(1)})
	if err == nil {
		t.Fatal("expected an error once the breaker has seen repeated failures")
	}
}
