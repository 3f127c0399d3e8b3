package gateway

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/tradsys/core/internal/config"
	"github.com/tradsys/core/internal/gateway/reportbus"
	"github.com/tradsys/core/internal/metrics"
	"github.com/tradsys/core/internal/numerics"
	"github.com/tradsys/core/internal/oms"
	"github.com/tradsys/core/internal/oms/persistence"
	"github.com/tradsys/core/internal/risk"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	logger := zaptest.NewLogger(t)

	cfg := &config.Config{}
	cfg.Engine.EnableMatching = true
	cfg.Matching.SelfTradePolicy = "cancel_resting"
	cfg.Matching.L3Enabled = true

	omsSvc := oms.NewService(persistence.NewMemoryStore(), logger)
	validator := risk.NewValidator(risk.Limits{
		MaxPositionSize:  numerics.QtyFromFloat(1_000_000),
		MaxOpenPositions: 50,
		MaxLossPerTrade:  numerics.AmountFromFloat(1_000_000),
		MaxDailyLoss:     numerics.AmountFromFloat(1_000_000),
	}, logger)
	bus := reportbus.New(logger)
	met := metrics.NewRegistry()

	return NewEngine(EngineParams{
		OMS:       omsSvc,
		Risk:      validator,
		Reportbus: bus,
		Metrics:   met,
		Config:    cfg,
		Logger:    logger,
	})
}

func submitReq(clientID, side string, qty, price float64) SubmitOrderRequest {
	return SubmitOrderRequest{
		ClientOrderID: clientID,
		Symbol:        "BTC-USD",
		Side:          side,
		Quantity:      qty,
		OrderType:     "limit",
		LimitPrice:    price,
		TimeInForce:   "day",
	}
}

func TestSubmitOrderCrossesInternally(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	state := risk.AccountState{NetPositions: map[string]numerics.Qty{}}

	resting, err := e.SubmitOrder(ctx, submitReq("ask-1", "sell", 5, 100), "acct-maker", state, 0)
	if err != nil {
		t.Fatalf("resting submit: %v", err)
	}
	if resting.Status != oms.StatusSubmitted {
		t.Fatalf("expected resting order submitted, got %v", resting.Status)
	}

	taker, err := e.SubmitOrder(ctx, submitReq("bid-1", "buy", 5, 100), "acct-taker", state, 0)
	if err != nil {
		t.Fatalf("taker submit: %v", err)
	}
	if taker.Status != oms.StatusFilled {
		t.Fatalf("expected taker filled, got %v: %+v", taker.Status, taker)
	}
	if taker.AvgFillPrice.Float() != 100 {
		t.Fatalf("expected fill price 100, got %v", taker.AvgFillPrice.Float())
	}

	makerAfter, err := e.GetOrder(resting.OrderID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if makerAfter.Status != oms.StatusFilled {
		t.Fatalf("expected maker filled, got %v", makerAfter.Status)
	}
}

func TestSubmitOrderRejectedByRiskLimit(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	e.risk = risk.NewValidator(risk.Limits{MaxPositionSize: numerics.QtyFromFloat(1)}, zaptest.NewLogger(t))
	state := risk.AccountState{NetPositions: map[string]numerics.Qty{}}

	o, err := e.SubmitOrder(ctx, submitReq("too-big", "buy", 100, 100), "acct-x", state, 0)
	if err == nil {
		t.Fatalf("expected risk rejection error")
	}
	if o == nil || o.Status != oms.StatusRejected {
		t.Fatalf("expected rejected order, got %+v", o)
	}
}

func TestCancelOrderPullsRestingQuantity(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	state := risk.AccountState{NetPositions: map[string]numerics.Qty{}}

	resting, err := e.SubmitOrder(ctx, submitReq("cancel-me", "buy", 5, 90), "acct-a", state, 0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	cancelled, err := e.CancelOrder(ctx, resting.OrderID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != oms.StatusCancelled {
		t.Fatalf("expected cancelled, got %v", cancelled.Status)
	}

	// A later incoming sell at the cancelled order's price must not match
	// anything, since the resting order was pulled off the book.
	taker, err := e.SubmitOrder(ctx, submitReq("seller", "sell", 5, 90), "acct-b", state, 0)
	if err != nil {
		t.Fatalf("taker submit: %v", err)
	}
	if taker.Status == oms.StatusFilled {
		t.Fatalf("expected no fill against a cancelled resting order, got %+v", taker)
	}
}

func TestModifyOrderPriceForfeitsQueuePriority(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	state := risk.AccountState{NetPositions: map[string]numerics.Qty{}}

	resting, err := e.SubmitOrder(ctx, submitReq("modify-me", "buy", 5, 90), "acct-a", state, 0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	modified, err := e.ModifyOrder(ctx, resting.OrderID, 0, numerics.PriceFromFloat(95))
	if err != nil {
		t.Fatalf("modify: %v", err)
	}
	if modified.LimitPrice.Float() != 95 {
		t.Fatalf("expected new limit price 95, got %v", modified.LimitPrice.Float())
	}

	taker, err := e.SubmitOrder(ctx, submitReq("seller", "sell", 5, 95), "acct-b", state, 0)
	if err != nil {
		t.Fatalf("taker submit: %v", err)
	}
	if taker.Status != oms.StatusFilled {
		t.Fatalf("expected taker to cross the re-submitted order at its new price, got %+v", taker)
	}
}
