package risk

import (
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/tradsys/core/internal/numerics"
	"github.com/tradsys/core/internal/orderbook"
)

func defaultTestValidator(t *testing.T) *Validator {
	return NewValidator(Limits{
		MaxPositionSize:  numerics.QtyFromFloat(1000),
		MaxOpenPositions: 2,
		MaxLossPerTrade:  numerics.AmountFromFloat(5000),
		MaxDailyLoss:     numerics.AmountFromFloat(10000),
		MinMarginBuffer:  numerics.AmountFromFloat(1000),
	}, zaptest.NewLogger(t))
}

func TestCheckPassesWithinAllLimits(t *testing.T) {
	v := defaultTestValidator(t)
	state := AccountState{
		NetPositions: map[string]numerics.Qty{"BTC-USD": numerics.QtyFromFloat(10)},
		MarginEquity: numerics.AmountFromFloat(50000),
		MarginUsed:   numerics.AmountFromFloat(10000),
	}
	err := v.Check("acct-1", "BTC-USD", orderbook.SideBuy, numerics.QtyFromFloat(5), numerics.AmountFromFloat(100), state, 1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestCheckRejectsMaxPositionSize(t *testing.T) {
	v := defaultTestValidator(t)
	state := AccountState{NetPositions: map[string]numerics.Qty{"BTC-USD": numerics.QtyFromFloat(998)}}
	err := v.Check("acct-1", "BTC-USD", orderbook.SideBuy, numerics.QtyFromFloat(5), 0, state, 1)
	if err != ErrMaxPositionSize {
		t.Fatalf("expected ErrMaxPositionSize, got %v", err)
	}
}

func TestCheckAllowsReducingPositionBeyondCap(t *testing.T) {
	v := defaultTestValidator(t)
	state := AccountState{NetPositions: map[string]numerics.Qty{"BTC-USD": numerics.QtyFromFloat(1500)}}
	err := v.Check("acct-1", "BTC-USD", orderbook.SideSell, numerics.QtyFromFloat(5), 0, state, 1)
	if err != nil {
		t.Fatalf("expected reducing-side order to pass despite an oversized existing position, got %v", err)
	}
}

func TestCheckRejectsMaxOpenPositionsForNewSymbol(t *testing.T) {
	v := defaultTestValidator(t)
	state := AccountState{NetPositions: map[string]numerics.Qty{
		"BTC-USD": numerics.QtyFromFloat(10),
		"ETH-USD": numerics.QtyFromFloat(10),
	}}
	err := v.Check("acct-1", "SOL-USD", orderbook.SideBuy, numerics.QtyFromFloat(5), 0, state, 2)
	if err != ErrMaxOpenPositions {
		t.Fatalf("expected ErrMaxOpenPositions, got %v", err)
	}
}

func TestCheckAllowsAddingToExistingSymbolPastOpenPositionsCap(t *testing.T) {
	v := defaultTestValidator(t)
	state := AccountState{NetPositions: map[string]numerics.Qty{
		"BTC-USD": numerics.QtyFromFloat(10),
		"ETH-USD": numerics.QtyFromFloat(10),
	}}
	err := v.Check("acct-1", "BTC-USD", orderbook.SideBuy, numerics.QtyFromFloat(5), 0, state, 2)
	if err != nil {
		t.Fatalf("expected adding to an already-open symbol to pass, got %v", err)
	}
}

func TestCheckRejectsMaxLossPerTrade(t *testing.T) {
	v := defaultTestValidator(t)
	err := v.Check("acct-1", "BTC-USD", orderbook.SideBuy, numerics.QtyFromFloat(1), numerics.AmountFromFloat(6000), AccountState{}, 0)
	if err != ErrMaxLossPerTrade {
		t.Fatalf("expected ErrMaxLossPerTrade, got %v", err)
	}
}

func TestCheckRejectsMaxDailyLoss(t *testing.T) {
	v := defaultTestValidator(t)
	state := AccountState{DailyPnL: numerics.AmountFromFloat(-12000)}
	err := v.Check("acct-1", "BTC-USD", orderbook.SideBuy, numerics.QtyFromFloat(1), 0, state, 0)
	if err != ErrMaxDailyLoss {
		t.Fatalf("expected ErrMaxDailyLoss, got %v", err)
	}
}

func TestCheckRejectsMarginBufferBreach(t *testing.T) {
	v := defaultTestValidator(t)
	state := AccountState{MarginEquity: numerics.AmountFromFloat(5000), MarginUsed: numerics.AmountFromFloat(4500)}
	err := v.Check("acct-1", "BTC-USD", orderbook.SideBuy, numerics.QtyFromFloat(1), 0, state, 0)
	if err != ErrMarginBuffer {
		t.Fatalf("expected ErrMarginBuffer, got %v", err)
	}
}

func TestSetLimitsOverridesDefaultPerAccount(t *testing.T) {
	v := defaultTestValidator(t)
	v.SetLimits("acct-2", Limits{MaxPositionSize: numerics.QtyFromFloat(5)})

	state := AccountState{NetPositions: map[string]numerics.Qty{"BTC-USD": numerics.QtyFromFloat(3)}}
	if err := v.Check("acct-2", "BTC-USD", orderbook.SideBuy, numerics.QtyFromFloat(10), 0, state, 0); err != ErrMaxPositionSize {
		t.Fatalf("expected override limit to apply, got %v", err)
	}
	// Unrelated account still uses the default (much higher) limit.
	if err := v.Check("acct-1", "BTC-USD", orderbook.SideBuy, numerics.QtyFromFloat(10), 0, state, 0); err != nil {
		t.Fatalf("expected default-limit account unaffected, got %v", err)
	}
}
