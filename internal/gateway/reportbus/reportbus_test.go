package reportbus

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestSubscribeReceivesMatchingReport(t *testing.T) {
	bus := New(zaptest.NewLogger(t))
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reports, err := bus.Subscribe(ctx, Filter{Symbol: "BTC-USD"})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	bus.Publish(Report{OrderID: 1, Symbol: "BTC-USD", EventKind: EventFill, Sequence: 1})
	bus.Publish(Report{OrderID: 2, Symbol: "ETH-USD", EventKind: EventFill, Sequence: 1})

	select {
	case r := <-reports:
		if r.OrderID != 1 {
			t.Fatalf("expected order 1, got %d", r.OrderID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for matching report")
	}

	select {
	case r := <-reports:
		t.Fatalf("unexpected second report delivered: %+v", r)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestFilterMatchesOnEveryNonEmptyField(t *testing.T) {
	f := Filter{StrategyID: "mm-1", Account: "acct-1"}
	match := Report{StrategyID: "mm-1", Account: "acct-1", Symbol: "BTC-USD"}
	if !f.matches(match) {
		t.Fatal("expected match")
	}
	noMatch := Report{StrategyID: "mm-2", Account: "acct-1"}
	if f.matches(noMatch) {
		t.Fatal("expected no match on differing strategy")
	}
}

func TestSubscribeChannelClosesOnContextCancel(t *testing.T) {
	bus := New(zaptest.NewLogger(t))
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	reports, err := bus.Subscribe(ctx, Filter{})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	cancel()

	select {
	case _, ok := <-reports:
		if ok {
			t.Fatal("expected channel closed, got a value")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}
