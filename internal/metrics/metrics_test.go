package metrics

import "testing"

func TestNewRegistryRegistersDistinctCollectors(t *testing.T) {
	r := NewRegistry()

	r.OrdersCreated.WithLabelValues("BTC-USD").Inc()
	r.OrdersRejected.WithLabelValues("risk_limit").Inc()
	r.FillsProcessed.WithLabelValues("SIM").Inc()
	r.OverfillsBlocked.Inc()
	r.MatchLatency.Observe(0.0001)
	r.BookDepth.WithLabelValues("BTC-USD", "buy").Set(3)
	r.VenueBreakerOpen.WithLabelValues("SIM").Set(0)
	r.ChildOrdersSent.WithLabelValues("SIM", "twap").Inc()

	families, err := r.Gatherer().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) != 8 {
		t.Fatalf("expected 8 distinct metric families, got %d", len(families))
	}
}

func TestTwoRegistriesDoNotCollide(t *testing.T) {
	a := NewRegistry()
	b := NewRegistry()
	a.OrdersCreated.WithLabelValues("X").Inc()
	b.OrdersCreated.WithLabelValues("X").Inc()

	famA, err := a.Gatherer().Gather()
	if err != nil {
		t.Fatal(err)
	}
	famB, err := b.Gatherer().Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(famA) == 0 || len(famB) == 0 {
		t.Fatal("expected both registries to report families independently")
	}
}
