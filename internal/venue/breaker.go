package venue

import (
	"context"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// GuardedAdapter wraps an Adapter's mutating calls (submit/cancel) in a
// per-venue circuit breaker, so a degrading venue stops receiving new child
// orders before its failures cascade into the router's retry paths (spec
// §9 supplemented feature: venue degradation alerting).
type GuardedAdapter struct {
	Adapter
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewGuardedAdapter wraps adapter with a breaker built from cfg.
func NewGuardedAdapter(adapter Adapter, cfg BreakerConfig, logger *zap.Logger) *GuardedAdapter {
	return &GuardedAdapter{
		Adapter: adapter,
		breaker: NewBreaker(adapter.Descriptor().Name, cfg),
		logger:  logger,
	}
}

// SubmitChild routes through the circuit breaker, tripping it on repeated
// venue-side failures.
func (g *GuardedAdapter) SubmitChild(ctx context.Context, o ChildOrder) error {
	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, g.Adapter.SubmitChild(ctx, o)
	})
	if err == gobreaker.ErrOpenState {
		g.logger.Warn("venue circuit open, child order rejected locally",
			zap.String("venue", g.Adapter.Descriptor().Name), zap.Int64("child_order_id", o.ChildOrderID))
	}
	return err
}

// CancelChild routes through the circuit breaker.
func (g *GuardedAdapter) CancelChild(ctx context.Context, childOrderID int64) error {
	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, g.Adapter.CancelChild(ctx, childOrderID)
	})
	return err
}

// State reports the breaker's current state, used for health/metrics.
func (g *GuardedAdapter) State() gobreaker.State {
	return g.breaker.State()
}

// Descriptor reports the underlying adapter's descriptor with Connected
// forced false while the breaker is open, so the router's eligibility
// filter stops routing to a venue this process has already given up on
// without waiting for the adapter itself to notice (spec §4.4 venue
// selection).
func (g *GuardedAdapter) Descriptor() Descriptor {
	d := g.Adapter.Descriptor()
	if g.breaker.State() == gobreaker.StateOpen {
		d.Connected = false
	}
	return d
}
