package venue

import (
	"context"
	"errors"
	"sync"

	"github.com/tradsys/core/internal/numerics"
)

// ErrSimulatedRejection is returned by SimulatedAdapter when RejectAll is
// set, standing in for a venue-side rejection in tests.
var ErrSimulatedRejection = errors.New("venue: simulated rejection")

// SimulatedAdapter is an in-process venue used by tests and local
// development: it fills every child order immediately at its limit price
// and rejects only while RejectAll is set. RejectAll lets tests exercise the router's failure and
// cancel-propagation paths deterministically.
//
// The original source's simulated venue additionally rejected a
// configurable fraction of orders at random to exercise retry logic; this
// port makes that path explicit and deterministic (RejectAll) rather than
// randomized, since a nondeterministic test venue made the original's own
// test suite flaky (spec §9 design note).
type SimulatedAdapter struct {
	descriptor Descriptor
	RejectAll  bool

	mu     sync.Mutex
	fills  chan ChildFill
	quotes chan MarketSnapshot
}

// defaultSimulatedLatencyMs is the round-trip latency a simulated venue
// reports when a test hasn't overridden it with SetLatency.
const defaultSimulatedLatencyMs = 5.0

// NewSimulatedAdapter constructs a simulated venue with the given name,
// already connected and heartbeating (a simulated venue has no real
// connect handshake to wait on).
func NewSimulatedAdapter(name string) *SimulatedAdapter {
	return &SimulatedAdapter{
		descriptor: Descriptor{
			Name: name, ProtocolVersion: "2.0.0",
			Connected: true, LatencyMs: defaultSimulatedLatencyMs,
			LastHeartbeat: numerics.NowNanos(),
		},
		fills:  make(chan ChildFill, 256),
		quotes: make(chan MarketSnapshot, 256),
	}
}

func (s *SimulatedAdapter) Descriptor() Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.descriptor
}

func (s *SimulatedAdapter) Connect(ctx context.Context) error {
	s.mu.Lock()
	s.descriptor.Connected = true
	s.descriptor.LastHeartbeat = numerics.NowNanos()
	s.mu.Unlock()
	return nil
}

// Disconnect marks the adapter unreachable, used by tests exercising the
// router's eligibility filter and failover behavior.
func (s *SimulatedAdapter) Disconnect() {
	s.mu.Lock()
	s.descriptor.Connected = false
	s.mu.Unlock()
}

// SetLatency overrides the simulated venue's advertised latency, used by
// tests exercising venue ranking (spec §4.4, §8 scenario F).
func (s *SimulatedAdapter) SetLatency(ms float64) {
	s.mu.Lock()
	s.descriptor.LatencyMs = ms
	s.mu.Unlock()
}

// SetAdvertisedLiquidity overrides the simulated venue's advertised
// liquidity, used by tests exercising venue ranking.
func (s *SimulatedAdapter) SetAdvertisedLiquidity(q numerics.Qty) {
	s.mu.Lock()
	s.descriptor.AdvertisedLiquidity = q
	s.mu.Unlock()
}

// SubmitChild immediately produces a full fill at the order's limit price
// unless RejectAll is set.
func (s *SimulatedAdapter) SubmitChild(ctx context.Context, o ChildOrder) error {
	if s.RejectAll {
		return ErrSimulatedRejection
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fills <- ChildFill{
		ChildOrderID: o.ChildOrderID,
		Price:        o.LimitPrice,
		Qty:          o.Qty,
		At:           numerics.NowNanos(),
	}
	return nil
}

func (s *SimulatedAdapter) CancelChild(ctx context.Context, childOrderID int64) error {
	return nil
}

func (s *SimulatedAdapter) SubscribeMarketData(ctx context.Context, symbol string) (<-chan MarketSnapshot, error) {
	return s.quotes, nil
}

func (s *SimulatedAdapter) SubscribeFills(ctx context.Context) (<-chan ChildFill, error) {
	return s.fills, nil
}

// PushQuote lets a test feed a synthetic market snapshot to subscribers; it
// also refreshes the venue's heartbeat, since a real adapter's market-data
// stream doubles as its liveness signal.
func (s *SimulatedAdapter) PushQuote(q MarketSnapshot) {
	s.mu.Lock()
	s.descriptor.LastHeartbeat = numerics.NowNanos()
	s.mu.Unlock()
	s.quotes <- q
}
