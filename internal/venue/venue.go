// Package venue models downstream execution venues: their capability
// surface, protocol-version compatibility, and per-venue circuit breaking,
// so internal/router can dispatch child orders without baking any one
// venue's quirks into the routing algorithms (spec §4.4, "Venue Adapter").
package venue

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/sony/gobreaker"

	"github.com/tradsys/core/internal/numerics"
	"github.com/tradsys/core/internal/orderbook"
)

// Descriptor is the identity, capability, and live-health profile of one
// venue, used by the Router to filter ineligible venues and rank the
// remainder before dispatching a child order (spec §3, §4.4 venue
// selection).
type Descriptor struct {
	Name            string
	ProtocolVersion string // semver, e.g. "2.3.0"
	SupportsIceberg bool
	SupportsPegging bool
	MakerFeeBps     int
	TakerFeeBps     int

	// Connected reports whether the adapter currently has a live session
	// with the venue. A disconnected venue is never eligible.
	Connected bool
	// LatencyMs is the venue's most recently observed round-trip latency,
	// the router's primary ranking key (spec §4.4: "lower latency" first).
	LatencyMs float64
	// AdvertisedLiquidity is the venue's self-reported available size,
	// used as a ranking tiebreak after latency and fee.
	AdvertisedLiquidity numerics.Qty
	// LastHeartbeat is the timestamp of the venue's last liveness signal
	// (a market-data update or an explicit heartbeat); Eligible compares
	// it against the configured staleness window.
	LastHeartbeat numerics.Timestamp
}

// Eligible reports whether d is a legal destination for a child order right
// now: connected, capable of any feature the order requires, and
// heartbeating within the staleness window (spec §3 "venue descriptor",
// §4.4 "venue selection": filter to connected/order-type-capable/non-stale
// venues before ranking). A non-positive staleness disables the heartbeat
// check, since not every caller (tests, a venue with no heartbeat signal
// yet) can supply one.
func Eligible(d Descriptor, now numerics.Timestamp, staleness time.Duration, needIceberg, needPeg bool) bool {
	if !d.Connected {
		return false
	}
	if needIceberg && !d.SupportsIceberg {
		return false
	}
	if needPeg && !d.SupportsPegging {
		return false
	}
	if staleness <= 0 {
		return true
	}
	age := time.Duration(int64(now) - int64(d.LastHeartbeat))
	return age <= staleness
}

// Rank orders descriptors by the Router's venue-selection tiebreak chain
// (spec §4.4): lower latency first, then lower taker fee, then higher
// advertised liquidity, then name as a final deterministic tiebreak. The
// input slice is not mutated.
func Rank(descs []Descriptor) []Descriptor {
	ranked := make([]Descriptor, len(descs))
	copy(ranked, descs)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.LatencyMs != b.LatencyMs {
			return a.LatencyMs < b.LatencyMs
		}
		if a.TakerFeeBps != b.TakerFeeBps {
			return a.TakerFeeBps < b.TakerFeeBps
		}
		if a.AdvertisedLiquidity != b.AdvertisedLiquidity {
			return a.AdvertisedLiquidity > b.AdvertisedLiquidity
		}
		return a.Name < b.Name
	})
	return ranked
}

// ChildOrder is one order sent to a venue on behalf of a parent order
// managed by internal/router.
type ChildOrder struct {
	ChildOrderID  int64
	ParentOrderID int64
	Symbol        string
	Side          orderbook.Side
	LimitPrice    numerics.Price
	Qty           numerics.Qty
	Venue         string
}

// ChildFill is one execution report a venue adapter surfaces for a child
// order.
type ChildFill struct {
	ChildOrderID int64
	Price        numerics.Price
	Qty          numerics.Qty
	At           numerics.Timestamp
}

// MarketSnapshot is the venue's best-of-book view as of the last update,
// used by internal/router to build a cross-venue MarketContext.
type MarketSnapshot struct {
	Venue     string
	Symbol    string
	Bid       numerics.Price
	Ask       numerics.Price
	BidQty    numerics.Qty
	AskQty    numerics.Qty
	UpdatedAt numerics.Timestamp
}

// Adapter is the capability surface every venue integration must satisfy:
// connect, submit/cancel a child order, and subscribe to market data and
// fills (spec §4.4's four required operations).
type Adapter interface {
	Descriptor() Descriptor
	Connect(ctx context.Context) error
	SubmitChild(ctx context.Context, o ChildOrder) error
	CancelChild(ctx context.Context, childOrderID int64) error
	SubscribeMarketData(ctx context.Context, symbol string) (<-chan MarketSnapshot, error)
	SubscribeFills(ctx context.Context) (<-chan ChildFill, error)
}

// ErrIncompatibleProtocol is returned when a venue's advertised protocol
// version falls outside the range this build supports.
var ErrIncompatibleProtocol = fmt.Errorf("venue: incompatible protocol version")

// MinSupportedProtocol is the lowest venue protocol version this engine can
// speak to; venues below this are refused at Connect time (spec §9 Open
// Question: decided as "refuse outright" rather than best-effort degraded
// mode, since a protocol gap this large usually means incompatible message
// shapes, not just missing optional fields).
var MinSupportedProtocol = semver.MustParse("2.0.0")

// CheckProtocolCompatibility validates a venue's advertised version against
// MinSupportedProtocol and the next major version boundary (this build
// never assumes forward compatibility with an unreleased major version).
func CheckProtocolCompatibility(version string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("venue: parse protocol version %q: %w", version, err)
	}
	if v.LessThan(MinSupportedProtocol) {
		return fmt.Errorf("%w: %s < %s", ErrIncompatibleProtocol, v, MinSupportedProtocol)
	}
	nextMajor := semver.New(MinSupportedProtocol.Major()+1, 0, 0, "", "")
	if !v.LessThan(nextMajor) {
		return fmt.Errorf("%w: %s >= %s", ErrIncompatibleProtocol, v, nextMajor)
	}
	return nil
}

// BreakerConfig tunes the per-venue circuit breaker.
type BreakerConfig struct {
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// FailureRatio trips the breaker open once this fraction of requests in
	// a rolling window fail, given at least MinRequests samples.
	FailureRatio float64
	MinRequests  uint32
	// OnStateChange, if set, is invoked whenever the breaker transitions
	// state (closed/half-open/open), letting a caller surface venue
	// degradation through its own alerting surface (spec §9 supplemented
	// feature: venue degradation alerting) without this package depending
	// on internal/gateway/reportbus or internal/metrics.
	OnStateChange func(venueName string, from, to gobreaker.State)
}

// DefaultBreakerConfig mirrors conservative venue-facing defaults: trip
// after half of at least 10 requests fail within a 30s window, stay open
// 15s before probing again.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:  3,
		Interval:     30 * time.Second,
		Timeout:      15 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  10,
	}
}

// NewBreaker wraps a venue name with a gobreaker.CircuitBreaker using cfg.
func NewBreaker(venueName string, cfg BreakerConfig) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        venueName,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= cfg.MinRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from, to)
			}
		},
	})
}
