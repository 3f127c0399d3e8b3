package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tradsys/core/internal/numerics"
	"github.com/tradsys/core/internal/venue"
)

// Registry maps an AlgoType to its Algorithm implementation. Callers
// register internal/router/algo's implementations (or their own) before
// starting the Router.
type Registry map[AlgoType]Algorithm

// VenueSet is the router's view of every connected venue adapter, keyed by
// name.
type VenueSet map[string]venue.Adapter

// Router drives parent-order decomposition: it maintains a cached
// MarketContext per symbol (refreshed by UpdateQuote), ranks eligible
// venues, and ticks each live parent order's Algorithm at Submit and on
// each Tick call, dispatching ChildPlans through a bounded goroutine pool so a
// slow venue call never stalls the router's scheduling loop (spec §4.4).
type Router struct {
	registry        Registry
	venues          VenueSet
	contexts        *cache.Cache
	pool            *ants.Pool
	logger          *zap.Logger
	stalenessWindow time.Duration

	mu      sync.Mutex
	parents map[int64]*liveParent
}

type liveParent struct {
	order     ParentOrder
	remaining numerics.Qty
	children  map[int64]venue.ChildOrder
	cancelled bool
	// pacer bounds how often TWAP/POV may emit a new tick's children; a
	// caller driving Tick faster than the algorithm's natural cadence
	// (e.g. a shared scheduler ticking every parent every second) must not
	// cause TWAP/POV to re-slice more often than their own pacing allows.
	// Smart/Iceberg/Peg are unpaced: they react immediately to quantity or
	// market-data changes and are democratized through the dispatch pool
	// instead (spec §4.4).
	pacer *rate.Limiter
}

// Config tunes the router's cache TTL, worker pool size, and venue
// eligibility window.
type Config struct {
	ContextTTL time.Duration
	PoolSize   int
	// StalenessWindow bounds how old a venue's last heartbeat may be before
	// it is filtered out as ineligible (spec §4.4 venue selection). Zero
	// disables the staleness check.
	StalenessWindow time.Duration
}

// DefaultConfig returns conservative defaults: a 2s market-context TTL (the
// spec's staleness window is looser, 5s; caching at a finer grain keeps
// algorithm decisions reasonably fresh without re-snapshotting every
// venue on every tick), a 64-worker dispatch pool, and a 5s venue staleness
// window.
func DefaultConfig() Config {
	return Config{ContextTTL: 2 * time.Second, PoolSize: 64, StalenessWindow: 5 * time.Second}
}

// NewRouter constructs a Router. venues must already be Connect()ed.
func NewRouter(registry Registry, venues VenueSet, cfg Config, logger *zap.Logger) (*Router, error) {
	pool, err := ants.NewPool(cfg.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("router: create dispatch pool: %w", err)
	}
	return &Router{
		registry:        registry,
		venues:          venues,
		contexts:        cache.New(cfg.ContextTTL, cfg.ContextTTL*2),
		pool:            pool,
		logger:          logger,
		stalenessWindow: cfg.StalenessWindow,
		parents:         make(map[int64]*liveParent),
	}, nil
}

// Close releases the dispatch pool.
func (r *Router) Close() { r.pool.Release() }

// UpdateQuote folds a fresh venue snapshot into the cached MarketContext
// for its symbol. Nothing in this repository subscribes to the adapters'
// market data and feeds it here; callers pass snapshots in themselves.
func (r *Router) UpdateQuote(snap venue.MarketSnapshot) {
	key := snap.Symbol
	var ctx MarketContext
	if cached, ok := r.contexts.Get(key); ok {
		ctx = cached.(MarketContext)
	} else {
		ctx = MarketContext{Symbol: key, Quotes: make(map[string]venue.MarketSnapshot)}
	}
	ctx.Quotes[snap.Venue] = snap
	ctx.AsOf = numerics.NowNanos()
	r.contexts.Set(key, ctx, cache.DefaultExpiration)
}

// context returns the cached MarketContext for symbol, or an empty one if
// nothing has been observed yet.
func (r *Router) context(symbol string) MarketContext {
	if cached, ok := r.contexts.Get(symbol); ok {
		return cached.(MarketContext)
	}
	return MarketContext{Symbol: symbol, Quotes: make(map[string]venue.MarketSnapshot)}
}

// Submit admits a new parent order and ticks its algorithm once
// immediately. Returns ErrUnknownAlgo if parent.Algo has no registered
// Algorithm.
func (r *Router) Submit(ctx context.Context, parent ParentOrder) error {
	algorithm, ok := r.registry[parent.Algo]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAlgo, parent.Algo)
	}

	lp := &liveParent{order: parent, remaining: parent.Qty, children: make(map[int64]venue.ChildOrder), pacer: pacerFor(parent)}
	r.mu.Lock()
	r.parents[parent.ParentOrderID] = lp
	r.mu.Unlock()

	return r.tick(ctx, algorithm, lp, 0)
}

// Tick advances a live parent order's algorithm by one scheduling step,
// given the number of seconds elapsed since Submit. The router has no
// ticker of its own and nothing in cmd/tradsys calls Tick, so after the
// initial tick at Submit a parent advances only when a caller calls this.
func (r *Router) Tick(ctx context.Context, parentOrderID int64, elapsedSeconds int64) error {
	r.mu.Lock()
	lp, ok := r.parents[parentOrderID]
	r.mu.Unlock()
	if !ok || lp.cancelled {
		return nil
	}
	algorithm := r.registry[lp.order.Algo]
	return r.tick(ctx, algorithm, lp, elapsedSeconds)
}

// pacerFor returns a token-bucket limiter bounding TWAP's slice interval or
// POV's participation-driven emission rate, or nil for algorithms that
// react immediately instead of on a schedule.
func pacerFor(parent ParentOrder) *rate.Limiter {
	switch parent.Algo {
	case AlgoTWAP:
		interval := parent.Params.SliceInterval
		if interval <= 0 {
			interval = 30
		}
		return rate.NewLimiter(rate.Every(time.Duration(interval)*time.Second), 1)
	case AlgoPOV:
		return rate.NewLimiter(rate.Every(time.Second), 1)
	default:
		return nil
	}
}

func (r *Router) tick(ctx context.Context, algorithm Algorithm, lp *liveParent, elapsedSeconds int64) error {
	if lp.pacer != nil && !lp.pacer.Allow() {
		return nil
	}

	r.mu.Lock()
	remaining := lp.remaining
	r.mu.Unlock()
	if remaining <= 0 {
		return nil
	}

	marketCtx := r.context(lp.order.Symbol)
	marketCtx.Ranked = r.eligibleRanked(lp.order)
	plans := algorithm.Next(marketCtx, lp.order, remaining, elapsedSeconds)

	for _, plan := range plans {
		childID := nextChildID()
		child := venue.ChildOrder{
			ChildOrderID:  childID,
			ParentOrderID: lp.order.ParentOrderID,
			Symbol:        lp.order.Symbol,
			Side:          plan.Side,
			LimitPrice:    plan.LimitPrice,
			Qty:           plan.Qty,
			Venue:         plan.Venue,
		}
		r.mu.Lock()
		lp.children[childID] = child
		r.mu.Unlock()

		adapter, ok := r.venues[plan.Venue]
		if !ok {
			r.logger.Warn("algorithm targeted unknown venue", zap.String("venue", plan.Venue))
			continue
		}

		err := r.pool.Submit(func() {
			if err := adapter.SubmitChild(ctx, child); err != nil {
				r.logger.Warn("child order submission failed, leaving residual for rebalance",
					zap.String("venue", plan.Venue), zap.Int64("child_order_id", childID), zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("router: dispatch child: %w", err)
		}
	}
	return nil
}

// eligibleRanked filters the router's venue set down to those eligible for
// parent's order type right now, then ranks them (spec §4.4 venue
// selection): connected, capable of iceberg/peg display if the parent's
// algorithm needs it, and heartbeating within the staleness window.
func (r *Router) eligibleRanked(parent ParentOrder) []string {
	needIceberg := parent.Algo == AlgoIceberg
	needPeg := parent.Algo == AlgoPeg
	now := numerics.NowNanos()

	descs := make([]venue.Descriptor, 0, len(r.venues))
	for _, adapter := range r.venues {
		d := adapter.Descriptor()
		if !venue.Eligible(d, now, r.stalenessWindow, needIceberg, needPeg) {
			continue
		}
		descs = append(descs, d)
	}
	ranked := venue.Rank(descs)
	names := make([]string, len(ranked))
	for i, d := range ranked {
		names[i] = d.Name
	}
	return names
}

// ApplyChildFill reduces a parent's remaining quantity by a reported child
// fill.
func (r *Router) ApplyChildFill(parentOrderID int64, qty numerics.Qty) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lp, ok := r.parents[parentOrderID]
	if !ok {
		return
	}
	lp.remaining -= qty
	if lp.remaining < 0 {
		lp.remaining = 0
	}
}

// CancelParent marks a parent cancelled and propagates CancelChild to every
// outstanding child across every venue it was routed to (spec §4.4 cancel
// propagation).
func (r *Router) CancelParent(ctx context.Context, parentOrderID int64) error {
	r.mu.Lock()
	lp, ok := r.parents[parentOrderID]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownParent
	}
	lp.cancelled = true
	children := make([]venue.ChildOrder, 0, len(lp.children))
	for _, c := range lp.children {
		children = append(children, c)
	}
	r.mu.Unlock()

	var firstErr error
	for _, c := range children {
		adapter, ok := r.venues[c.Venue]
		if !ok {
			continue
		}
		if err := adapter.CancelChild(ctx, c.ChildOrderID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Remaining returns a live parent's unfilled quantity.
func (r *Router) Remaining(parentOrderID int64) (numerics.Qty, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lp, ok := r.parents[parentOrderID]
	if !ok {
		return 0, false
	}
	return lp.remaining, true
}

var childIDSeq numerics.Sequence

func nextChildID() int64 { return childIDSeq.Next() }
