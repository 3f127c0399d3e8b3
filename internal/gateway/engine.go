package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tradsys/core/internal/apperr"
	"github.com/tradsys/core/internal/config"
	"github.com/tradsys/core/internal/gateway/reportbus"
	"github.com/tradsys/core/internal/matching"
	"github.com/tradsys/core/internal/metrics"
	"github.com/tradsys/core/internal/numerics"
	"github.com/tradsys/core/internal/oms"
	"github.com/tradsys/core/internal/orderbook"
	"github.com/tradsys/core/internal/orderbook/analytics"
	"github.com/tradsys/core/internal/risk"
	"github.com/tradsys/core/internal/router"
)

// toxicityWindow is the number of rolling buckets ToxicityTracker scores
// over (spec §4.1's microstructure sidecar).
const toxicityWindow = 32

// Engine is the Execution Gateway's orchestration layer (spec §4.5): it
// translates external submit/cancel/modify/get requests into calls against
// the OMS, the internal matching engine, the smart order router and the
// risk validator, and publishes an execution report on every resulting OMS
// transition. Handlers never touch those subsystems directly — Engine is
// the single seam between the external DTO shapes and internal types.
type Engine struct {
	oms   *oms.Service
	risk  *risk.Validator
	rtr   *router.Router
	bus   *reportbus.Bus
	met   *metrics.Registry
	cfg   *config.Config
	log   *zap.Logger

	mu     sync.Mutex
	books  map[string]*orderbook.Book
	xengns map[string]*matching.Engine
	toxTr  map[string]*analytics.ToxicityTracker
}

// EngineParams contains the parameters for creating the gateway's Engine.
// Router is optional: a deployment that only exercises internal crossing
// (enable_matching, no SOR configured) need not supply one.
type EngineParams struct {
	fx.In

	OMS       *oms.Service
	Risk      *risk.Validator
	Router    *router.Router `optional:"true"`
	Reportbus *reportbus.Bus
	Metrics   *metrics.Registry
	Config    *config.Config
	Logger    *zap.Logger
}

// NewEngine wires the gateway orchestrator from its already-constructed
// subsystems.
func NewEngine(p EngineParams) *Engine {
	return &Engine{
		oms:    p.OMS,
		risk:   p.Risk,
		rtr:    p.Router,
		bus:    p.Reportbus,
		met:    p.Metrics,
		cfg:    p.Config,
		log:    p.Logger,
		books:  make(map[string]*orderbook.Book),
		xengns: make(map[string]*matching.Engine),
		toxTr:  make(map[string]*analytics.ToxicityTracker),
	}
}

// bookFor lazily creates the per-symbol book and matching engine pair. Each
// symbol is exclusively owned by this lock-guarded lazy-init, but once
// created the book's own RWMutex discipline governs concurrent access
// (spec §5).
func (e *Engine) bookFor(symbol string) *matching.Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	if eng, ok := e.xengns[symbol]; ok {
		return eng
	}
	mode := orderbook.ModeL2
	if e.cfg.Matching.L3Enabled {
		mode = orderbook.ModeL3
	}
	book := orderbook.NewBook(symbol, mode)
	policy := selfTradePolicyFromConfig(e.cfg.Matching.SelfTradePolicy)
	eng := matching.NewEngine(book, policy, e.log)
	e.books[symbol] = book
	e.xengns[symbol] = eng
	e.toxTr[symbol] = analytics.NewToxicityTracker(toxicityWindow)
	return eng
}

func selfTradePolicyFromConfig(name string) matching.SelfTradePolicy {
	decision := func(name string) matching.SelfTradeDecision {
		switch name {
		case "cancel_resting":
			return matching.SelfTradeCancelResting
		case "cancel_incoming":
			return matching.SelfTradeCancelIncoming
		case "reject":
			return matching.SelfTradeReject
		default:
			return matching.SelfTradeAllow
		}
	}(name)
	if decision == matching.SelfTradeAllow {
		return matching.AllowSelfTrade
	}
	return func(incoming, resting string) matching.SelfTradeDecision {
		if incoming != "" && incoming == resting {
			return decision
		}
		return matching.SelfTradeAllow
	}
}

// SubmitOrder admits req into the OMS, runs the pre-submit risk check, then
// either crosses it against the internal book (enable_matching) or hands it
// to the SOR as a parent order when an algorithm is named. A risk-check
// rejection produces a Created + Rejected pair of execution reports; a
// rejection by matching or the SOR comes after Created and Submitted. An
// order the OMS refuses to create produces no report.
func (e *Engine) SubmitOrder(ctx context.Context, req SubmitOrderRequest, accountID string, state risk.AccountState, openPositions int) (*oms.Order, error) {
	order := &oms.Order{
		ClientOrderID: req.ClientOrderID,
		AccountID:     accountID,
		Symbol:        req.Symbol,
		Side:          req.side(),
		Type:          req.orderType(),
		TIF:           req.tif(),
		LimitPrice:    req.limitPrice(),
		StopPrice:     req.stopPrice(),
		Qty:           req.qty(),
		StrategyID:    req.StrategyID,
		Venue:         req.Venue,
		GTTDeadline:   req.gttDeadline(),
	}

	o, err := e.oms.Create(ctx, order)
	if err != nil {
		e.met.OrdersRejected.WithLabelValues("create_failed").Inc()
		return nil, wrapEngineErr(err)
	}
	e.met.OrdersCreated.WithLabelValues(req.Symbol).Inc()
	e.publishReport(o, reportbus.EventCreated, 0, 0)

	estimatedLoss := numerics.Amount(numerics.MulDiv(int64(order.Qty), int64(order.LimitPrice), int64(numerics.Scale)))
	if err := e.risk.Check(accountID, req.Symbol, order.Side, order.Qty, estimatedLoss, state, openPositions); err != nil {
		rejected, rerr := e.oms.Reject(ctx, o.OrderID, err.Error())
		e.met.OrdersRejected.WithLabelValues("risk_check_failed").Inc()
		if rerr != nil {
			return nil, wrapEngineErr(rerr)
		}
		e.publishReport(rejected, reportbus.EventRejected, 0, 0)
		return rejected, apperr.Wrap(apperr.KindRiskCheckFailed, fmt.Sprintf("risk check failed: %v", err), err)
	}

	submitted, err := e.oms.Submit(ctx, o.OrderID)
	if err != nil {
		return nil, wrapEngineErr(err)
	}
	e.publishReport(submitted, reportbus.EventSubmitted, 0, 0)

	if req.Algorithm != "" && e.rtr != nil {
		return e.routeToSOR(ctx, submitted, req)
	}
	if e.cfg.Engine.EnableMatching {
		return e.matchInternally(ctx, submitted)
	}
	return submitted, nil
}

func (e *Engine) routeToSOR(ctx context.Context, o *oms.Order, req SubmitOrderRequest) (*oms.Order, error) {
	parent := router.ParentOrder{
		ParentOrderID: o.OrderID,
		AccountID:     o.AccountID,
		Symbol:        o.Symbol,
		Side:          o.Side,
		LimitPrice:    o.LimitPrice,
		Qty:           o.Qty,
		Algo:          router.AlgoType(req.Algorithm),
		Params: router.AlgoParams{
			ParticipationBps: int(req.ParticipationRate * 10000),
		},
	}
	if err := e.rtr.Submit(ctx, parent); err != nil {
		rejected, rerr := e.oms.Reject(ctx, o.OrderID, err.Error())
		e.met.OrdersRejected.WithLabelValues("no_venues_available").Inc()
		if rerr != nil {
			return nil, wrapEngineErr(rerr)
		}
		e.publishReport(rejected, reportbus.EventRejected, 0, 0)
		return rejected, apperr.Wrap(apperr.KindNoVenuesAvailable, err.Error(), err)
	}
	e.met.ChildOrdersSent.WithLabelValues(o.Venue, req.Algorithm).Inc()
	return o, nil
}

func (e *Engine) matchInternally(ctx context.Context, o *oms.Order) (*oms.Order, error) {
	eng := e.bookFor(o.Symbol)
	in := matching.Incoming{
		OrderID:     o.OrderID,
		AccountID:   o.AccountID,
		Side:        o.Side,
		Type:        matching.OrderType(o.Type),
		LimitPrice:  o.LimitPrice,
		Qty:         o.RemainingQty,
		TIF:         matching.TimeInForce(o.TIF),
		GTTDeadline: o.GTTDeadline,
	}

	outcome, err := eng.Match(in, e.restingAccountOf)
	if err != nil {
		return nil, wrapEngineErr(err)
	}
	if outcome.Rejected {
		rejected, rerr := e.oms.Reject(ctx, o.OrderID, outcome.RejectReason)
		e.met.OrdersRejected.WithLabelValues("matching_rejected").Inc()
		if rerr != nil {
			return nil, wrapEngineErr(rerr)
		}
		e.publishReport(rejected, reportbus.EventRejected, 0, 0)
		return rejected, nil
	}

	current := o
	for _, f := range outcome.Fills {
		current, err = e.oms.ProcessFill(ctx, o.OrderID, f.Price, f.Qty, "INTERNAL", false)
		if err != nil {
			if errors.Is(err, oms.ErrOverfill) {
				e.met.OverfillsBlocked.Inc()
				e.log.Error("overfill blocked", zap.Int64("order_id", o.OrderID), zap.Error(err))
			}
			return current, wrapEngineErr(err)
		}
		e.met.FillsProcessed.WithLabelValues("INTERNAL").Inc()
		e.publishReport(current, reportbus.EventFill, f.Qty, f.Price)

		// The resting (maker) side of the cross gets the same fill.
		maker, merr := e.oms.ProcessFill(ctx, f.RestingOrderID, f.Price, f.Qty, "INTERNAL", true)
		if merr != nil {
			if errors.Is(merr, oms.ErrOverfill) {
				e.met.OverfillsBlocked.Inc()
			}
			e.log.Error("maker fill not applied", zap.Int64("order_id", f.RestingOrderID), zap.Error(merr))
		} else {
			e.met.FillsProcessed.WithLabelValues("INTERNAL").Inc()
			e.publishReport(maker, reportbus.EventFill, f.Qty, f.Price)
		}

		e.mu.Lock()
		if tracker, ok := e.toxTr[o.Symbol]; ok {
			if o.Side == orderbook.SideBuy {
				tracker.Observe(f.Qty.Float(), 0)
			} else {
				tracker.Observe(0, f.Qty.Float())
			}
		}
		e.mu.Unlock()
	}

	bids, asks := eng.Book().Depth(10)
	e.met.BookDepth.WithLabelValues(o.Symbol, "bid").Set(depthQty(bids))
	e.met.BookDepth.WithLabelValues(o.Symbol, "ask").Set(depthQty(asks))

	return current, nil
}

func depthQty(levels []orderbook.LevelView) float64 {
	var total numerics.Qty
	for _, l := range levels {
		total += l.Qty
	}
	return total.Float()
}

// restingAccountOf looks up the account owning a resting order, used by the
// matching engine's self-trade policy. The OMS is the authoritative owner
// of that mapping.
func (e *Engine) restingAccountOf(orderID int64) string {
	o, err := e.oms.Get(orderID)
	if err != nil {
		return ""
	}
	return o.AccountID
}

// CancelOrder cancels a live order, propagating the cancel to the SOR if it
// was routed there as a parent and pulling any resting remainder off the
// internal book.
func (e *Engine) CancelOrder(ctx context.Context, orderID int64) (*oms.Order, error) {
	existing, err := e.oms.Get(orderID)
	if err != nil {
		return nil, wrapEngineErr(err)
	}

	if e.rtr != nil {
		_ = e.rtr.CancelParent(ctx, orderID)
	}
	e.mu.Lock()
	eng, ok := e.xengns[existing.Symbol]
	e.mu.Unlock()
	if ok {
		eng.ExpireOrder(orderID)
	}

	o, err := e.oms.Cancel(ctx, orderID)
	if err != nil {
		return nil, wrapEngineErr(err)
	}
	e.publishReport(o, reportbus.EventCancelled, 0, 0)
	return o, nil
}

// ModifyOrder amends price and/or quantity in place. A price change
// forfeits queue priority (spec §6): the remaining quantity is pulled from
// the book and re-submitted fresh rather than mutated at its old level.
func (e *Engine) ModifyOrder(ctx context.Context, orderID int64, newQty numerics.Qty, newPrice numerics.Price) (*oms.Order, error) {
	priceChanged := newPrice > 0
	o, err := e.oms.Amend(ctx, oms.Amendment{OrderID: orderID, NewQty: newQty, NewPrice: newPrice})
	if err != nil {
		return nil, wrapEngineErr(err)
	}
	e.publishReport(o, reportbus.EventAmended, 0, 0)

	if priceChanged && e.cfg.Engine.EnableMatching {
		e.mu.Lock()
		eng, ok := e.xengns[o.Symbol]
		e.mu.Unlock()
		if ok {
			eng.ExpireOrder(orderID)
			return e.matchInternally(ctx, o)
		}
	}
	return o, nil
}

// BookAnalytics reports the microstructure snapshot (imbalance, weighted
// mid, spread, toxicity) for a symbol's internal book. Returns the zero
// Snapshot, ok=false for a symbol that has never crossed an order
// internally — there is no book to derive it from.
func (e *Engine) BookAnalytics(symbol string, depth int) (analytics.Snapshot, bool) {
	e.mu.Lock()
	book, ok := e.books[symbol]
	tracker := e.toxTr[symbol]
	e.mu.Unlock()
	if !ok {
		return analytics.Snapshot{}, false
	}
	return analytics.Build(book, tracker, depth), true
}

// GetOrder retrieves an order by internal ID.
func (e *Engine) GetOrder(orderID int64) (*oms.Order, error) {
	o, err := e.oms.Get(orderID)
	if err != nil {
		return nil, wrapEngineErr(err)
	}
	return o, nil
}

// GetOrderByClientID retrieves an order by (account, client order id).
func (e *Engine) GetOrderByClientID(accountID, clientOrderID string) (*oms.Order, error) {
	o, err := e.oms.GetByClientOrderID(accountID, clientOrderID)
	if err != nil {
		return nil, wrapEngineErr(err)
	}
	return o, nil
}

func (e *Engine) publishReport(o *oms.Order, kind reportbus.EventKind, fillQty numerics.Qty, fillPrice numerics.Price) {
	e.bus.Publish(reportbus.Report{
		Sequence:      o.Version,
		OrderID:       o.OrderID,
		ClientOrderID: o.ClientOrderID,
		StrategyID:    o.StrategyID,
		Symbol:        o.Symbol,
		Account:       o.AccountID,
		EventKind:     kind,
		NewStatus:     string(o.Status),
		Executed:      int64(o.FilledQty),
		Remaining:     int64(o.RemainingQty),
		AvgPrice:      int64(o.AvgFillPrice),
		TimestampNs:   int64(o.UpdatedAt),
	})
}
