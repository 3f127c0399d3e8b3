package matching

import (
	"math"

	"go.uber.org/zap"

	"github.com/tradsys/core/internal/numerics"
	"github.com/tradsys/core/internal/orderbook"
)

// infinitePrice stands in for a Market Buy's limit during the ascending ask
// scan, so it crosses at any ask price; a Market Sell uses a limit of zero,
// so it crosses at any bid price.
const infinitePrice = numerics.Price(math.MaxInt64)

// Engine runs price-time priority crossing for one symbol's book. It holds
// no state of its own beyond the book and self-trade policy — callers
// (internal/gateway's Engine, through the OMS) own order lifecycle, TIF
// expiry scheduling, and fill persistence.
type Engine struct {
	book       *orderbook.Book
	selfTrade  SelfTradePolicy
	logger     *zap.Logger
}

// NewEngine creates a matching engine over an existing book.
func NewEngine(book *orderbook.Book, selfTrade SelfTradePolicy, logger *zap.Logger) *Engine {
	if selfTrade == nil {
		selfTrade = AllowSelfTrade
	}
	return &Engine{book: book, selfTrade: selfTrade, logger: logger}
}

// Book returns the underlying order book.
func (e *Engine) Book() *orderbook.Book { return e.book }

// Match crosses an incoming order against the opposite side of the book in
// price-time order, then applies the order's time-in-force policy to any
// unfilled remainder (spec §4.2).
func (e *Engine) Match(in Incoming, restingAccountOf func(orderID int64) string) (Outcome, error) {
	if in.Type == TypeLimit && in.LimitPrice <= 0 {
		return Outcome{}, ErrMissingPrice
	}
	if in.Qty <= 0 {
		return Outcome{}, ErrInvalidQuantity
	}

	limit := in.LimitPrice
	if in.Type == TypeMarket {
		limit = infinitePrice
		if in.Side == orderbook.SideSell {
			limit = 0
		}
	}

	if in.TIF == TIFFOK {
		available := e.availableQtyAtOrBetter(in.Side.Opposite(), limit)
		if available < in.Qty {
			return Outcome{Rejected: true, RejectReason: "insufficient liquidity", RemainingQty: in.Qty}, nil
		}
	}

	fills, remaining, rejected := e.cross(in, limit, restingAccountOf)

	out := Outcome{Fills: fills, RemainingQty: remaining}
	if rejected {
		out.Rejected = true
		out.RejectReason = "self-trade rejected"
		return out, nil
	}
	switch in.TIF {
	case TIFIOC, TIFFOK:
		// Any remainder after one pass is cancelled, never rested.
	default:
		// A Market remainder has no price to rest at; AddOrder refuses it.
		if remaining > 0 && in.Type == TypeLimit {
			out.Rested = true
		}
	}
	return out, nil
}

// availableQtyAtOrBetter sums resting quantity on side at prices at-or-
// better than limit (lower-or-equal for asks, higher-or-equal for bids),
// used for the FOK pre-check. It does not mutate the book.
func (e *Engine) availableQtyAtOrBetter(side orderbook.Side, limit numerics.Price) numerics.Qty {
	views, _ := e.depthForSide(side)
	var total numerics.Qty
	for _, v := range views {
		if side == orderbook.SideSell {
			if v.Price > limit {
				break
			}
		} else {
			if v.Price < limit {
				break
			}
		}
		total += v.Qty
	}
	return total
}

func (e *Engine) depthForSide(side orderbook.Side) ([]orderbook.LevelView, []orderbook.LevelView) {
	// Depth(n) returns (bids, asks); Sorted(n) within it is already in
	// priority order for whichever side we read.
	bidViews, askViews := e.book.Depth(math.MaxInt32)
	if side == orderbook.SideBuy {
		return bidViews, nil
	}
	return askViews, nil
}

// cross repeatedly consumes the head of the best opposite-side level while
// the level's price is within the incoming limit and the incoming order
// still has quantity remaining (spec §4.2's literal algorithm statement).
func (e *Engine) cross(in Incoming, limit numerics.Price, restingAccountOf func(int64) string) (fills []Fill, remaining numerics.Qty, rejected bool) {
	opp := in.Side.Opposite()
	remaining = in.Qty

	for remaining > 0 {
		bestPrice, ok := e.book.BestPrice(opp)
		if !ok {
			break
		}
		if opp == orderbook.SideSell {
			if bestPrice > limit {
				break
			}
		} else {
			if bestPrice < limit {
				break
			}
		}

		head := e.book.HeadOrder(opp, bestPrice)
		if head == nil {
			break // level emptied concurrently with our peek; nothing to match
		}

		if restingAccountOf != nil {
			switch e.selfTrade(in.AccountID, restingAccountOf(head.OrderID)) {
			case SelfTradeCancelResting:
				e.book.CancelOrder(head.OrderID)
				continue
			case SelfTradeCancelIncoming:
				return fills, 0, false
			case SelfTradeReject:
				return fills, remaining, true
			}
		}

		tradeQty := head.Qty
		if remaining < tradeQty {
			tradeQty = remaining
		}

		orderID, _, err := e.book.ReduceHead(opp, bestPrice, tradeQty)
		if err != nil {
			e.logger.Warn("reduce head failed mid-cross", zap.Error(err))
			break
		}

		fills = append(fills, Fill{
			IncomingOrderID: in.OrderID,
			RestingOrderID:  orderID,
			Price:           bestPrice, // resting order's price: price improvement accrues to the taker
			Qty:             tradeQty,
			TakerSide:       in.Side,
		})
		remaining -= tradeQty
	}

	if remaining > 0 && (in.TIF == TIFDay || in.TIF == TIFGTC || in.TIF == TIFGTT) {
		_, err := e.book.AddOrder(&orderbook.RestingOrder{
			OrderID:   in.OrderID,
			AccountID: in.AccountID,
			Side:      in.Side,
			Price:     in.LimitPrice,
			Qty:       remaining,
		})
		if err != nil {
			e.logger.Warn("failed to rest remaining quantity", zap.Error(err))
		}
	}

	return fills, remaining, false
}

// ExpireOrder removes a resting Day/GTT order from the book once its
// deadline has passed. Returns false if the order was not resting (already
// filled or cancelled).
func (e *Engine) ExpireOrder(orderID int64) bool {
	return e.book.CancelOrder(orderID)
}
