package orderbook

import (
	"sync"

	"github.com/tradsys/core/internal/numerics"
)

// Mode selects how much detail Depth exposes. The internal representation
// is always L3 (a FIFO queue per level) because O(1) cancel-by-order-ID
// requires order identity regardless of the advertised depth mode; ModeL2
// only changes what DepthL3 is willing to return.
type Mode int

const (
	// ModeL2 aggregates by price level; per-order detail is not exposed.
	ModeL2 Mode = iota
	// ModeL3 exposes individual resting orders via DepthL3.
	ModeL3
)

// Book is the authoritative per-symbol limit order book. A Book is owned by
// a single writer goroutine; Depth/BestBidOffer/Checksum take the read lock
// and return copies, so they never block behind a writer for longer than a
// level-pointer copy (spec §5).
type Book struct {
	Symbol string
	Mode   Mode

	mu         sync.RWMutex
	bids       *priceHeap
	asks       *priceHeap
	bidLevels  map[int64]*Level
	askLevels  map[int64]*Level
	orderIndex map[int64]OrderLocation

	seq        numerics.Sequence
	lastUpdate numerics.Timestamp
}

// NewBook creates an empty book for a symbol. Books are created lazily on
// first message for a symbol by the component that owns symbol lifecycle
// (internal/gateway's Engine; the book-replay command builds its own) and
// live for the process.
func NewBook(symbol string, mode Mode) *Book {
	return &Book{
		Symbol:     symbol,
		Mode:       mode,
		bids:       newPriceHeap(true),
		asks:       newPriceHeap(false),
		bidLevels:  make(map[int64]*Level),
		askLevels:  make(map[int64]*Level),
		orderIndex: make(map[int64]OrderLocation),
	}
}

func (b *Book) sideState(side Side) (*priceHeap, map[int64]*Level) {
	if side == SideBuy {
		return b.bids, b.bidLevels
	}
	return b.asks, b.askLevels
}

func (b *Book) touch() {
	b.seq.Next()
	b.lastUpdate = numerics.NowNanos()
}

// Sequence returns the book's current sequence number.
func (b *Book) Sequence() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.seq.Current()
}

// LastUpdate returns the timestamp of the most recent mutation.
func (b *Book) LastUpdate() numerics.Timestamp {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastUpdate
}

// AddOrder inserts a resting order at (side, price), appending it to that
// level's FIFO, and returns the book's new sequence number. O(log P + 1)
// where P is the number of distinct price levels on that side.
func (b *Book) AddOrder(o *RestingOrder) (int64, error) {
	if o.Price <= 0 {
		return 0, ErrInvalidPrice
	}
	if o.Qty <= 0 {
		return 0, ErrInvalidQuantity
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.orderIndex[o.OrderID]; exists {
		return 0, ErrOrderExists
	}

	heapSide, levels := b.sideState(o.Side)
	level, ok := levels[int64(o.Price)]
	if !ok {
		level = &Level{Price: o.Price}
		levels[int64(o.Price)] = level
		heapSide.Insert(int64(o.Price))
	}
	level.Orders = append(level.Orders, o)
	level.TotalQty += o.Qty
	b.orderIndex[o.OrderID] = OrderLocation{Side: o.Side, Price: o.Price}

	b.touch()
	return b.seq.Current(), nil
}

// CancelOrder removes a resting order by ID. Returns false if the ID is
// unknown — this is not a fatal condition (spec testable property 10).
func (b *Book) CancelOrder(orderID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.removeOrderLocked(orderID) != nil
}

// removeOrderLocked removes the order from its level's FIFO and returns the
// removed order, or nil if unknown. Caller must hold b.mu.
func (b *Book) removeOrderLocked(orderID int64) *RestingOrder {
	loc, ok := b.orderIndex[orderID]
	if !ok {
		return nil
	}
	heapSide, levels := b.sideState(loc.Side)
	level := levels[int64(loc.Price)]
	if level == nil {
		delete(b.orderIndex, orderID)
		return nil
	}

	var removed *RestingOrder
	for i, ro := range level.Orders {
		if ro.OrderID == orderID {
			removed = ro
			level.Orders = append(level.Orders[:i], level.Orders[i+1:]...)
			break
		}
	}
	if removed == nil {
		delete(b.orderIndex, orderID)
		return nil
	}
	level.TotalQty -= removed.Qty
	delete(b.orderIndex, orderID)

	if len(level.Orders) == 0 {
		delete(levels, int64(loc.Price))
		heapSide.Remove(int64(loc.Price))
	}

	b.touch()
	return removed
}

// ModifyOrder changes a resting order's quantity. A reduction retains queue
// position; an increase forfeits priority and moves to the tail of the same
// price level (spec §4.1).
func (b *Book) ModifyOrder(orderID int64, newQty numerics.Qty) error {
	if newQty <= 0 {
		return ErrInvalidQuantity
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	loc, ok := b.orderIndex[orderID]
	if !ok {
		return ErrOrderExists
	}
	_, levels := b.sideState(loc.Side)
	level := levels[int64(loc.Price)]
	if level == nil {
		return ErrOrderExists
	}

	for i, ro := range level.Orders {
		if ro.OrderID != orderID {
			continue
		}
		if newQty <= ro.Qty {
			level.TotalQty -= ro.Qty - newQty
			ro.Qty = newQty
			b.touch()
			return nil
		}
		// Increase: cancel-and-replace at the tail, forfeiting priority.
		level.TotalQty += newQty - ro.Qty
		level.Orders = append(level.Orders[:i], level.Orders[i+1:]...)
		ro.Qty = newQty
		level.Orders = append(level.Orders, ro)
		b.touch()
		return nil
	}
	return ErrOrderExists
}

// BestBidOffer returns the best bid and best ask prices, if any.
func (b *Book) BestBidOffer() (bid numerics.Price, bidOK bool, ask numerics.Price, askOK bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if p, ok := b.bids.Best(); ok {
		bid, bidOK = numerics.Price(p), true
	}
	if p, ok := b.asks.Best(); ok {
		ask, askOK = numerics.Price(p), true
	}
	return
}

// BestPrice returns the best price on one side.
func (b *Book) BestPrice(side Side) (numerics.Price, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	heapSide, _ := b.sideState(side)
	p, ok := heapSide.Best()
	return numerics.Price(p), ok
}

// Depth returns up to n levels per side as (price, qty, order_count) views,
// in priority order.
func (b *Book) Depth(n int) (bidViews, askViews []LevelView) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	bidViews = b.levelViewsLocked(b.bids, b.bidLevels, n)
	askViews = b.levelViewsLocked(b.asks, b.askLevels, n)
	return
}

func (b *Book) levelViewsLocked(h *priceHeap, levels map[int64]*Level, n int) []LevelView {
	prices := h.Sorted(n)
	out := make([]LevelView, 0, len(prices))
	for _, p := range prices {
		l := levels[p]
		out = append(out, LevelView{Price: l.Price, Qty: l.TotalQty, OrderCount: l.OrderCount()})
	}
	return out
}

// DepthL3 returns the resting orders (by value, to avoid exposing internal
// pointers) at each of the top n levels per side. Returns an error-free
// empty result when Mode is ModeL2 — callers that need L3 detail must
// construct the book with ModeL3.
func (b *Book) DepthL3(n int) (bids, asks [][]RestingOrder) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.Mode != ModeL3 {
		return nil, nil
	}
	bids = b.l3Locked(b.bids, b.bidLevels, n)
	asks = b.l3Locked(b.asks, b.askLevels, n)
	return
}

func (b *Book) l3Locked(h *priceHeap, levels map[int64]*Level, n int) [][]RestingOrder {
	prices := h.Sorted(n)
	out := make([][]RestingOrder, 0, len(prices))
	for _, p := range prices {
		l := levels[p]
		ords := make([]RestingOrder, len(l.Orders))
		for i, o := range l.Orders {
			ords[i] = *o
		}
		out = append(out, ords)
	}
	return out
}

// HeadOrder peeks the order at the front of a level's FIFO without removing
// it. Used by internal/matching to drive price-time priority crossing.
func (b *Book) HeadOrder(side Side, price numerics.Price) *RestingOrder {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, levels := b.sideState(side)
	level := levels[int64(price)]
	if level == nil || len(level.Orders) == 0 {
		return nil
	}
	return level.Orders[0]
}

// ReduceHead consumes qty from the head order of a level, removing it from
// the FIFO if fully consumed (and dropping the level if it becomes empty).
// qty must not exceed the head order's remaining quantity. Returns the
// consumed order's ID and whether it was fully consumed.
func (b *Book) ReduceHead(side Side, price numerics.Price, qty numerics.Qty) (orderID int64, fullyConsumed bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	heapSide, levels := b.sideState(side)
	level := levels[int64(price)]
	if level == nil || len(level.Orders) == 0 {
		return 0, false, ErrOrderExists
	}
	head := level.Orders[0]
	if qty > head.Qty {
		return 0, false, ErrInvalidQuantity
	}

	head.Qty -= qty
	level.TotalQty -= qty
	orderID = head.OrderID

	if head.Qty == 0 {
		level.Orders = level.Orders[1:]
		delete(b.orderIndex, orderID)
		fullyConsumed = true
		if len(level.Orders) == 0 {
			delete(levels, int64(price))
			heapSide.Remove(int64(price))
		}
	}
	b.touch()
	return orderID, fullyConsumed, nil
}
