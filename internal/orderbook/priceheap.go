package orderbook

import "container/heap"

// priceHeap is a heap of distinct price levels on one side of the book,
// giving O(log P) best-price peek/insert/remove where P is the number of
// distinct price levels on that side — the book never heaps individual
// orders, only the (much smaller) set of price levels, with each level's
// own FIFO handling time priority within the level.
//
// descending controls ordering: true for the bid side (highest price is
// best), false for the ask side (lowest price is best).
type priceHeap struct {
	prices     []int64 // raw Price values
	descending bool
	index      map[int64]int // price -> position in prices, for O(log P) removal
}

func newPriceHeap(descending bool) *priceHeap {
	return &priceHeap{
		descending: descending,
		index:      make(map[int64]int),
	}
}

func (h *priceHeap) Len() int { return len(h.prices) }

func (h *priceHeap) Less(i, j int) bool {
	if h.descending {
		return h.prices[i] > h.prices[j]
	}
	return h.prices[i] < h.prices[j]
}

func (h *priceHeap) Swap(i, j int) {
	h.prices[i], h.prices[j] = h.prices[j], h.prices[i]
	h.index[h.prices[i]] = i
	h.index[h.prices[j]] = j
}

func (h *priceHeap) Push(x any) {
	p := x.(int64)
	h.index[p] = len(h.prices)
	h.prices = append(h.prices, p)
}

func (h *priceHeap) Pop() any {
	n := len(h.prices)
	p := h.prices[n-1]
	h.prices = h.prices[:n-1]
	delete(h.index, p)
	return p
}

// Insert adds a price to the heap. No-op if already present.
func (h *priceHeap) Insert(p int64) {
	if _, ok := h.index[p]; ok {
		return
	}
	heap.Push(h, p)
}

// Remove drops a price from the heap. No-op if not present.
func (h *priceHeap) Remove(p int64) {
	i, ok := h.index[p]
	if !ok {
		return
	}
	heap.Remove(h, i)
}

// Best returns the top-priority price and true, or 0/false if empty.
func (h *priceHeap) Best() (int64, bool) {
	if len(h.prices) == 0 {
		return 0, false
	}
	return h.prices[0], true
}

// Sorted returns up to n prices in priority order without mutating the heap.
func (h *priceHeap) Sorted(n int) []int64 {
	cp := make([]int64, len(h.prices))
	copy(cp, h.prices)
	cpHeap := &priceHeap{prices: cp, descending: h.descending, index: make(map[int64]int)}
	for i, p := range cp {
		cpHeap.index[p] = i
	}
	heap.Init(cpHeap)
	out := make([]int64, 0, n)
	for cpHeap.Len() > 0 && len(out) < n {
		out = append(out, heap.Pop(cpHeap).(int64))
	}
	return out
}
