package orderbook

import (
	"encoding/binary"
	"hash/fnv"
)

// Checksum computes a deterministic FNV-1a 64-bit digest over the top-N
// (price, qty) pairs on each side, in canonical order: descending bids then
// ascending asks. Two books with identical top-N state produce identical
// checksums regardless of insertion history (spec testable property 9),
// because the digest only ever reads the sorted, aggregated view — never
// anything order-arrival-dependent like FIFO position.
func (b *Book) Checksum(topN int) uint64 {
	bidViews, askViews := b.Depth(topN)
	h := fnv.New64a()
	var buf [16]byte
	for _, v := range bidViews {
		binary.BigEndian.PutUint64(buf[0:8], uint64(v.Price))
		binary.BigEndian.PutUint64(buf[8:16], uint64(v.Qty))
		h.Write(buf[:])
	}
	// Separator so an all-bid and all-ask encoding of the same raw bytes
	// can never collide.
	h.Write([]byte{0xff})
	for _, v := range askViews {
		binary.BigEndian.PutUint64(buf[0:8], uint64(v.Price))
		binary.BigEndian.PutUint64(buf[8:16], uint64(v.Qty))
		h.Write(buf[:])
	}
	return h.Sum64()
}
