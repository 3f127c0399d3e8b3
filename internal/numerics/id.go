package numerics

import (
	"sync/atomic"
	"time"
)

// Sequence is a lock-free monotonically increasing 64-bit counter, used for
// order IDs, fill IDs, and per-book sequence numbers. The zero value is
// ready to use and starts handing out 1.
type Sequence struct {
	counter int64
}

// Next returns the next value in the sequence. Safe for concurrent use.
func (s *Sequence) Next() int64 {
	return atomic.AddInt64(&s.counter, 1)
}

// Current returns the most recently handed-out value without advancing the
// sequence.
func (s *Sequence) Current() int64 {
	return atomic.LoadInt64(&s.counter)
}

// SetAtLeast bumps the counter up to v if it is currently lower, used when
// replaying persisted state at startup so freshly-issued IDs never collide
// with ones already handed out before the restart.
func (s *Sequence) SetAtLeast(v int64) {
	for {
		cur := atomic.LoadInt64(&s.counter)
		if cur >= v {
			return
		}
		if atomic.CompareAndSwapInt64(&s.counter, cur, v) {
			return
		}
	}
}

// NowNanos returns the current time as nanoseconds since the Unix epoch,
// used to stamp Timestamp fields. Centralized so tests can fake it by
// constructing Timestamps directly instead of calling this at the call site.
func NowNanos() Timestamp {
	return Timestamp(time.Now().UnixNano())
}
