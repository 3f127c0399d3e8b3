package oms

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tradsys/core/internal/oms/persistence"
)

// maxSaveAttempts bounds the retry the spec calls for on a persistence
// failure (spec §7: PersistenceError propagation is "blocks caller, bounded
// retry") before the writer gives up and returns ErrPersistence.
const maxSaveAttempts = 3

// batchWriter buffers OrderRecord writes and flushes them to the durable
// store either once batchSize records have accumulated or flushInterval has
// elapsed, whichever comes first (spec §6's persist_batch_size). Every
// caller of save blocks until its own record has landed durably or the
// write has exhausted its retries — batching amortizes the store round
// trip, it never turns a write into a fire-and-forget one (spec §4.3:
// "never silently dropped").
type batchWriter struct {
	store         persistence.Store
	logger        *zap.Logger
	batchSize     int
	flushInterval time.Duration

	mu      sync.Mutex
	pending []pendingWrite

	closeCh   chan struct{}
	closeOnce sync.Once
}

type pendingWrite struct {
	record persistence.OrderRecord
	done   chan error
}

// newBatchWriter constructs a writer. batchSize <= 1 makes save synchronous
// (one Save call per write, the prior behavior); batchSize > 1 buffers
// writes and starts a background flush loop on flushInterval.
func newBatchWriter(store persistence.Store, logger *zap.Logger, batchSize int, flushInterval time.Duration) *batchWriter {
	if batchSize < 1 {
		batchSize = 1
	}
	w := &batchWriter{
		store:         store,
		logger:        logger,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		closeCh:       make(chan struct{}),
	}
	if batchSize > 1 && flushInterval > 0 {
		go w.flushLoop()
	}
	return w
}

// save enqueues rec and blocks until it has been durably written, returning
// the store's error (wrapped in ErrPersistence) if every retry failed.
func (w *batchWriter) save(ctx context.Context, rec persistence.OrderRecord) error {
	if w.batchSize <= 1 {
		return w.saveWithRetry(ctx, rec)
	}

	pw := pendingWrite{record: rec, done: make(chan error, 1)}
	w.mu.Lock()
	w.pending = append(w.pending, pw)
	full := len(w.pending) >= w.batchSize
	w.mu.Unlock()

	if full {
		w.flush(ctx)
	}

	select {
	case err := <-pw.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *batchWriter) flushLoop() {
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.flush(context.Background())
		case <-w.closeCh:
			return
		}
	}
}

func (w *batchWriter) flush(ctx context.Context) {
	w.mu.Lock()
	batch := w.pending
	w.pending = nil
	w.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	records := make([]persistence.OrderRecord, len(batch))
	for i, pw := range batch {
		records[i] = pw.record
	}

	err := w.saveBatchWithRetry(ctx, records)
	for _, pw := range batch {
		pw.done <- err
	}
}

func (w *batchWriter) saveWithRetry(ctx context.Context, rec persistence.OrderRecord) error {
	var err error
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		if err = w.store.Save(ctx, rec); err == nil {
			return nil
		}
		w.logger.Warn("persist attempt failed",
			zap.Int64("order_id", rec.OrderID), zap.Int64("version", rec.Version),
			zap.Int("attempt", attempt), zap.Error(err))
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}

func (w *batchWriter) saveBatchWithRetry(ctx context.Context, records []persistence.OrderRecord) error {
	var err error
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		if err = w.store.SaveBatch(ctx, records); err == nil {
			return nil
		}
		w.logger.Warn("persist batch attempt failed",
			zap.Int("batch_size", len(records)), zap.Int("attempt", attempt), zap.Error(err))
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}

// close stops the background flush loop, if one was started. Any writes
// still buffered are dropped; callers that need a clean shutdown should
// stop submitting new orders before calling close.
func (w *batchWriter) close() {
	w.closeOnce.Do(func() { close(w.closeCh) })
}
