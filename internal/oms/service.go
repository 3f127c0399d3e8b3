package oms

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tradsys/core/internal/numerics"
	"github.com/tradsys/core/internal/oms/persistence"
	"github.com/tradsys/core/internal/orderbook"
)

// Service is the OMS's concurrency boundary: one Service per process owns
// every Order it has created, serializing all mutation behind a single
// mutex (spec §5 notes a sharded-lock design as an acceptable alternative;
// this implementation uses one mutex for every order).
type Service struct {
	mu     sync.RWMutex
	orders map[int64]*Order
	byClientOrderID map[string]int64
	positions map[positionKey]*Position

	seq   numerics.Sequence
	fillSeq numerics.Sequence

	store  persistence.Store
	writer *batchWriter
	logger *zap.Logger
}

type positionKey struct {
	AccountID string
	Symbol    string
}

// Option configures a Service at construction time.
type Option func(*Service)

// WithBatching replaces the default synchronous writer with one that
// buffers up to batchSize records and flushes on size or flushInterval,
// whichever comes first (spec §6's persist_batch_size).
func WithBatching(batchSize int, flushInterval time.Duration) Option {
	return func(s *Service) {
		s.writer = newBatchWriter(s.store, s.logger, batchSize, flushInterval)
	}
}

// NewService constructs an OMS service backed by a persistence store. Pass
// persistence.NewMemoryStore() for tests or ephemeral deployments. Without
// WithBatching, every mutation is persisted synchronously one record at a
// time.
func NewService(store persistence.Store, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		orders:          make(map[int64]*Order),
		byClientOrderID: make(map[string]int64),
		positions:       make(map[positionKey]*Position),
		store:           store,
		logger:          logger,
	}
	s.writer = newBatchWriter(store, logger, 1, 0)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close stops the service's background batch-flush loop, if one is running.
func (s *Service) Close() {
	s.writer.close()
}

// Restore replays every persisted order from the store into memory. Callers
// invoke this once at startup before accepting new traffic (spec §9's
// replay-on-restart requirement).
func (s *Service) Restore(ctx context.Context) error {
	snapshots, err := s.store.LoadAll(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range snapshots {
		o := fromRecord(rec)
		s.orders[o.OrderID] = o
		if o.ClientOrderID != "" {
			s.byClientOrderID[clientKey(o.AccountID, o.ClientOrderID)] = o.OrderID
		}
		if o.OrderID > s.seq.Current() {
			s.seq.SetAtLeast(o.OrderID)
		}
		for _, f := range o.Fills {
			if f.FillID > s.fillSeq.Current() {
				s.fillSeq.SetAtLeast(f.FillID)
			}
			s.applyFillToPositionLocked(o.AccountID, o.Symbol, o.Side, f.Price, f.Qty)
		}
	}
	return nil
}

func clientKey(accountID, clientOrderID string) string { return accountID + ":" + clientOrderID }

// Create admits a new order into the OMS in StatusNew, assigning it a
// monotonic OrderID. It does not submit the order to matching or routing —
// callers call Submit next (spec §4.3's New -> Pending transition happens
// inside Submit once a destination is chosen).
func (s *Service) Create(ctx context.Context, o *Order) (*Order, error) {
	if o.Type == TypeLimit && o.LimitPrice <= 0 {
		return nil, ErrInvalidPrice
	}
	if o.Qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if o.ClientOrderID != "" {
		key := clientKey(o.AccountID, o.ClientOrderID)
		if _, exists := s.byClientOrderID[key]; exists {
			return nil, ErrOrderAlreadyExists
		}
		s.byClientOrderID[key] = 0 // reserved below once OrderID is known
	}

	o.OrderID = s.seq.Next()
	o.Status = StatusNew
	o.RemainingQty = o.Qty
	o.Version = 1
	o.CreatedAt = numerics.NowNanos()
	o.UpdatedAt = o.CreatedAt

	s.orders[o.OrderID] = o
	if o.ClientOrderID != "" {
		s.byClientOrderID[clientKey(o.AccountID, o.ClientOrderID)] = o.OrderID
	}

	if err := s.writer.save(ctx, toRecord(o)); err != nil {
		delete(s.orders, o.OrderID)
		if o.ClientOrderID != "" {
			delete(s.byClientOrderID, clientKey(o.AccountID, o.ClientOrderID))
		}
		s.logger.Error("persist new order failed", zap.Int64("order_id", o.OrderID), zap.Error(err))
		return nil, err
	}
	return o, nil
}

// Submit moves an order from New straight to Submitted in one persisted
// step (the New -> Pending edge is what it validates; StatusPending is never
// stored), marking it live for matching/routing. Rejects with
// ErrInvalidTransition if the order is not in StatusNew.
func (s *Service) Submit(ctx context.Context, orderID int64) (*Order, error) {
	return s.transition(ctx, orderID, func(o *Order) error {
		if !canTransition(o.Status, StatusPending) {
			return ErrInvalidTransition
		}
		o.Status = StatusSubmitted
		return nil
	})
}

// Reject moves an order to StatusRejected, recording reason.
func (s *Service) Reject(ctx context.Context, orderID int64, reason string) (*Order, error) {
	return s.transition(ctx, orderID, func(o *Order) error {
		if !canTransition(o.Status, StatusRejected) {
			return ErrInvalidTransition
		}
		o.Status = StatusRejected
		o.RejectReason = reason
		return nil
	})
}

// Cancel moves a live order to StatusCancelled. No-op error if already
// terminal.
func (s *Service) Cancel(ctx context.Context, orderID int64) (*Order, error) {
	return s.transition(ctx, orderID, func(o *Order) error {
		if o.Status.IsTerminal() {
			return ErrOrderNotActive
		}
		if !canTransition(o.Status, StatusCancelled) {
			return ErrInvalidTransition
		}
		o.Status = StatusCancelled
		return nil
	})
}

// Expire moves a live GTT/Day order to StatusExpired once its deadline has
// passed.
func (s *Service) Expire(ctx context.Context, orderID int64) (*Order, error) {
	return s.transition(ctx, orderID, func(o *Order) error {
		if o.Status.IsTerminal() {
			return ErrOrderNotActive
		}
		if !canTransition(o.Status, StatusExpired) {
			return ErrInvalidTransition
		}
		o.Status = StatusExpired
		return nil
	})
}

// ProcessFill applies one execution to an order: updates FilledQty,
// RemainingQty and the VWAP AvgFillPrice (internal/numerics.WeightedAvg),
// appends the fill record, advances the status (Submitted/PartiallyFilled
// -> PartiallyFilled or Filled), and updates the account/symbol position.
// A fill that would overfill the order is rejected outright rather than
// clamped (spec §7, "overfill" error taxonomy entry) and the order is left
// unmodified.
func (s *Service) ProcessFill(ctx context.Context, orderID int64, price numerics.Price, qty numerics.Qty, venue string, isMaker bool) (*Order, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	var result *Order
	_, err := s.transition(ctx, orderID, func(o *Order) error {
		if o.Status.IsTerminal() {
			return ErrOrderNotActive
		}
		if o.FilledQty+qty > o.Qty {
			return ErrOverfill
		}

		o.AvgFillPrice = numerics.WeightedAvg(o.AvgFillPrice, o.FilledQty, price, qty)
		o.FilledQty += qty
		o.RemainingQty = o.Qty - o.FilledQty

		fill := Fill{
			FillID:  s.fillSeq.Next(),
			OrderID: o.OrderID,
			Price:   price,
			Qty:     qty,
			Venue:   venue,
			IsMaker: isMaker,
			At:      numerics.NowNanos(),
		}
		fill.Seq = fill.FillID
		o.Fills = append(o.Fills, fill)

		if o.RemainingQty == 0 {
			o.Status = StatusFilled
		} else {
			o.Status = StatusPartiallyFilled
		}

		s.applyFillToPositionLocked(o.AccountID, o.Symbol, o.Side, price, qty)
		result = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Amend changes a live order's price and/or quantity. Quantity reductions
// below FilledQty are rejected; increases and price changes are the
// caller's responsibility to re-route through internal/matching or
// internal/router (the OMS only records the new terms).
func (s *Service) Amend(ctx context.Context, a Amendment) (*Order, error) {
	return s.transition(ctx, a.OrderID, func(o *Order) error {
		if o.Status.IsTerminal() {
			return ErrOrderNotActive
		}
		if a.NewQty > 0 {
			if a.NewQty < o.FilledQty {
				return ErrInvalidQuantity
			}
			o.Qty = a.NewQty
			o.RemainingQty = a.NewQty - o.FilledQty
		}
		if a.NewPrice > 0 {
			o.LimitPrice = a.NewPrice
		}
		return nil
	})
}

// Get retrieves an order by ID.
func (s *Service) Get(orderID int64) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

// GetByClientOrderID retrieves an order by (account, client order id).
func (s *Service) GetByClientOrderID(accountID, clientOrderID string) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byClientOrderID[clientKey(accountID, clientOrderID)]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return s.orders[id], nil
}

// Position returns the current net position for an account/symbol pair.
func (s *Service) Position(accountID, symbol string) (Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[positionKey{AccountID: accountID, Symbol: symbol}]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

func (s *Service) transition(ctx context.Context, orderID int64, mutate func(*Order) error) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	backup := *o
	prevStatus := o.Status
	if err := mutate(o); err != nil {
		return nil, err
	}
	o.UpdatedAt = numerics.NowNanos()
	o.Version++

	if err := s.writer.save(ctx, toRecord(o)); err != nil {
		*o = backup
		s.logger.Error("persist order transition failed",
			zap.Int64("order_id", o.OrderID), zap.String("from", string(prevStatus)), zap.String("to", string(o.Status)), zap.Error(err))
		return nil, err
	}
	return o, nil
}

// applyFillToPositionLocked folds one fill into the account/symbol running
// position. Caller must hold s.mu. Buying adds to NetQty, selling subtracts;
// AvgPrice is the volume-weighted cost basis of the currently-held side and
// resets to the fill price whenever the position flips through zero.
func (s *Service) applyFillToPositionLocked(accountID, symbol string, side orderbook.Side, price numerics.Price, qty numerics.Qty) {
	key := positionKey{AccountID: accountID, Symbol: symbol}
	p, ok := s.positions[key]
	if !ok {
		p = &Position{AccountID: accountID, Symbol: symbol}
		s.positions[key] = p
	}

	signedQty := qty
	if side == orderbook.SideSell {
		signedQty = -qty
	}
	newNet := p.NetQty + signedQty

	switch {
	case p.NetQty == 0:
		p.AvgPrice = price
	case sign(newNet) == sign(p.NetQty) && sign(signedQty) == sign(p.NetQty):
		p.AvgPrice = numerics.WeightedAvg(p.AvgPrice, abs(p.NetQty), price, abs(signedQty))
	case newNet != 0 && sign(newNet) != sign(p.NetQty):
		p.AvgPrice = price
	}
	p.NetQty = newNet
}

func sign(v numerics.Qty) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func abs(v numerics.Qty) numerics.Qty {
	if v < 0 {
		return -v
	}
	return v
}
