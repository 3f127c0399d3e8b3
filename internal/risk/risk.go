// Package risk implements the pre-submit risk limits that internal/gateway's
// Engine consults after the OMS creates an order and before it is submitted
// (spec §6 configuration keys: min_margin_buffer,
// max_daily_loss, max_loss_per_trade, max_position_size, max_open_positions).
package risk

import (
	"errors"
	"sync"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/tradsys/core/internal/numerics"
	"github.com/tradsys/core/internal/orderbook"
)

// Errors returned by Check, matching the semantic error kinds of spec §7
// rather than introducing new ones: a failed risk check is a rejection.
var (
	ErrMaxPositionSize  = errors.New("risk: order would exceed max_position_size")
	ErrMaxOpenPositions = errors.New("risk: account at max_open_positions")
	ErrMaxLossPerTrade  = errors.New("risk: order exceeds max_loss_per_trade")
	ErrMaxDailyLoss     = errors.New("risk: account has exceeded max_daily_loss")
	ErrMarginBuffer     = errors.New("risk: order would breach min_margin_buffer")
)

// Limits bundles one account's configured risk limits. Zero value for any
// field means "unbounded" for that dimension.
type Limits struct {
	MaxPositionSize  numerics.Qty
	MaxOpenPositions int
	MaxLossPerTrade  numerics.Amount
	MaxDailyLoss     numerics.Amount
	MinMarginBuffer  numerics.Amount
}

// AccountState is the mutable, per-account bookkeeping the Validator needs
// to evaluate a limit: current net positions (by symbol) and realized P&L
// for the trading day. The OMS (or a position/PnL service) keeps this
// current; Validator only reads it.
type AccountState struct {
	NetPositions map[string]numerics.Qty
	DailyPnL     numerics.Amount
	MarginUsed   numerics.Amount
	MarginEquity numerics.Amount
}

// Validator evaluates a prospective order against an account's configured
// Limits. It holds no position/PnL state of its own — RiskLimitsManager in
// the teacher's original design re-derived state centrally too, but here
// the OMS is the single owner of positions (spec §5 ownership rules), so
// Validator is handed an AccountState snapshot per call instead of
// maintaining a shadow copy that could drift from the OMS's.
type Validator struct {
	logger *zap.Logger

	mu     sync.RWMutex
	limits map[string]Limits // accountID -> limits

	// limitCache holds the default Limits, used for any account without an
	// entry in limits; limitsFor consults limits (under mu.RLock) first.
	limitCache *cache.Cache
}

// NewValidator constructs a Validator with no per-account overrides; callers
// register accounts with SetLimits, falling back to defaultLimits otherwise.
func NewValidator(defaultLimits Limits, logger *zap.Logger) *Validator {
	v := &Validator{
		logger:     logger,
		limits:     make(map[string]Limits),
		limitCache: cache.New(cache.NoExpiration, cache.NoExpiration),
	}
	v.limitCache.Set("__default__", defaultLimits, cache.NoExpiration)
	return v
}

// SetLimits overrides the limits for one account.
func (v *Validator) SetLimits(accountID string, limits Limits) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.limits[accountID] = limits
	v.logger.Info("risk: limits updated", zap.String("account_id", accountID))
}

func (v *Validator) limitsFor(accountID string) Limits {
	v.mu.RLock()
	l, ok := v.limits[accountID]
	v.mu.RUnlock()
	if ok {
		return l
	}
	def, _ := v.limitCache.Get("__default__")
	return def.(Limits)
}

// Check evaluates one prospective order. estimatedLoss is the caller's
// worst-case notional loss estimate for the order (e.g. qty * limit_price
// for a buy, or the stop distance for a stop order); passing zero skips the
// per-trade loss check. openPositionCount is the account's current count of
// symbols with a non-zero net position, evaluated before this order.
func (v *Validator) Check(accountID, symbol string, side orderbook.Side, qty numerics.Qty, estimatedLoss numerics.Amount, state AccountState, openPositionCount int) error {
	limits := v.limitsFor(accountID)

	if limits.MaxDailyLoss != 0 && state.DailyPnL < 0 && numerics.Amount(-state.DailyPnL) >= limits.MaxDailyLoss {
		return ErrMaxDailyLoss
	}

	if limits.MaxLossPerTrade != 0 && estimatedLoss >= limits.MaxLossPerTrade {
		return ErrMaxLossPerTrade
	}

	// An account with no margin figures (both zero) is not margin-tracked,
	// so the buffer check does not apply to it.
	if limits.MinMarginBuffer != 0 && (state.MarginEquity != 0 || state.MarginUsed != 0) {
		buffer := state.MarginEquity - state.MarginUsed
		if buffer < limits.MinMarginBuffer {
			return ErrMarginBuffer
		}
	}

	if limits.MaxPositionSize != 0 {
		current := state.NetPositions[symbol]
		prospective := projectedPosition(current, side, qty)
		// An order that shrinks an already-oversized position is allowed.
		if abs(prospective) > limits.MaxPositionSize && abs(prospective) > abs(current) {
			return ErrMaxPositionSize
		}
	}

	if limits.MaxOpenPositions != 0 {
		_, alreadyOpen := state.NetPositions[symbol]
		if !alreadyOpen && openPositionCount >= limits.MaxOpenPositions {
			return ErrMaxOpenPositions
		}
	}

	return nil
}

func projectedPosition(current numerics.Qty, side orderbook.Side, qty numerics.Qty) numerics.Qty {
	if side == orderbook.SideSell {
		return current - qty
	}
	return current + qty
}

func abs(q numerics.Qty) numerics.Qty {
	if q < 0 {
		return -q
	}
	return q
}
