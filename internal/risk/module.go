package risk

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tradsys/core/internal/config"
	"github.com/tradsys/core/internal/numerics"
)

// NewValidatorFromConfig builds the default account Limits from the
// engine's risk configuration (spec §6: max_position_size,
// max_open_positions, max_loss_per_trade, max_daily_loss,
// min_margin_buffer), converting the human-facing decimals to fixed-point
// at this boundary.
func NewValidatorFromConfig(cfg *config.Config, logger *zap.Logger) *Validator {
	limits := Limits{
		MaxPositionSize:  numerics.QtyFromFloat(cfg.Risk.MaxPositionSize),
		MaxOpenPositions: cfg.Risk.MaxOpenPositions,
		MaxLossPerTrade:  numerics.AmountFromFloat(cfg.Risk.MaxLossPerTrade),
		MaxDailyLoss:     numerics.AmountFromFloat(cfg.Risk.MaxDailyLoss),
		MinMarginBuffer:  numerics.AmountFromFloat(cfg.Risk.MinMarginBuffer),
	}
	return NewValidator(limits, logger)
}

// Module provides the pre-submit risk Validator for fx.
var Module = fx.Options(
	fx.Provide(NewValidatorFromConfig),
)
