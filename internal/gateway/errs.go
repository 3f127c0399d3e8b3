package gateway

import (
	"errors"

	"github.com/tradsys/core/internal/apperr"
	"github.com/tradsys/core/internal/oms"
)

// classifyErr maps a lower-layer sentinel to the machine-readable Kind the
// gateway's response carries (spec §7's error table). An error that matches
// none of these falls back to apperr.KindOf's own default.
func classifyErr(err error) apperr.Kind {
	switch {
	case errors.Is(err, oms.ErrOrderNotFound):
		return apperr.KindOrderNotFound
	case errors.Is(err, oms.ErrPersistence):
		return apperr.KindPersistenceError
	case errors.Is(err, oms.ErrOverfill):
		return apperr.KindOverfillDetected
	case errors.Is(err, oms.ErrOrderNotActive), errors.Is(err, oms.ErrInvalidTransition):
		return apperr.KindInvalidState
	case errors.Is(err, oms.ErrInvalidQuantity), errors.Is(err, oms.ErrInvalidPrice), errors.Is(err, oms.ErrOrderAlreadyExists):
		return apperr.KindValidation
	default:
		return apperr.KindInvalidState
	}
}

// wrapEngineErr tags err with its Kind unless it already carries one (e.g.
// it was produced by a call that already wrapped it with a more specific
// Kind, like KindRiskCheckFailed or KindNoVenuesAvailable).
func wrapEngineErr(err error) error {
	if err == nil {
		return nil
	}
	return apperr.Wrap(classifyErr(err), err.Error(), err)
}
