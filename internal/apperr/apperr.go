// Package apperr defines the engine's machine-readable error taxonomy (spec
// §7): every rejection the gateway returns carries a Kind alongside its
// human-readable message, so a caller can branch on the failure without
// string-matching it. EngineError is grounded on the teacher's
// services/common.ServiceError wrapper (code + message + structured details
// + cause), narrowed to the fixed Kind enum this engine's error table uses
// in place of ServiceError's open-ended string code.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error category (spec §7's error-kind table).
// Values match the table's names verbatim so a client need not translate
// between the spec's vocabulary and the wire value.
type Kind string

const (
	KindValidation            Kind = "Validation"
	KindOrderNotFound         Kind = "OrderNotFound"
	KindInvalidState          Kind = "InvalidState"
	KindCapacityExceeded      Kind = "CapacityExceeded"
	KindRiskCheckFailed       Kind = "RiskCheckFailed"
	KindNoVenuesAvailable     Kind = "NoVenuesAvailable"
	KindVenueNotConnected     Kind = "VenueNotConnected"
	KindMarketDataUnavailable Kind = "MarketDataUnavailable"
	KindPersistenceError      Kind = "PersistenceError"
	KindOverfillDetected      Kind = "OverfillDetected"
)

// EngineError wraps a failure with a machine-readable Kind, a human-readable
// Message, optional structured Details, and the underlying Cause (spec §7:
// "every rejection carries a machine-readable kind plus a human-readable
// message; no failure is silent").
type EngineError struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
	Cause   error
}

func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes Cause to errors.Is/errors.As so sentinel checks against the
// wrapped error still work through an EngineError.
func (e *EngineError) Unwrap() error { return e.Cause }

// WithDetail attaches one structured detail and returns the receiver.
func (e *EngineError) WithDetail(key string, value interface{}) *EngineError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New constructs an EngineError with no cause.
func New(kind Kind, message string) *EngineError {
	return &EngineError{Kind: kind, Message: message}
}

// Wrap constructs an EngineError carrying cause as its Error()/Unwrap target.
// If cause is already an *EngineError it is returned unchanged — wrapping is
// idempotent, so a boundary that re-wraps an error from a lower boundary
// doesn't lose the original Kind.
func Wrap(kind Kind, message string, cause error) *EngineError {
	var existing *EngineError
	if errors.As(cause, &existing) {
		return existing
	}
	return &EngineError{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind carried by err. An error that never passed
// through Wrap/New has no assigned kind; it is reported as InvalidState
// rather than a kind that implies it's safe to retry or ignore.
func KindOf(err error) Kind {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return KindInvalidState
}
