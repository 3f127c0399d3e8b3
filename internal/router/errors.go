package router

import "errors"

var (
	// ErrUnknownAlgo is returned when a ParentOrder names an AlgoType with
	// no registered Algorithm.
	ErrUnknownAlgo = errors.New("router: unknown algorithm")
	// ErrUnknownParent is returned when operating on a parent order ID the
	// router has no record of.
	ErrUnknownParent = errors.New("router: unknown parent order")
)
