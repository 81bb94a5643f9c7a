package engine

import "errors"

var (
	// ErrNilExpression is returned when a nil definition is enqueued.
	ErrNilExpression = errors.New("expression is nil")

	// ErrStopped is returned when enqueueing after the controller has stopped.
	ErrStopped = errors.New("controller stopped")
)
