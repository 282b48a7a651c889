package api

import "fmt"

// The executor client sorts failures into three buckets. Transport failures
// are recoverable and retried on the next poll tick or reconnect; conflicts
// mean the server rejected an operator action and the model should stay
// untouched until the next resync; fatal errors mean the session is gone and
// polling/streaming should tear down.

// TransportError wraps a network or 5xx failure. Recoverable.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ConflictError is a 409: the operator action no longer applies (e.g.
// approving a step another operator already resolved).
type ConflictError struct {
	Op      string
	Message string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: conflict: %s", e.Op, e.Message)
}

// FatalSessionError is a 404/410: the session does not exist or is
// permanently gone. The view should enter its terminal unavailable state.
type FatalSessionError struct {
	SessionID string
}

func (e *FatalSessionError) Error() string {
	return fmt.Sprintf("session %s is gone", e.SessionID)
}
