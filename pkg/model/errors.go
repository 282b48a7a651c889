package model

import "fmt"

// ValidationError reports a payload that could not be parsed at all.
// Field-level malformation never produces one — normalization absorbs it
// with safe defaults — so this only fires when the enclosing JSON is
// unreadable. Callers log it and keep the existing model state.
type ValidationError struct {
	What string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s payload: %v", e.What, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
