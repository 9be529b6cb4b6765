package callcontroller

import (
	"errors"
	"fmt"
)

// Error codes for Call Controller operations (§7).
const (
	ErrCodeOriginateFailed = "originate_failed"
	ErrCodeScenarioRouting = "scenario_routing"
	ErrCodePersistence     = "persistence_error"
	ErrCodeInternalError   = "internal_error"
)

// CallError is the Call Controller's package-scoped error type.
type CallError struct {
	Op      string
	Code    string
	CallID  string
	Err     error
	Message string
}

func (e *CallError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("callcontroller %s [%s]: %s (code: %s)", e.Op, e.CallID, e.Message, e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("callcontroller %s [%s]: %v (code: %s)", e.Op, e.CallID, e.Err, e.Code)
	}
	return fmt.Sprintf("callcontroller %s [%s]: unknown error (code: %s)", e.Op, e.CallID, e.Code)
}

func (e *CallError) Unwrap() error { return e.Err }

// NewCallError builds a CallError.
func NewCallError(op, code, callID string, err error) *CallError {
	return &CallError{Op: op, Code: code, CallID: callID, Err: err}
}

// IsCallError reports whether err is (or wraps) a *CallError.
func IsCallError(err error) bool {
	var ce *CallError
	return errors.As(err, &ce)
}

// WrapError wraps err with op/callID, preserving an existing CallError's code.
func WrapError(op, callID string, err error) error {
	if err == nil {
		return nil
	}
	var ce *CallError
	if errors.As(err, &ce) {
		ce.Op = op
		return ce
	}
	return NewCallError(op, ErrCodeInternalError, callID, err)
}
