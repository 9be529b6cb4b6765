package softswitch

import (
	"context"
	"errors"
	"fmt"
)

// Error codes for softswitch client operations (§4.1 failure semantics).
const (
	ErrCodeProviderRejected = "provider_rejected"
	ErrCodeNoTrunk          = "no_trunk"
	ErrCodeTimeout          = "timeout"
	ErrCodeNotConnected     = "not_connected"
	ErrCodeMalformedFraming = "malformed_framing"
	ErrCodeClosed           = "closed"
	ErrCodeInternalError    = "internal_error"
	ErrCodeProviderDegraded = "provider_degraded"
)

// ClientError is the softswitch client's package-scoped error type.
type ClientError struct {
	Op      string
	Code    string
	Err     error
	Message string
}

func (e *ClientError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("softswitch %s: %s (code: %s)", e.Op, e.Message, e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("softswitch %s: %v (code: %s)", e.Op, e.Err, e.Code)
	}
	return fmt.Sprintf("softswitch %s: unknown error (code: %s)", e.Op, e.Code)
}

func (e *ClientError) Unwrap() error { return e.Err }

// NewClientError builds a ClientError.
func NewClientError(op, code string, err error) *ClientError {
	return &ClientError{Op: op, Code: code, Err: err}
}

// NewClientErrorWithMessage builds a ClientError carrying a human message.
func NewClientErrorWithMessage(op, code, message string, err error) *ClientError {
	return &ClientError{Op: op, Code: code, Message: message, Err: err}
}

// IsClientError reports whether err is (or wraps) a *ClientError.
func IsClientError(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce)
}

// ClientErrorCode extracts the code from a ClientError, or "" if err isn't one.
func ClientErrorCode(err error) string {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsRetryableError reports whether the client should reconnect/retry rather
// than surface err to the caller as terminal.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch ClientErrorCode(err) {
	case ErrCodeNotConnected, ErrCodeTimeout, ErrCodeMalformedFraming:
		return true
	case ErrCodeProviderRejected, ErrCodeNoTrunk, ErrCodeClosed, ErrCodeProviderDegraded:
		return false
	default:
		return true
	}
}

// WrapError wraps err with op, preserving an existing ClientError's code.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *ClientError
	if errors.As(err, &ce) {
		ce.Op = op
		return ce
	}
	code := ErrCodeInternalError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = ErrCodeTimeout
	}
	return NewClientError(op, code, err)
}
