// Package apperr defines the structured error taxonomy shared across the
// relay pipeline. Every failure surfaced between components carries a Code
// so callers can classify it (retryable vs. fatal, per-account vs. global)
// without string matching.
package apperr

import (
	"errors"
	"fmt"
)

// Code identifies a failure class.
type Code string

const (
	// CodeAuthRejected means the OTP panel rejected the account's
	// credentials. Non-retryable; the account is disabled for the run.
	CodeAuthRejected Code = "AUTH_REJECTED"

	// CodeNetwork is a transport-level failure (timeout, connection reset).
	// Retryable with backoff at the call site.
	CodeNetwork Code = "NETWORK"

	// CodeFetch means the OTP panel returned a malformed response or a page
	// of a multi-page fetch failed. The whole result set for the account is
	// discarded; the cursor stays put and the next cycle retries.
	CodeFetch Code = "FETCH"

	// CodeDelivery means a specific group's Telegram send failed after
	// retries. Isolated per group; other groups are unaffected.
	CodeDelivery Code = "DELIVERY"

	// CodeConfig is a missing or invalid required runtime setting. Fatal at
	// startup only.
	CodeConfig Code = "CONFIG"
)

// Error is a coded error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an Error wrapping an existing cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// AuthRejected reports rejected credentials for an account.
func AuthRejected(account string) *Error {
	return New(CodeAuthRejected, fmt.Sprintf("credentials rejected for account %q", account))
}

// Network wraps a transport failure.
func Network(op string, cause error) *Error {
	return Wrap(CodeNetwork, op, cause)
}

// Fetch wraps a malformed-response or pagination failure.
func Fetch(op string, cause error) *Error {
	return Wrap(CodeFetch, op, cause)
}

// Delivery wraps a terminal per-group send failure.
func Delivery(group string, cause error) *Error {
	return Wrap(CodeDelivery, fmt.Sprintf("delivery to group %q failed", group), cause)
}

// Config reports an invalid or missing runtime setting.
func Config(message string) *Error {
	return New(CodeConfig, message)
}

// CodeOf returns the code of err if it is (or wraps) an *Error, or "" if not.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// temporary is implemented by errors that know whether they are transient
// (e.g. an HTTP error that distinguishes 5xx from 4xx).
type temporary interface {
	Temporary() bool
}

// Retryable reports whether err is worth retrying with backoff at the call
// site. Auth rejections and config errors are permanent; fetch errors are
// handled by the next poll cycle rather than an inner retry loop; any error
// that reports itself non-temporary is permanent too. Everything else
// (network, delivery, uncoded) may be transient.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodeAuthRejected, CodeConfig, CodeFetch:
		return false
	}
	var t temporary
	if errors.As(err, &t) {
		return t.Temporary()
	}
	return true
}
