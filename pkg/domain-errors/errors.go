// Package dErrors provides code-based domain errors. Services wrap lower-layer
// failures into one of these before they reach transport, so handlers can map
// errors to HTTP statuses and stable reason codes without inspecting internals.
package dErrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error. Codes are stable API surface: they are the
// reason strings returned to callers, so renaming one is a breaking change.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeInvalidBeneficiary Code = "invalid_beneficiary"
	CodeLivenessRequired   Code = "liveness_required"
	CodeNotFound           Code = "not_found"
	CodeRateLimited        Code = "rate_limited"
	CodeNotEligible        Code = "not_eligible"
	CodeLedgerRejected     Code = "ledger_rejected"
	CodeIndeterminate      Code = "indeterminate"
	CodeUnavailable        Code = "unavailable"
	CodeInternal           Code = "internal"
)

// Error is a domain error with a classification code and a safe message.
// The wrapped cause (if any) is for logs only and must never reach a client.
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

func (e *Error) Unwrap() error { return e.cause }

// New creates a domain error with no underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and safe message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from an error chain, defaulting to CodeInternal
// for anything that is not a domain error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to its HTTP status. Ledger-side failures map to
// 502 because the upstream ledger, not this service, rejected or lost the
// transaction.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidBeneficiary, CodeLivenessRequired, CodeNotEligible:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeLedgerRejected, CodeIndeterminate:
		return http.StatusBadGateway
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
