// Package domainerrors carries the error taxonomy shared by every service.
//
// Services return *Error values built with New or Wrap. Transport layers map
// the Code to a status without inspecting messages, so messages stay free to
// change. Stores never return these directly; they return sentinel facts from
// pkg/platform/sentinel which services translate.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies the class of a failure.
type Code string

const (
	// Generic codes
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal_error"
	CodeTimeout            Code = "timeout"
	CodeUnavailable        Code = "unavailable"

	// Catalog and membership
	CodeServiceNotFound     Code = "service_not_found"
	CodeInsufficientBalance Code = "insufficient_balance"
	CodeAlreadySubscribed   Code = "already_subscribed"
	CodeNotSubscribed       Code = "not_subscribed"
	CodeSubscriptionExpired Code = "subscription_expired"

	// Vault
	CodeMissingPublicKey Code = "missing_public_key"

	// Governance
	CodeNotMember       Code = "not_member"
	CodeCooldownActive  Code = "cooldown_active"
	CodeVotingClosed    Code = "voting_closed"
	CodeVotingOpen      Code = "voting_open"
	CodeAlreadyVoted    Code = "already_voted"
	CodeAlreadyExecuted Code = "already_executed"

	// Custody
	CodeInsufficientPayment Code = "insufficient_payment"
	CodeReentrantCall       Code = "reentrant_call"
)

// Error is a coded domain error. Err is optional and only used for wrapping.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether the outermost domain error in the chain carries code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias for HasCode kept for handler readability.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the code of the outermost domain error, or CodeInternal for
// anything that is not a domain error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the client-safe message of a domain error.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
