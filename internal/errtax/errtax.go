// Package errtax is the error taxonomy from spec.md §7: a small set of
// named failure kinds, each carrying a stable Code, an HTTP status usable by
// the dashboard gateway, and an optional detail map. It is grounded on the
// teacher's infrastructure/errors package (ServiceError / New / Wrap /
// WithDetails), generalised from blockchain/TEE error families to the
// orchestrator's own taxonomy.
package errtax

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies one failure kind. Codes are stable across releases so log
// aggregation and dashboard filters can key on them.
type Code string

const (
	CodeConfig            Code = "CONFIG_1001"
	CodeTransientBrowser   Code = "BROWSER_2001"
	CodeLoginRecoverable   Code = "LOGIN_3001"
	CodeLoginFatal         Code = "LOGIN_3002"
	CodeActivity           Code = "ACTIVITY_4001"
	CodeSecurityIncident   Code = "SECURITY_5001"
	CodeBanHard            Code = "BAN_6001"
	CodeBanSoft            Code = "BAN_6002"
	CodeBanWarning         Code = "BAN_6003"
	CodeNotification       Code = "NOTIFY_7001"
)

// Error is the single error type raised by every component in this module.
// Fields mirror infrastructure/errors.ServiceError.
type Error struct {
	Code       Code
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	Err        error

	// Recoverable marks errors the caller may retry locally (context
	// rebuild, re-observation) rather than surface as terminal.
	Recoverable bool
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetails attaches a key/value pair and returns the same *Error for
// chaining, matching the teacher's fluent builder style.
func (e *Error) WithDetails(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func New(code Code, message string, httpStatus int) *Error {
	return &Error{Code: code, Message: message, HTTPStatus: httpStatus}
}

func Wrap(code Code, message string, httpStatus int, err error) *Error {
	return &Error{Code: code, Message: message, HTTPStatus: httpStatus, Err: err}
}

// --- ConfigError: fatal at startup only (spec.md §7) ---

func ConfigError(message string, err error) *Error {
	return Wrap(CodeConfig, message, http.StatusInternalServerError, err)
}

// --- TransientBrowserError: page/context closed, navigation timeout ---

func TransientBrowserError(operation string, err error) *Error {
	return Wrap(CodeTransientBrowser, "browser session unavailable", http.StatusServiceUnavailable, err).
		WithDetails("operation", operation)
}

// --- LoginRecoverableError: prompt-dismissal failed, KMSI missing ---

func LoginRecoverableError(reason string, err error) *Error {
	e := Wrap(CodeLoginRecoverable, "login step recoverable", http.StatusConflict, err).
		WithDetails("reason", reason)
	e.Recoverable = true
	return e
}

// --- LoginFatalError: blocked phrase detected, 2FA required without secret ---

func LoginFatalError(reason string) *Error {
	return New(CodeLoginFatal, "login failed", http.StatusUnauthorized).
		WithDetails("reason", reason)
}

// --- ActivityError: handler-level failure, unit marked failed, pipeline continues ---

func ActivityError(unitID string, err error) *Error {
	return Wrap(CodeActivity, "activity handler failed", http.StatusOK, err).
		WithDetails("unit_id", unitID)
}

// --- SecurityIncident: engages global standby ---

func SecurityIncident(kind string, details []string, docsURL string) *Error {
	e := New(CodeSecurityIncident, "security incident: "+kind, http.StatusForbidden).
		WithDetails("kind", kind).
		WithDetails("docs_url", docsURL)
	if len(details) > 0 {
		e.WithDetails("details", details)
	}
	return e
}

// --- BanVerdict: hard-ban terminal, soft-ban/warning throttle ---

func BanHard(reason string) *Error {
	return New(CodeBanHard, "account banned", http.StatusForbidden).WithDetails("reason", reason)
}

func BanSoft(reason string) *Error {
	return New(CodeBanSoft, "account soft-banned", http.StatusTooManyRequests).WithDetails("reason", reason)
}

func BanWarning(reason string) *Error {
	return New(CodeBanWarning, "account warning", http.StatusOK).WithDetails("reason", reason)
}

// --- NotificationError: swallowed by the caller ---

func NotificationError(transport string, err error) *Error {
	return Wrap(CodeNotification, "notification delivery failed", http.StatusBadGateway, err).
		WithDetails("transport", transport)
}

// As reports whether err (or one it wraps) is an *Error, matching the
// teacher's errors.As-based ServiceError helpers.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// HTTPStatus returns the HTTP status for err, defaulting to 500 for errors
// outside this taxonomy.
func HTTPStatus(err error) int {
	if e, ok := As(err); ok {
		return e.HTTPStatus
	}
	return http.StatusInternalServerError
}
