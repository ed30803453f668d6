// Package apperr defines the error kinds surfaced by the authorization,
// workflow and SLA core, and how they map onto HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindTenantReadOnly
	KindInvalidTransition
	KindRoleNotPermitted
)

const CodeTenantReadOnly = "TENANT_READ_ONLY"

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "INVALID_INPUT"
	case KindUnauthenticated:
		return "UNAUTHENTICATED"
	case KindForbidden:
		return "FORBIDDEN"
	case KindNotFound:
		return "NOT_FOUND"
	case KindTenantReadOnly:
		return CodeTenantReadOnly
	case KindInvalidTransition:
		return "INVALID_TRANSITION"
	case KindRoleNotPermitted:
		return "ROLE_NOT_PERMITTED"
	default:
		return "INTERNAL"
	}
}

// Status returns the HTTP status for the kind.
func (k Kind) Status() int {
	switch k {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden, KindTenantReadOnly, KindRoleNotPermitted:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidTransition:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified application error. Message is safe to show to
// clients; Err is the underlying cause and is only ever logged.
type Error struct {
	Kind       Kind
	Message    string
	Code       string
	Permission string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind, so errors.Is(err, apperr.ErrForbidden) works for any
// forbidden error regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// ResponseCode is the machine readable code placed in error bodies.
func (e *Error) ResponseCode() string {
	if e.Code != "" {
		return e.Code
	}
	return e.Kind.String()
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}
	ErrUnauthenticated   = &Error{Kind: KindUnauthenticated}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrTenantReadOnly    = &Error{Kind: KindTenantReadOnly}
	ErrInternal          = &Error{Kind: KindInternal}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrRoleNotPermitted  = &Error{Kind: KindRoleNotPermitted}
)

func InvalidInput(msg string) *Error {
	return &Error{Kind: KindInvalidInput, Message: msg}
}

func Unauthenticated(msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

// Forbidden carries the permission key that was required, if any.
func Forbidden(msg, permission string) *Error {
	return &Error{Kind: KindForbidden, Message: msg, Permission: permission}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func TenantReadOnly() *Error {
	return &Error{
		Kind:    KindTenantReadOnly,
		Message: "Tenant is in read-only mode",
		Code:    CodeTenantReadOnly,
	}
}

// Internal hides cause from clients behind a generic message.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: "Internal server error", Err: cause}
}

func InvalidTransition(from, to string) *Error {
	return &Error{
		Kind:    KindInvalidTransition,
		Message: fmt.Sprintf("Transition from %s to %s is not allowed", from, to),
	}
}

func RoleNotPermitted(role, from, to string) *Error {
	return &Error{
		Kind:    KindRoleNotPermitted,
		Message: fmt.Sprintf("Role %q may not move a work order from %s to %s", role, from, to),
	}
}

// As extracts an *Error from err, wrapping unclassified errors as Internal.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}
