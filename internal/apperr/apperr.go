package apperr

import (
	"fmt"
	"net/http"
)

// Error is a domain error that carries the HTTP status it translates to.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

// AuthMissing reports a request that requires authentication but carried none.
func AuthMissing() *Error {
	return newError(http.StatusUnauthorized, "AUTH_MISSING", "Authentication required")
}

// AuthMalformed reports an Authorization header that is not "Bearer <token>".
func AuthMalformed() *Error {
	return newError(http.StatusUnauthorized, "AUTH_MALFORMED", "Invalid authorization header format")
}

// TokenExpired reports a bearer token past its expiry.
func TokenExpired() *Error {
	return newError(http.StatusUnauthorized, "TOKEN_EXPIRED", "Token has expired")
}

// InvalidToken reports any other token verification failure.
func InvalidToken() *Error {
	return newError(http.StatusUnauthorized, "INVALID_TOKEN", "Invalid token")
}

// UnmappableIdentity reports a verified token without a usable email claim.
func UnmappableIdentity() *Error {
	return newError(http.StatusUnauthorized, "UNMAPPABLE_IDENTITY", "Token does not carry an email claim")
}

// Forbidden reports a failed authorization check.
func Forbidden(message string) *Error {
	if message == "" {
		message = "You do not have access to this trip"
	}
	return newError(http.StatusForbidden, "FORBIDDEN", message)
}

// WrongIdentity reports a redemption attempt by the wrong account.
func WrongIdentity(message string) *Error {
	return newError(http.StatusForbidden, "WRONG_IDENTITY", message)
}

// NotFound reports a missing trip, token or link.
func NotFound(message string) *Error {
	if message == "" {
		message = "Not found"
	}
	return newError(http.StatusNotFound, "NOT_FOUND", message)
}

// AlreadyMember reports an invitation for an email that is already active.
func AlreadyMember() *Error {
	return newError(http.StatusBadRequest, "ALREADY_MEMBER", "This user is already a collaborator on the trip")
}

// AlreadyInvited reports a still-pending invitation for the same email.
func AlreadyInvited() *Error {
	return newError(http.StatusBadRequest, "ALREADY_INVITED", "An invitation for this email is already pending")
}

// Validation reports a malformed or incomplete request body.
func Validation(message string) *Error {
	return newError(http.StatusBadRequest, "VALIDATION_FAILED", message)
}

// TransientStorage reports a retryable storage failure with no partial mutation.
func TransientStorage() *Error {
	return newError(http.StatusServiceUnavailable, "TRANSIENT_STORAGE", "Temporary storage failure, please retry")
}
