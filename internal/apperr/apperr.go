// Package apperr defines the domain error taxonomy. Every expected failure
// carries a stable machine code and the HTTP status the transport layer
// should answer with; anything that is not an *Error is treated as an
// infrastructure failure.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced to callers.
const (
	CodeOwnerNotFound        = "OWNER_NOT_FOUND"
	CodeCardNotFound         = "CARD_NOT_FOUND"
	CodeInvalidTransition    = "INVALID_TRANSITION"
	CodeInvalidAmount        = "INVALID_AMOUNT"
	CodeInvalidPagination    = "INVALID_PAGINATION"
	CodeSameCardTransfer     = "SAME_CARD_TRANSFER"
	CodeNotOwner             = "NOT_OWNER"
	CodeCardNotActive        = "CARD_NOT_ACTIVE"
	CodeInsufficientFunds    = "INSUFFICIENT_FUNDS"
	CodeNumberSpaceExhausted = "NUMBER_SPACE_EXHAUSTED"
	CodeTransferBusy         = "TRANSFER_BUSY"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeForbidden            = "FORBIDDEN"
	CodeUsernameExists       = "USERNAME_ALREADY_EXISTS"
	CodePhoneExists          = "PHONE_ALREADY_EXISTS"
	CodeInvalidAdminCode     = "INVALID_ADMIN_CODE"
	CodeInvalidCredentials   = "INVALID_CREDENTIALS"
	CodeCryptoFailure        = "CRYPTO_FAILURE"
)

// Error is a business failure the caller can act on.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds an error with an explicit HTTP status.
func New(status int, code, format string, args ...any) *Error {
	return &Error{Status: status, Code: code, Message: fmt.Sprintf(format, args...)}
}

// NotFound is a 404 error.
func NotFound(code, format string, args ...any) *Error {
	return New(http.StatusNotFound, code, format, args...)
}

// BadRequest is a 400 error.
func BadRequest(code, format string, args ...any) *Error {
	return New(http.StatusBadRequest, code, format, args...)
}

// Conflict is a 409 error.
func Conflict(code, format string, args ...any) *Error {
	return New(http.StatusConflict, code, format, args...)
}

// Unauthorized is a 401 error.
func Unauthorized(format string, args ...any) *Error {
	return New(http.StatusUnauthorized, CodeUnauthorized, format, args...)
}

// CodeOf extracts the error code, or "" for non-domain errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err is a domain error with the given code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}
