package dto

import (
	"net/http"
	"strings"
)

// Transport-level error codes. Domain errors keep their own codes
// (LEDGER_NOT_FOUND, INVALID_AMOUNT, ...) in responses.
const (
	ErrCodeInternal     = "INTERNAL_ERROR"
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeInvalidJSON  = "INVALID_JSON"
	ErrCodeInvalidID    = "INVALID_ID"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeForbidden    = "FORBIDDEN"
	ErrCodeTokenExpired = "TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "TOKEN_INVALID"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeBodyTooLarge = "REQUEST_TOO_LARGE"
	ErrCodeTimeout      = "REQUEST_TIMEOUT"
	ErrCodeUnavailable  = "SERVICE_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes whose status cannot be derived from
// their name.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:     http.StatusInternalServerError,
	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeRateLimited:  http.StatusTooManyRequests,
	ErrCodeBodyTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeTimeout:      http.StatusGatewayTimeout,
	ErrCodeUnavailable:  http.StatusServiceUnavailable,

	// Conflicts
	"ALREADY_EXISTS":        http.StatusConflict,
	"ACTIVE_LEDGER_EXISTS":  http.StatusConflict,
	"DUPLICATE_TRANSACTION": http.StatusConflict,
	"VERSION_CONFLICT":      http.StatusConflict,
	"CONCURRENCY_CONFLICT":  http.StatusConflict,

	// Requests that are well formed but not allowed in the ledger's state
	"INVALID_STATE":             http.StatusUnprocessableEntity,
	"INVALID_STATUS_TRANSITION": http.StatusUnprocessableEntity,
	"LEDGER_NOT_ACTIVE":         http.StatusUnprocessableEntity,
	"LEDGER_CLOSED":             http.StatusUnprocessableEntity,
	"LEDGER_UNBALANCED":         http.StatusUnprocessableEntity,

	"DOCUMENT_CONTENT_UNAVAILABLE": http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Codes ending in _NOT_FOUND map to 404 and codes starting with INVALID_ map
// to 400. Anything else unknown is a 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	switch {
	case code == ErrCodeNotFound || strings.HasSuffix(code, "_NOT_FOUND"):
		return http.StatusNotFound
	case strings.HasPrefix(code, "INVALID_"):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// LegacyErrorCodeMapping maps older ERR_-prefixed codes still emitted by some
// clients' fixtures to the current codes.
var LegacyErrorCodeMapping = map[string]string{
	"ERR_INTERNAL":             ErrCodeInternal,
	"ERR_UNKNOWN":              ErrCodeInternal,
	"ERR_VALIDATION":           ErrCodeValidation,
	"ERR_BAD_REQUEST":          ErrCodeBadRequest,
	"ERR_INVALID_INPUT":        "INVALID_INPUT",
	"ERR_INVALID_JSON":         ErrCodeInvalidJSON,
	"ERR_UNAUTHORIZED":         ErrCodeUnauthorized,
	"ERR_FORBIDDEN":            ErrCodeForbidden,
	"ERR_TOKEN_EXPIRED":        ErrCodeTokenExpired,
	"ERR_TOKEN_INVALID":        ErrCodeTokenInvalid,
	"ERR_NOT_FOUND":            ErrCodeNotFound,
	"ERR_ALREADY_EXISTS":       "ALREADY_EXISTS",
	"ERR_CONCURRENCY_CONFLICT": "CONCURRENCY_CONFLICT",
	"ERR_INVALID_STATE":        "INVALID_STATE",
	"ERR_RATE_LIMITED":         ErrCodeRateLimited,
}

// NormalizeErrorCode converts a legacy error code to the current format.
// An empty code becomes INTERNAL_ERROR; other codes are returned as-is.
func NormalizeErrorCode(code string) string {
	if code == "" {
		return ErrCodeInternal
	}
	if newCode, ok := LegacyErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
