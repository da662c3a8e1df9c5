// Package errors provides standardized error handling for the NovaMarket service.
package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents a standardized error code for the NovaMarket service.
type ErrorCode string

const (
	// Validation errors
	NOVA_VALIDATION    ErrorCode = "NOVA_VALIDATION"    // General validation error
	NOVA_SCHEMA_REJECT ErrorCode = "NOVA_SCHEMA_REJECT" // Schema validation failed
	NOVA_BAD_REQUEST   ErrorCode = "NOVA_BAD_REQUEST"   // Bad request

	// Authentication/Authorization errors
	NOVA_AUTHZ         ErrorCode = "NOVA_AUTHZ"         // Authorization failed
	NOVA_AUTHN         ErrorCode = "NOVA_AUTHN"         // Authentication failed
	NOVA_JWT_INVALID   ErrorCode = "NOVA_JWT_INVALID"   // Invalid JWT
	NOVA_JWT_EXPIRED   ErrorCode = "NOVA_JWT_EXPIRED"   // Expired JWT
	NOVA_JWT_MALFORMED ErrorCode = "NOVA_JWT_MALFORMED" // Malformed JWT
	NOVA_PERMISSION    ErrorCode = "NOVA_PERMISSION"    // Storage policy rejected the write

	// Resource errors
	NOVA_NOT_FOUND  ErrorCode = "NOVA_NOT_FOUND"  // Resource not found
	NOVA_CONFLICT   ErrorCode = "NOVA_CONFLICT"   // Resource conflict
	NOVA_MEDIA_SIZE ErrorCode = "NOVA_MEDIA_SIZE" // Upload size limit exceeded
	NOVA_MEDIA_TYPE ErrorCode = "NOVA_MEDIA_TYPE" // Upload type not allowed

	// Rate limiting
	NOVA_RATE_LIMIT ErrorCode = "NOVA_RATE_LIMIT" // Rate limit exceeded

	// Server errors
	NOVA_INTERNAL        ErrorCode = "NOVA_INTERNAL"        // Internal server error
	NOVA_UNAVAILABLE     ErrorCode = "NOVA_UNAVAILABLE"     // Backing service unavailable
	NOVA_NOT_IMPLEMENTED ErrorCode = "NOVA_NOT_IMPLEMENTED" // Not implemented
)

// Error represents a standardized error response.
type Error struct {
	Code          ErrorCode   `json:"code"`
	Message       string      `json:"message"`
	CorrelationID string      `json:"correlationId"`
	Details       interface{} `json:"details,omitempty"`
	HTTPStatus    int         `json:"-"`
}

// New creates a new Error with the specified code and message.
func New(code ErrorCode, message string, correlationID string) *Error {
	return &Error{
		Code:          code,
		Message:       message,
		CorrelationID: correlationID,
		HTTPStatus:    httpStatusCodeForCode(code),
	}
}

// NewWithDetails creates a new Error with the specified code, message, and details.
func NewWithDetails(code ErrorCode, message string, correlationID string, details interface{}) *Error {
	return &Error{
		Code:          code,
		Message:       message,
		CorrelationID: correlationID,
		Details:       details,
		HTTPStatus:    httpStatusCodeForCode(code),
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("%s: %s (details: %v)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// httpStatusCodeForCode maps error codes to HTTP status codes.
func httpStatusCodeForCode(code ErrorCode) int {
	switch code {
	case NOVA_VALIDATION, NOVA_SCHEMA_REJECT, NOVA_BAD_REQUEST:
		return http.StatusBadRequest
	case NOVA_AUTHZ, NOVA_PERMISSION:
		return http.StatusForbidden
	case NOVA_AUTHN, NOVA_JWT_INVALID, NOVA_JWT_EXPIRED, NOVA_JWT_MALFORMED:
		return http.StatusUnauthorized
	case NOVA_NOT_FOUND:
		return http.StatusNotFound
	case NOVA_CONFLICT:
		return http.StatusConflict
	case NOVA_MEDIA_SIZE, NOVA_MEDIA_TYPE:
		return http.StatusBadRequest
	case NOVA_RATE_LIMIT:
		return http.StatusTooManyRequests
	case NOVA_UNAVAILABLE:
		return http.StatusServiceUnavailable
	case NOVA_NOT_IMPLEMENTED:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
