package errors

import (
	"errors"
	"fmt"
)

// NewRateLimitError creates a quota-exhaustion error. This is a caller
// problem (back off, notify the user), not a system fault.
func NewRateLimitError(recipient string, limit int, window string) *AppError {
	return New(ErrCodeRateLimit, "rate limit exceeded").
		WithContext("recipient", recipient).
		WithContext("limit", limit).
		WithContext("window", window).
		WithUserMessage("Too many messages to this recipient, please try again later")
}

// NewCounterStoreError wraps a rate-limit store failure. Distinct from
// quota exhaustion so callers can tell "slow down" from "store is down".
func NewCounterStoreError(err error) *AppError {
	appErr := Wrap(err, ErrCodeCounterStore, "rate limit store unavailable")
	appErr.Retryable = true
	return appErr.WithUserMessage("Messaging temporarily unavailable, please try again")
}

// NewGatewayError creates an error for a failed messaging-gateway call,
// carrying the gateway's own error detail when available.
func NewGatewayError(endpoint string, statusCode int, err error) *AppError {
	appErr := Wrap(err, ErrCodeGatewayAPI, "gateway API call failed").
		WithContext("endpoint", endpoint).
		WithContext("status_code", statusCode).
		WithUserMessage("The messaging provider could not be reached")

	if statusCode >= 500 || statusCode == 429 || statusCode == 408 || statusCode == 0 {
		appErr.Retryable = true
	}

	return appErr
}

// NewParseError creates a webhook parse error. The raw payload is always
// attached for diagnosis.
func NewParseError(raw []byte, err error) *AppError {
	return Wrap(err, ErrCodeParseFailed, "failed to parse webhook payload").
		WithContext("raw_payload", string(raw))
}

// NewDatabaseError creates a database error with operation context
func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseQuery, fmt.Sprintf("database %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Database operation failed")
}

// NewConfigError creates a configuration error
func NewConfigError(key, message string) *AppError {
	return New(ErrCodeInvalidConfig, message).
		WithContext("config_key", key).
		WithUserMessage("Configuration error")
}

// IsRateLimit reports whether err is a quota-exhaustion error.
func IsRateLimit(err error) bool {
	return GetCode(err) == ErrCodeRateLimit
}

// IsGatewayError reports whether err came from the messaging gateway.
func IsGatewayError(err error) bool {
	return GetCode(err) == ErrCodeGatewayAPI
}

// IsParseError reports whether err is a webhook parse failure.
func IsParseError(err error) bool {
	return GetCode(err) == ErrCodeParseFailed
}

// HTTPStatusCode maps error codes to appropriate HTTP status codes
func HTTPStatusCode(err error) int {
	switch GetCode(err) {
	case ErrCodeInvalidInput, ErrCodeInvalidConfig, ErrCodeParseFailed:
		return 400
	case ErrCodeNotFound:
		return 404
	case ErrCodeRateLimit:
		return 429
	case ErrCodeTimeout:
		return 408
	case ErrCodeGatewayAPI:
		if IsRetryable(err) {
			return 502
		}
		return 500
	case ErrCodeDatabaseConnection, ErrCodeDatabaseQuery, ErrCodeCounterStore:
		return 503
	default:
		return 500
	}
}

// As is a convenience wrapper over errors.As for *AppError.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}
