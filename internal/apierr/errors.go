// Package apierr holds the error sentinels and retry loop shared by the
// generation backends. Each backend classifies its transport failures into
// these sentinels at the adapter boundary so that callers can decide on
// retries with errors.Is, independent of the provider.
package apierr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Sentinel errors for API interaction failures.
var (
	// ErrRateLimit indicates the API rate limit was exceeded (temporary, retryable).
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrQuotaExceeded indicates the API quota was exceeded (billing issue, not retryable).
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrTimeout indicates a request timed out.
	ErrTimeout = errors.New("request timeout")

	// ErrUnavailable indicates a 5xx response from the provider (retryable).
	ErrUnavailable = errors.New("service unavailable")

	// ErrAuthFailed indicates API authentication failed (invalid key).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrBadRequest indicates a client error (4xx) that is not otherwise classified.
	ErrBadRequest = errors.New("bad request")
)

// FromStatus wraps msg with the sentinel matching an HTTP status code.
// Statuses without a mapping return nil so callers can apply their own rules.
func FromStatus(status int, msg string) error {
	var sentinel error
	switch status {
	case http.StatusTooManyRequests:
		sentinel = ErrRateLimit
	case http.StatusPaymentRequired:
		sentinel = ErrQuotaExceeded
	case http.StatusUnauthorized, http.StatusForbidden:
		sentinel = ErrAuthFailed
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		sentinel = ErrTimeout
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		sentinel = ErrUnavailable
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		sentinel = ErrBadRequest
	default:
		return nil
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return fmt.Errorf("%s: %w", msg, sentinel)
}

// IsTransient reports whether err is worth another attempt.
// Rate limits, timeouts, server errors and network failures are transient;
// cancellation, credential and quota failures are not.
func IsTransient(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, ErrAuthFailed), errors.Is(err, ErrQuotaExceeded), errors.Is(err, ErrBadRequest):
		return false
	case errors.Is(err, ErrRateLimit), errors.Is(err, ErrTimeout), errors.Is(err, ErrUnavailable):
		return true
	case errors.Is(err, context.DeadlineExceeded):
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
