package services

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrSymbolNotFound is returned when a provider does not know a symbol
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrForecastFailed is returned when the forecast process produced no usable output
	ErrForecastFailed = errors.New("forecast generation failed")

	// ErrUnauthorized is returned when a bearer token is missing or rejected
	ErrUnauthorized = errors.New("unauthorized")

	// ErrProviderUnavailable is returned while a provider's circuit breaker rejects calls
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// categorizeAPIError maps an error to a low-cardinality metrics label
func categorizeAPIError(err error) string {
	if err == nil {
		return "none"
	}
	switch {
	case errors.Is(err, ErrSymbolNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "auth_error"
	case errors.Is(err, ErrProviderUnavailable):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	errStr := strings.ToLower(err.Error())
	switch {
	case contains(errStr, "timeout", "deadline"):
		return "timeout"
	case contains(errStr, "rate limit", "429"):
		return "rate_limit"
	case contains(errStr, "unauthorized", "401", "403"):
		return "auth_error"
	case contains(errStr, "connection", "network"):
		return "connection_error"
	default:
		return "unknown"
	}
}

// contains checks if the string contains any of the substrings
func contains(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
