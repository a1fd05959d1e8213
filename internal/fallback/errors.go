package fallback

import (
	"context"
	"errors"

	"github.com/openai/openai-go/v3"
)

// Per spec §6.3, the core treats any fallback error (timeout, schema
// violation, transport failure) as "no result" and continues with the
// rule-based output. These sentinels only drive circuit-breaker bookkeeping
// inside this package (a failed call is not retried); they never escape to
// the pipeline.
var (
	ErrUnavailable   = errors.New("fallback_unavailable")    // network, 5xx, timeout
	ErrRateLimited   = errors.New("fallback_rate_limited")   // 429
	ErrInvalidOutput = errors.New("fallback_invalid_output") // JSON parse or schema violation
	ErrRefused       = errors.New("fallback_refused")        // model declined
)

// ErrorCategory classifies an error for circuit-breaker purposes: only
// transient errors are recorded as breaker failures.
type ErrorCategory string

const (
	CategoryTransient ErrorCategory = "transient"
	CategoryPermanent ErrorCategory = "permanent"
)

func classify(err error) ErrorCategory {
	if err == nil {
		return CategoryPermanent
	}
	switch {
	case errors.Is(err, ErrRateLimited), errors.Is(err, ErrUnavailable):
		return CategoryTransient
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return CategoryTransient
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 || apiErr.StatusCode >= 500 {
			return CategoryTransient
		}
	}
	return CategoryPermanent
}

// translateError maps a raw openai-go error to one of this package's
// sentinels, so the caller's circuit-breaker bookkeeping only needs to
// reason about a handful of cases.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 {
			return ErrRateLimited
		}
		if apiErr.StatusCode >= 500 {
			return ErrUnavailable
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrUnavailable
	}
	return ErrInvalidOutput
}
