package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMissingParams signals a request missing required fields.
	ErrMissingParams = errors.New("missing required params")
	// ErrUnauthorized signals unresolvable caller credentials.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden signals the caller lacks read permission on the dataset.
	ErrForbidden = errors.New("forbidden")
	// ErrDatasetNotFound signals a missing dataset.
	ErrDatasetNotFound = errors.New("dataset not found")
	// ErrInsufficientBalance signals a non-positive account point balance.
	ErrInsufficientBalance = errors.New("insufficient account balance")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrSearchProvider signals an embedding or vector search backend failure.
	ErrSearchProvider = errors.New("search provider error")
	// ErrGenerationProvider signals a generation model failure. Optional stages
	// absorb it and fall back to their prior state.
	ErrGenerationProvider = errors.New("generation provider error")
	// ErrRerankUnavailable signals the rerank backend is unreachable or the
	// requested model is not configured. Reranking is skipped, not failed.
	ErrRerankUnavailable = errors.New("rerank unavailable")
)

// RateLimitedError wraps ErrRateLimited with a retry hint.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrRateLimited.Error(), e.RetryAfter)
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// NewRateLimited creates a rate limit error carrying a retry-after hint.
func NewRateLimited(retryAfter time.Duration) error {
	return &RateLimitedError{RetryAfter: retryAfter}
}
