package shared

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrUnauthorized   = fmt.Errorf("unauthorized")
	ErrAuthExpired    = fmt.Errorf("%w: credentials expired", ErrUnauthorized)
	ErrRefreshFailed  = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken = fmt.Errorf("no refresh token available")
	ErrTimeout        = fmt.Errorf("operation timed out")

	// Upstream and pipeline errors
	ErrUpstream             = fmt.Errorf("upstream request failed")
	ErrServiceUnavailable   = fmt.Errorf("service unavailable")
	ErrCandidateFetchFailed = fmt.Errorf("candidate fetch failed")
	ErrRecommendationFailed = fmt.Errorf("recommendation failed")
	ErrDimensionMismatch    = fmt.Errorf("vector dimension mismatch")
	ErrLyricsNotFound       = fmt.Errorf("lyrics not found")
	ErrEmbeddingProvider    = fmt.Errorf("embedding provider failed")
	ErrCancelled            = fmt.Errorf("operation cancelled")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// ErrorKind is the machine-readable category attached to errors crossing the HTTP boundary.
type ErrorKind string

const (
	KindUnauthorized         ErrorKind = "unauthorized"
	KindInvalidInput         ErrorKind = "invalid_input"
	KindUpstream             ErrorKind = "upstream_error"
	KindCandidateFetchFailed ErrorKind = "candidate_fetch_failed"
	KindRecommendationFailed ErrorKind = "recommendation_failed"
	KindCancelled            ErrorKind = "cancelled"
	KindRateLimited          ErrorKind = "rate_limited"
	KindInternal             ErrorKind = "internal"
)

// UpstreamError carries the status and body of a failed call to an external provider.
type UpstreamError struct {
	Service string
	Status  int
	Body    string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Service, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Service, e.Status, e.Body)
}

// Unwrap maps 401 to [ErrUnauthorized] and everything else to [ErrUpstream].
func (e *UpstreamError) Unwrap() error {
	if e.Status == 401 {
		return ErrUnauthorized
	}
	return ErrUpstream
}

// Cancelled wraps a context error so callers can match on [ErrCancelled].
func Cancelled(err error) error {
	if errors.Is(err, ErrCancelled) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrCancelled, err)
}

// IsCancellation reports whether err stems from a cancelled or expired context.
func IsCancellation(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Kind classifies err into an [ErrorKind]. The most specific pipeline error wins.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case IsCancellation(err):
		return KindCancelled
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrRefreshFailed), errors.Is(err, ErrNoRefreshToken):
		return KindUnauthorized
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrMissingArgument), errors.Is(err, ErrInvalidArgument):
		return KindInvalidInput
	case errors.Is(err, ErrRecommendationFailed):
		return KindRecommendationFailed
	case errors.Is(err, ErrCandidateFetchFailed):
		return KindCandidateFetchFailed
	case errors.Is(err, ErrUpstream):
		return KindUpstream
	default:
		return KindInternal
	}
}

// Upstream extracts the first [UpstreamError] in err's chain.
func Upstream(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}
