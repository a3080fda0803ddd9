package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// TokenRefresher supplies bearer tokens and replaces ones the provider rejected.
type TokenRefresher interface {
	ValidToken(ctx context.Context) (string, error)
	RefreshStale(ctx context.Context, stale string) (string, error)
}

// RefreshRetry retries a request at most MaxRetries times after a 403, refreshing the token before each retry.
//
// No other status is retried. A 403 on the final attempt, or one whose refresh failed, is returned to the
// caller unchanged so it surfaces as the provider's own error.
type RefreshRetry struct {
	Tokens     TokenRefresher
	MaxRetries int
}

// NewRefreshRetry returns the single-retry policy used for catalog calls.
func NewRefreshRetry(tokens TokenRefresher) RefreshRetry {
	return RefreshRetry{Tokens: tokens, MaxRetries: 1}
}

// Do runs attempt with a valid token and applies the retry policy.
//
// attempt must build a fresh request on every call.
func (p RefreshRetry) Do(ctx context.Context, attempt func(token string) (*http.Response, error)) (*http.Response, error) {
	token, err := p.Tokens.ValidToken(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := attempt(token)
	for retries := 0; err == nil && resp.StatusCode == http.StatusForbidden && retries < p.MaxRetries; retries++ {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("failed to read response body: %w", readErr)
		}
		resp.Body = io.NopCloser(bytes.NewReader(body))

		fresh, refreshErr := p.Tokens.RefreshStale(ctx, token)
		if refreshErr != nil {
			if ctx.Err() != nil {
				return nil, refreshErr
			}
			return resp, nil
		}

		token = fresh
		resp, err = attempt(token)
	}
	return resp, err
}
