package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/desertthunder/echoes/internal/shared"
)

// fakeTokens hands out "token-N" and counts refreshes.
type fakeTokens struct {
	token      string
	refreshes  int
	refreshErr error
}

func (f *fakeTokens) ValidToken(ctx context.Context) (string, error) {
	if f.token == "" {
		return "", shared.ErrAuthExpired
	}
	return f.token, nil
}

func (f *fakeTokens) RefreshStale(ctx context.Context, stale string) (string, error) {
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	f.refreshes++
	f.token = "fresh"
	return f.token, nil
}

func response(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader("{}"))}
}

func TestRefreshRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("403 then success retries once with a fresh token", func(t *testing.T) {
		tokens := &fakeTokens{token: "stale"}
		var seen []string
		statuses := []int{http.StatusForbidden, http.StatusOK}

		resp, err := NewRefreshRetry(tokens).Do(ctx, func(token string) (*http.Response, error) {
			seen = append(seen, token)
			return response(statuses[len(seen)-1]), nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", resp.StatusCode)
		}
		if tokens.refreshes != 1 {
			t.Errorf("expected one refresh, got %d", tokens.refreshes)
		}
		if len(seen) != 2 || seen[0] != "stale" || seen[1] != "fresh" {
			t.Errorf("expected [stale fresh], got %v", seen)
		}
	})

	t.Run("second 403 is surfaced", func(t *testing.T) {
		tokens := &fakeTokens{token: "stale"}
		attempts := 0

		resp, err := NewRefreshRetry(tokens).Do(ctx, func(token string) (*http.Response, error) {
			attempts++
			return response(http.StatusForbidden), nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("expected 403, got %d", resp.StatusCode)
		}
		if attempts != 2 {
			t.Errorf("expected exactly 2 attempts, got %d", attempts)
		}
		if tokens.refreshes != 1 {
			t.Errorf("expected one refresh, got %d", tokens.refreshes)
		}
	})

	t.Run("other statuses are not retried", func(t *testing.T) {
		for _, status := range []int{http.StatusUnauthorized, http.StatusNotFound, http.StatusTooManyRequests, http.StatusInternalServerError} {
			tokens := &fakeTokens{token: "stale"}
			attempts := 0

			resp, err := NewRefreshRetry(tokens).Do(ctx, func(token string) (*http.Response, error) {
				attempts++
				return response(status), nil
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.StatusCode != status {
				t.Errorf("expected %d, got %d", status, resp.StatusCode)
			}
			if attempts != 1 || tokens.refreshes != 0 {
				t.Errorf("status %d: expected 1 attempt and no refresh, got %d and %d", status, attempts, tokens.refreshes)
			}
		}
	})

	t.Run("refresh failure surfaces the original 403", func(t *testing.T) {
		tokens := &fakeTokens{token: "stale", refreshErr: shared.ErrNoRefreshToken}
		attempts := 0

		resp, err := NewRefreshRetry(tokens).Do(ctx, func(token string) (*http.Response, error) {
			attempts++
			return &http.Response{
				StatusCode: http.StatusForbidden,
				Body:       io.NopCloser(strings.NewReader(`{"error":{"status":403,"message":"Forbidden"}}`)),
			}, nil
		})
		if err != nil {
			t.Fatalf("expected the 403 response, got error %v", err)
		}
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("expected 403, got %d", resp.StatusCode)
		}
		if attempts != 1 {
			t.Errorf("expected no retry without a fresh token, got %d attempts", attempts)
		}

		upErr := upstreamError("spotify", resp)
		if upErr.Status != http.StatusForbidden || !strings.Contains(upErr.Body, "Forbidden") {
			t.Errorf("expected body to be preserved, got %+v", upErr)
		}
	})

	t.Run("refresh cancelled returns the error", func(t *testing.T) {
		cancelCtx, cancel := context.WithCancel(ctx)
		cancel()
		tokens := &fakeTokens{token: "stale", refreshErr: context.Canceled}

		_, err := NewRefreshRetry(tokens).Do(cancelCtx, func(token string) (*http.Response, error) {
			return response(http.StatusForbidden), nil
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("no token skips the attempt", func(t *testing.T) {
		called := false
		_, err := NewRefreshRetry(&fakeTokens{}).Do(ctx, func(token string) (*http.Response, error) {
			called = true
			return response(http.StatusOK), nil
		})
		if !errors.Is(err, shared.ErrAuthExpired) {
			t.Errorf("expected ErrAuthExpired, got %v", err)
		}
		if called {
			t.Error("expected attempt not to run")
		}
	})
}
