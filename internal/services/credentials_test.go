package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/echoes/internal/models"
	"github.com/desertthunder/echoes/internal/shared"
)

// tokenServer is a fake token endpoint that counts refresh requests.
type tokenServer struct {
	*httptest.Server
	hits     atomic.Int32
	delay    time.Duration
	status   int
	rotate   bool
	lastForm chan string
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()
	ts := &tokenServer{status: http.StatusOK, lastForm: make(chan string, 100)}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := ts.hits.Add(1)

		user, pass, ok := r.BasicAuth()
		if !ok || user != "client" || pass != "secret" {
			http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
			return
		}

		body, _ := io.ReadAll(r.Body)
		ts.lastForm <- string(body)

		if ts.delay > 0 {
			time.Sleep(ts.delay)
		}

		w.Header().Set("Content-Type", "application/json")
		if ts.status != http.StatusOK {
			w.WriteHeader(ts.status)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}

		if ts.rotate {
			fmt.Fprintf(w, `{"access_token":"access-%d","refresh_token":"refresh-%d","token_type":"Bearer","expires_in":3600}`, n, n)
			return
		}
		fmt.Fprintf(w, `{"access_token":"access-%d","token_type":"Bearer","expires_in":3600}`, n)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newTestManager(ts *tokenServer, cred models.Credential) *CredentialManager {
	conf := OAuthConfig("client", "secret", "http://127.0.0.1/callback", ts.URL+"/authorize", ts.URL+"/token")
	return NewCredentialManager(conf, CredentialOpts{Credential: cred, HTTPClient: ts.Client()})
}

func TestCredentialManager(t *testing.T) {
	ctx := context.Background()

	t.Run("returns current token when far from expiry", func(t *testing.T) {
		ts := newTokenServer(t)
		m := newTestManager(ts, models.Credential{
			AccessToken:  "current",
			RefreshToken: "refresh",
			ExpiresAt:    time.Now().Add(time.Hour).UnixMilli(),
		})

		token, err := m.ValidToken(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if token != "current" {
			t.Errorf("expected current, got %s", token)
		}
		if ts.hits.Load() != 0 {
			t.Errorf("expected no refresh, got %d", ts.hits.Load())
		}
	})

	t.Run("refreshes exactly once when 30s from expiry", func(t *testing.T) {
		ts := newTokenServer(t)
		m := newTestManager(ts, models.Credential{
			AccessToken:  "old",
			RefreshToken: "refresh",
			ExpiresAt:    time.Now().Add(30 * time.Second).UnixMilli(),
		})

		first, err := m.ValidToken(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := m.ValidToken(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if first != "access-1" || second != "access-1" {
			t.Errorf("expected refreshed token for both calls, got %s and %s", first, second)
		}
		if ts.hits.Load() != 1 {
			t.Errorf("expected exactly one refresh, got %d", ts.hits.Load())
		}

		form := <-ts.lastForm
		if want := "grant_type=refresh_token&refresh_token=refresh"; form != want {
			t.Errorf("expected form %q, got %q", want, form)
		}

		if got := m.Current().RefreshToken; got != "refresh" {
			t.Errorf("expected refresh token to be reused, got %s", got)
		}
	})

	t.Run("stores rotated refresh token", func(t *testing.T) {
		ts := newTokenServer(t)
		ts.rotate = true
		m := newTestManager(ts, models.Credential{RefreshToken: "refresh"})

		if _, err := m.Refresh(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := m.Current().RefreshToken; got != "refresh-1" {
			t.Errorf("expected rotated refresh token, got %s", got)
		}
	})

	t.Run("concurrent refreshes coalesce", func(t *testing.T) {
		ts := newTokenServer(t)
		ts.delay = 50 * time.Millisecond
		m := newTestManager(ts, models.Credential{
			AccessToken:  "old",
			RefreshToken: "refresh",
			ExpiresAt:    time.Now().UnixMilli(),
		})

		var wg sync.WaitGroup
		tokens := make([]string, 10)
		for i := range tokens {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				tokens[i], _ = m.ValidToken(ctx)
			}(i)
		}
		wg.Wait()

		if ts.hits.Load() != 1 {
			t.Errorf("expected one refresh request, got %d", ts.hits.Load())
		}
		for i, tok := range tokens {
			if tok != "access-1" {
				t.Errorf("caller %d got %q", i, tok)
			}
		}
	})

	t.Run("cancelled waiter does not fail the shared refresh", func(t *testing.T) {
		ts := newTokenServer(t)
		ts.delay = 300 * time.Millisecond
		m := newTestManager(ts, models.Credential{
			AccessToken:  "old",
			RefreshToken: "refresh",
			ExpiresAt:    time.Now().UnixMilli(),
		})

		cancelCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		errA := make(chan error, 1)
		go func() {
			_, err := m.ValidToken(cancelCtx)
			errA <- err
		}()

		// let caller A start the token request before B joins it
		time.Sleep(50 * time.Millisecond)

		type result struct {
			token string
			err   error
		}
		resB := make(chan result, 1)
		go func() {
			token, err := m.ValidToken(ctx)
			resB <- result{token, err}
		}()

		time.Sleep(50 * time.Millisecond)
		cancel()

		if err := <-errA; !shared.IsCancellation(err) {
			t.Errorf("expected cancelled caller to see cancellation, got %v", err)
		}

		b := <-resB
		if b.err != nil {
			t.Fatalf("expected uncancelled caller to succeed, got %v", b.err)
		}
		if b.token != "access-1" {
			t.Errorf("expected access-1, got %s", b.token)
		}
		if ts.hits.Load() != 1 {
			t.Errorf("expected one refresh request, got %d", ts.hits.Load())
		}
		if got := m.Current().AccessToken; got != "access-1" {
			t.Errorf("expected refreshed credential to be installed, got %s", got)
		}
	})

	t.Run("manual refresh joins an in-flight refresh", func(t *testing.T) {
		ts := newTokenServer(t)
		ts.delay = 100 * time.Millisecond
		m := newTestManager(ts, models.Credential{
			AccessToken:  "old",
			RefreshToken: "refresh",
			ExpiresAt:    time.Now().UnixMilli(),
		})

		done := make(chan struct{})
		go func() {
			defer close(done)
			m.ValidToken(ctx)
		}()
		time.Sleep(30 * time.Millisecond)

		cred, err := m.Refresh(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		<-done

		if cred.AccessToken != "access-1" {
			t.Errorf("expected shared result access-1, got %s", cred.AccessToken)
		}
		if ts.hits.Load() != 1 {
			t.Errorf("expected one refresh request, got %d", ts.hits.Load())
		}
	})

	t.Run("RefreshStale skips when token already replaced", func(t *testing.T) {
		ts := newTokenServer(t)
		m := newTestManager(ts, models.Credential{
			AccessToken:  "old",
			RefreshToken: "refresh",
			ExpiresAt:    time.Now().Add(time.Hour).UnixMilli(),
		})

		first, err := m.RefreshStale(ctx, "old")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := m.RefreshStale(ctx, "old")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if first != second {
			t.Errorf("expected same token, got %s and %s", first, second)
		}
		if ts.hits.Load() != 1 {
			t.Errorf("expected one refresh, got %d", ts.hits.Load())
		}
	})

	t.Run("no session", func(t *testing.T) {
		ts := newTokenServer(t)
		m := newTestManager(ts, models.Credential{})

		_, err := m.ValidToken(ctx)
		if !errors.Is(err, shared.ErrAuthExpired) {
			t.Errorf("expected ErrAuthExpired, got %v", err)
		}
		if !errors.Is(err, shared.ErrUnauthorized) {
			t.Errorf("expected ErrAuthExpired to match ErrUnauthorized, got %v", err)
		}
	})

	t.Run("refresh rejected surfaces auth expired", func(t *testing.T) {
		ts := newTokenServer(t)
		ts.status = http.StatusBadRequest
		m := newTestManager(ts, models.Credential{
			AccessToken:  "old",
			RefreshToken: "revoked",
			ExpiresAt:    time.Now().UnixMilli(),
		})

		_, err := m.ValidToken(ctx)
		if !errors.Is(err, shared.ErrAuthExpired) {
			t.Errorf("expected ErrAuthExpired, got %v", err)
		}
		if !errors.Is(err, shared.ErrRefreshFailed) {
			t.Errorf("expected ErrRefreshFailed in chain, got %v", err)
		}
		if ts.hits.Load() != 1 {
			t.Errorf("expected a single attempt, got %d", ts.hits.Load())
		}
	})

	t.Run("OnRefresh receives new credential", func(t *testing.T) {
		ts := newTokenServer(t)
		m := newTestManager(ts, models.Credential{RefreshToken: "refresh"})

		var got models.Credential
		m.OnRefresh(func(c models.Credential) { got = c })

		if _, err := m.Refresh(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.AccessToken != "access-1" {
			t.Errorf("expected callback with access-1, got %+v", got)
		}
		if got.ExpiresAt <= time.Now().UnixMilli() {
			t.Errorf("expected future expiry, got %d", got.ExpiresAt)
		}
	})

	t.Run("AuthURL", func(t *testing.T) {
		ts := newTokenServer(t)
		m := newTestManager(ts, models.Credential{})

		u := m.AuthURL("state123")
		for _, want := range []string{ts.URL + "/authorize", "client_id=client", "state=state123", "playlist-modify-private"} {
			if !strings.Contains(u, want) {
				t.Errorf("expected auth URL to contain %q, got %s", want, u)
			}
		}
	})
}
