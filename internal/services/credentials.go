package services

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/echoes/internal/metrics"
	"github.com/desertthunder/echoes/internal/models"
	"github.com/desertthunder/echoes/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"

	// refreshSkew is how long before expiry a token is proactively refreshed.
	refreshSkew = 60 * time.Second

	// refreshTimeout bounds a shared token request, which outlives any single caller.
	refreshTimeout = 30 * time.Second
)

// SpotifyScopes are requested during authorization.
var SpotifyScopes = []string{
	"user-read-private",
	"user-read-email",
	"playlist-modify-public",
	"playlist-modify-private",
}

// OAuthConfig builds the Spotify [oauth2.Config]. Empty URLs use the public endpoints.
//
// The token endpoint expects client credentials as HTTP Basic auth.
func OAuthConfig(clientID, clientSecret, redirectURI, authURL, tokenURL string) *oauth2.Config {
	if authURL == "" {
		authURL = spotifyAuthURL
	}
	if tokenURL == "" {
		tokenURL = spotifyTokenURL
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       SpotifyScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   authURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// CredentialManager owns one session's [models.Credential] and keeps it fresh.
//
// Refreshes are coalesced: concurrent callers holding the same stale token share a single token request.
type CredentialManager struct {
	oauth      *oauth2.Config
	httpClient *http.Client
	logger     *log.Logger
	now        func() time.Time

	mu        sync.RWMutex
	cred      models.Credential
	onRefresh func(models.Credential)
	group     singleflight.Group
}

// CredentialOpts configures a [CredentialManager].
type CredentialOpts struct {
	HTTPClient *http.Client     // used for token requests, defaults to [http.DefaultClient]
	Logger     *log.Logger      // defaults to [shared.NewLogger]
	Now        func() time.Time // defaults to [time.Now]
	Credential models.Credential
}

// NewCredentialManager creates a manager for the given OAuth2 client.
func NewCredentialManager(conf *oauth2.Config, opts CredentialOpts) *CredentialManager {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &CredentialManager{
		oauth:      conf,
		httpClient: opts.HTTPClient,
		logger:     shared.WithLogger(opts.Logger, "component", "credentials"),
		now:        opts.Now,
		cred:       opts.Credential,
	}
}

// OAuthConfig returns the underlying OAuth2 client configuration.
func (m *CredentialManager) OAuthConfig() *oauth2.Config {
	return m.oauth
}

// OnRefresh registers fn to run after every successful refresh or exchange, e.g. to persist tokens.
func (m *CredentialManager) OnRefresh(fn func(models.Credential)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRefresh = fn
}

// Set installs a credential, replacing the current one.
func (m *CredentialManager) Set(c models.Credential) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cred = c
}

// Current returns a copy of the current credential.
func (m *CredentialManager) Current() models.Credential {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cred
}

// Authenticated reports whether the manager holds any token material.
func (m *CredentialManager) Authenticated() bool {
	c := m.Current()
	return c.AccessToken != "" || c.RefreshToken != ""
}

func (m *CredentialManager) expiring(c models.Credential) bool {
	return m.now().UnixMilli() >= c.ExpiresAt-refreshSkew.Milliseconds()
}

// ValidToken returns an access token that is not within 60s of expiry, refreshing first when needed.
//
// A missing or unrefreshable credential yields [shared.ErrAuthExpired].
func (m *CredentialManager) ValidToken(ctx context.Context) (string, error) {
	c := m.Current()
	if c.AccessToken == "" && c.RefreshToken == "" {
		return "", fmt.Errorf("%w: no session", shared.ErrAuthExpired)
	}

	if c.AccessToken != "" && !m.expiring(c) {
		return c.AccessToken, nil
	}

	fresh, err := m.refresh(ctx, c.AccessToken, "proactive")
	if err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrAuthExpired, err)
	}
	return fresh.AccessToken, nil
}

// Refresh exchanges the refresh token for a new access token.
//
// Manual refreshes are coalesced like the others: a call made while another refresh is in flight
// shares that result instead of issuing a second token request.
func (m *CredentialManager) Refresh(ctx context.Context) (models.Credential, error) {
	return m.refresh(ctx, m.Current().AccessToken, "manual")
}

// RefreshStale refreshes only if stale is still the current access token. Otherwise the
// already-replaced token is returned without another provider call.
func (m *CredentialManager) RefreshStale(ctx context.Context, stale string) (string, error) {
	c, err := m.refresh(ctx, stale, "reactive")
	if err != nil {
		return "", err
	}
	return c.AccessToken, nil
}

// refresh runs at most one token request at a time. The request is detached from the caller's
// context so that one waiter giving up does not fail the others; each waiter still stops on its own ctx.
func (m *CredentialManager) refresh(ctx context.Context, stale, trigger string) (models.Credential, error) {
	ch := m.group.DoChan("refresh", func() (any, error) {
		current := m.Current()
		if current.AccessToken != "" && current.AccessToken != stale && !m.expiring(current) {
			return current, nil
		}

		if current.RefreshToken == "" {
			metrics.TokenRefreshes.WithLabelValues(trigger, "no_refresh_token").Inc()
			return models.Credential{}, shared.ErrNoRefreshToken
		}

		reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		reqCtx = context.WithValue(reqCtx, oauth2.HTTPClient, m.httpClient)
		token, err := m.oauth.TokenSource(reqCtx, &oauth2.Token{RefreshToken: current.RefreshToken}).Token()
		if err != nil {
			metrics.TokenRefreshes.WithLabelValues(trigger, "error").Inc()
			m.logger.Warn("token refresh failed", "trigger", trigger, "error", err)
			if reqCtx.Err() != nil {
				return models.Credential{}, fmt.Errorf("%w: %w", shared.ErrRefreshFailed, shared.ErrTimeout)
			}
			return models.Credential{}, fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
		}

		next := m.credentialFrom(token, current.RefreshToken)
		m.install(next)
		metrics.TokenRefreshes.WithLabelValues(trigger, "ok").Inc()
		m.logger.Debug("token refreshed", "trigger", trigger, "expires_at", next.ExpiresAt)
		return next, nil
	})

	select {
	case <-ctx.Done():
		return models.Credential{}, shared.Cancelled(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return models.Credential{}, res.Err
		}
		return res.Val.(models.Credential), nil
	}
}

// AuthURL returns the consent URL for the authorization-code flow.
func (m *CredentialManager) AuthURL(state string) string {
	return m.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for a session and installs it.
func (m *CredentialManager) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	token, err := m.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	m.install(m.credentialFrom(token, ""))
	return token, nil
}

// credentialFrom maps a token response, keeping fallbackRefresh when the provider does not rotate it.
// A missing expiry is treated as one hour.
func (m *CredentialManager) credentialFrom(token *oauth2.Token, fallbackRefresh string) models.Credential {
	c := models.Credential{AccessToken: token.AccessToken, RefreshToken: token.RefreshToken}
	if c.RefreshToken == "" {
		c.RefreshToken = fallbackRefresh
	}
	if token.Expiry.IsZero() {
		c.ExpiresAt = m.now().Add(time.Hour).UnixMilli()
	} else {
		c.ExpiresAt = token.Expiry.UnixMilli()
	}
	return c
}

func (m *CredentialManager) install(c models.Credential) {
	m.mu.Lock()
	m.cred = c
	fn := m.onRefresh
	m.mu.Unlock()

	if fn != nil {
		fn(c)
	}
}

// Token converts a credential into an [oauth2.Token].
func Token(c models.Credential) *oauth2.Token {
	t := &oauth2.Token{AccessToken: c.AccessToken, RefreshToken: c.RefreshToken, TokenType: "Bearer"}
	if c.ExpiresAt > 0 {
		t.Expiry = time.UnixMilli(c.ExpiresAt)
	}
	return t
}
