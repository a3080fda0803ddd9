package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/echoes/internal/server"
	"github.com/desertthunder/echoes/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authTimeout = 2 * time.Minute

// AuthLogin performs the OAuth2 authorization-code flow for Spotify.
//
// Starts a local HTTP server on the redirect URI, opens the browser for consent, and exchanges the code.
// The credential manager persists the new session through its refresh hook.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	spotify := r.config.Credentials.Spotify
	if spotify.ClientID == "" || spotify.ClientSecret == "" {
		return fmt.Errorf("%w: spotify client_id and client_secret must be set in %s", shared.ErrMissingCredentials, r.configPath)
	}

	token, err := r.doOAuth(ctx)
	if err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	if r.configPath != "" {
		r.writePlain("✓ Tokens saved to %s (expires %s)\n\n", r.configPath, token.Expiry.Format(time.Kitchen))
	}
	r.writePlain("You can now use: echoes recommend <track>\n")
	return nil
}

// AuthStatus reports whether a session is stored and, with --verify, whether Spotify accepts it.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if !r.credentials.Authenticated() {
		r.writePlain("Authentication: ✗ Not authenticated\n")
		return r.writePlain("Run 'echoes auth login' to connect Spotify\n")
	}

	cred := r.credentials.Current()
	r.writePlain("Authentication: ✓ Session stored\n")
	if cred.ExpiresAt > 0 {
		expires := time.UnixMilli(cred.ExpiresAt)
		if time.Now().After(expires) {
			r.writePlain("Access token: expired %s (refreshes on next use)\n", expires.Format(time.RFC3339))
		} else {
			r.writePlain("Access token: valid until %s\n", expires.Format(time.RFC3339))
		}
	}

	if !cmd.Bool("verify") {
		return nil
	}

	userID, err := r.catalog.CurrentUserID(ctx)
	if err != nil {
		return fmt.Errorf("session check failed: %w", err)
	}
	return r.writePlain("Spotify user: %s\n", userID)
}

// AuthRefresh forces a refresh with the stored refresh token.
func (r *Runner) AuthRefresh(ctx context.Context, cmd *cli.Command) error {
	cred, err := r.credentials.Refresh(ctx)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Token refreshed, valid until %s\n", time.UnixMilli(cred.ExpiresAt).Format(time.RFC3339))
}

// callbackAddr returns the listen address for the redirect URI, falling back to the server config.
func (r *Runner) callbackAddr() string {
	u, err := url.Parse(r.config.Credentials.Spotify.RedirectURI)
	if err != nil || u.Host == "" {
		return r.config.Server.Addr()
	}
	if u.Port() == "" {
		return net.JoinHostPort(u.Hostname(), "80")
	}
	return u.Host
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := r.credentials.AuthURL(state)
	oauthHandler := server.NewOAuthHandler(r.credentials, state)
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	serverAddr := r.callbackAddr()
	httpServer := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth server at %v", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(authTimeout)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	case <-ctx.Done():
		return nil, shared.Cancelled(ctx.Err())
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}

	if result.Token == nil {
		return nil, fmt.Errorf("no token received")
	}

	return result.Token, nil
}
