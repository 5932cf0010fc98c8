package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/mixtape/internal/server"
	"github.com/desertthunder/mixtape/internal/services"
	"github.com/desertthunder/mixtape/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authWait = 2 * time.Minute

// SpotifyAuth performs OAuth2 authentication flow for Spotify.
//
// Starts a local HTTP server, opens browser for user authorization, and exchanges auth code for tokens.
func (r *Runner) SpotifyAuth(ctx context.Context, cmd *cli.Command) error {
	creds := r.config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in config.toml", shared.ErrMissingCredentials)
	}

	spotify, err := services.NewSpotifyService(creds.Map(), services.WithLogger(r.logger))
	if err != nil {
		return fmt.Errorf("failed to create Spotify service: %w", err)
	}

	token, err := r.doOAuth(ctx, spotify)
	if err != nil {
		return err
	}

	if err := r.saveTokens(token); err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n\n", r.configFile())
	r.writePlain("You can now use: mixtape generate --name \"Late Night\" --genre jazz\n")
	return nil
}

// AuthToken issues a bearer token for `mixtape serve`.
func (r *Runner) AuthToken(ctx context.Context, cmd *cli.Command) error {
	userID, err := r.userID(cmd)
	if err != nil {
		return err
	}

	token, err := server.IssueToken([]byte(r.config.Server.JWTSecret), userID, cmd.Duration("ttl"))
	if err != nil {
		return err
	}

	r.logger.Debug("issued api token", "user", userID, "ttl", cmd.Duration("ttl"))
	return r.writePlain("%s\n", token)
}

func (r *Runner) doOAuth(ctx context.Context, oauthSrv services.OAuthService) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL := oauthSrv.GetAuthURL(state)
	oauthHandler := server.NewOAuthHandler(oauthSrv.GetOAuthConfig(), state)
	router := server.NewBasicRouter()
	router.Handler(oauthHandler)

	serverAddr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	httpServer := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth callback server at %v", serverAddr)
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

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(authWait)
	defer timeout.Stop()

	var result server.OAuthResult
	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return result.Token, nil
}

// accessToken returns the --token flag or the stored Spotify token, refreshing it when expired.
func (r *Runner) accessToken(ctx context.Context, cmd *cli.Command) (string, error) {
	if token := cmd.String("token"); token != "" {
		return token, nil
	}

	creds := r.config.Credentials.Spotify
	if creds.AccessToken == "" {
		return "", fmt.Errorf("%w: run 'mixtape auth spotify' or pass --token", shared.ErrNotAuthenticated)
	}

	stored := creds.Token()
	if stored.Valid() || stored.RefreshToken == "" {
		return stored.AccessToken, nil
	}

	spotify, err := services.NewSpotifyService(creds.Map(), services.WithLogger(r.logger))
	if err != nil {
		return "", fmt.Errorf("failed to create Spotify service: %w", err)
	}

	refreshed, err := spotify.GetOAuthConfig().TokenSource(ctx, stored).Token()
	if err != nil {
		return "", fmt.Errorf("%w: refresh failed: %w", shared.ErrAuthExpired, err)
	}
	r.logger.Info("refreshed Spotify access token", "expiry", refreshed.Expiry)

	if err := r.saveTokens(refreshed); err != nil {
		r.logger.Warn("failed to persist refreshed token", "error", err)
	}
	return refreshed.AccessToken, nil
}
