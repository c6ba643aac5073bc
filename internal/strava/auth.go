package strava

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/garava/garava/internal/domain"
	"github.com/garava/garava/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DefaultRedirectURI must match the callback URL registered with the Strava
// application.
const DefaultRedirectURI = "http://localhost:8000/callback"

// TokenStore is the token persistence the auth layer needs.
type TokenStore interface {
	Get(ctx context.Context) (*domain.StravaToken, error)
	Save(ctx context.Context, token *domain.StravaToken) error
}

// TokenRefresher is the slice of the client the token lifecycle uses.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*domain.StravaToken, error)
	SetAccessToken(accessToken string)
}

// AuthResult is the outcome of an interactive OAuth authorization flow.
type AuthResult struct {
	Success bool
	Token   *domain.StravaToken
	Error   string
}

// callbackResult carries one captured OAuth redirect from the listener to the
// flow that owns it. State lives in the flow invocation, not in globals, so
// every flow starts clean.
type callbackResult struct {
	code string
	err  string
}

// RunOAuthFlow runs the interactive OAuth2 authorization flow: it starts a
// one-shot local listener on the redirect URI port, prints the authorization
// URL for the user, waits for the redirect (bounded by timeout), and
// exchanges the received code for a token.
func RunOAuthFlow(ctx context.Context, client *Client, redirectURI string, timeout time.Duration) AuthResult {
	if redirectURI == "" {
		redirectURI = DefaultRedirectURI
	}

	parsed, err := url.Parse(redirectURI)
	if err != nil {
		return AuthResult{Success: false, Error: fmt.Sprintf("invalid redirect URI: %v", err)}
	}
	port := parsed.Port()
	if port == "" {
		port = "8000"
	}
	callbackPath := parsed.Path
	if callbackPath == "" {
		callbackPath = "/callback"
	}

	state := uuid.NewString()
	results := make(chan callbackResult, 1)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.GET(callbackPath, func(c *gin.Context) {
		if c.Query("state") != state {
			c.String(http.StatusBadRequest, "State mismatch, please retry authorization.")
			return
		}
		if errParam := c.Query("error"); errParam != "" {
			desc := c.Query("error_description")
			if desc == "" {
				desc = errParam
			}
			c.String(http.StatusBadRequest, "Authorization failed: %s", desc)
			select {
			case results <- callbackResult{err: desc}:
			default:
			}
			return
		}
		code := c.Query("code")
		if code == "" {
			c.String(http.StatusBadRequest, "Missing authorization code.")
			return
		}
		c.Header("Content-Type", "text/html")
		c.String(http.StatusOK, "<html><body><h1>Authorization successful!</h1><p>You can close this window.</p></body></html>")
		select {
		case results <- callbackResult{code: code}:
		default:
		}
	})

	server := &http.Server{Addr: "localhost:" + port, Handler: router}
	go func() {
		if serveErr := server.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			select {
			case results <- callbackResult{err: serveErr.Error()}:
			default:
			}
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	authURL := client.AuthorizationURL(redirectURI, state)
	logger.Info("Waiting for Strava authorization callback on %s", redirectURI)
	fmt.Printf("\nVisit the following URL to authorize:\n%s\n\n", authURL)

	var result callbackResult
	select {
	case result = <-results:
	case <-time.After(timeout):
		return AuthResult{Success: false, Error: "authorization timed out"}
	case <-ctx.Done():
		return AuthResult{Success: false, Error: ctx.Err().Error()}
	}

	if result.err != "" {
		return AuthResult{Success: false, Error: result.err}
	}

	token, err := client.ExchangeCode(ctx, result.code)
	if err != nil {
		return AuthResult{Success: false, Error: err.Error()}
	}
	return AuthResult{Success: true, Token: token}
}

// EnsureValidToken loads the stored token, refreshing it when it is expired
// or about to expire. Returns (nil, nil) when no token has been saved yet; a
// failed refresh returns an error. On success the client is primed with the
// access token.
func EnsureValidToken(ctx context.Context, store TokenStore, client TokenRefresher) (*domain.StravaToken, error) {
	token, err := store.Get(ctx)
	if err != nil {
		return nil, err
	}
	if token == nil {
		logger.Warn("No Strava token found. Run 'garava setup' to authorize.")
		return nil, nil
	}

	if token.IsExpired(domain.TokenExpiryBuffer) {
		logger.Info("Strava token expired, refreshing...")
		refreshed, refreshErr := client.RefreshToken(ctx, token.RefreshToken)
		if refreshErr != nil {
			return nil, fmt.Errorf("failed to refresh Strava token: %w", refreshErr)
		}
		// Refresh responses carry no athlete id; keep the stored one
		refreshed.AthleteID = token.AthleteID
		if saveErr := store.Save(ctx, refreshed); saveErr != nil {
			return nil, saveErr
		}
		token = refreshed
	}

	client.SetAccessToken(token.AccessToken)
	return token, nil
}
