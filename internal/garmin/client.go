package garmin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/garava/garava/internal/logger"
	"github.com/go-resty/resty/v2"
)

const (
	defaultConnectURL = "https://connectapi.garmin.com"
	defaultSSOURL     = "https://sso.garmin.com/sso"

	sessionFileName = "session.json"
)

// session is the persisted Garmin Connect session state.
type session struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   int64  `json:"expires_at"`
}

// Client wraps the Garmin Connect API. Sessions are persisted under
// sessionDir and lazily resumed before authenticated calls.
type Client struct {
	rest       *resty.Client
	sso        *resty.Client
	sessionDir string

	session       *session
	authenticated bool
}

// Option customizes a Client; used by tests to point at stub servers.
type Option func(*Client)

// WithBaseURL overrides the Connect API base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.rest.SetBaseURL(u) }
}

// WithSSOBaseURL overrides the SSO base URL.
func WithSSOBaseURL(u string) Option {
	return func(c *Client) { c.sso.SetBaseURL(u) }
}

// NewClient creates a Garmin Connect client with sessions stored in
// sessionDir.
func NewClient(sessionDir string, opts ...Option) *Client {
	rest := resty.New().
		SetBaseURL(defaultConnectURL).
		SetTimeout(60 * time.Second).
		SetHeader("User-Agent", "garava")
	sso := resty.New().
		SetBaseURL(defaultSSOURL).
		SetTimeout(60 * time.Second).
		SetHeader("User-Agent", "garava")

	c := &Client{rest: rest, sso: sso, sessionDir: sessionDir}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login authenticates with Garmin Connect using credentials and persists the
// resulting session. Accounts requiring multi-factor authentication surface
// an AuthError; the flow is never completed automatically.
func (c *Client) Login(email, password string) error {
	var tokenResp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
		MFARequired bool   `json:"mfa_required"`
	}

	resp, err := c.sso.R().
		SetFormData(map[string]string{
			"username": email,
			"password": password,
			"embed":    "true",
		}).
		SetResult(&tokenResp).
		Post("/signin")
	if err != nil {
		return &AuthError{Message: "login request failed", Err: err}
	}
	if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
		return &AuthError{Message: "credentials rejected"}
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return &AuthError{Message: fmt.Sprintf("login failed with HTTP %d", resp.StatusCode())}
	}
	if tokenResp.MFARequired {
		return &AuthError{Message: "account requires multi-factor authentication; complete login interactively"}
	}
	if tokenResp.AccessToken == "" {
		return &AuthError{Message: "login response contained no access token"}
	}

	c.session = &session{
		AccessToken: tokenResp.AccessToken,
		TokenType:   tokenResp.TokenType,
		ExpiresAt:   time.Now().Unix() + tokenResp.ExpiresIn,
	}
	c.authenticated = true
	c.applyAuth()

	if err := c.saveSession(); err != nil {
		return fmt.Errorf("failed to save garmin session: %w", err)
	}
	logger.Info("Logged in to Garmin Connect")
	return nil
}

// ResumeSession loads a previously saved session from disk.
func (c *Client) ResumeSession() error {
	path := filepath.Join(c.sessionDir, sessionFileName)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &AuthError{Message: fmt.Sprintf("no saved Garmin session at %s; run 'garava setup' first", path)}
	}
	if err != nil {
		return &AuthError{Message: "failed to read saved session", Err: err}
	}

	var s session
	if err := json.Unmarshal(raw, &s); err != nil {
		return &AuthError{Message: "saved session is corrupt", Err: err}
	}

	c.session = &s
	c.authenticated = true
	c.applyAuth()
	logger.Debug("Resumed Garmin session from %s", path)
	return nil
}

// VerifySession checks the current session with a lightweight profile probe.
func (c *Client) VerifySession() bool {
	if !c.authenticated {
		if err := c.ResumeSession(); err != nil {
			logger.Warn("Session resume failed: %v", err)
			return false
		}
	}

	resp, err := c.rest.R().Get("/userprofile-service/socialProfile")
	if err != nil {
		logger.Warn("Session verification failed: %v", err)
		return false
	}
	return resp.StatusCode() == http.StatusOK
}

// IsAuthenticated reports whether a session is loaded in-process.
func (c *Client) IsAuthenticated() bool {
	return c.authenticated
}

// GetActivities fetches recent activities with offset pagination. Records are
// returned raw; ParseActivities turns them into domain values.
func (c *Client) GetActivities(start, limit int) ([]json.RawMessage, error) {
	if err := c.ensureSession(); err != nil {
		return nil, err
	}

	var records []json.RawMessage
	resp, err := c.rest.R().
		SetQueryParams(map[string]string{
			"start": fmt.Sprintf("%d", start),
			"limit": fmt.Sprintf("%d", limit),
		}).
		SetResult(&records).
		Get("/activitylist-service/activities/search/activities")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch activities: %w", err)
	}
	if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
		return nil, &AuthError{Message: fmt.Sprintf("activity list rejected with HTTP %d", resp.StatusCode())}
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("activity list failed with HTTP %d: %s", resp.StatusCode(), resp.Body())
	}

	logger.Debug("Fetched %d activities from Garmin", len(records))
	return records, nil
}

// DownloadActivityZip downloads the original activity archive. The payload is
// a ZIP containing a single FIT file.
func (c *Client) DownloadActivityZip(activityID string) ([]byte, error) {
	if err := c.ensureSession(); err != nil {
		return nil, err
	}

	resp, err := c.rest.R().
		Get("/download-service/files/activity/" + activityID)
	if err != nil {
		return nil, fmt.Errorf("failed to download activity %s: %w", activityID, err)
	}
	if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
		return nil, &AuthError{Message: fmt.Sprintf("download rejected with HTTP %d", resp.StatusCode())}
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("download of activity %s failed with HTTP %d", activityID, resp.StatusCode())
	}

	logger.Debug("Downloaded archive for activity %s (%d bytes)", activityID, len(resp.Body()))
	return resp.Body(), nil
}

func (c *Client) ensureSession() error {
	if c.authenticated {
		return nil
	}
	return c.ResumeSession()
}

func (c *Client) applyAuth() {
	tokenType := c.session.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	c.rest.SetHeader("Authorization", tokenType+" "+c.session.AccessToken)
}

func (c *Client) saveSession() error {
	if err := os.MkdirAll(c.sessionDir, 0o700); err != nil {
		return err
	}
	raw, err := json.Marshal(c.session)
	if err != nil {
		return err
	}
	path := filepath.Join(c.sessionDir, sessionFileName)
	return os.WriteFile(path, raw, 0o600)
}
