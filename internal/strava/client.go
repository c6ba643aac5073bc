package strava

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/garava/garava/internal/domain"
	"github.com/garava/garava/internal/logger"
	"github.com/go-resty/resty/v2"
)

const (
	defaultAPIURL  = "https://www.strava.com/api/v3"
	defaultAuthURL = "https://www.strava.com/oauth"

	// Scopes requested during authorization. Read is needed for the gear
	// pass, write for uploads and gear updates.
	oauthScope = "activity:read_all,activity:write"
)

// UploadStatus is a pollable upload handle returned by the uploads endpoint.
type UploadStatus struct {
	ID         int64  `json:"id"`
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
	Error      string `json:"error"`
	ActivityID *int64 `json:"activity_id"`
}

// SummaryActivity is the subset of a Strava activity the engine cares about.
type SummaryActivity struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Trainer bool   `json:"trainer"`
	GearID  string `json:"gear_id"`
}

// Athlete is the authenticated account profile.
type Athlete struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
	Athlete      *struct {
		ID int64 `json:"id"`
	} `json:"athlete"`
}

// Client wraps the Strava v3 API. It performs no retries; failures propagate
// to the caller.
type Client struct {
	rest         *resty.Client
	clientID     string
	clientSecret string
	authURL      string
}

// Option customizes a Client; used by tests to point at stub servers.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.rest.SetBaseURL(u) }
}

// WithAuthBaseURL overrides the OAuth base URL used for token exchange.
func WithAuthBaseURL(u string) Option {
	return func(c *Client) { c.authURL = u }
}

// NewClient creates a Strava API client.
func NewClient(clientID, clientSecret string, opts ...Option) *Client {
	rest := resty.New().
		SetBaseURL(defaultAPIURL).
		SetTimeout(60 * time.Second)

	c := &Client{
		rest:         rest,
		clientID:     clientID,
		clientSecret: clientSecret,
		authURL:      defaultAuthURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetAccessToken sets the bearer token used for authenticated requests.
func (c *Client) SetAccessToken(accessToken string) {
	c.rest.SetHeader("Authorization", "Bearer "+accessToken)
}

// AuthorizationURL builds the URL the user visits to authorize the app.
// state is an optional CSRF token echoed back on the callback.
func (c *Client) AuthorizationURL(redirectURI, state string) string {
	q := url.Values{}
	q.Set("client_id", c.clientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", "code")
	q.Set("approval_prompt", "auto")
	q.Set("scope", oauthScope)
	if state != "" {
		q.Set("state", state)
	}
	return c.authURL + "/authorize?" + q.Encode()
}

// ExchangeCode exchanges an authorization code for a token set.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*domain.StravaToken, error) {
	var tr tokenResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"client_id":     c.clientID,
			"client_secret": c.clientSecret,
			"code":          code,
			"grant_type":    "authorization_code",
		}).
		SetResult(&tr).
		Post(c.authURL + "/token")
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("token exchange failed with HTTP %d: %s", resp.StatusCode(), resp.Body())
	}

	token := &domain.StravaToken{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    tr.ExpiresAt,
	}
	if tr.Athlete != nil {
		token.AthleteID = &tr.Athlete.ID
	}

	c.SetAccessToken(token.AccessToken)
	logger.Info("Exchanged authorization code for Strava token")
	return token, nil
}

// RefreshToken obtains a fresh access token from a refresh token.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*domain.StravaToken, error) {
	var tr tokenResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"client_id":     c.clientID,
			"client_secret": c.clientSecret,
			"refresh_token": refreshToken,
			"grant_type":    "refresh_token",
		}).
		SetResult(&tr).
		Post(c.authURL + "/token")
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("token refresh failed with HTTP %d: %s", resp.StatusCode(), resp.Body())
	}

	token := &domain.StravaToken{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    tr.ExpiresAt,
	}

	c.SetAccessToken(token.AccessToken)
	logger.Info("Refreshed Strava access token")
	return token, nil
}

// UploadActivity submits a FIT blob with an idempotency key and returns the
// pollable upload handle.
func (c *Client) UploadActivity(ctx context.Context, fitBytes []byte, externalID, name string) (*UploadStatus, error) {
	var status UploadStatus
	req := c.rest.R().
		SetContext(ctx).
		SetFileReader("file", externalID+".fit", bytes.NewReader(fitBytes)).
		SetFormData(map[string]string{
			"data_type":   "fit",
			"external_id": externalID,
		}).
		SetResult(&status)
	if name != "" {
		req.SetFormData(map[string]string{"name": name})
	}

	resp, err := req.Post("/uploads")
	if err != nil {
		return nil, fmt.Errorf("upload request failed: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("upload failed with HTTP %d: %s", resp.StatusCode(), resp.Body())
	}
	return &status, nil
}

// GetUpload polls the status of a previously submitted upload.
func (c *Client) GetUpload(ctx context.Context, uploadID int64) (*UploadStatus, error) {
	var status UploadStatus
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&status).
		Get(fmt.Sprintf("/uploads/%d", uploadID))
	if err != nil {
		return nil, fmt.Errorf("upload status request failed: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("upload status failed with HTTP %d: %s", resp.StatusCode(), resp.Body())
	}
	return &status, nil
}

// GetActivities lists the athlete's activities. When after is non-zero only
// activities started after it are returned.
func (c *Client) GetActivities(ctx context.Context, after time.Time, limit int) ([]SummaryActivity, error) {
	var activities []SummaryActivity
	req := c.rest.R().
		SetContext(ctx).
		SetQueryParam("per_page", fmt.Sprintf("%d", limit)).
		SetResult(&activities)
	if !after.IsZero() {
		req.SetQueryParam("after", fmt.Sprintf("%d", after.Unix()))
	}

	resp, err := req.Get("/athlete/activities")
	if err != nil {
		return nil, fmt.Errorf("activity list request failed: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("activity list failed with HTTP %d: %s", resp.StatusCode(), resp.Body())
	}
	return activities, nil
}

// UpdateActivityGear sets the gear assigned to an activity.
func (c *Client) UpdateActivityGear(ctx context.Context, activityID int64, gearID string) error {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(map[string]string{"gear_id": gearID}).
		Put(fmt.Sprintf("/activities/%d", activityID))
	if err != nil {
		return fmt.Errorf("gear update request failed: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("gear update failed with HTTP %d: %s", resp.StatusCode(), resp.Body())
	}
	return nil
}

// GetAthlete fetches the authenticated athlete's profile.
func (c *Client) GetAthlete(ctx context.Context) (*Athlete, error) {
	var athlete Athlete
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&athlete).
		Get("/athlete")
	if err != nil {
		return nil, fmt.Errorf("athlete request failed: %w", err)
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		return nil, fmt.Errorf("athlete request unauthorized")
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("athlete request failed with HTTP %d", resp.StatusCode())
	}
	return &athlete, nil
}
