// Package adapter provides the Strava API client: OAuth token exchange and
// refresh, athlete profile lookup, and paginated activity fetching.
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/strava-board/internal/errors"
	"github.com/strava-board/internal/logging"
	"github.com/strava-board/internal/types"
)

const (
	defaultAuthBaseURL = "https://www.strava.com/oauth"
	defaultAPIBaseURL  = "https://www.strava.com/api/v3"

	// activitiesPerPage is the maximum page size Strava allows
	activitiesPerPage = 200
)

// StravaClient talks to the Strava OAuth and REST API
type StravaClient struct {
	clientID     string
	clientSecret string
	redirectURI  string
	authBaseURL  string
	apiBaseURL   string
	client       *http.Client
	limiter      *rate.Limiter // global throttle across all API calls
	logger       *logging.Logger
}

// NewStravaClient creates a Strava API client. requestsPerSec throttles all
// outbound API calls globally; Strava's app limit is 100 requests per 15
// minutes, so the default configuration stays well under it.
func NewStravaClient(clientID, clientSecret, redirectURI string, requestsPerSec float64) *StravaClient {
	if requestsPerSec <= 0 {
		requestsPerSec = 0.1
	}
	return &StravaClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		authBaseURL:  defaultAuthBaseURL,
		apiBaseURL:   defaultAPIBaseURL,
		client:       &http.Client{Timeout: 30 * time.Second},
		limiter:      rate.NewLimiter(rate.Limit(requestsPerSec), 1),
		logger:       logging.GetGlobalLogger().WithField("component", "strava_client"),
	}
}

// NewStravaClientForTest creates a client pointed at a test server, with no
// throttling.
func NewStravaClientForTest(baseURL string) *StravaClient {
	c := NewStravaClient("test-client", "test-secret", "http://127.0.0.1/auth/callback", 1000)
	c.authBaseURL = baseURL + "/oauth"
	c.apiBaseURL = baseURL + "/api/v3"
	return c
}

// AuthorizeURL builds the Strava authorization redirect URL
func (c *StravaClient) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("client_id", c.clientID)
	q.Set("redirect_uri", c.redirectURI)
	q.Set("response_type", "code")
	q.Set("approval_prompt", "auto")
	q.Set("scope", "read,activity:read_all")
	if state != "" {
		q.Set("state", state)
	}
	return c.authBaseURL + "/authorize?" + q.Encode()
}

// tokenWire is the OAuth token endpoint response
type tokenWire struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
	Athlete      *struct {
		ID        int64  `json:"id"`
		FirstName string `json:"firstname"`
		LastName  string `json:"lastname"`
		Profile   string `json:"profile"`
	} `json:"athlete"`
}

// ExchangeCode exchanges an authorization code for tokens. The athlete summary
// embedded in Strava's token response is returned alongside, saving a profile
// round-trip during the callback.
func (c *StravaClient) ExchangeCode(ctx context.Context, code string) (*types.TokenResponse, *types.Athlete, error) {
	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("code", code)
	form.Set("grant_type", "authorization_code")

	wire, err := c.postToken(ctx, form)
	if err != nil {
		return nil, nil, err
	}

	token := &types.TokenResponse{
		AccessToken:  wire.AccessToken,
		RefreshToken: wire.RefreshToken,
		ExpiresAt:    wire.ExpiresAt,
	}

	var athlete *types.Athlete
	if wire.Athlete != nil {
		athlete = &types.Athlete{
			ID:        wire.Athlete.ID,
			FirstName: wire.Athlete.FirstName,
			LastName:  wire.Athlete.LastName,
			Profile:   wire.Athlete.Profile,
		}
	}

	return token, athlete, nil
}

// RefreshToken exchanges a refresh token for a fresh access token
func (c *StravaClient) RefreshToken(ctx context.Context, refreshToken string) (*types.TokenResponse, error) {
	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("refresh_token", refreshToken)
	form.Set("grant_type", "refresh_token")

	wire, err := c.postToken(ctx, form)
	if err != nil {
		return nil, err
	}

	return &types.TokenResponse{
		AccessToken:  wire.AccessToken,
		RefreshToken: wire.RefreshToken,
		ExpiresAt:    wire.ExpiresAt,
	}, nil
}

func (c *StravaClient) postToken(ctx context.Context, form url.Values) (*tokenWire, error) {
	endpoint := c.authBaseURL + "/token"

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.NewUpstreamUnavailableError("/oauth/token", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewUpstreamUnavailableError("/oauth/token", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.WithField("status", resp.StatusCode).Warn("Token endpoint returned non-success status")
		return nil, errors.NewUpstreamUnavailableError("/oauth/token",
			fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200)))
	}

	var wire tokenWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, errors.NewUpstreamUnavailableError("/oauth/token",
			fmt.Errorf("failed to parse token response: %w", err))
	}
	if wire.AccessToken == "" {
		return nil, errors.NewUpstreamUnavailableError("/oauth/token",
			fmt.Errorf("token response missing access_token"))
	}

	return &wire, nil
}

// FetchAthlete fetches the authenticated athlete's profile
func (c *StravaClient) FetchAthlete(ctx context.Context, accessToken string) (*types.Athlete, error) {
	body, err := c.get(ctx, "/athlete", accessToken, nil)
	if err != nil {
		return nil, err
	}

	var athlete types.Athlete
	if err := json.Unmarshal(body, &athlete); err != nil {
		return nil, errors.NewUpstreamUnavailableError("/athlete",
			fmt.Errorf("failed to parse athlete response: %w", err))
	}
	return &athlete, nil
}

// FetchActivities fetches all of the athlete's activities started after the
// cutoff, paging until a short page. Payloads come back raw; the caller parses
// and filters them so one bad activity never poisons a whole page.
func (c *StravaClient) FetchActivities(ctx context.Context, accessToken string, after time.Time) ([]json.RawMessage, error) {
	var all []json.RawMessage

	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("after", strconv.FormatInt(after.Unix(), 10))
		q.Set("per_page", strconv.Itoa(activitiesPerPage))
		q.Set("page", strconv.Itoa(page))

		body, err := c.get(ctx, "/athlete/activities", accessToken, q)
		if err != nil {
			return nil, err
		}

		var batch []json.RawMessage
		if err := json.Unmarshal(body, &batch); err != nil {
			return nil, errors.NewUpstreamUnavailableError("/athlete/activities",
				fmt.Errorf("failed to parse activities page %d: %w", page, err))
		}

		all = append(all, batch...)
		if len(batch) < activitiesPerPage {
			break
		}
	}

	c.logger.WithField("count", len(all)).Debug("Fetched activities from Strava")
	return all, nil
}

// get performs a throttled authorized GET against the Strava API
func (c *StravaClient) get(ctx context.Context, path string, accessToken string, q url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := c.apiBaseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.NewUpstreamUnavailableError(path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewUpstreamUnavailableError(path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.WithFields(map[string]interface{}{
			"path":   path,
			"status": resp.StatusCode,
		}).Warn("Strava API returned non-success status")
		return nil, errors.NewUpstreamUnavailableError(path,
			fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body, 200)))
	}

	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
