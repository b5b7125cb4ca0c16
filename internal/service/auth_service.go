package service

import (
	"context"
	"fmt"
	"time"

	"github.com/strava-board/internal/errors"
	"github.com/strava-board/internal/logging"
	"github.com/strava-board/internal/models"
)

// AuthService handles the Strava OAuth dance and token lifecycle
type AuthService struct {
	client StravaAPI
	users  UserStore
	logger *logging.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(client StravaAPI, users UserStore) *AuthService {
	return &AuthService{
		client: client,
		users:  users,
		logger: logging.GetGlobalLogger().WithField("component", "auth_service"),
	}
}

// AuthorizeURL returns the Strava authorization URL to redirect the user to
func (s *AuthService) AuthorizeURL(state string) string {
	return s.client.AuthorizeURL(state)
}

// HandleCallback completes the OAuth flow: exchanges the authorization code,
// resolves the athlete profile, and upserts the user. A returning athlete
// keeps their row and runs; only tokens and profile refresh.
func (s *AuthService) HandleCallback(ctx context.Context, code string) (*models.User, error) {
	token, athlete, err := s.client.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	// Strava embeds the athlete in the token response; fall back to an
	// explicit profile fetch if it ever doesn't.
	if athlete == nil {
		athlete, err = s.client.FetchAthlete(ctx, token.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch athlete profile: %w", err)
		}
	}

	user := &models.User{
		StravaID:     athlete.ID,
		FirstName:    athlete.FirstName,
		LastName:     athlete.LastName,
		ProfilePhoto: athlete.Profile,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenExpiry:  time.Unix(token.ExpiresAt, 0).UTC(),
	}

	if err := s.users.UpsertByStravaID(ctx, user); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"userId":   user.ID,
		"stravaId": user.StravaID,
	}).Info("User authenticated")

	return user, nil
}

// EnsureFreshToken returns a usable access token for the user, refreshing it
// first if expired. An expired token with no stored refresh token yields
// TOKEN_EXPIRED_NO_REFRESH; the user must re-authenticate.
func (s *AuthService) EnsureFreshToken(ctx context.Context, user *models.User) (string, error) {
	if !user.TokenExpired() {
		return user.AccessToken, nil
	}

	if !user.HasRefreshToken() {
		return "", errors.NewTokenExpiredError(user.ID)
	}

	token, err := s.client.RefreshToken(ctx, user.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}

	expiry := time.Unix(token.ExpiresAt, 0).UTC()
	if err := s.users.UpdateTokens(ctx, user.ID, token.AccessToken, token.RefreshToken, expiry); err != nil {
		return "", err
	}

	user.AccessToken = token.AccessToken
	user.RefreshToken = token.RefreshToken
	user.TokenExpiry = expiry

	s.logger.WithField("userId", user.ID).Debug("Access token refreshed")
	return token.AccessToken, nil
}
