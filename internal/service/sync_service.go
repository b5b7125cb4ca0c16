package service

import (
	"context"
	"fmt"
	"time"

	"github.com/strava-board/internal/clubs"
	"github.com/strava-board/internal/logging"
	"github.com/strava-board/internal/models"
	"github.com/strava-board/internal/types"
)

// SyncService pulls activities from Strava and stores them as runs
type SyncService struct {
	client StravaAPI
	auth   *AuthService
	users  UserStore
	runs   RunStore
	rules  clubs.RuleSet
	cache  LeaderboardCache // may be nil
	logger *logging.Logger
}

// NewSyncService creates a new sync service
func NewSyncService(client StravaAPI, auth *AuthService, users UserStore, runs RunStore, rules clubs.RuleSet, cache LeaderboardCache) *SyncService {
	return &SyncService{
		client: client,
		auth:   auth,
		users:  users,
		runs:   runs,
		rules:  rules,
		cache:  cache,
		logger: logging.GetGlobalLogger().WithField("component", "sync_service"),
	}
}

// defaultSince returns the default sync window start: January 1st of the
// previous year, UTC. Wide enough for year-over-year views without pulling a
// full athlete history on every sync.
func defaultSince(now time.Time) time.Time {
	return time.Date(now.UTC().Year()-1, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// Sync fetches the user's activities since the given cutoff and upserts the
// runs among them. A zero cutoff uses the default window.
//
// Items are processed independently: a malformed payload or a non-run
// activity is counted as skipped and never aborts the batch. Storage failures
// do abort, since continuing would silently drop data.
func (s *SyncService) Sync(ctx context.Context, user *models.User, since time.Time) (*types.SyncResult, error) {
	log := s.logger.WithField("userId", user.ID)

	token, err := s.auth.EnsureFreshToken(ctx, user)
	if err != nil {
		return nil, err
	}

	if since.IsZero() {
		since = defaultSince(time.Now())
	}

	raws, err := s.client.FetchActivities(ctx, token, since)
	if err != nil {
		return nil, err
	}

	result := &types.SyncResult{Fetched: len(raws)}

	for _, raw := range raws {
		rec, err := models.ParseActivity(raw, s.rules)
		if err != nil {
			result.Skipped++
			log.WithError(err).Warn("Skipping malformed activity payload")
			continue
		}
		if !rec.IsRun() {
			result.Skipped++
			continue
		}

		run := models.NewRunFromActivity(user.ID, rec)
		if err := s.runs.Upsert(ctx, run); err != nil {
			return result, err
		}
		result.Upserted++
	}

	if err := s.users.UpdateLastSyncedAt(ctx, user.ID, time.Now().UTC()); err != nil {
		log.WithError(err).Warn("Failed to record sync time")
	}

	if result.Upserted > 0 {
		s.invalidateCache(ctx)
	}

	log.WithFields(map[string]interface{}{
		"fetched":  result.Fetched,
		"upserted": result.Upserted,
		"skipped":  result.Skipped,
	}).Info("Sync completed")

	return result, nil
}

// SyncByID syncs the user with the given id
func (s *SyncService) SyncByID(ctx context.Context, userID string, since time.Time) (*types.SyncResult, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.Sync(ctx, user, since)
}

// SyncAll syncs every known user with the default window. Per-user failures
// are logged and do not stop the loop; the worker retries on its next tick.
func (s *SyncService) SyncAll(ctx context.Context) (*types.SyncResult, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users for sync: %w", err)
	}

	total := &types.SyncResult{}
	for _, user := range users {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}

		result, err := s.Sync(ctx, user, time.Time{})
		if err != nil {
			s.logger.WithField("userId", user.ID).WithError(err).Error("User sync failed")
			continue
		}
		total.Fetched += result.Fetched
		total.Upserted += result.Upserted
		total.Skipped += result.Skipped
	}

	return total, nil
}

// ReclassifyAll re-runs the classifier over every stored run and returns the
// number of changed club assignments
func (s *SyncService) ReclassifyAll(ctx context.Context) (int, error) {
	changed, err := s.runs.ReclassifyAll(ctx, s.rules)
	if err != nil {
		return changed, err
	}
	if changed > 0 {
		s.invalidateCache(ctx)
	}
	s.logger.WithField("changed", changed).Info("Reclassification completed")
	return changed, nil
}

// ReclassifyUser re-runs the classifier over one user's runs
func (s *SyncService) ReclassifyUser(ctx context.Context, userID string) (int, error) {
	changed, err := s.runs.ReclassifyByUser(ctx, userID, s.rules)
	if err != nil {
		return changed, err
	}
	if changed > 0 {
		s.invalidateCache(ctx)
	}
	return changed, nil
}

func (s *SyncService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateLeaderboards(ctx); err != nil {
		s.logger.WithError(err).Warn("Failed to invalidate leaderboard cache")
	}
}
