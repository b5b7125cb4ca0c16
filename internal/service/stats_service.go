package service

import (
	"context"

	"github.com/strava-board/internal/clubs"
	"github.com/strava-board/internal/logging"
	"github.com/strava-board/internal/models"
	"github.com/strava-board/internal/types"
)

// StatsService serves aggregated views over stored runs. Reads go through the
// run repository and the pure aggregation functions; club leaderboards are
// cached in Redis and rebuilt on a miss.
type StatsService struct {
	users  UserStore
	runs   RunStore
	rules  clubs.RuleSet
	cache  LeaderboardCache // may be nil
	logger *logging.Logger
}

// NewStatsService creates a new stats service
func NewStatsService(users UserStore, runs RunStore, rules clubs.RuleSet, cache LeaderboardCache) *StatsService {
	return &StatsService{
		users:  users,
		runs:   runs,
		rules:  rules,
		cache:  cache,
		logger: logging.GetGlobalLogger().WithField("component", "stats_service"),
	}
}

// Rules returns the active club rule set
func (s *StatsService) Rules() clubs.RuleSet {
	return s.rules
}

// GetUser returns a user by id
func (s *StatsService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

// ListRuns returns a user's runs, optionally filtered to one club,
// oldest first
func (s *StatsService) ListRuns(ctx context.Context, userID, clubName string) ([]*models.Run, error) {
	if clubName != "" {
		return s.runs.ListByUserAndClub(ctx, userID, clubName)
	}
	return s.runs.ListByUser(ctx, userID)
}

// WeeklyGroups returns a user's runs bucketed into Monday-anchored weeks
func (s *StatsService) WeeklyGroups(ctx context.Context, userID string) ([]WeekGroup, error) {
	runs, err := s.runs.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return GroupRunsByWeek(runs), nil
}

// MonthlyGroups returns a user's runs bucketed by month, optionally filtered
// to one club
func (s *StatsService) MonthlyGroups(ctx context.Context, userID, clubName string) ([]MonthGroup, error) {
	runs, err := s.ListRuns(ctx, userID, clubName)
	if err != nil {
		return nil, err
	}
	return GroupRunsByMonth(runs), nil
}

// Streak returns the user's longest consecutive-day run streak
func (s *StatsService) Streak(ctx context.Context, userID string) (int, error) {
	runs, err := s.runs.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return LongestStreak(runs), nil
}

// UserClubs returns the clubs the user's runs have been classified into
func (s *StatsService) UserClubs(ctx context.Context, userID string) ([]string, error) {
	runs, err := s.runs.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return UniqueClubs(runs), nil
}

// ClubLeaderboard returns the per-month ranked leaderboard for one club and
// year. The ascending variant is cached; the descending order is a reversal
// of the cached month blocks, so both orders share one cache entry.
func (s *StatsService) ClubLeaderboard(ctx context.Context, clubName string, year int, order types.MonthOrder) ([]types.MonthLeaderboard, error) {
	slug := clubs.NameToSlug(clubName)

	board, ok := s.cachedLeaderboard(ctx, slug, year)
	if !ok {
		runs, err := s.runs.ListByClubAndYear(ctx, clubName, year)
		if err != nil {
			return nil, err
		}

		names, err := s.userNames(ctx)
		if err != nil {
			return nil, err
		}

		board = ComputeLeaderboard(runs, names, types.MonthAscending)

		if s.cache != nil {
			if err := s.cache.SetLeaderboard(ctx, slug, year, board); err != nil {
				s.logger.WithError(err).Warn("Failed to cache leaderboard")
			}
		}
	}

	if order == types.MonthDescending {
		reversed := make([]types.MonthLeaderboard, len(board))
		for i, block := range board {
			reversed[len(board)-1-i] = block
		}
		return reversed, nil
	}
	return board, nil
}

func (s *StatsService) cachedLeaderboard(ctx context.Context, slug string, year int) ([]types.MonthLeaderboard, bool) {
	if s.cache == nil {
		return nil, false
	}
	board, ok, err := s.cache.GetLeaderboard(ctx, slug, year)
	if err != nil {
		s.logger.WithError(err).Warn("Leaderboard cache read failed")
		return nil, false
	}
	return board, ok
}

func (s *StatsService) userNames(ctx context.Context) (map[string]string, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.DisplayName()
	}
	return names, nil
}
