package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/strava-board/internal/clubs"
	apperrors "github.com/strava-board/internal/errors"
	"github.com/strava-board/internal/logging"
	"github.com/strava-board/internal/models"
)

// RunRepository handles run persistence
type RunRepository struct {
	db     *PostgresDB
	logger *logging.Logger
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *PostgresDB) *RunRepository {
	return &RunRepository{
		db:     db,
		logger: logging.GetGlobalLogger().WithField("component", "run_repository"),
	}
}

const runColumns = `id, user_id, strava_activity_id, name, distance, moving_time,
		elapsed_time, elevation_gain, start_date, start_date_local, timezone,
		average_speed, max_speed, location_city, location_country, club_name,
		raw_payload, created_at, updated_at`

// Upsert inserts a run or, if the user already has a run with the same Strava
// activity id, replaces its mutable fields. Syncing the same window twice
// therefore leaves the table unchanged.
func (r *RunRepository) Upsert(ctx context.Context, run *models.Run) error {
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now

	query := `
		INSERT INTO runs (id, user_id, strava_activity_id, name, distance, moving_time,
			elapsed_time, elevation_gain, start_date, start_date_local, timezone,
			average_speed, max_speed, location_city, location_country, club_name,
			raw_payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (user_id, strava_activity_id) DO UPDATE SET
			name = EXCLUDED.name,
			distance = EXCLUDED.distance,
			moving_time = EXCLUDED.moving_time,
			elapsed_time = EXCLUDED.elapsed_time,
			elevation_gain = EXCLUDED.elevation_gain,
			start_date = EXCLUDED.start_date,
			start_date_local = EXCLUDED.start_date_local,
			timezone = EXCLUDED.timezone,
			average_speed = EXCLUDED.average_speed,
			max_speed = EXCLUDED.max_speed,
			location_city = EXCLUDED.location_city,
			location_country = EXCLUDED.location_country,
			club_name = EXCLUDED.club_name,
			raw_payload = EXCLUDED.raw_payload,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Pool().Exec(ctx, query,
		run.ID,
		run.UserID,
		run.StravaActivityID,
		run.Name,
		run.Distance,
		run.MovingTime,
		run.ElapsedTime,
		run.ElevationGain,
		run.StartDate,
		run.StartDateLocal,
		run.Timezone,
		run.AverageSpeed,
		run.MaxSpeed,
		nullIfEmpty(run.LocationCity),
		nullIfEmpty(run.LocationCountry),
		nullIfEmpty(run.ClubName),
		run.RawPayload,
		run.CreatedAt,
		run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert run: %w", err)
	}

	return nil
}

// GetByID retrieves a run by ID
func (r *RunRepository) GetByID(ctx context.Context, id string) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`

	run, err := scanRun(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("run", id)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListByUser retrieves all runs for a user, oldest first by local start time
func (r *RunRepository) ListByUser(ctx context.Context, userID string) ([]*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE user_id = $1 ORDER BY start_date_local ASC`
	return r.list(ctx, query, userID)
}

// ListByUserAndClub retrieves a user's runs classified into one club,
// oldest first by local start time
func (r *RunRepository) ListByUserAndClub(ctx context.Context, userID, clubName string) ([]*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs
		WHERE user_id = $1 AND club_name = $2 ORDER BY start_date_local ASC`
	return r.list(ctx, query, userID, clubName)
}

// ListByClubAndYear retrieves all runs in a club whose local start date falls
// in the given calendar year, across all users
func (r *RunRepository) ListByClubAndYear(ctx context.Context, clubName string, year int) ([]*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs
		WHERE club_name = $1 AND EXTRACT(YEAR FROM start_date_local) = $2
		ORDER BY start_date_local ASC`
	return r.list(ctx, query, clubName, year)
}

// ListByYear retrieves all runs whose local start date falls in the given
// calendar year, across all users. Used to build leaderboards.
func (r *RunRepository) ListByYear(ctx context.Context, year int) ([]*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs
		WHERE EXTRACT(YEAR FROM start_date_local) = $1
		ORDER BY start_date_local ASC`
	return r.list(ctx, query, year)
}

// CountByUser returns the number of runs stored for a user
func (r *RunRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM runs WHERE user_id = $1`

	if err := r.db.Pool().QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}

	return count, nil
}

// ReclassifyAll re-runs the classifier over every stored run with the given
// rule set and returns how many club assignments changed. Runs with an
// archived raw payload are re-parsed in full; runs without one fall back to
// the stored summary columns, which carry everything the classifier reads.
func (r *RunRepository) ReclassifyAll(ctx context.Context, rules clubs.RuleSet) (int, error) {
	runs, err := r.list(ctx, `SELECT `+runColumns+` FROM runs ORDER BY start_date_local ASC`)
	if err != nil {
		return 0, err
	}
	return r.reclassify(ctx, runs, rules)
}

// ReclassifyByUser re-runs the classifier over one user's runs and returns how
// many club assignments changed
func (r *RunRepository) ReclassifyByUser(ctx context.Context, userID string, rules clubs.RuleSet) (int, error) {
	runs, err := r.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return r.reclassify(ctx, runs, rules)
}

func (r *RunRepository) reclassify(ctx context.Context, runs []*models.Run, rules clubs.RuleSet) (int, error) {
	changed := 0
	for _, run := range runs {
		newClub := r.classify(run, rules)
		if newClub == run.ClubName {
			continue
		}

		query := `UPDATE runs SET club_name = $2, updated_at = $3 WHERE id = $1`
		if _, err := r.db.Pool().Exec(ctx, query, run.ID, nullIfEmpty(newClub), time.Now().UTC()); err != nil {
			return changed, fmt.Errorf("failed to reclassify run %s: %w", run.ID, err)
		}
		changed++
	}

	return changed, nil
}

func (r *RunRepository) classify(run *models.Run, rules clubs.RuleSet) string {
	if len(run.RawPayload) > 0 {
		rec, err := models.ParseActivity(run.RawPayload, rules)
		if err == nil {
			return rec.ClubName
		}
		r.logger.WithField("runId", run.ID).WithError(err).Warn("Archived payload unparseable, classifying from summary columns")
	}

	loc := clubs.Location{City: run.LocationCity, Country: run.LocationCountry}
	if club, ok := clubs.Classify(run.StartDateLocal, loc, rules); ok {
		return club
	}
	return ""
}

func (r *RunRepository) list(ctx context.Context, query string, args ...any) ([]*models.Run, error) {
	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

func scanRun(row rowScanner) (*models.Run, error) {
	var run models.Run
	var city, country, club *string

	err := row.Scan(
		&run.ID,
		&run.UserID,
		&run.StravaActivityID,
		&run.Name,
		&run.Distance,
		&run.MovingTime,
		&run.ElapsedTime,
		&run.ElevationGain,
		&run.StartDate,
		&run.StartDateLocal,
		&run.Timezone,
		&run.AverageSpeed,
		&run.MaxSpeed,
		&city,
		&country,
		&club,
		&run.RawPayload,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	run.LocationCity = stringValue(city)
	run.LocationCountry = stringValue(country)
	run.ClubName = stringValue(club)

	return &run, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func stringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
