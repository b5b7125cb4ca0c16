package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	apperrors "github.com/strava-board/internal/errors"
	"github.com/strava-board/internal/models"
)

// UserRepository handles user persistence
type UserRepository struct {
	db *PostgresDB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *PostgresDB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, strava_id, first_name, last_name, profile_photo,
		access_token, refresh_token, token_expiry, last_synced_at, created_at, updated_at`

// UpsertByStravaID inserts the user or, if the Strava athlete id is already
// known, refreshes the stored profile and tokens. The existing row id is
// preserved so runs keep their owner across repeat logins.
func (r *UserRepository) UpsertByStravaID(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, strava_id, first_name, last_name, profile_photo,
			access_token, refresh_token, token_expiry, last_synced_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (strava_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			profile_photo = EXCLUDED.profile_photo,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expiry = EXCLUDED.token_expiry,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	var lastSynced *time.Time
	if !user.LastSyncedAt.IsZero() {
		lastSynced = &user.LastSyncedAt
	}

	err := r.db.Pool().QueryRow(ctx, query,
		user.ID,
		user.StravaID,
		user.FirstName,
		user.LastName,
		user.ProfilePhoto,
		user.AccessToken,
		user.RefreshToken,
		user.TokenExpiry,
		lastSynced,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanOne(r.db.Pool().QueryRow(ctx, query, id), id)
}

// GetByStravaID retrieves a user by Strava athlete id
func (r *UserRepository) GetByStravaID(ctx context.Context, stravaID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE strava_id = $1`
	return r.scanOne(r.db.Pool().QueryRow(ctx, query, stravaID), fmt.Sprintf("strava:%d", stravaID))
}

// List retrieves all users ordered by creation time
func (r *UserRepository) List(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at ASC`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// UpdateTokens updates a user's OAuth tokens after a refresh
func (r *UserRepository) UpdateTokens(ctx context.Context, userID, accessToken, refreshToken string, expiry time.Time) error {
	query := `
		UPDATE users
		SET access_token = $2, refresh_token = $3, token_expiry = $4, updated_at = $5
		WHERE id = $1
	`

	result, err := r.db.Pool().Exec(ctx, query, userID, accessToken, refreshToken, expiry, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update user tokens: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("user", userID)
	}

	return nil
}

// UpdateLastSyncedAt records when the user's activities were last synced
func (r *UserRepository) UpdateLastSyncedAt(ctx context.Context, userID string, at time.Time) error {
	query := `UPDATE users SET last_synced_at = $2, updated_at = $3 WHERE id = $1`

	result, err := r.db.Pool().Exec(ctx, query, userID, at, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update last synced time: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("user", userID)
	}

	return nil
}

// Count returns the total number of users
func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM users`

	if err := r.db.Pool().QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}

	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *UserRepository) scanOne(row rowScanner, ref string) (*models.User, error) {
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("user", ref)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	var lastSynced *time.Time

	err := row.Scan(
		&user.ID,
		&user.StravaID,
		&user.FirstName,
		&user.LastName,
		&user.ProfilePhoto,
		&user.AccessToken,
		&user.RefreshToken,
		&user.TokenExpiry,
		&lastSynced,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastSynced != nil {
		user.LastSyncedAt = *lastSynced
	}

	return &user, nil
}
