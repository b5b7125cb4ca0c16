package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/strava-board/internal/clubs"
	"github.com/strava-board/internal/config"
	apperrors "github.com/strava-board/internal/errors"
	"github.com/strava-board/internal/models"
)

// integrationDB connects to a local development database; the test skips when
// Postgres is not available.
func integrationDB(t *testing.T) *PostgresDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := &config.PostgresConfig{
		Host:           "localhost",
		Port:           "5432",
		Database:       "strava_board_test",
		User:           "strava",
		Password:       "strava_dev_password",
		MaxConnections: 5,
	}

	db, err := NewPostgresDB(cfg)
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
	}

	t.Cleanup(db.Close)

	if err := RunMigrations(cfg.PostgresURL(), "../../migrations"); err != nil {
		t.Skipf("Skipping test - migrations failed: %v", err)
	}

	return db
}

func testUser(t *testing.T, db *PostgresDB) *models.User {
	t.Helper()
	repo := NewUserRepository(db)
	user := &models.User{
		StravaID:     time.Now().UnixNano(), // unique per test run
		FirstName:    "Integration",
		LastName:     "Test",
		AccessToken:  "token",
		RefreshToken: "refresh",
		TokenExpiry:  time.Now().Add(time.Hour).UTC(),
	}
	if err := repo.UpsertByStravaID(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func testRun(userID string, activityID int64, local time.Time) *models.Run {
	return &models.Run{
		ID:               uuid.New().String(),
		UserID:           userID,
		StravaActivityID: activityID,
		Name:             "Integration Run",
		Distance:         10000,
		MovingTime:       3000,
		ElapsedTime:      3100,
		StartDate:        local.Add(-8 * time.Hour),
		StartDateLocal:   local,
		Timezone:         "(GMT+08:00) Asia/Singapore",
		AverageSpeed:     3.33,
		MaxSpeed:         4.5,
		RawPayload:       json.RawMessage(`{}`),
	}
}

func TestUserUpsertKeepsRowAcrossLogins(t *testing.T) {
	db := integrationDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := testUser(t, db)
	originalID := user.ID

	again := &models.User{
		StravaID:     user.StravaID,
		FirstName:    "Renamed",
		AccessToken:  "new-token",
		RefreshToken: "new-refresh",
		TokenExpiry:  time.Now().Add(2 * time.Hour).UTC(),
	}
	if err := repo.UpsertByStravaID(ctx, again); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if again.ID != originalID {
		t.Errorf("repeat login created a new row: got id %s, want %s", again.ID, originalID)
	}

	stored, err := repo.GetByStravaID(ctx, user.StravaID)
	if err != nil {
		t.Fatalf("GetByStravaID: %v", err)
	}
	if stored.FirstName != "Renamed" || stored.AccessToken != "new-token" {
		t.Errorf("profile/tokens not refreshed: %+v", stored)
	}
}

func TestGetUnknownIDReturnsNotFound(t *testing.T) {
	db := integrationDB(t)
	ctx := context.Background()

	_, err := NewUserRepository(db).GetByID(ctx, uuid.New().String())
	if err == nil {
		t.Fatal("expected an error for an unknown user id")
	}
	if catErr := apperrors.Categorize(err); catErr.Code != "NOT_FOUND" || catErr.StatusCode != 404 {
		t.Errorf("unknown user: got %s/%d, want NOT_FOUND/404", catErr.Code, catErr.StatusCode)
	}

	_, err = NewRunRepository(db).GetByID(ctx, uuid.New().String())
	if err == nil {
		t.Fatal("expected an error for an unknown run id")
	}
	if catErr := apperrors.Categorize(err); catErr.Code != "NOT_FOUND" || catErr.StatusCode != 404 {
		t.Errorf("unknown run: got %s/%d, want NOT_FOUND/404", catErr.Code, catErr.StatusCode)
	}
}

func TestRunUpsertIsIdempotent(t *testing.T) {
	db := integrationDB(t)
	repo := NewRunRepository(db)
	ctx := context.Background()

	user := testUser(t, db)
	local := time.Date(2026, time.January, 4, 11, 0, 0, 0, time.UTC)

	run := testRun(user.ID, 555001, local)
	if err := repo.Upsert(ctx, run); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	// Same activity again, updated fields
	update := testRun(user.ID, 555001, local)
	update.Name = "Renamed Run"
	update.Distance = 12000
	if err := repo.Upsert(ctx, update); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	runs, err := repo.ListByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run after duplicate upsert, got %d", len(runs))
	}
	if runs[0].Name != "Renamed Run" || runs[0].Distance != 12000 {
		t.Errorf("row not updated in place: %+v", runs[0])
	}
}

func TestReclassifyByUserFromSummaryColumns(t *testing.T) {
	db := integrationDB(t)
	repo := NewRunRepository(db)
	ctx := context.Background()

	user := testUser(t, db)
	sunday := time.Date(2026, time.January, 4, 11, 0, 0, 0, time.UTC)

	run := testRun(user.ID, 555002, sunday)
	run.RawPayload = nil // force the degraded summary path
	if err := repo.Upsert(ctx, run); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	rules, err := clubs.ParseRules([]byte(`[{
		"name": "Sunday Morning Club",
		"days": ["sunday"],
		"time_window": {"start": "10:30", "end": "12:30"}
	}]`))
	if err != nil {
		t.Fatalf("ParseRules: %v", err)
	}

	changed, err := repo.ReclassifyByUser(ctx, user.ID, rules)
	if err != nil {
		t.Fatalf("ReclassifyByUser: %v", err)
	}
	if changed != 1 {
		t.Errorf("expected 1 changed assignment, got %d", changed)
	}

	runs, err := repo.ListByUserAndClub(ctx, user.ID, "Sunday Morning Club")
	if err != nil {
		t.Fatalf("ListByUserAndClub: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("expected the run to classify into the club, got %d runs", len(runs))
	}
}
