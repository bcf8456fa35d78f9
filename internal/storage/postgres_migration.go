package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"fitvoice/internal/models"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		roles TEXT[] NOT NULL DEFAULT '{}',
		password_hash TEXT NOT NULL DEFAULT '',
		self_signup BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS oauth_accounts (
		provider TEXT NOT NULL,
		subject TEXT NOT NULL,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		email TEXT NOT NULL DEFAULT '',
		display_name TEXT NOT NULL DEFAULT '',
		linked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (provider, subject)
	)`,
	`CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		preferred_language TEXT NOT NULL DEFAULT '',
		weight_unit TEXT NOT NULL DEFAULT '',
		height_cm INTEGER NOT NULL DEFAULT 0,
		weight_kg DOUBLE PRECISION NOT NULL DEFAULT 0,
		goal TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS exercises (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		localized_names JSONB,
		aliases TEXT[],
		category TEXT NOT NULL,
		difficulty TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		default_sets INTEGER NOT NULL DEFAULT 0,
		default_reps INTEGER NOT NULL DEFAULT 0,
		media_url TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		usage_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS exercises_category_idx ON exercises (category) WHERE is_active`,
	`CREATE TABLE IF NOT EXISTS workout_logs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		exercise_id TEXT REFERENCES exercises(id),
		transcript TEXT NOT NULL,
		sets JSONB,
		similarity DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS workout_logs_user_idx ON workout_logs (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS auth_sessions (
		token_hash TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		expires_at TIMESTAMPTZ NOT NULL,
		absolute_expires_at TIMESTAMPTZ NOT NULL
	)`,
}

// MigratePostgres creates the schema when it does not exist yet. The
// statements are idempotent so running it on every start is safe.
func MigratePostgres(ctx context.Context, repo Repository) error {
	pg, ok := repo.(*postgresRepository)
	if !ok {
		return errors.New("repository is not backed by postgres")
	}
	for _, stmt := range postgresSchema {
		if _, err := pg.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// ImportSnapshotToPostgres loads a JSON dataset export into Postgres.
// Existing rows win; the import only fills gaps, which makes re-running
// a partially failed migration safe.
func ImportSnapshotToPostgres(ctx context.Context, repo Repository, snapshot *Snapshot) error {
	pg, ok := repo.(*postgresRepository)
	if !ok {
		return errors.New("repository is not backed by postgres")
	}
	if snapshot == nil {
		return errors.New("snapshot is nil")
	}

	tx, err := pg.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin import transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := importSnapshotUsers(ctx, tx, snapshot); err != nil {
		return err
	}
	if err := importSnapshotOAuthAccounts(ctx, tx, snapshot); err != nil {
		return err
	}
	if err := importSnapshotProfiles(ctx, tx, snapshot); err != nil {
		return err
	}
	if err := importSnapshotExercises(ctx, tx, snapshot); err != nil {
		return err
	}
	if err := importSnapshotWorkoutLogs(ctx, tx, snapshot); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit import transaction: %w", err)
	}
	return nil
}

func importSnapshotUsers(ctx context.Context, tx pgx.Tx, snapshot *Snapshot) error {
	users := append([]models.User(nil), snapshot.Users...)
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	for _, user := range users {
		_, err := tx.Exec(ctx,
			"INSERT INTO users (id, display_name, email, roles, password_hash, self_signup, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (id) DO NOTHING",
			user.ID, user.DisplayName, user.Email, user.Roles, user.PasswordHash, user.SelfSignup, user.CreatedAt)
		if err != nil {
			return fmt.Errorf("import user %s: %w", user.ID, err)
		}
	}
	return nil
}

func importSnapshotOAuthAccounts(ctx context.Context, tx pgx.Tx, snapshot *Snapshot) error {
	accounts := append([]models.OAuthAccount(nil), snapshot.OAuthAccounts...)
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].Provider == accounts[j].Provider {
			return accounts[i].Subject < accounts[j].Subject
		}
		return accounts[i].Provider < accounts[j].Provider
	})
	for _, account := range accounts {
		_, err := tx.Exec(ctx,
			"INSERT INTO oauth_accounts (provider, subject, user_id, email, display_name, linked_at) VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (provider, subject) DO NOTHING",
			account.Provider, account.Subject, account.UserID, account.Email, account.DisplayName, account.LinkedAt)
		if err != nil {
			return fmt.Errorf("import oauth account %s:%s: %w", account.Provider, account.Subject, err)
		}
	}
	return nil
}

func importSnapshotProfiles(ctx context.Context, tx pgx.Tx, snapshot *Snapshot) error {
	profiles := append([]models.Profile(nil), snapshot.Profiles...)
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].UserID < profiles[j].UserID })
	for _, profile := range profiles {
		_, err := tx.Exec(ctx,
			"INSERT INTO profiles (user_id, preferred_language, weight_unit, height_cm, weight_kg, goal, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (user_id) DO NOTHING",
			profile.UserID, profile.PreferredLanguage, profile.WeightUnit, profile.HeightCM, profile.WeightKG, profile.Goal, profile.UpdatedAt)
		if err != nil {
			return fmt.Errorf("import profile %s: %w", profile.UserID, err)
		}
	}
	return nil
}

func importSnapshotExercises(ctx context.Context, tx pgx.Tx, snapshot *Snapshot) error {
	exercises := append([]models.Exercise(nil), snapshot.Exercises...)
	sort.Slice(exercises, func(i, j int) bool { return exercises[i].ID < exercises[j].ID })
	for _, exercise := range exercises {
		_, err := tx.Exec(ctx,
			"INSERT INTO exercises ("+exerciseColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14) ON CONFLICT (id) DO NOTHING",
			exercise.ID, exercise.Name, exercise.LocalizedNames, exercise.Aliases, exercise.Category,
			exercise.Difficulty, exercise.Description, exercise.DefaultSets, exercise.DefaultReps,
			exercise.MediaURL, exercise.IsActive, exercise.UsageCount, exercise.CreatedAt, exercise.UpdatedAt)
		if err != nil {
			return fmt.Errorf("import exercise %s: %w", exercise.ID, err)
		}
	}
	return nil
}

func importSnapshotWorkoutLogs(ctx context.Context, tx pgx.Tx, snapshot *Snapshot) error {
	logs := append([]models.WorkoutLog(nil), snapshot.WorkoutLogs...)
	sort.Slice(logs, func(i, j int) bool { return logs[i].ID < logs[j].ID })
	for _, log := range logs {
		var exerciseID any
		if log.ExerciseID != "" {
			exerciseID = log.ExerciseID
		}
		_, err := tx.Exec(ctx,
			"INSERT INTO workout_logs (id, user_id, exercise_id, transcript, sets, similarity, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (id) DO NOTHING",
			log.ID, log.UserID, exerciseID, log.Transcript, log.Sets, log.Similarity, log.CreatedAt)
		if err != nil {
			return fmt.Errorf("import workout log %s: %w", log.ID, err)
		}
	}
	return nil
}
