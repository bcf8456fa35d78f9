package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"fitvoice/internal/models"
)

const defaultPostgresOpTimeout = 5 * time.Second

type postgresRepository struct {
	pool *pgxpool.Pool
	cfg  PostgresConfig
	now  func() time.Time
}

// NewPostgresRepository opens a Postgres-backed repository. The caller
// must run MigratePostgres before serving traffic against a fresh
// database.
func NewPostgresRepository(dsn string, opts ...Option) (Repository, error) {
	cfg := newPostgresConfig(dsn, opts...)
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = cfg.MaxConnections
	}
	if cfg.MinConnections >= 0 {
		poolCfg.MinConns = cfg.MinConnections
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckInterval > 0 {
		poolCfg.HealthCheckPeriod = cfg.HealthCheckInterval
	}
	if cfg.AcquireTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.AcquireTimeout
	}
	if cfg.ApplicationName != "" {
		if poolCfg.ConnConfig.RuntimeParams == nil {
			poolCfg.ConnConfig.RuntimeParams = make(map[string]string)
		}
		poolCfg.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}

	return &postgresRepository{
		pool: pool,
		cfg:  cfg,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (r *postgresRepository) opCtx() (context.Context, context.CancelFunc) {
	timeout := r.cfg.AcquireTimeout
	if timeout <= 0 {
		timeout = defaultPostgresOpTimeout
	}
	return context.WithTimeout(context.Background(), timeout)
}

func (r *postgresRepository) Ping(ctx context.Context) error {
	if r == nil || r.pool == nil {
		return errors.New("postgres pool not initialised")
	}
	return r.pool.Ping(ctx)
}

func (r *postgresRepository) Close(ctx context.Context) error {
	if r == nil || r.pool == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		r.pool.Close()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// User operations

const userColumns = "id, display_name, email, roles, password_hash, self_signup, created_at"

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.DisplayName, &user.Email, &user.Roles, &user.PasswordHash, &user.SelfSignup, &user.CreatedAt); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *postgresRepository) CreateUser(params CreateUserParams) (models.User, error) {
	normalizedEmail := strings.TrimSpace(strings.ToLower(params.Email))
	if normalizedEmail == "" {
		return models.User{}, errors.New("email is required")
	}
	displayName := strings.TrimSpace(params.DisplayName)
	if displayName == "" {
		return models.User{}, errors.New("displayName is required")
	}

	roles := normalizeRoles(params.Roles)
	if params.SelfSignup {
		if params.Password == "" {
			return models.User{}, errors.New("password is required for self-service signup")
		}
		if len(roles) == 0 {
			roles = []string{"athlete"}
		}
	}

	var passwordHash string
	if params.Password != "" {
		hashed, err := hashPassword(params.Password)
		if err != nil {
			return models.User{}, fmt.Errorf("hash password: %w", err)
		}
		passwordHash = hashed
	}

	user := models.User{
		ID:           newID(),
		DisplayName:  displayName,
		Email:        normalizedEmail,
		Roles:        roles,
		PasswordHash: passwordHash,
		SelfSignup:   params.SelfSignup,
		CreatedAt:    r.now(),
	}

	ctx, cancel := r.opCtx()
	defer cancel()
	_, err := r.pool.Exec(ctx,
		"INSERT INTO users (id, display_name, email, roles, password_hash, self_signup, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		user.ID, user.DisplayName, user.Email, user.Roles, user.PasswordHash, user.SelfSignup, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (r *postgresRepository) AuthenticateUser(email, password string) (models.User, error) {
	if password == "" {
		return models.User{}, errors.New("password is required")
	}
	user, ok := r.FindUserByEmail(email)
	if !ok {
		return models.User{}, ErrInvalidCredentials
	}
	if user.PasswordHash == "" {
		return models.User{}, ErrPasswordLoginUnsupported
	}
	if err := verifyPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, err
	}
	return user, nil
}

func (r *postgresRepository) AuthenticateOAuth(params OAuthLoginParams) (models.User, error) {
	provider := strings.ToLower(strings.TrimSpace(params.Provider))
	subject := strings.TrimSpace(params.Subject)
	if provider == "" || subject == "" {
		return models.User{}, errors.New("provider and subject are required")
	}

	ctx, cancel := r.opCtx()
	defer cancel()

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.User{}, fmt.Errorf("begin oauth transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var userID string
	err = tx.QueryRow(ctx, "SELECT user_id FROM oauth_accounts WHERE provider = $1 AND subject = $2", provider, subject).Scan(&userID)
	switch {
	case err == nil:
		user, scanErr := scanUser(tx.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", userID))
		if scanErr != nil {
			return models.User{}, fmt.Errorf("load linked user: %w", scanErr)
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			return models.User{}, fmt.Errorf("commit oauth transaction: %w", commitErr)
		}
		return user, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return models.User{}, fmt.Errorf("lookup oauth account: %w", err)
	}

	email := strings.TrimSpace(strings.ToLower(params.Email))
	if email == "" {
		email = fmt.Sprintf("%s@%s.oauth", strings.ToLower(subject), provider)
	}

	user, err := scanUser(tx.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", email))
	if errors.Is(err, pgx.ErrNoRows) {
		displayName := strings.TrimSpace(params.DisplayName)
		if displayName == "" {
			displayName = fmt.Sprintf("%s user", provider)
		}
		user = models.User{
			ID:          newID(),
			DisplayName: displayName,
			Email:       email,
			Roles:       []string{"athlete"},
			SelfSignup:  true,
			CreatedAt:   r.now(),
		}
		if _, insErr := tx.Exec(ctx,
			"INSERT INTO users (id, display_name, email, roles, password_hash, self_signup, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
			user.ID, user.DisplayName, user.Email, user.Roles, "", true, user.CreatedAt); insErr != nil {
			return models.User{}, fmt.Errorf("provision oauth user: %w", insErr)
		}
	} else if err != nil {
		return models.User{}, fmt.Errorf("lookup user by email: %w", err)
	}

	_, err = tx.Exec(ctx,
		"INSERT INTO oauth_accounts (provider, subject, user_id, email, display_name, linked_at) VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (provider, subject) DO UPDATE SET user_id = EXCLUDED.user_id, email = EXCLUDED.email, display_name = EXCLUDED.display_name, linked_at = EXCLUDED.linked_at",
		provider, subject, user.ID, email, strings.TrimSpace(params.DisplayName), r.now())
	if err != nil {
		return models.User{}, fmt.Errorf("link oauth account: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.User{}, fmt.Errorf("commit oauth transaction: %w", err)
	}
	return user, nil
}

func (r *postgresRepository) ListUsers() ([]models.User, error) {
	ctx, cancel := r.opCtx()
	defer cancel()

	rows, err := r.pool.Query(ctx, "SELECT "+userColumns+" FROM users ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *postgresRepository) GetUser(id string) (models.User, bool) {
	ctx, cancel := r.opCtx()
	defer cancel()
	user, err := scanUser(r.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if err != nil {
		return models.User{}, false
	}
	return user, true
}

func (r *postgresRepository) FindUserByEmail(email string) (models.User, bool) {
	ctx, cancel := r.opCtx()
	defer cancel()
	normalized := strings.TrimSpace(strings.ToLower(email))
	user, err := scanUser(r.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", normalized))
	if err != nil {
		return models.User{}, false
	}
	return user, true
}

func (r *postgresRepository) UpdateUser(id string, update UserUpdate) (models.User, error) {
	ctx, cancel := r.opCtx()
	defer cancel()

	user, err := scanUser(r.pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	} else if err != nil {
		return models.User{}, fmt.Errorf("load user: %w", err)
	}

	if update.DisplayName != nil {
		name := strings.TrimSpace(*update.DisplayName)
		if name == "" {
			return models.User{}, errors.New("displayName cannot be empty")
		}
		user.DisplayName = name
	}
	if update.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*update.Email))
		if email == "" {
			return models.User{}, errors.New("email cannot be empty")
		}
		user.Email = email
	}
	if update.Roles != nil {
		user.Roles = normalizeRoles(*update.Roles)
	}

	_, err = r.pool.Exec(ctx,
		"UPDATE users SET display_name = $2, email = $3, roles = $4 WHERE id = $1",
		user.ID, user.DisplayName, user.Email, user.Roles)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrEmailTaken
		}
		return models.User{}, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

func (r *postgresRepository) SetUserPassword(id, password string) (models.User, error) {
	if len(password) < 8 {
		return models.User{}, errors.New("password must be at least 8 characters")
	}
	hashed, err := hashPassword(password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	ctx, cancel := r.opCtx()
	defer cancel()

	tag, err := r.pool.Exec(ctx, "UPDATE users SET password_hash = $2 WHERE id = $1", id, hashed)
	if err != nil {
		return models.User{}, fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	user, ok := r.GetUser(id)
	if !ok {
		return models.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return user, nil
}

func (r *postgresRepository) DeleteUser(id string) error {
	ctx, cancel := r.opCtx()
	defer cancel()
	tag, err := r.pool.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return nil
}

// Profile operations

func (r *postgresRepository) UpsertProfile(userID string, update ProfileUpdate) (models.Profile, error) {
	ctx, cancel := r.opCtx()
	defer cancel()

	profile, _ := r.GetProfile(userID)
	profile.UserID = userID

	if update.PreferredLanguage != nil {
		profile.PreferredLanguage = strings.ToLower(strings.TrimSpace(*update.PreferredLanguage))
	}
	if update.WeightUnit != nil {
		unit := strings.ToLower(strings.TrimSpace(*update.WeightUnit))
		if unit != "" && unit != "kg" && unit != "lb" {
			return models.Profile{}, fmt.Errorf("unsupported weight unit %q", unit)
		}
		profile.WeightUnit = unit
	}
	if update.HeightCM != nil {
		if *update.HeightCM < 0 {
			return models.Profile{}, errors.New("height cannot be negative")
		}
		profile.HeightCM = *update.HeightCM
	}
	if update.WeightKG != nil {
		if *update.WeightKG < 0 {
			return models.Profile{}, errors.New("weight cannot be negative")
		}
		profile.WeightKG = *update.WeightKG
	}
	if update.Goal != nil {
		profile.Goal = strings.TrimSpace(*update.Goal)
	}
	profile.UpdatedAt = r.now()

	_, err := r.pool.Exec(ctx,
		"INSERT INTO profiles (user_id, preferred_language, weight_unit, height_cm, weight_kg, goal, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (user_id) DO UPDATE SET preferred_language = EXCLUDED.preferred_language, weight_unit = EXCLUDED.weight_unit, height_cm = EXCLUDED.height_cm, weight_kg = EXCLUDED.weight_kg, goal = EXCLUDED.goal, updated_at = EXCLUDED.updated_at",
		profile.UserID, profile.PreferredLanguage, profile.WeightUnit, profile.HeightCM, profile.WeightKG, profile.Goal, profile.UpdatedAt)
	if err != nil {
		return models.Profile{}, fmt.Errorf("upsert profile: %w", err)
	}
	return profile, nil
}

func (r *postgresRepository) GetProfile(userID string) (models.Profile, bool) {
	ctx, cancel := r.opCtx()
	defer cancel()
	var profile models.Profile
	err := r.pool.QueryRow(ctx,
		"SELECT user_id, preferred_language, weight_unit, height_cm, weight_kg, goal, updated_at FROM profiles WHERE user_id = $1", userID).
		Scan(&profile.UserID, &profile.PreferredLanguage, &profile.WeightUnit, &profile.HeightCM, &profile.WeightKG, &profile.Goal, &profile.UpdatedAt)
	if err != nil {
		return models.Profile{}, false
	}
	return profile, true
}

// Exercise catalog operations

const exerciseColumns = "id, name, localized_names, aliases, category, difficulty, description, default_sets, default_reps, media_url, is_active, usage_count, created_at, updated_at"

func scanExercise(row pgx.Row) (models.Exercise, error) {
	var exercise models.Exercise
	if err := row.Scan(&exercise.ID, &exercise.Name, &exercise.LocalizedNames, &exercise.Aliases,
		&exercise.Category, &exercise.Difficulty, &exercise.Description, &exercise.DefaultSets,
		&exercise.DefaultReps, &exercise.MediaURL, &exercise.IsActive, &exercise.UsageCount,
		&exercise.CreatedAt, &exercise.UpdatedAt); err != nil {
		return models.Exercise{}, err
	}
	return exercise, nil
}

func (r *postgresRepository) CreateExercise(params ExerciseParams) (models.Exercise, error) {
	if err := validateExerciseParams(params); err != nil {
		return models.Exercise{}, err
	}

	now := r.now()
	exercise := models.Exercise{
		ID:             newID(),
		Name:           strings.TrimSpace(params.Name),
		LocalizedNames: normalizeLocalizedNames(params.LocalizedNames),
		Aliases:        normalizeAliases(params.Aliases),
		Category:       params.Category,
		Difficulty:     params.Difficulty,
		Description:    strings.TrimSpace(params.Description),
		DefaultSets:    params.DefaultSets,
		DefaultReps:    params.DefaultReps,
		MediaURL:       strings.TrimSpace(params.MediaURL),
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	ctx, cancel := r.opCtx()
	defer cancel()
	_, err := r.pool.Exec(ctx,
		"INSERT INTO exercises ("+exerciseColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)",
		exercise.ID, exercise.Name, exercise.LocalizedNames, exercise.Aliases, exercise.Category,
		exercise.Difficulty, exercise.Description, exercise.DefaultSets, exercise.DefaultReps,
		exercise.MediaURL, exercise.IsActive, exercise.UsageCount, exercise.CreatedAt, exercise.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Exercise{}, fmt.Errorf("exercise %q already exists", exercise.Name)
		}
		return models.Exercise{}, fmt.Errorf("insert exercise: %w", err)
	}
	return exercise, nil
}

func (r *postgresRepository) UpdateExercise(id string, update ExerciseUpdate) (models.Exercise, error) {
	ctx, cancel := r.opCtx()
	defer cancel()

	exercise, err := scanExercise(r.pool.QueryRow(ctx, "SELECT "+exerciseColumns+" FROM exercises WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Exercise{}, fmt.Errorf("exercise %s: %w", id, ErrNotFound)
	} else if err != nil {
		return models.Exercise{}, fmt.Errorf("load exercise: %w", err)
	}

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return models.Exercise{}, errors.New("name cannot be empty")
		}
		exercise.Name = name
	}
	if update.LocalizedNames != nil {
		exercise.LocalizedNames = normalizeLocalizedNames(update.LocalizedNames)
	}
	if update.Aliases != nil {
		aliases := normalizeAliases(*update.Aliases)
		if len(aliases) > MaxAliasesPerExercise {
			return models.Exercise{}, fmt.Errorf("too many aliases: %d exceeds %d", len(aliases), MaxAliasesPerExercise)
		}
		exercise.Aliases = aliases
	}
	if update.Category != nil {
		if !models.ValidCategory(*update.Category) {
			return models.Exercise{}, fmt.Errorf("unknown category %q", *update.Category)
		}
		exercise.Category = *update.Category
	}
	if update.Difficulty != nil {
		if !models.ValidDifficulty(*update.Difficulty) {
			return models.Exercise{}, fmt.Errorf("unknown difficulty %q", *update.Difficulty)
		}
		exercise.Difficulty = *update.Difficulty
	}
	if update.Description != nil {
		exercise.Description = strings.TrimSpace(*update.Description)
	}
	if update.DefaultSets != nil {
		exercise.DefaultSets = *update.DefaultSets
	}
	if update.DefaultReps != nil {
		exercise.DefaultReps = *update.DefaultReps
	}
	if update.MediaURL != nil {
		exercise.MediaURL = strings.TrimSpace(*update.MediaURL)
	}
	if update.IsActive != nil {
		exercise.IsActive = *update.IsActive
	}
	exercise.UpdatedAt = r.now()

	_, err = r.pool.Exec(ctx,
		"UPDATE exercises SET name = $2, localized_names = $3, aliases = $4, category = $5, difficulty = $6, description = $7, default_sets = $8, default_reps = $9, media_url = $10, is_active = $11, updated_at = $12 WHERE id = $1",
		exercise.ID, exercise.Name, exercise.LocalizedNames, exercise.Aliases, exercise.Category,
		exercise.Difficulty, exercise.Description, exercise.DefaultSets, exercise.DefaultReps,
		exercise.MediaURL, exercise.IsActive, exercise.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Exercise{}, fmt.Errorf("exercise %q already exists", exercise.Name)
		}
		return models.Exercise{}, fmt.Errorf("update exercise: %w", err)
	}
	return exercise, nil
}

func (r *postgresRepository) GetExercise(id string) (models.Exercise, bool) {
	ctx, cancel := r.opCtx()
	defer cancel()
	exercise, err := scanExercise(r.pool.QueryRow(ctx, "SELECT "+exerciseColumns+" FROM exercises WHERE id = $1", id))
	if err != nil {
		return models.Exercise{}, false
	}
	return exercise, true
}

func (r *postgresRepository) ListExercises(filter ExerciseFilter) ([]models.Exercise, error) {
	ctx, cancel := r.opCtx()
	defer cancel()

	query := "SELECT " + exerciseColumns + " FROM exercises"
	var clauses []string
	var args []any
	if !filter.IncludeInactive {
		clauses = append(clauses, "is_active")
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		clauses = append(clauses, fmt.Sprintf("category = $%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY name, id"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list exercises: %w", err)
	}
	defer rows.Close()

	var exercises []models.Exercise
	for rows.Next() {
		exercise, err := scanExercise(rows)
		if err != nil {
			return nil, fmt.Errorf("scan exercise: %w", err)
		}
		exercises = append(exercises, exercise)
	}
	return exercises, rows.Err()
}

func (r *postgresRepository) RecordExerciseUsage(id string) error {
	ctx, cancel := r.opCtx()
	defer cancel()
	tag, err := r.pool.Exec(ctx, "UPDATE exercises SET usage_count = usage_count + 1, updated_at = $2 WHERE id = $1", id, r.now())
	if err != nil {
		return fmt.Errorf("record exercise usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("exercise %s: %w", id, ErrNotFound)
	}
	return nil
}

// Workout log operations

func (r *postgresRepository) CreateWorkoutLog(params CreateWorkoutLogParams) (models.WorkoutLog, error) {
	transcript := strings.TrimSpace(params.Transcript)
	if transcript == "" {
		return models.WorkoutLog{}, errors.New("transcript is required")
	}
	if len(transcript) > MaxTranscriptLength {
		return models.WorkoutLog{}, fmt.Errorf("transcript exceeds %d characters", MaxTranscriptLength)
	}

	log := models.WorkoutLog{
		ID:         newID(),
		UserID:     params.UserID,
		ExerciseID: params.ExerciseID,
		Transcript: transcript,
		Sets:       append([]models.WorkoutSet(nil), params.Sets...),
		Similarity: params.Similarity,
		CreatedAt:  r.now(),
	}

	var exerciseID any
	if log.ExerciseID != "" {
		exerciseID = log.ExerciseID
	}

	ctx, cancel := r.opCtx()
	defer cancel()
	_, err := r.pool.Exec(ctx,
		"INSERT INTO workout_logs (id, user_id, exercise_id, transcript, sets, similarity, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		log.ID, log.UserID, exerciseID, log.Transcript, log.Sets, log.Similarity, log.CreatedAt)
	if err != nil {
		return models.WorkoutLog{}, fmt.Errorf("insert workout log: %w", err)
	}
	return log, nil
}

func (r *postgresRepository) ListWorkoutLogs(userID string, limit int) ([]models.WorkoutLog, error) {
	if limit <= 0 {
		limit = DefaultWorkoutLogLimit
	}
	if limit > MaxWorkoutLogLimit {
		limit = MaxWorkoutLogLimit
	}

	ctx, cancel := r.opCtx()
	defer cancel()

	rows, err := r.pool.Query(ctx,
		"SELECT id, user_id, COALESCE(exercise_id, ''), transcript, sets, similarity, created_at FROM workout_logs WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2",
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list workout logs: %w", err)
	}
	defer rows.Close()

	var logs []models.WorkoutLog
	for rows.Next() {
		var log models.WorkoutLog
		if err := rows.Scan(&log.ID, &log.UserID, &log.ExerciseID, &log.Transcript, &log.Sets, &log.Similarity, &log.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan workout log: %w", err)
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

var _ Repository = (*postgresRepository)(nil)
