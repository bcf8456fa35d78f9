package storage

import (
	"context"

	"fitvoice/internal/models"
)

// Repository exposes the datastore operations required by the API
// handlers, the matcher's catalog refresher, and the session layer.
type Repository interface {
	Ping(ctx context.Context) error
	Close(ctx context.Context) error

	CreateUser(params CreateUserParams) (models.User, error)
	AuthenticateUser(email, password string) (models.User, error)
	AuthenticateOAuth(params OAuthLoginParams) (models.User, error)
	ListUsers() ([]models.User, error)
	GetUser(id string) (models.User, bool)
	FindUserByEmail(email string) (models.User, bool)
	UpdateUser(id string, update UserUpdate) (models.User, error)
	SetUserPassword(id, password string) (models.User, error)
	DeleteUser(id string) error

	UpsertProfile(userID string, update ProfileUpdate) (models.Profile, error)
	GetProfile(userID string) (models.Profile, bool)

	CreateExercise(params ExerciseParams) (models.Exercise, error)
	UpdateExercise(id string, update ExerciseUpdate) (models.Exercise, error)
	GetExercise(id string) (models.Exercise, bool)
	ListExercises(filter ExerciseFilter) ([]models.Exercise, error)
	RecordExerciseUsage(id string) error

	CreateWorkoutLog(params CreateWorkoutLogParams) (models.WorkoutLog, error)
	ListWorkoutLogs(userID string, limit int) ([]models.WorkoutLog, error)
}

var _ Repository = (*Storage)(nil)
