package storage

import (
	"errors"
	"sync"
	"time"

	"fitvoice/internal/models"
)

const (
	passwordHashSaltLength = 16
	passwordHashKeyLength  = 32
	passwordHashIterations = 120000

	// MaxTranscriptLength bounds the raw transcript stored with a
	// workout log entry.
	MaxTranscriptLength = 1000
	// MaxAliasesPerExercise bounds the alias list accepted for a
	// catalog record.
	MaxAliasesPerExercise = 32

	// DefaultWorkoutLogLimit is applied when a log listing does not
	// specify its own limit.
	DefaultWorkoutLogLimit = 50
	// MaxWorkoutLogLimit caps a single log listing.
	MaxWorkoutLogLimit = 200
)

var (
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrPasswordLoginUnsupported = errors.New("account does not support password login")
	// ErrNotFound is returned when the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrEmailTaken is returned when a signup or update collides with an
	// existing account email.
	ErrEmailTaken = errors.New("email already registered")
)

type dataset struct {
	Users         map[string]models.User         `json:"users"`
	OAuthAccounts map[string]models.OAuthAccount `json:"oauthAccounts"`
	Profiles      map[string]models.Profile      `json:"profiles"`
	Exercises     map[string]models.Exercise     `json:"exercises"`
	WorkoutLogs   map[string]models.WorkoutLog   `json:"workoutLogs"`
}

// Storage is the JSON-file backed repository. All mutations clone the
// dataset, persist the clone atomically, and only then swap it in, so a
// failed write never leaves partially-updated state behind.
type Storage struct {
	mu       sync.RWMutex
	filePath string
	data     dataset
	// persistOverride allows tests to intercept persist operations.
	persistOverride func(dataset) error
	now             func() time.Time
}

// CreateUserParams captures the attributes that can be set when creating a user.
type CreateUserParams struct {
	DisplayName string
	Email       string
	Password    string
	Roles       []string
	SelfSignup  bool
}

// UserUpdate describes the mutable fields of a user account.
type UserUpdate struct {
	DisplayName *string
	Email       *string
	Roles       *[]string
}

// OAuthLoginParams represents the identity information returned by an OAuth
// provider used to authenticate or provision a user account.
type OAuthLoginParams struct {
	Provider    string
	Subject     string
	Email       string
	DisplayName string
}

// ProfileUpdate describes the mutable fields of a user profile.
type ProfileUpdate struct {
	PreferredLanguage *string
	WeightUnit        *string
	HeightCM          *int
	WeightKG          *float64
	Goal              *string
}

// ExerciseParams captures the attributes of a new catalog record.
type ExerciseParams struct {
	Name           string
	LocalizedNames map[string]string
	Aliases        []string
	Category       string
	Difficulty     string
	Description    string
	DefaultSets    int
	DefaultReps    int
	MediaURL       string
}

// ExerciseUpdate describes the mutable fields of a catalog record.
type ExerciseUpdate struct {
	Name           *string
	LocalizedNames map[string]string
	Aliases        *[]string
	Category       *string
	Difficulty     *string
	Description    *string
	DefaultSets    *int
	DefaultReps    *int
	MediaURL       *string
	IsActive       *bool
}

// ExerciseFilter narrows a catalog listing.
type ExerciseFilter struct {
	Category        string
	IncludeInactive bool
}

// CreateWorkoutLogParams captures one logged workout entry.
type CreateWorkoutLogParams struct {
	UserID     string
	ExerciseID string
	Transcript string
	Sets       []models.WorkoutSet
	Similarity float64
}
