package models

import (
	"fmt"
	"strings"
	"time"
)

type User struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"displayName"`
	Email        string    `json:"email"`
	Roles        []string  `json:"roles"`
	PasswordHash string    `json:"passwordHash,omitempty"`
	SelfSignup   bool      `json:"selfSignup"`
	CreatedAt    time.Time `json:"createdAt"`
}

// HasRole reports whether the user has the provided role, ignoring case.
func (u User) HasRole(role string) bool {
	for _, existing := range u.Roles {
		if strings.EqualFold(existing, role) {
			return true
		}
	}
	return false
}

type OAuthAccount struct {
	Provider    string    `json:"provider"`
	Subject     string    `json:"subject"`
	UserID      string    `json:"userId"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	LinkedAt    time.Time `json:"linkedAt"`
}

type Profile struct {
	UserID            string    `json:"userId"`
	PreferredLanguage string    `json:"preferredLanguage,omitempty"`
	WeightUnit        string    `json:"weightUnit,omitempty"`
	HeightCM          int       `json:"heightCm,omitempty"`
	WeightKG          float64   `json:"weightKg,omitempty"`
	Goal              string    `json:"goal,omitempty"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Exercise categories and difficulty levels accepted by the catalog.
const (
	CategoryStrength    = "strength"
	CategoryCardio      = "cardio"
	CategoryFlexibility = "flexibility"
	CategoryBalance     = "balance"

	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)

// ValidCategory reports whether category is one of the known catalog
// categories. The empty string is allowed and means "uncategorized".
func ValidCategory(category string) bool {
	switch category {
	case "", CategoryStrength, CategoryCardio, CategoryFlexibility, CategoryBalance:
		return true
	}
	return false
}

// ValidDifficulty reports whether difficulty is a known level.
func ValidDifficulty(difficulty string) bool {
	switch difficulty {
	case "", DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// Exercise is a catalog record. Name is the canonical (base-language)
// name; LocalizedNames maps a language code to the display name for that
// language; Aliases collect synonyms, transliterations, and common
// misspellings that should resolve to the same record.
type Exercise struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	LocalizedNames map[string]string `json:"localizedNames,omitempty"`
	Aliases        []string          `json:"aliases,omitempty"`
	Category       string            `json:"category,omitempty"`
	Difficulty     string            `json:"difficulty,omitempty"`
	Description    string            `json:"description,omitempty"`
	DefaultSets    int               `json:"defaultSets,omitempty"`
	DefaultReps    int               `json:"defaultReps,omitempty"`
	MediaURL       string            `json:"mediaUrl,omitempty"`
	IsActive       bool              `json:"isActive"`
	UsageCount     int               `json:"usageCount"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// LocalizedName returns the display name for the given language code and
// falls back to the canonical name when no localization exists.
func (e Exercise) LocalizedName(language string) string {
	if name, ok := e.LocalizedNames[strings.ToLower(strings.TrimSpace(language))]; ok && name != "" {
		return name
	}
	return e.Name
}

// WorkoutSet is a single set inside a logged workout entry.
type WorkoutSet struct {
	Number   int     `json:"number"`
	Reps     int     `json:"reps,omitempty"`
	WeightKG float64 `json:"weightKg,omitempty"`
}

// String renders the set in the short form used by log summaries.
func (s WorkoutSet) String() string {
	switch {
	case s.Reps > 0 && s.WeightKG > 0:
		return fmt.Sprintf("%dx%s", s.Reps, formatWeight(s.WeightKG))
	case s.Reps > 0:
		return fmt.Sprintf("%d reps", s.Reps)
	case s.WeightKG > 0:
		return formatWeight(s.WeightKG)
	}
	return "-"
}

func formatWeight(kg float64) string {
	if kg == float64(int64(kg)) {
		return fmt.Sprintf("%dkg", int64(kg))
	}
	return fmt.Sprintf("%.1fkg", kg)
}

// WorkoutLog records one voice-logged (or manually entered) workout.
// ExerciseID is empty when no catalog record matched with enough
// confidence; Transcript always preserves the original input.
type WorkoutLog struct {
	ID         string       `json:"id"`
	UserID     string       `json:"userId"`
	ExerciseID string       `json:"exerciseId,omitempty"`
	Transcript string       `json:"transcript"`
	Sets       []WorkoutSet `json:"sets,omitempty"`
	Similarity float64      `json:"similarity,omitempty"`
	CreatedAt  time.Time    `json:"createdAt"`
}
