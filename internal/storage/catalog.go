package storage

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"fitvoice/internal/models"
)

// Exercise catalog operations

func validateExerciseParams(params ExerciseParams) error {
	if strings.TrimSpace(params.Name) == "" {
		return errors.New("name is required")
	}
	if !models.ValidCategory(params.Category) {
		return fmt.Errorf("unknown category %q", params.Category)
	}
	if !models.ValidDifficulty(params.Difficulty) {
		return fmt.Errorf("unknown difficulty %q", params.Difficulty)
	}
	if len(params.Aliases) > MaxAliasesPerExercise {
		return fmt.Errorf("too many aliases: %d exceeds %d", len(params.Aliases), MaxAliasesPerExercise)
	}
	if params.DefaultSets < 0 || params.DefaultReps < 0 {
		return errors.New("default sets and reps cannot be negative")
	}
	return nil
}

func normalizeLocalizedNames(names map[string]string) map[string]string {
	if len(names) == 0 {
		return nil
	}
	normalized := make(map[string]string, len(names))
	for lang, name := range names {
		lang = strings.ToLower(strings.TrimSpace(lang))
		name = strings.TrimSpace(name)
		if lang == "" || name == "" {
			continue
		}
		normalized[lang] = name
	}
	if len(normalized) == 0 {
		return nil
	}
	return normalized
}

func normalizeAliases(aliases []string) []string {
	seen := make(map[string]struct{}, len(aliases))
	normalized := make([]string, 0, len(aliases))
	for _, alias := range aliases {
		alias = strings.TrimSpace(alias)
		if alias == "" {
			continue
		}
		key := strings.ToLower(alias)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		normalized = append(normalized, alias)
	}
	if len(normalized) == 0 {
		return nil
	}
	return normalized
}

// CreateExercise adds a catalog record. New records are active
// immediately and become matchable on the next catalog refresh.
func (s *Storage) CreateExercise(params ExerciseParams) (models.Exercise, error) {
	if err := validateExerciseParams(params); err != nil {
		return models.Exercise{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := strings.TrimSpace(params.Name)
	for _, existing := range s.data.Exercises {
		if strings.EqualFold(existing.Name, name) {
			return models.Exercise{}, fmt.Errorf("exercise %q already exists", name)
		}
	}

	now := s.now()
	exercise := models.Exercise{
		ID:             newID(),
		Name:           name,
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

	s.data.Exercises[exercise.ID] = exercise
	if err := s.persist(); err != nil {
		delete(s.data.Exercises, exercise.ID)
		return models.Exercise{}, err
	}
	return exercise, nil
}

// UpdateExercise mutates a catalog record. Deactivation goes through
// the IsActive field; records are never hard-deleted so existing
// workout logs keep a valid reference.
func (s *Storage) UpdateExercise(id string, update ExerciseUpdate) (models.Exercise, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updatedData := cloneDataset(s.data)

	exercise, ok := updatedData.Exercises[id]
	if !ok {
		return models.Exercise{}, fmt.Errorf("exercise %s: %w", id, ErrNotFound)
	}

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return models.Exercise{}, errors.New("name cannot be empty")
		}
		for existingID, existing := range updatedData.Exercises {
			if existingID != id && strings.EqualFold(existing.Name, name) {
				return models.Exercise{}, fmt.Errorf("exercise %q already exists", name)
			}
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
		if *update.DefaultSets < 0 {
			return models.Exercise{}, errors.New("default sets cannot be negative")
		}
		exercise.DefaultSets = *update.DefaultSets
	}
	if update.DefaultReps != nil {
		if *update.DefaultReps < 0 {
			return models.Exercise{}, errors.New("default reps cannot be negative")
		}
		exercise.DefaultReps = *update.DefaultReps
	}
	if update.MediaURL != nil {
		exercise.MediaURL = strings.TrimSpace(*update.MediaURL)
	}
	if update.IsActive != nil {
		exercise.IsActive = *update.IsActive
	}
	exercise.UpdatedAt = s.now()

	updatedData.Exercises[id] = exercise

	if err := s.persistDataset(updatedData); err != nil {
		return models.Exercise{}, err
	}
	s.data = updatedData

	return exercise, nil
}

func (s *Storage) GetExercise(id string) (models.Exercise, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exercise, ok := s.data.Exercises[id]
	return exercise, ok
}

// ListExercises returns catalog records sorted by name. Inactive
// records are excluded unless the filter asks for them.
func (s *Storage) ListExercises(filter ExerciseFilter) ([]models.Exercise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exercises := make([]models.Exercise, 0, len(s.data.Exercises))
	for _, exercise := range s.data.Exercises {
		if !filter.IncludeInactive && !exercise.IsActive {
			continue
		}
		if filter.Category != "" && exercise.Category != filter.Category {
			continue
		}
		exercises = append(exercises, exercise)
	}
	sort.Slice(exercises, func(i, j int) bool {
		if exercises[i].Name == exercises[j].Name {
			return exercises[i].ID < exercises[j].ID
		}
		return exercises[i].Name < exercises[j].Name
	})
	return exercises, nil
}

// RecordExerciseUsage bumps the usage counter after a confident match.
func (s *Storage) RecordExerciseUsage(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exercise, ok := s.data.Exercises[id]
	if !ok {
		return fmt.Errorf("exercise %s: %w", id, ErrNotFound)
	}
	exercise.UsageCount++
	exercise.UpdatedAt = s.now()
	s.data.Exercises[id] = exercise
	if err := s.persist(); err != nil {
		exercise.UsageCount--
		s.data.Exercises[id] = exercise
		return err
	}
	return nil
}

// Workout log operations

// CreateWorkoutLog stores one logged workout entry.
func (s *Storage) CreateWorkoutLog(params CreateWorkoutLogParams) (models.WorkoutLog, error) {
	transcript := strings.TrimSpace(params.Transcript)
	if transcript == "" {
		return models.WorkoutLog{}, errors.New("transcript is required")
	}
	if len(transcript) > MaxTranscriptLength {
		return models.WorkoutLog{}, fmt.Errorf("transcript exceeds %d characters", MaxTranscriptLength)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Users[params.UserID]; !ok {
		return models.WorkoutLog{}, fmt.Errorf("user %s: %w", params.UserID, ErrNotFound)
	}
	if params.ExerciseID != "" {
		if _, ok := s.data.Exercises[params.ExerciseID]; !ok {
			return models.WorkoutLog{}, fmt.Errorf("exercise %s: %w", params.ExerciseID, ErrNotFound)
		}
	}

	log := models.WorkoutLog{
		ID:         newID(),
		UserID:     params.UserID,
		ExerciseID: params.ExerciseID,
		Transcript: transcript,
		Sets:       append([]models.WorkoutSet(nil), params.Sets...),
		Similarity: params.Similarity,
		CreatedAt:  s.now(),
	}

	s.data.WorkoutLogs[log.ID] = log
	if err := s.persist(); err != nil {
		delete(s.data.WorkoutLogs, log.ID)
		return models.WorkoutLog{}, err
	}
	return log, nil
}

// ListWorkoutLogs returns the user's log entries, newest first.
func (s *Storage) ListWorkoutLogs(userID string, limit int) ([]models.WorkoutLog, error) {
	if limit <= 0 {
		limit = DefaultWorkoutLogLimit
	}
	if limit > MaxWorkoutLogLimit {
		limit = MaxWorkoutLogLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := make([]models.WorkoutLog, 0)
	for _, log := range s.data.WorkoutLogs {
		if log.UserID == userID {
			logs = append(logs, log)
		}
	}
	sort.Slice(logs, func(i, j int) bool {
		if logs[i].CreatedAt.Equal(logs[j].CreatedAt) {
			return logs[i].ID > logs[j].ID
		}
		return logs[i].CreatedAt.After(logs[j].CreatedAt)
	})
	if len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}
