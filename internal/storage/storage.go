package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"fitvoice/internal/models"
)

func newDataset() dataset {
	return dataset{
		Users:         make(map[string]models.User),
		OAuthAccounts: make(map[string]models.OAuthAccount),
		Profiles:      make(map[string]models.Profile),
		Exercises:     make(map[string]models.Exercise),
		WorkoutLogs:   make(map[string]models.WorkoutLog),
	}
}

func (s *Storage) ensureDatasetInitializedLocked() {
	if s.data.Users == nil {
		s.data.Users = make(map[string]models.User)
	}
	if s.data.OAuthAccounts == nil {
		s.data.OAuthAccounts = make(map[string]models.OAuthAccount)
	}
	if s.data.Profiles == nil {
		s.data.Profiles = make(map[string]models.Profile)
	}
	if s.data.Exercises == nil {
		s.data.Exercises = make(map[string]models.Exercise)
	}
	if s.data.WorkoutLogs == nil {
		s.data.WorkoutLogs = make(map[string]models.WorkoutLog)
	}
}

// NewStorage opens (or creates) the JSON-file backed repository at path.
func NewStorage(path string, opts ...Option) (*Storage, error) {
	store := &Storage{
		filePath: path,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt.applyJSON(store)
		}
	}
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Storage) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	file, err := os.Open(s.filePath)
	if errors.Is(err, os.ErrNotExist) {
		s.data = newDataset()
		return nil
	} else if err != nil {
		return fmt.Errorf("open store file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&s.data); err != nil {
		if errors.Is(err, io.EOF) {
			s.data = newDataset()
			return nil
		}
		return fmt.Errorf("decode store file: %w", err)
	}

	s.ensureDatasetInitializedLocked()

	return nil
}

func (s *Storage) persist() error {
	return s.persistDataset(s.data)
}

func (s *Storage) persistDataset(data dataset) error {
	if s.persistOverride != nil {
		if err := s.persistOverride(data); err != nil {
			return err
		}
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "store-*.json")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	tmpPath := tmpFile.Name()
	success := false
	defer func() {
		if !success {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encode store file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("flush store file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp store file: %w", err)
	}

	if err := os.Rename(tmpPath, s.filePath); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}
	success = true
	return nil
}

func cloneDataset(src dataset) dataset {
	clone := dataset{}

	if src.Users != nil {
		clone.Users = make(map[string]models.User, len(src.Users))
		for id, user := range src.Users {
			cloned := user
			if user.Roles != nil {
				cloned.Roles = append([]string(nil), user.Roles...)
			}
			clone.Users[id] = cloned
		}
	}

	if src.OAuthAccounts != nil {
		clone.OAuthAccounts = make(map[string]models.OAuthAccount, len(src.OAuthAccounts))
		for key, account := range src.OAuthAccounts {
			clone.OAuthAccounts[key] = account
		}
	}

	if src.Profiles != nil {
		clone.Profiles = make(map[string]models.Profile, len(src.Profiles))
		for id, profile := range src.Profiles {
			clone.Profiles[id] = profile
		}
	}

	if src.Exercises != nil {
		clone.Exercises = make(map[string]models.Exercise, len(src.Exercises))
		for id, exercise := range src.Exercises {
			cloned := exercise
			if exercise.LocalizedNames != nil {
				names := make(map[string]string, len(exercise.LocalizedNames))
				for lang, name := range exercise.LocalizedNames {
					names[lang] = name
				}
				cloned.LocalizedNames = names
			}
			if exercise.Aliases != nil {
				cloned.Aliases = append([]string(nil), exercise.Aliases...)
			}
			clone.Exercises[id] = cloned
		}
	}

	if src.WorkoutLogs != nil {
		clone.WorkoutLogs = make(map[string]models.WorkoutLog, len(src.WorkoutLogs))
		for id, log := range src.WorkoutLogs {
			cloned := log
			if log.Sets != nil {
				cloned.Sets = append([]models.WorkoutSet(nil), log.Sets...)
			}
			clone.WorkoutLogs[id] = cloned
		}
	}

	return clone
}

func newID() string {
	return uuid.NewString()
}

// Ping reports whether the backing file is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	dir := filepath.Dir(s.filePath)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("stat data dir: %w", err)
	}
	return nil
}

// Close flushes nothing; the JSON store persists on every mutation.
func (s *Storage) Close(ctx context.Context) error {
	return nil
}

// User operations

func (s *Storage) CreateUser(params CreateUserParams) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	normalizedEmail := strings.TrimSpace(strings.ToLower(params.Email))
	if normalizedEmail == "" {
		return models.User{}, errors.New("email is required")
	}
	for _, user := range s.data.Users {
		if user.Email == normalizedEmail {
			return models.User{}, ErrEmailTaken
		}
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
		hashed, hashErr := hashPassword(params.Password)
		if hashErr != nil {
			return models.User{}, fmt.Errorf("hash password: %w", hashErr)
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
		CreatedAt:    s.now(),
	}

	s.data.Users[user.ID] = user
	if err := s.persist(); err != nil {
		delete(s.data.Users, user.ID)
		return models.User{}, err
	}

	return user, nil
}

func (s *Storage) ListUsers() ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]models.User, 0, len(s.data.Users))
	for _, user := range s.data.Users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (s *Storage) GetUser(id string) (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.data.Users[id]
	return user, ok
}

// FindUserByEmail looks up a user by their normalized email address.
func (s *Storage) FindUserByEmail(email string) (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	normalizedEmail := strings.TrimSpace(strings.ToLower(email))
	for _, user := range s.data.Users {
		if user.Email == normalizedEmail {
			return user, true
		}
	}
	return models.User{}, false
}

// UpdateUser mutates user metadata while enforcing uniqueness constraints.
func (s *Storage) UpdateUser(id string, update UserUpdate) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updatedData := cloneDataset(s.data)

	user, ok := updatedData.Users[id]
	if !ok {
		return models.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
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
		for existingID, existing := range updatedData.Users {
			if existingID == user.ID {
				continue
			}
			if existing.Email == email {
				return models.User{}, ErrEmailTaken
			}
		}
		user.Email = email
	}

	if update.Roles != nil {
		user.Roles = normalizeRoles(*update.Roles)
	}

	updatedData.Users[id] = user

	if err := s.persistDataset(updatedData); err != nil {
		return models.User{}, err
	}
	s.data = updatedData

	return user, nil
}

// DeleteUser removes the account along with its profile, OAuth links,
// and workout logs.
func (s *Storage) DeleteUser(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updatedData := cloneDataset(s.data)

	if _, ok := updatedData.Users[id]; !ok {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	delete(updatedData.Users, id)
	delete(updatedData.Profiles, id)
	for key, account := range updatedData.OAuthAccounts {
		if account.UserID == id {
			delete(updatedData.OAuthAccounts, key)
		}
	}
	for logID, log := range updatedData.WorkoutLogs {
		if log.UserID == id {
			delete(updatedData.WorkoutLogs, logID)
		}
	}

	if err := s.persistDataset(updatedData); err != nil {
		return err
	}
	s.data = updatedData
	return nil
}

func normalizeRoles(roles []string) []string {
	seen := make(map[string]struct{}, len(roles))
	normalized := make([]string, 0, len(roles))
	for _, role := range roles {
		trimmed := strings.ToLower(strings.TrimSpace(role))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	sort.Strings(normalized)
	return normalized
}

// Profile operations

// UpsertProfile creates or updates the profile owned by userID.
func (s *Storage) UpsertProfile(userID string, update ProfileUpdate) (models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updatedData := cloneDataset(s.data)

	if _, ok := updatedData.Users[userID]; !ok {
		return models.Profile{}, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}

	profile := updatedData.Profiles[userID]
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
	profile.UpdatedAt = s.now()

	updatedData.Profiles[userID] = profile

	if err := s.persistDataset(updatedData); err != nil {
		return models.Profile{}, err
	}
	s.data = updatedData

	return profile, nil
}

func (s *Storage) GetProfile(userID string) (models.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.data.Profiles[userID]
	return profile, ok
}
