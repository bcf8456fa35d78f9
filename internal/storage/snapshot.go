package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"fitvoice/internal/models"
)

// Snapshot is a portable export of the whole dataset, used to seed the
// catalog and to move a JSON deployment onto Postgres.
type Snapshot struct {
	Users         []models.User         `json:"users,omitempty"`
	OAuthAccounts []models.OAuthAccount `json:"oauthAccounts,omitempty"`
	Profiles      []models.Profile      `json:"profiles,omitempty"`
	Exercises     []models.Exercise     `json:"exercises,omitempty"`
	WorkoutLogs   []models.WorkoutLog   `json:"workoutLogs,omitempty"`
}

// Counts reports how many records the snapshot carries per collection.
func (s *Snapshot) Counts() map[string]int {
	if s == nil {
		return nil
	}
	return map[string]int{
		"users":         len(s.Users),
		"oauthAccounts": len(s.OAuthAccounts),
		"profiles":      len(s.Profiles),
		"exercises":     len(s.Exercises),
		"workoutLogs":   len(s.WorkoutLogs),
	}
}

// LoadSnapshotFromJSON reads a snapshot file written by ExportSnapshot
// or a hand-maintained seed file.
func LoadSnapshotFromJSON(path string) (*Snapshot, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snapshot Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snapshot, nil
}

// ExportSnapshot copies the current dataset into a Snapshot with stable
// ordering per collection.
func (s *Storage) ExportSnapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := &Snapshot{}
	for _, user := range s.data.Users {
		snapshot.Users = append(snapshot.Users, user)
	}
	for _, account := range s.data.OAuthAccounts {
		snapshot.OAuthAccounts = append(snapshot.OAuthAccounts, account)
	}
	for _, profile := range s.data.Profiles {
		snapshot.Profiles = append(snapshot.Profiles, profile)
	}
	for _, exercise := range s.data.Exercises {
		snapshot.Exercises = append(snapshot.Exercises, exercise)
	}
	for _, log := range s.data.WorkoutLogs {
		snapshot.WorkoutLogs = append(snapshot.WorkoutLogs, log)
	}

	sort.Slice(snapshot.Users, func(i, j int) bool { return snapshot.Users[i].ID < snapshot.Users[j].ID })
	sort.Slice(snapshot.OAuthAccounts, func(i, j int) bool {
		if snapshot.OAuthAccounts[i].Provider == snapshot.OAuthAccounts[j].Provider {
			return snapshot.OAuthAccounts[i].Subject < snapshot.OAuthAccounts[j].Subject
		}
		return snapshot.OAuthAccounts[i].Provider < snapshot.OAuthAccounts[j].Provider
	})
	sort.Slice(snapshot.Profiles, func(i, j int) bool { return snapshot.Profiles[i].UserID < snapshot.Profiles[j].UserID })
	sort.Slice(snapshot.Exercises, func(i, j int) bool { return snapshot.Exercises[i].ID < snapshot.Exercises[j].ID })
	sort.Slice(snapshot.WorkoutLogs, func(i, j int) bool { return snapshot.WorkoutLogs[i].ID < snapshot.WorkoutLogs[j].ID })

	return snapshot
}

// ImportExercises merges snapshot exercises into the JSON store,
// skipping IDs and names that already exist. Used by the catalog seed
// tool.
func (s *Storage) ImportExercises(snapshot *Snapshot) (int, error) {
	if snapshot == nil {
		return 0, fmt.Errorf("snapshot is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updatedData := cloneDataset(s.data)
	imported := 0
	for _, exercise := range snapshot.Exercises {
		if exercise.ID == "" || exercise.Name == "" {
			continue
		}
		if _, exists := updatedData.Exercises[exercise.ID]; exists {
			continue
		}
		duplicate := false
		for _, existing := range updatedData.Exercises {
			if existing.Name == exercise.Name {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		if exercise.CreatedAt.IsZero() {
			exercise.CreatedAt = s.now()
		}
		if exercise.UpdatedAt.IsZero() {
			exercise.UpdatedAt = exercise.CreatedAt
		}
		updatedData.Exercises[exercise.ID] = exercise
		imported++
	}

	if imported == 0 {
		return 0, nil
	}
	if err := s.persistDataset(updatedData); err != nil {
		return 0, err
	}
	s.data = updatedData
	return imported, nil
}
