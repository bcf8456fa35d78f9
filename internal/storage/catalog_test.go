package storage

import (
	"errors"
	"strings"
	"testing"

	"fitvoice/internal/models"
)

func TestCreateExerciseValidation(t *testing.T) {
	store := newTestStore(t)

	cases := []struct {
		name   string
		params ExerciseParams
	}{
		{"empty name", ExerciseParams{Category: models.CategoryStrength}},
		{"bad category", ExerciseParams{Name: "Bench press", Category: "yoga"}},
		{"bad difficulty", ExerciseParams{Name: "Bench press", Difficulty: "expert"}},
		{"negative defaults", ExerciseParams{Name: "Bench press", DefaultSets: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := store.CreateExercise(tc.params); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCreateExerciseRejectsDuplicateName(t *testing.T) {
	store := newTestStore(t)

	mustCreateExercise(t, store, "Bench press")
	if _, err := store.CreateExercise(ExerciseParams{Name: "bench PRESS", Category: models.CategoryStrength}); err == nil {
		t.Fatal("expected duplicate name error")
	}
}

func TestCreateExerciseNormalizesAliases(t *testing.T) {
	store := newTestStore(t)

	exercise, err := store.CreateExercise(ExerciseParams{
		Name:    "Bench press",
		Aliases: []string{" жим лежа ", "жим ЛЕЖА", "", "bench"},
		LocalizedNames: map[string]string{
			" RU ": " Жим штанги лёжа ",
			"":     "ignored",
		},
	})
	if err != nil {
		t.Fatalf("CreateExercise: %v", err)
	}
	if len(exercise.Aliases) != 2 {
		t.Fatalf("aliases not deduplicated: %v", exercise.Aliases)
	}
	if exercise.LocalizedNames["ru"] != "Жим штанги лёжа" {
		t.Fatalf("localized names not normalized: %v", exercise.LocalizedNames)
	}
}

func TestUpdateExerciseDeactivation(t *testing.T) {
	store := newTestStore(t)

	exercise := mustCreateExercise(t, store, "Bench press")
	inactive := false
	updated, err := store.UpdateExercise(exercise.ID, ExerciseUpdate{IsActive: &inactive})
	if err != nil {
		t.Fatalf("UpdateExercise: %v", err)
	}
	if updated.IsActive {
		t.Fatal("exercise still active")
	}

	visible, err := store.ListExercises(ExerciseFilter{})
	if err != nil {
		t.Fatalf("ListExercises: %v", err)
	}
	for _, listed := range visible {
		if listed.ID == exercise.ID {
			t.Fatal("inactive exercise listed without IncludeInactive")
		}
	}

	all, err := store.ListExercises(ExerciseFilter{IncludeInactive: true})
	if err != nil {
		t.Fatalf("ListExercises include inactive: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 exercise, got %d", len(all))
	}
}

func TestUpdateExerciseUnknownID(t *testing.T) {
	store := newTestStore(t)

	name := "Squat"
	if _, err := store.UpdateExercise("missing", ExerciseUpdate{Name: &name}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListExercisesSortedAndFiltered(t *testing.T) {
	store := newTestStore(t)

	mustCreateExercise(t, store, "Squat")
	mustCreateExercise(t, store, "Bench press")
	if _, err := store.CreateExercise(ExerciseParams{Name: "Plank", Category: models.CategoryBalance}); err != nil {
		t.Fatalf("CreateExercise: %v", err)
	}

	exercises, err := store.ListExercises(ExerciseFilter{})
	if err != nil {
		t.Fatalf("ListExercises: %v", err)
	}
	if len(exercises) != 3 {
		t.Fatalf("expected 3 exercises, got %d", len(exercises))
	}
	for i := 1; i < len(exercises); i++ {
		if exercises[i-1].Name > exercises[i].Name {
			t.Fatalf("not sorted by name: %q before %q", exercises[i-1].Name, exercises[i].Name)
		}
	}

	strength, err := store.ListExercises(ExerciseFilter{Category: models.CategoryStrength})
	if err != nil {
		t.Fatalf("ListExercises filtered: %v", err)
	}
	if len(strength) != 2 {
		t.Fatalf("expected 2 strength exercises, got %d", len(strength))
	}
}

func TestRecordExerciseUsage(t *testing.T) {
	store := newTestStore(t)

	exercise := mustCreateExercise(t, store, "Bench press")
	if err := store.RecordExerciseUsage(exercise.ID); err != nil {
		t.Fatalf("RecordExerciseUsage: %v", err)
	}
	if err := store.RecordExerciseUsage(exercise.ID); err != nil {
		t.Fatalf("RecordExerciseUsage: %v", err)
	}

	updated, ok := store.GetExercise(exercise.ID)
	if !ok {
		t.Fatal("exercise missing")
	}
	if updated.UsageCount != 2 {
		t.Fatalf("expected usage count 2, got %d", updated.UsageCount)
	}

	if err := store.RecordExerciseUsage("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateWorkoutLogValidation(t *testing.T) {
	store := newTestStore(t)

	user, err := store.CreateUser(CreateUserParams{DisplayName: "Ada", Email: "ada@example.com", Password: "pass123456", SelfSignup: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	exercise := mustCreateExercise(t, store, "Bench press")

	if _, err := store.CreateWorkoutLog(CreateWorkoutLogParams{UserID: user.ID, Transcript: "   "}); err == nil {
		t.Fatal("expected error for blank transcript")
	}
	long := strings.Repeat("ж", MaxTranscriptLength+1)
	if _, err := store.CreateWorkoutLog(CreateWorkoutLogParams{UserID: user.ID, Transcript: long}); err == nil {
		t.Fatal("expected error for oversized transcript")
	}
	if _, err := store.CreateWorkoutLog(CreateWorkoutLogParams{UserID: "missing", Transcript: "жим лежа"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}
	if _, err := store.CreateWorkoutLog(CreateWorkoutLogParams{UserID: user.ID, ExerciseID: "missing", Transcript: "жим лежа"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown exercise, got %v", err)
	}

	log, err := store.CreateWorkoutLog(CreateWorkoutLogParams{
		UserID:     user.ID,
		ExerciseID: exercise.ID,
		Transcript: "жим лежа 3 подхода по 10 раз",
		Sets:       []models.WorkoutSet{{Number: 1, Reps: 10}},
		Similarity: 0.95,
	})
	if err != nil {
		t.Fatalf("CreateWorkoutLog: %v", err)
	}
	if log.ID == "" || log.Similarity != 0.95 {
		t.Fatalf("unexpected log: %+v", log)
	}
}

func TestListWorkoutLogsNewestFirst(t *testing.T) {
	store := newTestStore(t)

	user, err := store.CreateUser(CreateUserParams{DisplayName: "Ada", Email: "ada@example.com", Password: "pass123456", SelfSignup: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	exercise := mustCreateExercise(t, store, "Bench press")

	for i := 0; i < 3; i++ {
		if _, err := store.CreateWorkoutLog(CreateWorkoutLogParams{UserID: user.ID, ExerciseID: exercise.ID, Transcript: "жим лежа"}); err != nil {
			t.Fatalf("CreateWorkoutLog: %v", err)
		}
	}

	logs, err := store.ListWorkoutLogs(user.ID, 0)
	if err != nil {
		t.Fatalf("ListWorkoutLogs: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("expected 3 logs, got %d", len(logs))
	}
	for i := 1; i < len(logs); i++ {
		if logs[i-1].CreatedAt.Before(logs[i].CreatedAt) {
			t.Fatal("logs not sorted newest first")
		}
	}

	limited, err := store.ListWorkoutLogs(user.ID, 2)
	if err != nil {
		t.Fatalf("ListWorkoutLogs limited: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("limit not applied: %d", len(limited))
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := newTestStore(t)

	mustCreateExercise(t, store, "Bench press")
	mustCreateExercise(t, store, "Squat")

	snapshot := store.ExportSnapshot()
	counts := snapshot.Counts()
	if counts["exercises"] != 2 {
		t.Fatalf("unexpected snapshot counts: %v", counts)
	}

	target := newTestStore(t)
	imported, err := target.ImportExercises(snapshot)
	if err != nil {
		t.Fatalf("ImportExercises: %v", err)
	}
	if imported != 2 {
		t.Fatalf("expected 2 imported, got %d", imported)
	}

	again, err := target.ImportExercises(snapshot)
	if err != nil {
		t.Fatalf("second ImportExercises: %v", err)
	}
	if again != 0 {
		t.Fatalf("expected idempotent import, got %d", again)
	}
}
