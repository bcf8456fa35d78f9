package parser

import (
	"testing"

	"fitvoice/internal/models"
)

func TestParseSimplePattern(t *testing.T) {
	cases := []struct {
		name       string
		text       string
		wantPhrase string
		wantSets   int
		wantReps   int
		wantWeight float64
	}{
		{
			name:       "sets weight reps",
			text:       "жим лежа 5 подходов по 40кг на 10 раз каждый",
			wantPhrase: "жим лежа",
			wantSets:   5,
			wantReps:   10,
			wantWeight: 40,
		},
		{
			name:       "reps before weight",
			text:       "приседания 4 подхода по 12 повторений с весом 60кг",
			wantPhrase: "приседания",
			wantSets:   4,
			wantReps:   12,
			wantWeight: 60,
		},
		{
			name:       "word numerals and kilo",
			text:       "становая тяга три сета по 5 раз 100 кило",
			wantPhrase: "становая тяга",
			wantSets:   3,
			wantReps:   5,
			wantWeight: 100,
		},
		{
			name:       "sets only",
			text:       "отжимания 3 подхода",
			wantPhrase: "отжимания",
			wantSets:   3,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := Parse(tc.text)
			if !result.Structured {
				t.Fatalf("expected structured result for %q", tc.text)
			}
			if result.ExercisePhrase != tc.wantPhrase {
				t.Fatalf("phrase = %q, want %q", result.ExercisePhrase, tc.wantPhrase)
			}
			if len(result.Sets) != tc.wantSets {
				t.Fatalf("got %d sets, want %d", len(result.Sets), tc.wantSets)
			}
			for i, set := range result.Sets {
				if set.Number != i+1 {
					t.Fatalf("set %d numbered %d", i, set.Number)
				}
				if set.Reps != tc.wantReps {
					t.Fatalf("set %d reps = %d, want %d", i, set.Reps, tc.wantReps)
				}
				if set.WeightKG != tc.wantWeight {
					t.Fatalf("set %d weight = %v, want %v", i, set.WeightKG, tc.wantWeight)
				}
			}
		})
	}
}

func TestParseComplexPattern(t *testing.T) {
	result := Parse("жим 3 подхода: 2 из них 4 раза по 40кг и один 4 раза по 50кг")
	if !result.Structured {
		t.Fatal("expected structured result")
	}
	if result.ExercisePhrase != "жим" {
		t.Fatalf("phrase = %q, want %q", result.ExercisePhrase, "жим")
	}
	want := []models.WorkoutSet{
		{Number: 1, Reps: 4, WeightKG: 40},
		{Number: 2, Reps: 4, WeightKG: 40},
		{Number: 3, Reps: 4, WeightKG: 50},
	}
	if len(result.Sets) != len(want) {
		t.Fatalf("got %d sets, want %d: %+v", len(result.Sets), len(want), result.Sets)
	}
	for i, set := range result.Sets {
		if set != want[i] {
			t.Fatalf("set %d = %+v, want %+v", i, set, want[i])
		}
	}
}

func TestParseUnstructuredFallsBackToPhrase(t *testing.T) {
	for _, text := range []string{"жим лежа", "просто разминка сегодня", ""} {
		result := Parse(text)
		if result.Structured {
			t.Fatalf("expected unstructured result for %q", text)
		}
		if len(result.Sets) != 0 {
			t.Fatalf("expected no sets for %q", text)
		}
	}
	result := Parse("Жим Лежа")
	if result.ExercisePhrase != "жим лежа" {
		t.Fatalf("expected lowercased phrase, got %q", result.ExercisePhrase)
	}
}

func TestParseDecimalWeight(t *testing.T) {
	result := Parse("жим гантелей 2 подхода по 12 раз 22,5 кг")
	if !result.Structured {
		t.Fatal("expected structured result")
	}
	if len(result.Sets) != 2 || result.Sets[0].WeightKG != 22.5 {
		t.Fatalf("unexpected sets: %+v", result.Sets)
	}
}

func TestSummarizeSets(t *testing.T) {
	uniform := []models.WorkoutSet{
		{Number: 1, Reps: 10, WeightKG: 40},
		{Number: 2, Reps: 10, WeightKG: 40},
	}
	if got := SummarizeSets(uniform); got != "2 подходов по 10 раз с весом 40кг" {
		t.Fatalf("uniform summary = %q", got)
	}

	mixed := []models.WorkoutSet{
		{Number: 1, Reps: 4, WeightKG: 40},
		{Number: 2, Reps: 4, WeightKG: 50},
	}
	if got := SummarizeSets(mixed); got != "подход 1 - 4 раз - 40кг; подход 2 - 4 раз - 50кг" {
		t.Fatalf("mixed summary = %q", got)
	}

	if got := SummarizeSets(nil); got != "" {
		t.Fatalf("empty summary = %q", got)
	}
}
