package match

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "lowercases and collapses whitespace", input: "  Barbell   Bench Press ", want: "barbell bench press"},
		{name: "strips punctuation keeps hyphens", input: "Pull-Up! (wide grip)", want: "pull-up wide grip"},
		{name: "folds cyrillic yo", input: "Жим штанги ЛЁЖА", want: "жим штанги лежа"},
		{name: "strips latin accents", input: "Épaulé-jeté", want: "epaule-jete"},
		{name: "drops russian stop words", input: "упражнение на пресс", want: "пресс"},
		{name: "drops english stop words", input: "exercise for the back", want: "back"},
		{name: "blank input", input: "   ", want: ""},
		{name: "only stop words", input: "на для и", want: ""},
		{name: "digits survive", input: "21s Bicep Curl", want: "21s bicep curl"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.input); got != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Жим штанги лёжа",
		"  Barbell   Bench Press!! ",
		"упражнение на пресс для спины",
		"Épaulé-jeté",
		"",
		"присед со штангой",
	}
	for _, input := range inputs {
		once := Normalize(input)
		twice := Normalize(once)
		if once != twice {
			t.Fatalf("Normalize not idempotent for %q: first %q, second %q", input, once, twice)
		}
	}
}
