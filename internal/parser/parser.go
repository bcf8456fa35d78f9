// Package parser extracts structured workout parameters (sets, reps,
// weight) from free-form voice transcripts. It understands Russian
// number words and the phrasing produced by speech-to-text, including
// uneven set descriptions such as
// "жим 3 подхода: 2 из них 4 раза по 40кг и один 4 раза по 50кг".
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"fitvoice/internal/models"
)

// numberWords maps spelled-out Russian numerals (with common case
// forms) to their values.
var numberWords = map[string]int{
	"один": 1, "одна": 1, "одного": 1, "одному": 1,
	"два": 2, "две": 2, "двух": 2,
	"три": 3, "трех": 3,
	"четыре": 4, "четырех": 4,
	"пять": 5, "пяти": 5,
	"шесть": 6, "шести": 6,
	"семь": 7, "семи": 7,
	"восемь": 8, "восьми": 8,
	"девять": 9, "девяти": 9,
	"десять": 10, "десяти": 10,
	"одиннадцать": 11, "одиннадцати": 11,
	"двенадцать": 12, "двенадцати": 12,
	"пятнадцать": 15, "пятнадцати": 15,
	"двадцать": 20, "двадцати": 20,
}

var (
	setsKeywords   = []string{"подходов", "подхода", "подход", "сетов", "сета", "сет"}
	repsKeywords   = []string{"повторений", "повторения", "повторение", "повтора", "повтор", "раза", "раз"}
	weightKeywords = []string{"килограмма", "килограмм", "кило", "грамм", "кг"}
)

func numberAlternation() string {
	words := make([]string, 0, len(numberWords)+1)
	words = append(words, `\d+`)
	for word := range numberWords {
		words = append(words, word)
	}
	// Longest first so case forms win over their prefixes.
	for i := 0; i < len(words); i++ {
		for j := i + 1; j < len(words); j++ {
			if len(words[j]) > len(words[i]) {
				words[i], words[j] = words[j], words[i]
			}
		}
	}
	return strings.Join(words, "|")
}

var (
	numAlt    = numberAlternation()
	setsAlt   = strings.Join(setsKeywords, "|")
	repsAlt   = strings.Join(repsKeywords, "|")
	weightAlt = strings.Join(weightKeywords, "|")

	reSetsCount    = regexp.MustCompile(`(` + numAlt + `)\s+(?:` + setsAlt + `)`)
	reComplexIntro = regexp.MustCompile(`(` + numAlt + `)\s+(?:` + setsAlt + `)\s*:`)
	reWeight       = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(?:` + weightAlt + `)`)
	reReps         = regexp.MustCompile(`(` + numAlt + `)\s+(?:` + repsAlt + `)`)
	reGroupSplit   = regexp.MustCompile(`\s+и\s+`)

	// "2 из них 4 раза по 40кг" and the bare "один 4 раза по 50кг" form.
	reGroupLinked = regexp.MustCompile(`(` + numAlt + `)\s+(?:из\s+них|` + setsAlt + `)\s+(` +
		numAlt + `)\s+(?:` + repsAlt + `)\s+(?:по\s+)?(\d+(?:[.,]\d+)?)\s*(?:` + weightAlt + `)`)
	reGroupBare = regexp.MustCompile(`(` + numAlt + `)\s+(` +
		numAlt + `)\s+(?:` + repsAlt + `)\s+(?:по\s+)?(\d+(?:[.,]\d+)?)\s*(?:` + weightAlt + `)`)
)

// Result is the structured reading of one transcript. When no workout
// parameters could be recognized, ExercisePhrase carries the whole
// transcript and Structured is false; that is a valid outcome, not an
// error.
type Result struct {
	ExercisePhrase string
	Sets           []models.WorkoutSet
	Raw            string
	Structured     bool
}

// Parse extracts the exercise phrase and set structure from a
// transcript.
func Parse(text string) Result {
	text = strings.ToLower(strings.TrimSpace(text))
	result := Result{Raw: text, ExercisePhrase: text}
	if text == "" {
		return result
	}
	if sets, phrase, ok := parseComplex(text); ok {
		result.ExercisePhrase = phrase
		result.Sets = sets
		result.Structured = true
		return result
	}
	if sets, phrase, ok := parseSimple(text); ok {
		result.ExercisePhrase = phrase
		result.Sets = sets
		result.Structured = true
		return result
	}
	return result
}

// parseSimple handles uniform sets: "жим лежа 5 подходов по 40кг на 10
// раз", "приседания 4 подхода по 12 повторений с весом 60кг".
func parseSimple(text string) ([]models.WorkoutSet, string, bool) {
	loc := reSetsCount.FindStringSubmatchIndex(text)
	if loc == nil {
		return nil, "", false
	}
	count := parseNumber(text[loc[2]:loc[3]])
	phrase := strings.TrimSpace(text[:loc[0]])
	if count <= 0 || phrase == "" {
		return nil, "", false
	}

	rest := text[loc[1]:]
	weight := extractWeight(rest)
	reps := extractReps(rest)

	sets := make([]models.WorkoutSet, 0, count)
	for i := 0; i < count; i++ {
		sets = append(sets, models.WorkoutSet{Number: i + 1, Reps: reps, WeightKG: weight})
	}
	return sets, phrase, true
}

// parseComplex handles uneven sets introduced by "N подходов:" followed
// by groups joined with "и".
func parseComplex(text string) ([]models.WorkoutSet, string, bool) {
	loc := reComplexIntro.FindStringSubmatchIndex(text)
	if loc == nil {
		return nil, "", false
	}
	phrase := strings.TrimSpace(text[:loc[0]])
	description := strings.TrimSpace(text[loc[1]:])
	if phrase == "" || description == "" {
		return nil, "", false
	}

	var sets []models.WorkoutSet
	number := 1
	for _, group := range reGroupSplit.Split(description, -1) {
		parts := reGroupLinked.FindStringSubmatch(group)
		if parts == nil {
			parts = reGroupBare.FindStringSubmatch(group)
		}
		if parts == nil {
			continue
		}
		count := parseNumber(parts[1])
		reps := parseNumber(parts[2])
		weight := parseWeightValue(parts[3])
		for i := 0; i < count; i++ {
			sets = append(sets, models.WorkoutSet{Number: number, Reps: reps, WeightKG: weight})
			number++
		}
	}
	if len(sets) == 0 {
		return nil, "", false
	}
	return sets, phrase, true
}

func parseNumber(s string) int {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return numberWords[s]
}

func parseWeightValue(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return value
}

func extractWeight(text string) float64 {
	parts := reWeight.FindStringSubmatch(text)
	if parts == nil {
		return 0
	}
	return parseWeightValue(parts[1])
}

func extractReps(text string) int {
	parts := reReps.FindStringSubmatch(text)
	if parts == nil {
		return 0
	}
	return parseNumber(parts[1])
}

// SummarizeSets renders a short human-readable Russian summary of the
// parsed sets, collapsing uniform sets into one line.
func SummarizeSets(sets []models.WorkoutSet) string {
	if len(sets) == 0 {
		return ""
	}
	first := sets[0]
	uniform := true
	for _, s := range sets[1:] {
		if s.Reps != first.Reps || s.WeightKG != first.WeightKG {
			uniform = false
			break
		}
	}
	if uniform {
		parts := []string{fmt.Sprintf("%d подходов", len(sets))}
		if first.Reps > 0 {
			parts = append(parts, fmt.Sprintf("по %d раз", first.Reps))
		}
		if first.WeightKG > 0 {
			parts = append(parts, fmt.Sprintf("с весом %sкг", trimFloat(first.WeightKG)))
		}
		return strings.Join(parts, " ")
	}

	descriptions := make([]string, 0, len(sets))
	for _, s := range sets {
		parts := []string{fmt.Sprintf("подход %d", s.Number)}
		if s.Reps > 0 {
			parts = append(parts, fmt.Sprintf("%d раз", s.Reps))
		}
		if s.WeightKG > 0 {
			parts = append(parts, fmt.Sprintf("%sкг", trimFloat(s.WeightKG)))
		}
		descriptions = append(descriptions, strings.Join(parts, " - "))
	}
	return strings.Join(descriptions, "; ")
}

func trimFloat(value float64) string {
	s := strconv.FormatFloat(value, 'f', -1, 64)
	return s
}
