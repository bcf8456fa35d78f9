package match

import "testing"

func TestSimilarityExactEquality(t *testing.T) {
	if got := Similarity("жим лежа", "жим лежа"); got != 1 {
		t.Fatalf("expected 1.0 for equal strings, got %v", got)
	}
	// 1.0 is reserved for exact equality even when the candidate fully
	// contains the query.
	if got := Similarity("жим лежа", "жим лежа спина"); got >= 1 {
		t.Fatalf("expected score below 1.0 for inexact match, got %v", got)
	}
}

func TestSimilarityEmptyInputs(t *testing.T) {
	if got := Similarity("", "жим лежа"); got != 0 {
		t.Fatalf("expected 0 for empty query, got %v", got)
	}
	if got := Similarity("жим лежа", ""); got != 0 {
		t.Fatalf("expected 0 for empty candidate, got %v", got)
	}
}

func TestSimilarityPartialPhraseScoresHigh(t *testing.T) {
	got := Similarity("жим лежа", "жим штанги лежа")
	if got < 0.9 {
		t.Fatalf("expected partial phrase to score >= 0.9, got %v", got)
	}
}

func TestSimilarityAsymmetry(t *testing.T) {
	// Extra qualifier words in the candidate cost less than query words
	// missing from the candidate.
	forward := Similarity("жим лежа", "жим штанги лежа")
	reverse := Similarity("жим штанги лежа", "жим лежа")
	if forward <= reverse {
		t.Fatalf("expected forward score %v to exceed reverse score %v", forward, reverse)
	}
}

func TestSimilarityUnrelatedScoresLow(t *testing.T) {
	if got := Similarity("присед", "жим штанги лежа"); got >= 0.5 {
		t.Fatalf("expected unrelated strings to score below 0.5, got %v", got)
	}
}

func TestSimilarityBounded(t *testing.T) {
	pairs := [][2]string{
		{"жим лежа", "жим штанги лежа"},
		{"bench press", "barbell bench press"},
		{"a", "completely different"},
		{"pull-up", "pull-up"},
	}
	for _, pair := range pairs {
		got := Similarity(pair[0], pair[1])
		if got < 0 || got > 1 {
			t.Fatalf("Similarity(%q, %q) = %v out of [0,1]", pair[0], pair[1], got)
		}
	}
}

func TestSimilarityDeterministic(t *testing.T) {
	first := Similarity("становая тяга", "становая тяга с гантелями")
	for i := 0; i < 10; i++ {
		if got := Similarity("становая тяга", "становая тяга с гантелями"); got != first {
			t.Fatalf("similarity not deterministic: %v vs %v", got, first)
		}
	}
}
