package match

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks folds accented characters to their base form (NFD, drop
// combining marks, NFC). Applied to queries and candidates alike, so
// Cyrillic forms such as "лёжа" and "лежа" compare equal.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

var (
	rePunct  = regexp.MustCompile(`[^\p{L}\p{N}\s-]+`)
	reSpaces = regexp.MustCompile(`\s+`)
)

// stopWords are filler words that carry no signal when matching an
// exercise name. Both sets are always applied; queries and catalog
// names mix languages freely in voice transcripts.
var stopWords = map[string]struct{}{
	"упражнение": {},
	"на":         {},
	"для":        {},
	"с":          {},
	"и":          {},
	"в":          {},
	"по":         {},
	"exercise":   {},
	"for":        {},
	"with":       {},
	"on":         {},
	"the":        {},
	"and":        {},
	"a":          {},
}

// Normalize produces the canonical comparable form of a name or query:
// lowercase, accent marks folded, punctuation stripped (hyphens kept),
// whitespace collapsed, stop words removed. It is a pure function and
// idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	if folded, _, err := transform.String(stripMarks, s); err == nil {
		s = folded
	}
	s = rePunct.ReplaceAllString(s, " ")
	s = reSpaces.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	fields := strings.Fields(s)
	kept := fields[:0]
	for _, field := range fields {
		if _, skip := stopWords[field]; skip {
			continue
		}
		kept = append(kept, field)
	}
	return strings.Join(kept, " ")
}
