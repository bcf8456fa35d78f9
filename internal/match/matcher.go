package match

import (
	"sort"
	"strings"
	"sync/atomic"

	"fitvoice/internal/models"
)

// Defaults for the tunable ranking thresholds. The confidence cutoff and
// relevance floor are calibration values, not contracts; deployments
// override them through Config.
const (
	DefaultMaxResults    = 3
	MaxResultsCap        = 10
	DefaultRelevance     = 0.3
	DefaultExactMatch    = 0.9
	defaultCanonicalLang = "en"
)

// Config tunes the ranker. Zero values fall back to the package
// defaults.
type Config struct {
	DefaultMaxResults int
	RelevanceFloor    float64
	ExactThreshold    float64
}

func (c Config) withDefaults() Config {
	if c.DefaultMaxResults <= 0 {
		c.DefaultMaxResults = DefaultMaxResults
	}
	if c.DefaultMaxResults > MaxResultsCap {
		c.DefaultMaxResults = MaxResultsCap
	}
	if c.RelevanceFloor <= 0 {
		c.RelevanceFloor = DefaultRelevance
	}
	if c.ExactThreshold <= 0 {
		c.ExactThreshold = DefaultExactMatch
	}
	return c
}

// Query is one match request. MaxResults is clamped to [1,10]; zero
// selects the configured default.
type Query struct {
	Text       string
	Language   string
	MaxResults int
}

// Match pairs a catalog record with the similarity of its best-scoring
// name variant.
type Match struct {
	Exercise    models.Exercise
	MatchedName string
	Similarity  float64
}

// Result is the ranked outcome of one query. ExactMatch reports whether
// the top score cleared the high-confidence threshold, signalling the
// caller may auto-select without a disambiguation step.
type Result struct {
	Matches    []Match
	ExactMatch bool
}

// Matcher ranks catalog records against free-form query text. Matching
// is a pure computation over an immutable snapshot; concurrent queries
// share the snapshot without locking, and Swap installs a replacement
// atomically.
type Matcher struct {
	cfg     Config
	catalog atomic.Pointer[Catalog]
}

// New returns a Matcher with an empty catalog snapshot.
func New(cfg Config) *Matcher {
	m := &Matcher{cfg: cfg.withDefaults()}
	m.catalog.Store(NewCatalog(nil))
	return m
}

// Swap atomically installs a new catalog snapshot. In-flight queries
// keep reading the snapshot they started with.
func (m *Matcher) Swap(catalog *Catalog) {
	if catalog == nil {
		catalog = NewCatalog(nil)
	}
	m.catalog.Store(catalog)
}

// SetExercises builds a snapshot from the given records and installs it.
func (m *Matcher) SetExercises(exercises []models.Exercise) {
	m.Swap(NewCatalog(exercises))
}

// CatalogSize returns the matchable record count of the current
// snapshot.
func (m *Matcher) CatalogSize() int {
	return m.catalog.Load().Size()
}

// Match ranks the catalog against the query. A blank query returns an
// empty result, not an error. Scores below the relevance floor are
// dropped, so fewer than MaxResults entries (including none) is normal.
func (m *Matcher) Match(query Query) Result {
	catalog := m.catalog.Load()
	normQuery := Normalize(query.Text)
	if normQuery == "" || catalog.Size() == 0 {
		return Result{}
	}

	language := strings.ToLower(strings.TrimSpace(query.Language))
	// An unrecognized language hint degrades to canonical-name
	// comparison only.
	recognized := language == "" || language == defaultCanonicalLang || catalog.knowsLanguage(language)

	matches := make([]Match, 0, len(catalog.entries))
	for _, e := range catalog.entries {
		best := Match{Exercise: e.exercise}
		for _, variant := range e.variants {
			if !variantApplies(variant, language, recognized) {
				continue
			}
			score := Similarity(normQuery, variant.norm)
			if score > best.Similarity {
				best.Similarity = score
				best.MatchedName = variant.display
			}
		}
		if best.Similarity > m.cfg.RelevanceFloor {
			matches = append(matches, best)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		li, lj := len(matches[i].MatchedName), len(matches[j].MatchedName)
		if li != lj {
			return li < lj
		}
		return matches[i].Exercise.ID < matches[j].Exercise.ID
	})

	limit := clampMaxResults(query.MaxResults, m.cfg.DefaultMaxResults)
	if len(matches) > limit {
		matches = matches[:limit]
	}

	result := Result{Matches: matches}
	if len(matches) > 0 && matches[0].Similarity >= m.cfg.ExactThreshold {
		result.ExactMatch = true
	}
	return result
}

func variantApplies(v nameVariant, language string, recognized bool) bool {
	switch {
	case v.alias:
		return recognized
	case v.language == "":
		return true
	default:
		return v.language == language
	}
}

func clampMaxResults(requested, fallback int) int {
	if requested <= 0 {
		return fallback
	}
	if requested > MaxResultsCap {
		return MaxResultsCap
	}
	return requested
}
