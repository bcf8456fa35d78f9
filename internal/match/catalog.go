package match

import (
	"sort"
	"strings"

	"fitvoice/internal/models"
)

// nameVariant is one pre-normalized match target for a catalog entry.
type nameVariant struct {
	display  string
	norm     string
	language string
	alias    bool
}

type entry struct {
	exercise models.Exercise
	variants []nameVariant
}

// Catalog is an immutable, pre-normalized snapshot of the active
// exercise records. Queries scan it without locking; refreshes build a
// new Catalog and swap it in atomically, so in-flight queries always
// observe a consistent set.
type Catalog struct {
	entries   []entry
	languages map[string]struct{}
}

// NewCatalog builds a snapshot from the given records. Inactive records
// and records without a single usable name are skipped. A full scan per
// query is the intended access pattern; for a catalog in the hundreds
// this needs no index.
func NewCatalog(exercises []models.Exercise) *Catalog {
	catalog := &Catalog{
		entries:   make([]entry, 0, len(exercises)),
		languages: make(map[string]struct{}),
	}
	for _, exercise := range exercises {
		if !exercise.IsActive {
			continue
		}
		e := entry{exercise: exercise}
		if norm := Normalize(exercise.Name); norm != "" {
			e.variants = append(e.variants, nameVariant{display: exercise.Name, norm: norm})
		}
		languages := make([]string, 0, len(exercise.LocalizedNames))
		for language := range exercise.LocalizedNames {
			languages = append(languages, language)
		}
		sort.Strings(languages)
		for _, language := range languages {
			name := exercise.LocalizedNames[language]
			norm := Normalize(name)
			if norm == "" {
				continue
			}
			code := strings.ToLower(strings.TrimSpace(language))
			e.variants = append(e.variants, nameVariant{display: name, norm: norm, language: code})
			catalog.languages[code] = struct{}{}
		}
		for _, alias := range exercise.Aliases {
			if norm := Normalize(alias); norm != "" {
				e.variants = append(e.variants, nameVariant{display: alias, norm: norm, alias: true})
			}
		}
		if len(e.variants) == 0 {
			continue
		}
		catalog.entries = append(catalog.entries, e)
	}
	return catalog
}

// Size returns the number of matchable records in the snapshot.
func (c *Catalog) Size() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// knowsLanguage reports whether any record carries a localized name for
// the given language code.
func (c *Catalog) knowsLanguage(code string) bool {
	if c == nil {
		return false
	}
	_, ok := c.languages[code]
	return ok
}
