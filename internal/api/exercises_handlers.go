package api

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fitvoice/internal/match"
	"fitvoice/internal/storage"
)

type createExerciseRequest struct {
	Name           string            `json:"name"`
	LocalizedNames map[string]string `json:"localizedNames"`
	Aliases        []string          `json:"aliases"`
	Category       string            `json:"category"`
	Difficulty     string            `json:"difficulty"`
	Description    string            `json:"description"`
	DefaultSets    int               `json:"defaultSets"`
	DefaultReps    int               `json:"defaultReps"`
	MediaURL       string            `json:"mediaUrl"`
}

type updateExerciseRequest struct {
	Name           *string           `json:"name"`
	LocalizedNames map[string]string `json:"localizedNames"`
	Aliases        *[]string         `json:"aliases"`
	Category       *string           `json:"category"`
	Difficulty     *string           `json:"difficulty"`
	Description    *string           `json:"description"`
	DefaultSets    *int              `json:"defaultSets"`
	DefaultReps    *int              `json:"defaultReps"`
	MediaURL       *string           `json:"mediaUrl"`
	IsActive       *bool             `json:"isActive"`
}

func (h *Handler) Exercises(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := h.requireAuthenticatedUser(w, r); !ok {
			return
		}
		filter := storage.ExerciseFilter{Category: strings.TrimSpace(r.URL.Query().Get("category"))}
		if raw := r.URL.Query().Get("includeInactive"); raw != "" {
			include, err := strconv.ParseBool(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Errorf("invalid includeInactive value %q", raw))
				return
			}
			filter.IncludeInactive = include
		}
		exercises, err := h.Store.ListExercises(filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, exercises)
	case http.MethodPost:
		if _, ok := h.requireRole(w, r, roleAdmin, roleCoach); !ok {
			return
		}
		var req createExerciseRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		exercise, err := h.Store.CreateExercise(storage.ExerciseParams{
			Name:           req.Name,
			LocalizedNames: req.LocalizedNames,
			Aliases:        req.Aliases,
			Category:       req.Category,
			Difficulty:     req.Difficulty,
			Description:    req.Description,
			DefaultSets:    req.DefaultSets,
			DefaultReps:    req.DefaultReps,
			MediaURL:       req.MediaURL,
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		h.refreshMatcherCatalog()
		writeJSON(w, http.StatusCreated, exercise)
	default:
		writeMethodNotAllowed(w, r, "GET, POST")
	}
}

func (h *Handler) ExerciseByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/exercises/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, fmt.Errorf("exercise id missing"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		if _, ok := h.requireAuthenticatedUser(w, r); !ok {
			return
		}
		exercise, ok := h.Store.GetExercise(id)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Errorf("exercise %s not found", id))
			return
		}
		writeJSON(w, http.StatusOK, exercise)
	case http.MethodPatch:
		if _, ok := h.requireRole(w, r, roleAdmin, roleCoach); !ok {
			return
		}
		var req updateExerciseRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		exercise, err := h.Store.UpdateExercise(id, storage.ExerciseUpdate{
			Name:           req.Name,
			LocalizedNames: req.LocalizedNames,
			Aliases:        req.Aliases,
			Category:       req.Category,
			Difficulty:     req.Difficulty,
			Description:    req.Description,
			DefaultSets:    req.DefaultSets,
			DefaultReps:    req.DefaultReps,
			MediaURL:       req.MediaURL,
			IsActive:       req.IsActive,
		})
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, storage.ErrNotFound) {
				status = http.StatusNotFound
			}
			writeError(w, status, err)
			return
		}
		h.refreshMatcherCatalog()
		writeJSON(w, http.StatusOK, exercise)
	case http.MethodDelete:
		// Catalog records are never hard-deleted: logs keep referencing
		// them, so delete deactivates.
		if _, ok := h.requireRole(w, r, roleAdmin, roleCoach); !ok {
			return
		}
		inactive := false
		if _, err := h.Store.UpdateExercise(id, storage.ExerciseUpdate{IsActive: &inactive}); err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, storage.ErrNotFound) {
				status = http.StatusNotFound
			}
			writeError(w, status, err)
			return
		}
		h.refreshMatcherCatalog()
		w.WriteHeader(http.StatusNoContent)
	default:
		writeMethodNotAllowed(w, r, "GET, PATCH, DELETE")
	}
}

// Matching

type matchRequest struct {
	Text       string `json:"text"`
	Language   string `json:"language"`
	MaxResults int    `json:"max_results"`
}

// matchEntry is the wire form of one ranked candidate: a flat record
// with the display name resolved for the query language.
type matchEntry struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	NameLocalized string  `json:"name_localized"`
	Similarity    float64 `json:"similarity"`
	Category      string  `json:"category,omitempty"`
	Difficulty    string  `json:"difficulty,omitempty"`
}

type matchResponse struct {
	Matches          []matchEntry `json:"matches"`
	ExactMatch       bool         `json:"exact_match"`
	ProcessingTimeMs float64      `json:"processing_time_ms"`
}

// MatchExercises resolves free-form text against the catalog. A blank
// query or one with no candidates above the relevance floor returns an
// empty match list, not an error.
func (h *Handler) MatchExercises(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r, "POST")
		return
	}
	if _, ok := h.requireAuthenticatedUser(w, r); !ok {
		return
	}

	var req matchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if !h.ensureMatcherCatalog(w) {
		return
	}

	start := time.Now()
	result := h.matcher().Match(match.Query{
		Text:       req.Text,
		Language:   req.Language,
		MaxResults: req.MaxResults,
	})
	elapsed := time.Since(start)
	h.metrics().ObserveMatch(matchOutcome(result), elapsed)

	writeJSON(w, http.StatusOK, newMatchResponse(result, req.Language, elapsed))
}

func newMatchEntries(result match.Result, language string) []matchEntry {
	entries := make([]matchEntry, 0, len(result.Matches))
	for _, m := range result.Matches {
		entries = append(entries, matchEntry{
			ID:            m.Exercise.ID,
			Name:          m.Exercise.Name,
			NameLocalized: m.Exercise.LocalizedName(language),
			Similarity:    roundScore(m.Similarity),
			Category:      m.Exercise.Category,
			Difficulty:    m.Exercise.Difficulty,
		})
	}
	return entries
}

func newMatchResponse(result match.Result, language string, elapsed time.Duration) matchResponse {
	return matchResponse{
		Matches:          newMatchEntries(result, language),
		ExactMatch:       result.ExactMatch,
		ProcessingTimeMs: roundScore(float64(elapsed) / float64(time.Millisecond)),
	}
}

func matchOutcome(result match.Result) string {
	switch {
	case result.ExactMatch:
		return "exact"
	case len(result.Matches) > 0:
		return "partial"
	}
	return "none"
}

// roundScore trims similarity scores and timings to two decimals for
// stable API output.
func roundScore(v float64) float64 {
	return math.Round(v*100) / 100
}

// ensureMatcherCatalog lazily loads the catalog into the matcher when
// the snapshot is empty, covering the window before the background
// refresher has run. Returns false after writing an error response.
func (h *Handler) ensureMatcherCatalog(w http.ResponseWriter) bool {
	matcher := h.matcher()
	if matcher.CatalogSize() > 0 {
		return true
	}
	exercises, err := h.Store.ListExercises(storage.ExerciseFilter{})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("exercise catalog unavailable"))
		return false
	}
	matcher.SetExercises(exercises)
	h.metrics().SetCatalogSize(matcher.CatalogSize())
	return true
}

// refreshMatcherCatalog rebuilds the matcher snapshot after a catalog
// mutation so matches see the change without waiting for the periodic
// refresher.
func (h *Handler) refreshMatcherCatalog() {
	exercises, err := h.Store.ListExercises(storage.ExerciseFilter{})
	if err != nil {
		slog.Warn("exercise catalog refresh failed", "error", err)
		return
	}
	matcher := h.matcher()
	matcher.SetExercises(exercises)
	h.metrics().SetCatalogSize(matcher.CatalogSize())
}
