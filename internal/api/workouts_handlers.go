package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fitvoice/internal/match"
	"fitvoice/internal/models"
	"fitvoice/internal/parser"
	"fitvoice/internal/storage"
)

type parseWorkoutRequest struct {
	Transcript string `json:"transcript"`
	Language   string `json:"language"`
	// DryRun skips persisting a workout log so clients can preview the
	// recognition result before confirming.
	DryRun bool `json:"dryRun"`
}

type parseWorkoutResponse struct {
	Transcript       string              `json:"transcript"`
	ExercisePhrase   string              `json:"exercisePhrase"`
	Structured       bool                `json:"structured"`
	Sets             []models.WorkoutSet `json:"sets,omitempty"`
	Summary          string              `json:"summary,omitempty"`
	Matches          []matchEntry        `json:"matches"`
	ExactMatch       bool                `json:"exactMatch"`
	Log              *models.WorkoutLog  `json:"log,omitempty"`
	ProcessingTimeMs float64             `json:"processingTimeMs"`
}

// ParseWorkout runs the full voice logging pipeline: extract the set
// structure from the transcript, resolve the remaining phrase against
// the catalog, and persist a workout log entry. The entry records the
// matched exercise only on a high-confidence match; otherwise it keeps
// the raw transcript for later correction.
func (h *Handler) ParseWorkout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, r, "POST")
		return
	}
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}

	var req parseWorkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Transcript) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("transcript is required"))
		return
	}

	if !h.ensureMatcherCatalog(w) {
		return
	}

	start := time.Now()
	parsed := parser.Parse(req.Transcript)
	h.metrics().ObserveParse(parsed.Structured)

	result := h.matcher().Match(match.Query{
		Text:     parsed.ExercisePhrase,
		Language: req.Language,
	})
	elapsed := time.Since(start)
	h.metrics().ObserveMatch(matchOutcome(result), elapsed)

	response := parseWorkoutResponse{
		Transcript:       parsed.Raw,
		ExercisePhrase:   parsed.ExercisePhrase,
		Structured:       parsed.Structured,
		Sets:             parsed.Sets,
		Matches:          newMatchEntries(result, req.Language),
		ExactMatch:       result.ExactMatch,
		ProcessingTimeMs: roundScore(float64(elapsed) / float64(time.Millisecond)),
	}
	if parsed.Structured {
		response.Summary = parser.SummarizeSets(parsed.Sets)
	}

	if !req.DryRun {
		params := storage.CreateWorkoutLogParams{
			UserID:     user.ID,
			Transcript: parsed.Raw,
			Sets:       parsed.Sets,
		}
		if result.ExactMatch {
			params.ExerciseID = result.Matches[0].Exercise.ID
			params.Similarity = roundScore(result.Matches[0].Similarity)
		}
		log, err := h.Store.CreateWorkoutLog(params)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if result.ExactMatch {
			if err := h.Store.RecordExerciseUsage(params.ExerciseID); err != nil {
				slog.Warn("record exercise usage failed", "exerciseId", params.ExerciseID, "error", err)
			}
		}
		h.metrics().WorkoutLogged("voice")
		response.Log = &log
	}

	writeJSON(w, http.StatusOK, response)
}

// Workout logs

type createWorkoutLogRequest struct {
	ExerciseID string              `json:"exerciseId"`
	Transcript string              `json:"transcript"`
	Sets       []models.WorkoutSet `json:"sets"`
}

func (h *Handler) WorkoutLogs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		user, ok := h.requireAuthenticatedUser(w, r)
		if !ok {
			return
		}
		userID := strings.TrimSpace(r.URL.Query().Get("userId"))
		if userID == "" {
			userID = user.ID
		}
		if _, ok := h.requireSelfOrAdmin(w, r, userID); !ok {
			return
		}
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit value %q", raw))
				return
			}
			limit = parsed
		}
		logs, err := h.Store.ListWorkoutLogs(userID, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, logs)
	case http.MethodPost:
		user, ok := h.requireAuthenticatedUser(w, r)
		if !ok {
			return
		}
		var req createWorkoutLogRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		log, err := h.Store.CreateWorkoutLog(storage.CreateWorkoutLogParams{
			UserID:     user.ID,
			ExerciseID: req.ExerciseID,
			Transcript: req.Transcript,
			Sets:       req.Sets,
		})
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, storage.ErrNotFound) {
				status = http.StatusNotFound
			}
			writeError(w, status, err)
			return
		}
		h.metrics().WorkoutLogged("manual")
		writeJSON(w, http.StatusCreated, log)
	default:
		writeMethodNotAllowed(w, r, "GET, POST")
	}
}
