package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"fitvoice/internal/models"
	"fitvoice/internal/storage"
)

type updateProfileRequest struct {
	PreferredLanguage *string  `json:"preferredLanguage"`
	WeightUnit        *string  `json:"weightUnit"`
	HeightCM          *int     `json:"heightCm"`
	WeightKG          *float64 `json:"weightKg"`
	Goal              *string  `json:"goal"`
}

// ProfileByUserID serves GET and PUT for a user's training profile. A
// missing profile reads as an empty one rather than a 404 so clients
// can render defaults before the first save.
func (h *Handler) ProfileByUserID(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimPrefix(r.URL.Path, "/api/profiles/")
	if userID == "" || strings.Contains(userID, "/") {
		writeError(w, http.StatusNotFound, fmt.Errorf("user id missing"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		if _, ok := h.requireSelfOrAdmin(w, r, userID); !ok {
			return
		}
		if _, exists := h.Store.GetUser(userID); !exists {
			writeError(w, http.StatusNotFound, fmt.Errorf("user %s not found", userID))
			return
		}
		profile, exists := h.Store.GetProfile(userID)
		if !exists {
			profile = models.Profile{UserID: userID}
		}
		writeJSON(w, http.StatusOK, profile)
	case http.MethodPut:
		if _, ok := h.requireSelfOrAdmin(w, r, userID); !ok {
			return
		}
		var req updateProfileRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		profile, err := h.Store.UpsertProfile(userID, storage.ProfileUpdate{
			PreferredLanguage: req.PreferredLanguage,
			WeightUnit:        req.WeightUnit,
			HeightCM:          req.HeightCM,
			WeightKG:          req.WeightKG,
			Goal:              req.Goal,
		})
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, storage.ErrNotFound) {
				status = http.StatusNotFound
			}
			writeError(w, status, err)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	default:
		writeMethodNotAllowed(w, r, "GET, PUT")
	}
}
