package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"fitvoice/internal/models"
)

func TestProfileGetDefaultsToEmpty(t *testing.T) {
	handler, store := newTestHandler(t)
	athlete := createTestUser(t, store, "athlete@example.com", "athlete")

	req := httptest.NewRequest(http.MethodGet, "/api/profiles/"+athlete.ID, nil)
	rec := httptest.NewRecorder()
	handler.ProfileByUserID(rec, asUser(req, athlete))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for missing profile, got %d", rec.Code)
	}
	var profile models.Profile
	decodeBody(t, rec, &profile)
	if profile.UserID != athlete.ID {
		t.Fatalf("expected profile bound to %s, got %q", athlete.ID, profile.UserID)
	}
	if profile.PreferredLanguage != "" || profile.WeightKG != 0 {
		t.Fatalf("expected empty defaults, got %+v", profile)
	}
}

func TestProfileGetUnknownUser(t *testing.T) {
	handler, store := newTestHandler(t)
	admin := createTestUser(t, store, "admin@example.com", "admin")

	req := httptest.NewRequest(http.MethodGet, "/api/profiles/missing", nil)
	rec := httptest.NewRecorder()
	handler.ProfileByUserID(rec, asUser(req, admin))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", rec.Code)
	}
}

func TestProfilePutUpserts(t *testing.T) {
	handler, store := newTestHandler(t)
	athlete := createTestUser(t, store, "athlete@example.com", "athlete")

	req := jsonRequest(t, http.MethodPut, "/api/profiles/"+athlete.ID, map[string]any{
		"preferredLanguage": "RU",
		"weightUnit":        "kg",
		"heightCm":          182,
		"weightKg":          82.5,
		"goal":              "strength",
	})
	rec := httptest.NewRecorder()
	handler.ProfileByUserID(rec, asUser(req, athlete))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var profile models.Profile
	decodeBody(t, rec, &profile)
	if profile.PreferredLanguage != "ru" {
		t.Fatalf("expected language normalized to ru, got %q", profile.PreferredLanguage)
	}
	if profile.WeightKG != 82.5 || profile.HeightCM != 182 {
		t.Fatalf("unexpected measurements %+v", profile)
	}

	// Partial update keeps the untouched fields.
	req = jsonRequest(t, http.MethodPut, "/api/profiles/"+athlete.ID, map[string]any{
		"weightKg": 81.0,
	})
	rec = httptest.NewRecorder()
	handler.ProfileByUserID(rec, asUser(req, athlete))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	profile = models.Profile{}
	decodeBody(t, rec, &profile)
	if profile.WeightKG != 81.0 {
		t.Fatalf("expected updated weight, got %v", profile.WeightKG)
	}
	if profile.PreferredLanguage != "ru" || profile.HeightCM != 182 {
		t.Fatalf("expected untouched fields preserved, got %+v", profile)
	}
}

func TestProfilePutRejectsBadWeightUnit(t *testing.T) {
	handler, store := newTestHandler(t)
	athlete := createTestUser(t, store, "athlete@example.com", "athlete")

	req := jsonRequest(t, http.MethodPut, "/api/profiles/"+athlete.ID, map[string]any{
		"weightUnit": "stone",
	})
	rec := httptest.NewRecorder()
	handler.ProfileByUserID(rec, asUser(req, athlete))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported unit, got %d", rec.Code)
	}
}

func TestProfileForbiddenForOtherUser(t *testing.T) {
	handler, store := newTestHandler(t)
	athlete := createTestUser(t, store, "athlete@example.com", "athlete")
	other := createTestUser(t, store, "other@example.com", "athlete")
	admin := createTestUser(t, store, "admin@example.com", "admin")

	req := jsonRequest(t, http.MethodPut, "/api/profiles/"+other.ID, map[string]any{
		"goal": "cardio",
	})
	rec := httptest.NewRecorder()
	handler.ProfileByUserID(rec, asUser(req, athlete))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another user's profile, got %d", rec.Code)
	}

	req = jsonRequest(t, http.MethodPut, "/api/profiles/"+other.ID, map[string]any{
		"goal": "cardio",
	})
	rec = httptest.NewRecorder()
	handler.ProfileByUserID(rec, asUser(req, admin))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected admin to update any profile, got %d", rec.Code)
	}
}
