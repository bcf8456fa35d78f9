package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"fitvoice/internal/auth"
	"fitvoice/internal/models"
	"fitvoice/internal/storage"
)

func newTestHandler(t *testing.T) (*Handler, *storage.Storage) {
	t.Helper()
	store, err := storage.NewStorage(filepath.Join(t.TempDir(), "store.json"))
	if err != nil {
		t.Fatalf("create storage: %v", err)
	}
	return NewHandler(store, auth.NewSessionManager(time.Hour)), store
}

func createTestUser(t *testing.T, store *storage.Storage, email string, roles ...string) models.User {
	t.Helper()
	user, err := store.CreateUser(storage.CreateUserParams{
		DisplayName: "Test User",
		Email:       email,
		Password:    "strongpassword",
		Roles:       roles,
	})
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return user
}

func jsonRequest(t *testing.T, method, target string, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// asUser attaches the user to the request context the way the server's
// auth middleware does for protected routes.
func asUser(r *http.Request, user models.User) *http.Request {
	return r.WithContext(ContextWithUser(r.Context(), user))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload map[string]string
	decodeBody(t, rec, &payload)
	return payload["error"]
}

// failingStore wraps the repository interface with always-erroring
// reads so tests can drive the degraded paths.
type failingStore struct {
	storage.Repository
	err error
}

func (f failingStore) Ping(ctx context.Context) error { return f.err }

func (f failingStore) ListExercises(storage.ExerciseFilter) ([]models.Exercise, error) {
	return nil, f.err
}
