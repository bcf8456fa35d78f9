package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func findSessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == SessionCookieName {
			return cookie
		}
	}
	t.Fatalf("expected %s cookie in response", SessionCookieName)
	return nil
}

func TestSignupCreatesAccountAndSession(t *testing.T) {
	handler, store := newTestHandler(t)

	req := jsonRequest(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"displayName": "Alex",
		"email":       "alex@example.com",
		"password":    "strongpassword",
	})
	rec := httptest.NewRecorder()
	handler.Signup(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ExpiresAt string `json:"expiresAt"`
		User      struct {
			ID         string   `json:"id"`
			Email      string   `json:"email"`
			Roles      []string `json:"roles"`
			SelfSignup bool     `json:"selfSignup"`
		} `json:"user"`
	}
	decodeBody(t, rec, &resp)
	if resp.User.Email != "alex@example.com" {
		t.Fatalf("unexpected email %q", resp.User.Email)
	}
	if !resp.User.SelfSignup {
		t.Fatal("expected selfSignup account")
	}
	if len(resp.User.Roles) != 1 || resp.User.Roles[0] != "athlete" {
		t.Fatalf("expected default athlete role, got %v", resp.User.Roles)
	}
	if resp.ExpiresAt == "" {
		t.Fatal("expected session expiry in response")
	}

	cookie := findSessionCookie(t, rec)
	if !cookie.HttpOnly {
		t.Fatal("session cookie must be HttpOnly")
	}
	if cookie.Path != "/" {
		t.Fatalf("expected cookie path /, got %q", cookie.Path)
	}
	if cookie.Value == "" {
		t.Fatal("expected session token in cookie")
	}

	userID, _, ok, err := handler.Sessions.Validate(cookie.Value)
	if err != nil || !ok {
		t.Fatalf("expected valid session, ok=%v err=%v", ok, err)
	}
	if userID != resp.User.ID {
		t.Fatalf("session bound to %s, expected %s", userID, resp.User.ID)
	}
	if _, exists := store.FindUserByEmail("alex@example.com"); !exists {
		t.Fatal("expected account to be persisted")
	}
}

func TestSignupRejectsShortPassword(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := jsonRequest(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"displayName": "Alex",
		"email":       "alex@example.com",
		"password":    "short",
	})
	rec := httptest.NewRecorder()
	handler.Signup(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); !strings.Contains(msg, "at least 8 characters") {
		t.Fatalf("unexpected error message %q", msg)
	}
}

func TestSignupRejectsUnknownFields(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := jsonRequest(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"displayName": "Alex",
		"email":       "alex@example.com",
		"password":    "strongpassword",
		"isAdmin":     "true",
	})
	rec := httptest.NewRecorder()
	handler.Signup(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestSignupDisabled(t *testing.T) {
	handler, _ := newTestHandler(t)
	handler.AllowSelfSignup = false

	req := jsonRequest(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"displayName": "Alex",
		"email":       "alex@example.com",
		"password":    "strongpassword",
	})
	rec := httptest.NewRecorder()
	handler.Signup(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestLoginIssuesSessionCookie(t *testing.T) {
	handler, store := newTestHandler(t)
	createTestUser(t, store, "coach@example.com", "coach")

	req := jsonRequest(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "coach@example.com",
		"password": "strongpassword",
	})
	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	cookie := findSessionCookie(t, rec)
	if _, _, ok, err := handler.Sessions.Validate(cookie.Value); err != nil || !ok {
		t.Fatalf("expected valid session from login, ok=%v err=%v", ok, err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	handler, store := newTestHandler(t)
	createTestUser(t, store, "coach@example.com", "coach")

	req := jsonRequest(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "coach@example.com",
		"password": "wrongpassword",
	})
	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "invalid credentials" {
		t.Fatalf("unexpected error message %q", msg)
	}
}

func TestSessionGetReturnsUser(t *testing.T) {
	handler, store := newTestHandler(t)
	user := createTestUser(t, store, "athlete@example.com", "athlete")
	token, _, err := handler.Sessions.Create(user.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.Session(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	decodeBody(t, rec, &resp)
	if resp.User.ID != user.ID {
		t.Fatalf("expected user %s, got %s", user.ID, resp.User.ID)
	}
}

func TestSessionGetRejectsMissingToken(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	rec := httptest.NewRecorder()
	handler.Session(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSessionDeleteRevokesToken(t *testing.T) {
	handler, store := newTestHandler(t)
	user := createTestUser(t, store, "athlete@example.com", "athlete")
	token, _, err := handler.Sessions.Create(user.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/auth/session", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.Session(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	cookie := findSessionCookie(t, rec)
	if cookie.MaxAge >= 0 {
		t.Fatalf("expected cookie to be cleared, got MaxAge %d", cookie.MaxAge)
	}
	if _, _, ok, err := handler.Sessions.Validate(token); err != nil {
		t.Fatalf("validate after revoke: %v", err)
	} else if ok {
		t.Fatal("expected token to be revoked")
	}
}

func TestExtractToken(t *testing.T) {
	cases := []struct {
		name   string
		header string
		cookie string
		want   string
	}{
		{name: "BearerHeader", header: "Bearer token-a", want: "token-a"},
		{name: "CookieOnly", cookie: "token-b", want: "token-b"},
		{name: "HeaderWinsOverCookie", header: "Bearer token-a", cookie: "token-b", want: "token-a"},
		{name: "NonBearerSchemeIgnored", header: "Basic dXNlcg==", cookie: "token-b", want: "token-b"},
		{name: "Missing", want: ""},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: tc.cookie})
			}
			if got := ExtractToken(req); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestSanitizeReturnPath(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"", "/"},
		{"/dashboard", "/dashboard"},
		{"/logs?limit=10", "/logs?limit=10"},
		{"https://evil.example.com/phish", "/phish"},
		{"//evil.example.com", "/"},
		{"dashboard", "/dashboard"},
		{"  /history  ", "/history"},
	}

	for _, tc := range cases {
		if got := sanitizeReturnPath(tc.input); got != tc.want {
			t.Fatalf("sanitizeReturnPath(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestAppendQueryParam(t *testing.T) {
	if got := appendQueryParam("/dashboard", "oauth", "success"); got != "/dashboard?oauth=success" {
		t.Fatalf("unexpected redirect target %q", got)
	}
	if got := appendQueryParam("/logs?limit=10", "oauth", "error"); got != "/logs?limit=10&oauth=error" {
		t.Fatalf("unexpected redirect target %q", got)
	}
}

func TestUsersRequireAdmin(t *testing.T) {
	handler, store := newTestHandler(t)
	athlete := createTestUser(t, store, "athlete@example.com", "athlete")

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	rec := httptest.NewRecorder()
	handler.Users(rec, asUser(req, athlete))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for athlete, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/users", nil)
	rec = httptest.NewRecorder()
	handler.Users(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without user, got %d", rec.Code)
	}
}

func TestUsersListAndCreate(t *testing.T) {
	handler, store := newTestHandler(t)
	admin := createTestUser(t, store, "admin@example.com", "admin")

	req := jsonRequest(t, http.MethodPost, "/api/users", map[string]any{
		"displayName": "New Coach",
		"email":       "coach@example.com",
		"roles":       []string{"coach"},
		"password":    "strongpassword",
	})
	rec := httptest.NewRecorder()
	handler.Users(rec, asUser(req, admin))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Roles       []string `json:"roles"`
		HasPassword bool     `json:"hasPassword"`
	}
	decodeBody(t, rec, &created)
	if len(created.Roles) != 1 || created.Roles[0] != "coach" {
		t.Fatalf("expected coach role, got %v", created.Roles)
	}
	if !created.HasPassword {
		t.Fatal("expected password to be set")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/users", nil)
	rec = httptest.NewRecorder()
	handler.Users(rec, asUser(req, admin))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var listed []map[string]any
	decodeBody(t, rec, &listed)
	if len(listed) != 2 {
		t.Fatalf("expected 2 users, got %d", len(listed))
	}
}

func TestUserByIDSelfOrAdmin(t *testing.T) {
	handler, store := newTestHandler(t)
	admin := createTestUser(t, store, "admin@example.com", "admin")
	athlete := createTestUser(t, store, "athlete@example.com", "athlete")
	other := createTestUser(t, store, "other@example.com", "athlete")

	get := func(target string) (*httptest.ResponseRecorder, *http.Request) {
		return httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil)
	}

	rec, req := get("/api/users/" + athlete.ID)
	handler.UserByID(rec, asUser(req, athlete))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected athlete to read own account, got %d", rec.Code)
	}

	rec, req = get("/api/users/" + other.ID)
	handler.UserByID(rec, asUser(req, athlete))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 reading another account, got %d", rec.Code)
	}

	rec, req = get("/api/users/" + other.ID)
	handler.UserByID(rec, asUser(req, admin))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected admin to read any account, got %d", rec.Code)
	}

	rec, req = get("/api/users/missing")
	handler.UserByID(rec, asUser(req, admin))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown account, got %d", rec.Code)
	}
}

func TestUserByIDPatchAndDelete(t *testing.T) {
	handler, store := newTestHandler(t)
	admin := createTestUser(t, store, "admin@example.com", "admin")
	athlete := createTestUser(t, store, "athlete@example.com", "athlete")

	req := jsonRequest(t, http.MethodPatch, "/api/users/"+athlete.ID, map[string]any{
		"displayName": "Renamed",
		"roles":       []string{"athlete", "coach"},
	})
	rec := httptest.NewRecorder()
	handler.UserByID(rec, asUser(req, admin))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated struct {
		DisplayName string   `json:"displayName"`
		Roles       []string `json:"roles"`
	}
	decodeBody(t, rec, &updated)
	if updated.DisplayName != "Renamed" {
		t.Fatalf("expected renamed account, got %q", updated.DisplayName)
	}
	if len(updated.Roles) != 2 {
		t.Fatalf("expected both roles, got %v", updated.Roles)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/users/"+athlete.ID, nil)
	rec = httptest.NewRecorder()
	handler.UserByID(rec, asUser(req, admin))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if _, exists := store.GetUser(athlete.ID); exists {
		t.Fatal("expected account to be removed")
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/users/"+athlete.ID, nil)
	rec = httptest.NewRecorder()
	handler.UserByID(rec, asUser(req, admin))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 deleting twice, got %d", rec.Code)
	}
}
