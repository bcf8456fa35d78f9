package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func issuedCookie(t *testing.T, h *Handler, r *http.Request) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	h.setSessionCookie(rec, r, "token-123", time.Now().Add(time.Hour))
	return findSessionCookie(t, rec)
}

func TestSessionCookieDefaultsOverPlainHTTP(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "http://fitvoice.local/api/auth/login", nil)
	cookie := issuedCookie(t, handler, req)

	if cookie.Secure {
		t.Fatal("plain HTTP request must not set Secure in auto mode")
	}
	if !cookie.HttpOnly {
		t.Fatal("session cookie must be HttpOnly")
	}
	if cookie.SameSite != http.SameSiteStrictMode {
		t.Fatalf("expected SameSite strict, got %v", cookie.SameSite)
	}
	if cookie.MaxAge <= 0 {
		t.Fatalf("expected positive MaxAge, got %d", cookie.MaxAge)
	}
}

func TestSessionCookieSecureBehindProxy(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "http://fitvoice.local/api/auth/login", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	cookie := issuedCookie(t, handler, req)

	if !cookie.Secure {
		t.Fatal("forwarded HTTPS request must set Secure")
	}
}

func TestSessionCookieSecureAlways(t *testing.T) {
	handler, _ := newTestHandler(t)
	handler.SessionCookiePolicy = SessionCookiePolicy{
		SameSite:   http.SameSiteLaxMode,
		SecureMode: SessionCookieSecureAlways,
	}

	req := httptest.NewRequest(http.MethodPost, "http://fitvoice.local/api/auth/login", nil)
	cookie := issuedCookie(t, handler, req)

	if !cookie.Secure {
		t.Fatal("always mode must set Secure even over plain HTTP")
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Fatalf("expected configured SameSite to apply, got %v", cookie.SameSite)
	}
}

func TestClearSessionCookieExpiresImmediately(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/auth/session", nil)
	rec := httptest.NewRecorder()
	handler.ClearSessionCookie(rec, req)

	cookie := findSessionCookie(t, rec)
	if cookie.Value != "" {
		t.Fatalf("expected empty value, got %q", cookie.Value)
	}
	if cookie.MaxAge >= 0 {
		t.Fatalf("expected negative MaxAge, got %d", cookie.MaxAge)
	}
}

func TestIsSecureRequest(t *testing.T) {
	plain := httptest.NewRequest(http.MethodGet, "http://fitvoice.local/", nil)
	if isSecureRequest(plain) {
		t.Fatal("plain request must not read as secure")
	}

	forwarded := httptest.NewRequest(http.MethodGet, "http://fitvoice.local/", nil)
	forwarded.Header.Set("X-Forwarded-Proto", "http, https")
	if !isSecureRequest(forwarded) {
		t.Fatal("forwarded https hop must read as secure")
	}

	tls := httptest.NewRequest(http.MethodGet, "https://fitvoice.local/", nil)
	if !isSecureRequest(tls) {
		t.Fatal("TLS request must read as secure")
	}
}
