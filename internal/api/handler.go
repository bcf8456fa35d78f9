package api

import (
	"context"
	"time"

	"fitvoice/internal/auth"
	"fitvoice/internal/auth/oauth"
	"fitvoice/internal/match"
	"fitvoice/internal/observability/metrics"
	"fitvoice/internal/storage"
)

// Pinger is implemented by infrastructure components that can report
// their own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler carries the dependencies shared by all HTTP handlers.
type Handler struct {
	Store               storage.Repository
	Sessions            *auth.SessionManager
	OAuth               oauth.Service
	Matcher             *match.Matcher
	Metrics             *metrics.Recorder
	RateLimiter         Pinger
	AllowSelfSignup     bool
	SessionCookiePolicy SessionCookiePolicy
}

// NewHandler wires a handler around the repository and session manager.
// Self-signup is enabled by default; deployments gate it via flags.
func NewHandler(store storage.Repository, sessions *auth.SessionManager) *Handler {
	if sessions == nil {
		sessions = auth.NewSessionManager(24 * time.Hour)
	}
	return &Handler{
		Store:           store,
		Sessions:        sessions,
		AllowSelfSignup: true,
	}
}

func (h *Handler) sessionManager() *auth.SessionManager {
	if h.Sessions == nil {
		h.Sessions = auth.NewSessionManager(24 * time.Hour)
	}
	return h.Sessions
}

func (h *Handler) matcher() *match.Matcher {
	if h.Matcher == nil {
		h.Matcher = match.New(match.Config{})
	}
	return h.Matcher
}

func (h *Handler) metrics() *metrics.Recorder {
	if h.Metrics == nil {
		return metrics.Default()
	}
	return h.Metrics
}
