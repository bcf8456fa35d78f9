// Package api implements the HTTP handlers for the FitVoice backend:
// account and session management, the exercise catalog, fuzzy exercise
// matching, and voice workout logging.
//
// Handlers are plain http.HandlerFunc methods on Handler; routing and
// middleware live in internal/server. Responses are JSON with camelCase
// field names, and errors use the {"error": "..."} envelope.
package api
