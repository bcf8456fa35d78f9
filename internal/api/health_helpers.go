package api

import (
	"context"
	"net/http"
)

type componentStatus struct {
	Component string `json:"component"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

func (h *Handler) componentHealth(ctx context.Context) ([]componentStatus, string, int) {
	overallStatus := "ok"
	statusCode := http.StatusOK
	recordComponent := func(component string, err error) componentStatus {
		status := "ok"
		message := ""
		if err != nil {
			status = "degraded"
			message = err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}
		return componentStatus{Component: component, Status: status, Error: message}
	}

	components := make([]componentStatus, 0, 3)
	if h.Store != nil {
		components = append(components, recordComponent("datastore", h.Store.Ping(ctx)))
	}

	components = append(components, recordComponent("sessions", h.sessionManager().Ping(ctx)))

	if h.RateLimiter != nil {
		components = append(components, recordComponent("rate_limiter", h.RateLimiter.Ping(ctx)))
	}

	return components, overallStatus, statusCode
}

// Health reports liveness. It never fails while the process can serve
// requests; component state is informational.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	components, status, _ := h.componentHealth(r.Context())
	for _, component := range components {
		h.metrics().SetComponentHealth(component.Component, component.Status)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     status,
		"components": components,
	})
}

// Ready reports readiness: a degraded backing component returns 503 so
// load balancers stop routing traffic here.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	components, status, statusCode := h.componentHealth(r.Context())
	for _, component := range components {
		h.metrics().SetComponentHealth(component.Component, component.Status)
	}
	writeJSON(w, statusCode, map[string]interface{}{
		"status":     status,
		"components": components,
	})
}
