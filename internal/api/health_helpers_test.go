package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type healthResponse struct {
	Status     string `json:"status"`
	Components []struct {
		Component string `json:"component"`
		Status    string `json:"status"`
		Error     string `json:"error"`
	} `json:"components"`
}

func componentStatuses(resp healthResponse) map[string]string {
	statuses := make(map[string]string, len(resp.Components))
	for _, component := range resp.Components {
		statuses[component.Component] = component.Status
	}
	return statuses
}

func TestHealthReportsComponents(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp healthResponse
	decodeBody(t, rec, &resp)
	if resp.Status != "ok" {
		t.Fatalf("expected ok status, got %q", resp.Status)
	}
	statuses := componentStatuses(resp)
	if statuses["datastore"] != "ok" {
		t.Fatalf("expected healthy datastore, got %v", statuses)
	}
	if statuses["sessions"] != "ok" {
		t.Fatalf("expected healthy sessions, got %v", statuses)
	}
}

func TestHealthStays200WhenDegraded(t *testing.T) {
	handler, store := newTestHandler(t)
	handler.Store = failingStore{Repository: store, err: errors.New("disk gone")}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.Health(rec, req)

	// Liveness never fails while the process can answer; the component
	// detail carries the degradation.
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp healthResponse
	decodeBody(t, rec, &resp)
	if resp.Status != "degraded" {
		t.Fatalf("expected degraded status, got %q", resp.Status)
	}
}

func TestReadyFailsWhenDatastoreDown(t *testing.T) {
	handler, store := newTestHandler(t)
	handler.Store = failingStore{Repository: store, err: errors.New("disk gone")}

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	handler.Ready(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var resp healthResponse
	decodeBody(t, rec, &resp)
	statuses := componentStatuses(resp)
	if statuses["datastore"] != "degraded" {
		t.Fatalf("expected degraded datastore, got %v", statuses)
	}
	if statuses["sessions"] != "ok" {
		t.Fatalf("expected sessions to stay healthy, got %v", statuses)
	}
}

func TestReadyIncludesRateLimiter(t *testing.T) {
	handler, _ := newTestHandler(t)
	handler.RateLimiter = pingerFunc(func(context.Context) error {
		return errors.New("redis unreachable")
	})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	handler.Ready(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var resp healthResponse
	decodeBody(t, rec, &resp)
	statuses := componentStatuses(resp)
	if statuses["rate_limiter"] != "degraded" {
		t.Fatalf("expected degraded rate limiter, got %v", statuses)
	}
}

func TestReadyOKWhenAllHealthy(t *testing.T) {
	handler, _ := newTestHandler(t)
	handler.RateLimiter = pingerFunc(func(context.Context) error { return nil })

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	handler.Ready(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
