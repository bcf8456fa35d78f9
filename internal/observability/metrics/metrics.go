package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type requestLabel struct {
	method string
	path   string
	status string
}

// Recorder aggregates in-memory metrics counters and gauges for HTTP
// requests, exercise matching, transcript parsing, catalog refreshes,
// and authentication events. It coordinates concurrent writers via a
// RWMutex while exposing a thread-safe gauge for catalog size tracking.
type Recorder struct {
	mu              sync.RWMutex
	requestCount    map[requestLabel]uint64
	requestDuration map[requestLabel]time.Duration
	matchCount      map[string]uint64
	matchDuration   map[string]time.Duration
	parseCount      map[string]uint64
	workoutLogs     map[string]uint64
	authEvents      map[string]uint64
	refreshCount    map[string]uint64
	healthValue     map[string]float64
	healthState     map[string]string
	catalogSize     atomic.Int64
}

var defaultRecorder = New()

// New constructs an empty Recorder with initialized backing maps so callers can
// immediately record metrics without additional setup.
func New() *Recorder {
	return &Recorder{
		requestCount:    make(map[requestLabel]uint64),
		requestDuration: make(map[requestLabel]time.Duration),
		matchCount:      make(map[string]uint64),
		matchDuration:   make(map[string]time.Duration),
		parseCount:      make(map[string]uint64),
		workoutLogs:     make(map[string]uint64),
		authEvents:      make(map[string]uint64),
		refreshCount:    make(map[string]uint64),
		healthValue:     make(map[string]float64),
		healthState:     make(map[string]string),
	}
}

// Default returns the singleton Recorder instance shared across helper
// functions for packages that do not require custom instrumentation pipelines.
func Default() *Recorder {
	return defaultRecorder
}

// ObserveRequest normalizes the request label set and accumulates totals for
// request count and cumulative duration by HTTP method, normalized path, and
// status code.
func (r *Recorder) ObserveRequest(method, path string, status int, duration time.Duration) {
	label := requestLabel{
		method: strings.ToUpper(method),
		path:   normalizePath(path),
		status: fmt.Sprintf("%d", status),
	}
	r.mu.Lock()
	r.requestCount[label]++
	r.requestDuration[label] += duration
	r.mu.Unlock()
}

// ObserveMatch records one match query by outcome ("exact", "partial",
// "none") together with the time the ranking took.
func (r *Recorder) ObserveMatch(outcome string, duration time.Duration) {
	normalized := normalizeName(outcome)
	r.mu.Lock()
	r.matchCount[normalized]++
	r.matchDuration[normalized] += duration
	r.mu.Unlock()
}

// ObserveParse records one transcript parse by outcome ("structured" when
// set counts and weights were recognized, "freeform" otherwise).
func (r *Recorder) ObserveParse(structured bool) {
	outcome := "freeform"
	if structured {
		outcome = "structured"
	}
	r.mu.Lock()
	r.parseCount[outcome]++
	r.mu.Unlock()
}

// WorkoutLogged records a persisted workout log entry keyed by its source
// ("voice" for auto-created entries, "manual" for direct API writes).
func (r *Recorder) WorkoutLogged(source string) {
	normalized := normalizeName(source)
	r.mu.Lock()
	r.workoutLogs[normalized]++
	r.mu.Unlock()
}

// ObserveAuthEvent records an authentication event for throughput
// monitoring (e.g., "signup", "login", "oauth_login", "logout").
func (r *Recorder) ObserveAuthEvent(event string) {
	normalized := normalizeName(event)
	r.mu.Lock()
	r.authEvents[normalized]++
	r.mu.Unlock()
}

// ObserveCatalogRefresh records the result of a catalog snapshot rebuild.
func (r *Recorder) ObserveCatalogRefresh(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.mu.Lock()
	r.refreshCount[result]++
	r.mu.Unlock()
}

// SetCatalogSize updates the matchable catalog record gauge.
func (r *Recorder) SetCatalogSize(size int) {
	if size < 0 {
		size = 0
	}
	r.catalogSize.Store(int64(size))
}

// CatalogSize exposes the current catalog size gauge.
func (r *Recorder) CatalogSize() int64 {
	return r.catalogSize.Load()
}

// SetComponentHealth normalizes component identifiers, maps status strings
// to numeric health values, and stores both representations for export.
func (r *Recorder) SetComponentHealth(component, status string) {
	normalizedComponent := normalizeName(component)
	normalizedStatus := strings.ToLower(strings.TrimSpace(status))
	value := 0.0
	switch normalizedStatus {
	case "ok", "healthy":
		value = 1
	case "disabled":
		value = 0
	default:
		value = -1
	}
	r.mu.Lock()
	r.healthValue[normalizedComponent] = value
	r.healthState[normalizedComponent] = normalizedStatus
	r.mu.Unlock()
}

// MatchCounts returns copies of the match outcome counters for testing and
// reporting purposes.
func (r *Recorder) MatchCounts() map[string]uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[string]uint64, len(r.matchCount))
	for k, v := range r.matchCount {
		counts[k] = v
	}
	return counts
}

// AuthEventCounts returns copies of the authentication event counters.
func (r *Recorder) AuthEventCounts() map[string]uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[string]uint64, len(r.authEvents))
	for k, v := range r.authEvents {
		counts[k] = v
	}
	return counts
}

// Reset clears all counters and gauges on the recorder. It is intended for
// test setups.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requestCount = make(map[requestLabel]uint64)
	r.requestDuration = make(map[requestLabel]time.Duration)
	r.matchCount = make(map[string]uint64)
	r.matchDuration = make(map[string]time.Duration)
	r.parseCount = make(map[string]uint64)
	r.workoutLogs = make(map[string]uint64)
	r.authEvents = make(map[string]uint64)
	r.refreshCount = make(map[string]uint64)
	r.healthValue = make(map[string]float64)
	r.healthState = make(map[string]string)
	r.catalogSize.Store(0)
}

// Handler exposes the Recorder as an http.Handler that writes Prometheus text
// exposition data with the appropriate content type.
func (r *Recorder) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		r.Write(w)
	})
}

// Write renders the Recorder's metrics in Prometheus text format, sorting label
// sets to provide stable output for scrapes and tests.
func (r *Recorder) Write(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	requestLabels := r.sortedRequestLabels()
	matchOutcomes := r.sortedMatchOutcomes()
	parseOutcomes := sortedKeys(r.parseCount)
	logSources := sortedKeys(r.workoutLogs)
	authEvents := sortedKeys(r.authEvents)
	refreshResults := sortedKeys(r.refreshCount)
	components := sortedKeys(r.healthValue)

	fmt.Fprintln(w, "# HELP fitvoice_http_requests_total Total number of HTTP requests processed by the API")
	fmt.Fprintln(w, "# TYPE fitvoice_http_requests_total counter")
	for _, label := range requestLabels {
		count := r.requestCount[label]
		fmt.Fprintf(w, "fitvoice_http_requests_total{method=\"%s\",path=\"%s\",status=\"%s\"} %d\n", label.method, label.path, label.status, count)
	}

	fmt.Fprintln(w, "# HELP fitvoice_http_request_duration_seconds_sum Cumulative duration of HTTP requests in seconds")
	fmt.Fprintln(w, "# TYPE fitvoice_http_request_duration_seconds_sum counter")
	for _, label := range requestLabels {
		duration := r.requestDuration[label].Seconds()
		fmt.Fprintf(w, "fitvoice_http_request_duration_seconds_sum{method=\"%s\",path=\"%s\",status=\"%s\"} %f\n", label.method, label.path, label.status, duration)
	}

	fmt.Fprintln(w, "# HELP fitvoice_http_request_duration_seconds_count Total number of observations for request durations")
	fmt.Fprintln(w, "# TYPE fitvoice_http_request_duration_seconds_count counter")
	for _, label := range requestLabels {
		count := r.requestCount[label]
		fmt.Fprintf(w, "fitvoice_http_request_duration_seconds_count{method=\"%s\",path=\"%s\",status=\"%s\"} %d\n", label.method, label.path, label.status, count)
	}

	fmt.Fprintln(w, "# HELP fitvoice_match_requests_total Match queries by outcome")
	fmt.Fprintln(w, "# TYPE fitvoice_match_requests_total counter")
	for _, outcome := range matchOutcomes {
		count := r.matchCount[outcome]
		fmt.Fprintf(w, "fitvoice_match_requests_total{outcome=\"%s\"} %d\n", outcome, count)
	}

	fmt.Fprintln(w, "# HELP fitvoice_match_duration_seconds_sum Cumulative ranking time of match queries in seconds")
	fmt.Fprintln(w, "# TYPE fitvoice_match_duration_seconds_sum counter")
	for _, outcome := range matchOutcomes {
		duration := r.matchDuration[outcome].Seconds()
		fmt.Fprintf(w, "fitvoice_match_duration_seconds_sum{outcome=\"%s\"} %f\n", outcome, duration)
	}

	fmt.Fprintln(w, "# HELP fitvoice_catalog_size Current number of matchable catalog records")
	fmt.Fprintln(w, "# TYPE fitvoice_catalog_size gauge")
	fmt.Fprintf(w, "fitvoice_catalog_size %d\n", r.catalogSize.Load())

	fmt.Fprintln(w, "# HELP fitvoice_catalog_refreshes_total Catalog snapshot rebuilds by result")
	fmt.Fprintln(w, "# TYPE fitvoice_catalog_refreshes_total counter")
	for _, result := range refreshResults {
		count := r.refreshCount[result]
		fmt.Fprintf(w, "fitvoice_catalog_refreshes_total{result=\"%s\"} %d\n", result, count)
	}

	fmt.Fprintln(w, "# HELP fitvoice_parse_requests_total Transcript parses by outcome")
	fmt.Fprintln(w, "# TYPE fitvoice_parse_requests_total counter")
	for _, outcome := range parseOutcomes {
		count := r.parseCount[outcome]
		fmt.Fprintf(w, "fitvoice_parse_requests_total{outcome=\"%s\"} %d\n", outcome, count)
	}

	fmt.Fprintln(w, "# HELP fitvoice_workout_logs_total Workout log entries persisted by source")
	fmt.Fprintln(w, "# TYPE fitvoice_workout_logs_total counter")
	for _, source := range logSources {
		count := r.workoutLogs[source]
		fmt.Fprintf(w, "fitvoice_workout_logs_total{source=\"%s\"} %d\n", source, count)
	}

	fmt.Fprintln(w, "# HELP fitvoice_auth_events_total Authentication events by type")
	fmt.Fprintln(w, "# TYPE fitvoice_auth_events_total counter")
	for _, event := range authEvents {
		count := r.authEvents[event]
		fmt.Fprintf(w, "fitvoice_auth_events_total{event=\"%s\"} %d\n", event, count)
	}

	fmt.Fprintln(w, "# HELP fitvoice_component_health Health status reported by backend dependencies (1=ok,0=disabled,-1=degraded)")
	fmt.Fprintln(w, "# TYPE fitvoice_component_health gauge")
	for _, component := range components {
		value := r.healthValue[component]
		status := r.healthState[component]
		fmt.Fprintf(w, "fitvoice_component_health{component=\"%s\",status=\"%s\"} %f\n", component, status, value)
	}
}

func (r *Recorder) sortedRequestLabels() []requestLabel {
	labels := make([]requestLabel, 0, len(r.requestCount))
	for label := range r.requestCount {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].method != labels[j].method {
			return labels[i].method < labels[j].method
		}
		if labels[i].path != labels[j].path {
			return labels[i].path < labels[j].path
		}
		return labels[i].status < labels[j].status
	})
	return labels
}

func (r *Recorder) sortedMatchOutcomes() []string {
	seen := make(map[string]struct{}, len(r.matchCount)+len(r.matchDuration))
	for outcome := range r.matchCount {
		seen[outcome] = struct{}{}
	}
	for outcome := range r.matchDuration {
		seen[outcome] = struct{}{}
	}
	outcomes := make([]string, 0, len(seen))
	for outcome := range seen {
		outcomes = append(outcomes, outcome)
	}
	sort.Strings(outcomes)
	return outcomes
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func normalizePath(path string) string {
	if path == "" || path == "/" {
		return "/"
	}
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if looksLikeIdentifier(part) {
			parts[i] = ":id"
			continue
		}
	}
	normalized := strings.Join(parts, "/")
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	if strings.HasSuffix(normalized, "/") && len(normalized) > 1 {
		normalized = strings.TrimSuffix(normalized, "/")
	}
	return normalized
}

func looksLikeIdentifier(segment string) bool {
	if len(segment) >= 16 {
		return true
	}
	digitCount := 0
	for _, r := range segment {
		if r >= '0' && r <= '9' {
			digitCount++
		}
	}
	return digitCount >= 3
}

func normalizeName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

// ObserveRequest is a helper on the default recorder.
func ObserveRequest(method, path string, status int, duration time.Duration) {
	defaultRecorder.ObserveRequest(method, path, status, duration)
}

// ObserveMatch records a match query on the default recorder.
func ObserveMatch(outcome string, duration time.Duration) {
	defaultRecorder.ObserveMatch(outcome, duration)
}

// ObserveParse records a transcript parse on the default recorder.
func ObserveParse(structured bool) {
	defaultRecorder.ObserveParse(structured)
}

// WorkoutLogged records a persisted workout log on the default recorder.
func WorkoutLogged(source string) {
	defaultRecorder.WorkoutLogged(source)
}

// ObserveAuthEvent records an authentication event on the default recorder.
func ObserveAuthEvent(event string) {
	defaultRecorder.ObserveAuthEvent(event)
}

// ObserveCatalogRefresh records a catalog rebuild result on the default recorder.
func ObserveCatalogRefresh(err error) {
	defaultRecorder.ObserveCatalogRefresh(err)
}

// SetCatalogSize updates the catalog gauge on the default recorder.
func SetCatalogSize(size int) {
	defaultRecorder.SetCatalogSize(size)
}

// SetComponentHealth updates component health for the default recorder.
func SetComponentHealth(component, status string) {
	defaultRecorder.SetComponentHealth(component, status)
}

// Handler exposes the default recorder as an HTTP handler.
func Handler() http.Handler {
	return defaultRecorder.Handler()
}
