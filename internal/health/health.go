// Package health provides the liveness and readiness probe handlers.
//
//   - /healthz — liveness; a process that can answer HTTP is alive.
//   - /readyz  — readiness; 200 only when every registered [Probe] passes.
//     Wordwire registers the database pool and each enabled speech service.
//
// Responses are JSON objects with a top-level "status" field ("ok" or "fail")
// and a "checks" map naming each probe's result.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// probeTimeout is the maximum time a single readiness probe may take before
// its context is cancelled.
const probeTimeout = 5 * time.Second

// Probe is a named readiness check. Check returns nil when the dependency is
// usable and an error describing the failure otherwise. It must respect
// context cancellation.
type Probe struct {
	// Name labels the probe in the JSON response (e.g. "database", "whisper").
	Name string

	// Check probes the dependency.
	Check func(ctx context.Context) error
}

// Pinger adapts anything with a Ping method, such as a pgx pool, into a
// Probe.
func Pinger(name string, p interface {
	Ping(ctx context.Context) error
}) Probe {
	return Probe{Name: name, Check: p.Ping}
}

// Service adapts a speech or translation provider exposing Healthy into a
// Probe.
func Service(name string, p interface {
	Healthy(ctx context.Context) error
}) Probe {
	return Probe{Name: name, Check: p.Healthy}
}

// result is the JSON response body for both endpoints.
type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the probe endpoints. Safe for concurrent use; the probe list
// is fixed at construction time.
type Handler struct {
	probes []Probe
}

// New creates a [Handler] that evaluates the given probes on each /readyz
// request, sequentially, in the order provided.
func New(probes ...Probe) *Handler {
	p := make([]Probe, len(probes))
	copy(p, probes)
	return &Handler{probes: p}
}

// Healthz always returns 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz returns 200 only when every registered probe passes, and 503 naming
// the failing probes otherwise. Each probe runs under a [probeTimeout]
// deadline derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.probes))
	allOK := true

	for _, p := range h.probes {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := p.Check(ctx)
		cancel()

		if err != nil {
			checks[p.Name] = "fail: " + err.Error()
			allOK = false
		} else {
			checks[p.Name] = "ok"
		}
	}

	res := result{
		Status: "ok",
		Checks: checks,
	}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, res)
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
