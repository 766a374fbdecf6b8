package health

import (
	"encoding/json"
	"net/http"
	"time"
)

// LivenessHandler always answers 200 OK.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// ReadinessHandler runs every check in g and answers with a plain status.
// Degraded is still ready: cache items in error keep serving their last
// value.
func ReadinessHandler(g *Group) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := Worst(g.CheckAll(r.Context()))

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(httpStatus(status))
		switch status {
		case StatusHealthy:
			_, _ = w.Write([]byte("OK"))
		case StatusDegraded:
			_, _ = w.Write([]byte("DEGRADED"))
		default:
			_, _ = w.Write([]byte("UNHEALTHY"))
		}
	}
}

// Report is the JSON body of DetailedHandler.
type Report struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckReport `json:"checks,omitempty"`
}

// CheckReport is one check inside a Report.
type CheckReport struct {
	Status   string         `json:"status"`
	Message  string         `json:"message,omitempty"`
	Duration string         `json:"duration,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
	Error    string         `json:"error,omitempty"`
}

func newCheckReport(r Result) CheckReport {
	out := CheckReport{
		Status:   r.Status.String(),
		Message:  r.Message,
		Duration: r.Duration.String(),
		Details:  r.Details,
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return out
}

// DetailedHandler answers with a JSON Report of every check in g.
func DetailedHandler(g *Group) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := g.CheckAll(r.Context())
		status := Worst(results)

		report := Report{
			Status:    status.String(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks:    make(map[string]CheckReport, len(results)),
		}
		for name, res := range results {
			report.Checks[name] = newCheckReport(res)
		}
		writeJSON(w, httpStatus(status), report)
	}
}

// CheckHandler answers with the JSON CheckReport of the checker named by
// the "name" path value, or 404 when none is registered.
func CheckHandler(g *Group) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := g.Check(r.Context(), r.PathValue("name"))
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, httpStatus(res.Status), newCheckReport(res))
	}
}

// RegisterHandlers mounts the handlers on mux under /healthz, /readyz,
// /health and /health/{name}.
func RegisterHandlers(mux *http.ServeMux, g *Group) {
	mux.HandleFunc("GET /healthz", LivenessHandler())
	mux.HandleFunc("GET /readyz", ReadinessHandler(g))
	mux.HandleFunc("GET /health", DetailedHandler(g))
	mux.HandleFunc("GET /health/{name}", CheckHandler(g))
}

func httpStatus(s Status) int {
	if s == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
