package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Handler budgets. The probe paths must answer inside the kubelet's
// own timeout; the detailed endpoint gets more room.
const (
	probeTimeout    = 5 * time.Second
	detailedTimeout = 10 * time.Second
)

// LivenessHandler answers that the process is up. It deliberately
// inspects nothing else; readiness owns component state.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// ReadinessHandler runs every registered probe. A degraded gateway
// still reports ready with status 200 so it keeps taking traffic.
func ReadinessHandler(agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()

		body, code := "OK", http.StatusOK
		switch agg.OverallStatus(agg.CheckAll(ctx)) {
		case StatusHealthy:
		case StatusDegraded:
			body = "DEGRADED"
		default:
			body, code = "UNHEALTHY", http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	}
}

// HealthResponse is the body of the detailed health endpoint.
type HealthResponse struct {
	Status    string                   `json:"status"`
	Checks    map[string]CheckResponse `json:"checks,omitempty"`
	Timestamp string                   `json:"timestamp"`
}

// CheckResponse renders one probe result.
type CheckResponse struct {
	Status   string         `json:"status"`
	Message  string         `json:"message,omitempty"`
	Error    string         `json:"error,omitempty"`
	Duration string         `json:"duration,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
}

func newCheckResponse(result Result) CheckResponse {
	resp := CheckResponse{
		Status:   result.Status.String(),
		Message:  result.Message,
		Duration: result.Duration.String(),
		Details:  result.Details,
	}
	if result.Error != nil {
		resp.Error = result.Error.Error()
	}
	return resp
}

func statusCode(s Status) int {
	switch s {
	case StatusHealthy, StatusDegraded:
		return http.StatusOK
	default:
		return http.StatusServiceUnavailable
	}
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// DetailedHandler reports every probe's result as JSON, for operators
// rather than orchestrators.
func DetailedHandler(agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), detailedTimeout)
		defer cancel()

		results := agg.CheckAll(ctx)
		status := agg.OverallStatus(results)

		checks := make(map[string]CheckResponse, len(results))
		for name, result := range results {
			checks[name] = newCheckResponse(result)
		}

		writeJSON(w, statusCode(status), HealthResponse{
			Status:    status.String(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks:    checks,
		})
	}
}

// SingleCheckHandler probes one component by name. Unknown names get
// 404 rather than an empty report.
func SingleCheckHandler(agg *Aggregator, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()

		result, err := agg.Check(ctx, name)
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, statusCode(result.Status), newCheckResponse(result))
	}
}

// RegisterHandlers wires the standard probe endpoints onto mux.
func RegisterHandlers(mux *http.ServeMux, agg *Aggregator) {
	mux.HandleFunc("/healthz", LivenessHandler())
	mux.HandleFunc("/readyz", ReadinessHandler(agg))
	mux.HandleFunc("/health", DetailedHandler(agg))
}
