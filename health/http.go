package health

import (
	"encoding/json"
	"net/http"
	"time"
)

// LivenessHandler reports that the process is running.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// readinessResponse is the JSON body of the readiness probe.
type readinessResponse struct {
	Status string                   `json:"status"`
	Checks map[string]checkResponse `json:"checks,omitempty"`
}

type checkResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// ReadinessHandler runs the aggregator's checks and reports 503 when any
// dependency is unreachable.
func ReadinessHandler(agg *Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := agg.CheckAll(r.Context())
		status := OverallStatus(results)

		body := readinessResponse{
			Status: status.String(),
			Checks: make(map[string]checkResponse, len(results)),
		}
		for name, res := range results {
			body.Checks[name] = checkResponse{
				Status:   res.Status.String(),
				Message:  res.Message,
				Duration: res.Duration.Round(time.Millisecond).String(),
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if status != StatusHealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(body)
	}
}
