package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"
)

// HealthResponse represents the JSON response from the health check endpoint.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// HealthChecker interface defines the health check dependency.
// The stores implement this via their Health or Ping methods.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthFunc adapts a function to HealthChecker.
type HealthFunc func(ctx context.Context) error

// Health implements HealthChecker.
func (f HealthFunc) Health(ctx context.Context) error { return f(ctx) }

// CheckHealth runs every check. The result is unhealthy when any check
// fails.
func CheckHealth(ctx context.Context, checks map[string]HealthChecker) HealthResponse {
	// Create context with 3-second timeout for health check
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	response := HealthResponse{
		Status:    "healthy",
		Checks:    make(map[string]string, len(checks)),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	for _, name := range names {
		if err := checks[name].Health(ctx); err != nil {
			response.Status = "unhealthy"
			response.Checks[name] = "disconnected"
			continue
		}
		response.Checks[name] = "connected"
	}
	return response
}

// NewHealthHandler creates an HTTP handler for the /health endpoint.
// It returns 503 when any dependency is unreachable.
func NewHealthHandler(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := CheckHealth(r.Context(), checks)

		w.Header().Set("Content-Type", "application/json")
		if response.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable) // 503
		} else {
			w.WriteHeader(http.StatusOK) // 200
		}
		json.NewEncoder(w).Encode(response)
	}
}
