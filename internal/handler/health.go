package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BreakerState reports the state of a circuit breaker ("closed", "half-open"
// or "open").
type BreakerState interface {
	State() string
}

// HealthHandler returns a health check endpoint. Breaker states are reported
// under their map keys; an open breaker marks the service degraded but keeps
// it in rotation.
func HealthHandler(db Pinger, breakers map[string]BreakerState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			RespondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}

		body := map[string]string{"status": "healthy"}
		for name, b := range breakers {
			state := b.State()
			body[name] = state
			if state == "open" {
				body["status"] = "degraded"
			}
		}
		RespondJSON(w, http.StatusOK, body)
	}
}
