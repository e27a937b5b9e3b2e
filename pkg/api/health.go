package api

import (
	"context"
	"net/http"
	"time"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   s.now().UTC().Format(time.RFC3339),
	})
}

// handleReady reports whether storage answers and the provider has credentials.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	ready := true

	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := s.store.Ping(ctx)
		cancel()
		if err != nil {
			checks["storage"] = err.Error()
			ready = false
		} else {
			checks["storage"] = "ok"
		}
	}
	if s.model != nil {
		if s.model.ModelInfo().Available {
			checks["provider"] = "ok"
		} else {
			checks["provider"] = "unavailable"
			ready = false
		}
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"status": status, "checks": checks})
}
