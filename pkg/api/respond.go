package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Default().With("component", "api").Error("Failed to write response", "error", err)
	}
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorBody{
		Error:   "NOT_FOUND",
		Message: "❌ Route bulunamadı: " + r.Method + " " + r.URL.Path,
	})
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorBody{
		Error:   "METHOD_NOT_ALLOWED",
		Message: "❌ Bu route için desteklenmeyen metod: " + r.Method + " " + r.URL.Path,
	})
}
