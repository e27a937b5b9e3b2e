package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"zeta/pkg/message"
	"zeta/pkg/store"
)

type conversationBody struct {
	Title    *string           `json:"title"`
	Messages []message.Message `json:"messages"`
}

type messageBody struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.List(r.Context())
	if err != nil {
		s.storageFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"conversations": list,
		"count":         len(list),
	})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.storageFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "conversation": conv})
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var body conversationBody
	if !decodeOptional(w, r, &body) {
		return
	}

	title := ""
	if body.Title != nil {
		title = *body.Title
	}
	conv, err := s.store.Create(r.Context(), title, body.Messages)
	if err != nil {
		s.storageFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "conversation": conv})
}

func (s *Server) handleUpdateConversation(w http.ResponseWriter, r *http.Request) {
	var body conversationBody
	if !decodeOptional(w, r, &body) {
		return
	}

	upd := store.Update{Messages: body.Messages}
	if body.Title != nil && strings.TrimSpace(*body.Title) != "" {
		upd.Title = body.Title
	}
	conv, err := s.store.Update(r.Context(), chi.URLParam(r, "id"), upd)
	if err != nil {
		s.storageFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "conversation": conv})
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.storageFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Konuşma silindi",
		"deletedId": id,
	})
}

func (s *Server) handleAppendMessage(w http.ResponseWriter, r *http.Request) {
	var body messageBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil ||
		strings.TrimSpace(body.Role) == "" || body.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "INVALID_MESSAGE", Message: "role ve content gerekli"})
		return
	}

	id := chi.URLParam(r, "id")
	msg := message.New(message.NormalizeRole(body.Role), body.Content)
	if err := s.store.Append(r.Context(), id, msg); err != nil {
		s.storageFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"message":        msg,
		"conversationId": id,
	})
}

// decodeOptional decodes a JSON body when one is present; an empty body leaves dst untouched.
func decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "INVALID_REQUEST", Message: "Geçersiz JSON gövdesi"})
	return false
}

func (s *Server) storageFailed(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "CONVERSATION_NOT_FOUND", Message: "Konuşma bulunamadı"})
		return
	}
	s.log.ErrorContext(r.Context(), "Conversation storage failed", "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, errorBody{
		Error:   "INTERNAL_SERVER_ERROR",
		Message: "❌ Bir hata oluştu. Lütfen tekrar deneyin.",
	})
}
