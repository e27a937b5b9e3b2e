package api

import (
	"errors"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"zeta/pkg/message"
	"zeta/pkg/orchestrator"
	providertypes "zeta/pkg/provider/types"
	"zeta/pkg/safety"
	"zeta/pkg/store"
)

const maxBodyBytes = 10 << 20

type chatRequest struct {
	Message        string
	ConversationID string
	History        []message.Message
	historyPosted  bool
}

type chatResponse struct {
	Success        bool         `json:"success"`
	Response       string       `json:"response"`
	ConversationID string       `json:"conversationId"`
	ToolUsed       *string      `json:"toolUsed"`
	Metadata       chatMetadata `json:"metadata"`
}

type chatMetadata struct {
	Timestamp     string                    `json:"timestamp"`
	MessageLength int                       `json:"messageLength"`
	ToolData      any                       `json:"toolData"`
	Degraded      bool                      `json:"degraded,omitempty"`
	Usage         *providertypes.TokenUsage `json:"usage,omitempty"`
}

var errInvalidRequest = errors.New("invalid chat request")

// parseChatRequest reads the body leniently: history entries keep only role and content,
// whatever shape their timestamps have.
func parseChatRequest(body []byte) (chatRequest, error) {
	if !gjson.ValidBytes(body) {
		return chatRequest{}, errInvalidRequest
	}
	parsed := gjson.ParseBytes(body)

	msg := parsed.Get("message")
	if msg.Type != gjson.String || msg.Str == "" {
		return chatRequest{}, errInvalidRequest
	}

	req := chatRequest{
		Message:        msg.Str,
		ConversationID: strings.TrimSpace(parsed.Get("conversationId").String()),
	}

	history := parsed.Get("history")
	if history.IsArray() {
		req.historyPosted = len(history.Array()) > 0
		history.ForEach(func(_, item gjson.Result) bool {
			req.History = append(req.History, message.Message{
				Role:    message.NormalizeRole(item.Get("role").String()),
				Content: item.Get("content").String(),
			})
			return true
		})
	}

	return req, nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "INVALID_REQUEST", Message: "⚠️ Mesaj gerekli!"})
		return
	}

	req, err := parseChatRequest(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "INVALID_REQUEST", Message: "⚠️ Mesaj gerekli!"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "EMPTY_MESSAGE", Message: "⚠️ Mesaj boş olamaz!"})
		return
	}

	ctx := r.Context()
	log := s.log.With("request_id", chimw.GetReqID(ctx))

	persist := false
	if req.ConversationID != "" && !req.historyPosted && s.store != nil {
		conv, err := s.store.Get(ctx, req.ConversationID)
		switch {
		case err == nil:
			req.History = conv.Messages
			persist = true
		case errors.Is(err, store.ErrNotFound):
		default:
			log.WarnContext(ctx, "Failed to load conversation history", "conversation_id", req.ConversationID, "error", err)
		}
	}

	// The rate-limit identity is never taken from the body.
	identity := clientAddress(r)

	out := s.processor.Process(ctx, orchestrator.Request{
		Message:    req.Message,
		History:    req.History,
		Identity:   identity,
		RequestID:  chimw.GetReqID(ctx),
		Channel:    "http",
		SessionKey: req.ConversationID,
	})

	switch out.Kind {
	case orchestrator.KindSuccess:
		conversationID := req.ConversationID
		if conversationID == "" {
			conversationID = "conv_" + uuid.NewString()
		}
		if persist {
			if err := s.store.Append(ctx, conversationID,
				message.New(message.RoleUser, req.Message),
				message.New(message.RoleAssistant, out.Message),
			); err != nil {
				log.WarnContext(ctx, "Failed to store conversation turn", "conversation_id", conversationID, "error", err)
			}
		}

		resp := chatResponse{
			Success:        true,
			Response:       out.Message,
			ConversationID: conversationID,
			Metadata: chatMetadata{
				Timestamp:     s.now().UTC().Format(time.RFC3339Nano),
				MessageLength: utf8.RuneCountInString(out.Message),
				ToolData:      out.ToolData,
				Degraded:      out.Degraded,
				Usage:         out.Usage,
			},
		}
		if out.ToolUsed != "" {
			resp.ToolUsed = &out.ToolUsed
		}
		writeJSON(w, out.HTTPStatus(), resp)
	case orchestrator.KindSafetyBlock:
		if out.Reason == safety.ReasonRateLimited && out.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(out.RetryAfter.Seconds()))))
		}
		writeJSON(w, out.HTTPStatus(), errorBody{
			Error:   "SAFETY_BLOCK",
			Message: out.Message,
			Reason:  string(out.Reason),
		})
	default:
		log.ErrorContext(ctx, "Chat processing failed", "code", out.Code, "detail", out.Detail)
		writeJSON(w, out.HTTPStatus(), errorBody{
			Error:   "PROCESSING_ERROR",
			Message: out.Message,
		})
	}
}

func (s *Server) handleTools(w http.ResponseWriter, _ *http.Request) {
	list := s.tools.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"tools":   list,
		"count":   len(list),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	now := s.now()
	payload := map[string]any{
		"success":   true,
		"status":    "operational",
		"service":   serviceName,
		"uptime":    now.Sub(s.startedAt).Seconds(),
		"timestamp": now.UTC().Format(time.RFC3339Nano),
	}
	if s.model != nil {
		payload["model"] = s.model.ModelInfo()
	}
	if s.safety != nil {
		payload["safety"] = s.safety.Stats()
	}
	writeJSON(w, http.StatusOK, payload)
}

func clientAddress(r *http.Request) string {
	addr := r.RemoteAddr
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	if addr == "" {
		return safety.DefaultIdentity
	}
	return addr
}
