package system

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/article-rag/backend/pkg/utils"
)

// KeyStatus reports whether a default Gemini credential is configured.
type KeyStatus interface {
	APIKeyConfigured() bool
}

// SessionCounter reports the number of live chat sessions.
type SessionCounter interface {
	ActiveSessions() int
}

var features = []string{"summarization", "chat", "chat_stream", "chat_websocket", "extract"}

// Handler serves the status endpoints.
type Handler struct {
	keys     KeyStatus
	sessions SessionCounter
	now      func() time.Time
}

func New(keys KeyStatus, sessions SessionCounter) *Handler {
	return &Handler{keys: keys, sessions: sessions, now: time.Now}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleRoot)
	r.Get("/health", h.handleHealth)
}

type rootResponse struct {
	Status           string   `json:"status"`
	Message          string   `json:"message"`
	APIKeyConfigured bool     `json:"api_key_configured"`
	Timestamp        string   `json:"timestamp"`
	Features         []string `json:"features"`
}

func (h *Handler) handleRoot(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, rootResponse{
		Status:           "running",
		Message:          "Article Summary and Chat RAG Server",
		APIKeyConfigured: h.keys.APIKeyConfigured(),
		Timestamp:        h.now().Format(time.RFC3339),
		Features:         features,
	})
}

type healthResponse struct {
	Status             string `json:"status"`
	APIKeyConfigured   bool   `json:"api_key_configured"`
	GeminiAPIAvailable bool   `json:"gemini_api_available"`
	Timestamp          string `json:"timestamp"`
	ActiveChatSessions int    `json:"active_chat_sessions"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	configured := h.keys.APIKeyConfigured()
	status := "healthy"
	if !configured {
		status = "missing_api_key"
	}

	utils.RespondJSON(w, http.StatusOK, healthResponse{
		Status:             status,
		APIKeyConfigured:   configured,
		GeminiAPIAvailable: true,
		Timestamp:          h.now().Format(time.RFC3339),
		ActiveChatSessions: h.sessions.ActiveSessions(),
	})
}
