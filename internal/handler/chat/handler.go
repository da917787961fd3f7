package chat

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/article-rag/backend/internal/model/chat"
	chatService "github.com/zhouzirui/article-rag/backend/internal/service/chat"
	"github.com/zhouzirui/article-rag/backend/pkg/utils"
)

// Manager is the part of chatService.Manager the REST handler uses.
type Manager interface {
	Ask(ctx context.Context, in chatService.AskInput) (chatService.AskOutput, error)
	History(ctx context.Context, sessionID string) (chatService.HistoryOutput, error)
	Delete(ctx context.Context, sessionID string) error
}

// Handler 聊天服务的HTTP处理器
type Handler struct {
	manager Manager
	now     func() time.Time
}

// New 创建聊天处理器
func New(manager Manager) *Handler {
	return &Handler{manager: manager, now: time.Now}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Get("/chat/{session_id}/history", h.handleHistory)
	r.Delete("/chat/{session_id}", h.handleDelete)
}

// Request is the chat body shared by the REST, SSE and WebSocket transports.
type Request struct {
	ArticleText string `json:"article_text"`
	Question    string `json:"question"`
	SessionID   string `json:"session_id,omitempty"`
	APIKey      string `json:"api_key,omitempty"`
}

func (r Request) Input() chatService.AskInput {
	return chatService.AskInput{
		ArticleText: r.ArticleText,
		Question:    r.Question,
		SessionID:   r.SessionID,
		APIKey:      r.APIKey,
	}
}

// Response is the answer to a chat request.
type Response struct {
	Answer         string  `json:"answer"`
	SessionID      string  `json:"session_id"`
	ProcessingTime float64 `json:"processing_time"`
	Timestamp      string  `json:"timestamp"`
	Status         string  `json:"status"`
}

// NewResponse renders a manager result at the given time.
func NewResponse(out chatService.AskOutput, at time.Time) Response {
	return Response{
		Answer:         out.Answer,
		SessionID:      out.SessionID,
		ProcessingTime: out.ProcessingTime.Seconds(),
		Timestamp:      at.Format(time.RFC3339),
		Status:         "success",
	}
}

type historyResponse struct {
	SessionID      string         `json:"session_id"`
	Messages       []chat.Message `json:"messages"`
	ArticleSummary string         `json:"article_summary"`
}

type deleteResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// handleChat 回答关于文章的问题
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload Request
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondErr(w, err)
		return
	}

	out, err := h.manager.Ask(r.Context(), payload.Input())
	if err != nil {
		utils.RespondErr(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, NewResponse(out, h.now()))
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	out, err := h.manager.History(r.Context(), chi.URLParam(r, "session_id"))
	if err != nil {
		utils.RespondErr(w, err)
		return
	}

	messages := out.Messages
	if messages == nil {
		messages = []chat.Message{}
	}

	utils.RespondJSON(w, http.StatusOK, historyResponse{
		SessionID:      out.SessionID,
		Messages:       messages,
		ArticleSummary: out.ArticleSummary,
	})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	if err := h.manager.Delete(r.Context(), sessionID); err != nil {
		utils.RespondErr(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, deleteResponse{
		Message:   "Chat session cleared successfully",
		SessionID: sessionID,
	})
}
