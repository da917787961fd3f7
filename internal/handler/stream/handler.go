package stream

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/article-rag/backend/internal/apperr"
	chatHandler "github.com/zhouzirui/article-rag/backend/internal/handler/chat"
	chatService "github.com/zhouzirui/article-rag/backend/internal/service/chat"
	"github.com/zhouzirui/article-rag/backend/pkg/utils"
)

// Asker runs a streaming chat turn.
type Asker interface {
	AskStream(ctx context.Context, in chatService.AskInput, onDelta func(string)) (chatService.AskOutput, error)
}

// Handler manages streaming chat answers via Server-Sent Events
type Handler struct {
	manager Asker
	log     *slog.Logger
	now     func() time.Time
}

// New creates a new stream handler
func New(manager Asker, log *slog.Logger) *Handler {
	return &Handler{manager: manager, log: log, now: time.Now}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/stream", h.handleStream)
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event     string                `json:"event"`
	Content   string                `json:"content,omitempty"`
	SessionID string                `json:"session_id,omitempty"`
	Answer    *chatHandler.Response `json:"answer,omitempty"`
	Finished  bool                  `json:"finished,omitempty"`
	Error     string                `json:"error,omitempty"`
	Status    int                   `json:"status,omitempty"`
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	var payload chatHandler.Request
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondErr(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	h.send(ctx, w, flusher, StreamResponse{
		Event:     "start",
		SessionID: payload.SessionID,
	})

	out, err := h.manager.AskStream(ctx, payload.Input(), func(delta string) {
		h.send(ctx, w, flusher, StreamResponse{
			Event:   "delta",
			Content: delta,
		})
	})
	if err != nil {
		h.log.ErrorContext(ctx, "Streaming chat failed",
			"error", err,
			"sessionID", payload.SessionID)

		h.send(ctx, w, flusher, StreamResponse{
			Event:  "error",
			Error:  apperr.MessageOf(err),
			Status: apperr.HTTPStatus(err),
		})
		return
	}

	answer := chatHandler.NewResponse(out, h.now())
	h.send(ctx, w, flusher, StreamResponse{
		Event:     "message",
		SessionID: out.SessionID,
		Content:   out.Answer,
		Answer:    &answer,
	})

	h.send(ctx, w, flusher, StreamResponse{
		Event:     "end",
		SessionID: out.SessionID,
		Finished:  true,
	})
}

func (h *Handler) send(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, response StreamResponse) {
	if err := utils.SendSSEEvent(w, flusher, response.Event, response); err != nil {
		h.log.WarnContext(ctx, "Failed to send SSE event",
			"error", err,
			"event", response.Event)
	}
}
