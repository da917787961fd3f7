package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/article-rag/backend/internal/apperr"
	chatHandler "github.com/zhouzirui/article-rag/backend/internal/handler/chat"
	chatService "github.com/zhouzirui/article-rag/backend/internal/service/chat"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// Asker runs a streaming chat turn.
type Asker interface {
	AskStream(ctx context.Context, in chatService.AskInput, onDelta func(string)) (chatService.AskOutput, error)
}

// Handler serves chat turns over a WebSocket. Every inbound text frame is a
// chat request; replies are delta frames followed by one answer or error
// frame.
type Handler struct {
	manager  Asker
	log      *slog.Logger
	upgrader websocket.Upgrader
	now      func() time.Time
}

func New(manager Asker, log *slog.Logger) *Handler {
	return &Handler{
		manager: manager,
		log:     log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		now: time.Now,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chat/ws", h.handleWebSocket)
}

type outgoingMessage struct {
	Type      string                `json:"type"`
	SessionID string                `json:"session_id,omitempty"`
	Content   string                `json:"content,omitempty"`
	Answer    *chatHandler.Response `json:"answer,omitempty"`
	Detail    string                `json:"detail,omitempty"`
	Status    int                   `json:"status,omitempty"`
	Timestamp int64                 `json:"timestamp"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WarnContext(r.Context(), "WebSocket upgrade failed",
			"error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go h.pingLoop(ctx, conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WarnContext(ctx, "WebSocket read failed",
					"error", err)
			}
			return
		}

		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var req chatHandler.Request
		if err := json.Unmarshal(data, &req); err != nil {
			h.send(ctx, conn, outgoingMessage{
				Type:   "error",
				Detail: "invalid request body",
				Status: http.StatusBadRequest,
			})
			continue
		}

		h.handleTurn(ctx, conn, req)
	}
}

func (h *Handler) handleTurn(ctx context.Context, conn *websocket.Conn, req chatHandler.Request) {
	out, err := h.manager.AskStream(ctx, req.Input(), func(delta string) {
		h.send(ctx, conn, outgoingMessage{
			Type:      "delta",
			SessionID: req.SessionID,
			Content:   delta,
		})
	})
	if err != nil {
		h.send(ctx, conn, outgoingMessage{
			Type:      "error",
			SessionID: req.SessionID,
			Detail:    apperr.MessageOf(err),
			Status:    apperr.HTTPStatus(err),
		})
		return
	}

	answer := chatHandler.NewResponse(out, h.now())
	h.send(ctx, conn, outgoingMessage{
		Type:      "answer",
		SessionID: out.SessionID,
		Content:   out.Answer,
		Answer:    &answer,
	})
}

func (h *Handler) send(ctx context.Context, conn *websocket.Conn, msg outgoingMessage) {
	msg.Timestamp = h.now().Unix()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		h.log.WarnContext(ctx, "WebSocket write failed",
			"error", err,
			"type", msg.Type)
	}
}

// pingLoop keeps idle connections alive. WriteControl may run concurrently
// with WriteJSON.
func (h *Handler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
