package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/article-rag/backend/internal/handler/chat"
	"github.com/zhouzirui/article-rag/backend/internal/handler/extract"
	"github.com/zhouzirui/article-rag/backend/internal/handler/stream"
	"github.com/zhouzirui/article-rag/backend/internal/handler/summarize"
	"github.com/zhouzirui/article-rag/backend/internal/handler/system"
	"github.com/zhouzirui/article-rag/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/article-rag/backend/internal/middleware"
	aiService "github.com/zhouzirui/article-rag/backend/internal/service/ai"
	chatService "github.com/zhouzirui/article-rag/backend/internal/service/chat"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(aiSvc *aiService.Service, manager *chatService.Manager, allowedOrigins []string, log *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Logger(log))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(allowedOrigins))

	system.New(aiSvc, manager).RegisterRoutes(r)
	summarize.New(aiSvc).RegisterRoutes(r)
	extract.New(log).RegisterRoutes(r)

	stream.New(manager, log).RegisterRoutes(r)
	ws.New(manager, log).RegisterRoutes(r)
	chat.New(manager).RegisterRoutes(r)

	return r
}
