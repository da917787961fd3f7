package extract

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/article-rag/backend/internal/apperr"
	"github.com/zhouzirui/article-rag/backend/internal/service/extract"
	"github.com/zhouzirui/article-rag/backend/pkg/utils"
)

// maxHTMLBytes caps the accepted page size.
const maxHTMLBytes = 5 << 20

type Handler struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Handler {
	return &Handler{log: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/extract", h.handleExtract)
}

type request struct {
	HTML string `json:"html"`
}

type response struct {
	Text       string `json:"text"`
	Method     string `json:"method"`
	TextLength int    `json:"text_length"`
}

func (h *Handler) handleExtract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxHTMLBytes)

	var payload request
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondErr(w, err)
		return
	}
	if strings.TrimSpace(payload.HTML) == "" {
		utils.RespondErr(w, apperr.ClientInput("html is required"))
		return
	}

	res, err := extract.FromHTML(strings.NewReader(payload.HTML))
	if err != nil {
		if errors.Is(err, extract.ErrNoContent) {
			utils.RespondErr(w, apperr.ClientInput("No substantial text content found on this page."))
			return
		}
		utils.RespondErr(w, err)
		return
	}

	h.log.InfoContext(r.Context(), "Extracted article text",
		"method", res.Method,
		"textLength", utf8.RuneCountInString(res.Text))

	utils.RespondJSON(w, http.StatusOK, response{
		Text:       res.Text,
		Method:     res.Method,
		TextLength: utf8.RuneCountInString(res.Text),
	})
}
