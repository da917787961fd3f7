package summarize

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/article-rag/backend/internal/service/ai"
	"github.com/zhouzirui/article-rag/backend/pkg/utils"
)

// Summarizer is implemented by ai.Service.
type Summarizer interface {
	Summarize(ctx context.Context, in ai.SummarizeInput) (ai.SummarizeOutput, error)
}

type Handler struct {
	svc Summarizer
	now func() time.Time
}

func New(svc Summarizer) *Handler {
	return &Handler{svc: svc, now: time.Now}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/summarize", h.handleSummarize)
}

type request struct {
	Text        string `json:"text"`
	SummaryType string `json:"summary_type"`
	APIKey      string `json:"api_key"`
}

type response struct {
	Summary        string  `json:"summary"`
	TextLength     int     `json:"text_length"`
	ProcessingTime float64 `json:"processing_time"`
	Timestamp      string  `json:"timestamp"`
	Status         string  `json:"status"`
}

func (h *Handler) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var payload request
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondErr(w, err)
		return
	}

	out, err := h.svc.Summarize(r.Context(), ai.SummarizeInput{
		Text:        payload.Text,
		SummaryType: payload.SummaryType,
		APIKey:      payload.APIKey,
	})
	if err != nil {
		utils.RespondErr(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, response{
		Summary:        out.Summary,
		TextLength:     out.TextLength,
		ProcessingTime: out.ProcessingTime.Seconds(),
		Timestamp:      h.now().Format(time.RFC3339),
		Status:         "success",
	})
}
