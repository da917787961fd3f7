package ai

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/zhouzirui/article-rag/backend/internal/apperr"
	"github.com/zhouzirui/article-rag/backend/internal/service/prompt"
)

// SummarizeInput is a validated-at-the-edge summary request.
type SummarizeInput struct {
	Text        string
	SummaryType string
	APIKey      string
}

// SummarizeOutput carries the generated summary.
type SummarizeOutput struct {
	Summary        string
	SummaryType    prompt.SummaryType
	TextLength     int
	ProcessingTime time.Duration
}

// Summarize builds a summary prompt for the requested style and forwards it
// to the model. TextLength reports the length before truncation.
func (s *Service) Summarize(ctx context.Context, in SummarizeInput) (SummarizeOutput, error) {
	start := time.Now()

	apiKey, err := s.ResolveAPIKey(in.APIKey)
	if err != nil {
		return SummarizeOutput{}, err
	}

	if utf8.RuneCountInString(strings.TrimSpace(in.Text)) < MinTextChars {
		return SummarizeOutput{}, apperr.ClientInput("Text content is too short or empty. Please provide substantial text to summarize.")
	}

	originalLength := utf8.RuneCountInString(in.Text)
	text := prompt.TruncateWithMarker(in.Text, prompt.MaxSummaryChars)
	if originalLength > prompt.MaxSummaryChars {
		s.log.InfoContext(ctx, "Truncated text",
			"originalLength", originalLength,
			"maxLength", prompt.MaxSummaryChars)
	}

	style := prompt.ParseSummaryType(in.SummaryType)
	summary, err := s.Complete(ctx, apiKey, prompt.Summary(style, text))
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to call Gemini API",
			"error", err,
			"summaryType", style)

		return SummarizeOutput{}, summarizeError(err)
	}

	elapsed := time.Since(start)
	s.log.InfoContext(ctx, "Generated summary",
		"summaryType", style,
		"textLength", originalLength,
		"processingSeconds", elapsed.Seconds())

	return SummarizeOutput{
		Summary:        summary,
		SummaryType:    style,
		TextLength:     originalLength,
		ProcessingTime: elapsed,
	}, nil
}

// SummarizeForChat produces the context summary stored with a new chat
// session. It never fails: upstream errors yield PlaceholderSummary.
func (s *Service) SummarizeForChat(ctx context.Context, apiKey, article string) string {
	summary, err := s.Complete(ctx, apiKey, prompt.ContextSummary(article))
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to generate article summary for chat",
			"error", err)

		return PlaceholderSummary
	}
	return summary
}

// PlaceholderSummary replaces a chat context summary that could not be
// generated.
const PlaceholderSummary = "Summary unavailable due to processing error."

func summarizeError(err error) error {
	switch apperr.KindOf(err) {
	case apperr.KindUpstreamTimeout:
		return apperr.New(apperr.KindUpstreamTimeout, "Gemini API request timed out. Please try again.", err)
	case apperr.KindUpstreamUnavailable:
		return apperr.New(apperr.KindUpstreamUnavailable, "Unable to connect to Gemini API. Check your internet connection.", err)
	default:
		return apperr.New(apperr.KindUpstream, "Gemini API error: "+apperr.MessageOf(err), err)
	}
}
