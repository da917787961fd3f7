package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/article-rag/backend/internal/apperr"
	"github.com/zhouzirui/article-rag/backend/internal/service/ai/gemini"
)

const (
	MinTextChars = 50

	msgMissingAPIKey = "No API key provided. Please set GEMINI_API_KEY environment variable or provide an API key in the request."
)

// Service encapsulates calls to the language model.
type Service struct {
	chatModel  model.BaseChatModel
	defaultKey string
	log        *slog.Logger
}

// NewService creates a new AI service instance. defaultKey is used whenever
// a request does not carry its own credential.
func NewService(chatModel model.BaseChatModel, defaultKey string, log *slog.Logger) (*Service, error) {
	if chatModel == nil {
		return nil, errors.New("ai: chat model must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		chatModel:  chatModel,
		defaultKey: strings.TrimSpace(defaultKey),
		log:        log,
	}, nil
}

// APIKeyConfigured reports whether a default credential is available.
func (s *Service) APIKeyConfigured() bool {
	return s.defaultKey != ""
}

// ResolveAPIKey prefers the per-request override and falls back to the
// configured default.
func (s *Service) ResolveAPIKey(override string) (string, error) {
	if key := strings.TrimSpace(override); key != "" {
		return key, nil
	}
	if s.defaultKey != "" {
		return s.defaultKey, nil
	}
	return "", apperr.ClientInput(msgMissingAPIKey)
}

// Complete sends a single prompt and returns the generated text.
func (s *Service) Complete(ctx context.Context, apiKey, prompt string) (string, error) {
	resp, err := s.chatModel.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)}, gemini.WithAPIKey(apiKey))
	if err != nil {
		return "", fmt.Errorf("ai: generate: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

// CompleteStream sends a prompt and forwards every text delta to onDelta as
// it arrives. The full trimmed text is returned once the stream ends.
func (s *Service) CompleteStream(ctx context.Context, apiKey, prompt string, onDelta func(string)) (string, error) {
	stream, err := s.chatModel.Stream(ctx, []*schema.Message{schema.UserMessage(prompt)}, gemini.WithAPIKey(apiKey))
	if err != nil {
		return "", fmt.Errorf("ai: stream: %w", err)
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", fmt.Errorf("ai: stream: %w", recvErr)
		}
		if chunk == nil {
			continue
		}
		chunks = append(chunks, chunk)
		if chunk.Content != "" && onDelta != nil {
			onDelta(chunk.Content)
		}
	}
	if len(chunks) == 0 {
		return "", apperr.New(apperr.KindUpstream, "Empty response returned from API", nil)
	}

	response, err := schema.ConcatMessages(chunks)
	if err != nil {
		return "", fmt.Errorf("ai: concat stream: %w", err)
	}
	text := strings.TrimSpace(response.Content)
	if text == "" {
		return "", apperr.New(apperr.KindUpstream, "Empty response returned from API", nil)
	}
	return text, nil
}
