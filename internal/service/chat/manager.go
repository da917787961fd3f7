package chat

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/zhouzirui/article-rag/backend/internal/apperr"
	"github.com/zhouzirui/article-rag/backend/internal/model/chat"
	"github.com/zhouzirui/article-rag/backend/internal/service/prompt"
)

const (
	MinArticleChars  = 50
	MinQuestionChars = 3
)

// Responder is the slice of the AI service the manager depends on.
type Responder interface {
	ResolveAPIKey(override string) (string, error)
	Complete(ctx context.Context, apiKey, prompt string) (string, error)
	CompleteStream(ctx context.Context, apiKey, prompt string, onDelta func(string)) (string, error)
	SummarizeForChat(ctx context.Context, apiKey, article string) string
}

// Manager runs question/answer turns against sessions held by a Service.
type Manager struct {
	store *Service
	ai    Responder
	log   *slog.Logger
	now   func() time.Time
}

// NewManager wires the session store to the AI responder.
func NewManager(store *Service, responder Responder, log *slog.Logger) (*Manager, error) {
	if store == nil {
		return nil, errors.New("chat: session store must not be nil")
	}
	if responder == nil {
		return nil, errors.New("chat: responder must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{store: store, ai: responder, log: log, now: time.Now}, nil
}

// AskInput is a single chat request.
type AskInput struct {
	ArticleText string
	Question    string
	SessionID   string
	APIKey      string
}

// AskOutput is the answer to a chat request.
type AskOutput struct {
	Answer         string
	SessionID      string
	Created        bool
	ProcessingTime time.Duration
}

// HistoryOutput is a snapshot of one session.
type HistoryOutput struct {
	SessionID      string
	Messages       []chat.Message
	ArticleSummary string
}

// Ask answers a question about an article, creating the session on first
// contact. Turns on the same session run one at a time.
func (m *Manager) Ask(ctx context.Context, in AskInput) (AskOutput, error) {
	return m.turn(ctx, in, m.ai.Complete)
}

// AskStream behaves like Ask but forwards answer deltas to onDelta while the
// model generates.
func (m *Manager) AskStream(ctx context.Context, in AskInput, onDelta func(string)) (AskOutput, error) {
	return m.turn(ctx, in, func(ctx context.Context, apiKey, p string) (string, error) {
		return m.ai.CompleteStream(ctx, apiKey, p, onDelta)
	})
}

type generateFunc func(ctx context.Context, apiKey, prompt string) (string, error)

func (m *Manager) turn(ctx context.Context, in AskInput, generate generateFunc) (AskOutput, error) {
	start := m.now()

	apiKey, err := m.ai.ResolveAPIKey(in.APIKey)
	if err != nil {
		return AskOutput{}, err
	}
	if err := validate(in); err != nil {
		return AskOutput{}, err
	}

	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		sessionID = DeriveSessionID(in.ArticleText, start)
	}

	release := m.store.Acquire(sessionID)
	defer release()

	session, created, err := m.ensureSession(ctx, sessionID, apiKey, in.ArticleText)
	if err != nil {
		return AskOutput{}, err
	}

	question, err := m.appendMessage(ctx, sessionID, chat.Message{Role: chat.RoleUser, Content: in.Question})
	if err != nil {
		return AskOutput{}, err
	}
	transcript := append(session.Messages, question)

	answer, err := generate(ctx, apiKey, prompt.Chat(prompt.ChatInput{
		ArticleSummary: session.ArticleSummary,
		ArticleText:    session.ArticleText,
		History:        transcript,
		Question:       in.Question,
	}))
	if err != nil {
		m.log.ErrorContext(ctx, "Failed to generate chat response",
			"error", err,
			"sessionID", sessionID)

		return AskOutput{}, apperr.New(apperr.KindUpstream, "Chat API error: "+apperr.MessageOf(err), err)
	}

	if _, err := m.appendMessage(ctx, sessionID, chat.Message{Role: chat.RoleAssistant, Content: answer}); err != nil {
		return AskOutput{}, err
	}

	elapsed := m.now().Sub(start)
	m.log.InfoContext(ctx, "Generated chat response",
		"sessionID", sessionID,
		"created", created,
		"messages", len(transcript)+1,
		"processingSeconds", elapsed.Seconds())

	return AskOutput{
		Answer:         answer,
		SessionID:      sessionID,
		Created:        created,
		ProcessingTime: elapsed,
	}, nil
}

func (m *Manager) ensureSession(ctx context.Context, sessionID, apiKey, article string) (chat.Session, bool, error) {
	session, err := m.store.GetSession(ctx, sessionID)
	if err == nil {
		return session, false, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return chat.Session{}, false, storeError(err)
	}

	stored, _ := prompt.Truncate(article, prompt.MaxSummaryChars)
	session, err = m.store.CreateSession(ctx, chat.Session{
		ID:             sessionID,
		ArticleText:    stored,
		ArticleSummary: m.ai.SummarizeForChat(ctx, apiKey, article),
	})
	if err != nil {
		return chat.Session{}, false, storeError(err)
	}

	m.log.InfoContext(ctx, "Created new chat session",
		"sessionID", sessionID)

	return session, true, nil
}

// appendMessage stores msg on the session. A session deleted while the turn
// runs does not fail the turn; the message is just not kept.
func (m *Manager) appendMessage(ctx context.Context, sessionID string, msg chat.Message) (chat.Message, error) {
	saved, err := m.store.SaveMessage(ctx, sessionID, msg)
	if errors.Is(err, ErrSessionNotFound) {
		m.log.WarnContext(ctx, "Chat session deleted during turn, message not stored",
			"sessionID", sessionID,
			"role", msg.Role)

		return msg, nil
	}
	if err != nil {
		return chat.Message{}, storeError(err)
	}
	return saved, nil
}

// History returns the transcript and summary of a session.
func (m *Manager) History(ctx context.Context, sessionID string) (HistoryOutput, error) {
	session, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return HistoryOutput{}, storeError(err)
	}
	return HistoryOutput{
		SessionID:      session.ID,
		Messages:       session.Messages,
		ArticleSummary: session.ArticleSummary,
	}, nil
}

// Delete removes a session.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	if err := m.store.DeleteSession(ctx, sessionID); err != nil {
		return storeError(err)
	}
	m.log.InfoContext(ctx, "Cleared chat session",
		"sessionID", sessionID)

	return nil
}

// ActiveSessions reports the number of live sessions.
func (m *Manager) ActiveSessions() int {
	return m.store.Count()
}

// DeriveSessionID builds a session id from the article content and the
// current second. Identical articles submitted in different seconds get
// different ids.
func DeriveSessionID(article string, at time.Time) string {
	sum := md5.Sum([]byte(article))
	return fmt.Sprintf("session_%s_%s", hex.EncodeToString(sum[:]), at.Format("20060102_150405"))
}

func validate(in AskInput) error {
	if utf8.RuneCountInString(strings.TrimSpace(in.ArticleText)) < MinArticleChars {
		return apperr.ClientInput("Article text is too short or empty. Please provide substantial text to chat about.")
	}
	if utf8.RuneCountInString(strings.TrimSpace(in.Question)) < MinQuestionChars {
		return apperr.ClientInput("Question is too short or empty. Please provide a meaningful question.")
	}
	return nil
}

func storeError(err error) error {
	if errors.Is(err, ErrSessionNotFound) {
		return apperr.New(apperr.KindNotFound, "Chat session not found", err)
	}
	return apperr.New(apperr.KindInternal, err.Error(), err)
}
