package chat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/article-rag/backend/internal/apperr"
	"github.com/zhouzirui/article-rag/backend/internal/model/chat"
	"github.com/zhouzirui/article-rag/backend/internal/service/ai"
)

var testArticle = strings.Repeat("Researchers found that octopuses dream in color. ", 4)

// fakeResponder answers prompts with a scripted sequence.
type fakeResponder struct {
	mu          sync.Mutex
	answers     []string
	err         error
	summaryFail bool
	prompts     []string
	summaries   int
}

func (f *fakeResponder) ResolveAPIKey(override string) (string, error) {
	if override == "" {
		return "", apperr.ClientInput("No API key provided.")
	}
	return override, nil
}

func (f *fakeResponder) Complete(_ context.Context, _ string, p string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, p)
	if f.err != nil {
		return "", f.err
	}
	if len(f.answers) == 0 {
		return "default answer", nil
	}
	a := f.answers[0]
	f.answers = f.answers[1:]
	return a, nil
}

func (f *fakeResponder) CompleteStream(ctx context.Context, apiKey, p string, onDelta func(string)) (string, error) {
	answer, err := f.Complete(ctx, apiKey, p)
	if err != nil {
		return "", err
	}
	for _, word := range strings.SplitAfter(answer, " ") {
		onDelta(word)
	}
	return answer, nil
}

func (f *fakeResponder) SummarizeForChat(context.Context, string, string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries++
	if f.summaryFail {
		return ai.PlaceholderSummary
	}
	return "article summary"
}

func newManager(t *testing.T, r Responder) *Manager {
	t.Helper()
	m, err := NewManager(NewService(), r, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return m
}

func TestNewManagerValidation(t *testing.T) {
	_, err := NewManager(nil, &fakeResponder{}, nil)
	require.Error(t, err)
	_, err = NewManager(NewService(), nil, nil)
	require.Error(t, err)
}

func TestAskAccumulatesMessagesInOrder(t *testing.T) {
	r := &fakeResponder{answers: []string{"A1", "A2"}}
	m := newManager(t, r)
	ctx := context.Background()

	out, err := m.Ask(ctx, AskInput{ArticleText: testArticle, Question: "Q1?", SessionID: "s-1", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "A1", out.Answer)
	assert.Equal(t, "s-1", out.SessionID)
	assert.True(t, out.Created)

	out, err = m.Ask(ctx, AskInput{ArticleText: testArticle, Question: "Q2?", SessionID: "s-1", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "A2", out.Answer)
	assert.False(t, out.Created)
	assert.Equal(t, 1, r.summaries)

	history, err := m.History(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, history.Messages, 4)
	want := []struct {
		role    chat.Role
		content string
	}{
		{chat.RoleUser, "Q1?"},
		{chat.RoleAssistant, "A1"},
		{chat.RoleUser, "Q2?"},
		{chat.RoleAssistant, "A2"},
	}
	for i, w := range want {
		assert.Equal(t, w.role, history.Messages[i].Role)
		assert.Equal(t, w.content, history.Messages[i].Content)
	}
	assert.Equal(t, "article summary", history.ArticleSummary)

	// the second prompt replays the first exchange
	require.Len(t, r.prompts, 2)
	assert.Contains(t, r.prompts[1], "User: Q1?\nAssistant: A1\nUser: Q2?\n")
}

func TestAskDerivesDistinctSessionIDsOverTime(t *testing.T) {
	m := newManager(t, &fakeResponder{})
	at := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
	m.now = func() time.Time { return at }

	first, err := m.Ask(context.Background(), AskInput{ArticleText: testArticle, Question: "why?", APIKey: "k"})
	require.NoError(t, err)

	at = at.Add(2 * time.Second)
	second, err := m.Ask(context.Background(), AskInput{ArticleText: testArticle, Question: "why?", APIKey: "k"})
	require.NoError(t, err)

	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.True(t, strings.HasPrefix(first.SessionID, "session_"))
	assert.True(t, strings.HasSuffix(first.SessionID, "_20261019_093000"))
	assert.Equal(t, 2, m.ActiveSessions())
}

func TestDeriveSessionID(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	// md5("hello")
	assert.Equal(t, "session_5d41402abc4b2a76b9719d911017c592_20260102_030405", DeriveSessionID("hello", at))
}

func TestAskStoresTruncatedArticle(t *testing.T) {
	m := newManager(t, &fakeResponder{})
	long := strings.Repeat("z", 20000)

	_, err := m.Ask(context.Background(), AskInput{ArticleText: long, Question: "what?", SessionID: "long", APIKey: "k"})
	require.NoError(t, err)

	session, err := m.store.GetSession(context.Background(), "long")
	require.NoError(t, err)
	assert.Len(t, session.ArticleText, 15000)
}

func TestAskPlaceholderSummaryOnFailure(t *testing.T) {
	m := newManager(t, &fakeResponder{summaryFail: true, answers: []string{"fine"}})

	out, err := m.Ask(context.Background(), AskInput{ArticleText: testArticle, Question: "ok?", SessionID: "p", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "fine", out.Answer)

	history, err := m.History(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, ai.PlaceholderSummary, history.ArticleSummary)
}

func TestAskValidation(t *testing.T) {
	m := newManager(t, &fakeResponder{})
	cases := []AskInput{
		{ArticleText: "too short", Question: "why?", APIKey: "k"},
		{ArticleText: testArticle, Question: " ? ", APIKey: "k"},
		{ArticleText: testArticle, Question: "why?"},
	}
	for _, in := range cases {
		_, err := m.Ask(context.Background(), in)
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, apperr.HTTPStatus(err), "input=%+v", in)
	}
	assert.Zero(t, m.ActiveSessions())
}

func TestAskUpstreamFailureIsServerError(t *testing.T) {
	cases := []error{
		apperr.New(apperr.KindUpstream, "Rate limit exceeded: quota", nil),
		apperr.New(apperr.KindUpstreamTimeout, "Request to Gemini API timed out", nil),
		apperr.New(apperr.KindUpstreamUnavailable, "Network error: refused", nil),
	}
	for _, upstreamErr := range cases {
		m := newManager(t, &fakeResponder{err: upstreamErr})
		_, err := m.Ask(context.Background(), AskInput{ArticleText: testArticle, Question: "why?", SessionID: "e", APIKey: "k"})
		require.Error(t, err)
		assert.Equal(t, http.StatusInternalServerError, apperr.HTTPStatus(err))
		assert.Equal(t, "Chat API error: "+apperr.MessageOf(upstreamErr), apperr.MessageOf(err))
	}
}

func TestAskPromptUsesRecentHistoryOnly(t *testing.T) {
	r := &fakeResponder{}
	for i := 1; i <= 4; i++ {
		r.answers = append(r.answers, fmt.Sprintf("answer-%d", i))
	}
	m := newManager(t, r)
	for i := 1; i <= 4; i++ {
		_, err := m.Ask(context.Background(), AskInput{
			ArticleText: testArticle,
			Question:    fmt.Sprintf("question-%d", i),
			SessionID:   "h",
			APIKey:      "k",
		})
		require.NoError(t, err)
	}

	last := r.prompts[len(r.prompts)-1]
	history := last[strings.Index(last, "CONVERSATION HISTORY:"):strings.Index(last, "USER'S CURRENT QUESTION")]
	// seven stored messages, the first question falls out of the window
	assert.NotContains(t, history, "question-1")
	assert.Contains(t, history, "Assistant: answer-1")
	assert.Contains(t, history, "question-2")
	assert.Contains(t, history, "question-4")
	assert.Equal(t, 6, strings.Count(history, "User: ")+strings.Count(history, "Assistant: "))
}

func TestHistoryAndDeleteUnknownSession(t *testing.T) {
	m := newManager(t, &fakeResponder{})
	ctx := context.Background()

	_, err := m.History(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, apperr.HTTPStatus(err))

	err = m.Delete(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, apperr.HTTPStatus(err))
}

func TestDeleteThenHistoryIsNotFound(t *testing.T) {
	m := newManager(t, &fakeResponder{})
	ctx := context.Background()

	_, err := m.Ask(ctx, AskInput{ArticleText: testArticle, Question: "why?", SessionID: "d", APIKey: "k"})
	require.NoError(t, err)
	require.NoError(t, m.Delete(ctx, "d"))

	_, err = m.History(ctx, "d")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestAskStreamForwardsDeltas(t *testing.T) {
	m := newManager(t, &fakeResponder{answers: []string{"one two three"}})

	var deltas []string
	out, err := m.AskStream(context.Background(), AskInput{ArticleText: testArticle, Question: "count?", SessionID: "st", APIKey: "k"}, func(d string) {
		deltas = append(deltas, d)
	})
	require.NoError(t, err)
	assert.Equal(t, "one two three", out.Answer)
	assert.Equal(t, []string{"one ", "two ", "three"}, deltas)

	history, err := m.History(context.Background(), "st")
	require.NoError(t, err)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "one two three", history.Messages[1].Content)
}

func TestAskConcurrentTurnsOnOneSession(t *testing.T) {
	m := newManager(t, &fakeResponder{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.Ask(ctx, AskInput{ArticleText: testArticle, Question: fmt.Sprintf("q-%d?", i), SessionID: "c", APIKey: "k"})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	history, err := m.History(ctx, "c")
	require.NoError(t, err)
	require.Len(t, history.Messages, 20)
	for i := 0; i < 20; i += 2 {
		assert.Equal(t, chat.RoleUser, history.Messages[i].Role)
		assert.Equal(t, chat.RoleAssistant, history.Messages[i+1].Role)
	}
}

// gatedResponder blocks Complete for prompts containing hold until gate is
// closed, signalling entered once the blocked call has started.
type gatedResponder struct {
	fakeResponder
	hold    string
	entered chan struct{}
	gate    chan struct{}
}

func newGatedResponder(hold string) *gatedResponder {
	return &gatedResponder{hold: hold, entered: make(chan struct{}), gate: make(chan struct{})}
}

func (g *gatedResponder) Complete(ctx context.Context, apiKey, p string) (string, error) {
	if strings.Contains(p, g.hold) {
		close(g.entered)
		<-g.gate
	}
	return g.fakeResponder.Complete(ctx, apiKey, p)
}

func TestAskSurvivesCapacityEvictionMidTurn(t *testing.T) {
	r := newGatedResponder("slow question")
	store := NewService(WithMaxSessions(1))
	m, err := NewManager(store, r, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := m.Ask(ctx, AskInput{ArticleText: testArticle, Question: "slow question?", SessionID: "A", APIKey: "k"})
		done <- err
	}()
	<-r.entered

	_, err = m.Ask(ctx, AskInput{ArticleText: testArticle, Question: "fast question?", SessionID: "B", APIKey: "k"})
	require.NoError(t, err)

	close(r.gate)
	require.NoError(t, <-done)

	history, err := m.History(ctx, "A")
	require.NoError(t, err)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, chat.RoleAssistant, history.Messages[1].Role)

	_, err = m.History(ctx, "B")
	require.NoError(t, err)
}

func TestAskSurvivesSweepMidTurn(t *testing.T) {
	var clockMu sync.Mutex
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		return now
	}

	r := newGatedResponder("slow question")
	store := NewService(WithTTL(time.Minute), WithClock(clock))
	m, err := NewManager(store, r, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := m.Ask(ctx, AskInput{ArticleText: testArticle, Question: "slow question?", SessionID: "A", APIKey: "k"})
		done <- err
	}()
	<-r.entered

	clockMu.Lock()
	now = now.Add(time.Hour)
	clockMu.Unlock()
	assert.Zero(t, store.Sweep(ctx))

	close(r.gate)
	require.NoError(t, <-done)

	clockMu.Lock()
	now = now.Add(time.Hour)
	clockMu.Unlock()
	assert.Equal(t, 1, store.Sweep(ctx))
}

func TestAskSurvivesDeleteMidTurn(t *testing.T) {
	r := newGatedResponder("slow question")
	m, err := NewManager(NewService(), r, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	ctx := context.Background()

	done := make(chan AskOutput, 1)
	go func() {
		out, err := m.Ask(ctx, AskInput{ArticleText: testArticle, Question: "slow question?", SessionID: "A", APIKey: "k"})
		assert.NoError(t, err)
		done <- out
	}()
	<-r.entered

	require.NoError(t, m.Delete(ctx, "A"))
	close(r.gate)

	out := <-done
	assert.Equal(t, "default answer", out.Answer)
	assert.Equal(t, "A", out.SessionID)

	_, err = m.History(ctx, "A")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
