package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/article-rag/backend/internal/mock"
)

var article = strings.Repeat("The library extended its weekend opening hours for students. ", 3)

func run(t *testing.T, m *mock.ChatModel, args ...string) (string, error) {
	t.Helper()

	root := newRootCmd(m, "test-key", slog.New(slog.NewTextHandler(io.Discard, nil)))
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestExtractCommand(t *testing.T) {
	path := writeFile(t, "page.html", "<html><body><article><p>"+article+"</p></article></body></html>")

	out, err := run(t, &mock.ChatModel{}, "extract", path)
	require.NoError(t, err)
	assert.Contains(t, out, "method: article tag")
	assert.Contains(t, out, "weekend opening hours")
}

func TestSummarizeCommand(t *testing.T) {
	path := writeFile(t, "article.txt", article)

	out, err := run(t, &mock.ChatModel{GenerateFn: mock.Reply("Longer weekend hours.")}, "summarize", "--type", "bullets", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Longer weekend hours.")
	assert.Contains(t, out, "(bullets,")
}

func TestSummarizeCommandFromHTML(t *testing.T) {
	path := writeFile(t, "page.html", "<html><body><main>"+article+"</main></body></html>")

	var prompt string
	m := &mock.ChatModel{GenerateFn: func(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
		prompt = input[0].Content
		return schema.AssistantMessage("ok", nil), nil
	}}

	_, err := run(t, m, "summarize", "--html", path)
	require.NoError(t, err)
	assert.Contains(t, prompt, "weekend opening hours")
	assert.NotContains(t, prompt, "<main>")
}

func TestChatCommandKeepsSession(t *testing.T) {
	path := writeFile(t, "article.txt", article)

	out, err := run(t, &mock.ChatModel{GenerateFn: mock.Reply("answer")}, "chat", path, "-q", "What changed?", "-q", "For whom?")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "A: answer"))
	assert.Contains(t, out, "session: session_")
}

func TestChatCommandRequiresQuestion(t *testing.T) {
	path := writeFile(t, "article.txt", article)

	_, err := run(t, &mock.ChatModel{}, "chat", path)
	require.Error(t, err)
}
