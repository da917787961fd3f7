// Package prompt assembles the text sent to the language model. All
// functions are pure: the same inputs always yield the same prompt.
package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/zhouzirui/article-rag/backend/internal/model/chat"
)

const (
	// MaxSummaryChars bounds the text forwarded by /summarize and the article
	// text stored in a chat session.
	MaxSummaryChars = 15000
	// MaxContextSummaryChars bounds the article text used to build the
	// summary attached to a new chat session.
	MaxContextSummaryChars = 12000
	// MaxChatArticleChars bounds the article excerpt embedded in chat prompts.
	MaxChatArticleChars = 8000
	// HistoryWindow is the number of most recent messages a chat prompt replays.
	HistoryWindow = 6

	TruncationMarker = "..."
)

// SummaryType selects one of the summary templates.
type SummaryType string

const (
	SummaryBrief    SummaryType = "brief"
	SummaryDetailed SummaryType = "detailed"
	SummaryBullets  SummaryType = "bullets"
)

// ParseSummaryType maps raw input to a SummaryType, falling back to brief.
// Matching is exact: "Bullets" or " bullets" select brief.
func ParseSummaryType(raw string) SummaryType {
	switch t := SummaryType(raw); t {
	case SummaryBrief, SummaryDetailed, SummaryBullets:
		return t
	default:
		return SummaryBrief
	}
}

// Truncate returns the first limit characters of text and whether anything
// was cut. Characters are counted as runes.
func Truncate(text string, limit int) (string, bool) {
	if len(text) <= limit {
		return text, false
	}
	if utf8.RuneCountInString(text) <= limit {
		return text, false
	}
	n := 0
	for i := range text {
		if n == limit {
			return text[:i], true
		}
		n++
	}
	return text, false
}

// TruncateWithMarker truncates text to limit characters and appends
// TruncationMarker when something was removed.
func TruncateWithMarker(text string, limit int) string {
	cut, truncated := Truncate(text, limit)
	if truncated {
		return cut + TruncationMarker
	}
	return cut
}

// Summary renders the summarization prompt for the given style. Unknown
// styles use the brief template.
func Summary(style SummaryType, text string) string {
	switch style {
	case SummaryDetailed:
		return "Please provide a comprehensive and detailed summary of this article. " +
			"Cover all the key points, important details, and main arguments. " +
			"Organize the information clearly:\n\n" + text
	case SummaryBullets:
		return "Please summarize this article in 5-7 clear bullet points. " +
			"Start each point with '• ' and make each point concise but informative:\n\n" + text
	default:
		return "Please provide a brief, clear summary of this article in 2-3 sentences. " +
			"Focus on the main points and key information:\n\n" + text
	}
}

// ContextSummary renders the prompt used to summarize an article when a chat
// session is created. The article is cut to MaxContextSummaryChars.
func ContextSummary(article string) string {
	cut, _ := Truncate(article, MaxContextSummaryChars)
	return "Please provide a concise summary of this article that will be used as context for answering questions. \n" +
		"    Focus on the main topics, key points, and important details. Keep it informative but concise:\n\n" +
		"    " + cut
}

// ChatInput is everything a chat prompt is built from.
type ChatInput struct {
	ArticleSummary string
	ArticleText    string
	History        []chat.Message
	Question       string
}

// Chat renders the context-aware chat prompt.
func Chat(in ChatInput) string {
	excerpt, _ := Truncate(in.ArticleText, MaxChatArticleChars)

	var b strings.Builder
	b.WriteString("You are an AI assistant helping users understand and discuss an article. ")
	b.WriteString("Use the article content below to answer questions accurately and helpfully.\n\n")

	b.WriteString("ARTICLE SUMMARY:\n")
	b.WriteString(in.ArticleSummary)
	b.WriteString("\n\n")

	b.WriteString("FULL ARTICLE CONTENT:\n")
	b.WriteString(excerpt)
	b.WriteString(TruncationMarker)
	b.WriteString("\n\n")

	b.WriteString("CONVERSATION HISTORY:\n")
	b.WriteString(History(in.History))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "USER'S CURRENT QUESTION: %s\n\n", in.Question)

	b.WriteString("Please provide a helpful, accurate, and conversational response based on the article content. ")
	b.WriteString("If the question cannot be answered from the article, politely explain that the information is not available in the provided text. ")
	b.WriteString("Keep your response focused and relevant to the article content.")
	return b.String()
}

// History renders the last HistoryWindow messages, one per line.
func History(messages []chat.Message) string {
	start := 0
	if len(messages) > HistoryWindow {
		start = len(messages) - HistoryWindow
	}

	var b strings.Builder
	for _, msg := range messages[start:] {
		if msg.Role == chat.RoleUser {
			b.WriteString("User: ")
		} else {
			b.WriteString("Assistant: ")
		}
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return b.String()
}
