package chat

import "time"

// Session pairs one article with an ongoing question/answer transcript.
type Session struct {
	ID             string    `json:"id"`
	ArticleText    string    `json:"-"`
	ArticleSummary string    `json:"articleSummary"`
	Messages       []Message `json:"messages"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
