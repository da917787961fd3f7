package gemini

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

const streamBuffer = 8

// Stream sends a streaming generateContent request. Text deltas are emitted
// as assistant message chunks; failures arrive through the reader's Recv.
func (c *Client) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)

	req, err := c.prepare(ctx, input, opts)
	if err != nil {
		cancel()
		return nil, err
	}

	sr, sw := schema.Pipe[*schema.Message](streamBuffer)
	go func() {
		defer cancel()
		defer sw.Close()

		produced := false
		for resp, err := range req.client.Models.GenerateContentStream(ctx, req.model, req.contents, req.config) {
			if err != nil {
				sw.Send(nil, classify(ctx, err))
				return
			}
			text := chunkText(resp)
			if text == "" {
				continue
			}
			produced = true
			if closed := sw.Send(schema.AssistantMessage(text, nil), nil); closed {
				return
			}
		}
		if !produced {
			sw.Send(nil, upstream("Empty response from API - content may have been blocked by safety filters", nil))
		}
	}()
	return sr, nil
}

// chunkText joins the non-thought text parts of the first candidate.
func chunkText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String()
}
