// Package mock provides test doubles for model interfaces using function
// fields.
package mock

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Interface compliance check.
var _ model.BaseChatModel = (*ChatModel)(nil)

// ChatModel is a test double for model.BaseChatModel.
// Set GenerateFn or StreamFn before calling the matching method.
type ChatModel struct {
	GenerateFn func(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
	StreamFn   func(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error)
}

// Generate delegates to GenerateFn.
func (m *ChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	return m.GenerateFn(ctx, input, opts...)
}

// Stream delegates to StreamFn.
func (m *ChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return m.StreamFn(ctx, input, opts...)
}

// Reply returns a GenerateFn that always answers with text.
func Reply(text string) func(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	return func(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
		return schema.AssistantMessage(text, nil), nil
	}
}

// Fail returns a GenerateFn that always fails with err.
func Fail(err error) func(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	return func(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
		return nil, err
	}
}

// Chunks returns a StreamFn that emits one assistant chunk per string.
func Chunks(parts ...string) func(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return func(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
		msgs := make([]*schema.Message, len(parts))
		for i, p := range parts {
			msgs[i] = schema.AssistantMessage(p, nil)
		}
		return schema.StreamReaderFromArray(msgs), nil
	}
}
