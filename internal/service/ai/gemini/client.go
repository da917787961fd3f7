package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

// Interface compliance check.
var _ model.BaseChatModel = (*Client)(nil)

// Client sends prompts to Gemini.
type Client struct {
	model      string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// Option configures a [Client].
type Option func(*Client)

// WithModel sets the model ID. Default is gemini-1.5-flash.
func WithModel(name string) Option {
	return func(c *Client) {
		if name = strings.TrimSpace(name); name != "" {
			c.model = name
		}
	}
}

// WithBaseURL points the client at a different endpoint, e.g. a test server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSpace(baseURL) }
}

// WithTimeout bounds every call. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// New creates a Gemini [Client].
func New(opts ...Option) *Client {
	c := &Client{
		model:      DefaultModel,
		timeout:    DefaultTimeout,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Model returns the configured model ID.
func (c *Client) Model() string {
	return c.model
}

type callOptions struct {
	apiKey string
}

// WithAPIKey supplies the credential for a single Generate or Stream call.
func WithAPIKey(key string) model.Option {
	return model.WrapImplSpecificOptFn(func(o *callOptions) {
		o.apiKey = strings.TrimSpace(key)
	})
}

type call struct {
	client   *genai.Client
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

// Generate performs exactly one generateContent request and returns the
// trimmed text of the first candidate's first part.
func (c *Client) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.prepare(ctx, input, opts)
	if err != nil {
		return nil, err
	}

	resp, err := req.client.Models.GenerateContent(ctx, req.model, req.contents, req.config)
	if err != nil {
		return nil, classify(ctx, err)
	}

	text, err := firstText(resp)
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(text, nil), nil
}

func (c *Client) prepare(ctx context.Context, input []*schema.Message, opts []model.Option) (*call, error) {
	impl := model.GetImplSpecificOptions(&callOptions{}, opts...)
	if impl.apiKey == "" {
		return nil, errors.New("gemini: api key must not be empty")
	}
	if len(input) == 0 {
		return nil, errors.New("gemini: input must not be empty")
	}

	temperature := defaultTemperature
	maxTokens := defaultMaxTokens
	topP := defaultTopP
	name := c.model
	common := model.GetCommonOptions(&model.Options{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		TopP:        &topP,
		Model:       &name,
	}, opts...)

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      impl.apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  c.httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: c.baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	contents, system := ConvertMessages(input)
	return &call{
		client:   gc,
		model:    *common.Model,
		contents: contents,
		config:   buildConfig(common, system),
	}, nil
}

func buildConfig(common *model.Options, system *genai.Content) *genai.GenerateContentConfig {
	topK := defaultTopK
	return &genai.GenerateContentConfig{
		Temperature:       common.Temperature,
		TopP:              common.TopP,
		TopK:              &topK,
		MaxOutputTokens:   int32(*common.MaxTokens),
		SafetySettings:    safetySettings(),
		SystemInstruction: system,
	}
}

func safetySettings() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	settings := make([]*genai.SafetySetting, len(categories))
	for i, category := range categories {
		settings[i] = &genai.SafetySetting{
			Category:  category,
			Threshold: genai.HarmBlockThresholdBlockMediumAndAbove,
		}
	}
	return settings
}

// ConvertMessages converts eino messages to genai contents. System messages
// are merged into the returned system instruction.
// Exported for testing.
func ConvertMessages(msgs []*schema.Message) ([]*genai.Content, *genai.Content) {
	var (
		contents []*genai.Content
		system   []string
	)
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			system = append(system, msg.Content)
		case schema.Assistant:
			contents = append(contents, &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: msg.Content}},
			})
		}
	}
	if len(system) == 0 {
		return contents, nil
	}
	return contents, &genai.Content{
		Parts: []*genai.Part{{Text: strings.Join(system, "\n\n")}},
	}
}

func firstText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return "", upstream("No response candidates returned from API", nil)
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 || content.Parts[0] == nil {
		return "", upstream("Empty response from API - content may have been blocked by safety filters", nil)
	}
	text := strings.TrimSpace(content.Parts[0].Text)
	if text == "" {
		return "", upstream("Empty response returned from API", nil)
	}
	return text, nil
}
