// Package openai provides a language model backed by the OpenAI Chat
// Completions API.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/voxgate/voxgate/pkg/provider/llm"
)

// Compile-time check that *Model satisfies [llm.LanguageModel].
var _ llm.LanguageModel = (*Model)(nil)

// Model implements llm.LanguageModel using the OpenAI API.
type Model struct {
	client       oai.Client
	model        string
	systemPrompt string
	temperature  float64
	maxTokens    int64
}

// config holds optional configuration for the model.
type config struct {
	baseURL      string
	timeout      time.Duration
	systemPrompt string
	temperature  float64
	maxTokens    int64
}

// Option is a functional option for Model.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithSystemPrompt prepends a system message to every request.
func WithSystemPrompt(prompt string) Option {
	return func(c *config) {
		c.systemPrompt = prompt
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *config) {
		c.temperature = t
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int64) Option {
	return func(c *config) {
		c.maxTokens = n
	}
}

// New constructs a new OpenAI language model.
func New(apiKey string, model string, opts ...Option) (*Model, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Model{
		client:       client,
		model:        model,
		systemPrompt: cfg.systemPrompt,
		temperature:  cfg.temperature,
		maxTokens:    cfg.maxTokens,
	}, nil
}

// Generate implements llm.LanguageModel.
func (m *Model) Generate(ctx context.Context, prompt string) (string, error) {
	var messages []oai.ChatCompletionMessageParamUnion
	if m.systemPrompt != "" {
		messages = append(messages, oai.SystemMessage(m.systemPrompt))
	}
	messages = append(messages, oai.UserMessage(prompt))

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(m.model),
		Messages: messages,
	}
	if m.temperature != 0 {
		params.Temperature = param.NewOpt(m.temperature)
	}
	if m.maxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(m.maxTokens)
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices in response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
