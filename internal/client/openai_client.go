package client

import (
	"context"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/pagecraft/api/internal/config"
)

// OpenAIClient is the fallback text-generation backend, on the official SDK.
type OpenAIClient struct {
	model string
	opts  []option.RequestOption
}

// NewOpenAIClient creates the fallback backend. Returns an unconfigured
// client when no API key is set.
func NewOpenAIClient(cfg *config.OpenAIConfig) *OpenAIClient {
	if cfg.APIKey == "" {
		return &OpenAIClient{}
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIClient{model: cfg.Model, opts: opts}
}

func (c *OpenAIClient) Name() string { return "openai" }

func (c *OpenAIClient) IsConfigured() bool {
	return c != nil && len(c.opts) > 0 && c.model != ""
}

func (c *OpenAIClient) Generate(ctx context.Context, system, user string) (string, error) {
	cl := openai.NewClient(c.opts...)

	resp, err := cl.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", &ProviderError{Provider: c.Name(), Message: err.Error()}
	}
	if len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: c.Name(), Message: "empty choices"}
	}
	return resp.Choices[0].Message.Content, nil
}
