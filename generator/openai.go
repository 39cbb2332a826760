package generator

import (
	"context"
	"errors"
	"fmt"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
)

const DefaultOpenAIModel = "gpt-4-turbo-preview"

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type OpenAIModel struct {
	client openaisdk.Client
	model  string
}

func NewOpenAIModel(cfg OpenAIConfig) (*OpenAIModel, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: missing api key")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIModel{
		client: openaisdk.NewClient(opts...),
		model:  cfg.Model,
	}, nil
}

func (m *OpenAIModel) Complete(ctx context.Context, p Prompt) (string, error) {
	params := openaisdk.ChatCompletionNewParams{
		Model: shared.ChatModel(m.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(p.System),
			openaisdk.UserMessage(p.User),
		},
		Temperature: param.NewOpt(p.Temperature),
	}
	if p.MaxTokens > 0 {
		params.MaxTokens = param.NewOpt(int64(p.MaxTokens))
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: response has no choices")
	}

	return resp.Choices[0].Message.Content, nil
}
