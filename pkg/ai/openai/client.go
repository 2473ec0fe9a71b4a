package openai

import (
	"context"
	"errors"

	"lyricdesk/pkg/ai"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

const maxTokens = 2000

var _ ai.Client = (*openAi)(nil)

type openAi struct {
	model  string
	client *openai.Client
}

// NewOpenAi baseURL 为空时使用官方地址，兼容任何 OpenAI 协议的服务
func NewOpenAi(apiKey, modelName, baseURL string) ai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if modelName == "" {
		modelName = openai.GPT4oMini
	}
	return &openAi{model: modelName, client: openai.NewClientWithConfig(cfg)}
}

func (o *openAi) Name() string {
	return "openai"
}

func (o *openAi) HandleText(ctx context.Context, msg string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: msg,
			},
		},
		MaxTokens: maxTokens,
	})
	if err != nil {
		log.Error().Err(err).Str("model", o.model).Msg("could not get response from openai")
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
