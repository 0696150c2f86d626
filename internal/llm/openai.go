package llm

import (
	"context"
	"fmt"

	"auto-api-healer/internal/logger"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient talks to any OpenAI-compatible chat completion API
type OpenAIClient struct {
	*BaseClient
	client *openai.Client
}

// NewOpenAIClient creates a new OpenAI-compatible client
func NewOpenAIClient(config *Config, log *logger.InteractionLog) *OpenAIClient {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	c := &OpenAIClient{client: openai.NewClientWithConfig(clientConfig)}
	c.BaseClient = NewBaseClient(config, log, c)
	return c
}

// complete implements the actual LLM API call, asking for a JSON object reply
func (c *OpenAIClient) complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:       c.config.Model,
			Temperature: float32(c.config.Temperature),
			MaxTokens:   c.config.MaxTokens,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: system,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
		},
	)

	if err != nil {
		return "", fmt.Errorf("%s API error: %w", c.config.Provider, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from %s", c.config.Provider)
	}

	return resp.Choices[0].Message.Content, nil
}
