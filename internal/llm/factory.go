package llm

import (
	"fmt"

	"auto-api-healer/internal/logger"
)

// NewClient creates a new LLM client based on the provider
func NewClient(config *Config, log *logger.InteractionLog) (LLMClient, error) {
	if config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	switch config.Provider {
	case "openai":
		return NewOpenAIClient(config, log), nil
	case "groq":
		groq := *config
		if groq.BaseURL == "" {
			groq.BaseURL = GroqBaseURL
		}
		return NewOpenAIClient(&groq, log), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", config.Provider)
	}
}
