package llm

import (
	"auto-api-healer/internal/config"
)

// GroqBaseURL is the OpenAI-compatible endpoint of Groq
const GroqBaseURL = "https://api.groq.com/openai/v1"

// Config represents the configuration for LLM integration
type Config struct {
	// Provider specifies which LLM provider to use ("groq" or "openai")
	Provider string `json:"provider"`

	// APIKey is the credential; without one no client can be built
	APIKey string `json:"api_key"`

	Model string `json:"model"`

	// BaseURL overrides the provider endpoint, mostly for tests and proxies
	BaseURL string `json:"base_url,omitempty"`

	// Temperature controls the randomness of the output (0.0 to 1.0)
	Temperature float64 `json:"temperature"`

	// MaxTokens limits the length of the generated response
	MaxTokens int `json:"max_tokens"`
}

// NewDefaultConfig returns a default configuration
func NewDefaultConfig() *Config {
	return &Config{
		Provider:    "groq",
		Model:       "llama-3.3-70b-versatile",
		Temperature: 0.1,
		MaxTokens:   2000,
	}
}

// FromSettings converts the application LLM settings
func FromSettings(s config.LLMConfig) *Config {
	c := NewDefaultConfig()
	if s.Provider != "" {
		c.Provider = s.Provider
	}
	if s.Model != "" {
		c.Model = s.Model
	}
	if s.Temperature != 0 {
		c.Temperature = s.Temperature
	}
	if s.MaxTokens != 0 {
		c.MaxTokens = s.MaxTokens
	}
	c.APIKey = s.APIKey
	c.BaseURL = s.BaseURL
	return c
}
