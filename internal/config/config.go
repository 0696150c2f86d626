package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where LoadConfig looks when no path is given
const DefaultPath = "config/config.yaml"

// Config holds the application configuration
type Config struct {
	Environment Environment     `yaml:"environment"`
	Test        TestConfig      `yaml:"test"`
	Healing     HealingConfig   `yaml:"healing"`
	LLM         LLMConfig       `yaml:"llm"`
	Reporting   ReportingConfig `yaml:"reporting"`
	Logging     LoggingConfig   `yaml:"logging"`
	Database    DatabaseConfig  `yaml:"database"`
}

// Environment holds environment-specific configuration
type Environment struct {
	BaseURL    string     `yaml:"base_url"`
	OpenAPIURL string     `yaml:"openapi_url"`
	Auth       AuthConfig `yaml:"auth"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	Type  string `yaml:"type"`
	Token string `yaml:"token"`
}

// Header returns the Authorization header value, empty when no token is set
func (a AuthConfig) Header() string {
	if a.Token == "" {
		return ""
	}
	scheme := a.Type
	if scheme == "" || strings.EqualFold(scheme, "bearer") {
		scheme = "Bearer"
	}
	return scheme + " " + a.Token
}

// TestConfig holds test execution configuration
type TestConfig struct {
	Timeout     int    `yaml:"timeout"`
	PacingMS    int    `yaml:"pacing_ms"`
	TestDataDir string `yaml:"testdata_dir"`
}

// HealingConfig controls the diagnosis-driven retry
type HealingConfig struct {
	Enabled bool `yaml:"enabled"`
	PauseMS int  `yaml:"pause_ms"`
}

// LLMConfig holds configuration for the diagnosis and data generation services
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// ReportingConfig holds reporting configuration
type ReportingConfig struct {
	Format    []string `yaml:"format"`
	OutputDir string   `yaml:"output_dir"`
}

// LoggingConfig controls logger behaviour
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Dir    string `yaml:"dir"`
}

// DatabaseConfig holds the connection used by database-backed data generation
type DatabaseConfig struct {
	Type     string `yaml:"type"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// Timeout returns the per-request timeout
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Test.Timeout) * time.Second
}

// Pacing returns the delay between suite steps
func (c *Config) Pacing() time.Duration {
	return time.Duration(c.Test.PacingMS) * time.Millisecond
}

// HealingPause returns how long a correction stays visible before the retry
func (c *Config) HealingPause() time.Duration {
	return time.Duration(c.Healing.PauseMS) * time.Millisecond
}

// LoadConfig loads the configuration from a YAML file and environment variables.
// A missing file is only an error when path was given explicitly.
func LoadConfig(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	config := &Config{Healing: HealingConfig{Enabled: true}}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	applyEnv(config)
	applyDefaults(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Default returns a configuration with every default applied
func Default() *Config {
	config := &Config{Healing: HealingConfig{Enabled: true}}
	applyDefaults(config)
	return config
}

// applyEnv overrides file values from environment variables
func applyEnv(config *Config) {
	if token := os.Getenv("AUTH_TOKEN"); token != "" {
		config.Environment.Auth.Token = token
	}
	if baseURL := os.Getenv("BASE_URL"); baseURL != "" {
		config.Environment.BaseURL = baseURL
	}
	if openapiURL := os.Getenv("OPENAPI_URL"); openapiURL != "" {
		config.Environment.OpenAPIURL = openapiURL
	}
	for _, name := range []string{"LLM_API_KEY", "GROQ_API_KEY", "OPENAI_API_KEY"} {
		if key := os.Getenv(name); key != "" {
			config.LLM.APIKey = key
			break
		}
	}
}

// applyDefaults sets default values where nothing was specified
func applyDefaults(config *Config) {
	if config.Test.Timeout == 0 {
		config.Test.Timeout = 10
	}
	if config.Test.PacingMS == 0 {
		config.Test.PacingMS = 100
	}
	if config.Test.TestDataDir == "" {
		config.Test.TestDataDir = "testdata"
	}
	if config.Healing.PauseMS == 0 {
		config.Healing.PauseMS = 1500
	}
	if config.LLM.Provider == "" {
		config.LLM.Provider = "groq"
	}
	if config.LLM.Model == "" {
		switch config.LLM.Provider {
		case "openai":
			config.LLM.Model = "gpt-4o-mini"
		default:
			config.LLM.Model = "llama-3.3-70b-versatile"
		}
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.1
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if len(config.Reporting.Format) == 0 {
		config.Reporting.Format = []string{"json", "table"}
	}
	if config.Reporting.OutputDir == "" {
		config.Reporting.OutputDir = filepath.Join("reports")
	}
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "console"
	}
	if config.Logging.Dir == "" {
		config.Logging.Dir = "logs"
	}
}

// Validate checks the configuration for values the rest of the program cannot handle
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "groq":
	default:
		return fmt.Errorf("unsupported LLM provider: %s", c.LLM.Provider)
	}
	for _, format := range c.Reporting.Format {
		switch format {
		case "json", "table":
		default:
			return fmt.Errorf("unsupported report format: %s", format)
		}
	}
	if c.Test.Timeout < 0 || c.Test.PacingMS < 0 || c.Healing.PauseMS < 0 {
		return fmt.Errorf("timeout, pacing and healing pause must not be negative")
	}
	return nil
}
