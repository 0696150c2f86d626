package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Setenv("AUTH_TOKEN", "")
	t.Setenv("BASE_URL", "")
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	path := writeConfig(t, `
environment:
  base_url: http://localhost:8000
  auth:
    token: secret
test:
  timeout: 5
healing:
  enabled: true
  pause_ms: 10
llm:
  provider: openai
reporting:
  format: [json]
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.Environment.BaseURL)
	assert.Equal(t, "Bearer secret", cfg.Environment.Auth.Header())
	assert.Equal(t, 5*time.Second, cfg.Timeout())
	assert.Equal(t, 10*time.Millisecond, cfg.HealingPause())
	assert.Equal(t, 100*time.Millisecond, cfg.Pacing())
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, []string{"json"}, cfg.Reporting.Format)
	assert.True(t, cfg.Healing.Enabled)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("AUTH_TOKEN", "from-env")
	t.Setenv("BASE_URL", "http://env.example")
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "gsk_test")

	path := writeConfig(t, "environment:\n  base_url: http://file.example\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://env.example", cfg.Environment.BaseURL)
	assert.Equal(t, "from-env", cfg.Environment.Auth.Token)
	assert.Equal(t, "gsk_test", cfg.LLM.APIKey)
	assert.Equal(t, "groq", cfg.LLM.Provider)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "unknown provider", mutate: func(c *Config) { c.LLM.Provider = "bard" }, wantErr: true},
		{name: "unknown format", mutate: func(c *Config) { c.Reporting.Format = []string{"pdf"} }, wantErr: true},
		{name: "negative pause", mutate: func(c *Config) { c.Healing.PauseMS = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAuthHeader(t *testing.T) {
	assert.Equal(t, "", AuthConfig{}.Header())
	assert.Equal(t, "Token abc", AuthConfig{Type: "Token", Token: "abc"}.Header())
	assert.Equal(t, "Bearer abc", AuthConfig{Type: "bearer", Token: "abc"}.Header())
}
