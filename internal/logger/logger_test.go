package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level   string
		format  string
		wantErr bool
	}{
		{level: "info", format: "console"},
		{level: "DEBUG", format: "json"},
		{level: "warn", format: ""},
		{level: "loud", format: "json", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			log, err := New(tt.level, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, log)
		})
	}
}

func TestInteractionLog(t *testing.T) {
	dir := t.TempDir()
	log, err := NewInteractionLog(dir)
	require.NoError(t, err)

	log.LogLLMInteraction("Diagnose", map[string]string{"path": "/users"}, "ok", nil)
	log.LogLLMInteraction("Diagnose", nil, nil, errors.New("boom"))
	require.NoError(t, log.Close())

	files, err := filepath.Glob(filepath.Join(dir, "llm_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"operation":"Diagnose"`)
	assert.Contains(t, string(data), "boom")
}

func TestNilInteractionLog(t *testing.T) {
	var log *InteractionLog
	log.LogLLMInteraction("noop", nil, nil, nil)
	assert.NoError(t, log.Close())
}
