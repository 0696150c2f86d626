package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap logger based on level/format settings
func New(level, format string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.Set(strings.ToLower(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	switch strings.ToLower(format) {
	case "json":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
		format = "console"
	}

	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.Encoding = strings.ToLower(format)

	return cfg.Build()
}

// InteractionLog records LLM prompts and replies to a file
type InteractionLog struct {
	log  *zap.Logger
	file *os.File
}

// NewInteractionLog creates a timestamped JSON log file in logDir
func NewInteractionLog(logDir string) (*InteractionLog, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	logPath := filepath.Join(logDir, fmt.Sprintf("llm_%s.log", timestamp))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(file),
		zapcore.DebugLevel,
	)
	return &InteractionLog{log: zap.New(core), file: file}, nil
}

// Close flushes and closes the log file
func (l *InteractionLog) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = l.log.Sync()
	return l.file.Close()
}

// LogLLMInteraction logs an LLM interaction
func (l *InteractionLog) LogLLMInteraction(operation string, input interface{}, output interface{}, err error) {
	if l == nil {
		return
	}
	if err != nil {
		l.log.Error("llm interaction", zap.String("operation", operation), zap.Any("input", input), zap.Error(err))
		return
	}
	l.log.Info("llm interaction", zap.String("operation", operation), zap.Any("input", input), zap.Any("output", output))
}
