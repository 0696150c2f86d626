package cli

import (
	"context"
	"errors"
	"fmt"

	"auto-api-healer/internal/config"
	"auto-api-healer/internal/executor"
	"auto-api-healer/internal/llm"
	"auto-api-healer/internal/logger"
	"auto-api-healer/internal/orchestrator"
	"auto-api-healer/internal/parser"
	"auto-api-healer/internal/testgen"
	"auto-api-healer/internal/types"

	"go.uber.org/zap"
)

// app carries what every command builds from configuration
type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

// newApp loads configuration, applies flag overrides and builds the logger
func newApp(opts *globalOptions) (*app, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.baseURL != "" {
		cfg.Environment.BaseURL = opts.baseURL
	}
	if opts.openAPIURL != "" {
		cfg.Environment.OpenAPIURL = opts.openAPIURL
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Logging.Format = opts.logFormat
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: log}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

// parse loads the API description named by the configuration
func (a *app) parse(ctx context.Context) (*parser.Document, error) {
	source := a.cfg.Environment.OpenAPIURL
	if source == "" {
		return nil, errors.New("no API description given, set environment.openapi_url or --openapi-url")
	}
	doc, err := parser.NewSwaggerParser(a.logger).Parse(ctx, source)
	if err != nil {
		return nil, err
	}
	a.logger.Info("parsed API description",
		zap.String("source", doc.Source),
		zap.String("base_url", doc.BaseURL),
		zap.Int("endpoints", len(doc.Endpoints)),
	)
	return doc, nil
}

// baseURL prefers the configured target over the detected one
func (a *app) baseURL(doc *parser.Document) string {
	if a.cfg.Environment.BaseURL != "" {
		return a.cfg.Environment.BaseURL
	}
	return doc.BaseURL
}

// headers returns the headers sent with every request
func (a *app) headers() map[string]string {
	headers := map[string]string{}
	if auth := a.cfg.Environment.Auth.Header(); auth != "" {
		headers["Authorization"] = auth
	}
	return headers
}

func (a *app) executor() *executor.HTTPExecutor {
	return executor.New(executor.Config{
		Timeout: a.cfg.Timeout(),
		Headers: a.headers(),
	}, a.logger)
}

// llmClient builds the LLM client and its interaction log. It returns a nil
// client when no API key is configured.
func (a *app) llmClient() (llm.LLMClient, *logger.InteractionLog, error) {
	if a.cfg.LLM.APIKey == "" {
		return nil, nil, nil
	}
	interactions, err := logger.NewInteractionLog(a.cfg.Logging.Dir)
	if err != nil {
		return nil, nil, err
	}
	client, err := llm.NewClient(llm.FromSettings(a.cfg.LLM), interactions)
	if err != nil {
		interactions.Close()
		return nil, nil, err
	}
	return client, interactions, nil
}

// diagnoser returns client as the healing diagnoser, or nil when healing is
// disabled or no client is configured
func (a *app) diagnoser(client llm.LLMClient) orchestrator.Diagnoser {
	if client == nil || !a.cfg.Healing.Enabled {
		return nil
	}
	return client
}

// loadTestData reads the test data document and manual bodies; neither is required
func (a *app) loadTestData() (types.TestDataDocument, map[string]string) {
	loader := testgen.NewLoader(a.cfg.Test.TestDataDir)

	doc, err := loader.LoadTestData()
	if err != nil {
		a.logger.Debug("running without test data", zap.Error(err))
		doc = types.TestDataDocument{}
	}

	bodies, err := loader.LoadManualBodies()
	if err != nil {
		a.logger.Warn("ignoring manual bodies", zap.Error(err))
		bodies = map[string]string{}
	}
	return doc, bodies
}
