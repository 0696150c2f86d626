package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"auto-api-healer/internal/llm"
	"auto-api-healer/internal/metrics"
	"auto-api-healer/internal/orchestrator"
	"auto-api-healer/internal/parser"
	"auto-api-healer/internal/testgen"
	"auto-api-healer/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Options configures a Server
type Options struct {
	Parser   *parser.SwaggerParser
	Executor orchestrator.Executor

	// LLM is optional; without it diagnosis and data generation answer 503
	LLM llm.LLMClient

	// Diagnoser drives healing of failed steps; nil disables healing
	Diagnoser orchestrator.Diagnoser

	// BaseURL overrides the base URL detected from the parsed document
	BaseURL      string
	Headers      map[string]string
	TestData     types.TestDataDocument
	ManualBodies map[string]string
	HealingPause time.Duration
	Pacing       time.Duration

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Server exposes parsing, step and suite execution, diagnosis and data
// generation over HTTP. One document and one orchestrator are active at a time.
type Server struct {
	opts   Options
	logger *zap.Logger
	router *gin.Engine

	// runMu serializes steps and suites against the active orchestrator
	runMu sync.Mutex

	mu        sync.RWMutex
	doc       *parser.Document
	orch      *orchestrator.Orchestrator
	variables types.Context
	testData  types.TestDataDocument
}

// New creates a server and registers its routes
func New(opts Options) (*Server, error) {
	if opts.Executor == nil {
		return nil, errors.New("server requires an executor")
	}
	if opts.Parser == nil {
		opts.Parser = parser.NewSwaggerParser(opts.Logger)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{
		opts:      opts,
		logger:    log,
		variables: types.Context{},
		testData:  types.TestDataDocument{},
	}
	s.mergeTestData(opts.TestData)
	s.router = s.routes()
	return s, nil
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/", s.handleHealth)
	router.POST("/parse", s.handleParse)
	router.GET("/endpoints", s.handleEndpoints)
	router.POST("/run-step", s.handleRunStep)
	router.POST("/run", s.handleRun)
	router.GET("/results", s.handleResults)
	router.PUT("/bodies/:operation", s.handleSetBody)
	router.POST("/diagnose", s.handleDiagnose)
	router.POST("/generate-data", s.handleGenerateData)

	if s.opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Metrics.Registry(), promhttp.HandlerOpts{})))
	}
	return router
}

// requestLogger logs each request through zap
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

// Load parses source and makes it the active document
func (s *Server) Load(ctx context.Context, source string) error {
	doc, err := s.opts.Parser.Parse(ctx, source)
	if err != nil {
		return err
	}
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.activate(doc)
}

// activate replaces the document and the orchestrator built on it
func (s *Server) activate(doc *parser.Document) error {
	baseURL := s.opts.BaseURL
	if baseURL == "" {
		baseURL = doc.BaseURL
	}

	orch, err := orchestrator.New(orchestrator.Options{
		BaseURL:      baseURL,
		Endpoints:    doc.Endpoints,
		Executor:     s.opts.Executor,
		Diagnoser:    s.opts.Diagnoser,
		Synthesizer:  testgen.NewSynthesizer(doc.Schemas),
		TestData:     s.currentTestData(),
		ManualBodies: s.opts.ManualBodies,
		Headers:      s.opts.Headers,
		HealingPause: s.opts.HealingPause,
		Pacing:       s.opts.Pacing,
		Logger:       s.logger,
		Metrics:      s.opts.Metrics,
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.doc = doc
	s.orch = orch
	s.variables = types.Context{}
	s.mu.Unlock()
	return nil
}

// mergeTestData adds doc to the session test data; later entries win
func (s *Server) mergeTestData(doc types.TestDataDocument) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, entry := range doc {
		s.testData[key] = entry
	}
}

func (s *Server) currentTestData() types.TestDataDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := make(types.TestDataDocument, len(s.testData))
	for key, entry := range s.testData {
		doc[key] = entry
	}
	return doc
}

func (s *Server) active() (*parser.Document, *orchestrator.Orchestrator, types.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc, s.orch, s.variables.Clone()
}

func (s *Server) storeVariables(vars types.Context) {
	s.mu.Lock()
	s.variables = vars.Clone()
	s.mu.Unlock()
}

func findEndpoint(endpoints []types.Endpoint, method, path string) (types.Endpoint, bool) {
	for _, ep := range endpoints {
		if strings.EqualFold(ep.Method, method) && ep.Path == path {
			return ep, true
		}
	}
	return types.Endpoint{}, false
}
