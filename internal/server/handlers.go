package server

import (
	"errors"
	"net/http"
	"strings"

	"auto-api-healer/internal/orchestrator"
	"auto-api-healer/internal/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type parseRequest struct {
	URL string `json:"url" binding:"required"`
}

type stepRequest struct {
	Method    string        `json:"method" binding:"required"`
	Path      string        `json:"path" binding:"required"`
	Variables types.Context `json:"variables"`
}

type runRequest struct {
	// Method, Category and Uploads pick a suite; all empty runs every endpoint
	Method    string        `json:"method"`
	Category  string        `json:"category"`
	Uploads   bool          `json:"uploads"`
	Variables types.Context `json:"variables"`
}

type generateRequest struct {
	// Operations limits generation to these operation ids
	Operations []string `json:"operations"`
}

func errorBody(err error) gin.H {
	return gin.H{"detail": err.Error()}
}

var errNoDocument = errors.New("no API description loaded, POST /parse first")

var errNoLLM = errors.New("LLM service is not configured")

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleParse(c *gin.Context) {
	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err))
		return
	}

	s.logger.Info("parsing API description", zap.String("url", req.URL))
	if err := s.Load(c.Request.Context(), req.URL); err != nil {
		s.logger.Error("failed to parse API description", zap.Error(err))
		c.JSON(http.StatusBadRequest, errorBody(err))
		return
	}

	doc, _, _ := s.active()
	c.JSON(http.StatusOK, gin.H{
		"source":     doc.Source,
		"base_url":   doc.BaseURL,
		"endpoints":  doc.Endpoints,
		"categories": orchestrator.Categories(doc.Endpoints),
	})
}

func (s *Server) handleEndpoints(c *gin.Context) {
	doc, _, _ := s.active()
	if doc == nil {
		c.JSON(http.StatusConflict, errorBody(errNoDocument))
		return
	}
	c.JSON(http.StatusOK, gin.H{"endpoints": doc.Endpoints})
}

func (s *Server) handleRunStep(c *gin.Context) {
	var req stepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err))
		return
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	doc, orch, vars := s.active()
	if orch == nil {
		c.JSON(http.StatusConflict, errorBody(errNoDocument))
		return
	}
	ep, ok := findEndpoint(doc.Endpoints, req.Method, req.Path)
	if !ok {
		c.JSON(http.StatusNotFound, errorBody(errors.New("unknown endpoint "+strings.ToUpper(req.Method)+" "+req.Path)))
		return
	}
	if orch.BaseURL() == "" {
		c.JSON(http.StatusBadRequest, errorBody(orchestrator.ErrMissingBaseURL))
		return
	}

	vars.Merge(req.Variables)
	next, err := orch.Step(c.Request.Context(), ep, vars)
	s.storeVariables(next)
	if err != nil {
		c.JSON(http.StatusRequestTimeout, errorBody(err))
		return
	}

	response := gin.H{
		"state":     orch.State(ep.ID()),
		"variables": next,
	}
	if result, ok := orch.Result(ep.Path, ep.Method); ok {
		response["result"] = result
	}
	if verdict, ok := orch.Diagnosis(ep.ID()); ok {
		response["diagnosis"] = verdict
	}
	c.JSON(http.StatusOK, response)
}

func (s *Server) handleRun(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err))
		return
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	_, orch, vars := s.active()
	if orch == nil {
		c.JSON(http.StatusConflict, errorBody(errNoDocument))
		return
	}
	vars.Merge(req.Variables)

	ctx := c.Request.Context()
	var (
		next types.Context
		err  error
	)
	switch {
	case req.Uploads:
		next, err = orch.RunUploads(ctx, vars)
	case req.Method != "":
		next, err = orch.RunMethod(ctx, req.Method, vars)
	case req.Category != "":
		next, err = orch.RunCategory(ctx, req.Category, vars)
	default:
		next, err = orch.Run(ctx, orch.Endpoints(), vars)
	}

	if errors.Is(err, orchestrator.ErrMissingBaseURL) {
		c.JSON(http.StatusBadRequest, errorBody(err))
		return
	}
	s.storeVariables(next)

	response := gin.H{
		"results":   orch.Results(),
		"diagnoses": orch.Diagnoses(),
		"variables": next,
	}
	if err != nil {
		s.logger.Warn("suite interrupted", zap.Error(err))
		response["error"] = err.Error()
	}
	c.JSON(http.StatusOK, response)
}

func (s *Server) handleResults(c *gin.Context) {
	_, orch, vars := s.active()
	if orch == nil {
		c.JSON(http.StatusConflict, errorBody(errNoDocument))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"results":   orch.Results(),
		"diagnoses": orch.Diagnoses(),
		"bodies":    orch.ManualBodies(),
		"variables": vars,
	})
}

// handleSetBody stores the raw request body as the manual body of an operation
func (s *Server) handleSetBody(c *gin.Context) {
	_, orch, _ := s.active()
	if orch == nil {
		c.JSON(http.StatusConflict, errorBody(errNoDocument))
		return
	}
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err))
		return
	}
	orch.SetManualBody(c.Param("operation"), string(raw))
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDiagnose(c *gin.Context) {
	if s.opts.LLM == nil {
		c.JSON(http.StatusServiceUnavailable, errorBody(errNoLLM))
		return
	}
	var req types.DiagnosisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err))
		return
	}
	verdict, err := s.opts.LLM.Diagnose(c.Request.Context(), req)
	if err != nil {
		s.logger.Error("diagnosis failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, errorBody(err))
		return
	}
	c.JSON(http.StatusOK, verdict)
}

func (s *Server) handleGenerateData(c *gin.Context) {
	if s.opts.LLM == nil {
		c.JSON(http.StatusServiceUnavailable, errorBody(errNoLLM))
		return
	}
	doc, _, _ := s.active()
	if doc == nil {
		c.JSON(http.StatusConflict, errorBody(errNoDocument))
		return
	}

	var req generateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorBody(err))
			return
		}
	}

	endpoints := doc.Endpoints
	if len(req.Operations) > 0 {
		wanted := make(map[string]bool, len(req.Operations))
		for _, id := range req.Operations {
			wanted[id] = true
		}
		endpoints = nil
		for _, ep := range doc.Endpoints {
			if wanted[ep.ID()] {
				endpoints = append(endpoints, ep)
			}
		}
	}

	data, err := s.opts.LLM.GenerateTestData(c.Request.Context(), endpoints)
	if err != nil {
		s.logger.Error("test data generation failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, errorBody(err))
		return
	}

	// generated entries drive the following steps of this session
	s.runMu.Lock()
	s.mergeTestData(data)
	if _, orch, _ := s.active(); orch != nil {
		orch.SetTestData(data)
	}
	s.runMu.Unlock()
	s.logger.Info("stored generated test data", zap.Int("entries", len(data)))

	c.JSON(http.StatusOK, gin.H{"test_data": data})
}
