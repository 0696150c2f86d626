package llm

import (
	"context"
	"errors"

	"auto-api-healer/internal/types"
)

// ErrMissingAPIKey is returned when a client is requested without a credential
var ErrMissingAPIKey = errors.New("LLM API key is not configured")

// LLMClient defines the interface for LLM interactions
type LLMClient interface {
	// Diagnose classifies a failed call as an input or an API issue
	Diagnose(ctx context.Context, req types.DiagnosisRequest) (*types.DiagnosisVerdict, error)

	// GenerateTestData produces a test data document keyed by operation id
	GenerateTestData(ctx context.Context, endpoints []types.Endpoint) (types.TestDataDocument, error)

	// GenerateBody fills a request body template using a sample database record
	GenerateBody(ctx context.Context, endpoint types.Endpoint, template interface{}, sample map[string]interface{}) (interface{}, error)
}

// completer performs one chat completion and returns the raw reply
type completer interface {
	complete(ctx context.Context, system, prompt string) (string, error)
}

// endpointSummary is the compact endpoint view sent in data generation prompts
type endpointSummary struct {
	Path        string      `json:"path"`
	Method      string      `json:"method"`
	OperationID string      `json:"operationId"`
	Parameters  []string    `json:"parameters"`
	BodySchema  interface{} `json:"body_schema,omitempty"`
}
