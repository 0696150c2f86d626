package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"auto-api-healer/internal/logger"
	"auto-api-healer/internal/testgen"
	"auto-api-healer/internal/types"
)

// BaseClient holds the prompts and response handling shared by all providers
type BaseClient struct {
	config    *Config
	log       *logger.InteractionLog
	completer completer
}

// NewBaseClient creates a new base LLM client
func NewBaseClient(config *Config, log *logger.InteractionLog, c completer) *BaseClient {
	return &BaseClient{
		config:    config,
		log:       log,
		completer: c,
	}
}

// Diagnose implements the LLMClient interface
func (c *BaseClient) Diagnose(ctx context.Context, req types.DiagnosisRequest) (*types.DiagnosisVerdict, error) {
	requestJSON, _ := json.MarshalIndent(req.RequestBody, "", "  ")
	responseJSON, _ := json.MarshalIndent(req.Response, "", "  ")

	prompt := fmt.Sprintf(`You are an expert API Debugger. Analyze the following API failure.

API Endpoint: %s %s
Request Body Sent: %s
Response Received: %s

Task:
1. Determine if this is an "INPUT_ISSUE" (the user sent bad data) or an "API_ISSUE" (the server code is logically broken).
2. If it is an "INPUT_ISSUE", provide the corrected JSON request body that will make the API pass.
3. If it is an "API_ISSUE", explain why the server is failing.

Rules:
- Return ONLY a JSON object.
- Structure:
  {
    "diagnosis": "INPUT_ISSUE" | "API_ISSUE",
    "explanation": "Short clear explanation in simple English",
    "suggested_fix": { ... corrected JSON body if input issue ... }
  }`,
		strings.ToUpper(req.Endpoint.Method), req.Endpoint.Path,
		string(requestJSON), string(responseJSON))

	input := map[string]interface{}{
		"endpoint": req.Endpoint.Method + " " + req.Endpoint.Path,
		"request":  req.RequestBody,
		"response": req.Response,
	}

	response, err := c.completer.complete(ctx, "You are a specialized AI for debugging API failures.", prompt)
	if err != nil {
		c.log.LogLLMInteraction("Diagnose", input, nil, err)
		return nil, fmt.Errorf("failed to diagnose failure: %w", err)
	}

	var verdict types.DiagnosisVerdict
	if err := decodeJSON(response, &verdict); err != nil {
		c.log.LogLLMInteraction("Diagnose", input, response, err)
		return nil, fmt.Errorf("failed to parse LLM response: %w", err)
	}
	switch verdict.Kind {
	case types.InputIssue, types.APIIssue:
	default:
		err := fmt.Errorf("unrecognised diagnosis %q", verdict.Kind)
		c.log.LogLLMInteraction("Diagnose", input, response, err)
		return nil, err
	}

	c.log.LogLLMInteraction("Diagnose", input, verdict, nil)
	return &verdict, nil
}

// GenerateTestData implements the LLMClient interface
func (c *BaseClient) GenerateTestData(ctx context.Context, endpoints []types.Endpoint) (types.TestDataDocument, error) {
	summary := make([]endpointSummary, 0, len(endpoints))
	for _, ep := range endpoints {
		var params []string
		for _, p := range ep.Parameters {
			if p.In == "path" || p.In == "query" {
				params = append(params, p.Name)
			}
		}
		entry := endpointSummary{
			Path:        ep.Path,
			Method:      ep.Method,
			OperationID: ep.ID(),
			Parameters:  params,
		}
		if ep.RequestBody != nil {
			entry.BodySchema = ep.RequestBody
		}
		summary = append(summary, entry)
	}
	summaryJSON, _ := json.MarshalIndent(summary, "", "  ")

	prompt := fmt.Sprintf(`You are a QA Automation Engineer. Generate a comprehensive JSON test data set for the following API endpoints.

Rules:
1. Output ONLY valid JSON. No markdown, no comments.
2. The JSON structure must be keyed by 'operationId' (or 'METHOD_path' if operationId is missing).
3. Each entry may hold "body" (for POST/PUT/PATCH), "path_params" and "query_params".
4. Ensure dependencies are respected: reference identifiers produced by other endpoints as {{name_id}} tokens instead of inventing them.
5. Generate success scenarios.

API Def:
%s`, string(summaryJSON))

	input := map[string]interface{}{"endpoints": len(endpoints)}

	response, err := c.completer.complete(ctx, "You are a helpful JSON data generator for API testing.", prompt)
	if err != nil {
		c.log.LogLLMInteraction("GenerateTestData", input, nil, err)
		return nil, fmt.Errorf("failed to generate test data: %w", err)
	}

	doc, err := testgen.ParseDocument([]byte(stripFences(response)))
	if err != nil {
		c.log.LogLLMInteraction("GenerateTestData", input, response, err)
		return nil, fmt.Errorf("failed to parse LLM response: %w", err)
	}

	c.log.LogLLMInteraction("GenerateTestData", input, doc, nil)
	return doc, nil
}

// GenerateBody implements the LLMClient interface
func (c *BaseClient) GenerateBody(ctx context.Context, endpoint types.Endpoint, template interface{}, sample map[string]interface{}) (interface{}, error) {
	templateJSON, _ := json.MarshalIndent(template, "", "  ")
	sampleJSON, _ := json.MarshalIndent(sample, "", "  ")

	// a list template is answered with one element
	example := template
	if arr, ok := template.([]interface{}); ok && len(arr) > 0 {
		example = arr[0]
	}
	exampleJSON, _ := json.MarshalIndent(example, "", "  ")

	prompt := fmt.Sprintf(`You are an intelligent test data generator. Based on the following API specification and sample database record, generate a fully populated test data object for the %s endpoint:

**Endpoint**: %s %s

### 1. API Request Body Template:
%s

### 2. Sample Database Record:
%s

### Your Task:
1. Analyze the API template and the sample database record.
2. Identify valid data types, formats, and constraints.
3. Generate a realistic test data object (with sample values) that matches the structure of the API request body.
4. Ensure generated data follows business logic and inferred validation rules (e.g., valid email, proper phone format, realistic DOB).
5. If the request template fields use different names than the database (e.g., 'is_activated' vs 'is_active'), map accordingly.
6. Keep {{name}} tokens of identifier fields unchanged.

### Output Format:
Respond with a single JSON object that matches the structure of the API request body template.

Example structure (based on your API template):
%s`,
		endpoint.Method, endpoint.Method, endpoint.Path,
		string(templateJSON), string(sampleJSON), string(exampleJSON))

	input := map[string]interface{}{
		"endpoint": endpoint.Method + " " + endpoint.Path,
		"sample":   sample,
	}

	response, err := c.completer.complete(ctx, "You are a helpful assistant that generates API test data. Always respond in the requested format.", prompt)
	if err != nil {
		c.log.LogLLMInteraction("GenerateBody", input, nil, err)
		return nil, fmt.Errorf("failed to generate body: %w", err)
	}

	var body interface{}
	if err := decodeJSON(response, &body); err != nil {
		c.log.LogLLMInteraction("GenerateBody", input, response, err)
		return nil, fmt.Errorf("failed to parse LLM response: %w", err)
	}

	c.log.LogLLMInteraction("GenerateBody", input, body, nil)
	return body, nil
}

func decodeJSON(response string, v interface{}) error {
	return json.Unmarshal([]byte(stripFences(response)), v)
}

// stripFences removes a markdown code fence some models wrap JSON replies in
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
