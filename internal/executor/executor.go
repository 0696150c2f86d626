package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"auto-api-healer/internal/types"

	"go.uber.org/zap"
)

// Config holds configuration for request execution
type Config struct {
	Timeout time.Duration

	// Headers are sent with every request, request headers win on conflict
	Headers map[string]string
}

// HTTPExecutor issues resolved endpoints against the target deployment
type HTTPExecutor struct {
	config Config
	client *http.Client
	logger *zap.Logger
}

// New creates an executor. A nil logger disables logging.
func New(config Config, logger *zap.Logger) *HTTPExecutor {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPExecutor{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: logger,
	}
}

// Execute dispatches one endpoint. Transport problems are reported in the
// result rather than as an error, so a step can always be recorded.
func (e *HTTPExecutor) Execute(ctx context.Context, req types.ExecutionRequest) (*types.ExecutionResult, error) {
	result := &types.ExecutionResult{
		Endpoint: req.Endpoint.Path,
		Method:   strings.ToUpper(req.Endpoint.Method),
	}

	httpReq, body, err := e.buildRequest(ctx, req)
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}
	result.RequestBody = body

	start := time.Now()
	resp, err := e.client.Do(httpReq)
	result.Elapsed = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		e.logger.Debug("request failed", zap.String("url", httpReq.URL.String()), zap.Error(err))
		return result, nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		result.Error = fmt.Sprintf("failed to read response body: %v", err)
		return result, nil
	}

	result.Status = resp.StatusCode
	result.Passed = resp.StatusCode < 400
	result.Response = decodeResponse(resp.Header.Get("Content-Type"), raw)

	e.logger.Debug("response received",
		zap.String("method", result.Method),
		zap.String("url", httpReq.URL.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

// buildRequest creates an HTTP request for the given endpoint, binding context variables
func (e *HTTPExecutor) buildRequest(ctx context.Context, req types.ExecutionRequest) (*http.Request, interface{}, error) {
	if req.BaseURL == "" {
		return nil, nil, fmt.Errorf("base URL is required")
	}

	target := strings.TrimRight(req.BaseURL, "/") + "/" + strings.TrimLeft(BindPath(req.Endpoint.Path, req.Context), "/")
	if len(req.Query) > 0 {
		target += "?" + encodeQuery(req.Query, req.Context)
	}

	var (
		payload     io.Reader
		bound       interface{}
		contentType string
	)
	if req.Body != nil && req.Endpoint.HasBody() {
		bound = BindBody(req.Body, req.Context)
		var err error
		payload, contentType, err = encodeBody(req.Endpoint, bound)
		if err != nil {
			return nil, nil, err
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, strings.ToUpper(req.Endpoint.Method), target, payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for key, value := range e.config.Headers {
		httpReq.Header.Set(key, value)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, BindString(value, req.Context))
	}

	return httpReq, bound, nil
}

func encodeQuery(query map[string]interface{}, vars types.Context) string {
	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	values := url.Values{}
	for _, key := range keys {
		switch v := query[key].(type) {
		case []interface{}:
			for _, item := range v {
				values.Add(key, BindString(types.FormatValue(item), vars))
			}
		default:
			values.Set(key, BindString(types.FormatValue(v), vars))
		}
	}
	return values.Encode()
}

// decodeResponse keeps JSON bodies as values and everything else as text
func decodeResponse(contentType string, raw []byte) interface{} {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if strings.Contains(contentType, "json") || json.Valid(raw) {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var value interface{}
		if err := dec.Decode(&value); err == nil {
			return value
		}
	}
	return string(raw)
}
