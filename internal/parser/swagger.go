package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"auto-api-healer/internal/types"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var methods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}

// Document is a parsed API description
type Document struct {
	Source    string
	BaseURL   string
	Endpoints []types.Endpoint
	Schemas   openapi3.Schemas
	Raw       *openapi3.T
}

// SwaggerParser handles fetching and parsing of Swagger/OpenAPI specifications
type SwaggerParser struct {
	client *http.Client
	logger *zap.Logger
}

// NewSwaggerParser creates a new instance of SwaggerParser
func NewSwaggerParser(logger *zap.Logger) *SwaggerParser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SwaggerParser{
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger,
	}
}

// Parse loads the description at source, a URL or a local file, trying the
// usual documentation locations when source points at a UI page or an origin.
func (p *SwaggerParser) Parse(ctx context.Context, source string) (*Document, error) {
	if !isHTTP(source) {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("failed to read API description: %w", err)
		}
		doc, err := LoadDocument(data)
		if err != nil {
			return nil, err
		}
		return NewDocument(source, doc), nil
	}

	var lastErr error
	candidates := CandidateURLs(source)
	for _, candidate := range candidates {
		p.logger.Debug("trying API description", zap.String("url", candidate))
		data, err := p.fetch(ctx, candidate)
		if err == nil {
			var doc *openapi3.T
			doc, err = LoadDocument(data)
			if err == nil {
				p.logger.Info("loaded API description", zap.String("url", candidate), zap.Int("paths", doc.Paths.Len()))
				return NewDocument(candidate, doc), nil
			}
		}
		p.logger.Debug("candidate failed", zap.String("url", candidate), zap.Error(err))
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	return nil, fmt.Errorf("could not find a valid API description in %d locations: %w", len(candidates), lastErr)
}

func (p *SwaggerParser) fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, application/yaml")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// CandidateURLs lists the locations to try for source, most likely first
func CandidateURLs(source string) []string {
	var candidates []string
	base := strings.TrimRight(strings.SplitN(source, "#", 2)[0], "/")

	if strings.Contains(source, "docs") || strings.Contains(source, "redoc") {
		jsonURL := strings.NewReplacer("/redoc", "/openapi.json", "/docs", "/openapi.json").Replace(base)
		candidates = append(candidates, jsonURL)
	}
	candidates = append(candidates, source)

	domain := strings.SplitN(strings.SplitN(source, "/docs", 2)[0], "/redoc", 2)[0]
	if domain != source {
		domain = strings.TrimRight(domain, "/")
		candidates = append(candidates,
			domain+"/api/openapi.json",
			domain+"/api/v1/openapi.json",
			domain+"/v1/openapi.json",
		)
	}

	if u, err := url.Parse(base); err == nil && (u.Path == "" || u.Path == "/") {
		for _, suffix := range []string{
			"/openapi.json",
			"/swagger/v1/swagger.json",
			"/swagger.json",
			"/v1/swagger.json",
			"/api/swagger.json",
			"/api/v1/swagger.json",
		} {
			candidates = append(candidates, base+suffix)
		}
	}

	seen := map[string]bool{}
	out := candidates[:0]
	for _, c := range candidates {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// LoadDocument parses an OpenAPI 3 or Swagger 2 description in JSON or YAML
func LoadDocument(data []byte) (*openapi3.T, error) {
	var header struct {
		Swagger string `yaml:"swagger"`
		OpenAPI string `yaml:"openapi"`
	}
	if err := yaml.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("failed to parse API description: %w", err)
	}

	loader := openapi3.NewLoader()

	if strings.HasPrefix(header.Swagger, "2") {
		raw, err := toJSON(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Swagger 2 description: %w", err)
		}
		var doc2 openapi2.T
		if err := json.Unmarshal(raw, &doc2); err != nil {
			return nil, fmt.Errorf("failed to parse Swagger 2 description: %w", err)
		}
		doc, err := openapi2conv.ToV3(&doc2)
		if err != nil {
			return nil, fmt.Errorf("failed to convert Swagger 2 description: %w", err)
		}
		if err := loader.ResolveRefsIn(doc, nil); err != nil {
			return nil, fmt.Errorf("failed to resolve references: %w", err)
		}
		return doc, nil
	}

	if header.OpenAPI == "" {
		return nil, fmt.Errorf("document declares neither openapi nor swagger version")
	}

	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI doc: %w", err)
	}
	return doc, nil
}

// toJSON converts a YAML description to JSON, leaving JSON input untouched
func toJSON(data []byte) ([]byte, error) {
	if json.Valid(data) {
		return data, nil
	}
	var generic interface{}
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return json.Marshal(stringKeys(generic))
}

// stringKeys rewrites YAML maps with non-string keys, such as status codes, for JSON encoding
func stringKeys(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, item := range val {
			val[k] = stringKeys(item)
		}
		return val
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = stringKeys(item)
		}
		return out
	case []interface{}:
		for i, item := range val {
			val[i] = stringKeys(item)
		}
		return val
	}
	return v
}

// NewDocument wraps a loaded description with its endpoints, schema registry and target base URL
func NewDocument(source string, doc *openapi3.T) *Document {
	d := &Document{
		Source:    source,
		Endpoints: ExtractEndpoints(doc),
		Schemas:   openapi3.Schemas{},
		Raw:       doc,
	}
	if doc.Components != nil && doc.Components.Schemas != nil {
		d.Schemas = doc.Components.Schemas
	}
	d.BaseURL = DetectBaseURL(doc, source)
	return d
}

// DetectBaseURL prefers an absolute first server URL and falls back to the origin of source
func DetectBaseURL(doc *openapi3.T, source string) string {
	if len(doc.Servers) > 0 && doc.Servers[0] != nil && isHTTP(doc.Servers[0].URL) {
		return strings.TrimRight(doc.Servers[0].URL, "/")
	}
	u, err := url.Parse(source)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// ExtractEndpoints flattens the path items of doc into endpoints, ordered
// authentication first, then creates, reads, updates and deletes.
func ExtractEndpoints(doc *openapi3.T) []types.Endpoint {
	var endpoints []types.Endpoint
	if doc == nil || doc.Paths == nil {
		return endpoints
	}

	pathMap := doc.Paths.Map()
	paths := make([]string, 0, len(pathMap))
	for path := range pathMap {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		pathItem := pathMap[path]
		if pathItem == nil {
			continue
		}
		for _, method := range methods {
			operation := pathItem.GetOperation(method)
			if operation == nil {
				continue
			}
			endpoints = append(endpoints, buildEndpoint(path, method, pathItem, operation))
		}
	}

	sort.SliceStable(endpoints, func(i, j int) bool {
		return workflowRank(endpoints[i]) < workflowRank(endpoints[j])
	})
	return endpoints
}

func buildEndpoint(path, method string, pathItem *openapi3.PathItem, operation *openapi3.Operation) types.Endpoint {
	endpoint := types.Endpoint{
		Path:        path,
		Method:      method,
		OperationID: operation.OperationID,
		Summary:     operation.Summary,
		Tags:        operation.Tags,
		Parameters:  make([]types.Parameter, 0),
		Responses:   make(map[int]types.Response),
	}

	// operation parameters override path-level ones with the same name and location
	seen := map[string]bool{}
	for _, params := range []openapi3.Parameters{operation.Parameters, pathItem.Parameters} {
		for _, param := range params {
			if param == nil || param.Value == nil {
				continue
			}
			key := param.Value.In + ":" + param.Value.Name
			if seen[key] {
				continue
			}
			seen[key] = true
			endpoint.Parameters = append(endpoint.Parameters, types.Parameter{
				Name:     param.Value.Name,
				In:       param.Value.In,
				Required: param.Value.Required,
				Schema:   param.Value.Schema,
			})
		}
	}

	if operation.RequestBody != nil && operation.RequestBody.Value != nil {
		contentType, media := pickContent(operation.RequestBody.Value.Content)
		if media != nil && media.Schema != nil {
			endpoint.RequestBody = media.Schema
			endpoint.RequestBodyContentType = contentType
		}
	}

	if operation.Responses != nil {
		for statusCode, response := range operation.Responses.Map() {
			code, err := strconv.Atoi(statusCode)
			if err != nil || response == nil || response.Value == nil {
				continue
			}

			description := ""
			if response.Value.Description != nil {
				description = *response.Value.Description
			}

			var schema *openapi3.SchemaRef
			if _, media := pickContent(response.Value.Content); media != nil {
				schema = media.Schema
			}

			endpoint.Responses[code] = types.Response{
				Description: description,
				Schema:      schema,
			}
		}
	}

	return endpoint
}

// pickContent prefers application/json, then any JSON media type, then the first in name order
func pickContent(content openapi3.Content) (string, *openapi3.MediaType) {
	if len(content) == 0 {
		return "", nil
	}
	if media, ok := content["application/json"]; ok {
		return "application/json", media
	}
	names := make([]string, 0, len(content))
	for name := range content {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if strings.Contains(name, "json") {
			return name, content[name]
		}
	}
	return names[0], content[names[0]]
}

func workflowRank(e types.Endpoint) int {
	path := strings.ToLower(e.Path)
	switch {
	case strings.Contains(path, "auth") || strings.Contains(path, "login"):
		return 1
	case e.Method == http.MethodPost:
		return 2
	case e.Method == http.MethodGet:
		return 3
	case e.Method == http.MethodPut || e.Method == http.MethodPatch:
		return 4
	case e.Method == http.MethodDelete:
		return 5
	}
	return 10
}

func isHTTP(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
