package types

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

var pathParamPattern = regexp.MustCompile(`\{([^}]+)\}`)

// Endpoint represents an API operation loaded from the schema service
type Endpoint struct {
	Method      string      `json:"method"`
	Path        string      `json:"path"`
	OperationID string      `json:"operation_id,omitempty"`
	Summary     string      `json:"summary,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	Parameters  []Parameter `json:"parameters,omitempty"`

	// RequestBody is the JSON request body schema, nil when the operation takes none
	RequestBody            *openapi3.SchemaRef `json:"request_body,omitempty"`
	RequestBodyContentType string              `json:"request_body_content_type,omitempty"`
	Responses              map[int]Response    `json:"responses,omitempty"`
}

// Parameter represents an API parameter
type Parameter struct {
	Name     string              `json:"name"`
	In       string              `json:"in"`
	Required bool                `json:"required,omitempty"`
	Schema   *openapi3.SchemaRef `json:"schema,omitempty"`
}

// Response represents an API response
type Response struct {
	Description string              `json:"description,omitempty"`
	Schema      *openapi3.SchemaRef `json:"schema,omitempty"`
}

// ID returns the operation id, falling back to METHOD_path
func (e Endpoint) ID() string {
	if e.OperationID != "" {
		return e.OperationID
	}
	return fmt.Sprintf("%s_%s", strings.ToUpper(e.Method), e.Path)
}

// PathParams returns the placeholder names of the path in order of appearance
func (e Endpoint) PathParams() []string {
	return PlaceholderNames(e.Path)
}

// HasPathParams reports whether the path still carries a {param} placeholder
func (e Endpoint) HasPathParams() bool {
	return strings.Contains(e.Path, "{")
}

// IsReadOnly reports whether the endpoint is a GET without path placeholders
func (e Endpoint) IsReadOnly() bool {
	return strings.EqualFold(e.Method, "GET") && !e.HasPathParams()
}

// HasBody reports whether the method carries a request body on the wire
func (e Endpoint) HasBody() bool {
	switch strings.ToUpper(e.Method) {
	case "POST", "PUT", "PATCH":
		return true
	}
	return false
}

// IsUpload reports whether the endpoint deals with files
func (e Endpoint) IsUpload() bool {
	path := strings.ToLower(e.Path)
	if strings.Contains(path, "upload") || strings.Contains(path, "image") || strings.Contains(path, "file") {
		return true
	}
	for _, p := range e.Parameters {
		if isFileSchema(p.Schema) {
			return true
		}
	}
	if strings.HasPrefix(e.RequestBodyContentType, "multipart/") && e.RequestBody != nil && e.RequestBody.Value != nil {
		for _, prop := range e.RequestBody.Value.Properties {
			if isFileSchema(prop) {
				return true
			}
		}
	}
	return false
}

// Category returns the first tag, or "General" when the endpoint is untagged
func (e Endpoint) Category() string {
	if len(e.Tags) == 0 || e.Tags[0] == "" {
		return "General"
	}
	return e.Tags[0]
}

// IsFileField reports whether the request body property name carries file content
func (e Endpoint) IsFileField(name string) bool {
	if e.RequestBody == nil || e.RequestBody.Value == nil {
		return false
	}
	return isFileSchema(e.RequestBody.Value.Properties[name])
}

func isFileSchema(ref *openapi3.SchemaRef) bool {
	if ref == nil || ref.Value == nil {
		return false
	}
	if ref.Value.Format == "binary" {
		return true
	}
	return ref.Value.Type != nil && len(*ref.Value.Type) > 0 && (*ref.Value.Type)[0] == "file"
}

// PlaceholderNames returns the names inside {name} placeholders of a templated path
func PlaceholderNames(path string) []string {
	matches := pathParamPattern.FindAllStringSubmatch(path, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

// EndpointTestData represents test data for a specific endpoint
type EndpointTestData struct {
	PathParams  map[string]interface{} `json:"path_params,omitempty"`
	QueryParams map[string]interface{} `json:"query_params,omitempty"`
	Body        interface{}            `json:"body,omitempty"`
	Headers     map[string]string      `json:"headers,omitempty"`
}

// TestDataDocument is the global test data keyed by operation id, path or "METHOD path"
type TestDataDocument map[string]EndpointTestData

// Lookup returns the entry for an endpoint, trying operation id, path and "METHOD path"
func (d TestDataDocument) Lookup(ep Endpoint) (EndpointTestData, bool) {
	for _, key := range []string{ep.ID(), ep.Path, fmt.Sprintf("%s %s", strings.ToUpper(ep.Method), ep.Path)} {
		if entry, ok := d[key]; ok {
			return entry, true
		}
	}
	return EndpointTestData{}, false
}
