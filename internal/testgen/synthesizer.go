package testgen

import (
	"math/rand"
	"sort"
	"strings"
	"time"

	"auto-api-healer/internal/types"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/uuid"
)

// MaxDepth caps recursion on self-referencing schemas
const MaxDepth = 5

// Synthesizer turns request schemas into representative values
type Synthesizer struct {
	registry openapi3.Schemas
	rules    []Rule
	rnd      *rand.Rand
	now      func() time.Time
}

// SynthesizerOption customises a Synthesizer
type SynthesizerOption func(*Synthesizer)

// WithRules replaces the field-name heuristics
func WithRules(rules []Rule) SynthesizerOption {
	return func(s *Synthesizer) { s.rules = rules }
}

// WithSeed makes generated values reproducible
func WithSeed(seed int64) SynthesizerOption {
	return func(s *Synthesizer) { s.rnd = rand.New(rand.NewSource(seed)) }
}

// WithClock fixes the time used for date formats
func WithClock(now func() time.Time) SynthesizerOption {
	return func(s *Synthesizer) { s.now = now }
}

// NewSynthesizer creates a synthesizer resolving $ref names against registry
func NewSynthesizer(registry openapi3.Schemas, opts ...SynthesizerOption) *Synthesizer {
	s := &Synthesizer{
		registry: registry,
		rules:    DefaultRules(),
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Body synthesizes a request body for an endpoint, nil when it declares none
func (s *Synthesizer) Body(ep types.Endpoint, hints types.Context) interface{} {
	if ep.RequestBody == nil {
		return nil
	}
	return s.Synthesize(ep.RequestBody, hints, "", 0)
}

// Synthesize builds a value for schema. Identifier fields and fields already known in hints
// become {{name}} tokens that are bound at request time.
func (s *Synthesizer) Synthesize(ref *openapi3.SchemaRef, hints types.Context, fieldName string, depth int) interface{} {
	if ref == nil || depth > MaxDepth {
		return map[string]interface{}{}
	}

	if ref.Ref != "" {
		name := ref.Ref[strings.LastIndex(ref.Ref, "/")+1:]
		resolved, ok := s.registry[name]
		if !ok || resolved == nil {
			return "<REF:" + name + ">"
		}
		if resolved.Ref == ref.Ref {
			resolved = &openapi3.SchemaRef{Value: resolved.Value}
		}
		return s.Synthesize(resolved, hints, fieldName, depth+1)
	}

	schema := ref.Value
	if schema == nil {
		return map[string]interface{}{}
	}

	if fieldName != "" {
		if key, ok := matchHint(hints, fieldName); ok {
			return "{{" + key + "}}"
		}
		if isIdentifierField(fieldName) {
			return "{{" + fieldName + "}}"
		}
	}

	if schema.Example != nil {
		return schema.Example
	}
	if schema.Default != nil {
		return schema.Default
	}

	if len(schema.AllOf) > 0 {
		merged := map[string]interface{}{}
		for _, sub := range schema.AllOf {
			if obj, ok := s.Synthesize(sub, hints, fieldName, depth+1).(map[string]interface{}); ok {
				for k, v := range obj {
					merged[k] = v
				}
			}
		}
		return merged
	}

	if len(schema.AnyOf) > 0 {
		return s.Synthesize(schema.AnyOf[0], hints, fieldName, depth+1)
	}
	if len(schema.OneOf) > 0 {
		return s.Synthesize(schema.OneOf[0], hints, fieldName, depth+1)
	}

	if len(schema.Properties) > 0 {
		obj := make(map[string]interface{}, len(schema.Properties))
		for key, prop := range schema.Properties {
			obj[key] = s.Synthesize(prop, hints, key, depth+1)
		}
		return obj
	}

	if schema.Items != nil {
		return []interface{}{s.Synthesize(schema.Items, hints, fieldName, depth+1)}
	}

	return s.primitive(schema, fieldName)
}

// primitive dispatches on the declared type
func (s *Synthesizer) primitive(schema *openapi3.Schema, fieldName string) interface{} {
	switch schemaType(schema) {
	case "string":
		return s.stringValue(schema, fieldName)
	case "integer", "number":
		if v, ok := Apply(s.rules, KindNumber, fieldName, s.rnd); ok {
			return v
		}
		return 0
	case "boolean":
		return true
	}
	return map[string]interface{}{}
}

// stringValue generates a format-aware string
func (s *Synthesizer) stringValue(schema *openapi3.Schema, fieldName string) interface{} {
	switch schema.Format {
	case "date-time":
		return s.now().UTC().Format("2006-01-02T15:04:05.000Z")
	case "date":
		return s.now().UTC().Format("2006-01-02")
	}
	if len(schema.Enum) > 0 {
		return schema.Enum[0]
	}
	switch schema.Format {
	case "uuid":
		return uuid.New().String()
	case "email":
		if v, ok := Apply(s.rules, KindString, "email", s.rnd); ok {
			return v
		}
	case "uri", "url":
		return "https://example.com"
	case "ipv4":
		return "192.168.1.1"
	case "ipv6":
		return "2001:db8::1"
	}
	if v, ok := Apply(s.rules, KindString, fieldName, s.rnd); ok {
		return v
	}
	return "string"
}

// matchHint finds a context variable named like field, exact match first
func matchHint(hints types.Context, field string) (string, bool) {
	if _, ok := hints[field]; ok {
		return field, true
	}
	lower := strings.ToLower(field)
	if _, ok := hints[lower]; ok {
		return lower, true
	}
	keys := make([]string, 0, len(hints))
	for key := range hints {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if strings.ToLower(key) == lower {
			return key, true
		}
	}
	return "", false
}

// isIdentifierField reports whether field names an identifier such as id, user_id or userId
func isIdentifierField(field string) bool {
	return strings.HasSuffix(strings.ToLower(field), "id")
}

func schemaType(schema *openapi3.Schema) string {
	if schema.Type == nil || len(*schema.Type) == 0 {
		return ""
	}
	return strings.ToLower((*schema.Type)[0])
}
