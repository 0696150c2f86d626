package testgen

import (
	"regexp"
	"testing"
	"time"

	"auto-api-healer/internal/types"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func typed(t string) *openapi3.Schema {
	return &openapi3.Schema{Type: &openapi3.Types{t}}
}

func ref(s *openapi3.Schema) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: s}
}

func object(props map[string]*openapi3.Schema) *openapi3.Schema {
	s := typed("object")
	s.Properties = openapi3.Schemas{}
	for name, prop := range props {
		s.Properties[name] = ref(prop)
	}
	return s
}

func TestSynthesizeEmailAndAge(t *testing.T) {
	s := NewSynthesizer(nil, WithSeed(1))
	schema := object(map[string]*openapi3.Schema{
		"email": typed("string"),
		"age":   typed("integer"),
	})

	for i := 0; i < 50; i++ {
		got, ok := s.Synthesize(ref(schema), nil, "", 0).(map[string]interface{})
		require.True(t, ok)

		assert.Regexp(t, regexp.MustCompile(`^email\d{1,3}@example\.com$`), got["email"])
		age, ok := got["age"].(int)
		require.True(t, ok, "age should be an integer, got %T", got["age"])
		assert.GreaterOrEqual(t, age, 18)
		assert.LessOrEqual(t, age, 67)
	}
}

func TestSynthesizePrecedence(t *testing.T) {
	s := NewSynthesizer(nil, WithSeed(1))

	withExample := typed("string")
	withExample.Example = "example-value"
	withDefault := typed("integer")
	withDefault.Default = 7

	tests := []struct {
		name   string
		schema *openapi3.Schema
		field  string
		hints  types.Context
		want   interface{}
	}{
		{name: "known context variable", schema: withExample, field: "token", hints: types.Context{"token": "abc"}, want: "{{token}}"},
		{name: "case-insensitive context variable", schema: typed("string"), field: "Token", hints: types.Context{"token": "abc"}, want: "{{token}}"},
		{name: "identifier field without context", schema: withExample, field: "driver_id", want: "{{driver_id}}"},
		{name: "camel identifier field", schema: typed("integer"), field: "userId", want: "{{userId}}"},
		{name: "example", schema: withExample, field: "label", want: "example-value"},
		{name: "default", schema: withDefault, field: "size", want: 7},
		{name: "plain string", schema: typed("string"), field: "label", want: "string"},
		{name: "plain number", schema: typed("number"), field: "price", want: 0},
		{name: "boolean", schema: typed("boolean"), field: "active", want: true},
		{name: "unknown shape", schema: &openapi3.Schema{}, field: "blob", want: map[string]interface{}{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Synthesize(ref(tt.schema), tt.hints, tt.field, 0))
		})
	}
}

func TestSynthesizeComposition(t *testing.T) {
	s := NewSynthesizer(nil, WithSeed(1))

	allOf := &openapi3.Schema{AllOf: openapi3.SchemaRefs{
		ref(object(map[string]*openapi3.Schema{"label": typed("string")})),
		ref(object(map[string]*openapi3.Schema{"active": typed("boolean")})),
	}}
	assert.Equal(t, map[string]interface{}{"label": "string", "active": true}, s.Synthesize(ref(allOf), nil, "", 0))

	oneOf := &openapi3.Schema{OneOf: openapi3.SchemaRefs{ref(typed("boolean")), ref(typed("string"))}}
	assert.Equal(t, true, s.Synthesize(ref(oneOf), nil, "", 0))

	anyOf := &openapi3.Schema{AnyOf: openapi3.SchemaRefs{ref(typed("string"))}}
	assert.Equal(t, "string", s.Synthesize(ref(anyOf), nil, "label", 0))

	array := typed("array")
	array.Items = ref(typed("boolean"))
	assert.Equal(t, []interface{}{true}, s.Synthesize(ref(array), nil, "flags", 0))
}

func TestSynthesizeRefs(t *testing.T) {
	user := object(map[string]*openapi3.Schema{"label": typed("string")})
	s := NewSynthesizer(openapi3.Schemas{"User": ref(user)}, WithSeed(1))

	got := s.Synthesize(&openapi3.SchemaRef{Ref: "#/components/schemas/User"}, nil, "", 0)
	assert.Equal(t, map[string]interface{}{"label": "string"}, got)

	missing := s.Synthesize(&openapi3.SchemaRef{Ref: "#/components/schemas/Ghost"}, nil, "", 0)
	assert.Equal(t, "<REF:Ghost>", missing)
}

func TestSynthesizeRecursiveSchemaTerminates(t *testing.T) {
	node := typed("object")
	node.Properties = openapi3.Schemas{"child": &openapi3.SchemaRef{Ref: "#/components/schemas/Node"}}
	s := NewSynthesizer(openapi3.Schemas{"Node": ref(node)}, WithSeed(1))

	got := s.Synthesize(&openapi3.SchemaRef{Ref: "#/components/schemas/Node"}, nil, "", 0)

	depth := 0
	for {
		obj, ok := got.(map[string]interface{})
		if !ok || len(obj) == 0 {
			break
		}
		got = obj["child"]
		depth++
	}
	assert.LessOrEqual(t, depth, MaxDepth)
}

func TestSynthesizeStringFormats(t *testing.T) {
	fixed := time.Date(2024, 3, 9, 10, 11, 12, 0, time.UTC)
	s := NewSynthesizer(nil, WithSeed(1), WithClock(func() time.Time { return fixed }))

	withFormat := func(format string) *openapi3.SchemaRef {
		schema := typed("string")
		schema.Format = format
		return ref(schema)
	}
	enum := typed("string")
	enum.Enum = []interface{}{"economy", "premium"}

	assert.Equal(t, "2024-03-09T10:11:12.000Z", s.Synthesize(withFormat("date-time"), nil, "created", 0))
	assert.Equal(t, "2024-03-09", s.Synthesize(withFormat("date"), nil, "born", 0))
	assert.Equal(t, "economy", s.Synthesize(ref(enum), nil, "tier", 0))
	assert.Regexp(t, `^[0-9a-f-]{36}$`, s.Synthesize(withFormat("uuid"), nil, "token", 0))
	assert.Equal(t, "https://example.com", s.Synthesize(withFormat("uri"), nil, "homepage", 0))
	assert.Regexp(t, `^[789]\d{9}$`, s.Synthesize(ref(typed("string")), nil, "phone_number", 0))
	assert.Regexp(t, `^first_name \d+$`, s.Synthesize(ref(typed("string")), nil, "first_name", 0))
}

func TestSynthesizeBody(t *testing.T) {
	s := NewSynthesizer(nil, WithSeed(1))
	assert.Nil(t, s.Body(types.Endpoint{Method: "GET", Path: "/users"}, nil))

	ep := types.Endpoint{
		Method:      "POST",
		Path:        "/trips",
		RequestBody: ref(object(map[string]*openapi3.Schema{"driver_id": typed("string")})),
	}
	assert.Equal(t, map[string]interface{}{"driver_id": "{{driver_id}}"}, s.Body(ep, nil))
}
