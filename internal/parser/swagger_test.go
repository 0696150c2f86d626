package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const openAPIDoc = `{
  "openapi": "3.0.3",
  "info": {"title": "Fleet", "version": "1.0"},
  "paths": {
    "/auth/login": {
      "post": {"operationId": "login", "responses": {"200": {"description": "ok"}}}
    },
    "/users": {
      "get": {"operationId": "listUsers", "tags": ["Users"], "responses": {"200": {"description": "ok"}}},
      "post": {
        "operationId": "createUser",
        "tags": ["Users"],
        "requestBody": {"content": {"application/json": {"schema": {"$ref": "#/components/schemas/User"}}}},
        "responses": {"201": {"description": "created"}, "default": {"description": "error"}}
      }
    },
    "/users/{id}": {
      "parameters": [{"name": "id", "in": "path", "required": true, "schema": {"type": "integer"}}],
      "get": {"operationId": "getUser", "responses": {"200": {"description": "ok", "content": {"application/json": {"schema": {"$ref": "#/components/schemas/User"}}}}}},
      "put": {"operationId": "updateUser", "responses": {"200": {"description": "ok"}}},
      "delete": {"operationId": "deleteUser", "responses": {"204": {"description": "gone"}}},
      "options": {"responses": {"200": {"description": "ok"}}}
    }
  },
  "components": {
    "schemas": {
      "User": {"type": "object", "properties": {"email": {"type": "string"}, "age": {"type": "integer"}}}
    }
  }
}`

func TestParseFromDocsURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openapi.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(openAPIDoc))
	}))
	defer server.Close()

	doc, err := NewSwaggerParser(nil).Parse(context.Background(), server.URL+"/docs")
	require.NoError(t, err)

	assert.Equal(t, server.URL+"/openapi.json", doc.Source)
	assert.Equal(t, server.URL, doc.BaseURL)
	assert.Contains(t, doc.Schemas, "User")

	var order []string
	for _, ep := range doc.Endpoints {
		order = append(order, ep.Method+" "+ep.Path)
	}
	assert.Equal(t, []string{
		"POST /auth/login",
		"POST /users",
		"GET /users",
		"GET /users/{id}",
		"PUT /users/{id}",
		"DELETE /users/{id}",
	}, order)

	create := doc.Endpoints[1]
	assert.Equal(t, "createUser", create.OperationID)
	assert.Equal(t, "application/json", create.RequestBodyContentType)
	require.NotNil(t, create.RequestBody)
	assert.Equal(t, "#/components/schemas/User", create.RequestBody.Ref)
	assert.Contains(t, create.Responses, 201)
	assert.Len(t, create.Responses, 1)

	get := doc.Endpoints[3]
	require.Len(t, get.Parameters, 1)
	assert.Equal(t, "id", get.Parameters[0].Name)
	assert.Equal(t, "path", get.Parameters[0].In)
	assert.True(t, get.Parameters[0].Required)
	assert.NotNil(t, get.Responses[200].Schema)
}

func TestParseFailsWhenNothingFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := NewSwaggerParser(nil).Parse(context.Background(), server.URL)
	assert.Error(t, err)
}

func TestParseLocalYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "openapi.yaml")
	content := `openapi: 3.0.0
info:
  title: Fleet
  version: "1.0"
servers:
  - url: https://fleet.example.com/api/
paths:
  /drivers:
    get:
      operationId: listDrivers
      responses:
        200:
          description: ok
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	doc, err := NewSwaggerParser(nil).Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "https://fleet.example.com/api", doc.BaseURL)
	require.Len(t, doc.Endpoints, 1)
	assert.Equal(t, "listDrivers", doc.Endpoints[0].OperationID)
}

func TestLoadSwagger2Document(t *testing.T) {
	swagger := `{
  "swagger": "2.0",
  "info": {"title": "Legacy", "version": "1.0"},
  "host": "legacy.example.com",
  "basePath": "/v1",
  "schemes": ["https"],
  "consumes": ["application/json"],
  "paths": {
    "/trips": {
      "post": {
        "operationId": "createTrip",
        "parameters": [{"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/Trip"}}],
        "responses": {"201": {"description": "created"}}
      }
    }
  },
  "definitions": {
    "Trip": {"type": "object", "properties": {"driver_id": {"type": "string"}}}
  }
}`

	doc, err := LoadDocument([]byte(swagger))
	require.NoError(t, err)

	parsed := NewDocument("https://legacy.example.com/swagger.json", doc)
	assert.Contains(t, parsed.Schemas, "Trip")
	require.Len(t, parsed.Endpoints, 1)
	assert.Equal(t, "POST", parsed.Endpoints[0].Method)
	require.NotNil(t, parsed.Endpoints[0].RequestBody)
	assert.Equal(t, "#/components/schemas/Trip", parsed.Endpoints[0].RequestBody.Ref)
}

func TestLoadDocumentRejectsUnknownFormat(t *testing.T) {
	_, err := LoadDocument([]byte(`{"hello": "world"}`))
	assert.Error(t, err)

	_, err = LoadDocument([]byte(`: not yaml :`))
	assert.Error(t, err)
}

func TestCandidateURLs(t *testing.T) {
	assert.Equal(t, []string{
		"http://h:8000/openapi.json",
		"http://h:8000/docs#/",
		"http://h:8000/api/openapi.json",
		"http://h:8000/api/v1/openapi.json",
		"http://h:8000/v1/openapi.json",
	}, CandidateURLs("http://h:8000/docs#/"))

	assert.Equal(t, []string{
		"http://h:8000/openapi.json",
		"http://h:8000/redoc",
		"http://h:8000/api/openapi.json",
		"http://h:8000/api/v1/openapi.json",
		"http://h:8000/v1/openapi.json",
	}, CandidateURLs("http://h:8000/redoc"))

	assert.Equal(t, []string{
		"http://h:8000",
		"http://h:8000/openapi.json",
		"http://h:8000/swagger/v1/swagger.json",
		"http://h:8000/swagger.json",
		"http://h:8000/v1/swagger.json",
		"http://h:8000/api/swagger.json",
		"http://h:8000/api/v1/swagger.json",
	}, CandidateURLs("http://h:8000"))

	assert.Equal(t, []string{"http://h/api/openapi.json"}, CandidateURLs("http://h/api/openapi.json"))
}
