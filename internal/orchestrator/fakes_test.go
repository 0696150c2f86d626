package orchestrator

import (
	"context"
	"strings"
	"sync"
	"testing"

	"auto-api-healer/internal/testgen"
	"auto-api-healer/internal/types"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/require"
)

type route func(req types.ExecutionRequest) (*types.ExecutionResult, error)

// fakeExecutor answers "METHOD /resolved/path" keys and records every request
type fakeExecutor struct {
	mu     sync.Mutex
	routes map[string]route
	calls  []types.ExecutionRequest
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{routes: map[string]route{}}
}

func (f *fakeExecutor) on(method, path string, r route) *fakeExecutor {
	f.routes[strings.ToUpper(method)+" "+path] = r
	return f
}

func (f *fakeExecutor) respond(method, path string, status int, response interface{}) *fakeExecutor {
	return f.on(method, path, func(types.ExecutionRequest) (*types.ExecutionResult, error) {
		return &types.ExecutionResult{Status: status, Passed: status < 400, Response: response}, nil
	})
}

func (f *fakeExecutor) Execute(_ context.Context, req types.ExecutionRequest) (*types.ExecutionResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	r, ok := f.routes[strings.ToUpper(req.Endpoint.Method)+" "+req.Endpoint.Path]
	f.mu.Unlock()

	if !ok {
		return &types.ExecutionResult{Status: 404, Response: map[string]interface{}{"detail": "Not Found"}}, nil
	}
	return r(req)
}

func (f *fakeExecutor) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = strings.ToUpper(c.Endpoint.Method) + " " + c.Endpoint.Path
	}
	return out
}

func (f *fakeExecutor) count(method, path string) int {
	n := 0
	for _, p := range f.paths() {
		if p == strings.ToUpper(method)+" "+path {
			n++
		}
	}
	return n
}

// fakeDiagnoser returns verdicts in order, repeating the last one
type fakeDiagnoser struct {
	mu       sync.Mutex
	verdicts []*types.DiagnosisVerdict
	err      error
	hook     func()
	requests []types.DiagnosisRequest
}

func (f *fakeDiagnoser) Diagnose(_ context.Context, req types.DiagnosisRequest) (*types.DiagnosisVerdict, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.hook != nil {
		f.hook()
	}
	if f.err != nil {
		return nil, f.err
	}
	if len(f.verdicts) == 0 {
		return nil, nil
	}
	i := len(f.requests) - 1
	if i >= len(f.verdicts) {
		i = len(f.verdicts) - 1
	}
	return f.verdicts[i], nil
}

func newOrchestrator(t *testing.T, exec Executor, diag Diagnoser, endpoints []types.Endpoint, mutate ...func(*Options)) *Orchestrator {
	t.Helper()
	opts := Options{
		BaseURL:      "http://api.test",
		Endpoints:    endpoints,
		Executor:     exec,
		Diagnoser:    diag,
		Synthesizer:  testgen.NewSynthesizer(nil, testgen.WithSeed(1)),
		HealingPause: -1,
	}
	for _, m := range mutate {
		m(&opts)
	}
	o, err := New(opts)
	require.NoError(t, err)
	return o
}

func get(path string) types.Endpoint {
	return types.Endpoint{Method: "GET", Path: path}
}

func objectBody(props ...string) *openapi3.SchemaRef {
	schema := &openapi3.Schema{Type: &openapi3.Types{"object"}, Properties: openapi3.Schemas{}}
	for _, p := range props {
		schema.Properties[p] = &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}
	}
	return &openapi3.SchemaRef{Value: schema}
}
