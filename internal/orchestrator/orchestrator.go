package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"auto-api-healer/internal/metrics"
	"auto-api-healer/internal/testgen"
	"auto-api-healer/internal/types"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// MaxHealingAttempts bounds the retries a single step may make with a suggested body
	MaxHealingAttempts = 1

	// DefaultHealingPause keeps a diagnosis visible before the fix is applied
	DefaultHealingPause = 1500 * time.Millisecond

	// DefaultPacing spaces consecutive steps of a suite
	DefaultPacing = 100 * time.Millisecond
)

// ErrMissingBaseURL is returned when a suite is started without a target
var ErrMissingBaseURL = errors.New("target base URL is not configured")

// Executor dispatches one resolved endpoint
type Executor interface {
	Execute(ctx context.Context, req types.ExecutionRequest) (*types.ExecutionResult, error)
}

// Diagnoser classifies a failed step and may propose a corrected body
type Diagnoser interface {
	Diagnose(ctx context.Context, req types.DiagnosisRequest) (*types.DiagnosisVerdict, error)
}

// State is the position of a step in its lifecycle
type State string

const (
	StatePending             State = "PENDING"
	StateResolvingContext    State = "RESOLVING_CONTEXT"
	StateDispatching         State = "DISPATCHING"
	StatePassed              State = "PASSED"
	StateFailedNoKey         State = "FAILED_NO_KEY"
	StateFailedWithDiagnosis State = "FAILED_WITH_DIAGNOSIS"
	StateHealingRetry        State = "HEALING_RETRY"
)

// Options configures an Orchestrator
type Options struct {
	BaseURL string

	// Endpoints is the catalogue producers are searched in
	Endpoints []types.Endpoint

	Executor Executor

	// Diagnoser is optional; without one failed steps end in FAILED_NO_KEY
	Diagnoser Diagnoser

	Synthesizer  *testgen.Synthesizer
	TestData     types.TestDataDocument
	ManualBodies map[string]string

	// Headers are sent with every step and probe
	Headers map[string]string

	// HealingPause defaults to DefaultHealingPause; a negative value disables it
	HealingPause time.Duration
	Pacing       time.Duration

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Orchestrator owns the result table, the diagnosis table and the manual
// bodies of one session, and drives steps and suites against them.
type Orchestrator struct {
	baseURL      string
	endpoints    []types.Endpoint
	executor     Executor
	diagnoser    Diagnoser
	synthesizer  *testgen.Synthesizer
	headers      map[string]string
	healingPause time.Duration
	limiter      *rate.Limiter
	logger       *zap.Logger
	metrics      *metrics.Metrics

	mu           sync.Mutex
	testData     types.TestDataDocument
	results      []types.ExecutionResult
	diagnoses    map[string]types.DiagnosisVerdict
	manualBodies map[string]string
	states       map[string]State
}

// New creates an orchestrator
func New(opts Options) (*Orchestrator, error) {
	if opts.Executor == nil {
		return nil, errors.New("orchestrator requires an executor")
	}

	pause := opts.HealingPause
	if pause == 0 {
		pause = DefaultHealingPause
	}

	limit := rate.Inf
	if opts.Pacing > 0 {
		limit = rate.Every(opts.Pacing)
	}

	synth := opts.Synthesizer
	if synth == nil {
		synth = testgen.NewSynthesizer(nil)
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	manual := make(map[string]string, len(opts.ManualBodies))
	for k, v := range opts.ManualBodies {
		manual[k] = v
	}

	return &Orchestrator{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		endpoints:    opts.Endpoints,
		executor:     opts.Executor,
		diagnoser:    opts.Diagnoser,
		synthesizer:  synth,
		testData:     opts.TestData,
		headers:      opts.Headers,
		healingPause: pause,
		limiter:      rate.NewLimiter(limit, 1),
		logger:       log,
		metrics:      opts.Metrics,
		diagnoses:    make(map[string]types.DiagnosisVerdict),
		manualBodies: manual,
		states:       make(map[string]State),
	}, nil
}

// BaseURL returns the target deployment
func (o *Orchestrator) BaseURL() string {
	return o.baseURL
}

// Endpoints returns the catalogue
func (o *Orchestrator) Endpoints() []types.Endpoint {
	return o.endpoints
}

// Results returns a copy of the result table, one entry per (path, method)
func (o *Orchestrator) Results() []types.ExecutionResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]types.ExecutionResult, len(o.results))
	copy(out, o.results)
	return out
}

// Result returns the stored result for a path and method
func (o *Orchestrator) Result(path, method string) (types.ExecutionResult, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, r := range o.results {
		if r.Endpoint == path && strings.EqualFold(r.Method, method) {
			return r, true
		}
	}
	return types.ExecutionResult{}, false
}

// Diagnosis returns the current verdict for an operation id
func (o *Orchestrator) Diagnosis(opID string) (types.DiagnosisVerdict, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	v, ok := o.diagnoses[opID]
	return v, ok
}

// Diagnoses returns a copy of the diagnosis table
func (o *Orchestrator) Diagnoses() map[string]types.DiagnosisVerdict {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]types.DiagnosisVerdict, len(o.diagnoses))
	for k, v := range o.diagnoses {
		out[k] = v
	}
	return out
}

// ManualBody returns the user-edited body for an operation id
func (o *Orchestrator) ManualBody(opID string) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	body, ok := o.manualBodies[opID]
	return body, ok
}

// ManualBodies returns a copy of the user-edited bodies
func (o *Orchestrator) ManualBodies() map[string]string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]string, len(o.manualBodies))
	for k, v := range o.manualBodies {
		out[k] = v
	}
	return out
}

// SetTestData merges doc into the test data document. Entries of doc replace
// existing entries under the same key.
func (o *Orchestrator) SetTestData(doc types.TestDataDocument) {
	o.mu.Lock()
	defer o.mu.Unlock()
	merged := make(types.TestDataDocument, len(o.testData)+len(doc))
	for key, entry := range o.testData {
		merged[key] = entry
	}
	for key, entry := range doc {
		merged[key] = entry
	}
	o.testData = merged
}

func (o *Orchestrator) testEntry(ep types.Endpoint) (types.EndpointTestData, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.testData.Lookup(ep)
}

// SetManualBody stores a user-edited body for an operation id
func (o *Orchestrator) SetManualBody(opID, body string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.manualBodies[opID] = body
}

// State returns the lifecycle state of the last step run for an operation id
func (o *Orchestrator) State(opID string) State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.states[opID]; ok {
		return s
	}
	return StatePending
}

func (o *Orchestrator) setState(opID string, s State) {
	o.mu.Lock()
	o.states[opID] = s
	o.mu.Unlock()
	o.logger.Debug("step state", zap.String("operation", opID), zap.String("state", string(s)))
}

// record stores a result, replacing any earlier one for the same path and method
func (o *Orchestrator) record(result types.ExecutionResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, r := range o.results {
		if r.Endpoint == result.Endpoint && strings.EqualFold(r.Method, result.Method) {
			o.results = append(o.results[:i], o.results[i+1:]...)
			break
		}
	}
	o.results = append(o.results, result)
}

// clearResults drops the stored results of endpoints
func (o *Orchestrator) clearResults(endpoints []types.Endpoint) {
	o.mu.Lock()
	defer o.mu.Unlock()
	kept := o.results[:0]
	for _, r := range o.results {
		drop := false
		for _, ep := range endpoints {
			if r.Endpoint == ep.Path && strings.EqualFold(r.Method, ep.Method) {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, r)
		}
	}
	o.results = kept
}

func (o *Orchestrator) setDiagnosis(opID string, v types.DiagnosisVerdict) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.diagnoses[opID] = v
}

func (o *Orchestrator) clearDiagnosis(opID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.diagnoses, opID)
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
