package types

import (
	"encoding/json"
	"strings"
	"time"
)

// ExecutionResult is the outcome of one dispatched request
type ExecutionResult struct {
	Endpoint     string        `json:"endpoint"`
	Method       string        `json:"method"`
	ResolvedPath string        `json:"resolved_path,omitempty"`
	Status       int           `json:"status"`
	Elapsed      time.Duration `json:"elapsed"`
	Passed       bool          `json:"passed"`
	RequestBody  interface{}   `json:"request_body,omitempty"`
	Response     interface{}   `json:"response,omitempty"`
	Error        string        `json:"error,omitempty"`

	// Healed marks a result that passed only after an auto-fix retry
	Healed bool `json:"healed,omitempty"`
}

// Outcome is the reporting category of a result
type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomeWarning Outcome = "warning"
)

// IsRealError reports whether a failed result points at a defect rather than missing upstream data.
// 404s and "not found" bodies or errors are soft warnings.
func (r ExecutionResult) IsRealError() bool {
	if r.Passed {
		return false
	}
	if r.Status == 404 {
		return false
	}
	var responseText string
	if raw, err := json.Marshal(r.Response); err == nil {
		responseText = strings.ToLower(string(raw))
	}
	if strings.Contains(responseText, "not found") || strings.Contains(strings.ToLower(r.Error), "not found") {
		return false
	}
	return true
}

// Outcome classifies the result as passed, failed or warning
func (r ExecutionResult) Outcome() Outcome {
	switch {
	case r.Passed:
		return OutcomePassed
	case r.IsRealError():
		return OutcomeFailed
	default:
		return OutcomeWarning
	}
}

// DiagnosisKind classifies a failure
type DiagnosisKind string

const (
	InputIssue DiagnosisKind = "INPUT_ISSUE"
	APIIssue   DiagnosisKind = "API_ISSUE"
)

// DiagnosisVerdict is the diagnosis service's view of a failed step
type DiagnosisVerdict struct {
	Kind         DiagnosisKind `json:"diagnosis"`
	Explanation  string        `json:"explanation"`
	SuggestedFix interface{}   `json:"suggested_fix,omitempty"`
}

// Correctable reports whether the verdict carries a replacement body worth retrying with
func (v DiagnosisVerdict) Correctable() bool {
	if v.Kind != InputIssue || v.SuggestedFix == nil {
		return false
	}
	if m, ok := v.SuggestedFix.(map[string]interface{}); ok && len(m) == 0 {
		return false
	}
	return true
}

// DiagnosisRequest is what the diagnosis service gets to look at
type DiagnosisRequest struct {
	Endpoint    Endpoint    `json:"endpoint"`
	RequestBody interface{} `json:"request_body"`
	Response    interface{} `json:"response"`
}

// ExecutionRequest asks the execution service to dispatch one resolved endpoint
type ExecutionRequest struct {
	BaseURL  string                 `json:"base_url"`
	Endpoint Endpoint               `json:"endpoint"`
	Body     interface{}            `json:"body,omitempty"`
	Context  Context                `json:"variables,omitempty"`
	Query    map[string]interface{} `json:"query,omitempty"`
	Headers  map[string]string      `json:"headers,omitempty"`
}
