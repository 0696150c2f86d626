package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"auto-api-healer/internal/types"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Report represents the test execution report
type Report struct {
	ID        string                            `json:"id"`
	Timestamp time.Time                         `json:"timestamp"`
	BaseURL   string                            `json:"base_url"`
	Summary   Summary                           `json:"summary"`
	Duration  time.Duration                     `json:"duration"`
	Results   []types.ExecutionResult           `json:"results"`
	Diagnoses map[string]types.DiagnosisVerdict `json:"diagnoses,omitempty"`
}

// Summary counts results per outcome
type Summary struct {
	Total    int `json:"total"`
	Passed   int `json:"passed"`
	Failed   int `json:"failed"`
	Warnings int `json:"warnings"`
	Healed   int `json:"healed"`
}

// Reporter handles the generation of test reports
type Reporter struct {
	config ReportingConfig
	out    io.Writer
	now    func() time.Time
}

// ReportingConfig holds the configuration for reporting
type ReportingConfig struct {
	Format    []string
	OutputDir string
}

// NewReporter creates a new instance of Reporter. Tables go to out, stdout when nil.
func NewReporter(config ReportingConfig, out io.Writer) *Reporter {
	if out == nil {
		out = os.Stdout
	}
	return &Reporter{
		config: config,
		out:    out,
		now:    time.Now,
	}
}

// NewReport builds a report and its summary from the recorded results
func NewReport(baseURL string, results []types.ExecutionResult, diagnoses map[string]types.DiagnosisVerdict, duration time.Duration) Report {
	report := Report{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		BaseURL:   baseURL,
		Duration:  duration,
		Results:   results,
		Diagnoses: diagnoses,
	}
	report.Summary = Summarize(results)
	return report
}

// Summarize counts passed, failed, warning and healed results
func Summarize(results []types.ExecutionResult) Summary {
	summary := Summary{Total: len(results)}
	for _, result := range results {
		switch result.Outcome() {
		case types.OutcomePassed:
			summary.Passed++
		case types.OutcomeFailed:
			summary.Failed++
		case types.OutcomeWarning:
			summary.Warnings++
		}
		if result.Healed {
			summary.Healed++
		}
	}
	return summary
}

// GenerateReport writes the report in every configured format and returns the files written
func (r *Reporter) GenerateReport(report Report) ([]string, error) {
	var written []string
	for _, format := range r.config.Format {
		switch format {
		case "json":
			path, err := r.generateJSONReport(report)
			if err != nil {
				return written, fmt.Errorf("failed to generate JSON report: %w", err)
			}
			written = append(written, path)
		case "table":
			r.RenderTable(report)
		default:
			return written, fmt.Errorf("unsupported report format: %s", format)
		}
	}
	return written, nil
}

// generateJSONReport generates a JSON format report
func (r *Reporter) generateJSONReport(report Report) (string, error) {
	if err := os.MkdirAll(r.config.OutputDir, 0755); err != nil {
		return "", err
	}

	stamp := report.Timestamp
	if stamp.IsZero() {
		stamp = r.now()
	}
	reportPath := filepath.Join(r.config.OutputDir, fmt.Sprintf("report_%s.json", stamp.Format("20060102_150405")))

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}
	return reportPath, os.WriteFile(reportPath, data, 0644)
}

// RenderTable prints one row per result followed by the summary
func (r *Reporter) RenderTable(report Report) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"METHOD", "ENDPOINT", "STATUS", "OUTCOME", "ELAPSED", "NOTE"})

	for _, result := range report.Results {
		t.AppendRow(table.Row{
			result.Method,
			result.Endpoint,
			statusText(result),
			outcomeText(result),
			result.Elapsed.Round(time.Millisecond).String(),
			noteText(result),
		})
	}

	s := report.Summary
	t.AppendFooter(table.Row{
		"TOTAL", s.Total,
		fmt.Sprintf("%d passed", s.Passed),
		fmt.Sprintf("%d failed", s.Failed),
		fmt.Sprintf("%d warnings", s.Warnings),
		fmt.Sprintf("%d healed", s.Healed),
	})
	t.Render()

	if len(report.Diagnoses) > 0 {
		r.renderDiagnoses(report.Diagnoses)
	}
}

func (r *Reporter) renderDiagnoses(diagnoses map[string]types.DiagnosisVerdict) {
	ids := make([]string, 0, len(diagnoses))
	for id := range diagnoses {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"OPERATION", "DIAGNOSIS", "EXPLANATION"})
	for _, id := range ids {
		v := diagnoses[id]
		t.AppendRow(table.Row{id, string(v.Kind), v.Explanation})
	}
	t.Render()
}

func statusText(result types.ExecutionResult) string {
	if result.Status == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", result.Status)
}

func outcomeText(result types.ExecutionResult) string {
	switch result.Outcome() {
	case types.OutcomePassed:
		if result.Healed {
			return text.FgHiGreen.Sprint("healed")
		}
		return text.FgGreen.Sprint("passed")
	case types.OutcomeFailed:
		return text.FgRed.Sprint("failed")
	default:
		return text.FgYellow.Sprint("warning")
	}
}

func noteText(result types.ExecutionResult) string {
	const limit = 60
	note := result.Error
	if note == "" && result.ResolvedPath != "" && result.ResolvedPath != result.Endpoint {
		note = result.ResolvedPath
	}
	if len(note) > limit {
		note = note[:limit-3] + "..."
	}
	return note
}
