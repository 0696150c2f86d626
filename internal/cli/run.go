package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"auto-api-healer/internal/metrics"
	"auto-api-healer/internal/orchestrator"
	"auto-api-healer/internal/reporter"
	"auto-api-healer/internal/testgen"
	"auto-api-healer/internal/types"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type runOptions struct {
	method      string
	category    string
	uploads     bool
	metricsFile string
	noHealing   bool
	failOnError bool
}

func newRunCmd(global *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the endpoints of the API description as a suite",
		Long: `Runs every endpoint, or the suite picked by --method, --tag or --uploads,
in dependency order and writes a report. Failed steps are diagnosed and
healed once when an LLM API key is configured and healing is enabled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSuite(cmd, global, opts)
		},
	}

	cmd.Flags().StringVar(&opts.method, "method", "", "run only endpoints of this HTTP method (uploads excluded)")
	cmd.Flags().StringVar(&opts.category, "tag", "", "run only endpoints whose first tag is this category")
	cmd.Flags().BoolVar(&opts.uploads, "uploads", false, "run only file upload endpoints")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus metrics to this file after the run")
	cmd.Flags().BoolVar(&opts.noHealing, "no-healing", false, "do not diagnose or retry failed steps")
	cmd.Flags().BoolVar(&opts.failOnError, "fail-on-error", false, "exit non-zero when a step fails with a real error")
	cmd.MarkFlagsMutuallyExclusive("method", "tag", "uploads")
	return cmd
}

func runSuite(cmd *cobra.Command, global *globalOptions, opts *runOptions) error {
	a, err := newApp(global)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	doc, err := a.parse(ctx)
	if err != nil {
		return err
	}

	var diagnoser orchestrator.Diagnoser
	if a.cfg.Healing.Enabled && !opts.noHealing {
		client, interactions, err := a.llmClient()
		if err != nil {
			return err
		}
		if client != nil {
			defer interactions.Close()
			diagnoser = a.diagnoser(client)
		} else {
			a.logger.Info("no LLM API key configured, failed steps will not be diagnosed")
		}
	}

	testData, bodies := a.loadTestData()
	m := metrics.New()

	orch, err := orchestrator.New(orchestrator.Options{
		BaseURL:      a.baseURL(doc),
		Endpoints:    doc.Endpoints,
		Executor:     a.executor(),
		Diagnoser:    diagnoser,
		Synthesizer:  testgen.NewSynthesizer(doc.Schemas),
		TestData:     testData,
		ManualBodies: bodies,
		Headers:      a.headers(),
		HealingPause: a.cfg.HealingPause(),
		Pacing:       a.cfg.Pacing(),
		Logger:       a.logger,
		Metrics:      m,
	})
	if err != nil {
		return err
	}

	start := time.Now()
	switch {
	case opts.uploads:
		_, err = orch.RunUploads(ctx, types.Context{})
	case opts.method != "":
		_, err = orch.RunMethod(ctx, strings.ToUpper(opts.method), types.Context{})
	case opts.category != "":
		_, err = orch.RunCategory(ctx, opts.category, types.Context{})
	default:
		_, err = orch.Run(ctx, doc.Endpoints, types.Context{})
	}
	if errors.Is(err, orchestrator.ErrMissingBaseURL) {
		return fmt.Errorf("%w: set environment.base_url or --base-url", err)
	}
	if err != nil {
		a.logger.Warn("suite interrupted, reporting partial results", zap.Error(err))
	}

	report := reporter.NewReport(orch.BaseURL(), orch.Results(), orch.Diagnoses(), time.Since(start))
	rep := reporter.NewReporter(reporter.ReportingConfig{
		Format:    a.cfg.Reporting.Format,
		OutputDir: a.cfg.Reporting.OutputDir,
	}, cmd.OutOrStdout())

	paths, reportErr := rep.GenerateReport(report)
	for _, path := range paths {
		fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", path)
	}
	if reportErr != nil {
		return reportErr
	}

	if opts.metricsFile != "" {
		if err := m.WriteTextfile(opts.metricsFile); err != nil {
			return err
		}
	}

	if err != nil {
		return err
	}
	if opts.failOnError && report.Summary.Failed > 0 {
		return fmt.Errorf("%d of %d steps failed", report.Summary.Failed, report.Summary.Total)
	}
	return nil
}
