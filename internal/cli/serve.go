package cli

import (
	"auto-api-healer/internal/metrics"
	"auto-api-healer/internal/parser"
	"auto-api-healer/internal/server"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(global *globalOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the parse, run, diagnose and data generation API over HTTP",
		Long: `Starts an HTTP API for interactive use. POST /parse loads a description,
then /run-step and /run execute endpoints against it while /results,
/diagnose and /generate-data expose the session. Prometheus metrics are
served on /metrics. When --openapi-url is set the description is loaded at
startup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(global)
			if err != nil {
				return err
			}
			defer a.close()

			client, interactions, err := a.llmClient()
			if err != nil {
				return err
			}
			if client != nil {
				defer interactions.Close()
			}

			testData, bodies := a.loadTestData()
			srv, err := server.New(server.Options{
				Parser:       parser.NewSwaggerParser(a.logger),
				Executor:     a.executor(),
				LLM:          client,
				Diagnoser:    a.diagnoser(client),
				BaseURL:      a.cfg.Environment.BaseURL,
				Headers:      a.headers(),
				TestData:     testData,
				ManualBodies: bodies,
				HealingPause: a.cfg.HealingPause(),
				Pacing:       a.cfg.Pacing(),
				Logger:       a.logger,
				Metrics:      metrics.New(),
			})
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if a.cfg.Environment.OpenAPIURL != "" {
				if err := srv.Load(ctx, a.cfg.Environment.OpenAPIURL); err != nil {
					a.logger.Warn("could not preload API description", zap.Error(err))
				}
			}
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8000", "listen address")
	return cmd
}
