package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every command
type globalOptions struct {
	configPath string
	baseURL    string
	openAPIURL string
	logLevel   string
	logFormat  string
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "auto-api-healer",
		Short: "Run OpenAPI-described endpoints as a self-healing test suite",
		Long: `auto-api-healer reads an OpenAPI or Swagger description, orders its
endpoints so producers run before consumers, threads the identifiers each
response returns into later requests and, when a request fails because of
its input, asks an LLM for a corrected body and retries once.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to config.yaml (default config/config.yaml)")
	flags.StringVar(&opts.baseURL, "base-url", "", "target API base URL, overrides the detected one")
	flags.StringVar(&opts.openAPIURL, "openapi-url", "", "OpenAPI/Swagger document URL, docs page URL or local file")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format (console, json)")

	cmd.AddCommand(
		newRunCmd(opts),
		newTemplateCmd(opts),
		newGenerateCmd(opts),
		newGenerateDBCmd(opts),
		newServeCmd(opts),
	)
	return cmd
}

// Execute runs the command tree and exits non-zero on failure
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
