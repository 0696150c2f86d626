package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"auto-api-healer/internal/testgen"
	"auto-api-healer/internal/testgen/generator"
	"auto-api-healer/internal/types"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newTemplateCmd(global *globalOptions) *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write a test data template synthesized from the request schemas",
		Long: `Writes testdata_template.json with one entry per endpoint. Review it and
save it as testdata.json to pin bodies, path parameters, query parameters
and headers for the run command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(global)
			if err != nil {
				return err
			}
			defer a.close()

			doc, err := a.parse(cmd.Context())
			if err != nil {
				return err
			}
			if outputDir == "" {
				outputDir = a.cfg.Test.TestDataDir
			}

			gen := testgen.NewGenerator(outputDir, testgen.NewSynthesizer(doc.Schemas))
			path, err := gen.GenerateTemplate(doc.Endpoints)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Test data template for %d endpoints written to %s\n", len(doc.Endpoints), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default test.testdata_dir)")
	return cmd
}

func newGenerateCmd(global *globalOptions) *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate realistic test data with the configured LLM",
		Args:  cobra.NoArgs,
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
			if client == nil {
				return errors.New("AI data generation needs llm.api_key or LLM_API_KEY")
			}
			defer interactions.Close()

			doc, err := a.parse(cmd.Context())
			if err != nil {
				return err
			}

			data, err := client.GenerateTestData(cmd.Context(), doc.Endpoints)
			if err != nil {
				return err
			}
			if outputDir == "" {
				outputDir = a.cfg.Test.TestDataDir
			}
			if err := testgen.NewLoader(outputDir).SaveTestData(data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "AI test data for %d endpoints written to %s\n", len(data), filepath.Join(outputDir, testgen.DataFile))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default test.testdata_dir)")
	return cmd
}

type generateDBOptions struct {
	db        generator.DBConfig
	template  string
	outputDir string
	useLLM    bool
}

func newGenerateDBCmd(global *globalOptions) *cobra.Command {
	opts := &generateDBOptions{}

	cmd := &cobra.Command{
		Use:   "generate-db",
		Short: "Fill test data from the rows and schema of a database",
		Long: `Connects to a postgres, mysql or sqlserver database, matches endpoint paths
to tables and fills path parameters with existing keys, query parameters
with existing values and request bodies with generated rows whose foreign
keys point at existing records. Flags override the database section of the
configuration file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return generateFromDB(cmd, global, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.db.Type, "db-type", "", "database type (postgres|mysql|sqlserver)")
	f.StringVar(&opts.db.Host, "db-host", "", "database host")
	f.IntVar(&opts.db.Port, "db-port", 0, "database port")
	f.StringVar(&opts.db.Database, "db-name", "", "database name")
	f.StringVar(&opts.db.User, "db-user", "", "database user")
	f.StringVar(&opts.db.Password, "db-password", "", "database password")
	f.StringVar(&opts.template, "template", "", "test data template to start from (default <testdata_dir>/testdata_template.json)")
	f.StringVarP(&opts.outputDir, "output", "o", "", "output directory (default test.testdata_dir)")
	f.BoolVar(&opts.useLLM, "ai", false, "let the configured LLM map records onto body templates")
	return cmd
}

func generateFromDB(cmd *cobra.Command, global *globalOptions, opts *generateDBOptions) error {
	a, err := newApp(global)
	if err != nil {
		return err
	}
	defer a.close()

	dbConfig := mergeDBConfig(generator.FromSettings(a.cfg.Database), opts.db)
	ctx := cmd.Context()

	doc, err := a.parse(ctx)
	if err != nil {
		return err
	}

	template := types.TestDataDocument{}
	templatePath := opts.template
	if templatePath == "" {
		templatePath = filepath.Join(a.cfg.Test.TestDataDir, testgen.TemplateFile)
	}
	if loaded, err := testgen.LoadDocumentFile(templatePath); err == nil {
		template = loaded
	} else {
		a.logger.Info("no template, generating from the schema", zap.String("path", templatePath))
		template = testgen.NewGenerator("", testgen.NewSynthesizer(doc.Schemas)).Template(doc.Endpoints)
	}

	db, dialect, err := generator.Open(ctx, dbConfig)
	if err != nil {
		return err
	}
	defer db.Close()

	genOpts := []generator.Option{generator.WithLogger(a.logger)}
	if opts.useLLM {
		client, interactions, err := a.llmClient()
		if err != nil {
			return err
		}
		if client == nil {
			return errors.New("--ai needs llm.api_key or LLM_API_KEY")
		}
		defer interactions.Close()
		genOpts = append(genOpts, generator.WithBodyFiller(client))
	}

	gen := generator.NewDBGenerator(generator.NewTableAnalyzer(db, dialect), genOpts...)
	data, err := gen.Generate(ctx, doc.Endpoints, template)
	if err != nil {
		return fmt.Errorf("failed to generate test data: %w", err)
	}

	outputDir := opts.outputDir
	if outputDir == "" {
		outputDir = a.cfg.Test.TestDataDir
	}
	if err := testgen.NewLoader(outputDir).SaveTestData(data); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Test data generated successfully in %s\n", filepath.Join(outputDir, testgen.DataFile))
	return nil
}

// mergeDBConfig lets flag values win over the configuration file
func mergeDBConfig(base, flags generator.DBConfig) generator.DBConfig {
	if flags.Type != "" {
		base.Type = flags.Type
	}
	if flags.Host != "" {
		base.Host = flags.Host
	}
	if flags.Port != 0 {
		base.Port = flags.Port
	}
	if flags.Database != "" {
		base.Database = flags.Database
	}
	if flags.User != "" {
		base.User = flags.User
	}
	if flags.Password != "" {
		base.Password = flags.Password
	}
	return base
}
