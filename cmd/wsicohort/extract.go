package main

import (
	"fmt"

	"go-wsi-cohort/internal/container"

	"github.com/spf13/cobra"
)

func newExtractCmd(root *rootOptions) *cobra.Command {
	var (
		manifest  string
		sourceURL string
		outputDir string
		project   string
		workers   int
		parquet   bool
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract cohort metadata and write the exports",
		Long: `Processes every image of the configured source and writes the CSV table,
the structured JSON document, the processing log and, when enabled, Parquet.

Per-image and per-field failures are recorded in the processing log; the run
stops early only when processing.max_errors_before_abort is exceeded.`,
		Example: `  # Extract from a manifest into ./cohort_export
  wsicohort extract --manifest cohort.yaml

  # Query a slide server with four workers, Parquet included
  wsicohort extract --source-url http://slides.internal:9000 --workers 4 --parquet`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("manifest") {
				cfg.Source.Type = "manifest"
				cfg.Source.Manifest = manifest
			}
			if flags.Changed("source-url") {
				cfg.Source.Type = "http"
				cfg.Source.BaseURL = sourceURL
			}
			if flags.Changed("output-dir") {
				cfg.Output.Directory = outputDir
			}
			if flags.Changed("project") {
				cfg.ProjectName = project
			}
			if flags.Changed("workers") {
				cfg.Processing.Workers = workers
			}
			if flags.Changed("parquet") {
				cfg.Output.IncludeParquet = parquet
			}

			c, err := container.NewContainer(cfg)
			if err != nil {
				return err
			}

			result, files, err := c.Extract(cmd.Context())
			if err != nil {
				return err
			}

			s := result.Summary
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s: %d attempted, %d succeeded, %d failed, %d field errors\n",
				s.RunID, s.Attempted, s.Succeeded, s.Failed, s.FieldErrors)
			if s.Partial {
				fmt.Fprintf(out, "run stopped early (%s); exports are partial\n", s.AbortReason)
			}
			for _, path := range []string{files.CSV, files.JSON, files.Parquet, files.Log} {
				if path != "" {
					fmt.Fprintln(out, "wrote", path)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&manifest, "manifest", "m", "", "Descriptor manifest (YAML or JSON)")
	cmd.Flags().StringVar(&sourceURL, "source-url", "", "Slide server base URL")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Output directory")
	cmd.Flags().StringVarP(&project, "project", "p", "", "Project name stamped on every record")
	cmd.Flags().IntVarP(&workers, "workers", "w", 1, "Parallel extraction workers")
	cmd.Flags().BoolVar(&parquet, "parquet", false, "Also write a Parquet file")
	cmd.MarkFlagsMutuallyExclusive("manifest", "source-url")

	return cmd
}
