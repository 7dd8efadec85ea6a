package main

import (
	"fmt"
	"io"
	"os"

	"go-wsi-cohort/internal/export"
	"go-wsi-cohort/internal/filter"
	"go-wsi-cohort/pkg/models"

	"github.com/spf13/cobra"
)

func newFilterCmd() *cobra.Command {
	var (
		where     []string
		format    string
		output    string
		precision int
	)

	cmd := &cobra.Command{
		Use:   "filter <cohort_metadata.json>",
		Short: "Select records from a structured export",
		Long: `Keeps the records of a structured export that match every criterion.

A criterion is column=value (equality) or column=min..max (inclusive numeric
range, either bound may be omitted). Records lacking the column never match.`,
		Example: `  # 20x to 40x slides of at least 10 mm²
  wsicohort filter cohort_export/cohort_metadata.json \
    --where estimated_magnification=20..40 --where area_mm2=10..

  # Aperio slides as JSON
  wsicohort filter cohort_metadata.json --where scanner_vendor=Aperio --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			criteria, err := filter.ParseAll(where)
			if err != nil {
				return err
			}

			cohort, err := filter.LoadFile(args[0])
			if err != nil {
				return err
			}
			kept := filter.Apply(cohort.Records, criteria)

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			exp := export.NewExporter(export.Options{
				Precision:   precision,
				ToolVersion: cohort.ToolVersion,
				ProjectName: cohort.ProjectName,
			})
			switch format {
			case "csv":
				err = exp.WriteCSV(w, kept)
			case "json":
				err = exp.WriteJSON(w, &models.CohortResult{Records: kept})
			case "parquet":
				err = exp.WriteParquet(w, kept)
			default:
				return fmt.Errorf("unknown format %q (csv, json or parquet)", format)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d records match\n", len(kept), len(cohort.Records))
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&where, "where", "w", nil, "Criterion column=value or column=min..max (repeatable)")
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "Output format: csv, json or parquet")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	cmd.Flags().IntVar(&precision, "precision", export.DefaultPrecision, "Fixed-point digits for CSV floats")

	return cmd
}
