package main

import (
	"fmt"

	"go-wsi-cohort/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootOptions are the flags shared by every subcommand
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "wsicohort",
		Short: "Whole-slide image cohort metadata extraction",
		Long: `wsicohort normalizes the metadata of a collection of whole-slide images
into one flat record per image and exports the cohort as CSV, JSON and Parquet.

Descriptors come from a YAML/JSON manifest or a slide server; settings are read
from an optional config file and WSICOHORT_* environment variables.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML config file")

	cmd.AddCommand(
		newExtractCmd(opts),
		newFilterCmd(),
		newServeCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// load reads the configuration named by --config
func (o *rootOptions) load() (*config.Config, error) {
	return config.Load(o.configPath)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the tool version tag",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), config.Version)
		},
	}
}
