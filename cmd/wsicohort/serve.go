package main

import (
	"go-wsi-cohort/internal/container"
	"go-wsi-cohort/internal/transport"

	"github.com/spf13/cobra"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve cohort extraction over HTTP",
		Long: `Starts the HTTP API:

  GET  /health             status and extraction counters
  GET  /metrics            Prometheus metrics
  POST /v1/cohort/extract  descriptors in, structured cohort document out
  POST /v1/cohort/table    descriptors in, CSV table out`,
		Example: `  # Start server on the configured port
  wsicohort serve

  # Start server on custom port
  wsicohort serve --port 9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			c, err := container.NewContainer(cfg)
			if err != nil {
				return err
			}
			return transport.Serve(cmd.Context(), c.Handler(), cfg)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides server.port)")

	return cmd
}
