// cmd/brandlocator/serve.go
package main

import (
	"github.com/spf13/cobra"

	"github.com/valpere/BrandLocator/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		listen  string
		noWatch bool
	)
	cmd := &cobra.Command{
		Use:   "serve directory.json",
		Short: "Serve a merged directory over a read-only HTTP API",
		Long: `serve exposes the merged directory at /api/v1/stores and /api/v1/brands,
with /healthz and /metrics alongside. The directory file is reloaded when it
changes unless --no-watch is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Server
			if listen != "" {
				cfg.Listen = listen
			}

			srv, err := server.New(cfg, args[0], a.metrics(), a.logger, version)
			if err != nil {
				return err
			}
			if !noWatch {
				if err := srv.Watch(); err != nil {
					a.logger.Warnf("directory hot reload disabled: %v", err)
				}
			}
			return srv.ListenAndServe(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (overrides server.listen)")
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not reload the directory file on change")
	return cmd
}
