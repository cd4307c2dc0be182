// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Yangs-AI/younger-fetch/internal/server"
)

func newServeCmd(ro *RootOpts) *cobra.Command {
	var (
		addr  string
		port  int
		conns int
		active int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server for remote acquisition jobs",
		Long: `Start an HTTP server that provides:
  - REST API for starting and tracking acquisition jobs
  - WebSocket for live progress updates

Cache paths are configured server-side only (not via API), from the same
config file and environment the fetch command uses.

Example:
  younger-fetch serve
  younger-fetch serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(ro)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("connections") {
				cfg.Connections = conns
			}
			if cmd.Flags().Changed("max-active") {
				cfg.MaxActive = active
			}

			srvCfg := server.Config{
				Addr:          addr,
				Port:          port,
				ManifestDir:   cfg.ManifestDir,
				CacheDir:      cfg.CacheDir,
				CacheFlagPath: cfg.CacheFlagPath,
				Token:         cfg.Token,
				Endpoint:      cfg.Endpoint,
				Concurrency:   cfg.Connections,
				MaxActive:     cfg.MaxActive,
			}

			srv := server.New(srvCfg)

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			fmt.Printf("younger-fetch serving on %s:%d (cache %s)\n", addr, port, cfg.CacheDir)
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "0.0.0.0", "Address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	cmd.Flags().IntVarP(&conns, "connections", "c", 8, "Connections per file")
	cmd.Flags().IntVar(&active, "max-active", 3, "Max concurrent file downloads")

	return cmd
}
