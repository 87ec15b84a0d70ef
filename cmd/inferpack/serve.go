// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"inferpack-cli/internal/config"
	"inferpack-cli/internal/server"

	"github.com/spf13/cobra"
)

var (
	serveHost    string
	servePort    int
	serveWeights string

	// serveCmd runs the built-in reference server directly, outside any
	// assembled runtime environment. Useful for local development.
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the built-in reference inference server",
		Long: `Run the built-in reference inference server directly.

The server exposes the health endpoint and POST /v1/detect. Detection
requires a model weights file; without one, /v1/detect reports the
service fault while the health endpoint keeps answering.`,
		RunE: runServe,
	}
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "bind address (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "bind port (default from config)")
	serveCmd.Flags().StringVar(&serveWeights, "weights", "", "model weights file for the detector")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	logger := newLogger()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	host := cfg.BindHost
	if serveHost != "" {
		host = serveHost
	}
	port := cfg.BindPort
	if servePort != 0 {
		port = servePort
	}

	srv, err := server.New(server.Options{
		Host:       host,
		Port:       port,
		HealthPath: cfg.Probe.Path,
		Detector:   server.NewStubDetector(serveWeights),
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	return srv.Start(ctx)
}
