package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lexsuite/lexocr/internal/config"
	"github.com/lexsuite/lexocr/internal/home"
	"github.com/lexsuite/lexocr/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the lexocr server",
	Long: `Start the lexocr HTTP server.

When ocr_service.managed is enabled in the config, the EasyOCR
container is started alongside the server and stopped on shutdown
(via Ctrl+C or SIGTERM).

The server provides:
  - /health       - Basic server health check
  - /ready        - Readiness check
  - /api/extract  - Document extraction with streamed progress

Examples:
  lexocr serve                   # Start on the configured address
  lexocr serve --addr :3000      # Override the listen address`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cm.Get().Server.Addr = serveAddr
		}

		// Start server (blocks until shutdown)
		return server.New(cm, h, logger).Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
