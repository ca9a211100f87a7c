package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexsuite/lexocr/internal/config"
	"github.com/lexsuite/lexocr/internal/ocrsvc"
)

var ocrsvcCmd = &cobra.Command{
	Use:   "ocrsvc",
	Short: "Manage the EasyOCR fallback container",
	Long: `Manage the EasyOCR recognition service container lifecycle.

The recognition service handles pages the fast local engine cannot
read with enough confidence. It runs in a Docker container; recognition
models are cached in ~/.lexocr/models/.

Examples:
  lexocr ocrsvc start    # Start the recognition container
  lexocr ocrsvc stop     # Stop the container
  lexocr ocrsvc status   # Check container status
  lexocr ocrsvc logs     # View container logs`,
}

// getOCRManager builds a container manager from the loaded config.
func getOCRManager() (*ocrsvc.Manager, error) {
	cm, err := config.NewManager(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg := cm.Get()

	h, err := getHome()
	if err != nil {
		return nil, err
	}

	return ocrsvc.NewManager(ocrsvc.Config{
		ContainerName: cfg.OCRService.ContainerName,
		Image:         cfg.OCRService.Image,
		HostPort:      cfg.OCRService.Port,
		ModelCache:    h.ModelCacheDir(),
	})
}

var ocrsvcStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the recognition container",
	Long: `Start the EasyOCR recognition container.

If the container doesn't exist, it will be created and started.
If it exists but is stopped, it will be started.
If it's already running, this is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getOCRManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Starting recognition service...")
		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("failed to start recognition service: %w", err)
		}

		fmt.Printf("Recognition service is running at %s\n", mgr.URL())
		return nil
	},
}

var ocrsvcStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the recognition container",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getOCRManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Stopping recognition service...")
		if err := mgr.Stop(cmd.Context()); err != nil {
			return fmt.Errorf("failed to stop recognition service: %w", err)
		}

		fmt.Println("Recognition service stopped")
		return nil
	},
}

var ocrsvcStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check container status",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getOCRManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		status, err := mgr.Status(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}

		fmt.Printf("Recognition service: %s\n", status)
		if status == ocrsvc.StatusRunning {
			fmt.Printf("  URL: %s\n", mgr.URL())
		}
		return nil
	},
}

var ocrsvcLogsTail string

var ocrsvcLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show container logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getOCRManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		logs, err := mgr.Logs(cmd.Context(), ocrsvcLogsTail)
		if err != nil {
			return fmt.Errorf("failed to get logs: %w", err)
		}

		fmt.Print(logs)
		return nil
	},
}

var ocrsvcRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the container",
	Long: `Remove the recognition container.

This stops and removes the container. Cached models in
~/.lexocr/models/ are NOT deleted - only the container is removed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getOCRManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Removing recognition container...")
		if err := mgr.Remove(cmd.Context()); err != nil {
			return fmt.Errorf("failed to remove container: %w", err)
		}

		fmt.Println("Recognition container removed (cached models preserved)")
		return nil
	},
}

var ocrsvcWaitTimeout time.Duration

var ocrsvcWaitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait for the service to be ready",
	Long: `Wait for the recognition service to accept requests.

Useful in scripts to ensure the service is fully started before
running extractions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getOCRManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		if err := mgr.WaitReady(cmd.Context(), ocrsvcWaitTimeout); err != nil {
			return fmt.Errorf("recognition service not ready: %w", err)
		}

		fmt.Println("Recognition service is ready")
		return nil
	},
}

func init() {
	ocrsvcLogsCmd.Flags().StringVar(&ocrsvcLogsTail, "tail", "100", "number of log lines to show")
	ocrsvcWaitCmd.Flags().DurationVar(&ocrsvcWaitTimeout, "timeout", 120*time.Second, "how long to wait")

	ocrsvcCmd.AddCommand(
		ocrsvcStartCmd,
		ocrsvcStopCmd,
		ocrsvcStatusCmd,
		ocrsvcLogsCmd,
		ocrsvcRemoveCmd,
		ocrsvcWaitCmd,
	)
	rootCmd.AddCommand(ocrsvcCmd)
}
