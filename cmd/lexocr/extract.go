package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexsuite/lexocr/internal/audit"
	"github.com/lexsuite/lexocr/internal/config"
	"github.com/lexsuite/lexocr/internal/engine"
	"github.com/lexsuite/lexocr/internal/extract"
	"github.com/lexsuite/lexocr/internal/hybrid"
	"github.com/lexsuite/lexocr/internal/refine"
	"github.com/lexsuite/lexocr/internal/stream"
)

var (
	extractQuiet  bool
	extractNoSave bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Extract text from a document locally",
	Long: `Extract text from a scanned document without a running server.

Progress is printed to stderr as pages complete; the final text is
printed to stdout. The run is recorded in the local audit database
unless --no-save is given.

Requires tesseract installed locally. The remote fallback engine is
used when configured and reachable.

Examples:
  lexocr extract bail.pdf
  lexocr extract scan.png --quiet > texte.txt`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfg := cm.Get()

		logLevel := slog.LevelWarn
		if !extractQuiet {
			logLevel = slog.LevelInfo
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

		pipeline := buildPipeline(cfg, logger)

		events := make(chan stream.Event, 64)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for ev := range events {
				if extractQuiet || ev.Message == "" {
					continue
				}
				fmt.Fprintln(cmd.ErrOrStderr(), ev.Message)
			}
		}()

		res, runErr := pipeline.Run(ctx, args[0], events)
		close(events)
		<-done
		if runErr != nil {
			return runErr
		}

		if !extractNoSave {
			if err := saveRun(cmd, res); err != nil {
				logger.Warn("could not record run", "error", err)
			} else if !extractQuiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "run recorded: %s\n", res.RunID)
			}
		}

		fmt.Fprintln(cmd.OutOrStdout(), res.FinalText)
		return nil
	},
}

// buildPipeline assembles the extraction pipeline from config the same
// way the server does, logging and skipping unavailable components.
func buildPipeline(cfg *config.Config, logger *slog.Logger) *extract.Pipeline {
	fast := engine.NewTesseract(cfg.Engines.Fast.Languages...)

	var robustEng engine.Engine
	if cfg.Engines.Robust.Enabled {
		rob, err := engine.NewRobust(engine.RobustConfig{
			BaseURL: cfg.Engines.Robust.BaseURL,
			Timeout: time.Duration(cfg.Engines.Robust.TimeoutSeconds) * time.Second,
			Retries: cfg.Engines.Robust.MaxRetries,
		})
		if err != nil {
			logger.Warn("fallback engine unavailable", "error", err)
		} else {
			robustEng = rob
		}
	}

	orch := hybrid.New(fast, robustEng,
		hybrid.WithPageTimeout(time.Duration(cfg.Pipeline.PageTimeoutSeconds)*time.Second),
		hybrid.WithLogger(logger),
	)

	var refiner *refine.Refiner
	if cfg.Pipeline.RefineEnabled && cfg.Refine.Backend == "openai" {
		if key := config.ResolveEnvVars(cfg.Refine.APIKey); key != "" {
			backend, err := refine.NewOpenAIBackend(refine.OpenAIConfig{
				APIKey:  key,
				Model:   cfg.Refine.Model,
				BaseURL: cfg.Refine.BaseURL,
				Timeout: time.Duration(cfg.Refine.TimeoutSeconds) * time.Second,
			})
			if err != nil {
				logger.Warn("refinement disabled", "error", err)
			} else {
				refiner = refine.New(backend,
					refine.WithBudget(cfg.Refine.ParagraphBudget),
					refine.WithLogger(logger),
				)
			}
		} else {
			logger.Warn("refinement disabled: no API key configured")
		}
	}

	return extract.New(orch, refiner,
		extract.WithWorkers(cfg.Pipeline.MaxWorkers),
		extract.WithLogger(logger),
	)
}

func saveRun(cmd *cobra.Command, res *extract.RunResult) error {
	h, err := getHome()
	if err != nil {
		return err
	}
	if err := h.EnsureExists(); err != nil {
		return err
	}
	store, err := audit.Open(h.AuditDBPath())
	if err != nil {
		return err
	}
	defer store.Close()
	return store.RecordRun(cmd.Context(), res)
}

func init() {
	extractCmd.Flags().BoolVarP(&extractQuiet, "quiet", "q", false, "suppress progress output")
	extractCmd.Flags().BoolVar(&extractNoSave, "no-save", false, "do not record the run in the audit database")
	rootCmd.AddCommand(extractCmd)
}
