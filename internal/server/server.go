// Package server wires the extraction pipeline, audit store, and
// recognition engines into an HTTP API with graceful lifecycle.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/lexsuite/lexocr/internal/analysis"
	"github.com/lexsuite/lexocr/internal/api"
	"github.com/lexsuite/lexocr/internal/audit"
	"github.com/lexsuite/lexocr/internal/config"
	"github.com/lexsuite/lexocr/internal/engine"
	"github.com/lexsuite/lexocr/internal/extract"
	"github.com/lexsuite/lexocr/internal/home"
	"github.com/lexsuite/lexocr/internal/hybrid"
	"github.com/lexsuite/lexocr/internal/ocrsvc"
	"github.com/lexsuite/lexocr/internal/refine"
	"github.com/lexsuite/lexocr/internal/server/endpoints"
	"github.com/lexsuite/lexocr/internal/svcctx"
)

const shutdownTimeout = 10 * time.Second

// Server hosts the lexocr HTTP API.
type Server struct {
	cfgManager *config.Manager
	home       *home.Dir
	logger     *slog.Logger
	registry   *api.Registry

	mu          sync.RWMutex
	services    *svcctx.Services
	initialized bool

	auditStore *audit.Store
	ocrMgr     *ocrsvc.Manager
	httpServer *http.Server
}

// New creates a server. Nothing is started until Start is called.
func New(cfgManager *config.Manager, homeDir *home.Dir, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	registry := api.NewRegistry()
	for _, ep := range endpoints.All() {
		registry.Register(ep)
	}

	return &Server{
		cfgManager: cfgManager,
		home:       homeDir,
		logger:     logger,
		registry:   registry,
	}
}

// Registry exposes the endpoint registry so the CLI can build its
// client-side command tree from the same definitions.
func (s *Server) Registry() *api.Registry {
	return s.registry
}

// Start initializes all services and serves HTTP until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if err := s.initialize(ctx); err != nil {
		return err
	}
	defer s.teardown()

	cfg := s.cfgManager.Get()

	mux := http.NewServeMux()
	s.registry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           s.withServices(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.cfgManager.OnChange(s.handleConfigChange)
	s.cfgManager.WatchConfig()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", cfg.Server.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// initialize builds the engines, pipeline, and stores from the current
// configuration.
func (s *Server) initialize(ctx context.Context) error {
	cfg := s.cfgManager.Get()

	if err := s.home.EnsureExists(); err != nil {
		return fmt.Errorf("could not prepare home directory: %w", err)
	}

	store, err := audit.Open(s.home.AuditDBPath())
	if err != nil {
		return fmt.Errorf("could not open audit store: %w", err)
	}
	s.auditStore = store

	if cfg.OCRService.Managed {
		mgr, err := ocrsvc.NewManager(ocrsvc.Config{
			ContainerName: cfg.OCRService.ContainerName,
			Image:         cfg.OCRService.Image,
			HostPort:      cfg.OCRService.Port,
		})
		if err != nil {
			s.logger.Warn("docker unavailable, recognition service not managed", "error", err)
		} else {
			s.ocrMgr = mgr
			if err := mgr.Start(ctx); err != nil {
				s.logger.Warn("could not start recognition service container", "error", err)
			}
		}
	}

	services, err := s.buildServices(cfg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.services = services
	s.initialized = true
	s.mu.Unlock()

	s.logger.Info("server initialized",
		"engines", services.Engines.List(),
		"refine", services.Pipeline != nil && cfg.Pipeline.RefineEnabled,
	)
	return nil
}

// buildServices assembles the per-request service set. It is re-run on
// config reload; the audit store and container manager are reused.
func (s *Server) buildServices(cfg *config.Config) (*svcctx.Services, error) {
	engines := engine.NewRegistry()
	engines.SetLogger(s.logger)

	fast := engine.NewTesseract(cfg.Engines.Fast.Languages...)
	engines.Register(engine.TesseractName, fast)

	var robustEng engine.Engine
	if cfg.Engines.Robust.Enabled {
		baseURL := cfg.Engines.Robust.BaseURL
		if s.ocrMgr != nil {
			baseURL = s.ocrMgr.URL()
		}
		rob, err := engine.NewRobust(engine.RobustConfig{
			BaseURL: baseURL,
			Timeout: time.Duration(cfg.Engines.Robust.TimeoutSeconds) * time.Second,
			Retries: cfg.Engines.Robust.MaxRetries,
		})
		if err != nil {
			s.logger.Warn("fallback engine unavailable", "error", err)
		} else {
			robustEng = rob
			engines.Register(engine.RobustName, rob)
		}
	}

	orch := hybrid.New(fast, robustEng,
		hybrid.WithPageTimeout(time.Duration(cfg.Pipeline.PageTimeoutSeconds)*time.Second),
		hybrid.WithLogger(s.logger),
	)

	var refiner *refine.Refiner
	if cfg.Pipeline.RefineEnabled && cfg.Refine.Backend == "openai" {
		key := config.ResolveEnvVars(cfg.Refine.APIKey)
		if key == "" {
			s.logger.Warn("refinement disabled: no API key configured")
		} else {
			backend, err := refine.NewOpenAIBackend(refine.OpenAIConfig{
				APIKey:  key,
				Model:   cfg.Refine.Model,
				BaseURL: cfg.Refine.BaseURL,
				Timeout: time.Duration(cfg.Refine.TimeoutSeconds) * time.Second,
			})
			if err != nil {
				s.logger.Warn("refinement disabled", "error", err)
			} else {
				refiner = refine.New(backend,
					refine.WithBudget(cfg.Refine.ParagraphBudget),
					refine.WithLogger(s.logger),
				)
			}
		}
	}

	pipeline := extract.New(orch, refiner,
		extract.WithWorkers(cfg.Pipeline.MaxWorkers),
		extract.WithLogger(s.logger),
	)

	var analyzer *analysis.Client
	if cfg.Analysis.Enabled {
		client, err := analysis.NewClient(analysis.ClientConfig{
			BaseURL: cfg.Analysis.BaseURL,
			Timeout: time.Duration(cfg.Analysis.TimeoutSeconds) * time.Second,
			Retries: cfg.Analysis.MaxRetries,
			Logger:  s.logger,
		})
		if err != nil {
			s.logger.Warn("analysis service unavailable", "error", err)
		} else {
			analyzer = client
		}
	}

	return &svcctx.Services{
		ConfigManager: s.cfgManager,
		Engines:       engines,
		Pipeline:      pipeline,
		Audit:         s.auditStore,
		Analysis:      analyzer,
		OCRService:    s.ocrMgr,
		Logger:        s.logger,
		Home:          s.home,
	}, nil
}

// handleConfigChange rebuilds the pipeline services after a config
// reload. Container management changes require a restart and are only
// logged.
func (s *Server) handleConfigChange(cfg *config.Config) {
	services, err := s.buildServices(cfg)
	if err != nil {
		s.logger.Warn("config reload failed, keeping previous services", "error", err)
		return
	}

	s.mu.Lock()
	s.services = services
	s.mu.Unlock()

	s.logger.Info("configuration reloaded", "engines", services.Engines.List())
}

func (s *Server) teardown() {
	if s.ocrMgr != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := s.ocrMgr.Stop(ctx); err != nil {
			s.logger.Warn("could not stop recognition service container", "error", err)
		}
		cancel()
		_ = s.ocrMgr.Close()
	}
	if s.auditStore != nil {
		if err := s.auditStore.Close(); err != nil {
			s.logger.Warn("could not close audit store", "error", err)
		}
	}
}

// withServices injects the current service set into each request
// context.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		services := s.services
		s.mu.RUnlock()
		next.ServeHTTP(w, r.WithContext(svcctx.WithServices(r.Context(), services)))
	})
}

// requireInit rejects requests until initialization has finished.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		ready := s.initialized
		s.mu.RUnlock()
		if !ready {
			http.Error(w, `{"error":"server is initializing"}`, http.StatusServiceUnavailable)
			return
		}
		next(w, r)
	}
}
