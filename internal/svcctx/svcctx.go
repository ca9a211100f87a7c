// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/lexsuite/lexocr/internal/analysis"
	"github.com/lexsuite/lexocr/internal/audit"
	"github.com/lexsuite/lexocr/internal/config"
	"github.com/lexsuite/lexocr/internal/engine"
	"github.com/lexsuite/lexocr/internal/extract"
	"github.com/lexsuite/lexocr/internal/home"
	"github.com/lexsuite/lexocr/internal/ocrsvc"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	ConfigManager *config.Manager
	Engines       *engine.Registry
	Pipeline      *extract.Pipeline
	Audit         *audit.Store
	Analysis      *analysis.Client
	OCRService    *ocrsvc.Manager
	Logger        *slog.Logger
	Home          *home.Dir
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// ConfigManagerFrom extracts the config manager from context.
func ConfigManagerFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.ConfigManager
	}
	return nil
}

// EnginesFrom extracts the OCR engine registry from context.
func EnginesFrom(ctx context.Context) *engine.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Engines
	}
	return nil
}

// PipelineFrom extracts the extraction pipeline from context.
func PipelineFrom(ctx context.Context) *extract.Pipeline {
	if s := ServicesFrom(ctx); s != nil {
		return s.Pipeline
	}
	return nil
}

// AuditFrom extracts the audit store from context.
func AuditFrom(ctx context.Context) *audit.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Audit
	}
	return nil
}

// AnalysisFrom extracts the analysis client from context.
func AnalysisFrom(ctx context.Context) *analysis.Client {
	if s := ServicesFrom(ctx); s != nil {
		return s.Analysis
	}
	return nil
}

// OCRServiceFrom extracts the recognition container manager from context.
func OCRServiceFrom(ctx context.Context) *ocrsvc.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.OCRService
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}
