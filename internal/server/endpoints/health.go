package endpoints

import (
	"context"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexsuite/lexocr/internal/api"
	"github.com/lexsuite/lexocr/internal/ocrsvc"
	"github.com/lexsuite/lexocr/internal/svcctx"
	"github.com/lexsuite/lexocr/version"
)

// HealthEndpoint reports basic liveness. It never requires initialization
// so it can be probed while the server is still starting up.
type HealthEndpoint struct{}

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return http.MethodGet, "/health", e.handle
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

func (e *HealthEndpoint) handle(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.GitRelease,
	})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var result map[string]string
			if err := client.Get(cmd.Context(), "/health", &result); err != nil {
				return err
			}
			return api.Output(result)
		},
	}
}

// ReadyEndpoint reports whether the extraction pipeline is ready to
// accept documents.
type ReadyEndpoint struct{}

func (e *ReadyEndpoint) Route() (string, string, http.HandlerFunc) {
	return http.MethodGet, "/ready", e.handle
}

func (e *ReadyEndpoint) RequiresInit() bool { return false }

func (e *ReadyEndpoint) handle(w http.ResponseWriter, r *http.Request) {
	if svcctx.PipelineFrom(r.Context()) == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "initializing"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (e *ReadyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "Check whether the server can accept documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var result map[string]string
			if err := client.Get(cmd.Context(), "/ready", &result); err != nil {
				return err
			}
			return api.Output(result)
		},
	}
}

// StatusResponse describes the running server and its engines.
type StatusResponse struct {
	Status     string   `json:"status"`
	Version    string   `json:"version"`
	Engines    []string `json:"engines"`
	OCRService string   `json:"ocr_service,omitempty"`
}

// StatusEndpoint reports registered engines and, when the EasyOCR
// container is managed by this server, its current state.
type StatusEndpoint struct{}

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return http.MethodGet, "/status", e.handle
}

func (e *StatusEndpoint) RequiresInit() bool { return false }

func (e *StatusEndpoint) handle(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status:  "running",
		Version: version.GitRelease,
	}
	if reg := svcctx.EnginesFrom(r.Context()); reg != nil {
		resp.Engines = reg.List()
	}
	if mgr := svcctx.OCRServiceFrom(r.Context()); mgr != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		status, err := mgr.Status(ctx)
		if err != nil {
			status = ocrsvc.StatusNotFound
		}
		resp.OCRService = string(status)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server status and registered engines",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var result StatusResponse
			if err := client.Get(cmd.Context(), "/status", &result); err != nil {
				return err
			}
			return api.Output(result)
		},
	}
}
