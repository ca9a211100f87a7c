package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lexsuite/lexocr/internal/api"
	"github.com/lexsuite/lexocr/internal/audit"
	"github.com/lexsuite/lexocr/internal/svcctx"
)

// ListRunsEndpoint returns past extraction runs, newest first.
type ListRunsEndpoint struct{}

func (e *ListRunsEndpoint) Route() (string, string, http.HandlerFunc) {
	return http.MethodGet, "/api/runs", e.handle
}

func (e *ListRunsEndpoint) RequiresInit() bool { return false }

func (e *ListRunsEndpoint) handle(w http.ResponseWriter, r *http.Request) {
	store := svcctx.AuditFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "audit store not available")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := store.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("could not list runs: %v", err))
		return
	}
	if runs == nil {
		runs = []audit.RunSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// Command returns the grouped "runs" command covering both the list and
// get endpoints.
func (e *ListRunsEndpoint) Command(getServerURL func() string) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect past extraction runs",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List past extraction runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/api/runs"
			if limit > 0 {
				path = fmt.Sprintf("%s?limit=%d", path, limit)
			}
			var result map[string][]audit.RunSummary
			if err := client.Get(cmd.Context(), path, &result); err != nil {
				return err
			}
			return api.Output(result)
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 0, "maximum number of runs to return")

	getCmd := &cobra.Command{
		Use:   "get <run-id>",
		Short: "Get a stored run with its pages and refinement changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var result audit.Run
			if err := client.Get(cmd.Context(), "/api/runs/"+args[0], &result); err != nil {
				return err
			}
			return api.Output(result)
		},
	}

	runsCmd.AddCommand(listCmd, getCmd)
	return runsCmd
}

// GetRunEndpoint returns one stored run keyed by its ID.
type GetRunEndpoint struct{}

func (e *GetRunEndpoint) Route() (string, string, http.HandlerFunc) {
	return http.MethodGet, "/api/runs/{id}", e.handle
}

func (e *GetRunEndpoint) RequiresInit() bool { return false }

func (e *GetRunEndpoint) handle(w http.ResponseWriter, r *http.Request) {
	store := svcctx.AuditFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "audit store not available")
		return
	}

	runID := r.PathValue("id")
	run, err := store.GetRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, audit.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", runID))
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("could not load run: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// Command returns nil: the get command is registered as a subcommand of
// the runs group owned by ListRunsEndpoint.
func (e *GetRunEndpoint) Command(getServerURL func() string) *cobra.Command {
	return nil
}
