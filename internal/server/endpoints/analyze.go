package endpoints

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/lexsuite/lexocr/internal/analysis"
	"github.com/lexsuite/lexocr/internal/api"
	"github.com/lexsuite/lexocr/internal/audit"
	"github.com/lexsuite/lexocr/internal/svcctx"
)

// AnalyzeRunEndpoint sends the final text of a stored run to the
// analysis service and returns document type, entities, and a summary.
// Results are best-effort: individual analysis calls that fail are
// omitted rather than failing the request.
type AnalyzeRunEndpoint struct{}

func (e *AnalyzeRunEndpoint) Route() (string, string, http.HandlerFunc) {
	return http.MethodPost, "/api/runs/{id}/analysis", e.handle
}

func (e *AnalyzeRunEndpoint) RequiresInit() bool { return false }

func (e *AnalyzeRunEndpoint) handle(w http.ResponseWriter, r *http.Request) {
	store := svcctx.AuditFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "audit store not available")
		return
	}
	client := svcctx.AnalysisFrom(r.Context())
	if client == nil {
		writeError(w, http.StatusServiceUnavailable, "analysis service not configured")
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
	if run.FinalText == "" {
		writeError(w, http.StatusUnprocessableEntity, "run has no extracted text to analyze")
		return
	}

	writeJSON(w, http.StatusOK, client.Analyze(r.Context(), run.FinalText))
}

func (e *AnalyzeRunEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <run-id>",
		Short: "Classify, tag, and summarize a stored run's text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var result analysis.Result
			if err := client.Post(cmd.Context(), "/api/runs/"+args[0]+"/analysis", nil, &result); err != nil {
				return err
			}
			return api.Output(result)
		},
	}
}
