package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lexsuite/lexocr/internal/api"
	"github.com/lexsuite/lexocr/internal/stream"
	"github.com/lexsuite/lexocr/internal/svcctx"
	"github.com/lexsuite/lexocr/internal/validate"
)

// uploadMemoryLimit caps how much of a multipart body is buffered in
// memory before spilling to disk.
const uploadMemoryLimit = 32 << 20

// ExtractEndpoint accepts a document upload and streams extraction
// progress back as NDJSON, one event per line. Uploads that fail
// validation are rejected with a 400 before any streaming starts;
// once the status is committed, later failures arrive as an error
// event on the stream.
type ExtractEndpoint struct{}

func (e *ExtractEndpoint) Route() (string, string, http.HandlerFunc) {
	return http.MethodPost, "/api/extract", e.handle
}

func (e *ExtractEndpoint) RequiresInit() bool { return true }

func (e *ExtractEndpoint) handle(w http.ResponseWriter, r *http.Request) {
	pipeline := svcctx.PipelineFrom(r.Context())
	if pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "extraction pipeline not available")
		return
	}
	log := svcctx.LoggerFrom(r.Context())

	if err := r.ParseMultipartForm(uploadMemoryLimit); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing 'file' field in multipart form")
		return
	}
	defer file.Close()

	path, err := saveUpload(r, file, header.Filename)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("could not save upload: %v", err))
		return
	}

	// Validate before committing the status so a bad upload gets a
	// plain 400 instead of an error event on an already-open stream.
	if _, err := validate.File(path); err != nil {
		var verr *validate.ValidationError
		if errors.As(err, &verr) {
			log.Info("rejected upload", "filename", header.Filename, "error", verr)
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("could not validate upload: %v", err))
		return
	}

	w.Header().Set("Content-Type", stream.ContentType)
	w.WriteHeader(http.StatusOK)

	sw := stream.NewWriter(w)
	events := make(chan stream.Event, 64)
	pumpDone := make(chan error, 1)
	go func() {
		pumpDone <- stream.Pump(r.Context(), events, sw)
	}()

	res, runErr := pipeline.Run(r.Context(), path, events)
	close(events)
	<-pumpDone
	sw.Close()

	if runErr != nil {
		log.Warn("extraction failed", "path", path, "error", runErr)
		return
	}
	if store := svcctx.AuditFrom(r.Context()); store != nil {
		if err := store.RecordRun(r.Context(), res); err != nil {
			log.Warn("could not record run in audit store", "run_id", res.RunID, "error", err)
		}
	}
}

// saveUpload writes the uploaded file under the home uploads directory,
// falling back to the system temp dir when no home is configured. The
// client-supplied filename contributes only its base name and extension;
// a fresh UUID prevents collisions between concurrent uploads.
func saveUpload(r *http.Request, src io.Reader, filename string) (string, error) {
	dir := os.TempDir()
	if h := svcctx.HomeFrom(r.Context()); h != nil {
		if err := os.MkdirAll(h.UploadsDir(), 0o755); err != nil {
			return "", err
		}
		dir = h.UploadsDir()
	}

	base := filepath.Base(filename)
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "upload"
	}
	path := filepath.Join(dir, uuid.NewString()+"_"+base)

	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, io.LimitReader(src, validate.MaxFileSize+1)); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func (e *ExtractEndpoint) Command(getServerURL func() string) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Extract text from a document, streaming progress",
		Long: `Upload a document to the server and stream extraction progress.

Each progress line is printed as it arrives. On completion the final
event stream includes the cleaned (and optionally AI-refined) text.

Use --raw to print the NDJSON events verbatim instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			out := cmd.OutOrStdout()

			var terminal error
			err := client.PostFileStream(cmd.Context(), "/api/extract", args[0], func(line json.RawMessage) error {
				if raw {
					fmt.Fprintln(out, string(line))
					return nil
				}
				var ev stream.Event
				if err := json.Unmarshal(line, &ev); err != nil {
					return fmt.Errorf("malformed event: %w", err)
				}
				switch ev.Type {
				case stream.EventError:
					terminal = fmt.Errorf("extraction failed: %s", ev.Error)
				case stream.EventOCRComplete:
					fmt.Fprintln(out, ev.Message)
				case stream.EventComplete:
					fmt.Fprintln(out, ev.Message)
				default:
					if ev.Message != "" {
						fmt.Fprintln(out, ev.Message)
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			return terminal
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "print NDJSON events without formatting")
	return cmd
}
