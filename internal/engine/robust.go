package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	// RobustName is the engine identifier in progress events.
	RobustName = "easyocr"

	// robustConfidence is assumed for every remote result. The remote
	// service does not report per-word confidence, and its recognition
	// quality on degraded scans justifies a fixed high value.
	robustConfidence = 0.90

	defaultRobustTimeout = 90 * time.Second
	defaultRobustRetries = 3
)

// Robust recognizes pages through the companion recognition service.
// It receives the unpreprocessed page image: the service applies its
// own detection pipeline and binarization would hurt it.
type Robust struct {
	baseURL    string
	httpClient *http.Client
	retries    uint
}

// RobustConfig carries connection settings for the remote engine.
type RobustConfig struct {
	// BaseURL is the service root, e.g. http://localhost:8765.
	BaseURL string
	Timeout time.Duration
	Retries int
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// NewRobust builds the fallback engine.
func NewRobust(cfg RobustConfig) (*Robust, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("robust engine: base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRobustTimeout
	}
	if cfg.Retries <= 0 {
		cfg.Retries = defaultRobustRetries
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Robust{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		retries:    uint(cfg.Retries),
	}, nil
}

// Name returns the engine identifier.
func (r *Robust) Name() string {
	return RobustName
}

// HealthCheck probes the service health endpoint.
func (r *Robust) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("recognition service unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("recognition service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

type robustResponse struct {
	Text string `json:"text"`
}

// Recognize uploads the page image and returns the recognized text
// with the assumed confidence. Transient failures are retried with
// backoff.
func (r *Robust) Recognize(ctx context.Context, pngData []byte) (*Result, error) {
	start := time.Now()

	var out robustResponse
	err := retry.Do(
		func() error {
			return r.post(ctx, pngData, &out)
		},
		retry.Context(ctx),
		retry.Attempts(r.retries),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("remote recognition failed: %w", err)
	}

	return &Result{
		Text:       strings.TrimSpace(out.Text),
		Confidence: robustConfidence,
		Engine:     RobustName,
		Duration:   time.Since(start),
	}, nil
}

func (r *Robust) post(ctx context.Context, pngData []byte, out *robustResponse) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "page.png")
	if err != nil {
		return err
	}
	if _, err := part.Write(pngData); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/ocr", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return retry.Unrecoverable(err)
		}
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
