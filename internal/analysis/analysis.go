// Package analysis enriches extracted documents through a companion
// analysis service: document classification, named entities, and a
// short summary. Every call degrades independently; analysis never
// fails an extraction.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

// maxInputRunes truncates documents before sending. The downstream
// models have token limits well below full contract length, and the
// opening pages carry the classification signal.
const maxInputRunes = 4000

const (
	defaultTimeout = 30 * time.Second
	defaultRetries = 2
)

// Classification is one predicted document label.
type Classification struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Entity is one recognized named entity.
type Entity struct {
	Text  string  `json:"text"`
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Result aggregates whatever analysis calls succeeded. Nil or empty
// fields mean that call degraded.
type Result struct {
	Classification *Classification `json:"classification,omitempty"`
	Entities       []Entity        `json:"entities,omitempty"`
	Summary        string          `json:"summary,omitempty"`
}

// Client talks to the analysis service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retries    uint
	logger     *slog.Logger
}

// ClientConfig carries connection settings.
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	Retries    int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewClient builds an analysis client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("analysis client: base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Retries <= 0 {
		cfg.Retries = defaultRetries
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		retries:    uint(cfg.Retries),
		logger:     logger,
	}, nil
}

// Analyze runs all three analyses over the document, returning
// whatever succeeded.
func (c *Client) Analyze(ctx context.Context, text string) *Result {
	text = truncate(text)
	res := &Result{}

	if cls, err := c.Classify(ctx, text); err != nil {
		c.logger.Warn("classification degraded", "error", err)
	} else {
		res.Classification = cls
	}

	if ents, err := c.Entities(ctx, text); err != nil {
		c.logger.Warn("entity extraction degraded", "error", err)
	} else {
		res.Entities = ents
	}

	if sum, err := c.Summarize(ctx, text); err != nil {
		c.logger.Warn("summarization degraded", "error", err)
	} else {
		res.Summary = sum
	}

	return res
}

// Classify predicts the document category.
func (c *Client) Classify(ctx context.Context, text string) (*Classification, error) {
	var out struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	}
	if err := c.post(ctx, "/classify", text, &out); err != nil {
		return nil, err
	}
	if out.Label == "" {
		return nil, fmt.Errorf("classification returned no label")
	}
	return &Classification{Label: out.Label, Score: out.Score}, nil
}

// Entities extracts named entities.
func (c *Client) Entities(ctx context.Context, text string) ([]Entity, error) {
	var out struct {
		Entities []Entity `json:"entities"`
	}
	if err := c.post(ctx, "/entities", text, &out); err != nil {
		return nil, err
	}
	return out.Entities, nil
}

// Summarize produces a short abstract of the document.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	var out struct {
		Summary string `json:"summary"`
	}
	if err := c.post(ctx, "/summarize", text, &out); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Summary), nil
}

func (c *Client) post(ctx context.Context, path, text string, out any) error {
	payload, err := json.Marshal(map[string]string{"text": truncate(text)})
	if err != nil {
		return err
	}

	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost,
				c.baseURL+path, bytes.NewReader(payload))
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
				err := fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
				if resp.StatusCode >= 400 && resp.StatusCode < 500 {
					return retry.Unrecoverable(err)
				}
				return err
			}
			return json.NewDecoder(resp.Body).Decode(out)
		},
		retry.Context(ctx),
		retry.Attempts(c.retries),
		retry.Delay(300*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
}

func truncate(text string) string {
	r := []rune(text)
	if len(r) <= maxInputRunes {
		return text
	}
	return string(r[:maxInputRunes])
}
