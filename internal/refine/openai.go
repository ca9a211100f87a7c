package refine

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Backend corrects one paragraph of OCR text. Implementations must not
// reformulate: only spelling, punctuation, and obvious OCR artifacts.
type Backend interface {
	// Name returns the backend identifier for change attribution.
	Name() string
	// Correct returns the corrected paragraph, or an error when the
	// backend is unavailable. An unavailable backend degrades the
	// paragraph to its original text, never fails the document.
	Correct(ctx context.Context, paragraph string) (string, error)
}

const (
	openAIBackendName   = "openai"
	defaultOpenAIModel  = "gpt-4o-mini"
	defaultCorrectLimit = 10 * time.Second

	// correctionTemperature keeps the model close to the input text.
	correctionTemperature = 0.1
)

// correctionPrompt constrains the model to mechanical fixes. The
// corpus is predominantly French legal text, so the instruction is
// phrased in French.
const correctionPrompt = `Tu corriges du texte juridique issu d'un OCR. ` +
	`Corrige uniquement les fautes d'orthographe, la ponctuation et les ` +
	`erreurs typiques d'OCR (lettres confondues, mots coupés). ` +
	`Ne reformule pas les phrases. Ne modifie pas le sens. ` +
	`Ne supprime ni n'ajoute aucune information. Ne résume pas. ` +
	`Réponds uniquement avec le texte corrigé, sans commentaire.`

// OpenAIBackend corrects paragraphs through an OpenAI-compatible chat
// completion endpoint.
type OpenAIBackend struct {
	model   string
	timeout time.Duration
	client  openai.Client
}

// OpenAIConfig carries the connection settings for the backend.
type OpenAIConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

// NewOpenAIBackend builds the backend, applying defaults for any unset
// field except the API key.
func NewOpenAIBackend(cfg OpenAIConfig) (*OpenAIBackend, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai backend: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCorrectLimit
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIBackend{
		model:   cfg.Model,
		timeout: cfg.Timeout,
		client:  openai.NewClient(opts...),
	}, nil
}

// Name returns the backend identifier.
func (b *OpenAIBackend) Name() string {
	return openAIBackendName
}

// Correct sends one paragraph for correction under a bounded timeout.
func (b *OpenAIBackend) Correct(ctx context.Context, paragraph string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(b.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(correctionPrompt),
			openai.UserMessage(paragraph),
		},
		Temperature: openai.Float(correctionTemperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	corrected := strings.TrimSpace(resp.Choices[0].Message.Content)
	if corrected == "" {
		return "", fmt.Errorf("chat completion returned empty text")
	}
	return corrected, nil
}
