package aiproxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/amoylab/agridash/internal/common/config"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/genai"
)

// ErrEmptyReply is returned when the model answers with no text
var ErrEmptyReply = errors.New("model returned an empty reply")

// Model is a hosted text generation backend
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// GeminiModel calls the Gemini API through the genai SDK
type GeminiModel struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

// NewGeminiModel returns a nil Model and no error when AI is disabled or no key is set
func NewGeminiModel(ctx context.Context, cfg config.AIConfig) (Model, error) {
	if !cfg.AIAvailable() {
		return nil, nil
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiModel{
		client: client,
		model:  cfg.Model,
		config: &genai.GenerateContentConfig{
			Temperature: genai.Ptr[float32](0.4),
		},
	}, nil
}

func (m *GeminiModel) Name() string {
	return m.model
}

func (m *GeminiModel) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := m.client.Models.GenerateContent(ctx, m.model, genai.Text(prompt), m.config)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}
