package ollama

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/lehigh-university-libraries/comicgen/internal/models"
	"github.com/lehigh-university-libraries/comicgen/internal/providers"
)

const (
	DefaultURL   = "http://localhost:11434"
	DefaultModel = "mistral-small3.2:24b"
)

// Ollama is a story provider for a local Ollama server. It cannot render images.
type Ollama struct {
	http   *resty.Client
	config providers.Config
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// New returns a new Ollama provider
func New(baseURL string, config providers.Config) *Ollama {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	return &Ollama{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(10 * time.Minute),
		config: config,
	}
}

// GenerateStory asks Ollama for a JSON story outline
func (o *Ollama) GenerateStory(ctx context.Context, prompt, language string) (*models.Story, error) {
	slog.Info("Generating story", "provider", "ollama", "model", o.config.Model, "language", language)

	req := generateRequest{
		Model:  o.config.Model,
		Prompt: providers.BuildStoryPrompt(prompt, language, o.config.PanelCount),
		Stream: false,
		Format: "json",
	}
	if o.config.Temperature > 0 {
		req.Options = map[string]any{"temperature": o.config.Temperature}
	}

	var response generateResponse
	resp, err := o.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&response).
		Post("/api/generate")
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode(), resp.String())
	}

	return providers.DegradeStory(response.Response), nil
}
