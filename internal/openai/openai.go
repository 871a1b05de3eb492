package openai

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/lehigh-university-libraries/comicgen/internal/images"
	"github.com/lehigh-university-libraries/comicgen/internal/models"
	"github.com/lehigh-university-libraries/comicgen/internal/providers"
)

const (
	// EnvAPIKey holds the OpenAI credential
	EnvAPIKey = "OPENAI_API_KEY"

	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultStoryModel = "gpt-4o"
	DefaultImageModel = "gpt-image-1"
)

// OpenAI is a provider for OpenAI story and image generation
type OpenAI struct {
	http       *resty.Client
	config     providers.Config
	imageModel string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type imageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// New returns a new OpenAI provider. storyConfig.Model and imageModel fall back to defaults.
func New(apiKey, baseURL string, storyConfig providers.Config, imageModel string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, &providers.MissingCredentialError{Provider: "openai", EnvVar: EnvAPIKey}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if storyConfig.Model == "" {
		storyConfig.Model = DefaultStoryModel
	}
	if imageModel == "" {
		imageModel = DefaultImageModel
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(apiKey).
		SetHeader("User-Agent", "comicgen/1.0").
		SetTimeout(5 * time.Minute)

	return &OpenAI{
		http:       client,
		config:     storyConfig,
		imageModel: imageModel,
	}, nil
}

// GenerateStory requests a JSON story outline from the chat completions API
func (o *OpenAI) GenerateStory(ctx context.Context, prompt, language string) (*models.Story, error) {
	slog.Info("Generating story", "provider", "openai", "model", o.config.Model, "language", language)

	req := chatRequest{
		Model: o.config.Model,
		Messages: []chatMessage{
			{Role: "user", Content: providers.BuildStoryPrompt(prompt, language, o.config.PanelCount)},
		},
		Temperature:    o.config.Temperature,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	var response chatResponse
	resp, err := o.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&response).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode(), resp.String())
	}

	var content string
	if len(response.Choices) > 0 {
		content = response.Choices[0].Message.Content
	}
	return providers.DegradeStory(content), nil
}

// GenerateImage renders the description. With a reference image the edits
// endpoint is used so the reference is sent alongside the prompt.
func (o *OpenAI) GenerateImage(ctx context.Context, description string, reference *images.Image) (string, error) {
	prompt := providers.BuildImagePrompt(description, reference != nil)
	slog.Info("Generating image", "provider", "openai", "model", o.imageModel, "reference", reference != nil)

	var response imageResponse
	req := o.http.R().SetContext(ctx).SetResult(&response)

	var (
		resp *resty.Response
		err  error
	)
	if reference != nil {
		resp, err = req.
			SetFormData(map[string]string{
				"model":  o.imageModel,
				"prompt": prompt,
				"n":      "1",
			}).
			SetFileReader("image", "reference"+reference.Extension(), bytes.NewReader(reference.Data)).
			Post("/images/edits")
	} else {
		body := imageRequest{Model: o.imageModel, Prompt: prompt, N: 1, Size: "1024x1024"}
		if strings.HasPrefix(o.imageModel, "dall-e") {
			body.ResponseFormat = "b64_json"
		}
		resp, err = req.SetBody(body).Post("/images/generations")
	}
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode(), resp.String())
	}

	for _, d := range response.Data {
		if d.B64JSON == "" {
			continue
		}
		img, err := images.FromBase64("", d.B64JSON)
		if err != nil {
			return "", fmt.Errorf("failed to decode image payload: %w", err)
		}
		return img.DataURI(), nil
	}

	slog.Warn("No inline image returned from OpenAI", "model", o.imageModel)
	return "", nil
}
