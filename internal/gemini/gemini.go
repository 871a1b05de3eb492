package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/lehigh-university-libraries/comicgen/internal/images"
	"github.com/lehigh-university-libraries/comicgen/internal/models"
	"github.com/lehigh-university-libraries/comicgen/internal/providers"
)

const (
	// EnvAPIKey holds the Gemini credential
	EnvAPIKey = "GEMINI_API_KEY"

	DefaultStoryModel = "gemini-2.5-flash"
	DefaultImageModel = "gemini-2.5-flash-image"
)

// contentGenerator is the subset of *genai.GenerativeModel used here
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// storySchema mirrors models.Story so Gemini returns structured JSON
var storySchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"title": {Type: genai.TypeString},
		"panels": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"visual_description": {Type: genai.TypeString},
					"caption":            {Type: genai.TypeString},
				},
				Required: []string{"visual_description", "caption"},
			},
		},
	},
	Required: []string{"title", "panels"},
}

func newClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, &providers.MissingCredentialError{Provider: "gemini", EnvVar: EnvAPIKey}
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create new gemini client: %w", err)
	}
	return client, nil
}

// StoryClient generates story outlines with Gemini
type StoryClient struct {
	client     *genai.Client
	model      contentGenerator
	modelName  string
	panelCount int
}

// NewStoryClient returns a story generator backed by Gemini
func NewStoryClient(ctx context.Context, apiKey string, config providers.Config) (*StoryClient, error) {
	client, err := newClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	if config.Model == "" {
		config.Model = DefaultStoryModel
	}
	model := client.GenerativeModel(config.Model)
	if config.Temperature > 0 {
		model.SetTemperature(float32(config.Temperature))
	}
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = storySchema

	return &StoryClient{
		client:     client,
		model:      model,
		modelName:  config.Model,
		panelCount: config.PanelCount,
	}, nil
}

// Close releases the underlying connection
func (s *StoryClient) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// GenerateStory asks Gemini for a structured story outline
func (s *StoryClient) GenerateStory(ctx context.Context, prompt, language string) (*models.Story, error) {
	slog.Info("Generating story", "provider", "gemini", "model", s.modelName, "language", language)

	resp, err := s.model.GenerateContent(ctx, genai.Text(providers.BuildStoryPrompt(prompt, language, s.panelCount)))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	return providers.DegradeStory(responseText(resp)), nil
}

// ImageClient renders panel images with Gemini
type ImageClient struct {
	client    *genai.Client
	model     contentGenerator
	modelName string
}

// NewImageClient returns an image generator backed by Gemini
func NewImageClient(ctx context.Context, apiKey string, config providers.Config) (*ImageClient, error) {
	client, err := newClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	if config.Model == "" {
		config.Model = DefaultImageModel
	}
	model := client.GenerativeModel(config.Model)
	if config.Temperature > 0 {
		model.SetTemperature(float32(config.Temperature))
	}

	return &ImageClient{
		client:    client,
		model:     model,
		modelName: config.Model,
	}, nil
}

// Close releases the underlying connection
func (c *ImageClient) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// GenerateImage renders the description, attaching the reference image when given
func (c *ImageClient) GenerateImage(ctx context.Context, description string, reference *images.Image) (string, error) {
	parts := []genai.Part{genai.Text(providers.BuildImagePrompt(description, reference != nil))}
	if reference != nil {
		parts = append(parts, genai.Blob{MIMEType: reference.MIMEType, Data: reference.Data})
	}

	slog.Info("Generating image", "provider", "gemini", "model", c.modelName, "reference", reference != nil)
	resp, err := c.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	img := firstInlineImage(resp)
	if img == nil {
		slog.Warn("No inline image returned from Gemini", "model", c.modelName)
		return "", nil
	}
	return img.DataURI(), nil
}

// responseText joins the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String()
}

// firstInlineImage returns the first inline binary payload across all candidates
func firstInlineImage(resp *genai.GenerateContentResponse) *images.Image {
	if resp == nil {
		return nil
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			blob, ok := part.(genai.Blob)
			if !ok || len(blob.Data) == 0 {
				continue
			}
			mimeType := blob.MIMEType
			if mimeType == "" {
				mimeType = "image/png"
			}
			return &images.Image{MIMEType: mimeType, Data: blob.Data}
		}
	}
	return nil
}
