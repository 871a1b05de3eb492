package providers

import (
	"context"

	"github.com/lehigh-university-libraries/comicgen/internal/images"
	"github.com/lehigh-university-libraries/comicgen/internal/models"
)

// Config represents the configuration for an LLM provider
type Config struct {
	Model       string
	Temperature float64
	PanelCount  int
}

// StoryGenerator turns a free-text prompt into a structured story outline.
//
// Implementations recover locally from unparseable output and return a
// degraded story (see DegradeStory). Only transport failures are errors.
type StoryGenerator interface {
	GenerateStory(ctx context.Context, prompt, language string) (*models.Story, error)
}

// ImageGenerator renders a visual description, optionally guided by a
// reference image, into a data URI. An empty string with a nil error means
// the provider returned no inline image.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, description string, reference *images.Image) (string, error)
}
