package comics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/lehigh-university-libraries/comicgen/internal/images"
	"github.com/lehigh-university-libraries/comicgen/internal/metrics"
	"github.com/lehigh-university-libraries/comicgen/internal/models"
	"github.com/lehigh-university-libraries/comicgen/internal/providers"
	"github.com/lehigh-university-libraries/comicgen/internal/storage"
)

var (
	// ErrEmptyStory is returned when story generation yields no panels
	ErrEmptyStory = errors.New("story generation returned no panels")

	// ErrImageMissing is returned when image generation yields no inline image
	ErrImageMissing = errors.New("image generation returned no image")
)

// Repository exposes data access for comics and their panels
type Repository interface {
	ListComics(ctx context.Context) ([]models.Comic, error)
	CreateComic(ctx context.Context, title, description string) (*models.Comic, error)
	GetComic(ctx context.Context, id string) (*models.Comic, error)
	DeleteComic(ctx context.Context, id string) error
	AddPanel(ctx context.Context, comicID, imageData, caption string, orderIndex int) (*models.Panel, error)
	CreateComicWithPanels(ctx context.Context, title, description string, panels []models.Panel) (*models.Comic, error)
}

// GenerateRequest is the input of the server side creation workflow
type GenerateRequest struct {
	Prompt    string
	Language  string
	Reference *images.Image
}

// Service wires the repository with the story and image generators
type Service struct {
	repo            Repository
	stories         providers.StoryGenerator
	images          providers.ImageGenerator
	limiter         *rate.Limiter
	defaultLanguage string
}

// Option customises a Service
type Option func(*Service)

// WithImageInterval spaces consecutive image generation calls by at least d
func WithImageInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithDefaultLanguage sets the language used when a request names none
func WithDefaultLanguage(lang string) Option {
	return func(s *Service) {
		if lang != "" {
			s.defaultLanguage = lang
		}
	}
}

// NewService builds a Service. stories and images may be nil when the
// caller only needs the CRUD operations.
func NewService(repo Repository, stories providers.StoryGenerator, imgs providers.ImageGenerator, opts ...Option) *Service {
	s := &Service{
		repo:            repo,
		stories:         stories,
		images:          imgs,
		defaultLanguage: "en",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) ListComics(ctx context.Context) ([]models.Comic, error) {
	return s.repo.ListComics(ctx)
}

func (s *Service) CreateComic(ctx context.Context, title, description string) (*models.Comic, error) {
	return s.repo.CreateComic(ctx, title, description)
}

func (s *Service) GetComic(ctx context.Context, id string) (*models.Comic, error) {
	return s.repo.GetComic(ctx, id)
}

// DeleteComic removes a comic and its panels. Deleting a missing comic succeeds.
func (s *Service) DeleteComic(ctx context.Context, id string) error {
	err := s.repo.DeleteComic(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		slog.Debug("Delete of missing comic ignored", "comic_id", id)
		return nil
	}
	return err
}

func (s *Service) AddPanel(ctx context.Context, comicID, imageData, caption string, orderIndex int) (*models.Panel, error) {
	return s.repo.AddPanel(ctx, comicID, imageData, caption, orderIndex)
}

// GenerateStory proxies story generation, applying the default language
func (s *Service) GenerateStory(ctx context.Context, prompt, language string) (*models.Story, error) {
	if s.stories == nil {
		return nil, errors.New("story generation is not configured")
	}
	if language == "" {
		language = s.defaultLanguage
	}

	start := time.Now()
	story, err := s.stories.GenerateStory(ctx, prompt, language)
	metrics.RecordGeneration("story", outcome(err, story != nil && len(story.Panels) > 0), time.Since(start).Seconds())
	return story, err
}

// GenerateImage proxies image generation, honouring the configured rate limit
func (s *Service) GenerateImage(ctx context.Context, description string, reference *images.Image) (string, error) {
	if s.images == nil {
		return "", errors.New("image generation is not configured")
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	start := time.Now()
	dataURI, err := s.images.GenerateImage(ctx, description, reference)
	metrics.RecordGeneration("image", outcome(err, dataURI != ""), time.Since(start).Seconds())
	return dataURI, err
}

// Generate runs the full creation workflow: story, then one image per panel
// in order, then a single atomic write of the comic with all its panels.
// On any failure no comic record is left behind.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*models.Comic, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, errors.New("prompt is required")
	}

	story, err := s.GenerateStory(ctx, prompt, req.Language)
	if err != nil {
		metrics.RecordComic("failed")
		return nil, fmt.Errorf("failed to generate story: %w", err)
	}
	if len(story.Panels) == 0 {
		metrics.RecordComic("empty_story")
		return nil, ErrEmptyStory
	}

	slog.Info("Story generated", "title", story.Title, "panels", len(story.Panels))

	panels := make([]models.Panel, 0, len(story.Panels))
	for i, sp := range story.Panels {
		if err := ctx.Err(); err != nil {
			metrics.RecordComic("cancelled")
			return nil, err
		}

		dataURI, err := s.GenerateImage(ctx, sp.VisualDescription, req.Reference)
		if err != nil {
			metrics.RecordComic("failed")
			return nil, fmt.Errorf("failed to generate image for panel %d: %w", i, err)
		}
		if dataURI == "" {
			metrics.RecordComic("failed")
			return nil, fmt.Errorf("panel %d: %w", i, ErrImageMissing)
		}

		panels = append(panels, models.Panel{
			ImageURL:   dataURI,
			Caption:    sp.Caption,
			OrderIndex: i,
		})
		slog.Info("Panel image generated", "panel", i+1, "of", len(story.Panels))
	}

	comic, err := s.repo.CreateComicWithPanels(ctx, story.Title, prompt, panels)
	if err != nil {
		metrics.RecordComic("failed")
		return nil, err
	}

	metrics.RecordComic("created")
	slog.Info("Comic created", "comic_id", comic.ID, "panels", len(comic.Panels))
	return comic, nil
}

func outcome(err error, produced bool) string {
	switch {
	case err != nil:
		return "error"
	case !produced:
		return "empty"
	default:
		return "success"
	}
}
