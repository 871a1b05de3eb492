package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"gorm.io/gorm"

	"github.com/lehigh-university-libraries/comicgen/internal/comics"
	"github.com/lehigh-university-libraries/comicgen/internal/config"
	"github.com/lehigh-university-libraries/comicgen/internal/gemini"
	"github.com/lehigh-university-libraries/comicgen/internal/ollama"
	"github.com/lehigh-university-libraries/comicgen/internal/openai"
	"github.com/lehigh-university-libraries/comicgen/internal/providers"
	"github.com/lehigh-university-libraries/comicgen/internal/storage"
)

// app holds the process wide resources shared by commands
type app struct {
	service *comics.Service
	db      *gorm.DB
	closers []io.Closer
}

type appOptions struct {
	memory bool // keep comics in memory instead of the database
	withAI bool // construct story and image generators
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	a := &app{}

	var repo comics.Repository
	if opts.memory {
		slog.Warn("Using in-memory store, comics will not survive a restart")
		repo = storage.NewMemoryStore()
	} else {
		db, err := storage.Open(cfg.Database())
		if err != nil {
			return nil, err
		}
		a.db = db
		if err := storage.Migrate(ctx, db); err != nil {
			a.Close()
			return nil, err
		}
		repo = storage.NewGormStore(db)
	}

	var (
		stories providers.StoryGenerator
		imgs    providers.ImageGenerator
	)
	if opts.withAI {
		var err error
		stories, imgs, err = a.buildGenerators(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	a.service = comics.NewService(repo, stories, imgs,
		comics.WithDefaultLanguage(cfg.DefaultLanguage),
		comics.WithImageInterval(cfg.ImageRateInterval),
	)
	return a, nil
}

func (a *app) buildGenerators(ctx context.Context, cfg *config.Config) (providers.StoryGenerator, providers.ImageGenerator, error) {
	storyConfig := providers.Config{
		Model:       cfg.StoryModel,
		Temperature: cfg.Temperature,
		PanelCount:  cfg.PanelCount,
	}

	var openaiClient *openai.OpenAI
	getOpenAI := func() (*openai.OpenAI, error) {
		if openaiClient != nil {
			return openaiClient, nil
		}
		var err error
		openaiClient, err = openai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, storyConfig, cfg.ImageModel)
		return openaiClient, err
	}

	var stories providers.StoryGenerator
	switch cfg.StoryProvider {
	case "gemini":
		client, err := gemini.NewStoryClient(ctx, cfg.GeminiAPIKey, storyConfig)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, client)
		stories = client
	case "openai":
		client, err := getOpenAI()
		if err != nil {
			return nil, nil, err
		}
		stories = client
	case "ollama":
		stories = ollama.New(cfg.OllamaURL, storyConfig)
	default:
		return nil, nil, fmt.Errorf("unsupported story provider: %s", cfg.StoryProvider)
	}

	var imgs providers.ImageGenerator
	switch cfg.ImageProvider {
	case "gemini":
		client, err := gemini.NewImageClient(ctx, cfg.GeminiAPIKey, providers.Config{
			Model:       cfg.ImageModel,
			Temperature: cfg.Temperature,
		})
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, client)
		imgs = client
	case "openai":
		client, err := getOpenAI()
		if err != nil {
			return nil, nil, err
		}
		imgs = client
	default:
		return nil, nil, fmt.Errorf("unsupported image provider: %s", cfg.ImageProvider)
	}

	slog.Info("AI providers ready", "story", cfg.StoryProvider, "image", cfg.ImageProvider)
	return stories, imgs, nil
}

// Close releases provider clients and the database pool
func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	if a.db != nil {
		errs = append(errs, storage.Close(a.db))
	}
	return errors.Join(errs...)
}
