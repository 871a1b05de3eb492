package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lehigh-university-libraries/comicgen/internal/comics"
	"github.com/lehigh-university-libraries/comicgen/internal/images"
	"github.com/lehigh-university-libraries/comicgen/internal/models"
	"github.com/lehigh-university-libraries/comicgen/internal/storage"
)

// ComicService is the domain surface the HTTP layer depends on
type ComicService interface {
	ListComics(ctx context.Context) ([]models.Comic, error)
	CreateComic(ctx context.Context, title, description string) (*models.Comic, error)
	GetComic(ctx context.Context, id string) (*models.Comic, error)
	DeleteComic(ctx context.Context, id string) error
	AddPanel(ctx context.Context, comicID, imageData, caption string, orderIndex int) (*models.Panel, error)
	Generate(ctx context.Context, req comics.GenerateRequest) (*models.Comic, error)
	GenerateStory(ctx context.Context, prompt, language string) (*models.Story, error)
	GenerateImage(ctx context.Context, description string, reference *images.Image) (string, error)
}

type Handler struct {
	service   ComicService
	fetcher   *images.Fetcher
	staticDir string
}

func New(service ComicService, staticDir string) *Handler {
	return &Handler{
		service:   service,
		fetcher:   images.NewFetcher(),
		staticDir: staticDir,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// Response helpers
func (h *Handler) writeError(c *gin.Context, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message, "path", c.Request.URL.Path)
	} else {
		slog.Warn(message, "path", c.Request.URL.Path, "status", code)
	}
	c.AbortWithStatusJSON(code, errorResponse{Error: message})
}

// bindJSON decodes the request body, answering 413 when it exceeds the body limit
func (h *Handler) bindJSON(c *gin.Context, v any) bool {
	err := c.ShouldBindJSON(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.writeError(c, fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
		return false
	}
	h.writeError(c, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
	return false
}

// writeStoreError maps repository errors onto HTTP status codes
func (h *Handler) writeStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		h.writeError(c, "Comic not found", http.StatusNotFound)
	case errors.Is(err, storage.ErrDuplicatePanel):
		h.writeError(c, "A panel with this order_index already exists", http.StatusConflict)
	default:
		slog.Error("Store operation failed", "err", err)
		h.writeError(c, "Internal server error", http.StatusInternalServerError)
	}
}

// Comic helpers
func (h *Handler) getComicOrError(c *gin.Context, comicID string) (*models.Comic, bool) {
	comic, err := h.service.GetComic(c.Request.Context(), comicID)
	if err != nil {
		h.writeStoreError(c, err)
		return nil, false
	}
	return comic, true
}
