package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lehigh-university-libraries/comicgen/internal/comics"
	"github.com/lehigh-university-libraries/comicgen/internal/images"
	"github.com/lehigh-university-libraries/comicgen/internal/storage"
)

const generationFailedMessage = "Failed to generate comic. Please try again."

type generateComicRequest struct {
	Prompt         string `json:"prompt" binding:"required"`
	Language       string `json:"language"`
	ReferenceImage string `json:"reference_image"`
}

type storyRequest struct {
	Prompt   string `json:"prompt" binding:"required"`
	Language string `json:"language"`
}

type imageRequest struct {
	Description    string `json:"description" binding:"required"`
	ReferenceImage string `json:"reference_image"`
}

type imageResponse struct {
	ImageURL string `json:"image_url"`
}

// GenerateComic runs the server side creation workflow and returns the complete comic
func (h *Handler) GenerateComic(c *gin.Context) {
	var req generateComicRequest
	if !h.bindJSON(c, &req) {
		return
	}

	reference, ok := h.resolveReference(c, req.ReferenceImage)
	if !ok {
		return
	}

	comic, err := h.service.Generate(c.Request.Context(), comics.GenerateRequest{
		Prompt:    req.Prompt,
		Language:  req.Language,
		Reference: reference,
	})
	if err != nil {
		slog.Error("Comic generation failed", "err", err)
		var storeErr *storage.StoreError
		switch {
		case errors.Is(err, comics.ErrEmptyStory), errors.Is(err, comics.ErrImageMissing):
			h.writeError(c, generationFailedMessage, http.StatusUnprocessableEntity)
		case errors.As(err, &storeErr):
			h.writeError(c, "Internal server error", http.StatusInternalServerError)
		default:
			h.writeError(c, generationFailedMessage, http.StatusBadGateway)
		}
		return
	}
	c.JSON(http.StatusCreated, comic)
}

// GenerateStory proxies story generation so the browser never holds the API key
func (h *Handler) GenerateStory(c *gin.Context) {
	var req storyRequest
	if !h.bindJSON(c, &req) {
		return
	}

	story, err := h.service.GenerateStory(c.Request.Context(), req.Prompt, req.Language)
	if err != nil {
		slog.Error("Story generation failed", "err", err)
		h.writeError(c, "Failed to generate story", http.StatusBadGateway)
		return
	}
	c.JSON(http.StatusOK, story)
}

// GenerateImage proxies image generation for a single panel
func (h *Handler) GenerateImage(c *gin.Context) {
	var req imageRequest
	if !h.bindJSON(c, &req) {
		return
	}

	reference, ok := h.resolveReference(c, req.ReferenceImage)
	if !ok {
		return
	}

	dataURI, err := h.service.GenerateImage(c.Request.Context(), req.Description, reference)
	if err != nil {
		slog.Error("Image generation failed", "err", err)
		h.writeError(c, "Failed to generate image", http.StatusBadGateway)
		return
	}
	if dataURI == "" {
		h.writeError(c, "No image was returned", http.StatusUnprocessableEntity)
		return
	}
	c.JSON(http.StatusOK, imageResponse{ImageURL: dataURI})
}

func (h *Handler) resolveReference(c *gin.Context, ref string) (*images.Image, bool) {
	reference, err := h.fetcher.Resolve(c.Request.Context(), ref)
	if err != nil {
		h.writeError(c, "Invalid reference_image: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return reference, true
}
