package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type createComicRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// comicSummary is a comic as listed, without its panels
type comicSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type addPanelRequest struct {
	ImageURL   string `json:"image_url"`
	Caption    string `json:"caption"`
	OrderIndex *int   `json:"order_index" binding:"required"`
}

func (h *Handler) ListComics(c *gin.Context) {
	comics, err := h.service.ListComics(c.Request.Context())
	if err != nil {
		h.writeStoreError(c, err)
		return
	}
	summaries := make([]comicSummary, 0, len(comics))
	for _, comic := range comics {
		summaries = append(summaries, comicSummary{
			ID:          comic.ID,
			Title:       comic.Title,
			Description: comic.Description,
			CreatedAt:   comic.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, summaries)
}

func (h *Handler) CreateComic(c *gin.Context) {
	var req createComicRequest
	if !h.bindJSON(c, &req) {
		return
	}

	comic, err := h.service.CreateComic(c.Request.Context(), req.Title, req.Description)
	if err != nil {
		h.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comic)
}

func (h *Handler) GetComic(c *gin.Context) {
	comic, ok := h.getComicOrError(c, c.Param("id"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, comic)
}

func (h *Handler) DeleteComic(c *gin.Context) {
	if err := h.service.DeleteComic(c.Request.Context(), c.Param("id")); err != nil {
		h.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) AddPanel(c *gin.Context) {
	comicID := c.Param("id")

	var req addPanelRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if *req.OrderIndex < 0 {
		h.writeError(c, "order_index must not be negative", http.StatusBadRequest)
		return
	}

	if _, ok := h.getComicOrError(c, comicID); !ok {
		return
	}

	panel, err := h.service.AddPanel(c.Request.Context(), comicID, req.ImageURL, req.Caption, *req.OrderIndex)
	if err != nil {
		h.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, panel)
}
