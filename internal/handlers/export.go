package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lehigh-university-libraries/comicgen/internal/export"
)

func (h *Handler) ExportComic(c *gin.Context) {
	format := c.DefaultQuery("format", export.FormatYAML)
	contentType, ext, err := export.ContentType(format)
	if err != nil {
		h.writeError(c, err.Error(), http.StatusBadRequest)
		return
	}

	comic, ok := h.getComicOrError(c, c.Param("id"))
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, comic, format); err != nil {
		h.writeError(c, "Failed to export comic: "+err.Error(), http.StatusInternalServerError)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="comic-%s%s"`, comic.ID, ext))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
