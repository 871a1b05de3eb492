package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// HandleStatic serves the GUI bundle for any route not matched by the API
func (h *Handler) HandleStatic(c *gin.Context) {
	path := c.Request.URL.Path
	if strings.HasPrefix(path, "/api/") {
		h.writeError(c, "Not found", http.StatusNotFound)
		return
	}
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		h.writeError(c, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Prevent directory traversal attacks
	if strings.Contains(path, "..") {
		h.writeError(c, "Invalid file path", http.StatusBadRequest)
		return
	}

	filePath := strings.TrimPrefix(path, "/")
	if filePath == "" {
		filePath = "index.html"
	}

	fullPath := filepath.Join(h.staticDir, filepath.FromSlash(filePath))
	if info, err := os.Stat(fullPath); err != nil || info.IsDir() {
		// client side routes fall back to the app shell
		fullPath = filepath.Join(h.staticDir, "index.html")
		if _, err := os.Stat(fullPath); err != nil {
			h.writeError(c, "Not found", http.StatusNotFound)
			return
		}
	}

	c.File(fullPath)
}
