package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lehigh-university-libraries/comicgen/internal/images"
	"github.com/lehigh-university-libraries/comicgen/internal/metrics"
)

// NewRouter builds the gin engine with all API routes registered
func NewRouter(h *Handler, environment string) *gin.Engine {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger())

	engine.GET("/healthcheck", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api", limitBody(MaxRequestBody))
	api.GET("/comics", h.ListComics)
	api.POST("/comics", h.CreateComic)
	api.GET("/comics/:id", h.GetComic)
	api.DELETE("/comics/:id", h.DeleteComic)
	api.POST("/comics/:id/panels", h.AddPanel)
	api.GET("/comics/:id/export", h.ExportComic)
	api.POST("/generate", h.GenerateComic)
	api.POST("/story", h.GenerateStory)
	api.POST("/images", h.GenerateImage)

	engine.NoRoute(h.HandleStatic)

	return engine
}

// MaxRequestBody fits a base64 data URI of a MaxImageSize image plus the rest of the JSON
const MaxRequestBody = images.MaxImageSize/3*4 + 1<<20

func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)

		metrics.RecordRequest(c.Request.Method, route, strconv.Itoa(status), elapsed.Seconds())
		slog.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", elapsed,
		)
	}
}
