package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/comicgen/internal/images"
	"github.com/lehigh-university-libraries/comicgen/internal/models"
)

const (
	FormatYAML    = "yaml"
	FormatParquet = "parquet"
)

// Manifest is the YAML representation of an exported comic
type Manifest struct {
	ID          string          `yaml:"id"`
	Title       string          `yaml:"title"`
	Description string          `yaml:"description"`
	CreatedAt   string          `yaml:"created_at"`
	Panels      []ManifestPanel `yaml:"panels"`
}

// ManifestPanel is one panel entry in a Manifest
type ManifestPanel struct {
	OrderIndex int    `yaml:"order_index"`
	Caption    string `yaml:"caption"`
	ImageURL   string `yaml:"image_url"`
}

// PanelRow is one row of a Parquet export
type PanelRow struct {
	ComicID    string `parquet:"comic_id"`
	ComicTitle string `parquet:"comic_title"`
	OrderIndex int64  `parquet:"order_index"`
	Caption    string `parquet:"caption"`
	MIMEType   string `parquet:"mime_type"`
	Image      []byte `parquet:"image"`
}

// ContentType returns the MIME type and file extension for an export format
func ContentType(format string) (string, string, error) {
	switch normalize(format) {
	case FormatYAML:
		return "application/yaml", ".yaml", nil
	case FormatParquet:
		return "application/vnd.apache.parquet", ".parquet", nil
	default:
		return "", "", fmt.Errorf("unsupported export format: %q", format)
	}
}

// Write encodes the comic in the requested format
func Write(w io.Writer, comic *models.Comic, format string) error {
	switch normalize(format) {
	case FormatYAML:
		return WriteYAML(w, comic)
	case FormatParquet:
		return WriteParquet(w, comic)
	default:
		return fmt.Errorf("unsupported export format: %q", format)
	}
}

// WriteYAML writes a human readable manifest of the comic
func WriteYAML(w io.Writer, comic *models.Comic) error {
	manifest := Manifest{
		ID:          comic.ID,
		Title:       comic.Title,
		Description: comic.Description,
		CreatedAt:   comic.CreatedAt.UTC().Format(time.RFC3339),
		Panels:      make([]ManifestPanel, 0, len(comic.Panels)),
	}
	for _, p := range comic.Panels {
		manifest.Panels = append(manifest.Panels, ManifestPanel{
			OrderIndex: p.OrderIndex,
			Caption:    p.Caption,
			ImageURL:   p.ImageURL,
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(manifest); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}

// WriteParquet writes one row per panel with the decoded image bytes
func WriteParquet(w io.Writer, comic *models.Comic) error {
	rows := make([]PanelRow, 0, len(comic.Panels))
	for _, p := range comic.Panels {
		row := PanelRow{
			ComicID:    comic.ID,
			ComicTitle: comic.Title,
			OrderIndex: int64(p.OrderIndex),
			Caption:    p.Caption,
		}
		// panels added through the API may carry arbitrary text instead of a data URI
		if img, err := images.ParseDataURI(p.ImageURL); err == nil {
			row.MIMEType = img.MIMEType
			row.Image = img.Data
		}
		rows = append(rows, row)
	}

	writer := parquet.NewGenericWriter[PanelRow](w)
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

func normalize(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "", "yml":
		return FormatYAML
	}
	return format
}
