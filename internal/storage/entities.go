package storage

import (
	"time"

	"github.com/lehigh-university-libraries/comicgen/internal/models"
)

// ComicRecord is the persisted representation of a comic
type ComicRecord struct {
	ID          string        `gorm:"type:varchar(36);primaryKey"`
	Title       string        `gorm:"type:text;not null"`
	Description string        `gorm:"type:text;not null"`
	CreatedAt   time.Time     `gorm:"not null;index"`
	Panels      []PanelRecord `gorm:"foreignKey:ComicID;references:ID;constraint:OnDelete:CASCADE"`
}

func (ComicRecord) TableName() string {
	return "comics"
}

// PanelRecord is the persisted representation of a panel
type PanelRecord struct {
	ID         string `gorm:"type:varchar(36);primaryKey"`
	ComicID    string `gorm:"type:varchar(36);not null;uniqueIndex:idx_panels_comic_order,priority:1"`
	ImageURL   string `gorm:"type:text;not null"`
	Caption    string `gorm:"type:text;not null"`
	OrderIndex int    `gorm:"not null;uniqueIndex:idx_panels_comic_order,priority:2"`
}

func (PanelRecord) TableName() string {
	return "panels"
}

func (r *ComicRecord) toModel() models.Comic {
	comic := models.Comic{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
	}
	comic.Panels = make([]models.Panel, 0, len(r.Panels))
	for i := range r.Panels {
		comic.Panels = append(comic.Panels, r.Panels[i].toModel())
	}
	return comic
}

func (r *PanelRecord) toModel() models.Panel {
	return models.Panel{
		ID:         r.ID,
		ComicID:    r.ComicID,
		ImageURL:   r.ImageURL,
		Caption:    r.Caption,
		OrderIndex: r.OrderIndex,
	}
}
