package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lehigh-university-libraries/comicgen/internal/models"
)

// GormStore persists comics and panels through GORM
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore creates a repository backed by the provided DB
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

// ListComics returns all comics without panels, newest first
func (s *GormStore) ListComics(ctx context.Context) ([]models.Comic, error) {
	var records []ComicRecord
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, classify("list comics", err)
	}

	comics := make([]models.Comic, 0, len(records))
	for i := range records {
		comic := records[i].toModel()
		comic.Panels = nil // not loaded
		comics = append(comics, comic)
	}
	return comics, nil
}

// CreateComic inserts a comic with a fresh id
func (s *GormStore) CreateComic(ctx context.Context, title, description string) (*models.Comic, error) {
	record := ComicRecord{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Omit("Panels").Create(&record).Error; err != nil {
		return nil, classify("create comic", err)
	}

	comic := record.toModel()
	return &comic, nil
}

// GetComic returns a comic with its panels ordered by order_index
func (s *GormStore) GetComic(ctx context.Context, id string) (*models.Comic, error) {
	var record ComicRecord
	err := s.db.WithContext(ctx).
		Preload("Panels", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC")
		}).
		First(&record, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, classify("get comic", err)
	}

	comic := record.toModel()
	return &comic, nil
}

// DeleteComic removes a comic's panels and then the comic itself
func (s *GormStore) DeleteComic(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("comic_id = ?", id).Delete(&PanelRecord{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&ComicRecord{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	return classify("delete comic", err)
}

// AddPanel appends a panel to an existing comic
func (s *GormStore) AddPanel(ctx context.Context, comicID, imageData, caption string, orderIndex int) (*models.Panel, error) {
	record := PanelRecord{
		ID:         uuid.NewString(),
		ComicID:    comicID,
		ImageURL:   imageData,
		Caption:    caption,
		OrderIndex: orderIndex,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comics int64
		if err := tx.Model(&ComicRecord{}).Where("id = ?", comicID).Count(&comics).Error; err != nil {
			return err
		}
		if comics == 0 {
			return ErrNotFound
		}

		var taken int64
		if err := tx.Model(&PanelRecord{}).
			Where("comic_id = ? AND order_index = ?", comicID, orderIndex).
			Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return ErrDuplicatePanel
		}

		return tx.Create(&record).Error
	})
	if err != nil {
		return nil, classify("add panel", err)
	}

	panel := record.toModel()
	return &panel, nil
}

// CreateComicWithPanels writes a comic and all its panels in one transaction
func (s *GormStore) CreateComicWithPanels(ctx context.Context, title, description string, panels []models.Panel) (*models.Comic, error) {
	record := ComicRecord{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		CreatedAt:   s.now().UTC(),
	}
	panelRecords := make([]PanelRecord, 0, len(panels))
	for _, p := range panels {
		panelRecords = append(panelRecords, PanelRecord{
			ID:         uuid.NewString(),
			ComicID:    record.ID,
			ImageURL:   p.ImageURL,
			Caption:    p.Caption,
			OrderIndex: p.OrderIndex,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Panels").Create(&record).Error; err != nil {
			return err
		}
		if len(panelRecords) == 0 {
			return nil
		}
		return tx.Create(&panelRecords).Error
	})
	if err != nil {
		return nil, classify("create comic with panels", err)
	}

	record.Panels = panelRecords
	comic := record.toModel()
	return &comic, nil
}
