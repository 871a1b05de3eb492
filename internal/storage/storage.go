package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lehigh-university-libraries/comicgen/internal/models"
)

// MemoryStore keeps comics in process memory. It backs tests and the
// --memory server mode; nothing survives a restart.
type MemoryStore struct {
	comics map[string]*models.Comic
	mu     sync.RWMutex
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		comics: make(map[string]*models.Comic),
		now:    time.Now,
	}
}

func (s *MemoryStore) ListComics(ctx context.Context) ([]models.Comic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.Comic, 0, len(s.comics))
	for _, c := range s.comics {
		comic := *c
		comic.Panels = nil
		result = append(result, comic)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *MemoryStore) CreateComic(ctx context.Context, title, description string) (*models.Comic, error) {
	return s.CreateComicWithPanels(ctx, title, description, nil)
}

func (s *MemoryStore) GetComic(ctx context.Context, id string) (*models.Comic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.comics[id]
	if !exists {
		return nil, ErrNotFound
	}
	comic := *c
	comic.Panels = append([]models.Panel{}, c.Panels...)
	return &comic, nil
}

func (s *MemoryStore) DeleteComic(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.comics[id]; !exists {
		return ErrNotFound
	}
	delete(s.comics, id)
	return nil
}

func (s *MemoryStore) AddPanel(ctx context.Context, comicID, imageData, caption string, orderIndex int) (*models.Panel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, exists := s.comics[comicID]
	if !exists {
		return nil, ErrNotFound
	}
	for _, p := range c.Panels {
		if p.OrderIndex == orderIndex {
			return nil, ErrDuplicatePanel
		}
	}

	panel := models.Panel{
		ID:         uuid.NewString(),
		ComicID:    comicID,
		ImageURL:   imageData,
		Caption:    caption,
		OrderIndex: orderIndex,
	}
	c.Panels = append(c.Panels, panel)
	sortPanels(c.Panels)
	return &panel, nil
}

func (s *MemoryStore) CreateComicWithPanels(ctx context.Context, title, description string, panels []models.Panel) (*models.Comic, error) {
	comic := &models.Comic{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		CreatedAt:   s.now().UTC(),
		Panels:      make([]models.Panel, 0, len(panels)),
	}

	seen := make(map[int]bool, len(panels))
	for _, p := range panels {
		if seen[p.OrderIndex] {
			return nil, ErrDuplicatePanel
		}
		seen[p.OrderIndex] = true
		p.ID = uuid.NewString()
		p.ComicID = comic.ID
		comic.Panels = append(comic.Panels, p)
	}
	sortPanels(comic.Panels)

	s.mu.Lock()
	s.comics[comic.ID] = comic
	s.mu.Unlock()

	result := *comic
	result.Panels = append([]models.Panel{}, comic.Panels...)
	return &result, nil
}

func sortPanels(panels []models.Panel) {
	sort.SliceStable(panels, func(i, j int) bool {
		return panels[i].OrderIndex < panels[j].OrderIndex
	})
}
