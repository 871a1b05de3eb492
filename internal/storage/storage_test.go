package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lehigh-university-libraries/comicgen/internal/models"
)

// repository is the surface shared by GormStore and MemoryStore
type repository interface {
	ListComics(ctx context.Context) ([]models.Comic, error)
	CreateComic(ctx context.Context, title, description string) (*models.Comic, error)
	GetComic(ctx context.Context, id string) (*models.Comic, error)
	DeleteComic(ctx context.Context, id string) error
	AddPanel(ctx context.Context, comicID, imageData, caption string, orderIndex int) (*models.Panel, error)
	CreateComicWithPanels(ctx context.Context, title, description string, panels []models.Panel) (*models.Comic, error)
}

// steppingClock returns a time one minute later on every call
func steppingClock() func() time.Time {
	t := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

func newGormStore(t *testing.T) repository {
	t.Helper()
	db, err := Open(Config{Driver: DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	require.NoError(t, Migrate(context.Background(), db))

	store := NewGormStore(db)
	store.now = steppingClock()
	return store
}

func newMemoryStore(t *testing.T) repository {
	store := NewMemoryStore()
	store.now = steppingClock()
	return store
}

var stores = []struct {
	name string
	new  func(t *testing.T) repository
}{
	{name: "gorm", new: newGormStore},
	{name: "memory", new: newMemoryStore},
}

func TestCreateAndGetComic(t *testing.T) {
	for _, s := range stores {
		t.Run(s.name, func(t *testing.T) {
			ctx := context.Background()
			repo := s.new(t)

			created, err := repo.CreateComic(ctx, "T", "D")
			require.NoError(t, err)
			assert.NotEmpty(t, created.ID)
			assert.False(t, created.CreatedAt.IsZero())

			got, err := repo.GetComic(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, created.ID, got.ID)
			assert.Equal(t, "T", got.Title)
			assert.Equal(t, "D", got.Description)
			assert.NotNil(t, got.Panels)
			assert.Empty(t, got.Panels)
		})
	}
}

func TestGetComicNotFound(t *testing.T) {
	for _, s := range stores {
		t.Run(s.name, func(t *testing.T) {
			_, err := s.new(t).GetComic(context.Background(), "missing")
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestPanelsSortedByOrderIndex(t *testing.T) {
	for _, s := range stores {
		t.Run(s.name, func(t *testing.T) {
			ctx := context.Background()
			repo := s.new(t)

			comic, err := repo.CreateComic(ctx, "T", "D")
			require.NoError(t, err)

			for _, idx := range []int{2, 0, 1} {
				panel, err := repo.AddPanel(ctx, comic.ID, "data:image/png;base64,AAAA", "caption", idx)
				require.NoError(t, err)
				assert.Equal(t, comic.ID, panel.ComicID)
				assert.Equal(t, idx, panel.OrderIndex)
			}

			got, err := repo.GetComic(ctx, comic.ID)
			require.NoError(t, err)
			require.Len(t, got.Panels, 3)
			for i, p := range got.Panels {
				assert.Equal(t, i, p.OrderIndex)
			}
		})
	}
}

func TestAddPanelErrors(t *testing.T) {
	for _, s := range stores {
		t.Run(s.name, func(t *testing.T) {
			ctx := context.Background()
			repo := s.new(t)

			_, err := repo.AddPanel(ctx, "missing", "img", "c", 0)
			assert.True(t, errors.Is(err, ErrNotFound))

			comic, err := repo.CreateComic(ctx, "T", "D")
			require.NoError(t, err)
			_, err = repo.AddPanel(ctx, comic.ID, "img", "c", 0)
			require.NoError(t, err)

			_, err = repo.AddPanel(ctx, comic.ID, "img", "again", 0)
			assert.True(t, errors.Is(err, ErrDuplicatePanel))
		})
	}
}

func TestDeleteComicCascades(t *testing.T) {
	for _, s := range stores {
		t.Run(s.name, func(t *testing.T) {
			ctx := context.Background()
			repo := s.new(t)

			comic, err := repo.CreateComic(ctx, "T", "D")
			require.NoError(t, err)
			_, err = repo.AddPanel(ctx, comic.ID, "img", "c", 0)
			require.NoError(t, err)
			other, err := repo.CreateComic(ctx, "Other", "D")
			require.NoError(t, err)
			_, err = repo.AddPanel(ctx, other.ID, "img", "c", 0)
			require.NoError(t, err)

			require.NoError(t, repo.DeleteComic(ctx, comic.ID))

			_, err = repo.GetComic(ctx, comic.ID)
			assert.True(t, errors.Is(err, ErrNotFound))

			assert.True(t, errors.Is(repo.DeleteComic(ctx, comic.ID), ErrNotFound))

			kept, err := repo.GetComic(ctx, other.ID)
			require.NoError(t, err)
			assert.Len(t, kept.Panels, 1)
		})
	}
}

func TestDeleteComicRemovesPanelRows(t *testing.T) {
	ctx := context.Background()
	db, err := Open(Config{Driver: DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	defer Close(db)
	require.NoError(t, Migrate(ctx, db))
	store := NewGormStore(db)

	comic, err := store.CreateComic(ctx, "T", "D")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := store.AddPanel(ctx, comic.ID, "img", "c", i)
		require.NoError(t, err)
	}
	require.NoError(t, store.DeleteComic(ctx, comic.ID))

	var count int64
	require.NoError(t, db.Model(&PanelRecord{}).Where("comic_id = ?", comic.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestListComicsNewestFirstWithoutPanels(t *testing.T) {
	for _, s := range stores {
		t.Run(s.name, func(t *testing.T) {
			ctx := context.Background()
			repo := s.new(t)

			for _, title := range []string{"first", "second", "third"} {
				c, err := repo.CreateComic(ctx, title, "D")
				require.NoError(t, err)
				_, err = repo.AddPanel(ctx, c.ID, "img", "c", 0)
				require.NoError(t, err)
			}

			list, err := repo.ListComics(ctx)
			require.NoError(t, err)
			require.Len(t, list, 3)
			assert.Equal(t, "third", list[0].Title)
			assert.Equal(t, "second", list[1].Title)
			assert.Equal(t, "first", list[2].Title)
			for _, c := range list {
				assert.Nil(t, c.Panels)
			}
		})
	}
}

func TestCreateComicWithPanels(t *testing.T) {
	for _, s := range stores {
		t.Run(s.name, func(t *testing.T) {
			ctx := context.Background()
			repo := s.new(t)

			comic, err := repo.CreateComicWithPanels(ctx, "T", "D", []models.Panel{
				{ImageURL: "a", Caption: "one", OrderIndex: 0},
				{ImageURL: "b", Caption: "two", OrderIndex: 1},
			})
			require.NoError(t, err)
			require.Len(t, comic.Panels, 2)
			for _, p := range comic.Panels {
				assert.Equal(t, comic.ID, p.ComicID)
				assert.NotEmpty(t, p.ID)
			}

			got, err := repo.GetComic(ctx, comic.ID)
			require.NoError(t, err)
			require.Len(t, got.Panels, 2)
			assert.Equal(t, "one", got.Panels[0].Caption)
			assert.Equal(t, "two", got.Panels[1].Caption)
		})
	}
}

func TestCreateComicWithPanelsIsAtomic(t *testing.T) {
	for _, s := range stores {
		t.Run(s.name, func(t *testing.T) {
			ctx := context.Background()
			repo := s.new(t)

			_, err := repo.CreateComicWithPanels(ctx, "T", "D", []models.Panel{
				{ImageURL: "a", Caption: "one", OrderIndex: 0},
				{ImageURL: "b", Caption: "clash", OrderIndex: 0},
			})
			require.Error(t, err)

			list, err := repo.ListComics(ctx)
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle", DSN: "x"})
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "", expected: "comicgen.db?_pragma=foreign_keys(1)"},
		{input: "data.db", expected: "data.db?_pragma=foreign_keys(1)"},
		{input: "file:data.db?cache=shared", expected: "file:data.db?cache=shared&_pragma=foreign_keys(1)"},
		{input: "data.db?_pragma=foreign_keys(0)", expected: "data.db?_pragma=foreign_keys(0)"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sqliteDSN(tt.input))
		})
	}
}

func TestStoreErrorUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := classify("create comic", cause)

	var storeErr *StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "create comic", storeErr.Op)
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, ErrNotFound, classify("get comic", ErrNotFound))
	assert.Nil(t, classify("noop", nil))
}

func TestClassifyConstraintViolations(t *testing.T) {
	assert.Equal(t, ErrDuplicatePanel, classify("add panel", fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey)))
	assert.Equal(t, ErrNotFound, classify("add panel", gorm.ErrForeignKeyViolated))
}

// A concurrent writer can slip a panel in between the duplicate check and the
// insert; the unique index must still surface as ErrDuplicatePanel.
func TestUniqueIndexViolationIsDuplicatePanel(t *testing.T) {
	ctx := context.Background()
	db, err := Open(Config{Driver: DriverSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	require.NoError(t, Migrate(ctx, db))

	store := NewGormStore(db)
	comic, err := store.CreateComic(ctx, "T", "D")
	require.NoError(t, err)
	_, err = store.AddPanel(ctx, comic.ID, "img", "first", 0)
	require.NoError(t, err)

	err = db.WithContext(ctx).Create(&PanelRecord{
		ID:         "racing-panel",
		ComicID:    comic.ID,
		ImageURL:   "img",
		Caption:    "second",
		OrderIndex: 0,
	}).Error
	require.Error(t, err)
	assert.ErrorIs(t, classify("add panel", err), ErrDuplicatePanel)
}
