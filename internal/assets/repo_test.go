package assets

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/inkpress-cms/mediakeeper/pkg/db/models"
	"github.com/inkpress-cms/mediakeeper/pkg/enums"
)

func setupAssetTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	mediaAssets := `
CREATE TABLE IF NOT EXISTS media_assets (
  id TEXT PRIMARY KEY,
  storage_key TEXT NOT NULL UNIQUE,
  url TEXT NOT NULL,
  file_name TEXT NOT NULL,
  original_file_name TEXT,
  size_bytes INTEGER NOT NULL,
  width INTEGER,
  height INTEGER,
  format TEXT NOT NULL,
  folder TEXT NOT NULL,
  uploaded_by TEXT,
  uploaded_at DATETIME,
  metadata TEXT
);`
	mediaReferences := `
CREATE TABLE IF NOT EXISTS media_references (
  id TEXT PRIMARY KEY,
  media_id TEXT NOT NULL,
  content_type TEXT NOT NULL,
  content_id TEXT NOT NULL,
  reference_context TEXT NOT NULL,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(mediaAssets).Error)
	require.NoError(t, db.Exec(mediaReferences).Error)
	return db
}

func seedAsset(t *testing.T, db *gorm.DB, key, folder, format string, size int64, uploadedAt time.Time) models.MediaAsset {
	t.Helper()
	asset := models.MediaAsset{
		ID:         uuid.New(),
		StorageKey: key,
		URL:        "https://storage.googleapis.com/test/" + key,
		FileName:   key,
		SizeBytes:  size,
		Format:     format,
		Folder:     folder,
		UploadedAt: uploadedAt,
	}
	require.NoError(t, db.Create(&asset).Error)
	return asset
}

func seedReference(t *testing.T, db *gorm.DB, mediaID uuid.UUID) {
	t.Helper()
	ref := models.MediaReference{
		ID:               uuid.New(),
		MediaID:          mediaID,
		ContentType:      enums.ContentTypeArticle,
		ContentID:        uuid.New(),
		ReferenceContext: enums.ReferenceContextContent,
	}
	require.NoError(t, db.Create(&ref).Error)
}

func TestOrphansExcludesReferencedAssets(t *testing.T) {
	db := setupAssetTestDB(t)
	repo := NewRepository(db)
	old := time.Now().Add(-72 * time.Hour)

	orphan := seedAsset(t, db, "uploads/orphan.jpg", "uploads", "jpg", 1024, old)
	referenced := seedAsset(t, db, "uploads/used.jpg", "uploads", "jpg", 2048, old)
	seedReference(t, db, referenced.ID)

	rows, err := repo.Orphans(context.Background(), time.Now(), 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, orphan.StorageKey, rows[0].StorageKey)
}

func TestOrphansRespectsCutoffAndLimit(t *testing.T) {
	db := setupAssetTestDB(t)
	repo := NewRepository(db)

	oldest := seedAsset(t, db, "uploads/oldest.jpg", "uploads", "jpg", 1, time.Now().Add(-96*time.Hour))
	seedAsset(t, db, "uploads/older.jpg", "uploads", "jpg", 1, time.Now().Add(-48*time.Hour))
	seedAsset(t, db, "uploads/fresh.jpg", "uploads", "jpg", 1, time.Now().Add(-time.Minute))

	cutoff := time.Now().Add(-24 * time.Hour)
	rows, err := repo.Orphans(context.Background(), cutoff, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1, "limit should cap the batch")
	require.Equal(t, oldest.StorageKey, rows[0].StorageKey, "oldest first")
}

func TestOrphanAggregates(t *testing.T) {
	db := setupAssetTestDB(t)
	repo := NewRepository(db)
	old := time.Now().Add(-72 * time.Hour).UTC()

	seedAsset(t, db, "uploads/a.jpg", "uploads", "jpg", 1000, old)
	seedAsset(t, db, "uploads/b.jpg", "uploads", "jpg", 500, time.Now().UTC())
	referenced := seedAsset(t, db, "uploads/c.jpg", "uploads", "jpg", 9999, old)
	seedReference(t, db, referenced.ID)

	stats, err := repo.OrphanAggregates(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.Count)
	require.Equal(t, int64(1500), stats.TotalBytes)
	require.NotNil(t, stats.OldestAt)

	totals, err := repo.TableTotals(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), totals.Count)
	require.Equal(t, int64(11499), totals.TotalBytes)
}

func TestFindIDsByStorageKeysSkipsUnknown(t *testing.T) {
	db := setupAssetTestDB(t)
	repo := NewRepository(db)

	known := seedAsset(t, db, "uploads/known.jpg", "uploads", "jpg", 1, time.Now())

	out, err := repo.FindIDsByStorageKeys(context.Background(), []string{"uploads/known.jpg", "uploads/missing.jpg"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, known.ID, out["uploads/known.jpg"])

	empty, err := repo.FindIDsByStorageKeys(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestFacetsGroupsByColumn(t *testing.T) {
	db := setupAssetTestDB(t)
	repo := NewRepository(db)
	now := time.Now()

	seedAsset(t, db, "uploads/a.jpg", "uploads", "jpg", 100, now)
	seedAsset(t, db, "uploads/b.jpg", "uploads", "jpg", 200, now)
	seedAsset(t, db, "articles/c.png", "articles", "png", 300, now)

	facets, err := repo.Facets(context.Background(), "format", "", ListFilter{})
	require.NoError(t, err)
	require.Len(t, facets, 2)
	require.Equal(t, "jpg", facets[0].Value)
	require.Equal(t, int64(2), facets[0].Count)
	require.Equal(t, int64(300), facets[0].Bytes)

	_, err = repo.Facets(context.Background(), "size_bytes; DROP TABLE media_assets", "", ListFilter{})
	require.Error(t, err, "unsupported facet columns must be rejected")
}

func TestListAppliesFilters(t *testing.T) {
	db := setupAssetTestDB(t)
	repo := NewRepository(db)
	now := time.Now()

	seedAsset(t, db, "uploads/small.jpg", "uploads", "jpg", 100, now.Add(-time.Hour))
	seedAsset(t, db, "uploads/big.jpg", "uploads", "jpg", 5000, now.Add(-2*time.Hour))
	seedAsset(t, db, "articles/other.png", "articles", "png", 100, now.Add(-3*time.Hour))

	rows, err := repo.List(context.Background(), ListFilter{Folder: "uploads", MaxSize: 1000}, nil, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "uploads/small.jpg", rows[0].StorageKey)
}
