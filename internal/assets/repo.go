package assets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkpress-cms/mediakeeper/pkg/db/models"
	"github.com/inkpress-cms/mediakeeper/pkg/pagination"
)

// Repository persists MediaAsset rows and answers the reference-aware
// queries the cleanup engine depends on.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListFilter narrows asset listings; zero values mean "no filter".
type ListFilter struct {
	Folder  string
	Format  string
	MinSize int64
	MaxSize int64
	From    time.Time
	To      time.Time
}

// FacetCount is one bucket of a group-by aggregation.
type FacetCount struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
	Bytes int64  `json:"bytes"`
}

// OrphanStats aggregates assets with zero references.
type OrphanStats struct {
	Count      int64      `json:"count"`
	TotalBytes int64      `json:"totalBytes"`
	OldestAt   *time.Time `json:"oldestAt,omitempty"`
}

// Totals aggregates the whole asset table.
type Totals struct {
	Count      int64 `json:"count"`
	TotalBytes int64 `json:"totalBytes"`
}

func (r *Repository) Create(ctx context.Context, asset *models.MediaAsset) error {
	if err := r.db.WithContext(ctx).Create(asset).Error; err != nil {
		return fmt.Errorf("create media asset: %w", err)
	}
	return nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.MediaAsset, error) {
	var asset models.MediaAsset
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&asset).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}

func (r *Repository) FindByStorageKey(ctx context.Context, key string) (*models.MediaAsset, error) {
	var asset models.MediaAsset
	if err := r.db.WithContext(ctx).Where("storage_key = ?", key).First(&asset).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}

// FindIDsByStorageKeys resolves storage keys to asset ids, silently skipping
// keys with no metadata row.
func (r *Repository) FindIDsByStorageKeys(ctx context.Context, keys []string) (map[string]uuid.UUID, error) {
	if len(keys) == 0 {
		return map[string]uuid.UUID{}, nil
	}
	var rows []models.MediaAsset
	err := r.db.WithContext(ctx).
		Select("id", "storage_key").
		Where("storage_key IN ?", keys).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("resolve storage keys: %w", err)
	}
	out := make(map[string]uuid.UUID, len(rows))
	for _, row := range rows {
		out[row.StorageKey] = row.ID
	}
	return out, nil
}

// Delete removes the metadata row for one asset.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.MediaAsset{}).Error; err != nil {
		return fmt.Errorf("delete media asset %s: %w", id, err)
	}
	return nil
}

// List returns one cursor page of assets, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter, cur *pagination.Cursor, limit int) ([]models.MediaAsset, error) {
	q := r.applyFilter(r.db.WithContext(ctx).Model(&models.MediaAsset{}), filter)
	if cur != nil {
		q = q.Where("(uploaded_at, id) < (?, ?)", cur.UploadedAt, cur.ID)
	}
	var rows []models.MediaAsset
	err := q.Order("uploaded_at DESC, id DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list media assets: %w", err)
	}
	return rows, nil
}

// Search matches file names and storage keys by substring, with the same
// filters and pagination as List.
func (r *Repository) Search(ctx context.Context, query string, filter ListFilter, cur *pagination.Cursor, limit int) ([]models.MediaAsset, error) {
	q := r.applyFilter(r.db.WithContext(ctx).Model(&models.MediaAsset{}), filter)
	if query != "" {
		pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
		q = q.Where("LOWER(file_name) LIKE ? OR LOWER(storage_key) LIKE ?", pattern, pattern)
	}
	if cur != nil {
		q = q.Where("(uploaded_at, id) < (?, ?)", cur.UploadedAt, cur.ID)
	}
	var rows []models.MediaAsset
	err := q.Order("uploaded_at DESC, id DESC").Limit(limit).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("search media assets: %w", err)
	}
	return rows, nil
}

// Facets aggregates matching assets by the given column ("format" or
// "folder").
func (r *Repository) Facets(ctx context.Context, column, query string, filter ListFilter) ([]FacetCount, error) {
	if column != "format" && column != "folder" {
		return nil, fmt.Errorf("unsupported facet column %q", column)
	}
	q := r.applyFilter(r.db.WithContext(ctx).Model(&models.MediaAsset{}), filter)
	if query != "" {
		pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
		q = q.Where("LOWER(file_name) LIKE ? OR LOWER(storage_key) LIKE ?", pattern, pattern)
	}
	var out []FacetCount
	err := q.Select(column+" AS value, COUNT(*) AS count, COALESCE(SUM(size_bytes), 0) AS bytes").
		Group(column).
		Order("count DESC").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("facet media assets by %s: %w", column, err)
	}
	return out, nil
}

// Orphans returns assets with zero reference rows, uploaded before the
// cutoff, oldest first, capped at limit (0 means no cap).
func (r *Repository) Orphans(ctx context.Context, olderThan time.Time, limit int) ([]models.MediaAsset, error) {
	q := r.db.WithContext(ctx).
		Model(&models.MediaAsset{}).
		Where("NOT EXISTS (SELECT 1 FROM media_references mr WHERE mr.media_id = media_assets.id)").
		Where("uploaded_at < ?", olderThan).
		Order("uploaded_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.MediaAsset
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list orphaned assets: %w", err)
	}
	return rows, nil
}

// OrphanAggregates summarizes all zero-reference assets regardless of age.
func (r *Repository) OrphanAggregates(ctx context.Context) (OrphanStats, error) {
	var row struct {
		Count      int64
		TotalBytes int64
		OldestAt   *time.Time
	}
	err := r.db.WithContext(ctx).
		Model(&models.MediaAsset{}).
		Select("COUNT(*) AS count, COALESCE(SUM(size_bytes), 0) AS total_bytes, MIN(uploaded_at) AS oldest_at").
		Where("NOT EXISTS (SELECT 1 FROM media_references mr WHERE mr.media_id = media_assets.id)").
		Scan(&row).Error
	if err != nil {
		return OrphanStats{}, fmt.Errorf("aggregate orphaned assets: %w", err)
	}
	return OrphanStats{Count: row.Count, TotalBytes: row.TotalBytes, OldestAt: row.OldestAt}, nil
}

// TableTotals summarizes the whole asset table.
func (r *Repository) TableTotals(ctx context.Context) (Totals, error) {
	var row struct {
		Count      int64
		TotalBytes int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.MediaAsset{}).
		Select("COUNT(*) AS count, COALESCE(SUM(size_bytes), 0) AS total_bytes").
		Scan(&row).Error
	if err != nil {
		return Totals{}, fmt.Errorf("aggregate media assets: %w", err)
	}
	return Totals{Count: row.Count, TotalBytes: row.TotalBytes}, nil
}

func (r *Repository) applyFilter(q *gorm.DB, filter ListFilter) *gorm.DB {
	if filter.Folder != "" {
		q = q.Where("folder = ?", filter.Folder)
	}
	if filter.Format != "" {
		q = q.Where("format = ?", filter.Format)
	}
	if filter.MinSize > 0 {
		q = q.Where("size_bytes >= ?", filter.MinSize)
	}
	if filter.MaxSize > 0 {
		q = q.Where("size_bytes <= ?", filter.MaxSize)
	}
	if !filter.From.IsZero() {
		q = q.Where("uploaded_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		q = q.Where("uploaded_at <= ?", filter.To)
	}
	return q
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}
