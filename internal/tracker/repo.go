package tracker

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkpress-cms/mediakeeper/pkg/db/models"
	"github.com/inkpress-cms/mediakeeper/pkg/enums"
)

// Repository persists MediaReference rows, the edges of the reference graph.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListForTriple returns the stored references for one
// (contentType, contentID, referenceContext) triple.
func (r *Repository) ListForTriple(ctx context.Context, contentType enums.ContentType, contentID uuid.UUID, refContext enums.ReferenceContext) ([]models.MediaReference, error) {
	var refs []models.MediaReference
	err := r.db.WithContext(ctx).
		Where("content_type = ? AND content_id = ? AND reference_context = ?", contentType, contentID, refContext).
		Find(&refs).Error
	if err != nil {
		return nil, fmt.Errorf("list references for %s/%s: %w", contentType, contentID, err)
	}
	return refs, nil
}

// ListByMediaID returns every reference pointing at one asset, newest first.
func (r *Repository) ListByMediaID(ctx context.Context, mediaID uuid.UUID) ([]models.MediaReference, error) {
	var refs []models.MediaReference
	err := r.db.WithContext(ctx).
		Where("media_id = ?", mediaID).
		Order("created_at DESC").
		Find(&refs).Error
	if err != nil {
		return nil, fmt.Errorf("list references for media %s: %w", mediaID, err)
	}
	return refs, nil
}

// CountByMediaID reports how many content items still reference the asset.
func (r *Repository) CountByMediaID(ctx context.Context, mediaID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.MediaReference{}).
		Where("media_id = ?", mediaID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count references for media %s: %w", mediaID, err)
	}
	return count, nil
}

// CreateWithTx inserts a reference row inside an open transaction.
func (r *Repository) CreateWithTx(tx *gorm.DB, ref *models.MediaReference) error {
	if err := tx.Create(ref).Error; err != nil {
		return fmt.Errorf("create reference: %w", err)
	}
	return nil
}

// DeleteWithTx removes a reference row by id inside an open transaction.
func (r *Repository) DeleteWithTx(tx *gorm.DB, id uuid.UUID) error {
	if err := tx.Where("id = ?", id).Delete(&models.MediaReference{}).Error; err != nil {
		return fmt.Errorf("delete reference %s: %w", id, err)
	}
	return nil
}

// DeleteByMediaIDWithTx removes every reference row for one asset inside an
// open transaction. Used by the storage-event consumer when an object is
// deleted out of band.
func (r *Repository) DeleteByMediaIDWithTx(tx *gorm.DB, mediaID uuid.UUID) (int64, error) {
	result := tx.Where("media_id = ?", mediaID).Delete(&models.MediaReference{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete references for media %s: %w", mediaID, result.Error)
	}
	return result.RowsAffected, nil
}
