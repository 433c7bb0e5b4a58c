package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkpress-cms/mediakeeper/pkg/db/models"
	"github.com/inkpress-cms/mediakeeper/pkg/enums"
)

// Repository persists CleanupOperation rows and answers the history
// aggregates the monitor reads.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// HistoryStats summarizes the full operation history.
type HistoryStats struct {
	Total           int64      `json:"total"`
	Failed          int64      `json:"failed"`
	LastCompletedAt *time.Time `json:"lastCompletedAt,omitempty"`
	RunsLast7Days   int64      `json:"runsLast7Days"`
	AvgSpaceFreed   float64    `json:"avgSpaceFreed"`
}

func (r *Repository) Create(ctx context.Context, op *models.CleanupOperation) error {
	if err := r.db.WithContext(ctx).Create(op).Error; err != nil {
		return fmt.Errorf("create cleanup operation: %w", err)
	}
	return nil
}

// MarkCompleted moves a running operation to its terminal completed state
// with final counts.
func (r *Repository) MarkCompleted(ctx context.Context, id uuid.UUID, processed, deleted int, spaceFreed int64, completedAt time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.CleanupOperation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":          enums.OperationStatusCompleted,
			"files_processed": processed,
			"files_deleted":   deleted,
			"space_freed":     spaceFreed,
			"completed_at":    completedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("complete cleanup operation %s: %w", id, err)
	}
	return nil
}

// MarkFailed moves a running operation to its terminal failed state.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, message string, completedAt time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.CleanupOperation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        enums.OperationStatusFailed,
			"error_message": message,
			"completed_at":  completedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("fail cleanup operation %s: %w", id, err)
	}
	return nil
}

// List returns recent operations, newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]models.CleanupOperation, error) {
	if limit <= 0 {
		limit = 50
	}
	var ops []models.CleanupOperation
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&ops).Error
	if err != nil {
		return nil, fmt.Errorf("list cleanup operations: %w", err)
	}
	return ops, nil
}

// History aggregates the whole operation log for health reporting.
func (r *Repository) History(ctx context.Context, now time.Time) (HistoryStats, error) {
	var stats HistoryStats

	ops := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.CleanupOperation{})
	}
	if err := ops().Count(&stats.Total).Error; err != nil {
		return stats, fmt.Errorf("count cleanup operations: %w", err)
	}
	err := ops().
		Where("status = ?", enums.OperationStatusFailed).
		Count(&stats.Failed).Error
	if err != nil {
		return stats, fmt.Errorf("count failed cleanup operations: %w", err)
	}

	var row struct {
		LastCompletedAt *time.Time
		AvgSpaceFreed   *float64
	}
	err = ops().
		Select("MAX(completed_at) AS last_completed_at, AVG(space_freed) AS avg_space_freed").
		Where("status = ?", enums.OperationStatusCompleted).
		Scan(&row).Error
	if err != nil {
		return stats, fmt.Errorf("aggregate completed cleanup operations: %w", err)
	}
	stats.LastCompletedAt = row.LastCompletedAt
	if row.AvgSpaceFreed != nil {
		stats.AvgSpaceFreed = *row.AvgSpaceFreed
	}

	err = ops().
		Where("started_at >= ?", now.AddDate(0, 0, -7)).
		Count(&stats.RunsLast7Days).Error
	if err != nil {
		return stats, fmt.Errorf("count recent cleanup operations: %w", err)
	}

	return stats, nil
}
