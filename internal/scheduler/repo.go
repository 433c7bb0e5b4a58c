package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/inkpress-cms/mediakeeper/pkg/db/models"
)

// Repository persists CleanupSchedule rows.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, schedule *models.CleanupSchedule) error {
	if err := r.db.WithContext(ctx).Create(schedule).Error; err != nil {
		return fmt.Errorf("create cleanup schedule: %w", err)
	}
	return nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.CleanupSchedule, error) {
	var schedule models.CleanupSchedule
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&schedule).Error; err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *Repository) Update(ctx context.Context, schedule *models.CleanupSchedule) error {
	err := r.db.WithContext(ctx).
		Model(&models.CleanupSchedule{}).
		Where("id = ?", schedule.ID).
		Updates(map[string]any{
			"frequency":       schedule.Frequency,
			"time":            schedule.Time,
			"older_than_days": schedule.OlderThanDays,
			"dry_run":         schedule.DryRun,
			"enabled":         schedule.Enabled,
			"max_files":       schedule.MaxFiles,
		}).Error
	if err != nil {
		return fmt.Errorf("update cleanup schedule %s: %w", schedule.ID, err)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.CleanupSchedule{}).Error; err != nil {
		return fmt.Errorf("delete cleanup schedule %s: %w", id, err)
	}
	return nil
}

// MarkRan stamps the schedule's last execution time. The scheduler calls
// this before running so a slot is claimed exactly once even when the poll
// interval is shorter than the due window.
func (r *Repository) MarkRan(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.CleanupSchedule{}).
		Where("id = ?", id).
		Update("last_run_at", at).Error
	if err != nil {
		return fmt.Errorf("mark cleanup schedule %s ran: %w", id, err)
	}
	return nil
}

func (r *Repository) List(ctx context.Context) ([]models.CleanupSchedule, error) {
	var schedules []models.CleanupSchedule
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&schedules).Error; err != nil {
		return nil, fmt.Errorf("list cleanup schedules: %w", err)
	}
	return schedules, nil
}

func (r *Repository) ListEnabled(ctx context.Context) ([]models.CleanupSchedule, error) {
	var schedules []models.CleanupSchedule
	err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("created_at ASC").
		Find(&schedules).Error
	if err != nil {
		return nil, fmt.Errorf("list enabled cleanup schedules: %w", err)
	}
	return schedules, nil
}

// CountByEnabled reports total and enabled schedule counts for the monitor.
func (r *Repository) CountByEnabled(ctx context.Context) (total, enabled int64, err error) {
	if err = r.db.WithContext(ctx).Model(&models.CleanupSchedule{}).Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("count cleanup schedules: %w", err)
	}
	err = r.db.WithContext(ctx).
		Model(&models.CleanupSchedule{}).
		Where("enabled = ?", true).
		Count(&enabled).Error
	if err != nil {
		return 0, 0, fmt.Errorf("count enabled cleanup schedules: %w", err)
	}
	return total, enabled, nil
}
