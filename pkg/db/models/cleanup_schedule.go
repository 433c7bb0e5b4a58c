package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/inkpress-cms/mediakeeper/pkg/enums"
)

// CleanupSchedule is a declarative record read by the scheduler. Time is the
// local "HH:MM" at which the schedule becomes due.
type CleanupSchedule struct {
	ID            uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Frequency     enums.ScheduleFrequency `gorm:"column:frequency;not null"`
	Time          string                  `gorm:"column:time;not null"`
	OlderThanDays int                     `gorm:"column:older_than_days;not null"`
	DryRun        bool                    `gorm:"column:dry_run;not null;default:false"`
	Enabled       bool                    `gorm:"column:enabled;not null;default:true"`
	MaxFiles      *int                    `gorm:"column:max_files"`
	LastRunAt     *time.Time              `gorm:"column:last_run_at"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (CleanupSchedule) TableName() string { return "cleanup_schedules" }
