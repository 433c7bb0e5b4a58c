package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/inkpress-cms/mediakeeper/pkg/enums"
)

// CleanupOperation is the append-only audit record for one cleanup run.
// Counts always satisfy FilesDeleted <= FilesProcessed.
type CleanupOperation struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OperationType  enums.OperationType   `gorm:"column:operation_type;not null"`
	Status         enums.OperationStatus `gorm:"column:status;not null"`
	FilesProcessed int                   `gorm:"column:files_processed;not null;default:0"`
	FilesDeleted   int                   `gorm:"column:files_deleted;not null;default:0"`
	SpaceFreed     int64                 `gorm:"column:space_freed;not null;default:0"`
	TriggeredBy    *uuid.UUID            `gorm:"column:triggered_by;type:uuid"`
	StartedAt      time.Time             `gorm:"column:started_at;not null"`
	CompletedAt    *time.Time            `gorm:"column:completed_at"`
	ErrorMessage   *string               `gorm:"column:error_message"`
}

func (CleanupOperation) TableName() string { return "cleanup_operations" }
