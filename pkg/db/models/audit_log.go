package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/inkpress-cms/mediakeeper/pkg/enums"
)

// AuditLog records every mutating call that passed through the access gate,
// regardless of outcome.
type AuditLog struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ActorID   string          `gorm:"column:actor_id;not null"`
	Role      enums.ActorRole `gorm:"column:role;not null"`
	Operation string          `gorm:"column:operation;not null"`
	Target    string          `gorm:"column:target"`
	Success   bool            `gorm:"column:success;not null"`
	ClientIP  string          `gorm:"column:client_ip"`
	UserAgent string          `gorm:"column:user_agent"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (AuditLog) TableName() string { return "audit_logs" }
