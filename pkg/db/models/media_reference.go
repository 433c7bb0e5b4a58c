package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/inkpress-cms/mediakeeper/pkg/enums"
)

// MediaReference links a content item to a media asset. Rows are created and
// removed by the reference tracker whenever content is saved; never mutated.
type MediaReference struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MediaID          uuid.UUID              `gorm:"column:media_id;type:uuid;not null;uniqueIndex:idx_media_refs_identity"`
	ContentType      enums.ContentType      `gorm:"column:content_type;not null;uniqueIndex:idx_media_refs_identity"`
	ContentID        uuid.UUID              `gorm:"column:content_id;type:uuid;not null;uniqueIndex:idx_media_refs_identity"`
	ReferenceContext enums.ReferenceContext `gorm:"column:reference_context;not null;uniqueIndex:idx_media_refs_identity"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
}

func (MediaReference) TableName() string { return "media_references" }
