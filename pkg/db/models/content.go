package models

import (
	"time"

	"github.com/google/uuid"
)

// Article is a published content row. The cleanup engine only reads these
// tables: reconciliation scans bodies, the content-scan guard searches them.
type Article struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title         string    `gorm:"column:title;not null"`
	Body          string    `gorm:"column:body;not null"`
	CoverImageKey *string   `gorm:"column:cover_image_key"`
	ThumbnailKey  *string   `gorm:"column:thumbnail_key"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Article) TableName() string { return "articles" }

// Newsletter mirrors Article for the newsletter content type.
type Newsletter struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Subject       string    `gorm:"column:subject;not null"`
	Body          string    `gorm:"column:body;not null"`
	CoverImageKey *string   `gorm:"column:cover_image_key"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Newsletter) TableName() string { return "newsletters" }

// Podcast mirrors Article for the podcast content type; Body holds show notes.
type Podcast struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title        string    `gorm:"column:title;not null"`
	Body         string    `gorm:"column:body;not null"`
	ThumbnailKey *string   `gorm:"column:thumbnail_key"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Podcast) TableName() string { return "podcasts" }
