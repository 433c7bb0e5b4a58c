package models

import (
	"time"

	"github.com/google/uuid"
)

// MediaAsset captures metadata for binary objects stored in the blob store.
// Rows are immutable after upload except for the metadata map; deletion only
// happens through the cleanup executor.
type MediaAsset struct {
	ID               uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StorageKey       string            `gorm:"column:storage_key;not null;unique"`
	URL              string            `gorm:"column:url;not null"`
	FileName         string            `gorm:"column:file_name;not null"`
	OriginalFileName *string           `gorm:"column:original_file_name"`
	SizeBytes        int64             `gorm:"column:size_bytes;not null"`
	Width            *int              `gorm:"column:width"`
	Height           *int              `gorm:"column:height"`
	Format           string            `gorm:"column:format;not null"`
	Folder           string            `gorm:"column:folder;not null"`
	UploadedBy       *uuid.UUID        `gorm:"column:uploaded_by;type:uuid"`
	UploadedAt       time.Time         `gorm:"column:uploaded_at;autoCreateTime"`
	Metadata         map[string]string `gorm:"column:metadata;serializer:json"`
}

func (MediaAsset) TableName() string { return "media_assets" }
