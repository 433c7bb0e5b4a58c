package content

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/inkpress-cms/mediakeeper/pkg/enums"
)

// Repository exposes read-only text search across the published content
// tables. The cleanup engine never writes content rows.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a content repository bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Occurrence reports literal matches of a storage key inside one content type.
type Occurrence struct {
	ContentType enums.ContentType
	Count       int
}

var searchTables = []struct {
	contentType enums.ContentType
	table       string
}{
	{enums.ContentTypeArticle, "articles"},
	{enums.ContentTypeNewsletter, "newsletters"},
	{enums.ContentTypePodcast, "podcasts"},
}

// CountOccurrences searches every content body for a literal substring match
// of the storage key and returns non-zero counts per content type.
func (r *Repository) CountOccurrences(ctx context.Context, storageKey string) ([]Occurrence, error) {
	if storageKey == "" {
		return nil, nil
	}
	pattern := "%" + escapeLike(storageKey) + "%"

	var out []Occurrence
	for _, t := range searchTables {
		var count int64
		err := r.db.WithContext(ctx).
			Table(t.table).
			Where("body LIKE ?", pattern).
			Count(&count).Error
		if err != nil {
			return nil, fmt.Errorf("scan %s bodies: %w", t.table, err)
		}
		if count > 0 {
			out = append(out, Occurrence{ContentType: t.contentType, Count: int(count)})
		}
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}
