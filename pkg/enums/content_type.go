package enums

import "fmt"

// ContentType identifies the kind of published content that can reference media.
type ContentType string

const (
	ContentTypeArticle    ContentType = "article"
	ContentTypeNewsletter ContentType = "newsletter"
	ContentTypePodcast    ContentType = "podcast"
)

var validContentTypes = []ContentType{
	ContentTypeArticle,
	ContentTypeNewsletter,
	ContentTypePodcast,
}

// AllContentTypes returns every known content type.
func AllContentTypes() []ContentType {
	out := make([]ContentType, len(validContentTypes))
	copy(out, validContentTypes)
	return out
}

// String returns the literal string for the content type.
func (c ContentType) String() string {
	return string(c)
}

// IsValid reports whether the content type is known.
func (c ContentType) IsValid() bool {
	for _, candidate := range validContentTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseContentType converts raw input into a ContentType.
func ParseContentType(value string) (ContentType, error) {
	for _, candidate := range validContentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid content type %q", value)
}
