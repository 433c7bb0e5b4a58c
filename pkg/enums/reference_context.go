package enums

import "fmt"

// ReferenceContext describes the role an asset plays inside a content item.
type ReferenceContext string

const (
	ReferenceContextContent    ReferenceContext = "content"
	ReferenceContextCoverImage ReferenceContext = "cover_image"
	ReferenceContextThumbnail  ReferenceContext = "thumbnail"
)

var validReferenceContexts = []ReferenceContext{
	ReferenceContextContent,
	ReferenceContextCoverImage,
	ReferenceContextThumbnail,
}

// String returns the literal string for the reference context.
func (r ReferenceContext) String() string {
	return string(r)
}

// IsValid reports whether the reference context is known.
func (r ReferenceContext) IsValid() bool {
	for _, candidate := range validReferenceContexts {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseReferenceContext converts raw input into a ReferenceContext.
func ParseReferenceContext(value string) (ReferenceContext, error) {
	for _, candidate := range validReferenceContexts {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reference context %q", value)
}
